package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/nearpair-protocol/nearpair-go/pkg/command"
	"github.com/nearpair-protocol/nearpair-go/pkg/session"
)

// connectTimeout bounds one interactive connect-and-pair attempt.
const connectTimeout = 15 * time.Second

// interactiveUI is the readline command loop. It doubles as the registry's
// event sink so lifecycle events land on the prompt-coordinated writer.
type interactiveUI struct {
	registry *session.DeviceRegistry
	rl       *readline.Instance

	scanCancel context.CancelFunc
}

func newInteractive() (*interactiveUI, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "nearpair> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &interactiveUI{rl: rl}, nil
}

// OnEvent implements session.EventSink.
func (ui *interactiveUI) OnEvent(e session.Event) {
	out := ui.rl.Stdout()
	addr := e.Device.Identity.Address

	switch e.Kind {
	case session.EventDeviceDiscovered:
		fmt.Fprintf(out, "* discovered %s  %s (model %s, %d dBm)\n",
			addr, displayName(e.Device), e.Device.Identity.ModelID, e.Device.RSSI)
	case session.EventHandshakeCompleted:
		fmt.Fprintf(out, "* paired with %s\n", addr)
	case session.EventHandshakeFailed:
		fmt.Fprintf(out, "* pairing with %s failed: %s\n", addr, e.Reason)
	case session.EventBatteryUpdated:
		if e.Device.Battery != nil {
			fmt.Fprintf(out, "* %s battery: %d%%\n", addr, *e.Device.Battery)
		}
	case session.EventDisconnected:
		fmt.Fprintf(out, "* %s disconnected (%s)\n", addr, e.Reason)
	}
}

// Run starts the interactive command loop.
func (ui *interactiveUI) Run(ctx context.Context, cancel context.CancelFunc) {
	defer ui.rl.Close()

	ui.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := ui.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			// EOF
			cancel()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			ui.printHelp()

		case "scan":
			ui.cmdScan(ctx)

		case "stop":
			ui.cmdStopScan()

		case "list", "ls", "devices":
			ui.cmdList()

		case "connect", "c":
			ui.cmdConnect(ctx, args)

		case "disconnect", "d":
			ui.cmdDisconnect(args)

		case "anc":
			ui.cmdANC(ctx, args)

		case "eq":
			ui.cmdEQ(ctx, args)

		case "volume", "vol":
			ui.cmdVolume(ctx, args)

		case "status", "s":
			ui.cmdStatus(args)

		case "evict", "forget":
			ui.cmdEvict(args)

		case "quit", "exit", "q":
			fmt.Println("Exiting...")
			cancel()
			return

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (ui *interactiveUI) printHelp() {
	fmt.Println(`
NearPair Controller Commands:
  Discovery:
    scan                 - Start scanning for devices
    stop                 - Stop scanning
    list                 - List discovered devices

  Connection:
    connect <addr>       - Connect and pair with a device
    disconnect <addr>    - Disconnect from a device
    evict <addr>         - Forget a device entirely

  Control:
    anc <addr> [mode]    - Noise control: off, nc, transparency (no mode cycles)
    eq <addr> <preset>   - Equalizer: balanced, bass, treble, vocal, rock, jazz
    volume <addr> <0-100> - Set volume

  Other:
    status <addr>        - Show device details
    help                 - Show this help
    quit                 - Exit

  Addresses may be abbreviated to any unique prefix or suffix.`)
}

func (ui *interactiveUI) cmdScan(ctx context.Context) {
	if ui.scanCancel != nil {
		fmt.Println("Already scanning")
		return
	}
	scanCtx, cancel := context.WithCancel(ctx)
	ui.scanCancel = cancel
	go func() {
		if err := ui.registry.Run(scanCtx); err != nil && scanCtx.Err() == nil {
			fmt.Fprintf(ui.rl.Stdout(), "Scan stopped: %v\n", err)
		}
	}()
	fmt.Println("Scanning...")
}

func (ui *interactiveUI) cmdStopScan() {
	if ui.scanCancel == nil {
		fmt.Println("Not scanning")
		return
	}
	ui.scanCancel()
	ui.scanCancel = nil
	fmt.Println("Scan stopped")
}

func (ui *interactiveUI) cmdList() {
	devices := ui.registry.Devices()
	if len(devices) == 0 {
		fmt.Println("No devices discovered (try 'scan')")
		return
	}

	fmt.Printf("%-20s %-26s %-8s %-10s %s\n", "ADDRESS", "NAME", "MODEL", "SIGNAL", "STATE")
	for _, d := range devices {
		fmt.Printf("%-20s %-26s %-8s %-10s %s\n",
			d.Identity.Address,
			displayName(d),
			d.Identity.ModelID,
			fmt.Sprintf("%d dBm", d.RSSI),
			d.State)
	}
}

func (ui *interactiveUI) cmdConnect(ctx context.Context, args []string) {
	s := ui.resolveSession(args)
	if s == nil {
		return
	}

	fmt.Printf("Connecting to %s...\n", s.Identity().Address)
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := s.Connect(cctx); err != nil {
		fmt.Printf("Connect failed: %v\n", err)
	}
}

func (ui *interactiveUI) cmdDisconnect(args []string) {
	s := ui.resolveSession(args)
	if s == nil {
		return
	}
	s.Disconnect()
}

func (ui *interactiveUI) cmdANC(ctx context.Context, args []string) {
	s := ui.resolveSession(args)
	if s == nil {
		return
	}

	if len(args) < 2 {
		mode, err := s.NextANC(ctx)
		if err != nil {
			fmt.Printf("ANC failed: %v\n", err)
			return
		}
		fmt.Printf("Noise control -> %s\n", mode)
		return
	}

	var mode command.ANCMode
	switch strings.ToLower(args[1]) {
	case "off":
		mode = command.ANCOff
	case "nc", "anc", "on":
		mode = command.ANCNoiseCancellation
	case "transparency", "ambient":
		mode = command.ANCTransparency
	default:
		fmt.Printf("Unknown mode %q (off, nc, transparency)\n", args[1])
		return
	}

	if err := s.SetANC(ctx, mode); err != nil {
		fmt.Printf("ANC failed: %v\n", err)
	}
}

func (ui *interactiveUI) cmdEQ(ctx context.Context, args []string) {
	s := ui.resolveSession(args)
	if s == nil {
		return
	}
	if len(args) < 2 {
		fmt.Println("Usage: eq <addr> <balanced|bass|treble|vocal|rock|jazz>")
		return
	}

	var preset command.EQPreset
	switch strings.ToLower(args[1]) {
	case "balanced", "flat":
		preset = command.EQBalanced
	case "bass":
		preset = command.EQBassBoost
	case "treble":
		preset = command.EQTrebleBoost
	case "vocal":
		preset = command.EQVocal
	case "rock":
		preset = command.EQRock
	case "jazz":
		preset = command.EQJazz
	default:
		fmt.Printf("Unknown preset %q\n", args[1])
		return
	}

	if err := s.SetEQ(ctx, preset); err != nil {
		fmt.Printf("EQ failed: %v\n", err)
	}
}

func (ui *interactiveUI) cmdVolume(ctx context.Context, args []string) {
	s := ui.resolveSession(args)
	if s == nil {
		return
	}
	if len(args) < 2 {
		fmt.Println("Usage: volume <addr> <0-100>")
		return
	}

	pct, err := strconv.Atoi(args[1])
	if err != nil || pct < 0 || pct > 100 {
		fmt.Printf("Invalid volume %q (0-100)\n", args[1])
		return
	}

	if err := s.SetVolume(ctx, float64(pct)/100); err != nil {
		fmt.Printf("Volume failed: %v\n", err)
	}
}

func (ui *interactiveUI) cmdStatus(args []string) {
	s := ui.resolveSession(args)
	if s == nil {
		return
	}

	d := s.Snapshot()
	fmt.Printf("Address:   %s\n", d.Identity.Address)
	fmt.Printf("Name:      %s\n", displayName(d))
	fmt.Printf("Model:     %s\n", d.Identity.ModelID)
	fmt.Printf("Category:  %s\n", d.Category)
	fmt.Printf("Signal:    %d dBm\n", d.RSSI)
	fmt.Printf("State:     %s\n", d.State)
	if d.Battery != nil {
		fmt.Printf("Battery:   %d%%\n", *d.Battery)
	}
	if d.Connected {
		anc, eq, vol := s.Settings()
		fmt.Printf("ANC:       %s\n", anc)
		fmt.Printf("EQ:        %s\n", eq)
		fmt.Printf("Volume:    %d%%\n", int(vol*100))
	}
}

func (ui *interactiveUI) cmdEvict(args []string) {
	s := ui.resolveSession(args)
	if s == nil {
		return
	}
	addr := s.Identity().Address
	ui.registry.Evict(addr)
	fmt.Printf("Forgot %s\n", addr)
}

// resolveSession finds the session for the address in args[0], accepting any
// unique prefix or suffix.
func (ui *interactiveUI) resolveSession(args []string) *session.PairingSession {
	if len(args) < 1 {
		fmt.Println("Usage: <command> <addr> ...")
		return nil
	}
	query := strings.ToUpper(args[0])

	if s := ui.registry.Session(query); s != nil {
		return s
	}

	var matches []session.DiscoveredDevice
	for _, d := range ui.registry.Devices() {
		addr := strings.ToUpper(d.Identity.Address)
		if strings.HasPrefix(addr, query) || strings.HasSuffix(addr, query) {
			matches = append(matches, d)
		}
	}

	switch len(matches) {
	case 0:
		fmt.Printf("No device matches %q\n", args[0])
		return nil
	case 1:
		return ui.registry.Session(matches[0].Identity.Address)
	default:
		fmt.Printf("%q is ambiguous:\n", args[0])
		for _, d := range matches {
			fmt.Printf("  %s  %s\n", d.Identity.Address, displayName(d))
		}
		return nil
	}
}

func displayName(d session.DiscoveredDevice) string {
	if d.Name != "" {
		return d.Name
	}
	return "(unnamed " + strings.ToLower(d.Category.String()) + ")"
}
