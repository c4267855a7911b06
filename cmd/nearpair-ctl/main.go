// Command nearpair-ctl is an interactive proximity-pairing controller.
//
// It scans for pairing-capable audio devices, runs the key-based-pairing
// handshake, and sends device control commands. Devices are served by an
// in-process simulated fleet, so the full protocol can be exercised without
// radio hardware.
//
// Usage:
//
//	nearpair-ctl [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-state-dir string  Directory for the persistent account key store
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-event-log string  Binary protocol event log path
//
// Interactive Commands:
//
//	scan               - Start scanning for devices
//	list               - List discovered devices
//	connect <addr>     - Connect and pair with a device
//	disconnect <addr>  - Disconnect from a device
//	anc <addr> [mode]  - Set noise control (off|nc|transparency), cycles without mode
//	eq <addr> <preset> - Set equalizer preset
//	volume <addr> <n>  - Set volume (0-100)
//	status <addr>      - Show device details
//	evict <addr>       - Forget a device
//	quit               - Exit
package main

import (
	"context"
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nearpair-protocol/nearpair-go/pkg/advert"
	"github.com/nearpair-protocol/nearpair-go/pkg/keystore"
	"github.com/nearpair-protocol/nearpair-go/pkg/log"
	"github.com/nearpair-protocol/nearpair-go/pkg/session"
	"github.com/nearpair-protocol/nearpair-go/pkg/simulate"
	"github.com/nearpair-protocol/nearpair-go/pkg/transport"
)

type flags struct {
	ConfigFile string
	StateDir   string
	LogLevel   string
	EventLog   string
}

func main() {
	var f flags
	flag.StringVar(&f.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&f.StateDir, "state-dir", "", "Directory for the persistent account key store")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&f.EventLog, "event-log", "", "Binary protocol event log path")
	flag.Parse()

	cfg, err := loadConfig(f.ConfigFile)
	if err != nil {
		stdlog.Fatalf("Config: %v", err)
	}
	// Flags win over the config file.
	if f.StateDir != "" {
		cfg.StateDir = f.StateDir
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.EventLog != "" {
		cfg.EventLog = f.EventLog
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	// Protocol event logging: structured slog always, a binary file when
	// configured.
	protoLoggers := []log.Logger{log.NewSlogAdapter(logger)}
	if cfg.EventLog != "" {
		fileLog, err := log.NewFileLogger(cfg.EventLog)
		if err != nil {
			stdlog.Fatalf("Event log: %v", err)
		}
		defer fileLog.Close()
		protoLoggers = append(protoLoggers, fileLog)
		logger.Info("writing protocol events", "path", cfg.EventLog)
	}

	var store keystore.Store
	if cfg.StateDir != "" {
		fileStore := keystore.NewFileStore(filepath.Join(cfg.StateDir, "account_keys.npks"))
		if err := fileStore.Load(); err != nil {
			stdlog.Fatalf("Key store: %v", err)
		}
		logger.Info("using persistent key store",
			"dir", cfg.StateDir, "keys", len(fileStore.List()))
		store = fileStore
	} else {
		store = keystore.NewMemoryStore()
	}

	// The simulated fleet stands in for the radio.
	tr := transport.NewMemoryTransport()
	for _, d := range cfg.Devices {
		dev, err := simulate.NewPeripheral(simulate.Config{
			Address: d.Address,
			ModelID: d.ModelID,
			Name:    d.Name,
			RSSI:    d.RSSI,
			Battery: d.Battery,
			Logger:  logger,
		})
		if err != nil {
			stdlog.Fatalf("Device %s: %v", d.Address, err)
		}
		tr.AddPeripheral(dev)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ui, err := newInteractive()
	if err != nil {
		stdlog.Fatalf("Interactive: %v", err)
	}

	roundTrip, err := cfg.roundTripTimeout()
	if err != nil {
		stdlog.Fatalf("Config: %v", err)
	}

	registry := session.NewDeviceRegistry(tr, store, session.Options{
		Classifier: advert.NewClassifier(advert.Options{
			DisableNameFallback: cfg.Scan.DisableNameFallback,
			Keywords:            cfg.Scan.Keywords,
			Logger:              logger,
		}),
		Sink:             ui,
		ProtocolLog:      log.NewMultiLogger(protoLoggers...),
		Logger:           logger,
		RoundTripTimeout: roundTrip,
	})
	ui.registry = registry
	defer registry.Close()

	go ui.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
