// Package simulate provides an in-process device-side implementation of the
// pairing and control protocol. It backs the in-memory transport in tests
// and the interactive CLI's demo mode, without any radio hardware.
package simulate

import (
	"crypto/hmac"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/nearpair-protocol/nearpair-go/pkg/advert"
	"github.com/nearpair-protocol/nearpair-go/pkg/command"
	"github.com/nearpair-protocol/nearpair-go/pkg/keys"
	"github.com/nearpair-protocol/nearpair-go/pkg/pairing"
	"github.com/nearpair-protocol/nearpair-go/pkg/transport"
)

// Faults selects misbehavior for negative-path tests. The zero value is a
// well-behaved device.
type Faults struct {
	// SilentPairing drops pairing requests without responding.
	SilentPairing bool

	// MalformedPairingResponse answers the pairing request with a
	// truncated public key.
	MalformedPairingResponse bool

	// InvalidPublicKey answers with a point that is not on the curve.
	InvalidPublicKey bool

	// RejectAccountKey refuses every account-key characteristic write.
	RejectAccountKey bool

	// RejectCommands refuses every control command.
	RejectCommands bool
}

// Config describes the simulated device.
type Config struct {
	// Address is the stable device identity.
	Address string

	// ModelID is the six-hex-digit model identifier, e.g. "72CF9C".
	ModelID string

	// Name is the advertised local name.
	Name string

	// RSSI is the advertised signal strength sample.
	RSSI int16

	// Battery is the initial battery percentage.
	Battery uint8

	// Faults selects misbehavior. Zero value behaves correctly.
	Faults Faults

	// Logger receives device-side logs. Nil disables logging.
	Logger *slog.Logger
}

// Peripheral simulates one audio device: it advertises the pairing service,
// answers the key-based-pairing handshake, verifies account keys, and serves
// control commands on the passthrough characteristic.
type Peripheral struct {
	cfg     Config
	modelID [advert.ModelIDLen]byte
	logger  *slog.Logger

	mu       sync.Mutex
	notifier transport.Notifier

	// Connection-scoped handshake state.
	devicePublic []byte
	sessionKey   []byte

	// accountKeys is the device-side persistent key list. It survives
	// disconnects, like flash storage on a real device.
	accountKeys [][]byte

	anc     command.ANCMode
	eq      command.EQPreset
	volume  uint8
	battery uint8
}

// NewPeripheral builds a simulated device from the config.
func NewPeripheral(cfg Config) (*Peripheral, error) {
	modelID, err := advert.ParseModelID(cfg.ModelID)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Peripheral{
		cfg:     cfg,
		modelID: modelID,
		logger:  logger,
		battery: cfg.Battery,
	}, nil
}

// Identity returns the device address.
func (p *Peripheral) Identity() string { return p.cfg.Address }

// Advertisement returns the record the device currently broadcasts:
// the pairing service UUID plus the model id in its service data.
func (p *Peripheral) Advertisement() advert.Record {
	return advert.Record{
		Address:      p.cfg.Address,
		LocalName:    p.cfg.Name,
		ServiceUUIDs: []uint16{pairing.ServiceUUID},
		ServiceData: map[uint16][]byte{
			pairing.ServiceUUID: append([]byte(nil), p.modelID[:]...),
		},
		RSSI: p.cfg.RSSI,
	}
}

// Services returns the GATT layout of the pairing service.
func (p *Peripheral) Services() map[uint16][]uint16 {
	return map[uint16][]uint16{
		pairing.ServiceUUID: {
			pairing.CharModelID,
			pairing.CharKeyBasedPairing,
			pairing.CharPassthrough,
			pairing.CharAccountKey,
		},
	}
}

// Attach starts a connection. Handshake state is connection-scoped and
// starts clean.
func (p *Peripheral) Attach(n transport.Notifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifier = n
	keys.Zero(p.sessionKey)
	p.sessionKey = nil
	p.devicePublic = nil
}

// Detach ends the connection and destroys the session key.
func (p *Peripheral) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifier = nil
	keys.Zero(p.sessionKey)
	p.sessionKey = nil
	p.devicePublic = nil
}

// HandleWrite dispatches a characteristic write from the host.
func (p *Peripheral) HandleWrite(charUUID uint16, data []byte) error {
	switch charUUID {
	case pairing.CharKeyBasedPairing:
		return p.handlePairingRequest(data)
	case pairing.CharAccountKey:
		return p.handleAccountKey(data)
	case pairing.CharPassthrough:
		return p.handleCommand(data)
	default:
		return fmt.Errorf("write to unknown characteristic %04X", charUUID)
	}
}

// handlePairingRequest answers the handshake: generate an ephemeral pair,
// derive the session key from the host's public point, respond with ours.
func (p *Peripheral) handlePairingRequest(data []byte) error {
	hostPublic, err := pairing.DecodePairingRequest(data)
	if err != nil {
		p.logger.Debug("dropping malformed pairing request", "error", err)
		return err
	}
	if p.cfg.Faults.SilentPairing {
		return nil
	}

	pair, err := keys.GenerateEphemeralKeyPair()
	if err != nil {
		return err
	}
	defer pair.Destroy()

	secret, err := keys.DeriveSharedSecret(pair, hostPublic)
	if err != nil {
		return err
	}
	defer keys.Zero(secret)

	sessionKey, err := pairing.SessionKeyFromSecret(secret)
	if err != nil {
		return err
	}

	devicePublic := pair.Public()
	resp, err := pairing.EncodePairingResponse(devicePublic)
	if err != nil {
		return err
	}
	switch {
	case p.cfg.Faults.MalformedPairingResponse:
		resp = resp[:10]
	case p.cfg.Faults.InvalidPublicKey:
		// Flip a coordinate byte so the point leaves the curve.
		resp[10] ^= 0xFF
	}

	p.mu.Lock()
	keys.Zero(p.sessionKey)
	p.sessionKey = sessionKey
	p.devicePublic = devicePublic
	notifier := p.notifier
	p.mu.Unlock()

	if notifier != nil {
		notifier.Notify(pairing.CharKeyBasedPairing, resp)
	}
	return nil
}

// handleAccountKey processes an account-key characteristic write: either a
// sealed fresh account key or a sealed possession proof.
func (p *Peripheral) handleAccountKey(data []byte) error {
	p.mu.Lock()
	sessionKey := p.sessionKey
	devicePublic := p.devicePublic
	notifier := p.notifier
	p.mu.Unlock()

	if sessionKey == nil {
		p.ack(notifier, pairing.AckRejected)
		return nil
	}
	if p.cfg.Faults.RejectAccountKey {
		p.ack(notifier, pairing.AckRejected)
		return nil
	}

	plain, err := keys.Open(data, sessionKey)
	if err != nil {
		p.logger.Debug("account-key payload failed to open", "error", err)
		p.ack(notifier, pairing.AckRejected)
		return nil
	}

	switch len(plain) {
	case keys.AccountKeySize:
		p.mu.Lock()
		p.accountKeys = append(p.accountKeys, plain)
		p.mu.Unlock()
		p.logger.Debug("stored account key", "total", p.AccountKeyCount())
		p.ack(notifier, pairing.AckAccepted)

	case pairing.ReauthProofSize:
		if p.verifyProof(plain, devicePublic) {
			p.ack(notifier, pairing.AckAccepted)
		} else {
			p.logger.Debug("re-auth proof did not match any stored key")
			p.ack(notifier, pairing.AckRejected)
		}

	default:
		p.ack(notifier, pairing.AckRejected)
	}
	return nil
}

// verifyProof checks a possession proof against every stored account key.
func (p *Peripheral) verifyProof(proof, devicePublic []byte) bool {
	p.mu.Lock()
	stored := append([][]byte(nil), p.accountKeys...)
	p.mu.Unlock()

	for _, key := range stored {
		want, err := pairing.ReauthProof(key, devicePublic)
		if err != nil {
			continue
		}
		if hmac.Equal(proof, want) {
			return true
		}
	}
	return false
}

func (p *Peripheral) ack(n transport.Notifier, status uint8) {
	if n != nil {
		n.Notify(pairing.CharAccountKey, pairing.EncodeAck(status))
	}
}

// handleCommand applies a control command and acknowledges on the
// passthrough characteristic. Unknown opcodes are ignored.
func (p *Peripheral) handleCommand(data []byte) error {
	if len(data) == 0 {
		return command.ErrShortPayload
	}
	opcode := data[0]

	accepted := false
	if !p.cfg.Faults.RejectCommands {
		accepted = p.applyCommand(opcode, data)
	}

	p.mu.Lock()
	notifier := p.notifier
	p.mu.Unlock()
	if notifier != nil {
		notifier.Notify(pairing.CharPassthrough, command.EncodeAck(opcode, accepted))
	}
	return nil
}

func (p *Peripheral) applyCommand(opcode uint8, data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch opcode {
	case command.OpcodeANC:
		if len(data) < 2 || !command.ANCMode(data[1]).Valid() {
			return false
		}
		p.anc = command.ANCMode(data[1])
	case command.OpcodeEQ:
		if len(data) < 2 || !command.EQPreset(data[1]).Valid() {
			return false
		}
		p.eq = command.EQPreset(data[1])
	case command.OpcodeVolume:
		if len(data) < 2 || data[1] > 100 {
			return false
		}
		p.volume = data[1]
	default:
		return false
	}
	return true
}

// NotifyBattery pushes the current battery level to the connected host.
// No-op while disconnected.
func (p *Peripheral) NotifyBattery() {
	p.mu.Lock()
	notifier := p.notifier
	battery := p.battery
	p.mu.Unlock()

	if notifier == nil {
		return
	}
	payload, err := command.EncodeBattery(battery)
	if err != nil {
		return
	}
	notifier.Notify(pairing.CharPassthrough, payload)
}

// SetBattery updates the battery level and notifies the host if connected.
func (p *Peripheral) SetBattery(pct uint8) {
	p.mu.Lock()
	p.battery = pct
	p.mu.Unlock()
	p.NotifyBattery()
}

// ANC returns the device-side noise-control mode.
func (p *Peripheral) ANC() command.ANCMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.anc
}

// EQ returns the device-side equalizer preset.
func (p *Peripheral) EQ() command.EQPreset {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eq
}

// Volume returns the device-side volume step (0-100).
func (p *Peripheral) Volume() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// AccountKeyCount returns how many account keys the device has stored.
func (p *Peripheral) AccountKeyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accountKeys)
}

// Connected reports whether a host is attached.
func (p *Peripheral) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notifier != nil
}

var _ transport.Peripheral = (*Peripheral)(nil)
