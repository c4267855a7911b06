package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nearpair-protocol/nearpair-go/pkg/advert"
	"github.com/nearpair-protocol/nearpair-go/pkg/command"
	"github.com/nearpair-protocol/nearpair-go/pkg/keys"
	"github.com/nearpair-protocol/nearpair-go/pkg/log"
	"github.com/nearpair-protocol/nearpair-go/pkg/pairing"
	"github.com/nearpair-protocol/nearpair-go/pkg/transport"
)

// commandTimeout bounds a control-command characteristic write.
const commandTimeout = 5 * time.Second

// PairingSession is the single owner of one device's pairing lifecycle.
// All state mutation happens under the session's own lock; sessions for
// different identities never contend.
type PairingSession struct {
	id       string
	identity DeviceIdentity

	transport transport.Transport
	protocol  *pairing.Protocol
	sink      EventSink
	plog      log.Logger
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	name     string
	category advert.Category
	rssi     int16
	battery  *uint8

	// attempt guards against late handshake results: a result is applied
	// only if the attempt it belongs to is still the current one.
	attempt uint64

	conn       transport.Connection
	sessionKey []byte
	passChar   transport.Characteristic

	// Last-applied control settings, mirrored for UI consistency.
	// Authoritative state lives on the device.
	anc    command.ANCMode
	eq     command.EQPreset
	volume float64

	// pending maps command opcodes to the mirror update applied when the
	// device acknowledges.
	pending map[uint8]func()
}

func newPairingSession(identity DeviceIdentity, cand advert.Candidate, rssi int16, tr transport.Transport, proto *pairing.Protocol, sink EventSink, plog log.Logger, logger *slog.Logger) *PairingSession {
	return &PairingSession{
		id:        uuid.NewString(),
		identity:  identity,
		transport: tr,
		protocol:  proto,
		sink:      sink,
		plog:      plog,
		logger:    logger,
		state:     StateDiscovered,
		name:      cand.Name,
		category:  cand.Category,
		rssi:      rssi,
		pending:   make(map[uint8]func()),
	}
}

// ID returns the session's unique identifier.
func (s *PairingSession) ID() string { return s.id }

// Identity returns the device identity this session owns.
func (s *PairingSession) Identity() DeviceIdentity { return s.identity }

// State returns the current state.
func (s *PairingSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current device view.
func (s *PairingSession) Snapshot() DiscoveredDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *PairingSession) snapshotLocked() DiscoveredDevice {
	var battery *uint8
	if s.battery != nil {
		b := *s.battery
		battery = &b
	}
	return DiscoveredDevice{
		Identity:  s.identity,
		Name:      s.name,
		Category:  s.category,
		RSSI:      s.rssi,
		State:     s.state,
		Connected: s.state.linked(),
		Battery:   battery,
	}
}

// Settings returns the mirrored control settings.
func (s *PairingSession) Settings() (command.ANCMode, command.EQPreset, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anc, s.eq, s.volume
}

// updateAdvertisement refreshes display metadata from a new advertisement.
// Called by the registry; existing sessions are updated, never recreated.
func (s *PairingSession) updateAdvertisement(cand advert.Candidate, rssi int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cand.Name != "" {
		s.name = cand.Name
		s.category = cand.Category
	}
	if cand.ModelID != advert.ModelIDUnknown && s.identity.ModelID == advert.ModelIDUnknown {
		s.identity.ModelID = cand.ModelID
	}
	s.rssi = rssi
}

// Connect runs the full connect-and-handshake sequence. It is legal from
// Discovered, Disconnected, and both failed terminal states; anything else
// returns ErrSessionBusy (at most one in-flight handshake per session).
func (s *PairingSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	if !s.state.connectable() {
		s.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrSessionBusy, s.state)
	}
	s.attempt++
	attempt := s.attempt
	old := s.state
	s.toStateLocked(StateConnecting, "")
	s.mu.Unlock()
	s.emitStateChanged(old, StateConnecting, "")

	conn, err := s.transport.Connect(ctx, s.identity.Address)
	if err != nil {
		reason := failureReason(err)
		if s.settle(attempt, StateConnecting, StateConnectionFailed, reason) {
			s.emit(Event{Kind: EventHandshakeFailed, Device: s.Snapshot(), Reason: reason})
		}
		return fmt.Errorf("%w: %v", transport.ErrConnectFailed, err)
	}

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateConnecting {
		s.mu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	s.conn = conn
	s.toStateLocked(StateHandshaking, "")
	s.mu.Unlock()
	s.emitStateChanged(StateConnecting, StateHandshaking, "")

	result, err := s.protocol.Handshake(ctx, conn, s.identity.Address)
	if err != nil {
		reason := failureReason(err)
		s.logError("handshake", err)
		if s.settle(attempt, StateHandshaking, StateHandshakeFailed, reason) {
			conn.Close()
			s.emit(Event{Kind: EventHandshakeFailed, Device: s.Snapshot(), Reason: reason})
		}
		return err
	}

	// Prepare the command channel before committing to Paired.
	passChar, notifs, err := s.setupPassthrough(conn)
	if err != nil {
		keys.Zero(result.SessionKey)
		reason := failureReason(err)
		if s.settle(attempt, StateHandshaking, StateHandshakeFailed, reason) {
			conn.Close()
			s.emit(Event{Kind: EventHandshakeFailed, Device: s.Snapshot(), Reason: reason})
		}
		return err
	}

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateHandshaking {
		// A cancel or timeout already settled this attempt; a late
		// success does not reopen the session.
		s.mu.Unlock()
		keys.Zero(result.SessionKey)
		conn.Close()
		return ErrSessionClosed
	}
	s.sessionKey = result.SessionKey
	s.passChar = passChar
	s.toStateLocked(StatePaired, "")
	s.mu.Unlock()
	s.emitStateChanged(StateHandshaking, StatePaired, "")

	go s.notifyLoop(attempt, notifs)

	s.logger.Info("handshake completed",
		"address", s.identity.Address,
		"new_account_key", result.NewAccountKey)
	s.emit(Event{Kind: EventHandshakeCompleted, Device: s.Snapshot()})
	return nil
}

// setupPassthrough discovers the passthrough characteristic and subscribes
// to its notifications.
func (s *PairingSession) setupPassthrough(conn transport.Connection) (transport.Characteristic, <-chan []byte, error) {
	chars, err := conn.DiscoverCharacteristics(pairing.ServiceUUID)
	if err != nil {
		return nil, nil, err
	}
	passChar, ok := chars[pairing.CharPassthrough]
	if !ok {
		return nil, nil, fmt.Errorf("%w: passthrough (%04X)",
			transport.ErrCharacteristicNotFound, pairing.CharPassthrough)
	}
	notifs, err := conn.Notifications(passChar)
	if err != nil {
		return nil, nil, err
	}
	return passChar, notifs, nil
}

// Disconnect cancels any in-flight handshake and tears down the link.
func (s *PairingSession) Disconnect() {
	s.mu.Lock()
	s.attempt++ // invalidate in-flight work
	conn := s.conn
	s.conn = nil
	s.passChar = nil
	keys.Zero(s.sessionKey)
	s.sessionKey = nil
	s.pending = make(map[uint8]func())

	old := s.state
	var emitted bool
	switch {
	case old.linked():
		s.toStateLocked(StateDisconnected, "disconnect requested")
		emitted = true
	case old == StateConnecting || old == StateHandshaking:
		// Cancel before pairing completed: back to cold discovery.
		s.toStateLocked(StateDiscovered, "disconnect requested")
	}
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if emitted {
		s.emitStateChanged(old, StateDisconnected, "disconnect requested")
		s.emit(Event{Kind: EventDisconnected, Device: s.Snapshot(), Reason: "disconnect requested"})
	} else if old == StateConnecting || old == StateHandshaking {
		s.emitStateChanged(old, StateDiscovered, "disconnect requested")
	}
}

// SetANC applies a noise-control mode.
func (s *PairingSession) SetANC(ctx context.Context, mode command.ANCMode) error {
	payload, err := command.EncodeANC(mode)
	if err != nil {
		return err
	}
	return s.sendCommand(ctx, command.OpcodeANC, payload, mode.String(), func() { s.anc = mode })
}

// NextANC advances the cyclic three-state noise-control toggle.
func (s *PairingSession) NextANC(ctx context.Context) (command.ANCMode, error) {
	s.mu.Lock()
	next := s.anc.Next()
	s.mu.Unlock()
	return next, s.SetANC(ctx, next)
}

// SetEQ applies an equalizer preset.
func (s *PairingSession) SetEQ(ctx context.Context, preset command.EQPreset) error {
	payload, err := command.EncodeEQ(preset)
	if err != nil {
		return err
	}
	return s.sendCommand(ctx, command.OpcodeEQ, payload, preset.String(), func() { s.eq = preset })
}

// SetVolume applies a normalized volume level; out-of-range input clamps.
func (s *PairingSession) SetVolume(ctx context.Context, level float64) error {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	payload := command.EncodeVolume(level)
	detail := fmt.Sprintf("volume %.2f", level)
	return s.sendCommand(ctx, command.OpcodeVolume, payload, detail, func() { s.volume = level })
}

// sendCommand writes a control payload to the passthrough characteristic.
// The mirror update runs when the device acknowledges, in notifyLoop.
func (s *PairingSession) sendCommand(ctx context.Context, opcode uint8, payload []byte, detail string, apply func()) error {
	s.mu.Lock()
	if !s.state.linked() {
		s.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotPaired, s.state)
	}
	conn := s.conn
	char := s.passChar
	s.pending[opcode] = apply
	s.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := conn.Write(wctx, char, payload, true); err != nil {
		s.mu.Lock()
		delete(s.pending, opcode)
		s.mu.Unlock()
		s.logError("command", err)
		return err
	}

	s.plog.Log(log.Event{
		Timestamp:     time.Now(),
		SessionID:     s.id,
		DeviceAddress: s.identity.Address,
		ModelID:       s.identity.ModelID,
		Category:      log.CategoryCommand,
		Command:       &log.CommandEvent{Opcode: opcode, Detail: detail},
	})
	return nil
}

// notifyLoop processes passthrough notifications for one connection, in
// delivery order. The channel closing is the transport disconnect event.
func (s *PairingSession) notifyLoop(attempt uint64, notifs <-chan []byte) {
	for payload := range notifs {
		if !s.currentAttempt(attempt) {
			return
		}
		s.handleNotification(payload)
	}
	s.handleTransportDisconnect(attempt)
}

func (s *PairingSession) currentAttempt(attempt uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt == attempt
}

func (s *PairingSession) handleNotification(payload []byte) {
	n, err := command.DecodeNotification(payload)
	if err != nil {
		// Malformed device notification: drop it, keep the session.
		s.logError("notification", err)
		return
	}

	switch n.Kind {
	case command.NotificationBattery:
		s.mu.Lock()
		b := n.Battery
		s.battery = &b
		s.mu.Unlock()

		s.plog.Log(log.Event{
			Timestamp:     time.Now(),
			SessionID:     s.id,
			DeviceAddress: s.identity.Address,
			Category:      log.CategoryBattery,
			Battery:       &log.BatteryEvent{Percentage: n.Battery},
		})
		s.emit(Event{Kind: EventBatteryUpdated, Device: s.Snapshot()})

	case command.NotificationAck:
		s.mu.Lock()
		apply := s.pending[n.Opcode]
		delete(s.pending, n.Opcode)
		var activated bool
		if n.Accepted {
			if apply != nil {
				apply()
			}
			if s.state == StatePaired {
				// First successful command round trip.
				s.toStateLocked(StateActive, "")
				activated = true
			}
		}
		s.mu.Unlock()

		if activated {
			s.emitStateChanged(StatePaired, StateActive, "")
		}

	case command.NotificationUnknown:
		// Forward compatibility: ignore.
	}
}

// handleTransportDisconnect settles a dropped link.
func (s *PairingSession) handleTransportDisconnect(attempt uint64) {
	s.mu.Lock()
	if s.attempt != attempt || !s.state.linked() {
		s.mu.Unlock()
		return
	}
	old := s.state
	s.conn = nil
	s.passChar = nil
	keys.Zero(s.sessionKey)
	s.sessionKey = nil
	s.pending = make(map[uint8]func())
	s.toStateLocked(StateDisconnected, "transport disconnected")
	s.mu.Unlock()

	s.emitStateChanged(old, StateDisconnected, "transport disconnected")
	s.emit(Event{Kind: EventDisconnected, Device: s.Snapshot(), Reason: "transport disconnected"})
}

// settle moves attempt's state from -> to if it is still current.
// Returns true when the transition happened.
func (s *PairingSession) settle(attempt uint64, from, to State, reason string) bool {
	s.mu.Lock()
	if s.attempt != attempt || s.state != from {
		s.mu.Unlock()
		return false
	}
	s.conn = nil
	s.passChar = nil
	keys.Zero(s.sessionKey)
	s.sessionKey = nil
	s.toStateLocked(to, reason)
	s.mu.Unlock()
	s.emitStateChanged(from, to, reason)
	return true
}

// toStateLocked records a transition. Caller holds s.mu and emits the sink
// event after unlocking.
func (s *PairingSession) toStateLocked(to State, reason string) {
	from := s.state
	s.state = to
	s.plog.Log(log.Event{
		Timestamp:     time.Now(),
		SessionID:     s.id,
		DeviceAddress: s.identity.Address,
		ModelID:       s.identity.ModelID,
		Category:      log.CategoryStateChange,
		StateChange: &log.StateChangeEvent{
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

func (s *PairingSession) emitStateChanged(from, to State, reason string) {
	s.emit(Event{
		Kind:     EventStateChanged,
		Device:   s.Snapshot(),
		Reason:   reason,
		OldState: from,
		NewState: to,
	})
}

func (s *PairingSession) emit(event Event) {
	s.sink.OnEvent(event)
}

func (s *PairingSession) logError(step string, err error) {
	s.logger.Debug("session error",
		"address", s.identity.Address,
		"step", step,
		"error", err)
	s.plog.Log(log.Event{
		Timestamp:     time.Now(),
		SessionID:     s.id,
		DeviceAddress: s.identity.Address,
		Category:      log.CategoryError,
		Error:         &log.ErrorEventData{Message: err.Error(), Step: step},
	})
}

// failureReason maps protocol errors onto the named reasons surfaced to
// callers, so a UI can decide whether a retry prompt makes sense.
func failureReason(err error) string {
	switch {
	case errors.Is(err, keys.ErrInvalidPeerKey):
		return "invalid peer key"
	case errors.Is(err, keys.ErrAuthenticationFailed):
		return "authentication failed"
	case errors.Is(err, keys.ErrEntropyExhausted):
		return "entropy exhausted"
	case errors.Is(err, pairing.ErrTimeout):
		return "timeout"
	case errors.Is(err, pairing.ErrRejected):
		return "rejected by device"
	case errors.Is(err, transport.ErrDisconnected):
		return "transport disconnected"
	case errors.Is(err, transport.ErrDeviceNotFound):
		return "device not found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}
