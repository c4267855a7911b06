package session

import (
	"errors"

	"github.com/nearpair-protocol/nearpair-go/pkg/advert"
)

// Session errors.
var (
	ErrSessionBusy   = errors.New("session busy")
	ErrNotPaired     = errors.New("session not paired")
	ErrSessionClosed = errors.New("session closed")
)

// State is the pairing session state.
type State uint8

const (
	// StateDiscovered - seen in a scan, never connected.
	StateDiscovered State = iota

	// StateConnecting - transport connect in flight.
	StateConnecting

	// StateHandshaking - key-based pairing exchange in flight.
	StateHandshaking

	// StatePaired - handshake complete, session key established.
	StatePaired

	// StateActive - paired with at least one successful command round trip.
	StateActive

	// StateDisconnected - previously paired, transport dropped.
	StateDisconnected

	// StateHandshakeFailed - terminal until a fresh connect request.
	StateHandshakeFailed

	// StateConnectionFailed - terminal until a fresh connect request.
	StateConnectionFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "DISCOVERED"
	case StateConnecting:
		return "CONNECTING"
	case StateHandshaking:
		return "HANDSHAKING"
	case StatePaired:
		return "PAIRED"
	case StateActive:
		return "ACTIVE"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateHandshakeFailed:
		return "HANDSHAKE_FAILED"
	case StateConnectionFailed:
		return "CONNECTION_FAILED"
	default:
		return "UNKNOWN"
	}
}

// connectable reports whether a connect request is legal from this state.
// Failed terminal states require exactly this: a fresh connect request.
func (s State) connectable() bool {
	switch s {
	case StateDiscovered, StateDisconnected, StateHandshakeFailed, StateConnectionFailed:
		return true
	default:
		return false
	}
}

// linked reports whether the session holds a live session key.
func (s State) linked() bool {
	return s == StatePaired || s == StateActive
}

// DeviceIdentity is the stable key for a physical radio endpoint plus its
// advertised model identifier. The model id alone is not unique; the address
// is, within a discovery session.
type DeviceIdentity struct {
	// Address is the transport address or platform-assigned identifier.
	Address string

	// ModelID is the 6-hex-digit model identifier, or advert.ModelIDUnknown.
	ModelID string
}

// DiscoveredDevice is a snapshot of what the engine knows about a device.
type DiscoveredDevice struct {
	// Identity is the stable device key.
	Identity DeviceIdentity

	// Name is the best-effort advertised name. May be empty.
	Name string

	// Category is the heuristic form factor. Display metadata only.
	Category advert.Category

	// RSSI is the most recent signal strength sample, in dBm.
	RSSI int16

	// State is the session state at snapshot time.
	State State

	// Connected reports whether a live connection exists.
	Connected bool

	// Battery is the last reported percentage; nil when never reported.
	Battery *uint8
}
