package session

// EventKind identifies a device-lifecycle event.
type EventKind uint8

const (
	// EventDeviceDiscovered - first qualifying advertisement for an identity.
	EventDeviceDiscovered EventKind = iota

	// EventHandshakeCompleted - session reached Paired.
	EventHandshakeCompleted

	// EventHandshakeFailed - handshake aborted with a named reason.
	EventHandshakeFailed

	// EventBatteryUpdated - a battery report arrived.
	EventBatteryUpdated

	// EventDisconnected - the transport link dropped or was closed.
	EventDisconnected

	// EventStateChanged - any state transition (superset of the above,
	// for observers that render full lifecycle).
	EventStateChanged
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventDeviceDiscovered:
		return "DEVICE_DISCOVERED"
	case EventHandshakeCompleted:
		return "HANDSHAKE_COMPLETED"
	case EventHandshakeFailed:
		return "HANDSHAKE_FAILED"
	case EventBatteryUpdated:
		return "BATTERY_UPDATED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventStateChanged:
		return "STATE_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// Event is a device-lifecycle notification emitted by the engine.
// The engine makes no assumption about how or whether it is surfaced.
type Event struct {
	Kind EventKind

	// Device is a snapshot at emission time.
	Device DiscoveredDevice

	// Reason names the failure for EventHandshakeFailed and the cause
	// for EventDisconnected, when known.
	Reason string

	// OldState/NewState are set for EventStateChanged.
	OldState State
	NewState State
}

// EventSink receives engine events. Implementations must be quick or queue;
// the engine calls sinks synchronously from session goroutines.
type EventSink interface {
	OnEvent(event Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(event Event)

// OnEvent calls the function.
func (f EventSinkFunc) OnEvent(event Event) { f(event) }

// noopSink discards events.
type noopSink struct{}

func (noopSink) OnEvent(Event) {}
