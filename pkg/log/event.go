package log

import "time"

// Event represents a protocol log event captured by the engine.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the pairing session (UUID).
	SessionID string `cbor:"2,keyasint,omitempty"`

	// DeviceAddress is the transport address of the device.
	DeviceAddress string `cbor:"3,keyasint,omitempty"`

	// ModelID is the device's advertised model identifier, if known.
	ModelID string `cbor:"4,keyasint,omitempty"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (one of these will be set).
	Advertisement *AdvertisementEvent `cbor:"10,keyasint,omitempty"`
	StateChange   *StateChangeEvent   `cbor:"11,keyasint,omitempty"`
	Command       *CommandEvent       `cbor:"12,keyasint,omitempty"`
	Battery       *BatteryEvent       `cbor:"13,keyasint,omitempty"`
	Error         *ErrorEventData     `cbor:"14,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryAdvertisement - a qualifying advertisement was classified.
	CategoryAdvertisement Category = 0
	// CategoryStateChange - a session changed state.
	CategoryStateChange Category = 1
	// CategoryCommand - a control command round trip.
	CategoryCommand Category = 2
	// CategoryBattery - a battery report arrived.
	CategoryBattery Category = 3
	// CategoryError - an error at any layer.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryAdvertisement:
		return "ADVERTISEMENT"
	case CategoryStateChange:
		return "STATE_CHANGE"
	case CategoryCommand:
		return "COMMAND"
	case CategoryBattery:
		return "BATTERY"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// AdvertisementEvent captures a classified advertisement.
type AdvertisementEvent struct {
	// RSSI is the signal strength sample, in dBm.
	RSSI int16 `cbor:"1,keyasint"`

	// Confidence names the classification rule that matched.
	Confidence string `cbor:"2,keyasint"`

	// Name is the advertised local name, if any.
	Name string `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures a session state transition.
type StateChangeEvent struct {
	// OldState is the state before the transition.
	OldState string `cbor:"1,keyasint"`

	// NewState is the state after the transition.
	NewState string `cbor:"2,keyasint"`

	// Reason describes why, when known (e.g. the failure name).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// CommandEvent captures a control command and its outcome.
type CommandEvent struct {
	// Opcode is the command opcode.
	Opcode uint8 `cbor:"1,keyasint"`

	// Detail renders the intent (mode/preset/level).
	Detail string `cbor:"2,keyasint,omitempty"`

	// Accepted reports the device's acknowledgement, when one arrived.
	Accepted bool `cbor:"3,keyasint"`
}

// BatteryEvent captures a battery report.
type BatteryEvent struct {
	// Percentage is the reported level (0-100).
	Percentage uint8 `cbor:"1,keyasint"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`

	// Step names the protocol step that failed, when known.
	Step string `cbor:"2,keyasint,omitempty"`
}
