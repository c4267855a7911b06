package command

import (
	"errors"
	"fmt"
)

// Codec errors.
var (
	ErrShortPayload   = errors.New("notification payload too short")
	ErrInvalidBattery = errors.New("battery percentage out of range")
	ErrInvalidMode    = errors.New("invalid mode value")
)

// Command opcodes on the passthrough characteristic (host to device).
const (
	OpcodeANC    uint8 = 0x10
	OpcodeEQ     uint8 = 0x11
	OpcodeVolume uint8 = 0x12
)

// Notification opcodes (device to host).
const (
	OpcodeBattery uint8 = 0x20
	OpcodeAck     uint8 = 0x21
)

// Ack status bytes.
const (
	ackStatusAccepted uint8 = 0x00
	ackStatusRejected uint8 = 0x01
)

// ANCMode is a noise-control mode.
type ANCMode uint8

const (
	ANCOff ANCMode = iota
	ANCNoiseCancellation
	ANCTransparency
)

// String returns the mode name.
func (m ANCMode) String() string {
	switch m {
	case ANCOff:
		return "OFF"
	case ANCNoiseCancellation:
		return "NOISE_CANCELLATION"
	case ANCTransparency:
		return "TRANSPARENCY"
	default:
		return "UNKNOWN"
	}
}

// Next returns the next mode in the cyclic three-state toggle:
// Off -> NoiseCancellation -> Transparency -> Off.
func (m ANCMode) Next() ANCMode {
	switch m {
	case ANCOff:
		return ANCNoiseCancellation
	case ANCNoiseCancellation:
		return ANCTransparency
	default:
		return ANCOff
	}
}

// Valid reports whether the mode is one of the three defined states.
func (m ANCMode) Valid() bool {
	return m <= ANCTransparency
}

// EQPreset is an equalizer preset.
type EQPreset uint8

const (
	EQBalanced EQPreset = iota
	EQBassBoost
	EQTrebleBoost
	EQVocal
	EQRock
	EQJazz
)

// String returns the preset name.
func (p EQPreset) String() string {
	switch p {
	case EQBalanced:
		return "BALANCED"
	case EQBassBoost:
		return "BASS_BOOST"
	case EQTrebleBoost:
		return "TREBLE_BOOST"
	case EQVocal:
		return "VOCAL"
	case EQRock:
		return "ROCK"
	case EQJazz:
		return "JAZZ"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether the preset is in the defined set.
func (p EQPreset) Valid() bool {
	return p <= EQJazz
}

// EncodeANC builds the noise-control command payload.
func EncodeANC(mode ANCMode) ([]byte, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: ANC 0x%02X", ErrInvalidMode, uint8(mode))
	}
	return []byte{OpcodeANC, uint8(mode)}, nil
}

// EncodeEQ builds the equalizer-preset command payload.
func EncodeEQ(preset EQPreset) ([]byte, error) {
	if !preset.Valid() {
		return nil, fmt.Errorf("%w: EQ 0x%02X", ErrInvalidMode, uint8(preset))
	}
	return []byte{OpcodeEQ, uint8(preset)}, nil
}

// EncodeVolume builds the volume command payload. The level is a normalized
// 0.0-1.0 value; out-of-range input is clamped, never rejected.
func EncodeVolume(level float64) []byte {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	return []byte{OpcodeVolume, uint8(level*100 + 0.5)}
}

// NotificationKind classifies a decoded notification.
type NotificationKind uint8

const (
	// NotificationUnknown - unrecognized opcode, ignored.
	NotificationUnknown NotificationKind = iota

	// NotificationBattery - battery percentage report.
	NotificationBattery

	// NotificationAck - command acknowledgement.
	NotificationAck
)

// Notification is a decoded device notification.
type Notification struct {
	Kind NotificationKind

	// Battery is the reported percentage (0-100), for NotificationBattery.
	Battery uint8

	// Opcode echoes the acknowledged command, for NotificationAck.
	Opcode uint8

	// Accepted reports whether the command was accepted, for NotificationAck.
	Accepted bool
}

// DecodeNotification parses a passthrough notification. Unrecognized opcodes
// yield NotificationUnknown with a nil error; malformed payloads for known
// opcodes are errors.
func DecodeNotification(payload []byte) (Notification, error) {
	if len(payload) < 1 {
		return Notification{}, ErrShortPayload
	}

	switch payload[0] {
	case OpcodeBattery:
		if len(payload) < 2 {
			return Notification{}, fmt.Errorf("battery report: %w", ErrShortPayload)
		}
		pct := payload[1]
		if pct > 100 {
			return Notification{}, fmt.Errorf("%w: %d", ErrInvalidBattery, pct)
		}
		return Notification{Kind: NotificationBattery, Battery: pct}, nil

	case OpcodeAck:
		if len(payload) < 3 {
			return Notification{}, fmt.Errorf("ack: %w", ErrShortPayload)
		}
		return Notification{
			Kind:     NotificationAck,
			Opcode:   payload[1],
			Accepted: payload[2] == ackStatusAccepted,
		}, nil

	default:
		// Forward compatibility: unknown opcodes are not an error.
		return Notification{Kind: NotificationUnknown}, nil
	}
}

// EncodeBattery builds a battery notification. Used by the device side.
func EncodeBattery(pct uint8) ([]byte, error) {
	if pct > 100 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBattery, pct)
	}
	return []byte{OpcodeBattery, pct}, nil
}

// EncodeAck builds a command acknowledgement. Used by the device side.
func EncodeAck(opcode uint8, accepted bool) []byte {
	status := ackStatusRejected
	if accepted {
		status = ackStatusAccepted
	}
	return []byte{OpcodeAck, opcode, status}
}
