package advert

import (
	"errors"
	"fmt"
	"strings"
)

// Advertisement errors.
var (
	ErrShortServiceData = errors.New("service data shorter than model id")
	ErrInvalidModelID   = errors.New("invalid model id")
)

// ModelIDUnknown is the sentinel for candidates whose advertisement carried the
// pairing service UUID but no model identifier.
const ModelIDUnknown = ""

// ModelIDLen is the length of the model identifier in service data, in bytes.
const ModelIDLen = 3

// Record is a raw BLE advertisement as delivered by the radio.
// All fields are optional; absent values are zero.
type Record struct {
	// Address is the transport address or platform identifier of the
	// advertising endpoint. Stable within a discovery session.
	Address string

	// LocalName is the advertised device name, if present.
	LocalName string

	// ServiceUUIDs lists advertised 16-bit service UUIDs.
	ServiceUUIDs []uint16

	// ServiceData maps 16-bit service UUIDs to their data payloads.
	ServiceData map[uint16][]byte

	// ManufacturerData is the raw manufacturer-specific data blob,
	// company identifier (little-endian) first.
	ManufacturerData []byte

	// RSSI is the signal strength sample for this record, in dBm.
	RSSI int16
}

// HasServiceUUID reports whether the record advertises the given 16-bit UUID.
func (r *Record) HasServiceUUID(uuid uint16) bool {
	for _, u := range r.ServiceUUIDs {
		if u == uuid {
			return true
		}
	}
	return false
}

// FormatModelID renders a 3-byte big-endian model identifier as 6 uppercase
// hex digits.
func FormatModelID(id [ModelIDLen]byte) string {
	return fmt.Sprintf("%02X%02X%02X", id[0], id[1], id[2])
}

// ParseModelID decodes a 6-hex-digit model identifier string back to its
// 3-byte form. The inverse of FormatModelID.
func ParseModelID(s string) ([ModelIDLen]byte, error) {
	var id [ModelIDLen]byte
	if len(s) != ModelIDLen*2 {
		return id, fmt.Errorf("%w: %q", ErrInvalidModelID, s)
	}
	for i := 0; i < ModelIDLen; i++ {
		hi, ok1 := hexNibble(s[2*i])
		lo, ok2 := hexNibble(s[2*i+1])
		if !ok1 || !ok2 {
			return id, fmt.Errorf("%w: %q", ErrInvalidModelID, s)
		}
		id[i] = hi<<4 | lo
	}
	return id, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}

// Category is the inferred device form factor.
type Category uint8

const (
	// CategorySpeaker is the default when no keyword matches.
	CategorySpeaker Category = iota

	// CategoryEarbuds covers in-ear devices.
	CategoryEarbuds

	// CategoryHeadphones covers over-ear devices.
	CategoryHeadphones
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryEarbuds:
		return "EARBUDS"
	case CategoryHeadphones:
		return "HEADPHONES"
	case CategorySpeaker:
		return "SPEAKER"
	default:
		return "UNKNOWN"
	}
}

// InferCategory derives a display category from the advertised name.
// Pure function over the name string; advisory only.
func InferCategory(name string) Category {
	lower := strings.ToLower(name)
	for _, kw := range []string{"bud", "pods", "in-ear", "earphone"} {
		if strings.Contains(lower, kw) {
			return CategoryEarbuds
		}
	}
	for _, kw := range []string{"headphone", "headset", "over-ear", "on-ear"} {
		if strings.Contains(lower, kw) {
			return CategoryHeadphones
		}
	}
	return CategorySpeaker
}
