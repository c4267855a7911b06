package pairing

import (
	"errors"
	"fmt"

	"github.com/nearpair-protocol/nearpair-go/pkg/keys"
)

// Message errors.
var (
	ErrShortMessage    = errors.New("message too short")
	ErrUnexpectedType  = errors.New("unexpected message type")
	ErrInvalidKeyBytes = errors.New("invalid public key length")
)

// Wire sizes on the key-based-pairing characteristic.
const (
	// pairingMessageSize is type byte plus an uncompressed P-256 point.
	pairingMessageSize = 1 + keys.PublicKeySize

	// AckSize is the single status byte on the account-key characteristic.
	AckSize = 1
)

// EncodePairingRequest builds the key-based-pairing request:
// message type 0x00 followed by the host's raw public point.
func EncodePairingRequest(hostPublic []byte) ([]byte, error) {
	if len(hostPublic) != keys.PublicKeySize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeyBytes, len(hostPublic))
	}
	msg := make([]byte, 0, pairingMessageSize)
	msg = append(msg, MsgTypeKeyBasedPairingRequest)
	return append(msg, hostPublic...), nil
}

// DecodePairingRequest parses a key-based-pairing request and returns the
// host public key bytes. Used by the device side.
func DecodePairingRequest(payload []byte) ([]byte, error) {
	return decodePairingMessage(payload, MsgTypeKeyBasedPairingRequest)
}

// EncodePairingResponse builds the key-based-pairing response:
// message type 0x01 followed by the device's raw public point.
func EncodePairingResponse(devicePublic []byte) ([]byte, error) {
	if len(devicePublic) != keys.PublicKeySize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeyBytes, len(devicePublic))
	}
	msg := make([]byte, 0, pairingMessageSize)
	msg = append(msg, MsgTypeKeyBasedPairingResponse)
	return append(msg, devicePublic...), nil
}

// DecodePairingResponse parses a key-based-pairing response and returns the
// device public key bytes. The payload is untrusted; length and type are
// validated before any fixed-offset read.
func DecodePairingResponse(payload []byte) ([]byte, error) {
	return decodePairingMessage(payload, MsgTypeKeyBasedPairingResponse)
}

func decodePairingMessage(payload []byte, wantType uint8) ([]byte, error) {
	if len(payload) < 1 {
		return nil, ErrShortMessage
	}
	if payload[0] != wantType {
		return nil, fmt.Errorf("%w: got 0x%02X, want 0x%02X",
			ErrUnexpectedType, payload[0], wantType)
	}
	if len(payload) != pairingMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortMessage, len(payload))
	}
	key := make([]byte, keys.PublicKeySize)
	copy(key, payload[1:])
	return key, nil
}

// EncodeAck builds an account-key characteristic acknowledgement.
func EncodeAck(status uint8) []byte {
	return []byte{status}
}

// DecodeAck parses an account-key acknowledgement. Returns true when the
// device accepted the payload.
func DecodeAck(payload []byte) (bool, error) {
	if len(payload) < AckSize {
		return false, ErrShortMessage
	}
	switch payload[0] {
	case AckAccepted:
		return true, nil
	case AckRejected:
		return false, nil
	default:
		return false, fmt.Errorf("%w: status 0x%02X", ErrUnexpectedType, payload[0])
	}
}
