package pairing

import "github.com/nearpair-protocol/nearpair-go/pkg/advert"

// Well-known protocol constants. These values are fixed by the proximity
// pairing protocol and must match exactly for interoperability.
const (
	// ServiceUUID is the 16-bit pairing service UUID advertised by
	// candidate devices and used for GATT characteristic discovery.
	ServiceUUID = advert.ServiceUUID

	// CharModelID is the model-id characteristic.
	CharModelID uint16 = 0x1233

	// CharKeyBasedPairing is the key-based-pairing characteristic carrying
	// the handshake request/response.
	CharKeyBasedPairing uint16 = 0x1234

	// CharPassthrough is the passthrough characteristic carrying device
	// control commands and notifications.
	CharPassthrough uint16 = 0x1235

	// CharAccountKey is the account-key characteristic.
	CharAccountKey uint16 = 0x1236
)

// Handshake message types on the key-based-pairing characteristic.
const (
	// MsgTypeKeyBasedPairingRequest starts the handshake (host to device).
	MsgTypeKeyBasedPairingRequest uint8 = 0x00

	// MsgTypeKeyBasedPairingResponse carries the device's public key.
	MsgTypeKeyBasedPairingResponse uint8 = 0x01
)

// Account-key characteristic acknowledgement status bytes.
const (
	// AckAccepted confirms the account-key write or re-auth proof.
	AckAccepted uint8 = 0x01

	// AckRejected signals the device refused the payload.
	AckRejected uint8 = 0x02
)
