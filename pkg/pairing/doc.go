// Package pairing implements the key-based-pairing handshake: the message
// codec for the pairing characteristic and the protocol driver that takes a
// connection from raw characteristics to a shared session key and a
// persistent account key.
//
// The wire layout on each characteristic is a fixed interoperability contract
// (see constants.go); messages are fixed-offset binary, validated before every
// read. The handshake proper is a two-message ECDH exchange followed by either
// an account-key write (first pairing) or a possession proof bound to the
// stored account key (re-authentication).
package pairing
