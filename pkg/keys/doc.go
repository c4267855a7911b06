// Package keys implements the cryptographic primitives of the pairing engine:
// ephemeral ECDH key agreement on P-256, HKDF session-key derivation,
// AES-256-GCM authenticated encryption, and account-key generation.
//
// Peer public keys are untrusted input; DeriveSharedSecret validates them and
// returns ErrInvalidPeerKey rather than panicking. Key material is wiped with
// Zero when its owning scope ends.
package keys
