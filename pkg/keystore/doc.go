// Package keystore persists account keys by device identity.
//
// The Store interface is the contract the pairing engine consumes; the engine
// reads a key during re-authentication and writes exactly one key on a
// successful first-time pairing. MemoryStore suits tests and ephemeral hosts;
// FileStore persists keys to a CBOR file.
package keystore
