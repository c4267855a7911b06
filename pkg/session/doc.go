// Package session owns the per-device pairing lifecycle and the registry
// that routes transport events to it.
//
// Each discovered device gets exactly one PairingSession, which is the sole
// authority for that device's state transitions. The registry only looks up
// and routes; all mutation happens inside the owning session under its own
// lock, so sessions for different devices progress fully in parallel.
package session
