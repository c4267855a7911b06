// Package transport defines the BLE capability the pairing engine consumes:
// scanning for advertisements, connecting to a device, and reading/writing
// opaque byte buffers on discovered GATT characteristics.
//
// The radio itself is outside the engine; platform integrations implement
// these interfaces. MemoryTransport provides an in-process implementation
// wired to simulated peripherals for tests and demos.
package transport
