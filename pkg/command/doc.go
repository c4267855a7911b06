// Package command encodes device-control intents (noise control, equalizer,
// volume) into passthrough-characteristic writes and decodes device
// notifications (battery reports, command acknowledgements) back out.
//
// Unrecognized notification opcodes are ignored for forward compatibility;
// malformed payloads for known opcodes are typed errors.
package command
