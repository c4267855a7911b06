// Package advert classifies raw BLE advertisement records into pairing
// candidates.
//
// Classification follows a strict priority order: service data under the
// pairing service UUID, the UUID alone, the vendor company identifier in
// manufacturer data, and finally a keyword match on the local name. The first
// matching rule wins. All parsing treats the record as untrusted input: short
// buffers produce a non-candidate result, never a panic.
//
// Category inference (earbuds/headphones/speaker) is display metadata only and
// must not feed protocol decisions.
package advert
