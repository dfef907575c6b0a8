// Package keys derives the symmetric material used to open the encrypted
// asset index and to strip the per-bundle XOR keystream from downloaded
// asset payloads.
//
// Everything here is pure: no I/O, no global state. The keystream expansion is
// not authenticated and callers must not treat a successful decrypt as proof
// that the key was correct; the container parser downstream is the only
// integrity check.
package keys
