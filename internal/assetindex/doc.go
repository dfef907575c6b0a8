// Package assetindex reads the game's asset index database.
//
// The index ships encrypted with a page-level ChaCha20/Poly1305 cipher. Open
// decrypts it once into a plaintext copy under the cache directory, named by
// the BLAKE3 fingerprint of the encrypted file, and then serves lookups from a
// read-only SQLite connection. A meta file that already carries the SQLite
// magic is opened in place.
//
// Resolve performs an exact name lookup and falls back to a prefix match that
// returns the first row in the store's natural order. Ties between several
// prefix matches are not broken further.
package assetindex
