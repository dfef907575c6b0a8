package keys

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Default key material shipped with the game client.
const (
	DefaultDBKeyHex         = "6d5b65336336632554712d73505363386d34377b356370233734532973433633"
	DefaultDBSaltHex        = "f170cea4dfcea3e1a5d8c70bd1000000"
	DefaultBundleBaseKeyHex = "532b4631e4a7b9473e7cfb"
)

// ClearHeaderSize is the length of the unencrypted container header that
// precedes the XORed region of every bundle.
const ClearHeaderSize = 256

// saltSpan is the number of salt bytes cycled over the DB secret.
const saltSpan = 13

// ErrInvalidSaltLength reports a salt shorter than the 13 bytes the DB key
// derivation cycles over.
var ErrInvalidSaltLength = errors.New("invalid salt length")

// DeriveDBKey produces the index database key: out[i] = secret[i] ^ salt[i%13].
func DeriveDBKey(secret, salt []byte) ([]byte, error) {
	if len(salt) < saltSpan {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidSaltLength, saltSpan, len(salt))
	}
	out := make([]byte, len(secret))
	for i, b := range secret {
		out[i] = b ^ salt[i%saltSpan]
	}
	return out, nil
}

// ExpandBundleKey expands the per-bundle integer key over base into a keystream
// of len(base)*8 bytes. Byte i*8+j is base[i] XOR the j-th little-endian byte
// of bundleKey.
func ExpandBundleKey(base []byte, bundleKey int64) []byte {
	var kb [8]byte
	binary.LittleEndian.PutUint64(kb[:], uint64(bundleKey))
	out := make([]byte, len(base)*8)
	for i, b := range base {
		offset := i * 8
		for j, k := range kb {
			out[offset+j] = b ^ k
		}
	}
	return out
}

// ShouldDecrypt reports whether a payload of the given size stored under
// bundleKey carries an encrypted region.
func ShouldDecrypt(bundleKey int64, size int) bool {
	return bundleKey != 0 && size > ClearHeaderSize
}

// DecryptBundle XORs every byte at offset >= 256 with keystream[offset%len].
// The first 256 bytes are returned unchanged. The input slice is not modified.
func DecryptBundle(payload, keystream []byte) []byte {
	out := make([]byte, len(payload))
	copy(out, payload)
	if len(keystream) == 0 {
		return out
	}
	for i := ClearHeaderSize; i < len(out); i++ {
		out[i] ^= keystream[i%len(keystream)]
	}
	return out
}

// ParseHex decodes a hex key string, tolerating whitespace and an optional 0x
// prefix.
func ParseHex(value string) ([]byte, error) {
	cleaned := strings.Join(strings.Fields(value), "")
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "0x"), "0X")
	if cleaned == "" {
		return nil, errors.New("empty key")
	}
	out, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	return out, nil
}

// Material bundles the decoded key inputs used by the index and bundle decoders.
type Material struct {
	DBKey         []byte
	BundleBaseKey []byte
}

// NewMaterial decodes the hex inputs and derives the DB key.
func NewMaterial(dbKeyHex, dbSaltHex, bundleBaseKeyHex string) (Material, error) {
	secret, err := ParseHex(dbKeyHex)
	if err != nil {
		return Material{}, fmt.Errorf("db key: %w", err)
	}
	salt, err := ParseHex(dbSaltHex)
	if err != nil {
		return Material{}, fmt.Errorf("db salt: %w", err)
	}
	derived, err := DeriveDBKey(secret, salt)
	if err != nil {
		return Material{}, err
	}
	base, err := ParseHex(bundleBaseKeyHex)
	if err != nil {
		return Material{}, fmt.Errorf("bundle base key: %w", err)
	}
	return Material{DBKey: derived, BundleBaseKey: base}, nil
}
