package assetindex

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/poly1305"
)

const (
	saltLength       = 16
	nonceLength      = 16
	tagLength        = 16
	reservedRequired = nonceLength + tagLength
	// page1Offset is where encryption starts on the first page; the bytes
	// before it hold the salt and the plaintext page geometry.
	page1Offset = 24
)

var sqliteMagic = []byte("SQLite format 3\x00")

// ErrAuthentication is returned when a page tag does not verify, which
// usually means the key material is wrong.
var ErrAuthentication = errors.New("page authentication failed")

// IsPlaintext reports whether header starts with the SQLite file magic.
func IsPlaintext(header []byte) bool {
	return bytes.HasPrefix(header, sqliteMagic)
}

type pageCipher struct {
	key      []byte
	salt     []byte
	pageSize int
	reserved int
}

// newPageCipher reads the page geometry and salt from the first bytes of an
// encrypted database and derives the page key. Zero iterations use secret as
// the page key directly.
func newPageCipher(secret, header []byte, iterations int) (*pageCipher, error) {
	if len(header) < 100 {
		return nil, fmt.Errorf("database header: %d bytes is too short", len(header))
	}
	if len(secret) != chacha20.KeySize {
		return nil, fmt.Errorf("database key: got %d bytes, want %d", len(secret), chacha20.KeySize)
	}
	pageSize := int(binary.BigEndian.Uint16(header[16:18]))
	if pageSize == 1 {
		pageSize = 65536
	}
	if pageSize < 512 || pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("database header: invalid page size %d", pageSize)
	}
	reserved := int(header[20])
	if reserved < reservedRequired {
		return nil, fmt.Errorf("database header: %d reserved bytes, cipher needs %d", reserved, reservedRequired)
	}
	salt := append([]byte(nil), header[:saltLength]...)
	key := append([]byte(nil), secret...)
	if iterations > 0 {
		key = pbkdf2.Key(secret, salt, iterations, chacha20.KeySize, sha256.New)
	}
	return &pageCipher{key: key, salt: salt, pageSize: pageSize, reserved: reserved}, nil
}

// oneTimeKey returns the 64-byte keystream block whose first half keys the
// page MAC and whose second half keys the page content.
func (c *pageCipher) oneTimeKey(nonce []byte, counter uint32) ([]byte, error) {
	stream, err := chacha20.NewUnauthenticatedCipher(c.key, nonce[:chacha20.NonceSize])
	if err != nil {
		return nil, err
	}
	stream.SetCounter(counter)
	otk := make([]byte, 64)
	stream.XORKeyStream(otk, otk)
	return otk, nil
}

func (c *pageCipher) pageCounter(page []byte, pageNo uint32) (int, []byte, uint32) {
	n := c.pageSize - c.reserved
	nonce := page[n : n+nonceLength]
	counter := binary.LittleEndian.Uint32(nonce[nonceLength-4:]) ^ pageNo
	return n, nonce, counter
}

// decryptPage authenticates and decrypts page in place. Page numbers start
// at 1.
func (c *pageCipher) decryptPage(pageNo uint32, page []byte) error {
	if len(page) != c.pageSize {
		return fmt.Errorf("page %d: got %d bytes, want %d", pageNo, len(page), c.pageSize)
	}
	n, nonce, counter := c.pageCounter(page, pageNo)
	otk, err := c.oneTimeKey(nonce, counter)
	if err != nil {
		return fmt.Errorf("page %d: %w", pageNo, err)
	}

	if !allZero(page[:n]) {
		var macKey [32]byte
		var tag [tagLength]byte
		copy(macKey[:], otk[:32])
		copy(tag[:], page[n+nonceLength:n+nonceLength+tagLength])
		if !poly1305.Verify(&tag, page[:n+nonceLength], &macKey) {
			return fmt.Errorf("page %d: %w", pageNo, ErrAuthentication)
		}
	}

	offset := 0
	if pageNo == 1 {
		offset = page1Offset
	}
	stream, err := chacha20.NewUnauthenticatedCipher(otk[32:], nonce[:chacha20.NonceSize])
	if err != nil {
		return fmt.Errorf("page %d: %w", pageNo, err)
	}
	stream.SetCounter(counter + 1)
	stream.XORKeyStream(page[offset:n], page[offset:n])
	if pageNo == 1 {
		copy(page, sqliteMagic)
	}
	return nil
}

// decryptDatabase streams every page of src through the cipher into dst.
func decryptDatabase(secret []byte, iterations int, src io.Reader, dst io.Writer) (int, error) {
	header := make([]byte, 100)
	if _, err := io.ReadFull(src, header); err != nil {
		return 0, fmt.Errorf("read database header: %w", err)
	}
	c, err := newPageCipher(secret, header, iterations)
	if err != nil {
		return 0, err
	}
	page := make([]byte, c.pageSize)
	copy(page, header)
	filled := len(header)
	pages := 0
	for pageNo := uint32(1); ; pageNo++ {
		read, err := io.ReadFull(src, page[filled:])
		filled += read
		if errors.Is(err, io.EOF) && filled == 0 {
			return pages, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || (errors.Is(err, io.EOF) && filled != 0 && filled < c.pageSize) {
			return pages, fmt.Errorf("page %d: truncated at %d of %d bytes", pageNo, filled, c.pageSize)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return pages, fmt.Errorf("read page %d: %w", pageNo, err)
		}
		if err := c.decryptPage(pageNo, page); err != nil {
			return pages, err
		}
		if _, err := dst.Write(page); err != nil {
			return pages, fmt.Errorf("write page %d: %w", pageNo, err)
		}
		pages++
		filled = 0
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
