package scenegraph

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
)

// Archive flag bits of a UnityFS header.
const (
	flagCompressionMask   = 0x3F
	flagBlocksAndDirInfo  = 0x40
	flagBlocksInfoAtEnd   = 0x80
	flagBlockInfoPadStart = 0x200
)

// Compression identifies how an archive block is stored.
type Compression uint32

// Compression schemes found in UnityFS archives.
const (
	CompressionNone  Compression = 0
	CompressionLZMA  Compression = 1
	CompressionLZ4   Compression = 2
	CompressionLZ4HC Compression = 3
	CompressionLZHAM Compression = 4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZMA:
		return "lzma"
	case CompressionLZ4:
		return "lz4"
	case CompressionLZ4HC:
		return "lz4hc"
	case CompressionLZHAM:
		return "lzham"
	default:
		return "compression(" + strconv.Itoa(int(c)) + ")"
	}
}

const unityFSSignature = "UnityFS"

// nodeFlagSerialized marks a directory entry holding a serialized file.
const nodeFlagSerialized = 0x4

// ErrUnsupportedCompression is returned for block schemes that cannot be
// decoded.
var ErrUnsupportedCompression = errors.New("unsupported compression")

// Entry is one file stored in an archive.
type Entry struct {
	Path  string
	Flags uint32
	Data  []byte
}

// Archive is a decoded UnityFS container.
type Archive struct {
	Version       uint32
	PlayerVersion string
	EngineVersion string
	Entries       []Entry
}

type archiveBlock struct {
	uncompressed uint32
	compressed   uint32
	flags        uint16
}

type archiveNode struct {
	offset int64
	size   int64
	flags  uint32
	path   string
}

// IsArchive reports whether data starts with the UnityFS signature.
func IsArchive(data []byte) bool {
	return bytes.HasPrefix(data, []byte(unityFSSignature+"\x00"))
}

// ReadArchive decodes a UnityFS archive held in memory.
func ReadArchive(data []byte) (*Archive, error) {
	r := newReader(data, binary.BigEndian)
	if sig := r.cstring(); sig != unityFSSignature {
		if r.err != nil {
			return nil, fmt.Errorf("archive header: %w", r.err)
		}
		return nil, fmt.Errorf("archive header: unexpected signature %q", sig)
	}
	archive := &Archive{}
	archive.Version = r.u32()
	archive.PlayerVersion = r.cstring()
	archive.EngineVersion = r.cstring()
	totalSize := r.i64()
	infoCompressed := r.u32()
	infoUncompressed := r.u32()
	flags := r.u32()
	if r.err != nil {
		return nil, fmt.Errorf("archive header: %w", r.err)
	}
	if archive.Version < 6 || archive.Version > 8 {
		return nil, fmt.Errorf("archive version %d not supported", archive.Version)
	}
	if totalSize > int64(len(data)) {
		return nil, fmt.Errorf("archive declares %d bytes but only %d present", totalSize, len(data))
	}

	if archive.Version >= 7 {
		r.align(16)
	} else if engineAtLeast(archive.EngineVersion, 2019, 4) {
		// Some 2019.4 builds pad the header even in version 6 archives.
		start := r.pos
		if pad := r.bytes((16 - start%16) % 16); r.err == nil && bytes.Count(pad, []byte{0}) != len(pad) {
			r.seek(start)
		}
	}

	var infoRaw []byte
	if flags&flagBlocksInfoAtEnd != 0 {
		end := len(data) - int(infoCompressed)
		if end < r.pos {
			return nil, fmt.Errorf("archive blocks info: offset %d precedes header", end)
		}
		infoRaw = data[end:]
	} else {
		infoRaw = r.bytes(int(infoCompressed))
	}
	if r.err != nil {
		return nil, fmt.Errorf("archive blocks info: %w", r.err)
	}
	info, err := decompress(Compression(flags&flagCompressionMask), infoRaw, int(infoUncompressed))
	if err != nil {
		return nil, fmt.Errorf("archive blocks info: %w", err)
	}
	blocks, nodes, err := parseBlocksInfo(info)
	if err != nil {
		return nil, err
	}
	if flags&flagBlockInfoPadStart != 0 {
		r.align(16)
	}

	var storage bytes.Buffer
	for i, block := range blocks {
		raw := r.bytes(int(block.compressed))
		if r.err != nil {
			return nil, fmt.Errorf("archive block %d: %w", i, r.err)
		}
		plain, err := decompress(Compression(block.flags&flagCompressionMask), raw, int(block.uncompressed))
		if err != nil {
			return nil, fmt.Errorf("archive block %d: %w", i, err)
		}
		storage.Write(plain)
	}

	payload := storage.Bytes()
	for _, node := range nodes {
		if node.offset < 0 || node.size < 0 || node.offset+node.size > int64(len(payload)) {
			return nil, fmt.Errorf("archive entry %q: range %d+%d outside %d bytes", node.path, node.offset, node.size, len(payload))
		}
		archive.Entries = append(archive.Entries, Entry{
			Path:  node.path,
			Flags: node.flags,
			Data:  payload[node.offset : node.offset+node.size],
		})
	}
	return archive, nil
}

func parseBlocksInfo(info []byte) ([]archiveBlock, []archiveNode, error) {
	r := newReader(info, binary.BigEndian)
	r.skip(16) // uncompressed data hash
	blocks := make([]archiveBlock, r.count(10))
	for i := range blocks {
		blocks[i] = archiveBlock{uncompressed: r.u32(), compressed: r.u32(), flags: r.u16()}
	}
	nodes := make([]archiveNode, r.count(21))
	for i := range nodes {
		nodes[i] = archiveNode{offset: r.i64(), size: r.i64(), flags: r.u32(), path: r.cstring()}
	}
	if r.err != nil {
		return nil, nil, fmt.Errorf("archive blocks info: %w", r.err)
	}
	return blocks, nodes, nil
}

func decompress(kind Compression, src []byte, size int) ([]byte, error) {
	switch kind {
	case CompressionNone:
		if len(src) != size {
			return nil, fmt.Errorf("stored block: size %d does not match expected %d", len(src), size)
		}
		return src, nil
	case CompressionLZ4, CompressionLZ4HC:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
		}
		return dst, nil
	case CompressionLZMA:
		return decompressLZMA(src, size)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, kind)
	}
}

// decompressLZMA decodes a raw LZMA stream prefixed by its 5 property bytes.
// The classic .lzma header expected by the decoder adds the uncompressed size.
func decompressLZMA(src []byte, size int) ([]byte, error) {
	if len(src) < 5 {
		return nil, fmt.Errorf("lzma decompress: stream of %d bytes lacks properties", len(src))
	}
	header := make([]byte, 13)
	copy(header, src[:5])
	binary.LittleEndian.PutUint64(header[5:], uint64(size))
	stream, err := lzma.NewReader(io.MultiReader(bytes.NewReader(header), bytes.NewReader(src[5:])))
	if err != nil {
		return nil, fmt.Errorf("lzma decompress: %w", err)
	}
	dst := make([]byte, size)
	if _, err := io.ReadFull(stream, dst); err != nil {
		return nil, fmt.Errorf("lzma decompress: %w", err)
	}
	return dst, nil
}

// engineAtLeast compares the leading "major.minor" of a Unity version string.
func engineAtLeast(version string, major, minor int) bool {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return false
	}
	gotMajor, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	gotMinor, err := strconv.Atoi(strings.TrimRightFunc(parts[1], func(r rune) bool { return r < '0' || r > '9' }))
	if err != nil {
		return false
	}
	if gotMajor != major {
		return gotMajor > major
	}
	return gotMinor >= minor
}
