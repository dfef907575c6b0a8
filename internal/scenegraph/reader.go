package scenegraph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// reader is a bounds-checked cursor over a byte slice. The first out of range
// read records an error and every later read returns zero values, so parsers
// check err once per structure instead of after every field.
type reader struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
	err   error
}

func newReader(buf []byte, order binary.ByteOrder) *reader {
	return &reader{buf: buf, order: order}
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("read %d bytes at offset %d: buffer holds %d", n, r.pos, len(r.buf))
		return false
	}
	return true
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *reader) skip(n int) { r.bytes(n) }

func (r *reader) seek(pos int) {
	if r.err != nil {
		return
	}
	if pos < 0 || pos > len(r.buf) {
		r.err = fmt.Errorf("seek to %d: buffer holds %d", pos, len(r.buf))
		return
	}
	r.pos = pos
}

func (r *reader) align(n int) {
	if rem := r.pos % n; rem != 0 {
		r.skip(n - rem)
	}
}

func (r *reader) u8() uint8 {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) boolean() bool { return r.u8() != 0 }

func (r *reader) u16() uint16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return r.order.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return r.order.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return r.order.Uint64(b)
}

func (r *reader) i16() int16 { return int16(r.u16()) }
func (r *reader) i32() int32 { return int32(r.u32()) }
func (r *reader) i64() int64 { return int64(r.u64()) }

func (r *reader) f32() float32 { return math.Float32frombits(r.u32()) }
func (r *reader) f64() float64 { return math.Float64frombits(r.u64()) }

// cstring reads a NUL-terminated string.
func (r *reader) cstring() string {
	if r.err != nil {
		return ""
	}
	end := bytes.IndexByte(r.buf[r.pos:], 0)
	if end < 0 {
		r.err = fmt.Errorf("unterminated string at offset %d", r.pos)
		return ""
	}
	s := string(r.buf[r.pos : r.pos+end])
	r.pos += end + 1
	return s
}

// count reads a signed 32-bit length and rejects values that cannot fit in
// the remaining buffer given a minimum element size.
func (r *reader) count(minElem int) int {
	n := r.i32()
	if r.err != nil {
		return 0
	}
	if n < 0 {
		r.err = fmt.Errorf("negative length %d at offset %d", n, r.pos-4)
		return 0
	}
	if minElem > 0 && int(n) > (len(r.buf)-r.pos)/minElem {
		r.err = fmt.Errorf("length %d at offset %d exceeds remaining data", n, r.pos-4)
		return 0
	}
	return int(n)
}
