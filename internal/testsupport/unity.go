package testsupport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"

	"perapera/internal/scenegraph"
)

// TypeNode describes one field of a fixture type tree.
type TypeNode struct {
	Type     string
	Name     string
	Align    bool
	Children []*TypeNode
}

// Field returns a primitive field node such as "int", "SInt64" or "bool".
func Field(typ, name string) *TypeNode {
	return &TypeNode{Type: typ, Name: name}
}

// Class returns a composite node with the given fields.
func Class(typ, name string, fields ...*TypeNode) *TypeNode {
	return &TypeNode{Type: typ, Name: name, Children: fields}
}

// String returns a string field node.
func String(name string) *TypeNode {
	return &TypeNode{Type: "string", Name: name, Children: []*TypeNode{
		{Type: "Array", Name: "Array", Align: true, Children: []*TypeNode{Field("int", "size"), Field("char", "data")}},
	}}
}

// Vector returns a vector field whose elements follow elem.
func Vector(name string, elem *TypeNode) *TypeNode {
	item := *elem
	item.Name = "data"
	return &TypeNode{Type: "vector", Name: name, Children: []*TypeNode{
		{Type: "Array", Name: "Array", Align: true, Children: []*TypeNode{Field("int", "size"), &item}},
	}}
}

// PPtr returns a pointer field referencing an object of class target.
func PPtr(name, target string) *TypeNode {
	return Class("PPtr<$"+target+">", name, Field("int", "m_FileID"), Field("SInt64", "m_PathID"))
}

// Ref builds the value of a PPtr field.
func Ref(pathID int64) map[string]any {
	return map[string]any{"m_FileID": 0, "m_PathID": pathID}
}

// MonoBehaviour returns a root node carrying the standard MonoBehaviour
// header fields followed by fields.
func MonoBehaviour(fields ...*TypeNode) *TypeNode {
	base := []*TypeNode{
		PPtr("m_GameObject", "GameObject"),
		{Type: "UInt8", Name: "m_Enabled", Align: true},
		PPtr("m_Script", "MonoScript"),
		String("m_Name"),
	}
	return Class("MonoBehaviour", "Base", append(base, fields...)...)
}

// TextAsset returns the root node of a TextAsset.
func TextAsset() *TypeNode {
	return Class("TextAsset", "Base", String("m_Name"), String("m_Script"))
}

// BundleObject is one object written into a fixture serialized file.
type BundleObject struct {
	PathID  int64
	ClassID int32
	Type    *TypeNode
	Fields  map[string]any
}

// BundleOptions controls archive layout.
type BundleOptions struct {
	Compression scenegraph.Compression
	InfoAtEnd   bool
}

const fixtureUnityVersion = "2022.3.20f1"

// BuildBundle writes a UnityFS archive holding one serialized file with objs.
func BuildBundle(opts BundleOptions, objs ...BundleObject) ([]byte, error) {
	payload, err := BuildSerializedFile(objs...)
	if err != nil {
		return nil, err
	}
	block, blockKind, err := compressFixture(opts.Compression, payload)
	if err != nil {
		return nil, err
	}

	info := newFixtureWriter(binary.BigEndian, 0)
	info.write(make([]byte, 16))
	info.i32(1)
	info.u32(uint32(len(payload)))
	info.u32(uint32(len(block)))
	info.u16(uint16(blockKind))
	info.i32(1)
	info.i64(0)
	info.i64(int64(len(payload)))
	info.u32(4)
	info.cstring("CAB-fixture")
	infoRaw := info.bytes()
	infoBlock, infoKind, err := compressFixture(opts.Compression, infoRaw)
	if err != nil {
		return nil, err
	}

	flags := uint32(infoKind) | 0x40
	if opts.InfoAtEnd {
		flags |= 0x80
	}
	w := newFixtureWriter(binary.BigEndian, 0)
	w.cstring("UnityFS")
	w.u32(7)
	w.cstring("5.x.x")
	w.cstring(fixtureUnityVersion)
	sizePos := w.len()
	w.i64(0)
	w.u32(uint32(len(infoBlock)))
	w.u32(uint32(len(infoRaw)))
	w.u32(flags)
	w.align(16)
	if opts.InfoAtEnd {
		w.write(block)
		w.write(infoBlock)
	} else {
		w.write(infoBlock)
		w.write(block)
	}
	out := w.bytes()
	binary.BigEndian.PutUint64(out[sizePos:], uint64(len(out)))
	return out, nil
}

func compressFixture(kind scenegraph.Compression, data []byte) ([]byte, scenegraph.Compression, error) {
	switch kind {
	case scenegraph.CompressionNone:
		return data, scenegraph.CompressionNone, nil
	case scenegraph.CompressionLZ4, scenegraph.CompressionLZ4HC:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 || n >= len(data) {
			return data, scenegraph.CompressionNone, nil
		}
		return dst[:n], kind, nil
	case scenegraph.CompressionLZMA:
		var buf bytes.Buffer
		cfg := lzma.WriterConfig{SizeInHeader: true, Size: int64(len(data))}
		zw, err := cfg.NewWriter(&buf)
		if err != nil {
			return nil, 0, fmt.Errorf("lzma writer: %w", err)
		}
		if _, err := zw.Write(data); err != nil {
			return nil, 0, fmt.Errorf("lzma compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, 0, fmt.Errorf("lzma close: %w", err)
		}
		raw := buf.Bytes()
		// Archive blocks carry the 5 property bytes without the size field.
		out := append(append([]byte(nil), raw[:5]...), raw[13:]...)
		return out, kind, nil
	default:
		return nil, 0, fmt.Errorf("fixture compression %s not supported", kind)
	}
}

// BuildSerializedFile writes a version 22 little-endian serialized file with
// one type entry per object.
func BuildSerializedFile(objs ...BundleObject) ([]byte, error) {
	const headerSize = 48

	payloads := make([][]byte, len(objs))
	starts := make([]int64, len(objs))
	var dataLen int64
	for i, obj := range objs {
		w := newFixtureWriter(binary.LittleEndian, 0)
		for _, child := range obj.Type.Children {
			if err := encodeValue(w, child, obj.Fields[child.Name]); err != nil {
				return nil, fmt.Errorf("object %d: %w", obj.PathID, err)
			}
		}
		payloads[i] = w.bytes()
		dataLen = alignUp(dataLen, 8)
		starts[i] = dataLen
		dataLen += int64(len(payloads[i]))
	}

	meta := newFixtureWriter(binary.LittleEndian, headerSize)
	meta.cstring(fixtureUnityVersion)
	meta.i32(19) // StandaloneWindows64
	meta.u8(1)   // type trees enabled
	meta.i32(int32(len(objs)))
	for _, obj := range objs {
		meta.i32(obj.ClassID)
		meta.u8(0)
		meta.i16(-1)
		if obj.ClassID == 114 {
			meta.write(make([]byte, 16))
		}
		meta.write(make([]byte, 16))
		writeTypeTree(meta, obj.Type)
		meta.i32(0) // type dependencies
	}
	meta.i32(int32(len(objs)))
	for i, obj := range objs {
		meta.align(4)
		meta.i64(obj.PathID)
		meta.i64(starts[i])
		meta.u32(uint32(len(payloads[i])))
		meta.i32(int32(i))
	}
	meta.i32(0) // scripts
	meta.i32(0) // externals
	meta.i32(0) // ref types
	meta.cstring("")
	metadata := meta.bytes()

	dataOffset := alignUp(int64(headerSize+len(metadata)), 16)
	fileSize := dataOffset + dataLen

	out := newFixtureWriter(binary.BigEndian, 0)
	out.u32(0)
	out.u32(0)
	out.u32(22)
	out.u32(0)
	out.u8(0) // little endian
	out.write([]byte{0, 0, 0})
	out.u32(uint32(len(metadata)))
	out.i64(fileSize)
	out.i64(dataOffset)
	out.i64(0)
	out.write(metadata)
	for int64(out.len()) < dataOffset {
		out.u8(0)
	}
	for i := range payloads {
		for int64(out.len()) < dataOffset+starts[i] {
			out.u8(0)
		}
		out.write(payloads[i])
	}
	return out.bytes(), nil
}

type flatNode struct {
	node  *TypeNode
	level uint8
}

func writeTypeTree(w *fixtureWriter, root *TypeNode) {
	var flat []flatNode
	var walk func(n *TypeNode, level uint8)
	walk = func(n *TypeNode, level uint8) {
		flat = append(flat, flatNode{node: n, level: level})
		for _, c := range n.Children {
			walk(c, level+1)
		}
	}
	walk(root, 0)

	var table bytes.Buffer
	local := map[string]uint32{}
	offset := func(s string) uint32 {
		if off, ok := scenegraph.CommonStringOffset(s); ok {
			return off | 0x80000000
		}
		if off, ok := local[s]; ok {
			return off
		}
		off := uint32(table.Len())
		table.WriteString(s)
		table.WriteByte(0)
		local[s] = off
		return off
	}

	w.i32(int32(len(flat)))
	nodes := newFixtureWriter(binary.LittleEndian, 0)
	for i, f := range flat {
		nodes.u16(1)
		nodes.u8(f.level)
		flags := uint8(0)
		if f.node.Type == "Array" {
			flags = 1
		}
		nodes.u8(flags)
		nodes.u32(offset(f.node.Type))
		nodes.u32(offset(f.node.Name))
		nodes.i32(-1)
		nodes.i32(int32(i))
		meta := int32(0)
		if f.node.Align {
			meta = 0x4000
		}
		nodes.i32(meta)
		nodes.u64(0)
	}
	w.i32(int32(table.Len()))
	w.write(nodes.bytes())
	w.write(table.Bytes())
}

func encodeValue(w *fixtureWriter, node *TypeNode, value any) error {
	switch node.Type {
	case "SInt8", "UInt8", "char":
		w.u8(uint8(toInt(value)))
	case "short", "SInt16", "UInt16", "unsigned short":
		w.u16(uint16(toInt(value)))
	case "int", "SInt32", "UInt32", "unsigned int", "Type*":
		w.u32(uint32(toInt(value)))
	case "long long", "SInt64", "UInt64", "unsigned long long", "FileSize":
		w.u64(uint64(toInt(value)))
	case "float":
		w.u32(math.Float32bits(float32(toFloat(value))))
	case "double":
		w.u64(math.Float64bits(toFloat(value)))
	case "bool":
		b, _ := value.(bool)
		if b {
			w.u8(1)
		} else {
			w.u8(0)
		}
	case "string":
		s, _ := value.(string)
		w.i32(int32(len(s)))
		w.write([]byte(s))
		w.align(4)
	case "TypelessData":
		b, _ := value.([]byte)
		w.i32(int32(len(b)))
		w.write(b)
	default:
		if len(node.Children) > 0 && node.Children[0].Type == "Array" {
			array := node.Children[0]
			items, _ := value.([]any)
			w.i32(int32(len(items)))
			for _, item := range items {
				if err := encodeValue(w, array.Children[1], item); err != nil {
					return err
				}
			}
			if array.Align {
				w.align(4)
			}
			break
		}
		fields := asFields(value)
		for _, child := range node.Children {
			if err := encodeValue(w, child, fields[child.Name]); err != nil {
				return fmt.Errorf("%s.%s: %w", node.Name, child.Name, err)
			}
		}
	}
	if node.Align {
		w.align(4)
	}
	return nil
}

func asFields(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case scenegraph.Tree:
		return v
	default:
		return nil
	}
}

func toInt(value any) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint32:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

func toFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func alignUp(n, to int64) int64 {
	if rem := n % to; rem != 0 {
		return n + to - rem
	}
	return n
}

type fixtureWriter struct {
	buf   bytes.Buffer
	order binary.ByteOrder
	base  int
}

func newFixtureWriter(order binary.ByteOrder, base int) *fixtureWriter {
	return &fixtureWriter{order: order, base: base}
}

func (w *fixtureWriter) len() int       { return w.buf.Len() }
func (w *fixtureWriter) bytes() []byte  { return w.buf.Bytes() }
func (w *fixtureWriter) write(b []byte) { w.buf.Write(b) }
func (w *fixtureWriter) u8(v uint8)     { w.buf.WriteByte(v) }

func (w *fixtureWriter) u16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *fixtureWriter) u32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *fixtureWriter) u64(v uint64) {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *fixtureWriter) i16(v int16) { w.u16(uint16(v)) }
func (w *fixtureWriter) i32(v int32) { w.u32(uint32(v)) }
func (w *fixtureWriter) i64(v int64) { w.u64(uint64(v)) }

func (w *fixtureWriter) cstring(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
}

func (w *fixtureWriter) align(n int) {
	for (w.base+w.buf.Len())%n != 0 {
		w.buf.WriteByte(0)
	}
}
