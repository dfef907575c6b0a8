package scenegraph

import (
	"encoding/binary"
	"fmt"
)

// Serialized file format versions this parser accepts.
const (
	minSerializedVersion = 14
	maxSerializedVersion = 23
)

// SerializedType is one entry of a serialized file's type table.
type SerializedType struct {
	ClassID int32
	Root    *TypeNode
}

// Name returns the type's name from its type tree, falling back to the
// built-in class table.
func (t *SerializedType) Name() string {
	if t.Root != nil && t.Root.Type != "" {
		return t.Root.Type
	}
	if name, ok := classNames[t.ClassID]; ok {
		return name
	}
	return fmt.Sprintf("Class%d", t.ClassID)
}

type objectInfo struct {
	pathID    int64
	byteStart int64
	byteSize  uint32
	typ       *SerializedType
}

// SerializedFile is a parsed serialized file.
type SerializedFile struct {
	Name         string
	Version      uint32
	UnityVersion string
	Platform     int32
	TypeTrees    bool
	Types        []*SerializedType
	order        binary.ByteOrder
	data         []byte
	objects      []objectInfo
}

// looksSerialized performs a cheap sanity check of the fixed header.
func looksSerialized(data []byte) bool {
	if len(data) < 20 {
		return false
	}
	version := binary.BigEndian.Uint32(data[8:12])
	return version >= minSerializedVersion && version <= maxSerializedVersion
}

// ReadSerializedFile parses the header, type table and object table of a
// serialized file. Object payloads are decoded later on demand.
func ReadSerializedFile(name string, data []byte) (*SerializedFile, error) {
	r := newReader(data, binary.BigEndian)
	r.skip(4) // metadata size
	fileSize := int64(r.u32())
	version := r.u32()
	dataOffset := int64(r.u32())
	if r.err != nil {
		return nil, fmt.Errorf("serialized file %s header: %w", name, r.err)
	}
	if version < minSerializedVersion || version > maxSerializedVersion {
		return nil, fmt.Errorf("serialized file %s: version %d not supported", name, version)
	}
	endian := r.u8()
	r.skip(3)
	if version >= 22 {
		r.skip(4) // metadata size
		fileSize = r.i64()
		dataOffset = r.i64()
		r.skip(8)
	}
	if r.err != nil {
		return nil, fmt.Errorf("serialized file %s header: %w", name, r.err)
	}
	if fileSize > int64(len(data)) || dataOffset > int64(len(data)) {
		return nil, fmt.Errorf("serialized file %s: header declares %d bytes, data at %d, but only %d present", name, fileSize, dataOffset, len(data))
	}
	if endian == 0 {
		r.order = binary.LittleEndian
	}

	file := &SerializedFile{Name: name, Version: version, order: r.order, data: data}
	file.UnityVersion = r.cstring()
	file.Platform = r.i32()
	file.TypeTrees = r.boolean()

	file.Types = make([]*SerializedType, r.count(4))
	for i := range file.Types {
		typ, err := file.readType(r)
		if err != nil {
			return nil, fmt.Errorf("serialized file %s type %d: %w", name, i, err)
		}
		file.Types[i] = typ
	}

	objects := make([]objectInfo, r.count(20))
	for i := range objects {
		r.align(4)
		info := objectInfo{pathID: r.i64()}
		if version >= 22 {
			info.byteStart = r.i64()
		} else {
			info.byteStart = int64(r.u32())
		}
		info.byteStart += dataOffset
		info.byteSize = r.u32()
		typeID := r.i32()
		if version < 16 {
			r.skip(2) // class id, equal to typeID in these versions
		}
		if version < 17 {
			r.skip(2) // script type index
		}
		if version == 15 || version == 16 {
			r.skip(1) // stripped
		}
		if r.err != nil {
			return nil, fmt.Errorf("serialized file %s object %d: %w", name, i, r.err)
		}
		if version < 16 {
			info.typ = file.typeByClass(typeID)
		} else if typeID >= 0 && int(typeID) < len(file.Types) {
			info.typ = file.Types[typeID]
		}
		if info.typ == nil {
			return nil, fmt.Errorf("serialized file %s object %d: unknown type %d", name, i, typeID)
		}
		if info.byteStart < 0 || info.byteStart+int64(info.byteSize) > int64(len(data)) {
			return nil, fmt.Errorf("serialized file %s object %d: payload %d+%d outside %d bytes", name, info.pathID, info.byteStart, info.byteSize, len(data))
		}
		objects[i] = info
	}
	if r.err != nil {
		return nil, fmt.Errorf("serialized file %s objects: %w", name, r.err)
	}
	file.objects = objects
	return file, nil
}

func (f *SerializedFile) typeByClass(classID int32) *SerializedType {
	for _, typ := range f.Types {
		if typ.ClassID == classID {
			return typ
		}
	}
	return &SerializedType{ClassID: classID}
}

func (f *SerializedFile) readType(r *reader) (*SerializedType, error) {
	typ := &SerializedType{ClassID: r.i32()}
	if f.Version >= 16 {
		r.skip(1) // stripped
	}
	if f.Version >= 17 {
		r.skip(2) // script type index
	}
	if (f.Version < 16 && typ.ClassID < 0) || (f.Version >= 16 && typ.ClassID == 114) {
		r.skip(16) // script id
	}
	r.skip(16) // old type hash
	if f.TypeTrees {
		root, err := f.readTypeTreeBlob(r)
		if err != nil {
			return nil, err
		}
		typ.Root = root
		if f.Version >= 21 {
			deps := r.count(4)
			r.skip(deps * 4)
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return typ, nil
}

func (f *SerializedFile) readTypeTreeBlob(r *reader) (*TypeNode, error) {
	nodeSize := 24
	if f.Version >= 19 {
		nodeSize = 32
	}
	count := r.count(nodeSize)
	stringsSize := r.count(1)
	type rawNode struct {
		typeOffset uint32
		nameOffset uint32
		node       *TypeNode
	}
	raw := make([]rawNode, count)
	for i := range raw {
		r.skip(2) // node version
		node := &TypeNode{Level: r.u8()}
		r.skip(1) // type flags
		raw[i].typeOffset = r.u32()
		raw[i].nameOffset = r.u32()
		node.ByteSize = r.i32()
		r.skip(4) // index
		node.MetaFlag = r.i32()
		if f.Version >= 19 {
			r.skip(8) // ref type hash
		}
		raw[i].node = node
	}
	table := r.bytes(stringsSize)
	if r.err != nil {
		return nil, fmt.Errorf("type tree: %w", r.err)
	}
	flat := make([]*TypeNode, count)
	for i := range raw {
		var err error
		if raw[i].node.Type, err = typeTreeString(table, raw[i].typeOffset); err != nil {
			return nil, err
		}
		if raw[i].node.Name, err = typeTreeString(table, raw[i].nameOffset); err != nil {
			return nil, err
		}
		flat[i] = raw[i].node
	}
	return buildTypeTree(flat)
}

func typeTreeString(table []byte, offset uint32) (string, error) {
	if offset&0x80000000 != 0 {
		if s, ok := commonStringOffsets[offset&0x7FFFFFFF]; ok {
			return s, nil
		}
		return fmt.Sprintf("unknown_%d", offset&0x7FFFFFFF), nil
	}
	r := newReader(table, binary.LittleEndian)
	r.seek(int(offset))
	s := r.cstring()
	if r.err != nil {
		return "", fmt.Errorf("type tree string at %d: %w", offset, r.err)
	}
	return s, nil
}

// objectTree decodes the payload of one object.
func (f *SerializedFile) objectTree(info objectInfo) (Tree, error) {
	if info.typ.Root == nil {
		return nil, fmt.Errorf("object %d (%s): no type tree stored", info.pathID, info.typ.Name())
	}
	payload := f.data[info.byteStart : info.byteStart+int64(info.byteSize)]
	tree, err := readTree(info.typ.Root, newReader(payload, f.order))
	if err != nil {
		return nil, fmt.Errorf("object %d (%s): %w", info.pathID, info.typ.Name(), err)
	}
	return tree, nil
}
