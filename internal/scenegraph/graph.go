package scenegraph

import (
	"fmt"
	"strings"
	"sync"
)

// Object is one entry of a graph's object table.
type Object struct {
	PathID   int64
	ClassID  int32
	TypeName string
	File     string

	once sync.Once
	load func() (Tree, error)
	tree Tree
	err  error
}

// NewObject returns an object whose field tree is already materialized.
func NewObject(pathID int64, typeName string, tree Tree) *Object {
	return &Object{PathID: pathID, TypeName: typeName, load: func() (Tree, error) { return tree, nil }}
}

// NewFailingObject returns an object whose field tree cannot be decoded.
func NewFailingObject(pathID int64, typeName string, err error) *Object {
	return &Object{PathID: pathID, TypeName: typeName, load: func() (Tree, error) { return nil, err }}
}

// Tree decodes the object's fields on first use and returns the memoized
// result afterwards.
func (o *Object) Tree() (Tree, error) {
	o.once.Do(func() {
		if o.load == nil {
			o.err = fmt.Errorf("object %d has no payload", o.PathID)
			return
		}
		o.tree, o.err = o.load()
		o.load = nil
	})
	return o.tree, o.err
}

// Graph is the decoded object table of one bundle.
type Graph struct {
	objects []*Object
	byPath  map[int64]*Object
}

// NewGraph builds a graph from objects in table order. When path ids repeat
// the later object wins lookups.
func NewGraph(objects ...*Object) *Graph {
	g := &Graph{byPath: make(map[int64]*Object, len(objects))}
	for _, obj := range objects {
		g.add(obj)
	}
	return g
}

func (g *Graph) add(obj *Object) {
	g.objects = append(g.objects, obj)
	g.byPath[obj.PathID] = obj
}

// Objects returns the object table in file order.
func (g *Graph) Objects() []*Object { return g.objects }

// Len returns the number of objects.
func (g *Graph) Len() int { return len(g.objects) }

// Lookup returns the object with the given path id.
func (g *Graph) Lookup(pathID int64) (*Object, bool) {
	obj, ok := g.byPath[pathID]
	return obj, ok
}

// OfType returns the objects whose type name matches typeName.
func (g *Graph) OfType(typeName string) []*Object {
	var out []*Object
	for _, obj := range g.objects {
		if obj.TypeName == typeName {
			out = append(out, obj)
		}
	}
	return out
}

// Load decodes a UnityFS archive or a bare serialized file into a graph.
func Load(data []byte) (*Graph, error) {
	if !IsArchive(data) {
		file, err := ReadSerializedFile("", data)
		if err != nil {
			return nil, err
		}
		g := NewGraph()
		g.addFile(file)
		return g, nil
	}
	archive, err := ReadArchive(data)
	if err != nil {
		return nil, err
	}
	g := NewGraph()
	for _, entry := range archive.Entries {
		if isResourceEntry(entry.Path) {
			continue
		}
		if entry.Flags&nodeFlagSerialized == 0 && !looksSerialized(entry.Data) {
			continue
		}
		file, err := ReadSerializedFile(entry.Path, entry.Data)
		if err != nil {
			return nil, err
		}
		g.addFile(file)
	}
	return g, nil
}

func (g *Graph) addFile(file *SerializedFile) {
	for _, info := range file.objects {
		g.add(&Object{
			PathID:   info.pathID,
			ClassID:  info.typ.ClassID,
			TypeName: info.typ.Name(),
			File:     file.Name,
			load:     func() (Tree, error) { return file.objectTree(info) },
		})
	}
}

func isResourceEntry(path string) bool {
	return strings.HasSuffix(path, ".resS") || strings.HasSuffix(path, ".resource")
}
