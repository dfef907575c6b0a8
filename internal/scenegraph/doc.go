// Package scenegraph decodes Unity asset bundles into an object graph.
//
// Load accepts either a UnityFS archive or a bare serialized file. Archive
// blocks may be stored raw or compressed with LZMA, LZ4 or LZ4HC. Every
// serialized file inside the archive contributes its objects to one Graph,
// keyed by path id. Objects carry their type name and class id; their field
// trees are decoded from the embedded type tree on first access and memoized.
//
// Field trees use a small set of Go types: int64, float64, bool, string,
// []byte (TypelessData), []any (vectors and arrays), []Pair (maps) and Tree
// (nested classes).
package scenegraph
