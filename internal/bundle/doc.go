// Package bundle turns a logical asset name into a decoded object graph.
//
// Loading resolves the name through the asset index, ensures the content is
// present locally, removes the bundle cipher when the record carries a key
// and the payload is long enough, and parses the result.
package bundle
