// Package extract turns decoded object graphs into asset documents.
//
// A Dispatcher maps each asset type to a walker. Walkers look for the object
// shape they understand and report one of three outcomes: a document was
// found, the graph does not contain the expected structure, or extraction
// broke. Individual malformed sub-structures, such as a text clip that cannot
// be decoded, are skipped with a warning and counted; they never abort the
// walk and the remaining blocks keep their original indices.
package extract
