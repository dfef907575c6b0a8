// Package workspace persists extracted documents as the durable translation
// record.
//
// Documents live under the configured workspace directory at paths derived
// from document.StoryID. Reads tolerate byte order marks and legacy key names;
// writes replace files atomically after compressing the previous version
// into the backup directory. Validate and Find scan the tree for untranslated
// units and free-text matches.
package workspace
