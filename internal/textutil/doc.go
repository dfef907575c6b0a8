// Package textutil provides text processing utilities for similarity scoring
// and filename sanitization.
//
// The primary use cases are:
//   - Scoring how close two source strings are when carrying translations
//     forward between extractions (indel-normalized ratio over runes)
//   - Sanitizing group labels before they become part of a file name
package textutil
