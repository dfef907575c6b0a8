// Package merge carries human translations forward when an asset is
// re-extracted after a game update.
//
// Each fresh block with non-empty source text is paired with one prior block:
// an exact match on trimmed source text when one exists, otherwise the prior
// block with the highest similarity ratio. The pair is accepted only when the
// ratio exceeds the configured threshold (0.85 by default). Matching is greedy
// and per block, so two fresh blocks may draw from the same prior block.
// Translated fields are only ever copied from prior data, never invented.
package merge
