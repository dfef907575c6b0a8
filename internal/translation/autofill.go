package translation

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strconv"

	"perapera/internal/services"
	"perapera/internal/textdata"
	"perapera/internal/workspace"
)

// Categories of text_data used by the piece fill.
const (
	CategoryCharacterFullName = 170
	CategoryCharacterPiece    = 113
)

// FillSummary reports one autofill pass over a text_data dictionary.
type FillSummary struct {
	Path   string `json:"path"`
	Unique int    `json:"unique"`
	Filled int    `json:"filled"`
	DryRun bool   `json:"dry_run"`
}

// Dictionary is a {category: {index: translation}} table dictionary.
type Dictionary map[string]map[string]string

// ReadDictionary loads a table dictionary written by the dump command.
func ReadDictionary(path string) (Dictionary, error) {
	var dict Dictionary
	if err := workspace.ReadJSON(path, &dict); err != nil {
		return nil, services.Wrap(services.ErrValidation, "translation", "read", "Expected a {category: {index: text}} dictionary in "+path, err)
	}
	if dict == nil {
		dict = Dictionary{}
	}
	return dict, nil
}

// FillDuplicates gives empty entries the translation of another entry with
// the same master source text. An entry only counts as translated when its
// text is non-empty and differs from its source. The first translation in
// numeric (category, index) order wins.
func FillDuplicates(ctx context.Context, path string, source textdata.Source, dryRun bool) (*FillSummary, error) {
	dict, err := ReadDictionary(path)
	if err != nil {
		return nil, err
	}
	sources := make(map[string]map[string]string, len(dict))
	for _, cat := range numericKeys(dict) {
		id, err := strconv.Atoi(cat)
		if err != nil {
			continue
		}
		entries, err := source.Category(ctx, id)
		if err != nil {
			return nil, err
		}
		texts := make(map[string]string, len(entries))
		for index, text := range entries {
			texts[strconv.Itoa(index)] = text
		}
		sources[cat] = texts
	}

	known := make(map[string]string)
	for _, cat := range numericKeys(dict) {
		for _, index := range numericKeys(dict[cat]) {
			text, src := dict[cat][index], sources[cat][index]
			if text == "" || src == "" || text == src {
				continue
			}
			if _, ok := known[src]; !ok {
				known[src] = text
			}
		}
	}

	summary := &FillSummary{Path: path, Unique: len(known), DryRun: dryRun}
	for _, cat := range numericKeys(dict) {
		for _, index := range numericKeys(dict[cat]) {
			if dict[cat][index] != "" {
				continue
			}
			if text, ok := known[sources[cat][index]]; ok {
				dict[cat][index] = text
				summary.Filled++
			}
		}
	}
	return summary, save(path, dict, summary)
}

// FillPieces names empty character piece entries after the translated name
// of the character whose id forms the first four digits of the piece id.
func FillPieces(path string, dryRun bool) (*FillSummary, error) {
	dict, err := ReadDictionary(path)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	for id, name := range dict[strconv.Itoa(CategoryCharacterFullName)] {
		if name != "" {
			names[id] = name
		}
	}
	summary := &FillSummary{Path: path, Unique: len(names), DryRun: dryRun}
	if len(names) == 0 {
		return summary, nil
	}
	pieces := dict[strconv.Itoa(CategoryCharacterPiece)]
	for _, id := range numericKeys(pieces) {
		if pieces[id] != "" || len(id) < 4 {
			continue
		}
		if name, ok := names[id[:4]]; ok {
			pieces[id] = name + " Piece"
			summary.Filled++
		}
	}
	return summary, save(path, dict, summary)
}

func save(path string, dict Dictionary, summary *FillSummary) error {
	if summary.Filled == 0 || summary.DryRun {
		return nil
	}
	return workspace.WriteJSON(path, dict)
}

// numericKeys sorts keys by their integer value; non-numeric keys sort last.
func numericKeys[V any](m map[string]V) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b string) int {
		x, errA := strconv.Atoi(a)
		y, errB := strconv.Atoi(b)
		switch {
		case errA == nil && errB == nil:
			return cmp.Compare(x, y)
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		}
		return cmp.Compare(a, b)
	})
	return keys
}
