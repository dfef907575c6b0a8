package workspace

import (
	"context"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"

	"perapera/internal/document"
	"perapera/internal/logging"
)

// Report summarizes translation progress of one document.
type Report struct {
	Path                string
	AssetName           string
	Type                string
	Units               int
	Untranslated        []int
	UntranslatedChoices int
	UntranslatedTitle   bool
	Err                 error
}

// Complete reports whether nothing is left to translate.
func (r Report) Complete() bool {
	return r.Err == nil && len(r.Untranslated) == 0 && r.UntranslatedChoices == 0 && !r.UntranslatedTitle
}

// Validate scans the documents of assetType (all when empty) and reports
// untranslated units. Unreadable documents are reported with Err set.
func (s *Store) Validate(ctx context.Context, assetType string) ([]Report, error) {
	paths, err := Documents(s.Dir(assetType))
	if err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		doc, err := ReadDocument(path)
		if err != nil {
			s.logger.Debug("document unreadable", logging.String("path", path), logging.Error(err))
			reports = append(reports, Report{Path: s.rel(path), Err: err})
			continue
		}
		if assetType != "" && doc.Type != "" && doc.Type != assetType {
			continue
		}
		reports = append(reports, Inspect(s.rel(path), doc))
	}
	return reports, nil
}

// Inspect reports the untranslated units of doc.
func Inspect(path string, doc *document.AssetDocument) Report {
	report := Report{Path: path, AssetName: doc.AssetName, Type: doc.Type, Units: doc.Len()}
	report.UntranslatedTitle = doc.Title != "" && doc.TranslatedTitle == ""
	if doc.IsMotion() {
		for _, unit := range doc.Motions {
			if needsTranslation(unit.SourceText, unit.TranslatedText) {
				report.Untranslated = append(report.Untranslated, unit.BlockIndex)
			}
		}
		return report
	}
	for _, block := range doc.Blocks {
		if needsTranslation(block.SourceText, block.TranslatedText) {
			report.Untranslated = append(report.Untranslated, block.BlockIndex)
		}
		for _, choice := range block.Choices {
			if needsTranslation(choice.SourceText, choice.TranslatedText) {
				report.UntranslatedChoices++
			}
		}
	}
	return report
}

func needsTranslation(source, translated string) bool {
	return strings.TrimSpace(source) != "" && strings.TrimSpace(translated) == ""
}

// Match is one occurrence of a search term.
type Match struct {
	Path       string
	AssetName  string
	BlockIndex int
	Field      string
	Text       string
}

// Find searches source and translated text of every document of assetType
// (all when empty) for term, ignoring case.
func (s *Store) Find(ctx context.Context, term, assetType string) ([]Match, error) {
	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(term))
	if needle == "" {
		return nil, nil
	}
	paths, err := Documents(s.Dir(assetType))
	if err != nil {
		return nil, err
	}
	contains := func(text string) bool {
		return text != "" && strings.Contains(folder.String(text), needle)
	}

	var matches []Match
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return matches, err
		}
		doc, err := ReadDocument(path)
		if err != nil {
			s.logger.Debug("document unreadable", logging.String("path", path), logging.Error(err))
			continue
		}
		if assetType != "" && doc.Type != "" && doc.Type != assetType {
			continue
		}
		rel := s.rel(path)
		add := func(index int, field, text string) {
			if contains(text) {
				matches = append(matches, Match{Path: rel, AssetName: doc.AssetName, BlockIndex: index, Field: field, Text: text})
			}
		}
		add(-1, "title", doc.Title)
		add(-1, "translated_title", doc.TranslatedTitle)
		for _, unit := range doc.Motions {
			add(unit.BlockIndex, "source_text", unit.SourceText)
			add(unit.BlockIndex, "translated_text", unit.TranslatedText)
		}
		for _, block := range doc.Blocks {
			add(block.BlockIndex, "source_text", block.SourceText)
			add(block.BlockIndex, "translated_text", block.TranslatedText)
			for _, choice := range block.Choices {
				add(block.BlockIndex, "choice", choice.SourceText)
				add(block.BlockIndex, "translated_choice", choice.TranslatedText)
			}
		}
	}
	return matches, nil
}

func (s *Store) rel(path string) string {
	if rel, err := filepath.Rel(s.root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
