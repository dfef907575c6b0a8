package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"

	"perapera/internal/document"
	"perapera/internal/logging"
	"perapera/internal/scenegraph"
)

// lyricsHeaderLines precede the CSV rows in a lyrics script.
const lyricsHeaderLines = 2

// walkRace turns each textData entry carrying text into a block keyed by the
// entry's own key.
func walkRace(_ context.Context, in Input, logger *slog.Logger) Result {
	root, _ := firstTree(in.Graph, "MonoBehaviour", logger, hasKey("textData"))
	if root == nil {
		return NotApplicable("no MonoBehaviour carries textData")
	}
	items, _ := root.List("textData")
	doc := &document.AssetDocument{Blocks: []document.TextBlock{}}
	for pos, item := range items {
		entry, ok := item.(scenegraph.Tree)
		if !ok || !entry.Has("text") {
			continue
		}
		index := pos
		if key, ok := entry.Int("key"); ok {
			index = int(key)
		}
		doc.Blocks = append(doc.Blocks, document.TextBlock{
			BlockIndex: index,
			SourceText: entry.String("text"),
		})
	}
	return Found(doc, 0)
}

// walkPreview turns non-empty DataArray items into blocks.
func walkPreview(_ context.Context, in Input, logger *slog.Logger) Result {
	root, _ := firstTree(in.Graph, "MonoBehaviour", logger, func(t scenegraph.Tree) bool {
		_, ok := t.List("DataArray")
		return ok
	})
	if root == nil {
		return NotApplicable("no MonoBehaviour carries a DataArray")
	}
	items, _ := root.List("DataArray")
	doc := &document.AssetDocument{Blocks: []document.TextBlock{}}
	for i, item := range items {
		entry, ok := item.(scenegraph.Tree)
		if !ok || entry.String("Text") == "" {
			continue
		}
		doc.Blocks = append(doc.Blocks, document.TextBlock{
			BlockIndex:  i,
			SpeakerName: entry.String("Name"),
			SourceText:  entry.String("Text"),
		})
	}
	if len(doc.Blocks) == 0 {
		return NotApplicable("preview holds no text")
	}
	return Found(doc, 0)
}

// walkLyrics reads the first TextAsset whose script yields timed lines.
func walkLyrics(_ context.Context, in Input, logger *slog.Logger) Result {
	for _, obj := range in.Graph.OfType("TextAsset") {
		tree, err := obj.Tree()
		if err != nil {
			logger.Debug("text asset not decodable", logging.PathID(obj.PathID), logging.Error(err))
			continue
		}
		script := tree.String("m_Script")
		if script == "" {
			continue
		}
		blocks, skipped, err := parseLyrics(script, obj.PathID, logger)
		if err != nil {
			logging.WarnWithContext(logger, "lyrics script unreadable", "lyrics_invalid",
				logging.PathID(obj.PathID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "text asset ignored"),
				logging.String(logging.FieldErrorHint, "inspect the script with the dump command"),
			)
			continue
		}
		if len(blocks) > 0 {
			return Found(&document.AssetDocument{Blocks: blocks}, skipped)
		}
	}
	return NotApplicable("no TextAsset holds lyric lines")
}

func parseLyrics(script string, pathID int64, logger *slog.Logger) ([]document.TextBlock, int, error) {
	lines := splitLines(script)
	if len(lines) <= lyricsHeaderLines {
		return nil, 0, nil
	}
	r := csv.NewReader(strings.NewReader(strings.Join(lines[lyricsHeaderLines:], "\n")))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var (
		blocks  []document.TextBlock
		skipped int
	)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if len(row) == 0 || row[0] == "" {
			continue
		}
		if len(row) < 2 {
			skipped++
			warnSkipped(logger, "lyrics row skipped", len(blocks), pathID, errors.New("row has no text column"))
			continue
		}
		blocks = append(blocks, document.TextBlock{
			BlockIndex: len(blocks),
			Time:       row[0],
			SourceText: strings.TrimSpace(row[1]),
		})
	}
	return blocks, skipped, nil
}

// splitLines splits on any line terminator and drops a trailing empty line.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// walkGeneric only checks that the bundle decoded into at least one object.
func walkGeneric(_ context.Context, in Input, _ *slog.Logger) Result {
	if in.Graph.Len() == 0 {
		return NotApplicable("bundle holds no objects")
	}
	return Found(&document.AssetDocument{Blocks: []document.TextBlock{}}, 0)
}
