package translation

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"perapera/internal/document"
	"perapera/internal/logging"
	"perapera/internal/services"
	"perapera/internal/workspace"
)

// HachimiDictionaries are the table dictionaries merged from a localized_data
// tree into the workspace root.
var HachimiDictionaries = []string{
	"text_data_dict.json",
	"character_system_text_dict.json",
	"race_jikkyo_comment_dict.json",
	"race_jikkyo_message_dict.json",
}

// HachimiSummary counts what MergeHachimi filled in.
type HachimiSummary struct {
	Dictionaries  map[string]int `json:"dictionaries"`
	Entries       int            `json:"entries"`
	StoriesFound  int            `json:"stories_found"`
	StoriesMerged int            `json:"stories_merged"`
	Skipped       int            `json:"skipped"`
	DryRun        bool           `json:"dry_run"`
}

// hachimiStory is the story layout under localized_data/assets.
type hachimiStory struct {
	Title  string `json:"title"`
	Blocks []struct {
		Name    string   `json:"name"`
		Text    string   `json:"text"`
		Choices []string `json:"choice_data_list"`
	} `json:"text_block_list"`
}

// MergeHachimi fills untranslated entries of the workspace dictionaries and
// documents from a Hachimi localized_data directory. Translated text already
// in the workspace is never replaced. Dictionaries must have been dumped into
// the workspace first; stories pair blocks by position.
func MergeHachimi(ctx context.Context, store *workspace.Store, srcDir string, dryRun bool, logger *slog.Logger) (*HachimiSummary, error) {
	if err := requireDir(srcDir); err != nil {
		return nil, err
	}
	logger = logging.NewComponentLogger(logger, "translation")
	summary := &HachimiSummary{Dictionaries: map[string]int{}, DryRun: dryRun}

	for _, name := range HachimiDictionaries {
		filled, err := mergeDictionary(filepath.Join(srcDir, name), filepath.Join(store.Root(), name), dryRun, logger)
		if err != nil {
			return summary, err
		}
		if filled >= 0 {
			summary.Dictionaries[name] = filled
			summary.Entries += filled
		}
	}

	assets := filepath.Join(srcDir, "assets")
	if info, err := os.Stat(assets); err != nil || !info.IsDir() {
		logger.Debug("no assets directory in source", logging.String("dir", assets))
		return summary, nil
	}
	err := filepath.WalkDir(assets, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, _ := filepath.Rel(assets, path)
		name := strings.TrimSuffix(filepath.ToSlash(rel), ".json")
		merged, found, err := mergeStory(ctx, store, path, name, dryRun)
		switch {
		case err != nil:
			summary.Skipped++
			logging.WarnWithContext(logger, "story not merged", "hachimi_story_skipped",
				logging.String("asset", name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "translations for this story not imported"),
			)
		case found:
			summary.StoriesFound++
			if merged {
				summary.StoriesMerged++
			}
		}
		return nil
	})
	if err != nil {
		return summary, services.Wrap(services.ErrConfiguration, "translation", "scan", "Failed to scan "+assets, err)
	}
	logger.Info("hachimi merge finished",
		logging.Int("entries", summary.Entries),
		logging.Int("stories_merged", summary.StoriesMerged),
	)
	return summary, nil
}

// mergeDictionary returns the number of filled entries, or -1 when either
// side is missing.
func mergeDictionary(src, dest string, dryRun bool, logger *slog.Logger) (int, error) {
	if _, err := os.Stat(src); err != nil {
		return -1, nil
	}
	if _, err := os.Stat(dest); err != nil {
		logging.WarnWithContext(logger, "dictionary not in workspace", "hachimi_dictionary_missing",
			logging.String("dictionary", filepath.Base(dest)),
			logging.String(logging.FieldErrorHint, "run perapera dump --template for this table first"),
			logging.String(logging.FieldImpact, "dictionary not merged"),
		)
		return -1, nil
	}
	var source, target any
	if err := workspace.ReadJSON(src, &source); err != nil {
		return 0, err
	}
	if err := workspace.ReadJSON(dest, &target); err != nil {
		return 0, err
	}
	filled := fillMissing(source, target)
	if filled > 0 && !dryRun {
		if err := workspace.WriteJSON(dest, target); err != nil {
			return 0, err
		}
	}
	logger.Info("dictionary merged", logging.String("dictionary", filepath.Base(dest)), logging.Int("filled", filled))
	return filled, nil
}

// fillMissing copies non-empty strings of src into empty strings of dst at
// the same key path. Keys absent from dst are not added.
func fillMissing(src, dst any) int {
	srcMap, ok := src.(map[string]any)
	if !ok {
		return 0
	}
	dstMap, ok := dst.(map[string]any)
	if !ok {
		return 0
	}
	filled := 0
	for key, value := range srcMap {
		current, ok := dstMap[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			filled += fillMissing(v, current)
		case string:
			if existing, ok := current.(string); ok && existing == "" && v != "" {
				dstMap[key] = v
				filled++
			}
		}
	}
	return filled
}

// mergeStory fills one workspace document from a Hachimi story file. found
// is false when the workspace has no document for name.
func mergeStory(ctx context.Context, store *workspace.Store, path, name string, dryRun bool) (merged, found bool, err error) {
	id, doc, err := locateDocument(store, name)
	if err != nil || doc == nil {
		return false, false, err
	}
	var story hachimiStory
	if err := workspace.ReadJSON(path, &story); err != nil {
		return false, true, err
	}

	changed := fill(&doc.TranslatedTitle, story.Title)
	for i, block := range story.Blocks {
		if i >= len(doc.Blocks) {
			break
		}
		dst := &doc.Blocks[i]
		changed = fill(&dst.TranslatedSpeakerName, block.Name) || changed
		changed = fill(&dst.TranslatedText, block.Text) || changed
		for j, choice := range block.Choices {
			if j >= len(dst.Choices) {
				break
			}
			changed = fill(&dst.Choices[j].TranslatedText, choice) || changed
		}
	}
	if !changed || dryRun {
		return changed, true, nil
	}
	if _, err := store.Save(ctx, id, doc); err != nil {
		return false, true, err
	}
	return true, true, nil
}

func fill(dst *string, value string) bool {
	if *dst != "" || value == "" {
		return false
	}
	*dst = value
	return true
}

// locateDocument finds the workspace document of name. The file name of
// story and home documents embeds a group label that a bare asset name does
// not carry, so the output directory is scanned when the unlabeled path is
// absent.
func locateDocument(store *workspace.Store, name string) (document.StoryID, *document.AssetDocument, error) {
	id := document.ParseStoryID(document.TypeForName(name), name, "")
	doc, err := store.Load(id)
	if err != nil || doc != nil {
		return id, doc, err
	}
	dir := filepath.Join(store.Root(), filepath.FromSlash(id.OutputDir()))
	paths, err := workspace.Documents(dir)
	if err != nil {
		return id, nil, err
	}
	for _, path := range paths {
		candidate, err := workspace.ReadDocument(path)
		if err != nil {
			continue
		}
		if candidate.AssetName == name {
			return document.ParseStoryID(candidate.Type, name, candidate.GroupName), candidate, nil
		}
	}
	return id, nil, nil
}
