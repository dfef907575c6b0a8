package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"perapera/internal/contentstore"
	"perapera/internal/document"
	"perapera/internal/fileutil"
	"perapera/internal/services"
	"perapera/internal/textdata"
	"perapera/internal/workspace"
)

// searchCategories lists the master categories searched per asset type.
var searchCategories = map[string][]int{
	document.TypeStory: {textdata.CategoryCharacterName, textdata.CategoryStoryEvent},
	document.TypeHome:  {textdata.CategoryCharacterName},
}

// QueryMatch is one asset found through a master name.
type QueryMatch struct {
	AssetName string `json:"asset_name"`
	Group     string `json:"group"`
	GroupName string `json:"group_name"`
}

// QueryCharacter finds story or home assets whose group belongs to a name in
// the master database containing term.
func (p *Pipeline) QueryCharacter(ctx context.Context, assetType, term string) ([]QueryMatch, error) {
	categories, ok := searchCategories[assetType]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "workflow", "query", fmt.Sprintf("Query does not support asset type %q", assetType), nil)
	}
	if p.texts == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "query", "Master database is not available", nil)
	}

	found := make(map[int]string)
	for _, category := range categories {
		entries, err := p.texts.Search(ctx, category, term)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			found[entry.Index] = entry.Text
		}
	}

	seen := make(map[string]bool)
	var matches []QueryMatch
	for id, label := range found {
		names, err := p.index.ListNames(ctx, queryPattern(assetType, strconv.Itoa(id)))
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			sid := document.ParseStoryID(assetType, name, label)
			matches = append(matches, QueryMatch{AssetName: name, Group: sid.Group, GroupName: label})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].AssetName < matches[j].AssetName })
	return matches, nil
}

func queryPattern(assetType, id string) string {
	if assetType == document.TypeHome {
		return "home/data/*/*/hometimeline_*_*_" + id + "*"
	}
	prefix := "*"
	if len(id) > 2 {
		prefix = id[:2]
	}
	return "story/data/" + prefix + "/" + id + "/storytimeline_*"
}

// Export copies the raw local content of name to dest, downloading it first
// when needed.
func (p *Pipeline) Export(ctx context.Context, name, category, dest string) (fileutil.Copied, error) {
	local, _, err := p.content.EnsureReady(ctx, p.index, name, contentCategory(category))
	if err != nil {
		return fileutil.Copied{}, err
	}
	copied, err := fileutil.CopyFileVerified(local, dest)
	if err != nil {
		return fileutil.Copied{}, services.Wrap(services.ErrDownload, "workflow", "export", "Failed to copy "+name, err)
	}
	return copied, nil
}

// DumpTable writes a master table to <dir>/<table>_dict.json and returns the
// path. Rows are nested by every column but the last, which holds the value.
// With blank set every value is written empty, giving a translation
// dictionary to fill in.
func (p *Pipeline) DumpTable(ctx context.Context, table, dir string, blank bool) (string, error) {
	if p.texts == nil {
		return "", services.Wrap(services.ErrConfiguration, "workflow", "dump", "Master database is not available", nil)
	}
	dump, err := p.texts.DumpTable(ctx, table)
	if err != nil {
		return "", err
	}
	payload, err := workspace.EncodeValue(NestTable(dump, blank))
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", table, err)
	}
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, strings.ReplaceAll(dump.Name, string(filepath.Separator), "_")+workspace.DictionarySuffix)
	if err := fileutil.WriteFileAtomic(path, payload, 0o644); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "workflow", "dump", "Failed to write dump", err)
	}
	return path, nil
}

// NestTable turns rows into nested objects keyed by the leading columns.
// Tables with a single column become a list of values. Blank replaces every
// value with an empty string.
func NestTable(table *textdata.Table, blank bool) any {
	valueOf := func(v any) any {
		if blank {
			return ""
		}
		return v
	}
	if len(table.Columns) < 2 {
		values := make([]any, 0, len(table.Rows))
		for _, row := range table.Rows {
			if len(row) > 0 {
				values = append(values, valueOf(row[0]))
			}
		}
		return values
	}
	root := make(map[string]any)
	for _, row := range table.Rows {
		level := root
		keys, value := row[:len(row)-1], row[len(row)-1]
		for _, key := range keys[:len(keys)-1] {
			k := fmt.Sprint(key)
			next, ok := level[k].(map[string]any)
			if !ok {
				next = make(map[string]any)
				level[k] = next
			}
			level = next
		}
		level[fmt.Sprint(keys[len(keys)-1])] = valueOf(value)
	}
	return root
}

func contentCategory(name string) contentstore.Category {
	if contentstore.Category(name) == contentstore.CategoryGeneric {
		return contentstore.CategoryGeneric
	}
	return contentstore.CategoryBundle
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "workflow", "mkdir", "Failed to create "+dir, err)
	}
	return nil
}
