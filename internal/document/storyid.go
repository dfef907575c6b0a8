package document

import (
	"path"
	"strings"

	"perapera/internal/textutil"
)

// StoryID is the structured identity derived from an asset's logical name.
// It is used to compute workspace paths and to filter batches.
type StoryID struct {
	Type      string
	Set       string
	Group     string
	ID        string
	Index     string
	GroupName string
}

// ParseStoryID parses a logical asset name for the given asset type.
// Missing path segments fall back to zero-valued placeholders.
func ParseStoryID(assetType, name, groupName string) StoryID {
	parts := strings.Split(name, "/")
	file := parts[len(parts)-1]
	id := StoryID{
		Type:      assetType,
		Set:       "00",
		Group:     "0000",
		ID:        "000000000",
		Index:     "00",
		GroupName: groupName,
	}
	segment := func(fallback string, pos int) string {
		if pos < len(parts) {
			return parts[pos]
		}
		return fallback
	}

	switch assetType {
	case TypeStory:
		id.Group = segment(id.Group, 2)
		id.ID = segment(id.ID, 3)
		id.Index = lastUnderscoreField(file)
	case TypeHome:
		id.Set = segment(id.Set, 2)
		id.Group = segment(id.Group, 3)
		id.ID = lastUnderscoreField(file)
	case TypeRace:
		if fields := strings.Split(file, "_"); len(fields) > 1 {
			id.ID = fields[1]
		} else {
			id.ID = file
		}
		id.Group = prefix(id.ID, 4)
	case TypeLyrics:
		id.ID = strings.ReplaceAll(strings.ReplaceAll(file, "m", ""), "_lyrics", "")
		id.Group = id.ID
	case TypePreview:
		id.ID = lastUnderscoreField(file)
		id.Group = id.ID
	case TypeUIAnimation:
		id.ID = name
		id.Group = segment("", 1)
	default:
		id.ID = file
	}
	return id
}

// OutputDir returns the workspace-relative directory of the document.
func (s StoryID) OutputDir() string {
	switch s.Type {
	case TypeStory:
		return path.Join(s.Type, s.Group, s.ID)
	case TypeHome:
		return path.Join(s.Type, s.Set, s.Group)
	case TypeGeneric, TypeUIAnimation:
		dir := path.Dir(s.ID)
		if dir == "." {
			return ""
		}
		return dir
	default:
		return s.Type
	}
}

// FilePrefix returns the document file name without extension.
func (s StoryID) FilePrefix() string {
	label := textutil.SanitizeFileName(s.GroupName)
	switch s.Type {
	case TypeStory, TypeHome:
		fields := []string{s.Group}
		if label != "" {
			fields = append(fields, label)
		}
		if s.Type == TypeHome {
			fields = append(fields, s.ID)
		} else {
			fields = append(fields, s.Index)
		}
		return strings.Join(fields, "_")
	case TypeGeneric, TypeUIAnimation:
		base := path.Base(s.ID)
		return strings.TrimSuffix(base, path.Ext(base))
	default:
		return s.ID
	}
}

// RelPath returns the workspace-relative slash path of the document file.
func (s StoryID) RelPath() string {
	return path.Join(s.OutputDir(), s.FilePrefix()+".json")
}

// Matches applies batch filters. An empty filter matches everything. The id
// filter also matches a story's part index and the tail of a home id.
func (s StoryID) Matches(group, id string) bool {
	if group != "" && s.Group != group {
		return false
	}
	if id == "" || s.ID == id {
		return true
	}
	switch s.Type {
	case TypeStory:
		return s.Index == id
	case TypeHome:
		return strings.HasSuffix(s.ID, id)
	default:
		return false
	}
}

func lastUnderscoreField(value string) string {
	if i := strings.LastIndex(value, "_"); i >= 0 {
		return value[i+1:]
	}
	return value
}

func prefix(value string, n int) string {
	if len(value) <= n {
		return value
	}
	return value[:n]
}

// nameShapes maps logical name shapes to asset types, in path.Match syntax.
var nameShapes = []struct{ assetType, pattern string }{
	{TypeStory, "story/data/*/*/storytimeline_*"},
	{TypeHome, "home/data/*/*/hometimeline_*_*_*"},
	{TypeRace, "race/storyrace/text/storyrace_*"},
	{TypeLyrics, "live/musicscores/m*/m*_lyrics"},
	{TypePreview, "outgame/announceevent/loguiasset/ast_announce_event_log_ui_asset_*"},
}

// TypeForName infers the asset type of a logical name. Names of no known
// shape are generic.
func TypeForName(name string) string {
	for _, shape := range nameShapes {
		if ok, _ := path.Match(shape.pattern, name); ok {
			return shape.assetType
		}
	}
	if strings.HasPrefix(name, "uianimation/") {
		return TypeUIAnimation
	}
	return TypeGeneric
}
