package textdata

import (
	"context"
	"strconv"
	"sync"

	"perapera/internal/document"
)

// Source loads whole text categories.
type Source interface {
	Category(ctx context.Context, category int) (map[int]string, error)
}

// Cache memoizes categories loaded from a Source. It is safe for concurrent
// use by batch workers.
type Cache struct {
	source Source

	mu         sync.Mutex
	categories map[int]map[int]string
}

// NewCache returns an empty cache over source.
func NewCache(source Source) *Cache {
	return &Cache{source: source, categories: make(map[int]map[int]string)}
}

// Reset drops every memoized category.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.categories = make(map[int]map[int]string)
	c.mu.Unlock()
}

// Category returns the category, loading it on first use. Failed loads are
// not memoized.
func (c *Cache) Category(ctx context.Context, category int) (map[int]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entries, ok := c.categories[category]; ok {
		return entries, nil
	}
	entries, err := c.source.Category(ctx, category)
	if err != nil {
		return nil, err
	}
	c.categories[category] = entries
	return entries, nil
}

// CharacterNames returns the character name table.
func (c *Cache) CharacterNames(ctx context.Context) (map[int]string, error) {
	return c.Category(ctx, CategoryCharacterName)
}

// GroupName returns the display name of a story or home group, or "" when the
// group has no known category or entry.
func (c *Cache) GroupName(ctx context.Context, assetType, groupID string) string {
	category, ok := groupCategory(assetType, groupID)
	if !ok {
		return ""
	}
	id, err := strconv.Atoi(groupID)
	if err != nil {
		return ""
	}
	entries, err := c.Category(ctx, category)
	if err != nil {
		return ""
	}
	return entries[id]
}

func groupCategory(assetType, groupID string) (int, bool) {
	switch assetType {
	case document.TypeStory:
		if len(groupID) < 2 {
			return 0, false
		}
		switch groupID[:2] {
		case "04", "50":
			return CategoryCharacterName, true
		case "40":
			return CategoryStoryEvent, true
		}
	case document.TypeHome:
		return CategoryCharacterName, true
	}
	return 0, false
}
