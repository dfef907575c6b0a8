package textdata_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"perapera/internal/document"
	"perapera/internal/logging"
	"perapera/internal/services"
	"perapera/internal/testsupport"
	"perapera/internal/textdata"
)

func openStore(t *testing.T) *textdata.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	testsupport.WriteMasterDB(t, cfg.MasterPath(),
		testsupport.TextRow{Category: 6, Index: 1001, Text: "スペシャルウィーク"},
		testsupport.TextRow{Category: 6, Index: 1002, Text: "サイレンススズカ"},
		testsupport.TextRow{Category: 119, Index: 4001, Text: "イベントストーリー"},
		testsupport.TextRow{Category: 16, Index: 1, Text: "ショップ"},
	)
	store, err := textdata.Open(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreCategoryAndSearch(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	names, err := store.Category(ctx, textdata.CategoryCharacterName)
	if err != nil {
		t.Fatalf("Category: %v", err)
	}
	if len(names) != 2 || names[1001] != "スペシャルウィーク" {
		t.Fatalf("unexpected names: %v", names)
	}

	hits, err := store.Search(ctx, textdata.CategoryCharacterName, "スズカ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Index != 1002 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestStoreDumpTable(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	table, err := store.DumpTable(ctx, "text_data")
	if err != nil {
		t.Fatalf("DumpTable: %v", err)
	}
	if len(table.Rows) != 4 || !slices.Equal(table.Columns, []string{"category", "index", "text"}) {
		t.Fatalf("unexpected dump: %+v", table)
	}
	if _, err := store.DumpTable(ctx, `text_data"; DROP TABLE text_data; --`); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected unknown table rejection, got %v", err)
	}
}

type countingSource struct {
	calls int
	data  map[int]map[int]string
}

func (s *countingSource) Category(_ context.Context, category int) (map[int]string, error) {
	s.calls++
	return s.data[category], nil
}

func TestCacheMemoizesUntilReset(t *testing.T) {
	src := &countingSource{data: map[int]map[int]string{
		6:   {1001: "スペシャルウィーク"},
		119: {4001: "イベントストーリー"},
	}}
	cache := textdata.NewCache(src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cache.CharacterNames(ctx); err != nil {
			t.Fatalf("CharacterNames: %v", err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected one load, got %d", src.calls)
	}
	cache.Reset()
	if _, err := cache.CharacterNames(ctx); err != nil {
		t.Fatalf("CharacterNames: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected reload after reset, got %d", src.calls)
	}

	cases := []struct {
		assetType, group, want string
	}{
		{document.TypeStory, "1001", ""},
		{document.TypeStory, "04", ""},
		{document.TypeStory, "4001", "イベントストーリー"},
		{document.TypeHome, "1001", "スペシャルウィーク"},
		{document.TypeRace, "1001", ""},
	}
	for _, tc := range cases {
		if got := cache.GroupName(ctx, tc.assetType, tc.group); got != tc.want {
			t.Fatalf("GroupName(%s, %s) = %q, want %q", tc.assetType, tc.group, got, tc.want)
		}
	}
	if got := cache.GroupName(ctx, document.TypeStory, "041001"); got != "" {
		t.Fatalf("expected miss for unknown group id, got %q", got)
	}
	if got := cache.GroupName(ctx, document.TypeStory, "401"); got != "" {
		t.Fatalf("expected miss, got %q", got)
	}
}
