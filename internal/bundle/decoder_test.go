package bundle_test

import (
	"context"
	"errors"
	"testing"

	"perapera/internal/bundle"
	"perapera/internal/contentstore"
	"perapera/internal/document"
	"perapera/internal/keys"
	"perapera/internal/logging"
	"perapera/internal/scenegraph"
	"perapera/internal/services"
	"perapera/internal/testsupport"
)

type stubResolver map[string]document.AssetRecord

func (s stubResolver) Resolve(_ context.Context, name string) (document.AssetRecord, error) {
	if rec, ok := s[name]; ok {
		return rec, nil
	}
	return document.AssetRecord{}, services.Wrap(services.ErrIndexLookup, "test", "resolve", name, nil)
}

func fixtureBundle(t *testing.T) []byte {
	t.Helper()
	data, err := testsupport.BuildBundle(testsupport.BundleOptions{Compression: scenegraph.CompressionLZ4},
		testsupport.BundleObject{PathID: 10, ClassID: 114, Type: testsupport.MonoBehaviour(testsupport.String("Title")), Fields: map[string]any{
			"m_Name": "timeline",
			"Title":  "タイトル",
		}},
	)
	if err != nil {
		t.Fatalf("build bundle: %v", err)
	}
	if len(data) <= keys.ClearHeaderSize {
		t.Fatalf("fixture bundle too small to exercise the cipher: %d", len(data))
	}
	return data
}

func TestDecoderLoad(t *testing.T) {
	base, err := keys.ParseHex(keys.DefaultBundleBaseKeyHex)
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	plain := fixtureBundle(t)

	cases := []struct {
		name      string
		storedKey int64
		recordKey int64
		wantErr   error
	}{
		{"clear", 0, 0, nil},
		{"encrypted", 999, 999, nil},
		{"negative key", -123456789, -123456789, nil},
		{"wrong key", 999, 0x5A5A5A5A5A5A5A5A, services.ErrDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			store := contentstore.New(cfg, "Windows", logging.NewNop())
			hash := "cafebabe0001"
			stored := plain
			if tc.storedKey != 0 {
				stored = keys.DecryptBundle(plain, keys.ExpandBundleKey(base, tc.storedKey))
			}
			testsupport.WriteFile(t, store.LocalPath(hash), stored)

			resolver := stubResolver{"story/x": {Name: "story/x", ContentHash: hash, CipherKey: tc.recordKey}}
			decoder := bundle.NewDecoder(resolver, store, base, logging.NewNop())
			loaded, err := decoder.Load(context.Background(), "story/x")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			obj, ok := loaded.Graph.Lookup(10)
			if !ok {
				t.Fatalf("object missing")
			}
			tree, err := obj.Tree()
			if err != nil || tree.String("Title") != "タイトル" {
				t.Fatalf("unexpected tree %+v err %v", tree, err)
			}
			if loaded.Record.ContentHash != hash {
				t.Fatalf("unexpected record %+v", loaded.Record)
			}
		})
	}
}

func TestDecoderLoadMissingAsset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := contentstore.New(cfg, "Windows", logging.NewNop())
	decoder := bundle.NewDecoder(stubResolver{}, store, []byte{1, 2, 3}, logging.NewNop())
	if _, err := decoder.Load(context.Background(), "nope"); !errors.Is(err, services.ErrIndexLookup) {
		t.Fatalf("expected index lookup failure, got %v", err)
	}
}

func TestDecoderLoadMissingContent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := contentstore.New(cfg, "Windows", logging.NewNop())
	resolver := stubResolver{"story/x": {Name: "story/x", ContentHash: "deadbeef"}}
	decoder := bundle.NewDecoder(resolver, store, []byte{1, 2, 3}, logging.NewNop())
	if _, err := decoder.Load(context.Background(), "story/x"); !errors.Is(err, services.ErrDownload) {
		t.Fatalf("expected download failure, got %v", err)
	}
}
