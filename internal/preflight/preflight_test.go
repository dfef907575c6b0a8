package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"perapera/internal/document"
	"perapera/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFileReadable(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "meta")
	if err := os.WriteFile(full, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckFileReadable("index", full)
	if !result.Passed || !strings.Contains(result.Detail, "2.0 kB") {
		t.Fatalf("expected pass with size, got: %+v", result)
	}

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckFileReadable("index", empty).Passed {
		t.Fatal("expected failure for empty file")
	}
	if CheckFileReadable("index", dir).Passed {
		t.Fatal("expected failure for directory")
	}
	if CheckFileReadable("index", filepath.Join(dir, "missing")).Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestCheckOrigin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead || r.URL.Path != "/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	result := CheckOrigin(context.Background(), "origin", srv.URL+"/{platform}/assetbundles/{prefix}/{hash}")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckOrigin_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if CheckOrigin(context.Background(), "origin", srv.URL+"/x").Passed {
		t.Fatal("expected failure for 503")
	}
}

func TestCheckOrigin_BadTemplate(t *testing.T) {
	for _, template := range []string{"", "ftp://example.com/{hash}", "/relative/{hash}"} {
		if CheckOrigin(context.Background(), "origin", template).Passed {
			t.Fatalf("expected failure for %q", template)
		}
	}
}

func TestCheckKeyMaterial(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckKeyMaterial(cfg); !result.Passed {
		t.Fatalf("default keys should decode: %s", result.Detail)
	}
	cfg.Index.DBKey = "zz"
	if CheckKeyMaterial(cfg).Passed {
		t.Fatal("expected failure for invalid key")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MissingGameData(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 2 {
		t.Fatalf("expected index and master failures, got %+v", failed)
	}
	if failed[0].Name != "Asset index" || failed[1].Name != "Master database" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_Ready(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteMetaDB(t, cfg.MetaPath(), "Windows", document.AssetRecord{Name: "a", ContentHash: "aa"})
	testsupport.WriteMasterDB(t, cfg.MasterPath(), testsupport.TextRow{Category: 6, Index: 1, Text: "x"})

	results := RunAll(context.Background(), cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results without auto-download, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_IncludesOriginWhenDownloading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithOrigin(srv.URL))
	results := RunAll(context.Background(), cfg)
	found := 0
	for _, r := range results {
		if strings.HasSuffix(r.Name, "origin") {
			found++
			if !r.Passed {
				t.Errorf("%s check failed: %s", r.Name, r.Detail)
			}
		}
	}
	if found != 2 {
		t.Fatalf("expected two origin checks, got %d", found)
	}
}

func TestRequired(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	failed := Failed(Required(cfg))
	if len(failed) != 1 || failed[0].Name != "Asset index" {
		t.Fatalf("expected only the index to fail, got %+v", failed)
	}

	testsupport.WriteMetaDB(t, cfg.MetaPath(), "", document.AssetRecord{Name: "a", ContentHash: "aa"})
	if failed := Failed(Required(cfg)); len(failed) != 0 {
		t.Fatalf("expected no failures, got %+v", failed)
	}
}
