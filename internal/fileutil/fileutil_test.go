package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "dynamic01.otf")
	dst := filepath.Join(dir, "out", "font", "dynamic01.otf")

	content := []byte(strings.Repeat("font-data", 1000))
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatal(err)
	}
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	copied, err := CopyFileVerified(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if copied.Size != int64(len(content)) || len(copied.Digest) != 64 {
		t.Fatalf("unexpected result: %+v", copied)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatal("content mismatch")
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(stamp) {
		t.Fatalf("mtime not preserved: %v", info.ModTime())
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("unexpected mode %v", info.Mode().Perm())
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.bin")
	if _, err := CopyFileVerified(filepath.Join(dir, "missing"), dst); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist, stat err=%v", err)
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	for _, payload := range []string{"first", "second"} {
		if err := WriteFileAtomic(path, []byte(payload), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := os.ReadFile(path)
	if string(got) != "second" {
		t.Fatalf("got %q", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
