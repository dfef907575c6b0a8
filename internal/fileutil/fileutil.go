package fileutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// Copied describes a verified copy.
type Copied struct {
	Size   int64
	Digest string
}

// CopyFileVerified streams src into a temp file beside dst, verifies size and
// BLAKE3 digest of what was written against the source, then renames it into
// place. Modification time is preserved. dst is left untouched on failure.
func CopyFileVerified(src, dst string) (Copied, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return Copied{}, fmt.Errorf("stat source: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Copied{}, fmt.Errorf("create destination dir: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return Copied{}, err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+"-*.tmp")
	if err != nil {
		return Copied{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := out.Name()
	fail := func(err error) (Copied, error) {
		_ = out.Close()
		_ = os.Remove(tmpName)
		return Copied{}, err
	}

	srcHasher := blake3.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHasher))
	if err != nil {
		return fail(err)
	}
	if written != srcInfo.Size() {
		return fail(fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written))
	}
	if err := out.Sync(); err != nil {
		return fail(err)
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return fail(err)
	}
	dstHasher := blake3.New()
	if _, err := io.Copy(dstHasher, out); err != nil {
		return fail(err)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		return fail(fmt.Errorf("copy hash mismatch: file corrupted during copy"))
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpName)
		return Copied{}, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return Copied{}, err
	}
	_ = os.Chtimes(tmpName, srcInfo.ModTime(), srcInfo.ModTime())
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return Copied{}, fmt.Errorf("rename temp file: %w", err)
	}
	return Copied{Size: written, Digest: fmt.Sprintf("%x", srcHasher.Sum(nil))}, nil
}

// WriteFileAtomic writes data to a hidden temp file in the target directory,
// syncs it and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
