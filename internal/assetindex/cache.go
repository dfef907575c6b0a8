package assetindex

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// cacheManifest describes a decrypted copy of the index. It is stored as CBOR
// next to the copy.
type cacheManifest struct {
	Source      string    `cbor:"1,keyasint"`
	SourceSize  int64     `cbor:"2,keyasint"`
	Fingerprint string    `cbor:"3,keyasint"`
	Pages       int       `cbor:"4,keyasint"`
	CreatedAt   time.Time `cbor:"5,keyasint"`
}

// fingerprint returns the hex BLAKE3 digest of the file at path.
func fingerprint(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := blake3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func cachePaths(cacheDir, digest string) (dbPath, manifestPath string) {
	base := filepath.Join(cacheDir, "meta-"+digest[:16])
	return base + ".db", base + ".cbor"
}

func readManifest(path string) (*cacheManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var manifest cacheManifest
	if err := cbor.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// ensureDecrypted returns the path of a plaintext copy of the encrypted index
// at src, decrypting it when no valid copy exists. The boolean reports a
// cache hit.
func ensureDecrypted(src, cacheDir string, secret []byte, iterations int) (string, bool, error) {
	digest, size, err := fingerprint(src)
	if err != nil {
		return "", false, err
	}
	dbPath, manifestPath := cachePaths(cacheDir, digest)
	if manifest, err := readManifest(manifestPath); err == nil && manifest.Fingerprint == digest {
		if info, statErr := os.Stat(dbPath); statErr == nil && info.Mode().IsRegular() {
			return dbPath, true, nil
		}
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		_ = os.Remove(manifestPath)
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", false, fmt.Errorf("create index cache dir: %w", err)
	}
	pages, err := decryptToFile(src, dbPath, secret, iterations)
	if err != nil {
		return "", false, err
	}

	payload, err := cbor.Marshal(cacheManifest{
		Source:      src,
		SourceSize:  size,
		Fingerprint: digest,
		Pages:       pages,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return "", false, fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeFileAtomic(manifestPath, payload); err != nil {
		return "", false, err
	}
	return dbPath, false, nil
}

func decryptToFile(src, dst string, secret []byte, iterations int) (int, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp := fmt.Sprintf("%s.%s.part", dst, uuid.NewString())
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}
	cleanup := func() {
		_ = out.Close()
		_ = os.Remove(tmp)
	}
	w := bufio.NewWriterSize(out, 1<<20)
	pages, err := decryptDatabase(secret, iterations, bufio.NewReaderSize(in, 1<<20), w)
	if err != nil {
		cleanup()
		return 0, err
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return 0, fmt.Errorf("flush %s: %w", tmp, err)
	}
	if err := out.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("rename %s: %w", tmp, err)
	}
	return pages, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.%s.part", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
