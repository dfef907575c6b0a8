package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"perapera/internal/config"
	"perapera/internal/document"
	"perapera/internal/fileutil"
	"perapera/internal/logging"
	"perapera/internal/services"
)

// DictionarySuffix ends the file names of dumped master table dictionaries.
const DictionarySuffix = "_dict.json"

const (
	documentExt = ".json"
	backupExt   = ".zst"
	indent      = "    "
)

// Store reads and writes documents below one workspace root.
type Store struct {
	root      string
	backupDir string
	logger    *slog.Logger
}

// New returns a store rooted at the configured workspace directory.
func New(cfg *config.Config, logger *slog.Logger) *Store {
	return &Store{
		root:      cfg.Paths.WorkspaceDir,
		backupDir: cfg.BackupDir(),
		logger:    logging.NewComponentLogger(logger, "workspace"),
	}
}

// Root returns the workspace directory.
func (s *Store) Root() string { return s.root }

// Path returns the absolute document path for id.
func (s *Store) Path(id document.StoryID) string {
	return filepath.Join(s.root, filepath.FromSlash(id.RelPath()))
}

// Exists reports whether a document for id is already on disk.
func (s *Store) Exists(id document.StoryID) bool {
	info, err := os.Stat(s.Path(id))
	return err == nil && info.Mode().IsRegular()
}

// Load reads the document stored for id. A missing file returns (nil, nil).
func (s *Store) Load(id document.StoryID) (*document.AssetDocument, error) {
	doc, err := ReadDocument(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return doc, err
}

// Save writes doc for id and returns the written path. An existing file is
// backed up first.
func (s *Store) Save(ctx context.Context, id document.StoryID, doc *document.AssetDocument) (string, error) {
	if doc == nil {
		return "", services.Wrap(services.ErrValidation, "workspace", "save", "Document is nil", nil)
	}
	payload, err := Encode(doc)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "workspace", "encode", "Failed to encode document", err)
	}
	target := s.Path(id)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "workspace", "mkdir", "Failed to create document directory", err)
	}

	if previous, err := os.ReadFile(target); err == nil {
		if bytes.Equal(previous, payload) {
			return target, nil
		}
		if err := s.backup(ctx, id.RelPath(), previous); err != nil {
			return "", err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", services.Wrap(services.ErrConfiguration, "workspace", "read", "Failed to read existing document", err)
	}

	if err := fileutil.WriteFileAtomic(target, payload, 0o644); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "workspace", "write", "Failed to write document", err)
	}
	logging.WithContext(ctx, s.logger).Debug("document saved",
		logging.String("path", target),
		logging.Int("units", doc.Len()),
	)
	return target, nil
}

// backup compresses previous into <backup_dir>/<run-id>/<rel>.zst.
func (s *Store) backup(ctx context.Context, rel string, previous []byte) error {
	if s.backupDir == "" {
		return nil
	}
	runID, ok := services.RunIDFromContext(ctx)
	if !ok || runID == "" {
		runID = uuid.NewString()
	}
	dest := BackupPath(s.backupDir, runID, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "workspace", "backup", "Failed to create backup directory", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "workspace", "backup", "Failed to start compressor", err)
	}
	defer enc.Close()
	if err := fileutil.WriteFileAtomic(dest, enc.EncodeAll(previous, nil), 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "workspace", "backup", "Failed to write backup", err)
	}
	logging.WithContext(ctx, s.logger).Info("previous document backed up",
		logging.String("backup", dest),
		logging.Int("bytes", len(previous)),
	)
	return nil
}

// BackupPath returns where a replaced document is preserved.
func BackupPath(backupDir, runID, rel string) string {
	return filepath.Join(backupDir, runID, filepath.FromSlash(rel)+backupExt)
}

// ReadBackup decompresses a backup written by Save.
func ReadBackup(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(raw, nil)
}

// ReadDocument decodes the document at path. UTF-8 and UTF-16 byte order
// marks are honored.
func ReadDocument(path string) (*document.AssetDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads one document from r.
func Decode(r io.Reader) (*document.AssetDocument, error) {
	payload, err := readText(r)
	if err != nil {
		return nil, err
	}
	var doc document.AssetDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "workspace", "decode", "Document is not valid JSON", err)
	}
	return &doc, nil
}

// ReadJSON decodes the JSON file at path into v with the same byte order
// mark handling as documents. Numbers decoded into interface values stay
// json.Number so rewriting the file is lossless.
func ReadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	payload, err := readText(f)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return services.Wrap(services.ErrValidation, "workspace", "decode", filepath.Base(path)+" is not valid JSON", err)
	}
	return nil
}

// WriteJSON atomically replaces path with v in the persisted layout.
func WriteJSON(path string, v any) error {
	payload, err := EncodeValue(v)
	if err != nil {
		return services.Wrap(services.ErrValidation, "workspace", "encode", "Failed to encode "+path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "workspace", "mkdir", "Failed to create "+filepath.Dir(path), err)
	}
	if err := fileutil.WriteFileAtomic(path, payload, 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "workspace", "write", "Failed to write "+path, err)
	}
	return nil
}

// readText returns the UTF-8 text of r, honoring a UTF-8 or UTF-16 BOM.
func readText(r io.Reader) ([]byte, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	payload, err := io.ReadAll(transform.NewReader(r, decoder))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "workspace", "read", "Failed to read file", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, services.Wrap(services.ErrValidation, "workspace", "decode", "File is empty", nil)
	}
	return payload, nil
}

// Encode renders doc in the persisted layout: four-space indent, HTML
// characters left unescaped, trailing newline.
func Encode(doc *document.AssetDocument) ([]byte, error) {
	return EncodeValue(doc)
}

// EncodeValue renders any JSON value in the persisted layout.
func EncodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Documents lists every document path below dir in lexical order. Hidden
// files and table dictionaries (*_dict.json) are ignored.
func Documents(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || filepath.Ext(name) != documentExt || strings.HasSuffix(name, DictionarySuffix) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return paths, nil
}

// Dir returns the directory scanned for assetType, or the whole workspace
// when assetType is empty.
func (s *Store) Dir(assetType string) string {
	if assetType == "" || assetType == document.TypeGeneric || assetType == document.TypeUIAnimation {
		return s.root
	}
	return filepath.Join(s.root, assetType)
}
