package assetindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"perapera/internal/config"
	"perapera/internal/document"
	"perapera/internal/logging"
	"perapera/internal/services"
)

// ErrNotFound reports that no index row matches a name.
var ErrNotFound = errors.New("asset not found in index")

// Name patterns selecting each asset type, in SQLite GLOB syntax.
var typePatterns = map[string]string{
	document.TypeStory:       "story/data/*/*/storytimeline_*",
	document.TypeHome:        "home/data/*/*/hometimeline_*_*_*",
	document.TypeRace:        "race/storyrace/text/storyrace_*",
	document.TypeLyrics:      "live/musicscores/m*/m*_lyrics",
	document.TypePreview:     "outgame/announceevent/loguiasset/ast_announce_event_log_ui_asset_*",
	document.TypeUIAnimation: "uianimation/*",
	document.TypeGeneric:     "*",
}

// PatternFor returns the GLOB pattern enumerating assets of assetType.
func PatternFor(assetType string) (string, bool) {
	pattern, ok := typePatterns[assetType]
	return pattern, ok
}

// Index is a read-only view of the asset index.
type Index struct {
	db       *sql.DB
	path     string
	platform string
	logger   *slog.Logger
}

// Open prepares the configured meta database and opens it read-only.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Index, error) {
	logger = logging.NewComponentLogger(logger, "assetindex")
	src := cfg.MetaPath()

	header := make([]byte, len(sqliteMagic))
	f, err := os.Open(src)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "assetindex", "open meta", "Meta database is not readable; check paths.game_data_dir", err)
	}
	_, readErr := io.ReadFull(f, header)
	_ = f.Close()
	if readErr != nil {
		return nil, services.Wrap(services.ErrDecode, "assetindex", "read meta header", "Meta database header is unreadable", readErr)
	}

	dbPath := src
	if !IsPlaintext(header) {
		material, err := cfg.KeyMaterial()
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "assetindex", "key material", "Index key material is invalid", err)
		}
		var hit bool
		dbPath, hit, err = ensureDecrypted(src, cfg.IndexCacheDir(), material.DBKey, cfg.Index.KDFIterations)
		if err != nil {
			return nil, services.Wrap(services.ErrDecode, "assetindex", "decrypt meta", "Meta database could not be decrypted; check index key material", err)
		}
		logger.Debug("meta database ready",
			logging.String("path", dbPath),
			logging.Bool("cache_hit", hit),
		)
	}

	idx, err := openDB(ctx, dbPath, cfg.Index.DefaultPlatform, logger)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func openDB(ctx context.Context, path, defaultPlatform string, logger *slog.Logger) (*Index, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "assetindex", "open sqlite", "Meta database could not be opened", err)
	}
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1 FROM a LIMIT 1").Scan(&one); err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = db.Close()
		return nil, services.Wrap(services.ErrDecode, "assetindex", "open", "Meta database is not a readable asset index", err)
	}
	idx := &Index{db: db, path: path, platform: defaultPlatform, logger: logger}
	idx.detectPlatform(ctx)
	return idx, nil
}

func (i *Index) detectPlatform(ctx context.Context) {
	var marker string
	err := i.db.QueryRowContext(ctx, "SELECT n FROM c WHERE n = '//Windows' OR n = '//Android' LIMIT 1").Scan(&marker)
	switch {
	case err == nil && strings.HasPrefix(marker, "//") && len(marker) > 2:
		i.platform = marker[2:]
		i.logger.Debug("platform detected", logging.String("platform", i.platform))
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		logging.WarnWithContext(i.logger, "platform detection failed", "platform_detect_failed",
			logging.Error(err),
			logging.String("platform", i.platform),
			logging.String(logging.FieldImpact, "downloads use the configured default platform"),
			logging.String(logging.FieldErrorHint, "set index.default_platform if downloads fail"),
		)
	}
}

// Close releases the database connection.
func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

// Path returns the plaintext database path being served.
func (i *Index) Path() string { return i.path }

// Platform returns the detected platform tag, or the configured default.
func (i *Index) Platform() string { return i.platform }

// Resolve looks name up exactly, then as a prefix. The prefix pass is a plain
// LIKE, so '_' and '%' in name still act as wildcards and letters match case
// insensitively. A NULL cipher key reads as zero.
func (i *Index) Resolve(ctx context.Context, name string) (document.AssetRecord, error) {
	rec, err := i.queryRecord(ctx, name, "SELECT h, e FROM a WHERE n = ?", name)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return rec, err
	}
	return i.queryRecord(ctx, name, "SELECT h, e FROM a WHERE n LIKE ? LIMIT 1", name+"%")
}

func (i *Index) queryRecord(ctx context.Context, name, query string, arg string) (document.AssetRecord, error) {
	var (
		hash string
		key  sql.NullInt64
	)
	err := i.db.QueryRowContext(ctx, query, arg).Scan(&hash, &key)
	if errors.Is(err, sql.ErrNoRows) {
		return document.AssetRecord{}, services.Wrap(services.ErrIndexLookup, "assetindex", "resolve", fmt.Sprintf("No index entry for %q", name), ErrNotFound)
	}
	if err != nil {
		return document.AssetRecord{}, services.Wrap(services.ErrIndexLookup, "assetindex", "resolve", fmt.Sprintf("Index query for %q failed", name), err)
	}
	return document.AssetRecord{Name: name, ContentHash: hash, CipherKey: key.Int64}, nil
}

// ListNames returns every asset name matching the GLOB pattern, sorted.
func (i *Index) ListNames(ctx context.Context, pattern string) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, "SELECT n FROM a WHERE n GLOB ? ORDER BY n", pattern)
	if err != nil {
		return nil, services.Wrap(services.ErrIndexLookup, "assetindex", "list names", fmt.Sprintf("Listing %q failed", pattern), err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, services.Wrap(services.ErrIndexLookup, "assetindex", "list names", "Scanning names failed", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrIndexLookup, "assetindex", "list names", "Scanning names failed", err)
	}
	return names, nil
}

// ListType returns the names of every asset of assetType.
func (i *Index) ListType(ctx context.Context, assetType string) ([]string, error) {
	pattern, ok := PatternFor(assetType)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "assetindex", "list type", fmt.Sprintf("Unknown asset type %q", assetType), nil)
	}
	return i.ListNames(ctx, pattern)
}
