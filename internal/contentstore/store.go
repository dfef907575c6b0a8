package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"perapera/internal/config"
	"perapera/internal/document"
	"perapera/internal/logging"
	"perapera/internal/services"
)

// Category selects the origin URL template.
type Category string

const (
	CategoryBundle  Category = "bundle"
	CategoryGeneric Category = "generic"
)

const lockRetryDelay = 50 * time.Millisecond

// ErrDownloadDisabled is returned when a file is missing and auto-download is
// off.
var ErrDownloadDisabled = errors.New("auto-download disabled")

// Resolver maps logical names to index records.
type Resolver interface {
	Resolve(ctx context.Context, name string) (document.AssetRecord, error)
}

// Store resolves and fetches content-addressed files.
type Store struct {
	root         string
	lockDir      string
	platform     string
	bundleURL    string
	genericURL   string
	autoDownload bool
	progress     bool
	client       *http.Client
	logger       *slog.Logger

	locks sync.Map
}

// New builds a store from configuration. platform fills the {platform}
// placeholder of the bundle template.
func New(cfg *config.Config, platform string, logger *slog.Logger) *Store {
	return &Store{
		root:         cfg.ContentDir(),
		lockDir:      cfg.LockDir(),
		platform:     platform,
		bundleURL:    cfg.Download.BundleURL,
		genericURL:   cfg.Download.GenericURL,
		autoDownload: cfg.Download.AutoDownload,
		progress:     cfg.Download.Progress && isatty.IsTerminal(os.Stderr.Fd()),
		client:       &http.Client{Timeout: cfg.DownloadTimeout()},
		logger:       logging.NewComponentLogger(logger, "contentstore"),
	}
}

// LocalPath returns the deterministic local path of hash.
func (s *Store) LocalPath(hash string) string {
	return filepath.Join(s.root, hashPrefix(hash), hash)
}

// EnsureReady resolves name and makes sure its content is present locally.
func (s *Store) EnsureReady(ctx context.Context, resolver Resolver, name string, category Category) (string, document.AssetRecord, error) {
	rec, err := resolver.Resolve(ctx, name)
	if err != nil {
		return "", document.AssetRecord{}, err
	}
	path, err := s.EnsureRecord(ctx, rec, category)
	return path, rec, err
}

// EnsureRecord makes sure the content of rec is present locally and returns
// its path. An existing file is returned without network access.
func (s *Store) EnsureRecord(ctx context.Context, rec document.AssetRecord, category Category) (string, error) {
	if err := validateHash(rec.ContentHash); err != nil {
		return "", services.Wrap(services.ErrDownload, "contentstore", "ensure", fmt.Sprintf("Invalid content hash for %s", rec.Name), err)
	}
	path := s.LocalPath(rec.ContentHash)
	if fileExists(path) {
		return path, nil
	}
	if !s.autoDownload {
		return "", services.Wrap(services.ErrDownload, "contentstore", "ensure",
			fmt.Sprintf("Content for %s is missing locally; enable download.auto_download to fetch it", rec.Name), ErrDownloadDisabled)
	}
	url, err := s.originURL(rec.ContentHash, category)
	if err != nil {
		return "", services.Wrap(services.ErrDownload, "contentstore", "ensure", "Unknown download category", err)
	}

	mu := s.pathLock(rec.ContentHash)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(s.lockDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrDownload, "contentstore", "lock", "Could not create lock directory", err)
	}
	lockPath := filepath.Join(s.lockDir, rec.ContentHash+".lock")
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		if err == nil {
			err = ctx.Err()
		}
		return "", services.Wrap(services.ErrDownload, "contentstore", "lock", fmt.Sprintf("Could not lock content %s", rec.ContentHash), err)
	}
	defer func() {
		_ = fileLock.Unlock()
		// Once the content exists no new caller reaches the lock.
		if fileExists(path) {
			_ = os.Remove(lockPath)
		}
	}()

	if fileExists(path) {
		return path, nil
	}
	if err := s.download(ctx, url, path, rec); err != nil {
		return "", services.Wrap(services.ErrDownload, "contentstore", "download", fmt.Sprintf("Downloading %s failed", rec.Name), err)
	}
	return path, nil
}

func (s *Store) pathLock(hash string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(hash, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *Store) originURL(hash string, category Category) (string, error) {
	var template string
	switch category {
	case CategoryBundle, "":
		template = s.bundleURL
	case CategoryGeneric:
		template = s.genericURL
	default:
		return "", fmt.Errorf("category %q", category)
	}
	r := strings.NewReplacer("{platform}", s.platform, "{prefix}", hashPrefix(hash), "{hash}", hash)
	return r.Replace(template), nil
}

func (s *Store) download(ctx context.Context, url, path string, rec document.AssetRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	s.logger.Info("downloading asset",
		logging.String("asset", rec.Name),
		logging.String("hash", rec.ContentHash),
		logging.String("url", url),
	)
	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request %s: unexpected status %d", url, resp.StatusCode)
	}

	tmp := fmt.Sprintf("%s.%s.part", path, uuid.NewString())
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}
	fail := func(err error) error {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}

	var dst io.Writer = out
	if s.progress {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("downloading "+shortHash(rec.ContentHash)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
		dst = io.MultiWriter(out, bar)
	}
	written, err := io.Copy(dst, resp.Body)
	if err != nil {
		return fail(fmt.Errorf("read body: %w", err))
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return fail(fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength))
	}
	if err := out.Sync(); err != nil {
		return fail(fmt.Errorf("sync partial file: %w", err))
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close partial file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move into place: %w", err)
	}
	s.logger.Info("asset downloaded",
		logging.String("asset", rec.Name),
		logging.String("size", humanize.Bytes(uint64(written))),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func validateHash(hash string) error {
	if len(hash) < 2 {
		return fmt.Errorf("hash %q is too short", hash)
	}
	if strings.ContainsAny(hash, `/\.`) {
		return fmt.Errorf("hash %q contains path characters", hash)
	}
	return nil
}

func hashPrefix(hash string) string {
	if len(hash) < 2 {
		return hash
	}
	return hash[:2]
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
