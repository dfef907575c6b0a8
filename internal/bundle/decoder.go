package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"perapera/internal/contentstore"
	"perapera/internal/document"
	"perapera/internal/keys"
	"perapera/internal/logging"
	"perapera/internal/scenegraph"
	"perapera/internal/services"
)

// Fetcher resolves a name and ensures its content is on disk.
type Fetcher interface {
	EnsureReady(ctx context.Context, resolver contentstore.Resolver, name string, category contentstore.Category) (string, document.AssetRecord, error)
}

// Loaded is a decoded bundle with the record it came from.
type Loaded struct {
	Record document.AssetRecord
	Path   string
	Graph  *scenegraph.Graph
}

// Decoder loads bundles by name.
type Decoder struct {
	resolver contentstore.Resolver
	fetcher  Fetcher
	baseKey  []byte
	logger   *slog.Logger
}

// NewDecoder returns a decoder using baseKey to expand per-bundle keystreams.
func NewDecoder(resolver contentstore.Resolver, fetcher Fetcher, baseKey []byte, logger *slog.Logger) *Decoder {
	return &Decoder{
		resolver: resolver,
		fetcher:  fetcher,
		baseKey:  append([]byte(nil), baseKey...),
		logger:   logging.NewComponentLogger(logger, "bundle"),
	}
}

// Load resolves, fetches, decrypts and parses the named bundle.
func (d *Decoder) Load(ctx context.Context, name string) (*Loaded, error) {
	path, rec, err := d.fetcher.EnsureReady(ctx, d.resolver, name, contentstore.CategoryBundle)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrDownload, "bundle", "read", fmt.Sprintf("Local content for %s is unreadable", name), err)
	}
	graph, err := d.Decode(raw, rec.CipherKey)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "bundle", "parse", fmt.Sprintf("Bundle %s could not be decoded", name), err)
	}
	d.logger.Debug("bundle loaded",
		logging.String("asset", name),
		logging.String("hash", rec.ContentHash),
		logging.Bool("encrypted", keys.ShouldDecrypt(rec.CipherKey, len(raw))),
		logging.String("size", humanize.Bytes(uint64(len(raw)))),
		logging.Int("objects", graph.Len()),
	)
	return &Loaded{Record: rec, Path: path, Graph: graph}, nil
}

// Decode removes the bundle cipher from raw when cipherKey requires it and
// parses the result.
func (d *Decoder) Decode(raw []byte, cipherKey int64) (*scenegraph.Graph, error) {
	payload := raw
	if keys.ShouldDecrypt(cipherKey, len(raw)) {
		payload = keys.DecryptBundle(raw, keys.ExpandBundleKey(d.baseKey, cipherKey))
	}
	return scenegraph.Load(payload)
}
