package workflow

import (
	"context"
	"errors"
	"log/slog"

	"perapera/internal/assetindex"
	"perapera/internal/bundle"
	"perapera/internal/config"
	"perapera/internal/contentstore"
	"perapera/internal/extract"
	"perapera/internal/logging"
	"perapera/internal/merge"
	"perapera/internal/services"
	"perapera/internal/textdata"
	"perapera/internal/workspace"
)

// Pipeline wires every component needed to extract assets.
type Pipeline struct {
	cfg        *config.Config
	index      *assetindex.Index
	texts      *textdata.Store
	names      *textdata.Cache
	content    *contentstore.Store
	decoder    *bundle.Decoder
	dispatcher *extract.Dispatcher
	merger     *merge.Engine
	workspace  *workspace.Store
	logger     *slog.Logger
}

// Open opens the asset index and the master database and assembles the
// pipeline. A missing master database is tolerated: speaker and group names
// stay unresolved and master-only operations fail.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	material, err := cfg.KeyMaterial()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "key material", "Configured keys are invalid", err)
	}
	index, err := assetindex.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var source textdata.Source = missingMaster{}
	texts, err := textdata.Open(ctx, cfg, logger)
	if err != nil {
		logging.WarnWithContext(logger, "master database unavailable", "master_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "speaker and group names stay numeric"),
			logging.String(logging.FieldErrorHint, "check paths.game_data_dir points at the game data folder"),
		)
		texts = nil
	} else {
		source = texts
	}

	content := contentstore.New(cfg, index.Platform(), logger)
	return &Pipeline{
		cfg:        cfg,
		index:      index,
		texts:      texts,
		names:      textdata.NewCache(source),
		content:    content,
		decoder:    bundle.NewDecoder(index, content, material.BundleBaseKey, logger),
		dispatcher: extract.NewDispatcher(logger),
		merger:     merge.New(cfg.Merge.SimilarityThreshold),
		workspace:  workspace.New(cfg, logger),
		logger:     logging.NewComponentLogger(logger, "workflow"),
	}, nil
}

// Close releases both database connections.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	return errors.Join(p.index.Close(), p.texts.Close())
}

// Index exposes the asset index for name lookups.
func (p *Pipeline) Index() *assetindex.Index { return p.index }

// Workspace exposes the document store.
func (p *Pipeline) Workspace() *workspace.Store { return p.workspace }

// Dispatcher exposes the walker registry.
func (p *Pipeline) Dispatcher() *extract.Dispatcher { return p.dispatcher }

type missingMaster struct{}

func (missingMaster) Category(context.Context, int) (map[int]string, error) {
	return nil, services.Wrap(services.ErrConfiguration, "textdata", "category", "Master database is not available", nil)
}
