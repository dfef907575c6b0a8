package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"perapera/internal/document"
	"perapera/internal/logging"
	"perapera/internal/services"
)

// BatchRequest selects the assets of one batch run.
type BatchRequest struct {
	Type string
	// Names, when set, replaces index discovery and filtering.
	Names   []string
	Group   string
	ID      string
	Mode    Mode
	Workers int
	// OnResult is called once per finished asset, from worker goroutines.
	OnResult func(AssetResult)
}

// BatchSummary aggregates per-asset outcomes.
type BatchSummary struct {
	RunID    string
	Type     string
	Results  []AssetResult
	Success  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Select lists the asset names of assetType matching the group and id
// filters.
func (p *Pipeline) Select(ctx context.Context, assetType, group, id string) ([]string, error) {
	names, err := p.index.ListType(ctx, assetType)
	if err != nil {
		return nil, err
	}
	if group == "" && id == "" {
		return names, nil
	}
	filtered := names[:0]
	for _, name := range names {
		if document.ParseStoryID(assetType, name, "").Matches(group, id) {
			filtered = append(filtered, name)
		}
	}
	return filtered, nil
}

// RunBatch processes every selected asset on a bounded worker pool. Results
// keep selection order. One asset failing never stops the others; only
// selection errors and cancellation are returned.
func (p *Pipeline) RunBatch(ctx context.Context, req BatchRequest) (*BatchSummary, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)

	if !p.dispatcher.Supports(req.Type) {
		return nil, services.Wrap(services.ErrValidation, "workflow", "batch", fmt.Sprintf("Unsupported asset type %q", req.Type), nil)
	}
	p.names.Reset()

	names := req.Names
	if len(names) == 0 {
		var err error
		names, err = p.Select(ctx, req.Type, req.Group, req.ID)
		if err != nil {
			return nil, err
		}
	}

	summary := &BatchSummary{RunID: runID, Type: req.Type, Results: make([]AssetResult, len(names))}
	if len(names) == 0 {
		logger.Info("no assets matched", logging.String("group", req.Group), logging.String("id", req.ID))
		return summary, nil
	}

	workers := req.Workers
	if workers <= 0 {
		workers = p.cfg.Download.Workers
	}
	workers = max(1, min(workers, len(names)))

	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("assets", len(names)),
		logging.Int("workers", workers),
		logging.String("mode", req.Mode.String()),
	)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := p.ProcessAsset(ctx, req.Type, names[i], req.Mode)
				summary.Results[i] = res
				if req.OnResult != nil {
					req.OnResult(res)
				}
			}
		}()
	}

	dispatched := 0
feed:
	for i := range names {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	summary.Results = summary.Results[:dispatched]
	for _, res := range summary.Results {
		switch res.Outcome {
		case services.OutcomeSuccess:
			summary.Success++
		case services.OutcomeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}
	summary.Duration = time.Since(start)

	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("success", summary.Success),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", summary.Duration),
	)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}
