package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"perapera/internal/document"
	"perapera/internal/logging"
	"perapera/internal/scenegraph"
	"perapera/internal/services"
)

// Input is everything a walker may consult.
type Input struct {
	AssetName   string
	AssetType   string
	GroupName   string
	ContentHash string
	Platform    string
	Graph       *scenegraph.Graph
	// CharacterNames resolves numeric speaker ids.
	CharacterNames map[int]string
}

// Walker extracts a document from one kind of graph.
type Walker func(ctx context.Context, in Input, logger *slog.Logger) Result

// Dispatcher selects a walker by asset type.
type Dispatcher struct {
	walkers map[string]Walker
	logger  *slog.Logger
}

// NewDispatcher returns a dispatcher with every built-in walker registered.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		walkers: map[string]Walker{
			document.TypeStory:       walkStory,
			document.TypeHome:        walkHome,
			document.TypeRace:        walkRace,
			document.TypeLyrics:      walkLyrics,
			document.TypePreview:     walkPreview,
			document.TypeUIAnimation: walkUIAnimation,
			document.TypeGeneric:     walkGeneric,
		},
		logger: logging.NewComponentLogger(logger, "extract"),
	}
}

// Types lists the registered asset types, sorted.
func (d *Dispatcher) Types() []string {
	out := make([]string, 0, len(d.walkers))
	for t := range d.walkers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether assetType has a walker.
func (d *Dispatcher) Supports(assetType string) bool {
	_, ok := d.walkers[assetType]
	return ok
}

// Extract runs the walker for in.AssetType and stamps the document identity
// fields on success.
func (d *Dispatcher) Extract(ctx context.Context, in Input) Result {
	walker, ok := d.walkers[in.AssetType]
	if !ok {
		return Failed(services.Wrap(services.ErrValidation, "extract", "dispatch", fmt.Sprintf("No walker for asset type %q", in.AssetType), nil))
	}
	if in.Graph == nil {
		return Failed(services.Wrap(services.ErrDecode, "extract", "dispatch", "No object graph to walk", nil))
	}
	logger := logging.WithContext(ctx, d.logger)
	res := walker(ctx, in, logger)
	if res.Status != StatusFound {
		return res
	}
	doc := res.Document
	doc.AssetName = in.AssetName
	doc.Type = in.AssetType
	if in.GroupName != "" {
		doc.GroupName = in.GroupName
	}
	logger.Debug("asset extracted",
		logging.Int("units", doc.Len()),
		logging.Int("skipped", res.Skipped),
	)
	return res
}

// firstTree returns the tree of the first object of typeName for which match
// returns true. Objects whose fields cannot be decoded are passed over.
func firstTree(g *scenegraph.Graph, typeName string, logger *slog.Logger, match func(scenegraph.Tree) bool) (scenegraph.Tree, *scenegraph.Object) {
	for _, obj := range g.OfType(typeName) {
		tree, err := obj.Tree()
		if err != nil {
			logger.Debug("object not decodable",
				logging.PathID(obj.PathID),
				logging.String("type", obj.TypeName),
				logging.Error(err),
			)
			continue
		}
		if match(tree) {
			return tree, obj
		}
	}
	return nil, nil
}

func hasKey(key string) func(scenegraph.Tree) bool {
	return func(t scenegraph.Tree) bool { return t.Has(key) }
}

func warnSkipped(logger *slog.Logger, msg string, blockIndex int, pathID int64, err error) {
	attrs := []logging.Attr{
		logging.BlockIndex(blockIndex),
		logging.PathID(pathID),
		logging.ErrorKind(services.ErrPartialSubstructure),
		logging.String(logging.FieldImpact, "block omitted from the document"),
		logging.String(logging.FieldErrorHint, "re-download the bundle if other assets decode correctly"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(logger, msg, "block_skipped", attrs...)
}
