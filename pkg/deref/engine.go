// Package deref resolves stored reference placeholders in materialized
// document graphs into live documents, batching store fetches per target
// collection and caching per resolution pass.
package deref

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/docref/docref/pkg/config"
	"github.com/docref/docref/pkg/document"
	"github.com/docref/docref/pkg/observability/logger"
	"github.com/docref/docref/pkg/observability/metrics"
)

// Fetcher is the document-store fetch primitive the engine consumes.
// One call per target collection per pass; ids are distinct.
type Fetcher interface {
	// FetchByIDs returns the raw records for the requested ids, keyed by
	// id. Ids with no stored record are simply absent from the result.
	FetchByIDs(ctx context.Context, collection string, ids []interface{}) (map[interface{}]bson.M, error)
}

// Materializer converts raw stored records into document objects.
// Implemented by schema.Registry.
type Materializer interface {
	Materialize(collection string, raw bson.M) (*document.Document, error)
}

// Options tunes a resolution pass.
type Options struct {
	// MaxDepth bounds how many reference levels the pass descends.
	// Zero means DefaultMaxDepth. Placeholders beyond the bound remain
	// unresolved placeholders; that is not an error.
	MaxDepth int
}

// DefaultMaxDepth is the eager resolution depth used when Options does not
// set one.
const DefaultMaxDepth = 5

// OptionsFromConfig builds resolution options from configured tuning.
func OptionsFromConfig(cfg config.ResolveConfig) Options {
	return Options{MaxDepth: cfg.MaxDepth}
}

// Engine resolves reference placeholders. It is stateless between passes:
// every Resolve call and every lazy container owns its own cache, so
// independent callers may resolve concurrently.
type Engine struct {
	fetcher Fetcher
	model   Materializer
	log     logger.Logger
}

// NewEngine creates a resolution engine. The logger may be nil.
func NewEngine(fetcher Fetcher, model Materializer, log logger.Logger) (*Engine, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("deref: fetcher is required")
	}
	if model == nil {
		return nil, fmt.Errorf("deref: materializer is required")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Engine{fetcher: fetcher, model: model, log: log}, nil
}

// Resolve eagerly materializes the reference placeholders of the given
// root documents, in place, level by level down to the depth bound. All
// roots share one pass, so N placeholders targeting one collection cost
// one store round trip regardless of which root holds them.
//
// Fetch and materialization errors propagate unchanged; the engine never
// retries. Orphaned references resolve to an absence, never an error.
func (e *Engine) Resolve(ctx context.Context, roots []*document.Document, opts Options) error {
	if len(roots) == 0 {
		return nil
	}
	metrics.RecordResolutionPass("eager")

	p := newPass(e, ctx)
	for _, root := range roots {
		if root != nil && root.ID() != nil {
			p.cache[root.Key()] = root
		}
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	frontier := roots
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		next, err := p.resolveLevel(frontier)
		if err != nil {
			return err
		}
		frontier = next
	}

	// Documents at the depth bound keep their placeholders; wire their
	// containers for lazy resolution so later access still works.
	e.Attach(ctx, frontier...)
	return nil
}

// ResolveOne is Resolve for a single root document.
func (e *Engine) ResolveOne(ctx context.Context, root *document.Document, opts Options) error {
	return e.Resolve(ctx, []*document.Document{root}, opts)
}

// Attach wires the lazy reference containers of the given documents to
// this engine without resolving anything. Each container then resolves on
// its first materialized access, with a cache scoped to that container's
// own pass.
func (e *Engine) Attach(ctx context.Context, docs ...*document.Document) {
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for _, name := range doc.Fields() {
			value, _ := doc.Get(name)
			e.attachValue(ctx, value)
		}
	}
}

func (e *Engine) attachValue(ctx context.Context, value interface{}) {
	switch v := value.(type) {
	case *document.RefList:
		if !v.Resolved() {
			v.SetResolver(func(stored []interface{}) ([]*document.Document, error) {
				return e.lazyList(ctx, stored)
			})
		}
	case *document.RefMap:
		if !v.Resolved() {
			v.SetResolver(func(stored map[string]interface{}) (map[string]*document.Document, error) {
				return e.lazyMap(ctx, stored)
			})
		}
	case *document.Document:
		if v != nil && v.ID() == nil {
			// Embedded sub-document: its containers belong to the parent.
			e.Attach(ctx, v)
		}
	case []interface{}:
		for _, item := range v {
			e.attachValue(ctx, item)
		}
	case bson.A:
		for _, item := range v {
			e.attachValue(ctx, item)
		}
	case map[string]interface{}:
		for _, item := range v {
			e.attachValue(ctx, item)
		}
	case bson.M:
		for _, item := range v {
			e.attachValue(ctx, item)
		}
	}
}

// lazyList resolves one container's stored placeholders as its own pass.
func (e *Engine) lazyList(ctx context.Context, stored []interface{}) ([]*document.Document, error) {
	metrics.RecordResolutionPass("lazy")
	p := newPass(e, ctx)
	if _, err := p.fetchKeys(collectStoredKeys(stored)); err != nil {
		return nil, err
	}
	items := make([]*document.Document, 0, len(stored))
	for _, item := range stored {
		key, ok := placeholderKey(item)
		if !ok {
			continue
		}
		if doc, found := p.cache[key]; found {
			e.Attach(ctx, doc)
			items = append(items, doc)
		}
		// Orphaned targets are omitted from the sequence.
	}
	return items, nil
}

// lazyMap resolves one map container's stored placeholders as its own
// pass. Orphaned targets stay present under their key with a nil value.
func (e *Engine) lazyMap(ctx context.Context, stored map[string]interface{}) (map[string]*document.Document, error) {
	metrics.RecordResolutionPass("lazy")
	p := newPass(e, ctx)

	values := make([]interface{}, 0, len(stored))
	for _, key := range sortedKeys(stored) {
		values = append(values, stored[key])
	}
	if _, err := p.fetchKeys(collectStoredKeys(values)); err != nil {
		return nil, err
	}

	items := make(map[string]*document.Document, len(stored))
	for k, item := range stored {
		key, ok := placeholderKey(item)
		if !ok {
			continue
		}
		if doc, found := p.cache[key]; found {
			e.Attach(ctx, doc)
			items[k] = doc
		} else {
			items[k] = nil
		}
	}
	return items, nil
}
