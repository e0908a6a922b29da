package deref

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/docref/docref/pkg/document"
	"github.com/docref/docref/pkg/observability/logger"
	"github.com/docref/docref/pkg/observability/metrics"
)

// passSeq numbers passes process-wide so their fetches can be correlated
// in the log stream.
var passSeq atomic.Uint64

// pass is one traversal-and-fetch cycle over a root object graph. Its
// cache lives exactly as long as the pass and is never shared.
type pass struct {
	e       *Engine
	ctx     context.Context
	log     logger.Logger
	cache   map[document.Key]*document.Document
	missing map[document.Key]bool
}

func newPass(e *Engine, ctx context.Context) *pass {
	ctx = logger.ContextWithPassID(ctx, fmt.Sprintf("pass-%d", passSeq.Add(1)))
	return &pass{
		e:       e,
		ctx:     ctx,
		log:     e.log.WithContext(ctx),
		cache:   map[document.Key]*document.Document{},
		missing: map[document.Key]bool{},
	}
}

// keyList accumulates the distinct placeholder keys discovered at one
// level, grouped by target collection in first-occurrence order.
type keyList struct {
	order []string
	ids   map[string][]interface{}
	seen  map[document.Key]bool
}

func newKeyList() *keyList {
	return &keyList{
		ids:  map[string][]interface{}{},
		seen: map[document.Key]bool{},
	}
}

func (k *keyList) add(key document.Key) {
	if k.seen[key] {
		return
	}
	k.seen[key] = true
	if _, ok := k.ids[key.Collection]; !ok {
		k.order = append(k.order, key.Collection)
	}
	k.ids[key.Collection] = append(k.ids[key.Collection], key.ID)
}

// placeholderKey extracts the cache key from a stored placeholder value.
func placeholderKey(value interface{}) (document.Key, bool) {
	switch v := value.(type) {
	case document.Ref:
		return v.Key(), true
	case document.GenericRef:
		return v.Key(), true
	default:
		return document.Key{}, false
	}
}

func collectStoredKeys(values []interface{}) *keyList {
	keys := newKeyList()
	for _, v := range values {
		if key, ok := placeholderKey(v); ok {
			keys.add(key)
		}
	}
	return keys
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resolveLevel resolves one reference level of the frontier documents:
// collect every unresolved placeholder, fetch per collection, substitute
// live documents back into the graph. Returns the documents materialized
// at this level, which form the next frontier.
func (p *pass) resolveLevel(frontier []*document.Document) ([]*document.Document, error) {
	keys := newKeyList()
	for _, doc := range frontier {
		p.collectDoc(doc, keys)
	}

	materialized, err := p.fetchKeys(keys)
	if err != nil {
		return nil, err
	}

	for _, doc := range frontier {
		p.substituteDoc(doc)
	}
	return materialized, nil
}

// fetchKeys issues exactly one batched fetch per collection for the keys
// not already satisfied by the pass cache. Ids the store does not return
// are recorded as missing so their placeholders resolve to an absence.
func (p *pass) fetchKeys(keys *keyList) ([]*document.Document, error) {
	var materialized []*document.Document
	for _, collection := range keys.order {
		want := make([]interface{}, 0, len(keys.ids[collection]))
		for _, id := range keys.ids[collection] {
			key := document.Key{Collection: collection, ID: id}
			if _, hit := p.cache[key]; hit {
				metrics.RecordCacheHit()
				continue
			}
			if p.missing[key] {
				continue
			}
			want = append(want, id)
		}
		if len(want) == 0 {
			continue
		}

		p.log.Debug("fetching referenced documents",
			"collection", collection, "ids", len(want))
		records, err := p.e.fetcher.FetchByIDs(p.ctx, collection, want)
		if err != nil {
			return nil, err
		}
		metrics.RecordStoreFetch(collection, len(want))

		for _, id := range want {
			key := document.Key{Collection: collection, ID: id}
			raw, found := records[id]
			if !found {
				p.missing[key] = true
				continue
			}
			doc, err := p.e.model.Materialize(collection, raw)
			if err != nil {
				return nil, err
			}
			p.cache[key] = doc
			materialized = append(materialized, doc)
		}
	}
	return materialized, nil
}

// collectDoc gathers every unresolved placeholder reachable from a
// document without crossing into other already-materialized documents.
// Embedded sub-documents belong to their parent and are descended; a
// materialized referenced document was walked at the level that
// materialized it and is not re-entered.
func (p *pass) collectDoc(doc *document.Document, keys *keyList) {
	if doc == nil {
		return
	}
	for _, name := range doc.Fields() {
		value, _ := doc.Get(name)
		p.collectValue(value, keys)
	}
}

func (p *pass) collectValue(value interface{}, keys *keyList) {
	switch v := value.(type) {
	case document.Ref, document.GenericRef:
		key, _ := placeholderKey(v)
		keys.add(key)
	case *document.Document:
		if v != nil && v.ID() == nil {
			p.collectDoc(v, keys)
		}
	case *document.RefList:
		if !v.Resolved() {
			for _, item := range v.Stored() {
				p.collectValue(item, keys)
			}
		}
	case *document.RefMap:
		if !v.Resolved() {
			stored := v.Stored()
			for _, k := range sortedKeys(stored) {
				p.collectValue(stored[k], keys)
			}
		}
	case []interface{}:
		for _, item := range v {
			p.collectValue(item, keys)
		}
	case bson.A:
		for _, item := range v {
			p.collectValue(item, keys)
		}
	case map[string]interface{}:
		for _, k := range sortedKeys(v) {
			p.collectValue(v[k], keys)
		}
	case bson.M:
		for _, k := range sortedKeys(v) {
			p.collectValue(v[k], keys)
		}
	}
}

// substituteDoc replaces resolved placeholders with live documents, in
// place. Orphaned targets become an absence: omitted from sequences, nil
// in map and scalar slots.
func (p *pass) substituteDoc(doc *document.Document) {
	if doc == nil {
		return
	}
	for _, name := range doc.Fields() {
		value, _ := doc.Get(name)
		doc.Put(name, p.substituteValue(value))
	}
}

func (p *pass) substituteValue(value interface{}) interface{} {
	switch v := value.(type) {
	case document.Ref, document.GenericRef:
		key, _ := placeholderKey(v)
		if doc, ok := p.cache[key]; ok {
			return doc
		}
		if p.missing[key] {
			return nil
		}
		return v
	case *document.Document:
		if v != nil && v.ID() == nil {
			p.substituteDoc(v)
		}
		return v
	case *document.RefList:
		if !v.Resolved() {
			v.SetItems(p.listItems(v.Stored()))
		}
		return v
	case *document.RefMap:
		if !v.Resolved() {
			v.SetItems(p.mapItems(v.Stored()))
		}
		return v
	case []interface{}:
		return p.substituteSlice(v)
	case bson.A:
		return p.substituteSlice(v)
	case map[string]interface{}:
		return p.substituteMap(v)
	case bson.M:
		return p.substituteMap(v)
	default:
		return value
	}
}

func (p *pass) substituteSlice(items []interface{}) []interface{} {
	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		if key, ok := placeholderKey(item); ok {
			if doc, found := p.cache[key]; found {
				out = append(out, doc)
			} else if !p.missing[key] {
				out = append(out, item)
			}
			// Orphans are omitted from sequences.
			continue
		}
		out = append(out, p.substituteValue(item))
	}
	return out
}

func (p *pass) substituteMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, item := range m {
		if key, ok := placeholderKey(item); ok {
			if doc, found := p.cache[key]; found {
				out[k] = doc
			} else if p.missing[key] {
				out[k] = nil
			} else {
				out[k] = item
			}
			continue
		}
		out[k] = p.substituteValue(item)
	}
	return out
}

// listItems materializes a list container's stored placeholders from the
// pass cache. Orphans are omitted.
func (p *pass) listItems(stored []interface{}) []*document.Document {
	items := make([]*document.Document, 0, len(stored))
	for _, item := range stored {
		key, ok := placeholderKey(item)
		if !ok {
			continue
		}
		if doc, found := p.cache[key]; found {
			items = append(items, doc)
		}
	}
	return items
}

// mapItems materializes a map container's stored placeholders from the
// pass cache. Orphans stay present under their key with a nil value.
func (p *pass) mapItems(stored map[string]interface{}) map[string]*document.Document {
	items := make(map[string]*document.Document, len(stored))
	for k, item := range stored {
		key, ok := placeholderKey(item)
		if !ok {
			continue
		}
		if doc, found := p.cache[key]; found {
			items[k] = doc
		} else {
			items[k] = nil
		}
	}
	return items
}
