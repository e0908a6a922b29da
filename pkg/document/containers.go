package document

import (
	"errors"
	"sort"
	"sync"
)

// ErrNoResolver is returned when a lazy container is materialized before a
// resolution engine has been attached to its document.
var ErrNoResolver = errors.New("document: no resolver attached to reference container")

// ResolveListFunc resolves the stored placeholders of a list container into
// materialized documents. Orphaned targets are omitted from the result.
type ResolveListFunc func(stored []interface{}) ([]*Document, error)

// ResolveMapFunc resolves the stored placeholders of a map container.
// Orphaned targets map to a nil document.
type ResolveMapFunc func(stored map[string]interface{}) (map[string]*Document, error)

// RefList is an ordered sequence of reference placeholders that defers
// resolution until first materialized access. Structural inspection via
// StoredLen never triggers a fetch; Len and Items resolve on first use and
// cache the result for the container's lifetime.
type RefList struct {
	mu       sync.Mutex
	stored   []interface{}
	items    []*Document
	resolved bool
	resolve  ResolveListFunc
}

// NewRefList creates a list container over stored placeholder values.
func NewRefList(stored []interface{}) *RefList {
	return &RefList{stored: stored}
}

// SetResolver attaches the resolution hook. A container resolves at most
// once; replacing the hook after resolution has no effect.
func (l *RefList) SetResolver(fn ResolveListFunc) {
	l.mu.Lock()
	l.resolve = fn
	l.mu.Unlock()
}

// StoredLen returns the raw stored size without resolving anything.
func (l *RefList) StoredLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.stored)
}

// Stored returns the raw stored placeholder values.
func (l *RefList) Stored() []interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]interface{}, len(l.stored))
	copy(out, l.stored)
	return out
}

// Resolved reports whether the container has materialized its items.
func (l *RefList) Resolved() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolved
}

// Len resolves the container if needed and returns the materialized length.
// Orphaned targets are omitted, so Len may be smaller than StoredLen.
func (l *RefList) Len() (int, error) {
	items, err := l.Items()
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Items resolves the container on first call and returns the materialized
// documents. Repeated calls return the cached result without any fetch.
func (l *RefList) Items() ([]*Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolved {
		return l.items, nil
	}
	if l.resolve == nil {
		return nil, ErrNoResolver
	}
	items, err := l.resolve(l.stored)
	if err != nil {
		return nil, err
	}
	l.items = items
	l.resolved = true
	return l.items, nil
}

// SetItems installs materialized items directly, marking the container
// resolved. Used by eager resolution passes.
func (l *RefList) SetItems(items []*Document) {
	l.mu.Lock()
	l.items = items
	l.resolved = true
	l.mu.Unlock()
}

// RefMap is a key-ordered mapping of reference placeholders with the same
// lazy contract as RefList. Orphaned targets resolve to a nil value under
// their key rather than disappearing.
type RefMap struct {
	mu       sync.Mutex
	stored   map[string]interface{}
	items    map[string]*Document
	resolved bool
	resolve  ResolveMapFunc
}

// NewRefMap creates a map container over stored placeholder values.
func NewRefMap(stored map[string]interface{}) *RefMap {
	return &RefMap{stored: stored}
}

// SetResolver attaches the resolution hook.
func (m *RefMap) SetResolver(fn ResolveMapFunc) {
	m.mu.Lock()
	m.resolve = fn
	m.mu.Unlock()
}

// StoredLen returns the raw stored size without resolving anything.
func (m *RefMap) StoredLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stored)
}

// Stored returns the raw stored placeholder values.
func (m *RefMap) Stored() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]interface{}, len(m.stored))
	for k, v := range m.stored {
		out[k] = v
	}
	return out
}

// Resolved reports whether the container has materialized its items.
func (m *RefMap) Resolved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolved
}

// Keys resolves the container if needed and returns its keys in sorted order.
func (m *RefMap) Keys() ([]string, error) {
	items, err := m.Items()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len resolves the container if needed and returns the materialized size.
func (m *RefMap) Len() (int, error) {
	items, err := m.Items()
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Items resolves the container on first call and returns the materialized
// mapping. Repeated calls return the cached result without any fetch.
func (m *RefMap) Items() (map[string]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolved {
		return m.items, nil
	}
	if m.resolve == nil {
		return nil, ErrNoResolver
	}
	items, err := m.resolve(m.stored)
	if err != nil {
		return nil, err
	}
	m.items = items
	m.resolved = true
	return m.items, nil
}

// SetItems installs materialized items directly, marking the container
// resolved. Used by eager resolution passes.
func (m *RefMap) SetItems(items map[string]*Document) {
	m.mu.Lock()
	m.items = items
	m.resolved = true
	m.mu.Unlock()
}
