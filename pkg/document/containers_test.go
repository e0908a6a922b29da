package document

import (
	"errors"
	"reflect"
	"testing"
)

func TestRefListStoredLenNeverResolves(t *testing.T) {
	l := NewRefList([]interface{}{
		Ref{Collection: "users", ID: "u1"},
		Ref{Collection: "users", ID: "u2"},
	})
	if l.StoredLen() != 2 {
		t.Fatalf("expected stored length 2, got %d", l.StoredLen())
	}
	if l.Resolved() {
		t.Fatal("StoredLen must not resolve the container")
	}
}

func TestRefListWithoutResolver(t *testing.T) {
	l := NewRefList([]interface{}{Ref{Collection: "users", ID: "u1"}})
	if _, err := l.Items(); !errors.Is(err, ErrNoResolver) {
		t.Fatalf("expected ErrNoResolver, got %v", err)
	}
}

func TestRefListResolvesOnce(t *testing.T) {
	calls := 0
	l := NewRefList([]interface{}{
		Ref{Collection: "users", ID: "u1"},
		Ref{Collection: "users", ID: "u2"},
	})
	l.SetResolver(func(stored []interface{}) ([]*Document, error) {
		calls++
		items := make([]*Document, 0, len(stored))
		for _, s := range stored {
			items = append(items, New("users", s.(Ref).ID))
		}
		return items, nil
	})

	first, err := l.Items()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	second, err := l.Items()
	if err != nil {
		t.Fatalf("cached access failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one resolution, got %d", calls)
	}
	if len(first) != 2 || !reflect.DeepEqual(first, second) {
		t.Fatalf("cached items differ: %v vs %v", first, second)
	}

	n, err := l.Len()
	if err != nil || n != 2 {
		t.Fatalf("expected length 2, got %d (%v)", n, err)
	}
	if calls != 1 {
		t.Fatalf("Len after Items must not resolve again, got %d calls", calls)
	}
}

func TestRefListResolveErrorNotCached(t *testing.T) {
	boom := errors.New("store down")
	fail := true
	l := NewRefList([]interface{}{Ref{Collection: "users", ID: "u1"}})
	l.SetResolver(func(stored []interface{}) ([]*Document, error) {
		if fail {
			return nil, boom
		}
		return []*Document{New("users", "u1")}, nil
	})

	if _, err := l.Items(); !errors.Is(err, boom) {
		t.Fatalf("expected resolver error, got %v", err)
	}
	fail = false
	items, err := l.Items()
	if err != nil {
		t.Fatalf("retry after failure should resolve: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestRefListSetItemsMarksResolved(t *testing.T) {
	l := NewRefList([]interface{}{Ref{Collection: "users", ID: "u1"}})
	l.SetItems([]*Document{New("users", "u1")})
	if !l.Resolved() {
		t.Fatal("SetItems must mark the container resolved")
	}
	items, err := l.Items()
	if err != nil || len(items) != 1 {
		t.Fatalf("expected installed items, got %v (%v)", items, err)
	}
}

func TestRefMapKeysSorted(t *testing.T) {
	m := NewRefMap(map[string]interface{}{
		"zed": Ref{Collection: "users", ID: "u3"},
		"ann": Ref{Collection: "users", ID: "u1"},
		"mid": Ref{Collection: "users", ID: "u2"},
	})
	m.SetResolver(func(stored map[string]interface{}) (map[string]*Document, error) {
		items := make(map[string]*Document, len(stored))
		for k, s := range stored {
			items[k] = New("users", s.(Ref).ID)
		}
		return items, nil
	})

	keys, err := m.Keys()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := []string{"ann", "mid", "zed"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("expected sorted keys %v, got %v", want, keys)
	}
}

func TestRefMapOrphanKeysKeepNil(t *testing.T) {
	m := NewRefMap(map[string]interface{}{
		"live": Ref{Collection: "users", ID: "u1"},
		"gone": Ref{Collection: "users", ID: "missing"},
	})
	m.SetResolver(func(stored map[string]interface{}) (map[string]*Document, error) {
		return map[string]*Document{
			"live": New("users", "u1"),
			"gone": nil,
		}, nil
	})

	items, err := m.Items()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	doc, present := items["gone"]
	if !present || doc != nil {
		t.Fatalf("orphaned key should stay present with nil value, got %v (present=%v)", doc, present)
	}
	if n, _ := m.Len(); n != 2 {
		t.Fatalf("expected both keys counted, got %d", n)
	}
}

func TestRefMapWithoutResolver(t *testing.T) {
	m := NewRefMap(map[string]interface{}{"a": Ref{Collection: "users", ID: "u1"}})
	if _, err := m.Items(); !errors.Is(err, ErrNoResolver) {
		t.Fatalf("expected ErrNoResolver, got %v", err)
	}
	if m.StoredLen() != 1 {
		t.Fatalf("expected stored length 1, got %d", m.StoredLen())
	}
}
