// Package binding names the resources of a frame. Passes refer to resources
// by logical name; backends resolve the name to their own handle.
package binding

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrDuplicate = errors.New("resource already bound")
	ErrNotFound  = errors.New("resource not bound")
)

type Kind uint8

const (
	KindBuffer Kind = iota
	KindImage
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "buffer"
}

type Resource struct {
	ID    uuid.UUID
	Name  string
	Kind  Kind
	Value any
}

type Table struct {
	mu        sync.RWMutex
	resources map[string]*Resource
}

func NewTable() *Table {
	return &Table{resources: make(map[string]*Resource)}
}

// Bind registers value under name and returns its new id.
func (t *Table) Bind(name string, kind Kind, value any) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, fmt.Errorf("bind: empty resource name")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.resources[name]; ok {
		return uuid.Nil, fmt.Errorf("bind %q: %w", name, ErrDuplicate)
	}
	r := &Resource{ID: uuid.New(), Name: name, Kind: kind, Value: value}
	t.resources[name] = r
	return r.ID, nil
}

// Rebind swaps the value of an existing resource, keeping its id. Used when a
// resource is recreated, e.g. after a resize.
func (t *Table) Rebind(name string, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.resources[name]
	if !ok {
		return fmt.Errorf("rebind %q: %w", name, ErrNotFound)
	}
	r.Value = value
	return nil
}

func (t *Table) Get(name string) (Resource, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.resources[name]
	if !ok {
		return Resource{}, false
	}
	return *r, true
}

func (t *Table) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// Names returns every bound name in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.resources))
	for n := range t.resources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the value bound to name as a T.
func Lookup[T any](t *Table, name string) (T, error) {
	var zero T
	r, ok := t.Get(name)
	if !ok {
		return zero, fmt.Errorf("lookup %q: %w", name, ErrNotFound)
	}
	v, ok := r.Value.(T)
	if !ok {
		return zero, fmt.Errorf("lookup %q: bound %s is %T, not %T", name, r.Kind, r.Value, zero)
	}
	return v, nil
}
