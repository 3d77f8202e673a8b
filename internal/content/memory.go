package content

import (
	"context"
	"fmt"
	"os"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultTypes mirrors the builtin types every site has.
func DefaultTypes() []Type {
	return []Type{
		{Name: TypePost, Public: true, Builtin: true},
		{Name: TypePage, Public: true, Builtin: true},
		{Name: TypeAttachment, Public: true, Builtin: true},
		{Name: TypeFragment, Public: false, Builtin: true},
	}
}

// Fixture is the YAML layout accepted by LoadFixture.
type Fixture struct {
	Types []Type `yaml:"types"`
	Items []Item `yaml:"items"`
}

// MemoryStore is an in-process Store. Items are returned in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	types []Type
	items map[ItemID]*Item
	order []ItemID
}

// NewMemoryStore returns a store holding types (DefaultTypes when nil).
func NewMemoryStore(types []Type) *MemoryStore {
	if types == nil {
		types = DefaultTypes()
	}
	s := &MemoryStore{items: make(map[ItemID]*Item)}
	for _, t := range types {
		s.AddType(t)
	}
	return s
}

// LoadFixture reads a YAML fixture file into a new MemoryStore. Types listed
// in the fixture are added to DefaultTypes.
func LoadFixture(path string) (*MemoryStore, error) {
	fx, err := ReadFixture(path)
	if err != nil {
		return nil, err
	}
	s := NewMemoryStore(nil)
	for _, t := range fx.Types {
		s.AddType(t)
	}
	for _, item := range fx.Items {
		s.Put(item)
	}
	return s, nil
}

// ReadFixture parses a YAML fixture file. Items without a status are
// published.
func ReadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture %s: %w", path, err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing fixture %s: %w", path, err)
	}
	for i := range fx.Items {
		if fx.Items[i].Status == "" {
			fx.Items[i].Status = StatusPublish
		}
	}
	return &fx, nil
}

// AddType registers t, replacing any type with the same name. Custom types
// are kept ahead of builtin ones.
func (s *MemoryStore) AddType(t Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.types {
		if s.types[i].Name == t.Name {
			s.types[i] = t
			return
		}
	}
	if t.Builtin {
		s.types = append(s.types, t)
		return
	}
	idx := 0
	for idx < len(s.types) && !s.types[idx].Builtin {
		idx++
	}
	s.types = append(s.types, Type{})
	copy(s.types[idx+1:], s.types[idx:])
	s.types[idx] = t
}

// Put inserts or replaces item.
func (s *MemoryStore) Put(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		s.order = append(s.order, item.ID)
	}
	stored := item
	s.items[item.ID] = &stored
}

func (s *MemoryStore) Types(ctx context.Context) ([]Type, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Type, len(s.types))
	copy(out, s.types)
	return out, nil
}

func (s *MemoryStore) PublishedIDs(ctx context.Context, contentType string) ([]ItemID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ItemID, 0)
	for _, id := range s.order {
		item := s.items[id]
		if item.ContentType == contentType && item.Status == StatusPublish {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) Get(ctx context.Context, id ItemID) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, apperrors.ErrNotFound)
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryStore) Items(ctx context.Context, ids []ItemID) (map[ItemID]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ItemID]*Item, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			cp := *item
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *MemoryStore) Body(ctx context.Context, id ItemID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return "", fmt.Errorf("item %d: %w", id, apperrors.ErrNotFound)
	}
	return item.Body, nil
}
