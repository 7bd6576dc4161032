package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/davicafu/omegacache/pkg/cache"
)

// MockStorage simula un backend con testify/mock.
type MockStorage struct {
	mock.Mock
}

// Verificación estática
var _ cache.Storage = (*MockStorage)(nil)

func (m *MockStorage) TryInsert(ctx context.Context, c cache.Column, key, value []byte) error {
	args := m.Called(ctx, c, key, value)
	return args.Error(0)
}

func (m *MockStorage) TryGet(ctx context.Context, c cache.Column, key []byte) ([]byte, bool, error) {
	args := m.Called(ctx, c, key)
	var value []byte
	if v := args.Get(0); v != nil {
		value = v.([]byte)
	}
	return value, args.Bool(1), args.Error(2)
}

func (m *MockStorage) TryDropColumn(ctx context.Context, c cache.Column) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

// DummyStorage es un backend en memoria sin TTL, seguro para concurrencia.
// Guarda los bytes tal cual, igual que un backend real.
type DummyStorage struct {
	store map[string]map[string][]byte
	mu    sync.RWMutex
}

var _ cache.Storage = (*DummyStorage)(nil)

func NewDummyStorage() *DummyStorage {
	return &DummyStorage{store: make(map[string]map[string][]byte)}
}

func (s *DummyStorage) TryInsert(ctx context.Context, c cache.Column, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.store[c.Name()]
	if !ok {
		col = make(map[string][]byte)
		s.store[c.Name()] = col
	}
	col[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *DummyStorage) TryGet(ctx context.Context, c cache.Column, key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.store[c.Name()][string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *DummyStorage) TryDropColumn(ctx context.Context, c cache.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, c.Name())
	return nil
}

func (s *DummyStorage) Close() error { return nil }

// Len cuenta las entradas de una columna (solo para tests).
func (s *DummyStorage) Len(column string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store[column])
}
