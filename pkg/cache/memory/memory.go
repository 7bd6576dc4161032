// Package memory implementa un backend en memoria del proceso.
// Útil para tests y como L1 no persistente delante de un backend en red.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/davicafu/omegacache/pkg/cache"
)

// DefaultCleanupInterval es cada cuánto se purgan las entradas expiradas.
const DefaultCleanupInterval = time.Minute

var errClosed = errors.New("memory storage is closed")

// item guarda los bytes (igual que un backend real) y el instante de inserción.
type item struct {
	value      []byte
	insertedAt uint64
	ttl        uint64
}

// Storage implementa cache.Storage con un mapa columna -> clave -> item.
type Storage struct {
	store    map[string]map[string]item
	mu       sync.RWMutex // RWMutex permite múltiples lectores o un solo escritor.
	clock    clock.Clock
	interval time.Duration
	stopChan chan struct{} // Canal para detener la goroutine de limpieza.
	stopOnce sync.Once
	closed   bool
}

// Verificación estática
var _ cache.Storage = (*Storage)(nil)

type Option func(*Storage)

// WithClock inyecta el reloj (tests).
func WithClock(clk clock.Clock) Option {
	return func(s *Storage) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// WithCleanupInterval cambia la frecuencia de la limpieza en segundo plano.
func WithCleanupInterval(d time.Duration) Option {
	return func(s *Storage) {
		if d > 0 {
			s.interval = d
		}
	}
}

// New crea el almacén e inicia la limpieza periódica. Hay que llamar a Close para pararla.
func New(opts ...Option) *Storage {
	s := &Storage{
		store:    make(map[string]map[string]item),
		clock:    clock.New(),
		interval: DefaultCleanupInterval,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	// El ticker tiene que estar registrado antes de volver (reloj mock)
	go s.cleanupLoop(s.clock.Ticker(s.interval))
	return s
}

// Build ignora location y capacity: el presupuesto de memoria no se aplica.
func Build(string, uint64) cache.Storage {
	return New()
}

var _ cache.BuildFunc = Build

func (s *Storage) TryInsert(ctx context.Context, c cache.Column, key, value []byte) error {
	ttl, err := cache.TTL(c)
	if err != nil {
		return cache.PutError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cache.EngineError(errClosed)
	}

	col, ok := s.store[c.Name()]
	if !ok {
		col = make(map[string]item)
		s.store[c.Name()] = col
	}
	col[string(key)] = item{
		value:      append([]byte{}, value...),
		insertedAt: cache.Now(s.clock),
		ttl:        ttl,
	}
	return nil
}

func (s *Storage) TryGet(ctx context.Context, c cache.Column, key []byte) ([]byte, bool, error) {
	ttl, err := cache.TTL(c)
	if err != nil {
		return nil, false, cache.GetError(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, cache.EngineError(errClosed)
	}

	it, ok := s.store[c.Name()][string(key)]
	if !ok {
		return nil, false, nil
	}
	// Se usa el TTL de la columna tal como llega ahora, igual que los demás backends
	if cache.Expired(it.insertedAt, cache.Now(s.clock), ttl) {
		return nil, false, nil
	}
	return append([]byte{}, it.value...), true, nil
}

func (s *Storage) TryDropColumn(ctx context.Context, c cache.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cache.EngineError(errClosed)
	}
	delete(s.store, c.Name())
	return nil
}

// Close detiene la limpieza y libera el mapa. Es idempotente.
func (s *Storage) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.mu.Lock()
		s.closed = true
		s.store = nil
		s.mu.Unlock()
	})
	return nil
}

// Len cuenta las entradas guardadas en una columna, expiradas incluidas.
func (s *Storage) Len(column string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store[column])
}

// cleanupLoop purga periódicamente las entradas expiradas con el TTL con el que se insertaron.
func (s *Storage) cleanupLoop(ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.purgeExpired()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Storage) purgeExpired() {
	now := cache.Now(s.clock)

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, col := range s.store {
		for key, it := range col {
			if cache.Expired(it.insertedAt, now, it.ttl) {
				delete(col, key)
			}
		}
		if len(col) == 0 {
			delete(s.store, name)
		}
	}
}
