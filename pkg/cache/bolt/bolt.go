// Package bolt implementa el backend embebido y persistente sobre bbolt.
//
// Cada columna es un bucket. bbolt no tiene expiración nativa, así que cada valor se guarda
// como cache.Record (instante de inserción + payload) y el TTL se evalúa al leer.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	bolt "go.etcd.io/bbolt"

	"github.com/davicafu/omegacache/pkg/cache"
)

// Storage es seguro para uso concurrente: bbolt serializa los escritores y admite lectores en paralelo.
type Storage struct {
	db    *bolt.DB
	clock clock.Clock
}

var _ cache.Storage = (*Storage)(nil)

// Option configura el Storage al abrirlo.
type Option func(*Storage)

// WithClock inyecta el reloj usado para el TTL (tests).
func WithClock(clk clock.Clock) Option {
	return func(s *Storage) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// Open abre (o crea) la base de datos en path.
// capacity se traduce a InitialMmapSize; 0 usa cache.DefaultCapacity.
func Open(path string, capacity uint64, opts ...Option) (*Storage, error) {
	if capacity == 0 {
		capacity = cache.DefaultCapacity
	}
	mmap := math.MaxInt
	if capacity < uint64(math.MaxInt) {
		mmap = int(capacity)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:         1 * time.Second,
		InitialMmapSize: mmap,
	})
	if err != nil {
		return nil, fmt.Errorf("open bolt database %q: %w", path, err)
	}

	s := &Storage{db: db, clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Build es Open para el arranque: si la base no se puede abrir, panic.
func Build(location string, capacity uint64) cache.Storage {
	s, err := Open(location, capacity)
	if err != nil {
		panic(err)
	}
	return s
}

var _ cache.BuildFunc = Build

func (s *Storage) TryInsert(ctx context.Context, c cache.Column, key, value []byte) error {
	if _, err := cache.TTL(c); err != nil {
		return cache.PutError(err)
	}
	if err := ctx.Err(); err != nil {
		return cache.EngineError(err)
	}

	raw, err := cache.EncodeRecord(cache.Record{Time: cache.Now(s.clock), Data: value})
	if err != nil {
		return cache.PutError(err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(c))
		if err != nil {
			return err
		}
		return b.Put(physicalKey(key), raw)
	})
	return mapErr(err, cache.KindPut)
}

func (s *Storage) TryGet(ctx context.Context, c cache.Column, key []byte) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, cache.EngineError(err)
	}
	ttl, err := cache.TTL(c)
	if err != nil {
		return nil, false, cache.GetError(err)
	}

	var (
		raw []byte
		rec cache.Record
	)
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(c))
		if b == nil {
			return nil
		}
		v := b.Get(physicalKey(key))
		if v == nil {
			return nil
		}
		// v solo es válido dentro de la transacción
		raw = append([]byte(nil), v...)
		var derr error
		rec, derr = cache.DecodeRecord(raw)
		return derr
	})
	if err != nil {
		return nil, false, mapErr(err, cache.KindGet)
	}
	if raw == nil {
		return nil, false, nil
	}

	if cache.Expired(rec.Time, cache.Now(s.clock), ttl) {
		s.deleteIfUnchanged(c, key, raw)
		return nil, false, nil
	}
	return rec.Data, true, nil
}

// deleteIfUnchanged borra la entrada expirada solo si nadie la ha reescrito entretanto.
// Es best-effort: un fallo aquí no cambia el resultado de la lectura.
func (s *Storage) deleteIfUnchanged(c cache.Column, key, stale []byte) {
	_ = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(c))
		if b == nil {
			return nil
		}
		pk := physicalKey(key)
		if !bytes.Equal(b.Get(pk), stale) {
			return nil
		}
		return b.Delete(pk)
	})
}

func (s *Storage) TryDropColumn(ctx context.Context, c cache.Column) error {
	if err := ctx.Err(); err != nil {
		return cache.EngineError(err)
	}
	name := bucketName(c)
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(name)
		return err
	})
	return mapErr(err, cache.KindEngine)
}

// bbolt no admite claves ni nombres de bucket vacíos, así que ambos llevan un byte delante.
func bucketName(c cache.Column) []byte {
	return append([]byte{'c'}, c.Name()...)
}

func physicalKey(key []byte) []byte {
	return append([]byte{'k'}, key...)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// mapErr traduce los errores de bbolt: base cerrada es siempre KindEngine.
func mapErr(err error, kind cache.Kind) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return cache.EngineError(err)
	}
	return cache.Errorf(kind, "%v", err)
}
