// Package postgres implementa un backend en red sobre PostgreSQL.
//
// Todas las columnas comparten la tabla omegacache_entries, particionada por la columna "col".
// El TTL se evalúa al leer, igual que en los backends embebidos.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davicafu/omegacache/pkg/cache"
)

const schema = `
	CREATE TABLE IF NOT EXISTS omegacache_entries (
		col TEXT NOT NULL,
		key BYTEA NOT NULL,
		inserted_at BIGINT NOT NULL,
		value BYTEA NOT NULL,
		PRIMARY KEY (col, key)
	)
`

// Storage es seguro para uso concurrente: cada operación toma su propia conexión del pool.
type Storage struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

var _ cache.Storage = (*Storage)(nil)

type Option func(*Storage)

// WithClock inyecta el reloj usado para el TTL (tests).
func WithClock(clk clock.Clock) Option {
	return func(s *Storage) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// Open crea el pool a partir de dsn, comprueba la conexión y crea la tabla si no existe.
func Open(ctx context.Context, dsn string, opts ...Option) (*Storage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}

	s := &Storage{pool: pool, clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Build abre el backend al arrancar. capacity no aplica: la memoria es cosa del servidor.
func Build(location string, _ uint64) cache.Storage {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, location)
	if err != nil {
		panic(err)
	}
	return s
}

var _ cache.BuildFunc = Build

// withConn toma una conexión del pool y la devuelve siempre, pase lo que pase en fn.
func (s *Storage) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return cache.EngineError(err)
	}
	defer conn.Release()
	return fn(conn)
}

func (s *Storage) TryInsert(ctx context.Context, c cache.Column, key, value []byte) error {
	key = nonNilKey(key)
	if _, err := cache.TTL(c); err != nil {
		return cache.PutError(err)
	}
	if value == nil {
		value = []byte{}
	}

	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx,
			`INSERT INTO omegacache_entries (col, key, inserted_at, value) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (col, key) DO UPDATE SET inserted_at = EXCLUDED.inserted_at, value = EXCLUDED.value`,
			c.Name(), key, int64(cache.Now(s.clock)), value,
		)
		return mapErr(err, cache.KindPut)
	})
}

func (s *Storage) TryGet(ctx context.Context, c cache.Column, key []byte) (value []byte, found bool, err error) {
	key = nonNilKey(key)
	ttl, err := cache.TTL(c)
	if err != nil {
		return nil, false, cache.GetError(err)
	}

	err = s.withConn(ctx, func(conn *pgxpool.Conn) error {
		var insertedAt int64
		var data []byte
		err := conn.QueryRow(ctx,
			`SELECT inserted_at, value FROM omegacache_entries WHERE col = $1 AND key = $2`,
			c.Name(), key,
		).Scan(&insertedAt, &data)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return mapErr(err, cache.KindGet)
		}
		if insertedAt < 0 {
			insertedAt = 0
		}

		if cache.Expired(uint64(insertedAt), cache.Now(s.clock), ttl) {
			// Best-effort, con la misma marca de tiempo para no borrar una reinserción
			_, _ = conn.Exec(ctx,
				`DELETE FROM omegacache_entries WHERE col = $1 AND key = $2 AND inserted_at = $3`,
				c.Name(), key, insertedAt,
			)
			return nil
		}
		if data == nil {
			data = []byte{}
		}
		value, found = data, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// TryDropColumn es un único DELETE, así que es atómico respecto a otras operaciones.
func (s *Storage) TryDropColumn(ctx context.Context, c cache.Column) error {
	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		if _, err := conn.Exec(ctx, `DELETE FROM omegacache_entries WHERE col = $1`, c.Name()); err != nil {
			return cache.EngineError(err)
		}
		return nil
	})
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// mapErr: los errores que devuelve el servidor mantienen el kind de la operación,
// el resto (conexión, contexto, pool) son KindEngine.
func mapErr(err error, kind cache.Kind) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return cache.Errorf(kind, "%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
	}
	return cache.EngineError(err)
}

// Una clave nil se enviaría como NULL; la clave vacía es un valor válido.
func nonNilKey(key []byte) []byte {
	if key == nil {
		return []byte{}
	}
	return key
}
