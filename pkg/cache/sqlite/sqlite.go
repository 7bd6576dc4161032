// Package sqlite implementa un backend embebido sobre SQLite (modernc.org/sqlite, sin cgo).
//
// Cada columna es una tabla "col_<nombre>" con (key, inserted_at, value).
// Como bolt, SQLite no tiene expiración nativa y el TTL se evalúa al leer.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	_ "modernc.org/sqlite"

	"github.com/davicafu/omegacache/pkg/cache"
)

const busyTimeoutMillis = 5000

var errClosed = errors.New("sqlite storage is closed")

type Storage struct {
	db     *sql.DB
	clock  clock.Clock
	tables sync.Map // nombre de columna -> struct{}, tablas ya creadas
	closed atomic.Bool
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

// dsn construye la cadena de conexión con los pragmas que se aplican a cada conexión del pool.
func dsn(path string, capacity uint64) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	// cache_size negativo se interpreta en KiB
	q.Add("_pragma", fmt.Sprintf("cache_size(-%d)", capacity/1024))
	return path + "?" + q.Encode()
}

// Open abre (o crea) la base de datos en path. capacity es el tamaño de la caché de páginas.
func Open(path string, capacity uint64, opts ...Option) (*Storage, error) {
	if capacity == 0 {
		capacity = cache.DefaultCapacity
	}

	db, err := sql.Open("sqlite", dsn(path, capacity))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// Una base en memoria solo existe dentro de su conexión
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	s := &Storage{db: db, clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Build abre el backend al arrancar y hace panic si no puede.
func Build(location string, capacity uint64) cache.Storage {
	s, err := Open(location, capacity)
	if err != nil {
		panic(err)
	}
	return s
}

var _ cache.BuildFunc = Build

// tableName devuelve el identificador ya entrecomillado de la tabla de la columna.
func tableName(c cache.Column) string {
	return `"col_` + strings.ReplaceAll(c.Name(), `"`, `""`) + `"`
}

func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
		key BLOB PRIMARY KEY,
		inserted_at INTEGER NOT NULL,
		value BLOB NOT NULL
	)`
}

func (s *Storage) ensureTable(ctx context.Context, c cache.Column) (string, error) {
	table := tableName(c)
	if _, ok := s.tables.Load(c.Name()); ok {
		return table, nil
	}
	if _, err := s.db.ExecContext(ctx, createTableSQL(table)); err != nil {
		return "", err
	}
	s.tables.Store(c.Name(), struct{}{})
	return table, nil
}

func (s *Storage) TryInsert(ctx context.Context, c cache.Column, key, value []byte) error {
	key = nonNilKey(key)
	if _, err := cache.TTL(c); err != nil {
		return cache.PutError(err)
	}
	if s.closed.Load() {
		return cache.EngineError(errClosed)
	}

	table, err := s.ensureTable(ctx, c)
	if err != nil {
		return mapErr(err, cache.KindEngine)
	}

	if value == nil {
		value = []byte{}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (key, inserted_at, value) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET inserted_at = excluded.inserted_at, value = excluded.value`,
		key, int64(cache.Now(s.clock)), value,
	)
	return mapErr(err, cache.KindPut)
}

func (s *Storage) TryGet(ctx context.Context, c cache.Column, key []byte) ([]byte, bool, error) {
	key = nonNilKey(key)
	ttl, err := cache.TTL(c)
	if err != nil {
		return nil, false, cache.GetError(err)
	}
	if s.closed.Load() {
		return nil, false, cache.EngineError(errClosed)
	}

	table, err := s.ensureTable(ctx, c)
	if err != nil {
		return nil, false, mapErr(err, cache.KindEngine)
	}

	var (
		insertedAt int64
		value      []byte
	)
	row := s.db.QueryRowContext(ctx, `SELECT inserted_at, value FROM `+table+` WHERE key = ?`, key)
	if err := row.Scan(&insertedAt, &value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, mapErr(err, cache.KindGet)
	}
	if insertedAt < 0 {
		insertedAt = 0
	}

	if cache.Expired(uint64(insertedAt), cache.Now(s.clock), ttl) {
		// Best-effort: solo borra si la fila sigue siendo la misma que leímos
		_, _ = s.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE key = ? AND inserted_at = ? AND value = ?`,
			key, insertedAt, value,
		)
		return nil, false, nil
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

// TryDropColumn borra y recrea la tabla dentro de una transacción.
func (s *Storage) TryDropColumn(ctx context.Context, c cache.Column) (err error) {
	if s.closed.Load() {
		return cache.EngineError(errClosed)
	}
	table := tableName(c)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cache.EngineError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return cache.EngineError(err)
	}
	if _, err = tx.ExecContext(ctx, createTableSQL(table)); err != nil {
		return cache.EngineError(err)
	}
	if err = tx.Commit(); err != nil {
		return cache.EngineError(err)
	}
	s.tables.Store(c.Name(), struct{}{})
	return nil
}

func (s *Storage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func mapErr(err error, kind cache.Kind) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return cache.EngineError(err)
	}
	return cache.Errorf(kind, "%v", err)
}

// Una clave nil se enviaría como NULL; la clave vacía es un valor válido.
func nonNilKey(key []byte) []byte {
	if key == nil {
		return []byte{}
	}
	return key
}
