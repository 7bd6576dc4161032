// Package redis implementa el backend en red sobre Redis.
//
// La clave física es "<columna>:<clave>" y el TTL es el nativo de Redis (SET ... EX).
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/davicafu/omegacache/pkg/cache"
)

// scanBatch es el COUNT de cada SCAN y el tamaño máximo de cada UNLINK.
const scanBatch = 100

// Storage envuelve un *redis.Client, que ya gestiona su propio pool de conexiones.
type Storage struct {
	client *redis.Client
}

var _ cache.Storage = (*Storage)(nil)

// New usa un cliente ya construido. Close lo cerrará.
func New(client *redis.Client) *Storage {
	return &Storage{client: client}
}

// Open crea el cliente a partir de una URI redis:// y comprueba que responde.
func Open(ctx context.Context, uri string) (*Storage, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return New(client), nil
}

// Build abre el backend al arrancar. capacity no aplica: la memoria la gestiona el servidor.
func Build(location string, _ uint64) cache.Storage {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Open(ctx, location)
	if err != nil {
		panic(err)
	}
	return s
}

var _ cache.BuildFunc = Build

func physicalKey(c cache.Column, key []byte) string {
	return c.Name() + ":" + string(key)
}

// escapeGlob escapa los metacaracteres de patrón de Redis para que el nombre de columna
// se compare literalmente en SCAN MATCH.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func (s *Storage) TryInsert(ctx context.Context, c cache.Column, key, value []byte) error {
	ttl, err := cache.TTL(c)
	if err != nil {
		return cache.PutError(err)
	}
	// EX 0 no es válido en Redis: un segundo es la expiración nativa más corta
	if ttl == 0 {
		ttl = 1
	}

	err = s.client.Set(ctx, physicalKey(c, key), value, time.Duration(ttl)*time.Second).Err()
	return mapErr(err, cache.KindPut)
}

func (s *Storage) TryGet(ctx context.Context, c cache.Column, key []byte) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, physicalKey(c, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // cache miss
		}
		return nil, false, mapErr(err, cache.KindGet)
	}
	// Un valor vacío no se distingue de "no existe"
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

// TryDropColumn recorre las claves de la columna con SCAN y las borra con UNLINK por lotes.
// No es atómico: una inserción concurrente puede sobrevivir al borrado.
// Las claves físicas son "<columna>:<clave>", así que borrar la columna "a" también borra
// las entradas de cualquier columna cuyo nombre empiece por "a:" (por ejemplo "a:b").
func (s *Storage) TryDropColumn(ctx context.Context, c cache.Column) error {
	match := escapeGlob(c.Name()) + ":*"
	iter := s.client.Scan(ctx, 0, match, scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := s.client.Unlink(ctx, batch...).Err(); err != nil {
				return cache.EngineError(err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return cache.EngineError(err)
	}
	if len(batch) > 0 {
		if err := s.client.Unlink(ctx, batch...).Err(); err != nil {
			return cache.EngineError(err)
		}
	}
	return nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

// mapErr separa las respuestas de error del servidor (kind) de los fallos de
// infraestructura: cliente cerrado, pool agotado, red o contexto (KindEngine).
func mapErr(err error, kind cache.Kind) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return cache.EngineError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return cache.EngineError(err)
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return cache.Errorf(kind, "%v", err)
	}
	return cache.EngineError(err)
}
