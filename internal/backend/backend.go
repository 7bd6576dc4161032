// Package backend elige y abre el backend de la caché a partir de su nombre.
package backend

import (
	"context"
	"fmt"
	"sort"

	"github.com/davicafu/omegacache/pkg/cache"
	"github.com/davicafu/omegacache/pkg/cache/bolt"
	"github.com/davicafu/omegacache/pkg/cache/discard"
	"github.com/davicafu/omegacache/pkg/cache/memory"
	"github.com/davicafu/omegacache/pkg/cache/mongo"
	"github.com/davicafu/omegacache/pkg/cache/postgres"
	"github.com/davicafu/omegacache/pkg/cache/redis"
	"github.com/davicafu/omegacache/pkg/cache/sqlite"
)

// Nombres de backend admitidos en CACHE_BACKEND.
const (
	Discard  = "discard"
	Memory   = "memory"
	Bolt     = "bolt"
	SQLite   = "sqlite"
	Redis    = "redis"
	Postgres = "postgres"
	Mongo    = "mongo"
)

// opener abre un backend devolviendo el error. Las BuildFunc de cada paquete hacen panic,
// así que aquí se usan sus Open.
type opener func(ctx context.Context, location string, capacity uint64) (cache.Storage, error)

var openers = map[string]opener{
	Discard: func(_ context.Context, location string, capacity uint64) (cache.Storage, error) {
		return discard.Build(location, capacity), nil
	},
	Memory: func(context.Context, string, uint64) (cache.Storage, error) {
		return memory.New(), nil
	},
	Bolt: func(_ context.Context, location string, capacity uint64) (cache.Storage, error) {
		return bolt.Open(location, capacity)
	},
	SQLite: func(_ context.Context, location string, capacity uint64) (cache.Storage, error) {
		return sqlite.Open(location, capacity)
	},
	Redis: func(ctx context.Context, location string, _ uint64) (cache.Storage, error) {
		return redis.Open(ctx, location)
	},
	Postgres: func(ctx context.Context, location string, _ uint64) (cache.Storage, error) {
		return postgres.Open(ctx, location)
	},
	Mongo: func(ctx context.Context, location string, _ uint64) (cache.Storage, error) {
		return mongo.Open(ctx, location, "")
	},
}

var defaultLocations = map[string]string{
	Bolt:     "./omegacache.db",
	SQLite:   "./omegacache.sqlite",
	Redis:    "redis://localhost:6379/0",
	Postgres: "postgres://localhost:5432/omegacache",
	Mongo:    "mongodb://localhost:27017",
}

// Names devuelve los backends conocidos, ordenados.
func Names() []string {
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultLocation es la ubicación que se usa cuando CACHE_LOCATION está vacía.
func DefaultLocation(name string) string {
	return defaultLocations[name]
}

// Open abre el backend name devolviendo el error en lugar de hacer panic.
func Open(ctx context.Context, name, location string, capacity uint64) (cache.Storage, error) {
	if location == "" {
		location = DefaultLocation(name)
	}

	open, ok := openers[name]
	if !ok {
		return nil, fmt.Errorf("unknown cache backend %q (valid: %v)", name, Names())
	}
	return open(ctx, location, capacity)
}

// Codec traduce CACHE_CODEC.
func Codec(name string) (cache.Codec, error) {
	switch name {
	case "", "msgpack":
		return cache.Msgpack, nil
	case "json":
		return cache.JSON, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (valid: msgpack, json)", name)
	}
}
