// Package discard implementa un backend que no guarda nada.
// Sirve para desactivar la caché sin tocar a los llamadores.
package discard

import (
	"context"

	"github.com/davicafu/omegacache/pkg/cache"
)

// Storage acepta todas las escrituras y nunca devuelve nada.
type Storage struct{}

var _ cache.Storage = Storage{}

// Build ignora location y capacity. Nunca falla.
func Build(string, uint64) cache.Storage {
	return Storage{}
}

var _ cache.BuildFunc = Build

func (Storage) TryInsert(context.Context, cache.Column, []byte, []byte) error { return nil }

func (Storage) TryGet(context.Context, cache.Column, []byte) ([]byte, bool, error) {
	return nil, false, nil
}

func (Storage) TryDropColumn(context.Context, cache.Column) error { return nil }

func (Storage) Close() error { return nil }
