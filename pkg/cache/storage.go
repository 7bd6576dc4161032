package cache

import (
	"context"
)

// Storage define el contrato a nivel de bytes que cumple cada backend.
//
// Todas las implementaciones deben ser seguras para uso concurrente sin bloqueo externo
// y deben dar el mismo comportamiento observable:
//   - una entrada está viva mientras elapsed <= ttl; con elapsed > ttl ya no se devuelve;
//   - "no existe" y "expirada" son lo mismo: (nil, false, nil), nunca un error;
//   - TryDropColumn solo afecta a la columna indicada.
type Storage interface {
	// TryInsert guarda value bajo key dentro de la columna aplicando su TTL.
	// Devuelve un error KindPut si el TTL es negativo o si la escritura falla.
	TryInsert(ctx context.Context, c Column, key, value []byte) error

	// TryGet devuelve (value, true, nil) si la entrada existe y sigue viva.
	TryGet(ctx context.Context, c Column, key []byte) (value []byte, found bool, err error)

	// TryDropColumn elimina todas las entradas de la columna.
	// La columna sigue disponible para nuevas escrituras.
	TryDropColumn(ctx context.Context, c Column) error

	// Close libera el almacén subyacente. El dueño de la instancia decide cuándo llamarlo.
	Close() error
}

// BuildFunc abre un backend en location. capacity == 0 significa "sin definir".
// Las implementaciones hacen panic si no pueden abrir el almacén: se llama una sola vez al arrancar.
type BuildFunc func(location string, capacity uint64) Storage

// DefaultCapacity es el presupuesto de memoria por defecto de los backends embebidos (1 GiB).
const DefaultCapacity uint64 = 1024 * 1024 * 1024
