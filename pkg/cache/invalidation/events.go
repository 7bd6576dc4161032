// Package invalidation propaga los borrados de columna entre nodos.
//
// Con backends embebidos cada nodo tiene su propia copia de las columnas: cuando uno
// vacía una columna lo publica y los demás aplican el mismo borrado en local.
package invalidation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTopic es el topic de Kafka por defecto para los eventos de invalidación.
const DefaultTopic = "omegacache-invalidation"

// Tipos de evento
const (
	ColumnDroppedType = "ColumnDropped"
)

// Publisher publica un evento en el bus. El formato del payload lo decide cada adapter.
type Publisher interface {
	Publish(ctx context.Context, event interface{}) error
}

// Keyer lo implementan los eventos que tienen clave de partición.
type Keyer interface {
	PartitionKey() string
}

// MessageHandler procesa un mensaje crudo venga del bus que venga.
type MessageHandler interface {
	HandleMessage(ctx context.Context, key string, payload []byte)
}

// IntegrationEvent es el sobre común de todos los eventos.
type IntegrationEvent struct {
	Type      string          `json:"type"`
	Key       string          `json:"key,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func (e IntegrationEvent) PartitionKey() string { return e.Key }

// ColumnDropped indica que Origin vació Column.
type ColumnDropped struct {
	ID     uuid.UUID `json:"id"`
	Origin uuid.UUID `json:"origin"`
	Column string    `json:"column"`
	TTL    int       `json:"ttl_seconds"`
}

// NewColumnDropped construye el sobre listo para publicar.
func NewColumnDropped(origin uuid.UUID, column string, ttl int, at time.Time) (IntegrationEvent, error) {
	data, err := json.Marshal(ColumnDropped{
		ID:     uuid.New(),
		Origin: origin,
		Column: column,
		TTL:    ttl,
	})
	if err != nil {
		return IntegrationEvent{}, err
	}
	return IntegrationEvent{
		Type:      ColumnDroppedType,
		Key:       column,
		Timestamp: at.UTC(),
		Data:      data,
	}, nil
}

func unmarshalAndHandle[T any](log *zap.Logger, data json.RawMessage, handler func(T)) {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Warn("Failed to unmarshal event data", zap.Error(err))
		return
	}
	handler(evt)
}
