package invalidation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/omegacache/pkg/cache"
)

// DefaultApplyTimeout limita cuánto puede tardar un borrado remoto en aplicarse.
const DefaultApplyTimeout = 5 * time.Second

// Listener aplica en el almacén local los borrados publicados por otros nodos.
type Listener struct {
	storage cache.Storage
	origin  uuid.UUID
	timeout time.Duration
	log     *zap.Logger
}

var _ MessageHandler = (*Listener)(nil)

// NewListener ignora los eventos cuyo Origin sea origin (los del propio nodo).
func NewListener(storage cache.Storage, origin uuid.UUID, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{
		storage: storage,
		origin:  origin,
		timeout: DefaultApplyTimeout,
		log:     log,
	}
}

func (l *Listener) HandleMessage(ctx context.Context, key string, payload []byte) {
	var base IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		l.log.Warn("Failed to unmarshal integration event", zap.String("key", key), zap.Error(err))
		return
	}

	switch base.Type {
	case ColumnDroppedType:
		unmarshalAndHandle[ColumnDropped](l.log, base.Data, func(evt ColumnDropped) {
			l.applyDrop(ctx, evt)
		})
	default:
		l.log.Warn("Unknown event type", zap.String("type", base.Type))
	}
}

func (l *Listener) applyDrop(ctx context.Context, evt ColumnDropped) {
	if evt.Origin == l.origin {
		l.log.Debug("Ignoring own invalidation", zap.String("event_id", evt.ID.String()))
		return
	}

	ctxDrop, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	c := cache.Def{ColumnName: evt.Column, TTL: evt.TTL}
	if err := l.storage.TryDropColumn(ctxDrop, c); err != nil {
		l.log.Warn("Failed to apply remote column drop",
			zap.String("column", evt.Column),
			zap.String("origin", evt.Origin.String()),
			zap.Error(err),
		)
		return
	}
	l.log.Info("Column dropped via invalidation event",
		zap.String("column", evt.Column),
		zap.String("origin", evt.Origin.String()),
	)
}
