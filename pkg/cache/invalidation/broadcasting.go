package invalidation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/omegacache/pkg/cache"
)

var _ cache.Storage = (*broadcasting)(nil)

type broadcasting struct {
	cache.Storage
	pub      Publisher
	origin   uuid.UUID
	attempts int
	delay    time.Duration
}

// BroadcastOption configura Broadcasting.
type BroadcastOption func(*broadcasting)

// WithPublishRetry reintenta la publicación hasta attempts veces. Por defecto se publica una vez.
func WithPublishRetry(attempts int, delay time.Duration) BroadcastOption {
	return func(b *broadcasting) {
		b.attempts = attempts
		b.delay = delay
	}
}

// Broadcasting publica un ColumnDropped después de cada borrado local correcto.
// El resto de operaciones pasan directamente a next.
//
// El Listener del mismo nodo debe recibir next, no el Storage devuelto aquí.
func Broadcasting(next cache.Storage, pub Publisher, origin uuid.UUID, opts ...BroadcastOption) cache.Storage {
	b := &broadcasting{Storage: next, pub: pub, origin: origin, attempts: 1}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *broadcasting) TryDropColumn(ctx context.Context, c cache.Column) error {
	if err := b.Storage.TryDropColumn(ctx, c); err != nil {
		return err
	}

	evt, err := NewColumnDropped(b.origin, c.Name(), c.TTLSeconds(), time.Now())
	if err != nil {
		return cache.EngineError(fmt.Errorf("encode invalidation for column %q: %w", c.Name(), err))
	}
	// El borrado local ya está hecho; el fallo solo significa que los demás nodos no se enteran
	err = retry(ctx, b.attempts, b.delay, func() error {
		return b.pub.Publish(ctx, evt)
	})
	if err != nil {
		return cache.EngineError(fmt.Errorf("column %q dropped locally, broadcast failed: %w", c.Name(), err))
	}
	return nil
}
