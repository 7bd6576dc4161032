package invalidation

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// InMemoryBus reparte los eventos entre suscriptores del mismo proceso.
// Si el buffer de un suscriptor está lleno el evento se descarta para ese suscriptor.
type InMemoryBus struct {
	subscribers []chan []byte
	mu          sync.RWMutex
	once        sync.Once
	closed      bool
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ Publisher = (*InMemoryBus)(nil)

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{subscribers: make([]chan []byte, 0)}
}

// Publish serializa el evento y lo entrega a todos los suscriptores sin bloquear.
func (b *InMemoryBus) Publish(ctx context.Context, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, sub := range b.subscribers {
		select {
		case sub <- payload:
		default:
		}
	}
	return nil
}

// Subscribe añade un suscriptor con un buffer de bufferSize eventos.
func (b *InMemoryBus) Subscribe(bufferSize int) <-chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(chan []byte, bufferSize)
	if b.closed {
		close(sub)
		return sub
	}
	b.subscribers = append(b.subscribers, sub)
	return sub
}

// Close cierra todos los canales de suscripción.
func (b *InMemoryBus) Close() {
	b.once.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed = true
		for _, sub := range b.subscribers {
			close(sub)
		}
		b.subscribers = nil
	})
}

// ConsumeChannel entrega cada payload de ch al handler hasta que ctx se cancela o ch se cierra.
func ConsumeChannel(ctx context.Context, ch <-chan []byte, handler MessageHandler, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("Invalidation consumer stopped")
				return
			case payload, ok := <-ch:
				if !ok {
					log.Info("Invalidation channel closed")
					return
				}
				handler.HandleMessage(ctx, "", payload)
			}
		}
	}()
}
