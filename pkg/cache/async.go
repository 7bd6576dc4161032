package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AsyncInsert actualiza la caché en background sin bloquear al llamador.
// Pensado para el patrón cache-aside: el fallo de la escritura solo se registra.
func AsyncInsert(e *Engine, c Column, key []byte, value any, timeout time.Duration, log *zap.Logger) {
	if e == nil {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}

	go func() {
		// Usamos context.Background() a propósito: la escritura debe completarse aunque
		// el contexto de la petición original ya se haya cancelado.
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := e.TryInsert(ctx, c, key, value); err != nil {
			log.Warn("Cache insert failed",
				zap.String("column", c.Name()),
				zap.ByteString("key", key),
				zap.Error(err))
		}
	}()
}

// AsyncDropColumn vacía la columna en background.
func AsyncDropColumn(e *Engine, c Column, log *zap.Logger) {
	if e == nil {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}

	go func() {
		if err := e.TryDropColumn(context.Background(), c); err != nil {
			log.Warn("Cache column drop failed",
				zap.String("column", c.Name()),
				zap.Error(err))
		}
	}()
}
