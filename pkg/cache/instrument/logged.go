// Package instrument envuelve cualquier cache.Storage con logs y métricas.
// Los decoradores no cambian resultados ni errores.
package instrument

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/omegacache/pkg/cache"
)

type logged struct {
	next cache.Storage
	log  *zap.Logger
}

var _ cache.Storage = (*logged)(nil)

// Logged registra cada operación en Debug (columna y duración) y los fallos en Warn.
func Logged(next cache.Storage, log *zap.Logger) cache.Storage {
	if log == nil {
		log = zap.NewNop()
	}
	return &logged{next: next, log: log.Named("cache")}
}

func (l *logged) done(op string, c cache.Column, start time.Time, err error, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("op", op),
		zap.String("column", c.Name()),
		zap.Int64("elapsed_us", time.Since(start).Microseconds()),
	}, extra...)

	if err != nil {
		l.log.Warn("cache operation failed", append(fields,
			zap.Stringer("kind", cache.KindOf(err)),
			zap.Error(err))...)
		return
	}
	l.log.Debug("cache operation", fields...)
}

func (l *logged) TryInsert(ctx context.Context, c cache.Column, key, value []byte) error {
	start := time.Now()
	err := l.next.TryInsert(ctx, c, key, value)
	l.done("insert", c, start, err, zap.Int("bytes", len(value)))
	return err
}

func (l *logged) TryGet(ctx context.Context, c cache.Column, key []byte) ([]byte, bool, error) {
	start := time.Now()
	v, ok, err := l.next.TryGet(ctx, c, key)
	l.done("get", c, start, err, zap.Bool("hit", ok))
	return v, ok, err
}

func (l *logged) TryDropColumn(ctx context.Context, c cache.Column) error {
	start := time.Now()
	err := l.next.TryDropColumn(ctx, c)
	l.done("drop", c, start, err)
	return err
}

func (l *logged) Close() error {
	err := l.next.Close()
	if err != nil {
		l.log.Warn("cache close failed", zap.Error(err))
	}
	return err
}
