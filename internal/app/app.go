// Package app monta la caché completa a partir de la configuración:
// backend, decoradores de logs y métricas, invalidación entre nodos y Engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/omegacache/internal/backend"
	"github.com/davicafu/omegacache/internal/config"
	"github.com/davicafu/omegacache/pkg/cache"
	"github.com/davicafu/omegacache/pkg/cache/instrument"
	"github.com/davicafu/omegacache/pkg/cache/invalidation"
)

type App struct {
	Config  *config.Config
	Engine  *cache.Engine
	Metrics *metrics.Set
	Origin  uuid.UUID

	log     *zap.Logger
	closers []func() error
}

// New abre el backend configurado y lo deja listo para usar.
// Con Kafka configurado, los borrados de columna se publican y se escuchan los de otros nodos
// hasta que ctx se cancele.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	codec, err := backend.Codec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	raw, err := backend.Open(ctx, cfg.Backend, cfg.Location, cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}

	a := &App{
		Config:  cfg,
		Metrics: metrics.NewSet(),
		Origin:  uuid.New(),
		log:     log,
	}

	local := instrument.Metered(instrument.Logged(raw, log), a.Metrics)
	storage := local

	if cfg.UseKafka {
		writer := invalidation.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		reader := invalidation.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, writer.Close, reader.Close)

		storage = invalidation.Broadcasting(local, invalidation.NewKafkaPublisher(writer, log), a.Origin,
			invalidation.WithPublishRetry(3, 200*time.Millisecond))
		invalidation.NewKafkaConsumer(reader, invalidation.NewListener(local, a.Origin, log), log).Start(ctx)

		log.Info("🚀 Invalidaciones por Kafka habilitadas",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
			zap.String("origin", a.Origin.String()),
		)
	}

	a.Engine = cache.New(storage, cache.WithCodec(codec))
	log.Info("✅ Cache lista",
		zap.String("backend", cfg.Backend),
		zap.String("codec", cfg.Codec),
		zap.Int("columns", len(cfg.Columns)),
	)
	return a, nil
}

// Column busca una columna configurada.
func (a *App) Column(name string) (cache.Def, error) {
	col, ok := a.Config.Column(name)
	if !ok {
		return cache.Def{}, fmt.Errorf("unknown column %q", name)
	}
	return col, nil
}

// Close cierra el backend y los clientes de Kafka.
func (a *App) Close() error {
	errs := []error{a.Engine.Close()}
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
