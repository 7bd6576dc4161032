package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// Verificación estática
var _ Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, log: log}
}

// invalidationPartition es la única partición que usan las invalidaciones.
// Sin grupo de consumo cada nodo lee una sola partición, así que todo se escribe en ella;
// el topic puede tener más particiones, pero quedan sin usar.
const invalidationPartition = 0

// toInvalidationPartition ignora la clave y elige siempre invalidationPartition.
func toInvalidationPartition(kafka.Message, ...int) int {
	return invalidationPartition
}

// NewKafkaWriter crea el writer con la configuración que usa el servicio.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     kafka.BalancerFunc(toInvalidationPartition),
		RequiredAcks: kafka.RequireOne,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var key []byte
	if keyer, ok := event.(Keyer); ok {
		key = []byte(keyer.PartitionKey())
	}

	msg := kafka.Message{
		Key:   key,
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Error publishing to Kafka", zap.Error(err))
		return err
	}

	p.log.Debug("Event published successfully", zap.ByteString("key", key))
	return nil
}

// KafkaConsumer lee del topic de invalidación y pasa cada mensaje al handler.
type KafkaConsumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	log     *zap.Logger
}

func NewKafkaConsumer(reader *kafka.Reader, handler MessageHandler, log *zap.Logger) *KafkaConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaConsumer{
		reader:  reader,
		handler: handler,
		log:     log,
	}
}

// NewKafkaReader crea un reader sin grupo de consumo: cada nodo debe ver todos los eventos,
// no repartirlos con el resto.
func NewKafkaReader(brokers []string, topic string) *kafka.Reader {
	if topic == "" {
		topic = DefaultTopic
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		Partition:   invalidationPartition,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
}

// Start inicia el bucle de consumo en una goroutine. Termina al cancelar ctx.
func (c *KafkaConsumer) Start(ctx context.Context) {
	c.log.Info("🎧 Iniciando consumidor de invalidaciones...",
		zap.String("topic", c.reader.Config().Topic),
		zap.Strings("brokers", c.reader.Config().Brokers),
	)

	go func() {
		for {
			// ReadMessage es una llamada bloqueante.
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					c.log.Info("Consumidor de invalidaciones detenido.", zap.String("topic", c.reader.Config().Topic))
					return
				}
				c.log.Error("Error al leer mensaje de Kafka", zap.Error(err))
				continue
			}

			c.handler.HandleMessage(ctx, string(msg.Key), msg.Value)
		}
	}()
}
