package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/ndquoc/ticket-rush/internal/core/domain"
	"github.com/ndquoc/ticket-rush/internal/port"
)

// KafkaQueue carries reservation messages on a single topic. Producers key
// by ticket ID; consumers in one group share partitions, each delivery is
// at least once because the offset is committed only after the handler
// returns nil.
type KafkaQueue struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

func NewKafkaQueue(brokers []string, topic string) *KafkaQueue {
	return &KafkaQueue{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		logger: zlog.With().Str("component", "kafka_queue").Logger(),
	}
}

func (q *KafkaQueue) Publish(ctx context.Context, msg domain.ReservationMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}

	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.TicketID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish reservation: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Close() error {
	return q.writer.Close()
}

// KafkaConsumer pulls reservation messages and hands them to a handler.
type KafkaConsumer struct {
	reader  *kafka.Reader
	handler port.ReservationHandler
	logger  zerolog.Logger
}

func NewKafkaConsumer(brokers []string, topic, groupID string, handler port.ReservationHandler) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		handler: handler,
		logger:  zlog.With().Str("component", "kafka_consumer").Logger(),
	}
}

// Run consumes until ctx is cancelled. Handler errors leave the offset
// uncommitted so the message is redelivered; the handler is responsible for
// being idempotent per order SN.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("fetch message failed, retrying")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		var reservation domain.ReservationMessage
		if err := json.Unmarshal(msg.Value, &reservation); err != nil {
			// Malformed payloads can never succeed; ack and move on.
			c.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("dropping malformed reservation")
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error().Err(err).Msg("commit offset failed")
			}
			continue
		}

		if err := c.handler(ctx, reservation); err != nil {
			c.logger.Error().Err(err).Str("order_sn", reservation.OrderSN).Msg("reservation handling failed, will redeliver")
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error().Err(err).Str("order_sn", reservation.OrderSN).Msg("commit offset failed")
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
