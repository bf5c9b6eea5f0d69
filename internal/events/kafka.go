package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"photohub/internal/logging"
	"photohub/internal/models"
)

// KafkaPublisher routes filter jobs to the jobs topic and every other event
// to the events topic, keyed by photo id.
type KafkaPublisher struct {
	writer      *kafka.Writer
	eventsTopic string
	jobsTopic   string
}

func NewKafkaPublisher(cfg models.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		eventsTopic: cfg.EventsTopic,
		jobsTopic:   cfg.JobsTopic,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	const op = "events.Publish"

	value, err := Encode(e)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := kafka.Message{
		Topic: p.topicFor(e.Type),
		Key:   []byte(strconv.FormatInt(e.PhotoID, 10)),
		Value: value,
		Time:  time.UnixMilli(e.Timestamp),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w: %v", op, models.ErrUnavailable, err)
	}
	return nil
}

func (p *KafkaPublisher) topicFor(t Type) string {
	if t == FilterRequested {
		return p.jobsTopic
	}
	return p.eventsTopic
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, e Event) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads filter jobs from the jobs topic as part of a consumer group.
type Consumer struct {
	reader  messageReader
	handle  Handler
	backoff time.Duration
}

func NewConsumer(cfg models.KafkaConfig, handle Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.JobsTopic,
		GroupID: cfg.GroupID,
	})
	return &Consumer{reader: reader, handle: handle, backoff: time.Second}
}

// Run blocks until ctx is cancelled. Handler failures are logged and the
// message is committed anyway.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	log := logging.Logger()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Msg("read filter job")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	log := logging.Logger().With().
		Str("topic", msg.Topic).
		Int64("offset", msg.Offset).
		Logger()

	e, err := Decode(msg.Value)
	if err != nil {
		log.Warn().Err(err).Msg("skip undecodable job")
		return
	}
	if e.Type != FilterRequested || e.Filter == nil {
		log.Warn().Str("type", string(e.Type)).Msg("skip unexpected event")
		return
	}
	if err := c.handle(ctx, e); err != nil {
		log.Error().Err(err).Int64("photo_id", e.PhotoID).Str("filter", e.Filter.LastChange).Msg("filter job failed")
		return
	}
	log.Info().Int64("photo_id", e.PhotoID).Str("filter", e.Filter.LastChange).Msg("filter job done")
}
