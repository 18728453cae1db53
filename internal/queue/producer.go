// Package queue moves photo-processing jobs through kafka. Delivery is
// at-least-once: the consumer commits an offset only after the job is
// handled, retrying transient failures in place, so an interrupted job is
// redelivered after restart.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type processingJob struct {
	PhotoID string `json:"photo_id"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(broker, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// EnqueueProcessing publishes one processing job for the photo. Keying by
// photo id keeps redeliveries of the same photo on one partition.
func (p *Producer) EnqueueProcessing(ctx context.Context, photoID uuid.UUID) error {
	const op = "queue.EnqueueProcessing"

	value, err := json.Marshal(processingJob{PhotoID: photoID.String()})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(photoID.String()),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
