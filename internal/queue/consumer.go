package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
)

// Handler processes one photo job to completion.
type Handler func(ctx context.Context, photoID uuid.UUID) error

type Consumer struct {
	broker  string
	topic   string
	groupID string
	log     zerolog.Logger
}

func NewConsumer(broker, topic, groupID string, log zerolog.Logger) *Consumer {
	return &Consumer{
		broker:  broker,
		topic:   topic,
		groupID: groupID,
		log:     log.With().Str("component", "queue").Logger(),
	}
}

// Run consumes jobs with n readers in one consumer group, one goroutine per
// reader, so every partition is handled by exactly one goroutine and its
// offsets commit strictly in order. A commit never advances the group past a
// message that has not been handled. Blocks until the context is canceled.
func (c *Consumer) Run(ctx context.Context, workers int, h Handler) error {
	if workers <= 0 {
		workers = 1
	}

	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{c.broker},
			Topic:   c.topic,
			GroupID: c.groupID,
			// Commit manually, after the handler succeeds.
			CommitInterval: 0,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()
			errs <- c.consume(ctx, reader, h)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) consume(ctx context.Context, reader *kafka.Reader, h Handler) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.handle(ctx, reader, msg, h)
	}
}

// committer is the slice of kafka.Reader the per-message logic needs.
type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

const (
	handlerRetryBase = time.Second
	handlerRetryCap  = 30 * time.Second
	handlerRetryMax  = 5
)

// handle runs one job to completion. Transient handler failures are retried
// in place with capped backoff, never by committing past the message. A job
// that exhausts the retry budget is committed away; by then the worker has
// already recorded the failure on the photo row. Only a canceled context
// leaves the offset uncommitted, so the job is redelivered after restart.
func (c *Consumer) handle(ctx context.Context, r committer, msg kafka.Message, h Handler) {
	var job processingJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		// Poison message: commit so it is not redelivered forever.
		c.log.Error().Err(err).Msg("discarding malformed job message")
		_ = r.CommitMessages(ctx, msg)
		return
	}
	photoID, err := uuid.Parse(job.PhotoID)
	if err != nil {
		c.log.Error().Err(err).Str("photo_id", job.PhotoID).Msg("discarding job with bad photo id")
		_ = r.CommitMessages(ctx, msg)
		return
	}

	backoff := retry.WithMaxRetries(handlerRetryMax,
		retry.WithCappedDuration(handlerRetryCap, retry.NewExponential(handlerRetryBase)))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if herr := h(ctx, photoID); herr != nil {
			return retry.RetryableError(herr)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			c.log.Warn().Stringer("photo_id", photoID).Msg("shutting down, leaving job for redelivery")
			return
		}
		c.log.Error().Err(err).Stringer("photo_id", photoID).Msg("job failed after retries, discarding")
	}

	if cerr := r.CommitMessages(ctx, msg); cerr != nil {
		c.log.Error().Err(cerr).Stringer("photo_id", photoID).Msg("failed to commit offset")
	}
}
