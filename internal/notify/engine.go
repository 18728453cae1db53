// Package notify records domain events as notifications, merging repeats
// under a caller-supplied dedupe key, and fans the result out to live
// subscribers.
package notify

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"pixelshare/internal/models"
)

// Store persists notifications. Merge must hold a row lock on
// (recipient, dedupe key) for the duration of its transaction and may return
// errors marked with retry.RetryableError when the transaction should be
// reattempted.
type Store interface {
	Insert(ctx context.Context, n *models.Notification) (*models.Notification, error)
	Merge(ctx context.Context, n *models.Notification) (*models.Notification, error)
}

// Broadcaster is the real-time delivery channel. Best-effort: a failure here
// never affects the persisted notification.
type Broadcaster interface {
	Broadcast(group string, payload any) error
}

// Event is one notifiable occurrence from a write path (like, comment, tag,
// event-photo-added).
type Event struct {
	Recipient  uuid.UUID
	Actor      *models.UserRef // nil for system-generated events
	Verb       models.Verb
	TargetType models.TargetType
	TargetID   string
	Data       map[string]any
	DedupeKey  string // empty: every occurrence inserts its own row
}

type Engine struct {
	store Store
	bus   Broadcaster
	log   zerolog.Logger
}

func NewEngine(store Store, bus Broadcaster, log zerolog.Logger) *Engine {
	return &Engine{
		store: store,
		bus:   bus,
		log:   log.With().Str("component", "notify").Logger(),
	}
}

// GroupForRecipient maps a recipient id to its fan-out group. The fixed-width
// hex encoding is part of the wire contract with the delivery channel: one
// recipient, one group, no collisions.
func GroupForRecipient(id uuid.UUID) string {
	return "user-" + hex.EncodeToString(id[:])
}

const (
	mergeRetryBase = 50 * time.Millisecond
	mergeRetryMax  = 5
)

// RecordAndDeliver persists the event — inserting, or merging when a dedupe
// key matches an existing row — then pushes an envelope to the recipient's
// group. Retryable store failures are retried with backoff; the event is
// never silently dropped. Delivery failure is logged and does not undo the
// write: persistence is the source of truth, clients reconcile by polling.
func (e *Engine) RecordAndDeliver(ctx context.Context, ev Event) (*models.Notification, error) {
	const op = "notify.RecordAndDeliver"

	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: ev.Recipient,
		Verb:        ev.Verb,
		TargetType:  ev.TargetType,
		TargetID:    ev.TargetID,
		Data:        ev.Data,
		DedupeKey:   ev.DedupeKey,
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	if ev.Actor != nil {
		actorID := ev.Actor.ID
		n.ActorID = &actorID
		n.ActorUsername = ev.Actor.Username
	}

	var saved *models.Notification
	var err error
	if ev.DedupeKey == "" {
		saved, err = e.store.Insert(ctx, n)
	} else {
		backoff := retry.WithMaxRetries(mergeRetryMax, retry.NewExponential(mergeRetryBase))
		err = retry.Do(ctx, backoff, func(ctx context.Context) error {
			var merr error
			saved, merr = e.store.Merge(ctx, n)
			return merr
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	group := GroupForRecipient(saved.RecipientID)
	if berr := e.bus.Broadcast(group, models.NewEnvelope(saved)); berr != nil {
		e.log.Warn().Err(berr).
			Str("group", group).
			Stringer("notification_id", saved.ID).
			Msg("real-time delivery failed, recipient will see it on next poll")
	}
	return saved, nil
}
