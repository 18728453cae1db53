package models

import (
	"time"

	"github.com/google/uuid"
)

type PhotoStatus string

const (
	PhotoPending    PhotoStatus = "PENDING"
	PhotoProcessing PhotoStatus = "PROCESSING"
	PhotoCompleted  PhotoStatus = "COMPLETED"
	PhotoFailed     PhotoStatus = "FAILED"
)

// Photo is the processing-relevant subset of an uploaded photo. Derived-media
// fields are written only by the processing worker after the row is created.
type Photo struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	PhotographerID uuid.UUID   `db:"photographer_id" json:"photographer_id"`
	EventID        uuid.UUID   `db:"event_id" json:"event_id"`
	Status         PhotoStatus `db:"status" json:"status"`

	OriginalPath   string `db:"original_path" json:"-"`
	ThumbnailURL   string `db:"thumbnail_url" json:"thumbnail_url"`
	WatermarkedURL string `db:"watermarked_url" json:"watermarked_url"`

	Width  *int              `db:"width" json:"width"`
	Height *int              `db:"height" json:"height"`
	Meta   map[string]string `db:"meta" json:"meta"`

	AutoTags         []string          `db:"auto_tags" json:"auto_tags"`
	ProcessingErrors map[string]string `db:"processing_errors" json:"processing_errors"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Verb string

const (
	VerbTagged          Verb = "TAGGED"
	VerbLiked           Verb = "LIKED"
	VerbCommented       Verb = "COMMENTED"
	VerbEventPhotoAdded Verb = "EVENT_PHOTO_ADDED"
)

type TargetType string

const (
	TargetPhoto TargetType = "PHOTO"
	TargetEvent TargetType = "EVENT"
)

// UserRef identifies a user to the notification subsystem. The user table
// itself is owned by the accounts service; only id and username travel here.
type UserRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Notification is a persisted domain event addressed to one recipient.
// When DedupeKey is non-empty, at most one row exists per
// (recipient, dedupe key); repeats merge into the existing row instead of
// inserting. The engine never deletes rows, it only flips Read.
type Notification struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	RecipientID   uuid.UUID      `db:"recipient_id" json:"recipient_id"`
	ActorID       *uuid.UUID     `db:"actor_id" json:"actor_id"`
	ActorUsername string         `db:"actor_username" json:"actor_username"`
	Verb          Verb           `db:"verb" json:"verb"`
	TargetType    TargetType     `db:"target_type" json:"target_type"`
	TargetID      string         `db:"target_id" json:"target_id"`
	Data          map[string]any `db:"data" json:"data"`
	Read          bool           `db:"read" json:"read"`
	DedupeKey     string         `db:"dedupe_key" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// EnvelopeActor is the actor block of a delivery envelope; nil for
// system-generated events.
type EnvelopeActor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type EnvelopeTarget struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Envelope is the ephemeral message pushed to live subscribers. It is built
// fresh from the persisted notification after every create-or-merge and is
// never stored.
type Envelope struct {
	ID        string         `json:"id"`
	Verb      string         `json:"verb"`
	Actor     *EnvelopeActor `json:"actor"`
	Target    EnvelopeTarget `json:"target"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Read      bool           `json:"read"`
}

func NewEnvelope(n *Notification) Envelope {
	env := Envelope{
		ID:   n.ID.String(),
		Verb: string(n.Verb),
		Target: EnvelopeTarget{
			Type: string(n.TargetType),
			ID:   n.TargetID,
		},
		Data:      n.Data,
		Timestamp: n.UpdatedAt,
		Read:      n.Read,
	}
	if n.ActorID != nil {
		env.Actor = &EnvelopeActor{ID: n.ActorID.String(), Username: n.ActorUsername}
	}
	return env
}
