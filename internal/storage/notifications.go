package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"

	"pixelshare/internal/models"
)

const notificationColumns = `id, recipient_id, actor_id, actor_username, verb,
	target_type, target_id, data, read, COALESCE(dedupe_key, ''), created_at, updated_at`

// Insert stores a notification unconditionally. Used when no dedupe key is
// supplied: every occurrence gets its own row.
func (s *Storage) Insert(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	const op = "storage.Insert"

	row := s.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, recipient_id, actor_id, actor_username,
		 verb, target_type, target_id, data, dedupe_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		 RETURNING `+notificationColumns,
		n.ID, n.RecipientID, n.ActorID, n.ActorUsername,
		n.Verb, n.TargetType, n.TargetID, n.Data, n.DedupeKey)

	out, err := scanNotification(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Merge inserts the notification or, when a row for (recipient, dedupe key)
// already exists, folds the incoming data into it. The existing row is locked
// for the duration of the transaction so concurrent mergers of the same key
// serialize instead of double-inserting or losing counter increments. The
// lock wait is bounded; hitting it surfaces as a retryable error.
func (s *Storage) Merge(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	const op = "storage.Merge"

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, markRetryable(err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SET LOCAL lock_timeout = '2s'`); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	existing, err := lockNotification(ctx, tx, n.RecipientID, n.DedupeKey)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, markRetryable(err))
	}

	var out *models.Notification
	if existing == nil {
		row := tx.QueryRow(ctx,
			`INSERT INTO notifications (id, recipient_id, actor_id, actor_username,
			 verb, target_type, target_id, data, dedupe_key)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING `+notificationColumns,
			n.ID, n.RecipientID, n.ActorID, n.ActorUsername,
			n.Verb, n.TargetType, n.TargetID, n.Data, n.DedupeKey)
		out, err = scanNotification(row)
	} else {
		// Same logical event recurring: keep created_at, read and the
		// original actor; only data and updated_at move.
		merged := models.MergeData(existing.Data, n.Data)
		row := tx.QueryRow(ctx,
			`UPDATE notifications SET data = $2, updated_at = now()
			 WHERE id = $1
			 RETURNING `+notificationColumns,
			existing.ID, merged)
		out, err = scanNotification(row)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, markRetryable(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, markRetryable(err))
	}
	return out, nil
}

func lockNotification(ctx context.Context, tx pgx.Tx, recipient uuid.UUID, dedupeKey string) (*models.Notification, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE recipient_id = $1 AND dedupe_key = $2
		 FOR UPDATE`,
		recipient, dedupeKey)
	return scanNotification(row)
}

func (s *Storage) ListNotifications(ctx context.Context, recipient uuid.UUID, limit int) ([]*models.Notification, error) {
	const op = "storage.ListNotifications"

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE recipient_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		recipient, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// MarkNotificationRead flips the read flag. Read state belongs to the
// recipient, so the recipient id is part of the predicate.
func (s *Storage) MarkNotificationRead(ctx context.Context, id, recipient uuid.UUID) error {
	const op = "storage.MarkNotificationRead"

	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE, updated_at = now()
		 WHERE id = $1 AND recipient_id = $2`,
		id, recipient)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.RecipientID, &n.ActorID, &n.ActorUsername, &n.Verb,
		&n.TargetType, &n.TargetID, &n.Data, &n.Read, &n.DedupeKey,
		&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// markRetryable tags failures the notification engine should retry instead of
// dropping the event: lock timeout, deadlock, serialization failure, and the
// unique violation a merger loses when it races another first insert of the
// same dedupe key.
func markRetryable(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "23505":
			return retry.RetryableError(err)
		}
	}
	return err
}
