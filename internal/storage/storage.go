package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"pixelshare/internal/models"
)

var ErrNotFound = errors.New("storage: not found")

type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // for migrations
}

func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

func (s *Storage) CreatePhoto(ctx context.Context, p *models.Photo) error {
	const op = "storage.CreatePhoto"

	_, err := s.pool.Exec(ctx,
		`INSERT INTO photos (id, photographer_id, event_id, status, original_path,
		 thumbnail_url, watermarked_url, meta, auto_tags, processing_errors)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.PhotographerID, p.EventID, p.Status, p.OriginalPath,
		p.ThumbnailURL, p.WatermarkedURL, p.Meta, p.AutoTags, p.ProcessingErrors)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	const op = "storage.GetPhoto"

	var p models.Photo
	err := s.pool.QueryRow(ctx,
		`SELECT id, photographer_id, event_id, status, original_path, thumbnail_url,
		 watermarked_url, width, height, meta, auto_tags, processing_errors,
		 created_at, updated_at
		 FROM photos WHERE id = $1`, id).
		Scan(&p.ID, &p.PhotographerID, &p.EventID, &p.Status, &p.OriginalPath,
			&p.ThumbnailURL, &p.WatermarkedURL, &p.Width, &p.Height, &p.Meta,
			&p.AutoTags, &p.ProcessingErrors, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// UpdatePhotoFields writes exactly the given columns of one photo row. The
// worker uses this so a pipeline run touches only the fields its stages
// produced.
func (s *Storage) UpdatePhotoFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	const op = "storage.UpdatePhotoFields"

	query, args, err := buildPhotoUpdate(id, fields)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
