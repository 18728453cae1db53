// Package pipeline implements the media processing worker: one job per
// uploaded photo, transforming the original into derived artifacts and
// metadata while tolerating partial failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pixelshare/internal/blob"
	"pixelshare/internal/models"
	"pixelshare/internal/storage"
	"pixelshare/internal/tagging"
)

// PhotoStore is the slice of persistence the worker needs: read one row,
// write back exactly the columns a run touched.
type PhotoStore interface {
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	UpdatePhotoFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type Options struct {
	// Logo is overlaid onto watermarked variants. Required.
	Logo image.Image
	// TagThreshold is the oracle similarity cutoff.
	TagThreshold float64
}

type Worker struct {
	photos    PhotoStore
	blobs     blob.Gateway
	oracle    tagging.Oracle
	logo      image.Image
	threshold float64
	log       zerolog.Logger
}

func NewWorker(photos PhotoStore, blobs blob.Gateway, oracle tagging.Oracle, opts Options, log zerolog.Logger) *Worker {
	threshold := opts.TagThreshold
	if threshold <= 0 {
		threshold = tagging.DefaultThreshold
	}
	return &Worker{
		photos:    photos,
		blobs:     blobs,
		oracle:    oracle,
		logo:      opts.Logo,
		threshold: threshold,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// stageResult is the explicit outcome of one pipeline stage. Failures carry a
// message for the processing_errors map; they never abort sibling stages.
type stageResult struct {
	ok      bool
	message string
}

func stageOK() stageResult { return stageResult{ok: true} }

func stageFailed(format string, args ...any) stageResult {
	return stageResult{message: fmt.Sprintf(format, args...)}
}

// ProcessPhoto runs the pipeline for one photo id. Stage order is fixed:
// fetch, variants, tagging, metadata. Only a fetch failure is fatal — it
// marks the row FAILED and returns an error so the queue redelivers the job.
// Every other stage failure is recorded in processing_errors and the row
// still ends up COMPLETED. Stages are idempotent, so a redelivered job
// overwrites earlier output with equivalent results.
func (w *Worker) ProcessPhoto(ctx context.Context, photoID uuid.UUID) error {
	const op = "pipeline.ProcessPhoto"
	log := w.log.With().Stringer("photo_id", photoID).Logger()

	photo, err := w.photos.GetPhoto(ctx, photoID)
	if err != nil {
		// Row deleted since enqueue: nothing to process, drop the job so
		// the queue does not redeliver it.
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn().Msg("photo row no longer exists, dropping job")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := w.photos.UpdatePhotoFields(ctx, photoID, map[string]any{
		"status": models.PhotoProcessing,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	original, err := w.blobs.Download(ctx, photo.OriginalPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to download original image")
		if uerr := w.photos.UpdatePhotoFields(ctx, photoID, map[string]any{
			"status":            models.PhotoFailed,
			"processing_errors": map[string]string{"download": err.Error()},
		}); uerr != nil {
			log.Error().Err(uerr).Msg("failed to persist download failure")
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	// fields collects the columns touched by successful stage output;
	// errs collects per-stage failures. One final write persists both.
	fields := map[string]any{}
	errs := map[string]string{}

	if res := w.runVariants(ctx, photoID.String(), original, fields); res.ok {
		log.Info().Msg("generated image variants")
	} else {
		log.Warn().Str("stage", "variants").Str("error", res.message).Msg("stage failed")
		errs["variants"] = res.message
	}

	if res := w.runTagging(ctx, original, fields); res.ok {
		log.Info().Msg("generated auto tags")
	} else {
		log.Warn().Str("stage", "tagging").Str("error", res.message).Msg("stage failed")
		errs["tagging"] = res.message
	}

	if res := runMetadata(original, fields); res.ok {
		log.Info().Msg("extracted metadata")
	} else {
		log.Warn().Str("stage", "metadata").Str("error", res.message).Msg("stage failed")
		errs["metadata"] = res.message
	}

	// Partial success is success: the photo is browsable even when some
	// artifacts are missing.
	fields["status"] = models.PhotoCompleted
	fields["processing_errors"] = errs
	if err := w.photos.UpdatePhotoFields(ctx, photoID, fields); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(errs) > 0 {
		log.Warn().Interface("processing_errors", errs).Msg("completed with stage errors")
	} else {
		log.Info().Msg("completed all processing stages")
	}
	return nil
}

func (w *Worker) runTagging(ctx context.Context, original []byte, fields map[string]any) stageResult {
	labels, err := w.oracle.Classify(ctx, original, tagging.Vocabulary, w.threshold)
	if err != nil {
		return stageFailed("classify: %v", err)
	}
	fields["auto_tags"] = tagging.FilterToVocabulary(labels, tagging.Vocabulary)
	return stageOK()
}
