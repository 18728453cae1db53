package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"pixelshare/internal/blob"
)

const (
	// watermarkMaxEdge bounds the watermarked copy.
	watermarkMaxEdge = 1200
	// logoWidthRatio sizes the logo relative to the watermarked base.
	logoWidthRatio = 0.25
	// logoMargin is the offset from the bottom-right corner.
	logoMargin = 20
	// thumbnailMaxEdge bounds the thumbnail's longest edge.
	thumbnailMaxEdge = 300

	jpegQuality = 90
)

// runVariants produces the watermarked and thumbnail copies. The two
// artifacts fail independently: whichever succeeded is uploaded and its URL
// written to fields, and the stage error names only the ones that did not.
func (w *Worker) runVariants(ctx context.Context, photoID string, original []byte, fields map[string]any) stageResult {
	img, err := imaging.Decode(bytes.NewReader(original), imaging.AutoOrientation(true))
	if err != nil {
		return stageFailed("decode original: %v", err)
	}

	var failures []string

	if marked, err := w.watermarked(img); err != nil {
		failures = append(failures, fmt.Sprintf("watermarked: %v", err))
	} else if url, err := w.uploadVariant(ctx, photoID, blob.VariantWatermarked, marked); err != nil {
		failures = append(failures, fmt.Sprintf("watermarked: %v", err))
	} else {
		fields["watermarked_url"] = url
	}

	thumb := imaging.Fit(img, thumbnailMaxEdge, thumbnailMaxEdge, imaging.Lanczos)
	if url, err := w.uploadVariant(ctx, photoID, blob.VariantThumbnail, thumb); err != nil {
		failures = append(failures, fmt.Sprintf("thumbnail: %v", err))
	} else {
		fields["thumbnail_url"] = url
	}

	if len(failures) > 0 {
		return stageFailed("%s", strings.Join(failures, "; "))
	}
	return stageOK()
}

// watermarked returns a bounded copy of src with the logo overlaid near the
// bottom-right corner, sized relative to the base.
func (w *Worker) watermarked(src image.Image) (image.Image, error) {
	if w.logo == nil {
		return nil, fmt.Errorf("no watermark logo configured")
	}

	base := imaging.Fit(src, watermarkMaxEdge, watermarkMaxEdge, imaging.Lanczos)
	bounds := base.Bounds()

	logoWidth := int(float64(bounds.Dx()) * logoWidthRatio)
	if logoWidth < 1 {
		logoWidth = 1
	}
	logo := imaging.Resize(w.logo, logoWidth, 0, imaging.Lanczos)
	lb := logo.Bounds()

	pos := image.Pt(bounds.Dx()-lb.Dx()-logoMargin, bounds.Dy()-lb.Dy()-logoMargin)
	return imaging.Overlay(base, logo, pos, 1.0), nil
}

func (w *Worker) uploadVariant(ctx context.Context, photoID, variant string, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	_, url, err := w.blobs.Upload(ctx, photoID, variant, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return url, nil
}
