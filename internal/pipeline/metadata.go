package pipeline

import (
	"bytes"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// runMetadata reads pixel dimensions and embedded capture metadata from the
// original bytes. EXIF failures degrade to dimensions-only; the stage only
// fails when not even dimensions can be decoded.
func runMetadata(original []byte, fields map[string]any) stageResult {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(original))
	if err != nil {
		return stageFailed("decode dimensions: %v", err)
	}

	meta := map[string]string{}
	if x, err := exif.Decode(bytes.NewReader(original)); err == nil {
		_ = x.Walk(exifWalker(meta))
	}

	fields["width"] = cfg.Width
	fields["height"] = cfg.Height
	fields["meta"] = meta
	return stageOK()
}

type exifWalker map[string]string

func (w exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	w[string(name)] = tag.String()
	return nil
}
