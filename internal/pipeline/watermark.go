package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"github.com/golang/freetype"
	"golang.org/x/image/font"
)

const textLogoFontSize = 48

// TextLogo renders text into an image usable as the watermark overlay, for
// deployments that configure a watermark string instead of a logo file.
func TextLogo(text string, fontBytes []byte) (image.Image, error) {
	const op = "pipeline.TextLogo"

	if text == "" {
		return nil, fmt.Errorf("%s: empty watermark text", op)
	}
	f, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Generous canvas; cropped to the drawn extent below.
	width := len(text) * textLogoFontSize
	height := textLogoFontSize * 3 / 2
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f)
	c.SetFontSize(textLogoFontSize)
	c.SetClip(dst.Bounds())
	c.SetDst(dst)
	c.SetSrc(image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 210}))
	c.SetHinting(font.HintingFull)

	pt := freetype.Pt(0, textLogoFontSize)
	end, err := c.DrawString(text, pt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	drawn := int(end.X >> 6)
	if drawn <= 0 || drawn > width {
		drawn = width
	}
	return dst.SubImage(image.Rect(0, 0, drawn+2, height)), nil
}
