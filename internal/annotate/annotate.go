// Package annotate draws tag bounding boxes onto page images.
package annotate

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"tagscan/internal/ocr"
)

// Style controls how boxes are drawn.
type Style struct {
	Color  color.Color
	Stroke int
}

// DefaultStyle draws 2px green outlines.
var DefaultStyle = Style{Color: color.NRGBA{G: 255, A: 255}, Stroke: 2}

// Boxes returns a copy of img with an outline around each box. The copy has the
// same size as img, anchored at the origin, and img itself is left untouched.
// Box coordinates are relative to img's bounds; parts outside are clipped.
func Boxes(img image.Image, boxes []ocr.BoundingBox, style Style) *image.NRGBA {
	out := imaging.Clone(img)
	if style.Color == nil {
		style.Color = DefaultStyle.Color
	}
	if style.Stroke <= 0 {
		style.Stroke = DefaultStyle.Stroke
	}
	c := color.NRGBAModel.Convert(style.Color).(color.NRGBA)

	for _, box := range boxes {
		r := box.Rect().Canon()
		if r.Empty() {
			continue
		}
		s := min(style.Stroke, r.Dx(), r.Dy())
		fill(out, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+s), c)
		fill(out, image.Rect(r.Min.X, r.Max.Y-s, r.Max.X, r.Max.Y), c)
		fill(out, image.Rect(r.Min.X, r.Min.Y, r.Min.X+s, r.Max.Y), c)
		fill(out, image.Rect(r.Max.X-s, r.Min.Y, r.Max.X, r.Max.Y), c)
	}
	return out
}

func fill(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}
