// Package preprocess prepares page images for OCR.
//
// Two strategies exist. Threshold produces a binary-inverse image from an
// adaptive mean threshold and suits the local Tesseract engine. Contrast keeps
// grey levels and stretches them, which the remote engines prefer.
package preprocess

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var (
	// ErrInvalidImage is returned for nil or empty images.
	ErrInvalidImage = errors.New("invalid image")

	// ErrInvalidOptions is returned for unusable threshold parameters.
	ErrInvalidOptions = errors.New("invalid preprocessing options")
)

// Strategy names a preprocessing method.
type Strategy string

const (
	StrategyThreshold Strategy = "threshold"
	StrategyContrast  Strategy = "contrast"
)

// ThresholdOptions configures AdaptiveThreshold.
type ThresholdOptions struct {
	// BlockSize is the side of the square neighbourhood used for the local
	// mean. Must be odd and at least 3.
	BlockSize int

	// C is subtracted from the local mean before comparing.
	C int
}

// DefaultThreshold is the neighbourhood used by the local profile.
var DefaultThreshold = ThresholdOptions{BlockSize: 15, C: 8}

// DefaultContrastFactor doubles the distance of each level from mid grey.
const DefaultContrastFactor = 2.0

// Validate checks the block size.
func (o ThresholdOptions) Validate() error {
	if o.BlockSize < 3 || o.BlockSize%2 == 0 {
		return fmt.Errorf("%w: block size %d must be odd and >= 3", ErrInvalidOptions, o.BlockSize)
	}
	return nil
}

// Options selects a strategy and carries its parameters.
type Options struct {
	Strategy       Strategy
	Threshold      ThresholdOptions
	ContrastFactor float64
}

// Apply runs the configured strategy.
func Apply(img image.Image, opts Options) (image.Image, error) {
	switch opts.Strategy {
	case StrategyThreshold:
		out, err := AdaptiveThreshold(img, opts.Threshold)
		if err != nil {
			return nil, err
		}
		return out, nil
	case StrategyContrast:
		out, err := EnhanceContrast(img, opts.ContrastFactor)
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidOptions, opts.Strategy)
	}
}

// Grayscale converts img to 8-bit luma with the same bounds.
func Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrInvalidImage
	}
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok {
		out := image.NewGray(b)
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], g.Pix[y*g.Stride:y*g.Stride+b.Dx()])
		}
		return out, nil
	}

	// imaging returns an NRGBA anchored at the origin with R=G=B.
	nrgba := imaging.Grayscale(img)
	out := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return out, nil
}

// AdaptiveThreshold binarizes img against the mean of each pixel's
// neighbourhood. Pixels brighter than mean-C become 0, the rest 255, so dark
// ink on a light page comes out white on black. Borders replicate the edge.
func AdaptiveThreshold(img image.Image, opts ThresholdOptions) (*image.Gray, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	gray, err := Grayscale(img)
	if err != nil {
		return nil, err
	}

	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	r := opts.BlockSize / 2
	area := opts.BlockSize * opts.BlockSize

	// Horizontal pass: sum of the row window around each pixel.
	rows := make([]int, w*h)
	for y := 0; y < h; y++ {
		line := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		sum := 0
		for k := -r; k <= r; k++ {
			sum += int(line[clamp(k, w)])
		}
		for x := 0; x < w; x++ {
			rows[y*w+x] = sum
			sum += int(line[clamp(x+r+1, w)]) - int(line[clamp(x-r, w)])
		}
	}

	out := image.NewGray(b)
	for x := 0; x < w; x++ {
		sum := 0
		for k := -r; k <= r; k++ {
			sum += rows[clamp(k, h)*w+x]
		}
		for y := 0; y < h; y++ {
			mean := (sum + area/2) / area
			src := int(gray.Pix[y*gray.Stride+x])
			if src > mean-opts.C {
				out.Pix[y*out.Stride+x] = 0
			} else {
				out.Pix[y*out.Stride+x] = 255
			}
			sum += rows[clamp(y+r+1, h)*w+x] - rows[clamp(y-r, h)*w+x]
		}
	}
	return out, nil
}

// EnhanceContrast converts img to grayscale and scales its contrast by factor,
// where 1 leaves it unchanged and 2 doubles it.
func EnhanceContrast(img image.Image, factor float64) (*image.NRGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrInvalidImage
	}
	if factor <= 0 {
		return nil, fmt.Errorf("%w: contrast factor %.2f must be positive", ErrInvalidOptions, factor)
	}
	gray := imaging.Grayscale(img)
	return imaging.AdjustContrast(gray, contrastPercentage(factor)), nil
}

// contrastPercentage maps a multiplicative factor onto imaging's percentage
// scale, which scales by p/100+1 below zero and by 1/(1-p/100) above it.
func contrastPercentage(factor float64) float64 {
	if factor <= 1 {
		return (factor - 1) * 100
	}
	return (1 - 1/factor) * 100
}

func clamp(i, n int) int {
	return min(max(i, 0), n-1)
}
