// Package ocr provides the OCR backends used to recognize text on a page image.
//
// Every backend implements Engine: one page image in, one Recognition out.
// Backends that report word positions (Tesseract, Cloud Vision, Document AI)
// fill Recognition.Words; text-only backends (OCR.space, OpenAI) leave it empty.
//
// Backends:
//   - tesseract: local engine, see the ocr/tesseract subpackage (requires cgo)
//   - ocrspace: OCR.space HTTP API, API key from OCR_SPACE_API_KEY
//   - vision: Google Cloud Vision document text detection
//   - documentai: Google Document AI OCR processor
//   - openai: vision-capable chat model asked for a verbatim transcription
//
// Remote backends never retry. Failures are reported as *OCRError values that
// match the sentinel errors in this package with errors.Is.
package ocr

import (
	"bytes"
	"context"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

// Engine names accepted by configuration.
const (
	EngineTesseract  = "tesseract"
	EngineOCRSpace   = "ocrspace"
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
	EngineOpenAI     = "openai"
)

// Engine defines the interface for OCR backends.
type Engine interface {
	// Name returns the configuration name of the engine.
	Name() string

	// Recognize runs OCR on a single page image.
	Recognize(ctx context.Context, img image.Image) (*Recognition, error)

	// Close releases clients held by the engine.
	Close() error
}

// BoundingBox locates a recognized word in page pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the box as an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// BoxFromRect converts an image.Rectangle to a BoundingBox.
func BoxFromRect(r image.Rectangle) BoundingBox {
	r = r.Canon()
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Word is a single recognized token with its position.
type Word struct {
	Text       string      `json:"text"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence,omitempty"`
}

// Recognition contains the OCR output for one page image.
type Recognition struct {
	// Engine is the name of the engine that produced the result.
	Engine string `json:"engine"`

	// Text is the recognized text exactly as the backend returned it.
	Text string `json:"text"`

	// Words holds per-word tokens with bounding boxes when the backend
	// provides them.
	Words []Word `json:"words,omitempty"`

	// Duration is how long the backend call took.
	Duration time.Duration `json:"duration"`
}

// HasWords reports whether the recognition carries word positions.
func (r *Recognition) HasWords() bool {
	return r != nil && len(r.Words) > 0
}

// EncodePNG encodes a page image as PNG, the format every backend receives.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrInvalidImage
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
