// Package tesseract implements the local OCR backend on top of gosseract.
// It is kept apart from package ocr because it needs cgo and libtesseract.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"tagscan/internal/logger"
	"tagscan/internal/ocr"
)

const (
	// TagWhitelist restricts recognition to the characters a tag can contain.
	TagWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-"

	// DefaultPageSegMode treats the page as a single uniform block of text.
	DefaultPageSegMode = gosseract.PSM_SINGLE_BLOCK
)

// Config holds the engine settings.
type Config struct {
	// Languages passed to Tesseract. Defaults to "eng".
	Languages []string

	// Whitelist of recognizable characters. Defaults to TagWhitelist.
	Whitelist string

	// PageSegMode defaults to DefaultPageSegMode.
	PageSegMode gosseract.PageSegMode
}

// Engine implements ocr.Engine with a fresh gosseract client per call.
type Engine struct {
	config        Config
	clientFactory func() *gosseract.Client
	log           zerolog.Logger
}

// New builds a Tesseract engine.
func New(cfg Config) *Engine {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	if cfg.Whitelist == "" {
		cfg.Whitelist = TagWhitelist
	}
	if cfg.PageSegMode == 0 {
		cfg.PageSegMode = DefaultPageSegMode
	}
	return &Engine{
		config:        cfg,
		clientFactory: gosseract.NewClient,
		log:           logger.WithComponent("ocr.tesseract"),
	}
}

func (e *Engine) Name() string { return ocr.EngineTesseract }

func (e *Engine) Close() error { return nil }

// Recognize runs Tesseract on the image and returns text plus word boxes.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (*ocr.Recognition, error) {
	const op = "Recognize"
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, ocr.NewOCRError(ocr.EngineTesseract, op, ocr.ErrContextCanceled, err.Error())
	}

	png, err := ocr.EncodePNG(img)
	if err != nil {
		return nil, ocr.NewOCRError(ocr.EngineTesseract, op, ocr.ErrInvalidImage, err.Error())
	}

	client := e.clientFactory()
	defer client.Close()

	if err := e.configure(client); err != nil {
		return nil, ocr.NewOCRError(ocr.EngineTesseract, op, ocr.ErrOCRFailed, err.Error())
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return nil, ocr.NewOCRError(ocr.EngineTesseract, op, ocr.ErrOCRFailed, fmt.Sprintf("set image: %v", err))
	}

	text, err := client.Text()
	if err != nil {
		return nil, ocr.NewOCRError(ocr.EngineTesseract, op, ocr.ErrOCRFailed, fmt.Sprintf("recognize text: %v", err))
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, ocr.NewOCRError(ocr.EngineTesseract, op, ocr.ErrOCRFailed, fmt.Sprintf("word boxes: %v", err))
	}

	rec := &ocr.Recognition{
		Engine:   ocr.EngineTesseract,
		Text:     text,
		Words:    words(boxes),
		Duration: time.Since(start),
	}

	e.log.Debug().
		Dur("duration", rec.Duration).
		Int("words", len(rec.Words)).
		Msg("Tesseract recognition completed")

	return rec, nil
}

func (e *Engine) configure(client *gosseract.Client) error {
	if err := client.SetLanguage(e.config.Languages...); err != nil {
		return fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetWhitelist(e.config.Whitelist); err != nil {
		return fmt.Errorf("set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(e.config.PageSegMode); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	return nil
}

func words(boxes []gosseract.BoundingBox) []ocr.Word {
	out := make([]ocr.Word, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		out = append(out, ocr.Word{
			Text:       text,
			Box:        ocr.BoxFromRect(b.Box),
			Confidence: b.Confidence / 100.0,
		})
	}
	return out
}
