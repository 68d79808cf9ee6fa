// Package scan runs the tag extraction pipeline for one page: preprocess,
// recognize, match, and optionally annotate.
package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"tagscan/internal/annotate"
	"tagscan/internal/document"
	"tagscan/internal/ocr"
	"tagscan/internal/preprocess"
	"tagscan/internal/tags"
)

// ErrPageOutOfRange is returned for a page number outside the document.
var ErrPageOutOfRange = errors.New("page out of range")

// Result is the outcome of scanning one page.
type Result struct {
	Page     int           `json:"page"`
	Engine   string        `json:"engine"`
	Text     string        `json:"text"`
	Tags     []tags.Tag    `json:"tags"`
	Duration time.Duration `json:"duration"`

	// Annotated is the original page with tag boxes drawn, or nil.
	Annotated *image.NRGBA `json:"-"`
}

// Values returns the tag strings.
func (r *Result) Values() []string {
	return tags.Values(r.Tags)
}

// Scanner binds a profile to an OCR engine.
type Scanner struct {
	profile   Profile
	engine    ocr.Engine
	extractor *tags.Extractor
	log       zerolog.Logger
}

// NewScanner validates the profile and compiles its tag pattern.
func NewScanner(profile Profile, engine ocr.Engine, log zerolog.Logger) (*Scanner, error) {
	if engine == nil {
		return nil, fmt.Errorf("scan: engine is required")
	}
	if profile.Strategy == preprocess.StrategyThreshold {
		if err := profile.Threshold.Validate(); err != nil {
			return nil, err
		}
	}
	extractor, err := tags.NewExtractor(profile.Pattern)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		profile:   profile,
		engine:    engine,
		extractor: extractor,
		log: log.With().
			Str("profile", profile.Name).
			Str("engine", engine.Name()).
			Str("matcher", extractor.Pattern().Name).
			Logger(),
	}, nil
}

// Profile returns the scanner's profile.
func (s *Scanner) Profile() Profile {
	return s.profile
}

// Engine returns the engine name.
func (s *Scanner) Engine() string {
	return s.engine.Name()
}

// Close releases the engine.
func (s *Scanner) Close() error {
	return s.engine.Close()
}

// Load renders an upload at the profile's DPI.
func (s *Scanner) Load(data []byte, filename string, maxBytes int64) (*document.Document, error) {
	return document.Load(data, filename, document.Options{DPI: s.profile.DPI, MaxBytes: maxBytes})
}

// ScanDocument scans the 1-based page of doc.
func (s *Scanner) ScanDocument(ctx context.Context, doc *document.Document, page int) (*Result, error) {
	img, ok := doc.Page(page)
	if !ok {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, doc.PageCount())
	}
	res, err := s.ScanPage(ctx, img)
	if err != nil {
		return nil, err
	}
	res.Page = page
	return res, nil
}

// ScanPage preprocesses page, runs OCR on it and extracts tags. Annotation
// uses the unprocessed page.
func (s *Scanner) ScanPage(ctx context.Context, page image.Image) (*Result, error) {
	start := time.Now()

	prepared, err := preprocess.Apply(page, s.profile.PreprocessOptions())
	if err != nil {
		return nil, fmt.Errorf("preprocess page: %w", err)
	}

	rec, err := s.engine.Recognize(ctx, prepared)
	if err != nil {
		s.log.Error().Err(err).Dur("duration", time.Since(start)).Msg("OCR failed")
		return nil, err
	}

	found := s.extractor.Extract(rec)
	res := &Result{
		Engine:   rec.Engine,
		Text:     rec.Text,
		Tags:     found,
		Duration: time.Since(start),
	}
	if res.Engine == "" {
		res.Engine = s.engine.Name()
	}

	if s.profile.Annotate {
		if boxes := tags.Boxes(found); len(boxes) > 0 {
			res.Annotated = annotate.Boxes(page, boxes, annotate.DefaultStyle)
		}
	}

	s.log.Info().
		Dur("duration", res.Duration).
		Dur("ocr_duration", rec.Duration).
		Int("text_length", len(rec.Text)).
		Int("words", len(rec.Words)).
		Int("tags", len(found)).
		Bool("annotated", res.Annotated != nil).
		Msg("Page scanned")

	return res, nil
}
