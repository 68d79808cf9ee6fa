package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"tagscan/internal/logger"
)

// DocumentAIConfig holds configuration for the Document AI OCR processor.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g., "us", "eu").
	Location string

	// ProcessorID is the ID of an OCR processor (type OCR_PROCESSOR).
	ProcessorID string

	// Timeout is the maximum time to wait for processing.
	Timeout time.Duration
}

// ProcessorName returns the full resource name of the processor.
func (c DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// DocumentAIEngine implements Engine using a Google Document AI OCR processor.
type DocumentAIEngine struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIEngine creates the engine with a regional client.
func NewDocumentAIEngine(ctx context.Context, config DocumentAIConfig) (*DocumentAIEngine, error) {
	const op = "NewDocumentAIEngine"

	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, NewOCRError(EngineDocumentAI, op, ErrMissingCredentials, "GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID are required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRemoteTimeout
	}

	clientOptions := GoogleClientOptions()
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, WrapOCRError(EngineDocumentAI, op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIEngine{
		client: client,
		config: config,
		log:    logger.WithComponent("ocr.documentai"),
	}, nil
}

func (d *DocumentAIEngine) Name() string { return EngineDocumentAI }

// Recognize sends the page as a PNG raw document and collects token boxes.
func (d *DocumentAIEngine) Recognize(ctx context.Context, img image.Image) (*Recognition, error) {
	const op = "Recognize"
	start := time.Now()

	png, err := EncodePNG(img)
	if err != nil {
		return nil, NewOCRError(EngineDocumentAI, op, ErrInvalidImage, err.Error())
	}

	processCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: d.config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  png,
				MimeType: "image/png",
			},
		},
	}

	resp, err := d.client.ProcessDocument(processCtx, req)
	if err != nil {
		if ctxErr := contextError(EngineDocumentAI, op, processCtx.Err()); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, NewOCRError(EngineDocumentAI, op, ErrOCRFailed, fmt.Sprintf("Document AI error: %v", err))
	}
	if resp.Document == nil {
		return nil, NewOCRError(EngineDocumentAI, op, ErrMalformedResponse, "no document in response")
	}

	rec := documentRecognition(resp.Document, img.Bounds())
	rec.Duration = time.Since(start)

	d.log.Debug().
		Dur("duration", rec.Duration).
		Int("tokens", len(rec.Words)).
		Msg("Document AI recognition completed")

	return rec, nil
}

// documentRecognition maps Document AI tokens to words. Token text is taken
// from the document text through the token's text anchor.
func documentRecognition(doc *documentaipb.Document, bounds image.Rectangle) *Recognition {
	rec := &Recognition{Engine: EngineDocumentAI, Text: doc.GetText()}

	for _, page := range doc.GetPages() {
		width, height := float64(bounds.Dx()), float64(bounds.Dy())
		if dim := page.GetDimension(); dim != nil && dim.GetWidth() > 0 && dim.GetHeight() > 0 {
			width, height = float64(dim.GetWidth()), float64(dim.GetHeight())
		}

		for _, token := range page.GetTokens() {
			layout := token.GetLayout()
			text := strings.TrimSpace(anchorText(doc.GetText(), layout.GetTextAnchor()))
			if text == "" {
				continue
			}
			rec.Words = append(rec.Words, Word{
				Text:       text,
				Box:        normalizedBox(layout.GetBoundingPoly().GetNormalizedVertices(), width, height),
				Confidence: float64(layout.GetConfidence()),
			})
		}
	}
	return rec
}

func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	var b strings.Builder
	for _, seg := range anchor.GetTextSegments() {
		start, end := int(seg.GetStartIndex()), int(seg.GetEndIndex())
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		b.WriteString(text[start:end])
	}
	return b.String()
}

func normalizedBox(vertices []*documentaipb.NormalizedVertex, width, height float64) BoundingBox {
	if len(vertices) == 0 {
		return BoundingBox{}
	}
	minX, minY := float64(vertices[0].GetX()), float64(vertices[0].GetY())
	maxX, maxY := minX, minY
	for _, v := range vertices[1:] {
		x, y := float64(v.GetX()), float64(v.GetY())
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return BoundingBox{
		X:      int(minX * width),
		Y:      int(minY * height),
		Width:  int((maxX - minX) * width),
		Height: int((maxY - minY) * height),
	}
}

// Close closes the underlying Document AI client.
func (d *DocumentAIEngine) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
