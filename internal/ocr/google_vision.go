package ocr

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"tagscan/internal/logger"
)

// VisionConfig holds the settings for the Cloud Vision backend.
type VisionConfig struct {
	// LanguageHints are passed to the API as BCP-47 codes. Empty lets Vision detect.
	LanguageHints []string

	// Timeout bounds a single annotate call. Defaults to DefaultRemoteTimeout.
	Timeout time.Duration
}

// VisionEngine implements Engine using Google Cloud Vision API.
type VisionEngine struct {
	client  *vision.ImageAnnotatorClient
	hints   []string
	timeout time.Duration
	log     zerolog.Logger
}

// NewVisionEngine creates a Vision engine with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionEngine(ctx context.Context, config VisionConfig) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	client, err := vision.NewImageAnnotatorClient(ctx, GoogleClientOptions()...)
	if err != nil {
		if len(GoogleClientOptions()) == 0 {
			return nil, WrapOCRError(EngineVision, op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(EngineVision, op, err, "failed to create Vision client")
	}

	return NewVisionEngineWithClient(client, config), nil
}

// NewVisionEngineWithClient creates a Vision engine with an explicit client.
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient, config VisionConfig) *VisionEngine {
	if config.Timeout <= 0 {
		config.Timeout = DefaultRemoteTimeout
	}
	return &VisionEngine{
		client:  client,
		hints:   config.LanguageHints,
		timeout: config.Timeout,
		log:     logger.WithComponent("ocr.vision"),
	}
}

func (v *VisionEngine) Name() string { return EngineVision }

// Recognize runs document text detection on the image.
func (v *VisionEngine) Recognize(ctx context.Context, img image.Image) (*Recognition, error) {
	const op = "Recognize"
	start := time.Now()

	png, err := EncodePNG(img)
	if err != nil {
		return nil, NewOCRError(EngineVision, op, ErrInvalidImage, err.Error())
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: png},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: v.hints},
			},
		},
	}

	annotateCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.BatchAnnotateImages(annotateCtx, req)
	if err != nil {
		if ctxErr := contextError(EngineVision, op, annotateCtx.Err()); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, NewOCRError(EngineVision, op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, NewOCRError(EngineVision, op, ErrMalformedResponse, "no response from Vision API")
	}

	imgResp := resp.Responses[0]
	if imgResp.Error != nil {
		return nil, NewOCRError(EngineVision, op, ErrRemoteProcessing, fmt.Sprintf("Vision API error: %s", imgResp.Error.Message))
	}

	rec := visionRecognition(imgResp)
	rec.Duration = time.Since(start)

	v.log.Debug().
		Dur("duration", rec.Duration).
		Int("words", len(rec.Words)).
		Msg("Vision recognition completed")

	return rec, nil
}

// visionRecognition converts an annotate response. The first text annotation
// spans the whole image; the rest are single words.
func visionRecognition(resp *visionpb.AnnotateImageResponse) *Recognition {
	rec := &Recognition{Engine: EngineVision}
	if resp.FullTextAnnotation != nil {
		rec.Text = resp.FullTextAnnotation.Text
	}

	for i, ann := range resp.TextAnnotations {
		if i == 0 {
			if rec.Text == "" {
				rec.Text = ann.Description
			}
			continue
		}
		word := Word{Text: ann.Description, Confidence: float64(ann.Confidence)}
		if ann.BoundingPoly != nil {
			word.Box = polygonBox(ann.BoundingPoly.Vertices)
		}
		rec.Words = append(rec.Words, word)
	}
	return rec
}

func polygonBox(vertices []*visionpb.Vertex) BoundingBox {
	if len(vertices) == 0 {
		return BoundingBox{}
	}
	minX, minY := int(vertices[0].GetX()), int(vertices[0].GetY())
	maxX, maxY := minX, minY
	for _, vtx := range vertices[1:] {
		x, y := int(vtx.GetX()), int(vtx.GetY())
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// GoogleClientOptions returns credential options from GOOGLE_CREDENTIALS or
// GOOGLE_APPLICATION_CREDENTIALS. Empty means application default credentials.
func GoogleClientOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}
