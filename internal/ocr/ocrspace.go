package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tagscan/internal/logger"
)

const (
	// DefaultOCRSpaceEndpoint is the public OCR.space parse endpoint.
	DefaultOCRSpaceEndpoint = "https://api.ocr.space/parse/image"

	// DefaultRemoteTimeout bounds a single remote OCR call.
	DefaultRemoteTimeout = 30 * time.Second

	maxResponseBytes = 8 * 1024 * 1024
)

// OCRSpaceConfig holds the settings for the OCR.space backend.
type OCRSpaceConfig struct {
	// Endpoint is the parse URL. Defaults to DefaultOCRSpaceEndpoint.
	Endpoint string

	// APIKey is sent in the apikey form field. Required.
	APIKey string

	// Language is the OCR.space language code. Defaults to "eng".
	Language string

	// Timeout bounds the whole HTTP exchange. Defaults to DefaultRemoteTimeout.
	Timeout time.Duration

	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client
}

// OCRSpaceEngine implements Engine against the OCR.space HTTP API.
type OCRSpaceEngine struct {
	endpoint string
	apiKey   string
	language string
	timeout  time.Duration
	client   *http.Client
	log      zerolog.Logger
}

// NewOCRSpaceEngine validates the configuration and builds the engine.
func NewOCRSpaceEngine(cfg OCRSpaceConfig) (*OCRSpaceEngine, error) {
	if cfg.APIKey == "" {
		return nil, NewOCRError(EngineOCRSpace, "NewOCRSpaceEngine", ErrMissingCredentials, "OCR_SPACE_API_KEY is not set")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOCRSpaceEndpoint
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &OCRSpaceEngine{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		timeout:  cfg.Timeout,
		client:   client,
		log:      logger.WithComponent("ocr.ocrspace"),
	}, nil
}

func (e *OCRSpaceEngine) Name() string { return EngineOCRSpace }

// Close is a no-op; the HTTP client holds no per-engine resources.
func (e *OCRSpaceEngine) Close() error { return nil }

// Recognize uploads the image as PNG and returns the first parsed text block.
// OCR.space reports no word positions without an overlay, so Words is empty.
func (e *OCRSpaceEngine) Recognize(ctx context.Context, img image.Image) (*Recognition, error) {
	const op = "Recognize"
	start := time.Now()

	png, err := EncodePNG(img)
	if err != nil {
		return nil, NewOCRError(EngineOCRSpace, op, ErrInvalidImage, err.Error())
	}

	body, contentType, err := e.buildForm(png)
	if err != nil {
		return nil, NewOCRError(EngineOCRSpace, op, err, "failed to build multipart form")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, body)
	if err != nil {
		return nil, NewOCRError(EngineOCRSpace, op, err, "failed to create request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctxErr := contextError(EngineOCRSpace, op, ctx.Err()); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, NewOCRError(EngineOCRSpace, op, ErrOCRFailed, fmt.Sprintf("request failed after %v: %v", time.Since(start), err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, NewOCRError(EngineOCRSpace, op, ErrOCRFailed, fmt.Sprintf("failed to read response body: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.log.Error().
			Int("status", resp.StatusCode).
			Str("body", truncate(string(raw), 200)).
			Msg("OCR.space returned error status")
		return nil, NewOCRError(EngineOCRSpace, op, ErrRemoteStatus, fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	result := DecodeOCRSpaceResponse(raw)
	if !result.OK {
		e.log.Error().
			Str("reason", result.Reason).
			Msg("OCR.space response rejected")
		return nil, NewOCRError(EngineOCRSpace, op, result.Cause, result.Reason)
	}

	duration := time.Since(start)
	e.log.Debug().
		Dur("duration", duration).
		Int("text_length", len(result.Text)).
		Msg("OCR.space recognition completed")

	return &Recognition{
		Engine:   EngineOCRSpace,
		Text:     result.Text,
		Duration: duration,
	}, nil
}

func (e *OCRSpaceEngine) buildForm(png []byte) (io.Reader, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "page.png")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file part: %w", err)
	}
	if _, err := part.Write(png); err != nil {
		return nil, "", fmt.Errorf("failed to write image data to form: %w", err)
	}

	fields := [][2]string{
		{"apikey", e.apiKey},
		{"language", e.language},
		{"isOverlayRequired", "false"},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write %s field: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}

// RemoteResult is the validated outcome of an OCR.space response: either
// success with text, or failure with a reason and a sentinel cause.
type RemoteResult struct {
	OK     bool
	Text   string
	Reason string
	Cause  error
}

type ocrSpaceResponse struct {
	ParsedResults         *[]ocrSpaceParsedResult `json:"ParsedResults"`
	OCRExitCode           json.RawMessage         `json:"OCRExitCode"`
	IsErroredOnProcessing bool                    `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage         `json:"ErrorMessage"`
	ErrorDetails          json.RawMessage         `json:"ErrorDetails"`
}

type ocrSpaceParsedResult struct {
	ParsedText        *string         `json:"ParsedText"`
	FileParseExitCode json.RawMessage `json:"FileParseExitCode"`
	ErrorMessage      json.RawMessage `json:"ErrorMessage"`
}

// DecodeOCRSpaceResponse validates the response body shape. A present but
// empty ParsedResults list is a success with empty text; a missing list,
// invalid JSON or a processing error is a failure.
func DecodeOCRSpaceResponse(body []byte) RemoteResult {
	var resp ocrSpaceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return failure(ErrMalformedResponse, fmt.Sprintf("invalid JSON: %v", err))
	}

	if resp.IsErroredOnProcessing {
		reason := messageText(resp.ErrorMessage)
		if reason == "" {
			reason = messageText(resp.ErrorDetails)
		}
		if reason == "" {
			reason = "service reported a processing error"
		}
		return failure(ErrRemoteProcessing, reason)
	}

	if resp.ParsedResults == nil {
		return failure(ErrMalformedResponse, "response has no ParsedResults")
	}
	results := *resp.ParsedResults
	if len(results) == 0 {
		return RemoteResult{OK: true}
	}

	first := results[0]
	if code, ok := exitCode(first.FileParseExitCode); ok && code != 1 {
		reason := messageText(first.ErrorMessage)
		if reason == "" {
			reason = fmt.Sprintf("file parse exit code %d", code)
		}
		return failure(ErrRemoteProcessing, reason)
	}
	if first.ParsedText == nil {
		return failure(ErrMalformedResponse, "first parsed result has no ParsedText")
	}

	return RemoteResult{OK: true, Text: *first.ParsedText}
}

func failure(cause error, reason string) RemoteResult {
	return RemoteResult{Cause: cause, Reason: reason}
}

// messageText flattens an ErrorMessage that may be a string or a list of strings.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return strings.TrimSpace(strings.Join(many, "; "))
	}
	return strings.TrimSpace(string(raw))
}

// exitCode reads an exit code sent either as a number or a quoted number.
func exitCode(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	s := strings.Trim(string(raw), `"`)
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return code, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
