package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"tagscan/internal/logger"
)

const transcriptionPrompt = `You are an OCR engine. Transcribe every piece of text visible in the image exactly as printed.
Keep line breaks. Do not correct, translate, summarize or explain anything.
Return only the transcribed text.`

// OpenAIConfig holds settings for the OpenAI transcription backend.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIEngine asks a vision-capable chat model for a verbatim transcription.
// It returns text only.
type OpenAIEngine struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewOpenAIEngine builds the engine from configuration.
func NewOpenAIEngine(cfg OpenAIConfig) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, NewOCRError(EngineOpenAI, "NewOpenAIEngine", ErrMissingCredentials, "OPENAI_API_KEY is not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIEngine{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		log:     logger.WithComponent("ocr.openai"),
	}, nil
}

func (o *OpenAIEngine) Name() string { return EngineOpenAI }

func (o *OpenAIEngine) Close() error { return nil }

// Recognize sends the page as a base64 data URL and returns the model's transcription.
func (o *OpenAIEngine) Recognize(ctx context.Context, img image.Image) (*Recognition, error) {
	const op = "Recognize"
	start := time.Now()

	png, err := EncodePNG(img)
	if err != nil {
		return nil, NewOCRError(EngineOpenAI, op, ErrInvalidImage, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: transcriptionPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		if ctxErr := contextError(EngineOpenAI, op, ctx.Err()); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, NewOCRError(EngineOpenAI, op, ErrOCRFailed, fmt.Sprintf("chat completion failed: %v", err))
	}
	if len(resp.Choices) == 0 {
		return nil, NewOCRError(EngineOpenAI, op, ErrMalformedResponse, "no response choices")
	}

	rec := &Recognition{
		Engine:   EngineOpenAI,
		Text:     resp.Choices[0].Message.Content,
		Duration: time.Since(start),
	}

	o.log.Debug().
		Str("model", o.model).
		Dur("duration", rec.Duration).
		Int("text_length", len(rec.Text)).
		Msg("OpenAI transcription completed")

	return rec, nil
}
