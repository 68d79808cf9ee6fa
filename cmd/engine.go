package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tagscan/internal/config"
	"tagscan/internal/logger"
	"tagscan/internal/ocr"
	"tagscan/internal/ocr/tesseract"
	"tagscan/internal/scan"
)

// loadConfig reads the environment and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	for flag, target := range map[string]*string{
		"profile": &cfg.Profile,
		"engine":  &cfg.Engine,
		"matcher": &cfg.Matcher,
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*target = strings.ToLower(v)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// newScanner resolves the profile and builds the configured engine.
func newScanner(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*scan.Scanner, error) {
	profile, err := scan.ProfileFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	engine, err := createEngine(ctx, profile.EngineName(cfg.Engine), cfg, log)
	if err != nil {
		return nil, err
	}

	scanner, err := scan.NewScanner(profile, engine, logger.WithComponent("scan"))
	if err != nil {
		engine.Close()
		return nil, err
	}

	log.Debug().
		Str("profile", profile.Name).
		Str("engine", engine.Name()).
		Str("matcher", profile.Pattern.Name).
		Float64("dpi", profile.DPI).
		Msg("Scanner ready")
	return scanner, nil
}

// createEngine builds the named OCR engine from configuration.
func createEngine(ctx context.Context, name string, cfg *config.Config, log zerolog.Logger) (ocr.Engine, error) {
	switch name {
	case ocr.EngineTesseract:
		return tesseract.New(tesseract.Config{
			Languages: strings.Split(cfg.TesseractLanguage, "+"),
		}), nil

	case ocr.EngineOCRSpace:
		engine, err := ocr.NewOCRSpaceEngine(ocr.OCRSpaceConfig{
			Endpoint: cfg.OCRSpaceURL,
			APIKey:   cfg.OCRSpaceAPIKey,
			Timeout:  cfg.OCRTimeout,
		})
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Error().Msg("OCR.space API key not configured")
			return nil, fmt.Errorf("OCR.space API key not configured. Set OCR_SPACE_API_KEY in the environment or .env file")
		}
		if err != nil {
			return nil, err
		}
		return engine, nil

	case ocr.EngineVision:
		engine, err := ocr.NewVisionEngine(ctx, ocr.VisionConfig{
			Timeout: cfg.OCRTimeout,
		})
		if err != nil {
			return nil, googleCredentialsError(err, log)
		}
		return engine, nil

	case ocr.EngineDocumentAI:
		if cfg.GoogleCloudProject == "" || cfg.DocumentAIProcessorID == "" {
			return nil, fmt.Errorf("Document AI needs GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID")
		}
		engine, err := ocr.NewDocumentAIEngine(ctx, ocr.DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
			Timeout:     cfg.OCRTimeout,
		})
		if err != nil {
			return nil, googleCredentialsError(err, log)
		}
		return engine, nil

	case ocr.EngineOpenAI:
		engine, err := ocr.NewOpenAIEngine(ocr.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.OCRTimeout,
		})
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Error().Msg("OpenAI API key not configured")
			return nil, fmt.Errorf("OpenAI API key not configured. Set OPENAI_API_KEY in the environment or .env file")
		}
		if err != nil {
			return nil, err
		}
		return engine, nil

	default:
		return nil, fmt.Errorf("unknown OCR engine %q", name)
	}
}

func googleCredentialsError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Failed to create Google Cloud OCR engine")
	if errors.Is(err, ocr.ErrMissingCredentials) {
		return fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
			"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
			"2. Export GOOGLE_CREDENTIALS with inline JSON\n\n" +
			"3. Use Application Default Credentials:\n" +
			"   gcloud auth application-default login")
	}
	return fmt.Errorf("failed to create OCR engine: %w", err)
}

// signalContext is canceled on SIGINT or SIGTERM, and after timeout if positive.
func signalContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
