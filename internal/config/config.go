package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tagscan/internal/logger"
)

// Profile names select a deployment variant at process start.
const (
	ProfileLocal  = "local"
	ProfileRemote = "remote"
)

var (
	knownProfiles = []string{ProfileLocal, ProfileRemote}
	knownEngines  = []string{"tesseract", "ocrspace", "vision", "documentai", "openai"}
	knownMatchers = []string{"strict", "lenient"}
)

type Config struct {
	// Deployment variant. Engine, Matcher and RenderDPI override the
	// profile defaults when set.
	Profile   string
	Engine    string
	Matcher   string
	RenderDPI float64
	Annotate  string

	// Web UI
	ListenAddr  string
	MaxUploadMB int
	SessionTTL  time.Duration

	// OCR backends
	OCRTimeout        time.Duration
	OCRSpaceURL       string
	OCRSpaceAPIKey    string
	TesseractLanguage string

	// Google Cloud Configuration
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// OpenAI Configuration
	OpenAIAPIKey string
	OpenAIModel  string

	// Google Sheets export, disabled when the URL is empty
	GoogleSheetURL       string
	GoogleSheetWorksheet string
	ExportTimeout        time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// FromEnv reads the configuration without validating it, so command-line
// flags can be applied before Validate runs.
func FromEnv() (*Config, error) {
	dpi, err := getEnvFloat("RENDER_DPI", 0)
	if err != nil {
		return nil, err
	}
	maxUpload, err := getEnvInt("MAX_UPLOAD_MB", 20)
	if err != nil {
		return nil, err
	}
	sessionTTL, err := getEnvDuration("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	ocrTimeout, err := getEnvDuration("OCR_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	exportTimeout, err := getEnvDuration("EXPORT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		Profile:               strings.ToLower(getEnv("TAGSCAN_PROFILE", ProfileLocal)),
		Engine:                strings.ToLower(getEnv("OCR_ENGINE", "")),
		Matcher:               strings.ToLower(getEnv("TAG_MATCHER", "")),
		RenderDPI:             dpi,
		Annotate:              strings.ToLower(getEnv("ANNOTATE", "")),
		ListenAddr:            getEnv("LISTEN_ADDR", ":8501"),
		MaxUploadMB:           maxUpload,
		SessionTTL:            sessionTTL,
		OCRTimeout:            ocrTimeout,
		OCRSpaceURL:           getEnv("OCR_SPACE_URL", "https://api.ocr.space/parse/image"),
		OCRSpaceAPIKey:        getEnv("OCR_SPACE_API_KEY", ""),
		TesseractLanguage:     getEnv("TESSERACT_LANGUAGE", "eng"),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o"),
		GoogleSheetURL:        getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:  getEnv("GOOGLE_SHEET_WORKSHEET", "Tags"),
		ExportTimeout:         exportTimeout,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}, nil
}

// Validate checks enumerations and numeric bounds. Engine credentials are
// checked when the engine is built.
func (c *Config) Validate() error {
	if !contains(knownProfiles, c.Profile) {
		return fmt.Errorf("TAGSCAN_PROFILE must be one of %v, got %q", knownProfiles, c.Profile)
	}
	if c.Engine != "" && !contains(knownEngines, c.Engine) {
		return fmt.Errorf("OCR_ENGINE must be one of %v, got %q", knownEngines, c.Engine)
	}
	if c.Matcher != "" && !contains(knownMatchers, c.Matcher) {
		return fmt.Errorf("TAG_MATCHER must be one of %v, got %q", knownMatchers, c.Matcher)
	}
	if c.Annotate != "" && c.Annotate != "true" && c.Annotate != "false" {
		return fmt.Errorf("ANNOTATE must be true or false, got %q", c.Annotate)
	}
	if c.RenderDPI < 0 || c.RenderDPI > 1200 {
		return fmt.Errorf("RENDER_DPI must be between 0 and 1200, got %v", c.RenderDPI)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %v", c.SessionTTL)
	}
	if c.OCRTimeout <= 0 {
		return fmt.Errorf("OCR_TIMEOUT must be positive, got %v", c.OCRTimeout)
	}
	if c.ExportTimeout <= 0 {
		return fmt.Errorf("EXPORT_TIMEOUT must be positive, got %v", c.ExportTimeout)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR is required")
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// ExportEnabled reports whether Google Sheets export is configured.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSheetURL != ""
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return value, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s: %w", key, err)
	}
	return value, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
