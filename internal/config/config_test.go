package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"TAGSCAN_PROFILE", "OCR_ENGINE", "TAG_MATCHER", "RENDER_DPI", "MAX_UPLOAD_MB", "SESSION_TTL", "OCR_TIMEOUT", "EXPORT_TIMEOUT", "LISTEN_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileLocal {
		t.Errorf("Profile = %q, want %q", cfg.Profile, ProfileLocal)
	}
	if cfg.ListenAddr != ":8501" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.OCRTimeout != 30*time.Second {
		t.Errorf("OCRTimeout = %v", cfg.OCRTimeout)
	}
	if cfg.ExportTimeout != 30*time.Second {
		t.Errorf("ExportTimeout = %v", cfg.ExportTimeout)
	}
	if cfg.MaxUploadBytes() != 20*1024*1024 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes())
	}
	if cfg.ExportEnabled() {
		t.Errorf("export should be disabled without GOOGLE_SHEET_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TAGSCAN_PROFILE", "Remote")
	t.Setenv("OCR_ENGINE", "vision")
	t.Setenv("TAG_MATCHER", "strict")
	t.Setenv("RENDER_DPI", "150")
	t.Setenv("OCR_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileRemote || cfg.Engine != "vision" || cfg.Matcher != "strict" {
		t.Errorf("unexpected selection: %+v", cfg)
	}
	if cfg.RenderDPI != 150 {
		t.Errorf("RenderDPI = %v", cfg.RenderDPI)
	}
	if cfg.OCRTimeout != 5*time.Second {
		t.Errorf("OCRTimeout = %v", cfg.OCRTimeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		key, value, want string
	}{
		{"TAGSCAN_PROFILE", "hybrid", "TAGSCAN_PROFILE"},
		{"OCR_ENGINE", "abbyy", "OCR_ENGINE"},
		{"TAG_MATCHER", "fuzzy", "TAG_MATCHER"},
		{"RENDER_DPI", "-1", "RENDER_DPI"},
		{"RENDER_DPI", "high", "RENDER_DPI"},
		{"OCR_TIMEOUT", "forever", "OCR_TIMEOUT"},
		{"MAX_UPLOAD_MB", "0", "MAX_UPLOAD_MB"},
		{"EXPORT_TIMEOUT", "0s", "EXPORT_TIMEOUT"},
		{"EXPORT_TIMEOUT", "soon", "EXPORT_TIMEOUT"},
	}

	for _, tc := range testCases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %s", err, tc.want)
			}
		})
	}
}
