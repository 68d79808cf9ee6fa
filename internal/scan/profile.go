package scan

import (
	"fmt"
	"strings"

	"tagscan/internal/config"
	"tagscan/internal/ocr"
	"tagscan/internal/preprocess"
	"tagscan/internal/tags"
)

// Profile bundles the settings of a deployment variant.
type Profile struct {
	Name string

	// DPI is the PDF rasterization resolution.
	DPI float64

	Strategy       preprocess.Strategy
	Threshold      preprocess.ThresholdOptions
	ContrastFactor float64

	Pattern tags.Pattern

	// Annotate draws tag boxes on the page when the engine reports them.
	Annotate bool

	DefaultEngine string
}

// LocalProfile runs Tesseract on thresholded 200 DPI pages and matches whole
// words strictly.
func LocalProfile() Profile {
	return Profile{
		Name:          config.ProfileLocal,
		DPI:           200,
		Strategy:      preprocess.StrategyThreshold,
		Threshold:     preprocess.DefaultThreshold,
		Pattern:       tags.Strict(),
		Annotate:      true,
		DefaultEngine: ocr.EngineTesseract,
	}
}

// RemoteProfile sends contrast-enhanced 300 DPI pages to OCR.space and
// searches the text leniently.
func RemoteProfile() Profile {
	return Profile{
		Name:           config.ProfileRemote,
		DPI:            300,
		Strategy:       preprocess.StrategyContrast,
		ContrastFactor: preprocess.DefaultContrastFactor,
		Pattern:        tags.Lenient(),
		Annotate:       false,
		DefaultEngine:  ocr.EngineOCRSpace,
	}
}

// ProfileByName returns the named profile.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(name) {
	case config.ProfileLocal:
		return LocalProfile(), nil
	case config.ProfileRemote:
		return RemoteProfile(), nil
	default:
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
}

// ProfileFromConfig resolves the configured profile and applies the matcher,
// DPI and annotation overrides.
func ProfileFromConfig(cfg *config.Config) (Profile, error) {
	p, err := ProfileByName(cfg.Profile)
	if err != nil {
		return Profile{}, err
	}
	if cfg.Matcher != "" {
		if p.Pattern, err = tags.PatternByName(cfg.Matcher); err != nil {
			return Profile{}, err
		}
	}
	if cfg.RenderDPI > 0 {
		p.DPI = cfg.RenderDPI
	}
	switch cfg.Annotate {
	case "true":
		p.Annotate = true
	case "false":
		p.Annotate = false
	}
	return p, nil
}

// EngineName returns the configured engine or the profile default.
func (p Profile) EngineName(override string) string {
	if override != "" {
		return override
	}
	return p.DefaultEngine
}

// PreprocessOptions returns the preprocessing settings of the profile.
func (p Profile) PreprocessOptions() preprocess.Options {
	return preprocess.Options{
		Strategy:       p.Strategy,
		Threshold:      p.Threshold,
		ContrastFactor: p.ContrastFactor,
	}
}
