// Package tags finds warehouse inventory tags such as WH-0601-PG-89-FSL32 in
// OCR output.
//
// Two patterns exist because the two deployment variants read tags differently:
// Strict matches whole OCR words against WH-####-LL-##-FSL##, Lenient searches
// anywhere for the looser WH[-_]###..#####[-_]LL[-_]##[-_](FSL|CSL)## form.
// Matches are returned verbatim, in order of appearance, without deduplication.
package tags

import (
	"fmt"
	"regexp"
	"strings"

	"tagscan/internal/ocr"
)

// Mode controls how a pattern is applied to recognized text.
type Mode int

const (
	// FullToken requires the expression to consume an entire OCR word.
	FullToken Mode = iota
	// Search finds every match anywhere in the text.
	Search
)

func (m Mode) String() string {
	switch m {
	case FullToken:
		return "full-token"
	case Search:
		return "search"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Pattern is a named tag expression plus how to apply it.
type Pattern struct {
	Name string
	Expr string
	Mode Mode

	// RequireAny lists substrings of which a match must contain at least one.
	RequireAny []string
}

// Strict is the full-word pattern used with word-level OCR output.
func Strict() Pattern {
	return Pattern{
		Name: "strict",
		Expr: `WH-\d{4}-[A-Z]{2}-\d{2}-FSL\d{2}`,
		Mode: FullToken,
	}
}

// Lenient is the search pattern used with flat OCR text.
func Lenient() Pattern {
	return Pattern{
		Name:       "lenient",
		Expr:       `WH[-_]\d{3,5}[-_][A-Z]{2}[-_]\d{2}[-_](?:FSL|CSL)\d{2}`,
		Mode:       Search,
		RequireAny: []string{"FSL", "CSL"},
	}
}

// PatternByName returns Strict or Lenient.
func PatternByName(name string) (Pattern, error) {
	switch strings.ToLower(name) {
	case "strict":
		return Strict(), nil
	case "lenient":
		return Lenient(), nil
	default:
		return Pattern{}, fmt.Errorf("unknown tag pattern %q", name)
	}
}

// Tag is one extracted tag. Box is set when the OCR backend reported the
// position of the word the tag was found in.
type Tag struct {
	Value string           `json:"tag"`
	Box   *ocr.BoundingBox `json:"box,omitempty"`
}

// Extractor applies a compiled Pattern.
type Extractor struct {
	pattern Pattern
	re      *regexp.Regexp
}

// NewExtractor compiles the pattern.
func NewExtractor(p Pattern) (*Extractor, error) {
	expr := p.Expr
	if p.Mode == FullToken {
		expr = `^(?:` + expr + `)$`
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile tag pattern %s: %w", p.Name, err)
	}
	return &Extractor{pattern: p, re: re}, nil
}

// Pattern returns the pattern the extractor was built with.
func (e *Extractor) Pattern() Pattern {
	return e.pattern
}

// Extract returns the tags in a recognition. Word tokens are used when the
// backend reported them, otherwise the flat text.
func (e *Extractor) Extract(rec *ocr.Recognition) []Tag {
	if rec == nil {
		return []Tag{}
	}
	if rec.HasWords() {
		return e.ExtractWords(rec.Words)
	}
	return e.ExtractText(rec.Text)
}

// ExtractText scans flat text. In FullToken mode the text is split on
// whitespace and each field must match entirely.
func (e *Extractor) ExtractText(text string) []Tag {
	found := []Tag{}
	if e.pattern.Mode == FullToken {
		for _, field := range strings.Fields(text) {
			if e.accept(field) {
				found = append(found, Tag{Value: field})
			}
		}
		return found
	}

	for _, m := range e.re.FindAllString(text, -1) {
		if e.accept(m) {
			found = append(found, Tag{Value: m})
		}
	}
	return found
}

// ExtractWords scans OCR words and attaches each word's box to its matches.
func (e *Extractor) ExtractWords(words []ocr.Word) []Tag {
	found := []Tag{}
	for _, w := range words {
		box := w.Box
		if e.pattern.Mode == FullToken {
			if e.accept(w.Text) {
				found = append(found, Tag{Value: w.Text, Box: &box})
			}
			continue
		}
		for _, m := range e.re.FindAllString(w.Text, -1) {
			if e.accept(m) {
				found = append(found, Tag{Value: m, Box: &box})
			}
		}
	}
	return found
}

func (e *Extractor) accept(s string) bool {
	if e.pattern.Mode == FullToken && !e.re.MatchString(s) {
		return false
	}
	if len(e.pattern.RequireAny) == 0 {
		return true
	}
	for _, marker := range e.pattern.RequireAny {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// Values returns the tag strings in order.
func Values(found []Tag) []string {
	out := make([]string, len(found))
	for i, t := range found {
		out[i] = t.Value
	}
	return out
}

// Boxes returns the boxes of tags that have one.
func Boxes(found []Tag) []ocr.BoundingBox {
	var out []ocr.BoundingBox
	for _, t := range found {
		if t.Box != nil {
			out = append(out, *t.Box)
		}
	}
	return out
}
