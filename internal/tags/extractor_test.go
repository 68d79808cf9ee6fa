package tags

import (
	"reflect"
	"testing"

	"tagscan/internal/ocr"
)

func mustExtractor(t *testing.T, p Pattern) *Extractor {
	t.Helper()
	e, err := NewExtractor(p)
	if err != nil {
		t.Fatalf("NewExtractor(%s) error = %v", p.Name, err)
	}
	return e
}

func TestStrictWords(t *testing.T) {
	e := mustExtractor(t, Strict())

	testCases := []struct {
		word  string
		match bool
	}{
		{"WH-0601-PG-89-FSL32", true},
		{"XWH-0601-PG-89-FSL32", false},
		{"WH-0601-PG-89-FSL3", false},
		{"WH-0601-PG-89-FSL321", false},
		{"WH-0601-PG-89-CSL32", false},
		{"WH_0601_PG_89_FSL32", false},
		{"WH-601-PG-89-FSL32", false},
		{"WH-0601-pg-89-FSL32", false},
	}

	for _, tc := range testCases {
		t.Run(tc.word, func(t *testing.T) {
			got := e.ExtractWords([]ocr.Word{{Text: tc.word}})
			if (len(got) == 1) != tc.match {
				t.Fatalf("ExtractWords(%q) = %v, want match=%v", tc.word, got, tc.match)
			}
			if tc.match && got[0].Value != tc.word {
				t.Errorf("Value = %q", got[0].Value)
			}
		})
	}
}

func TestStrictKeepsBoxes(t *testing.T) {
	e := mustExtractor(t, Strict())
	words := []ocr.Word{
		{Text: "BIN", Box: ocr.BoundingBox{X: 1, Y: 1, Width: 10, Height: 5}},
		{Text: "WH-0601-PG-89-FSL32", Box: ocr.BoundingBox{X: 20, Y: 1, Width: 90, Height: 12}},
		{Text: "WH-1234-AB-12-FSL99", Box: ocr.BoundingBox{X: 20, Y: 30, Width: 90, Height: 12}},
	}
	got := e.Extract(&ocr.Recognition{Words: words, Text: "ignored"})
	if !reflect.DeepEqual(Values(got), []string{"WH-0601-PG-89-FSL32", "WH-1234-AB-12-FSL99"}) {
		t.Fatalf("Values = %v", Values(got))
	}
	if got[0].Box == nil || *got[0].Box != words[1].Box {
		t.Errorf("box = %v, want %v", got[0].Box, words[1].Box)
	}
	if len(Boxes(got)) != 2 {
		t.Errorf("Boxes = %v", Boxes(got))
	}
}

func TestStrictTextFallsBackToFields(t *testing.T) {
	e := mustExtractor(t, Strict())
	got := e.Extract(&ocr.Recognition{Text: "row 3\nWH-0601-PG-89-FSL32  XWH-0601-PG-89-FSL32\n"})
	if !reflect.DeepEqual(Values(got), []string{"WH-0601-PG-89-FSL32"}) {
		t.Fatalf("Values = %v", Values(got))
	}
	if got[0].Box != nil {
		t.Errorf("text-only match should have no box")
	}
}

func TestLenientText(t *testing.T) {
	e := mustExtractor(t, Lenient())

	testCases := []struct {
		name string
		text string
		want []string
	}{
		{"no tags", "nothing to see here WH-12", []string{}},
		{"exact literal", "WH-0601-PG-89-FSL32", []string{"WH-0601-PG-89-FSL32"}},
		{"underscore csl", "WH_0601_PG_89_CSL07", []string{"WH_0601_PG_89_CSL07"}},
		{"wrong suffix", "WH-0601-PG-89-XXX32", []string{}},
		{"embedded", "Location:WH-0601-PG-89-FSL32;next", []string{"WH-0601-PG-89-FSL32"}},
		{"digit widths", "WH-060-PG-89-FSL32 WH-06011-PG-89-CSL32", []string{"WH-060-PG-89-FSL32", "WH-06011-PG-89-CSL32"}},
		{"mixed separators", "WH-0601_PG-89_FSL32", []string{"WH-0601_PG-89_FSL32"}},
		{"duplicates kept", "WH-0601-PG-89-FSL32 WH-0601-PG-89-FSL32", []string{"WH-0601-PG-89-FSL32", "WH-0601-PG-89-FSL32"}},
		{"empty", "", []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Values(e.ExtractText(tc.text))
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ExtractText(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestLenientWords(t *testing.T) {
	e := mustExtractor(t, Lenient())
	box := ocr.BoundingBox{X: 5, Y: 6, Width: 7, Height: 8}
	got := e.ExtractWords([]ocr.Word{{Text: "(WH_0601_PG_89_CSL07)", Box: box}})
	if len(got) != 1 || got[0].Value != "WH_0601_PG_89_CSL07" {
		t.Fatalf("got %v", got)
	}
	if got[0].Box == nil || *got[0].Box != box {
		t.Errorf("box = %v", got[0].Box)
	}
}

func TestRequireAnyFilter(t *testing.T) {
	p := Pattern{Name: "any", Expr: `WH-\d{4}-[A-Z]{3}\d{2}`, Mode: Search, RequireAny: []string{"FSL", "CSL"}}
	e := mustExtractor(t, p)
	got := Values(e.ExtractText("WH-0601-FSL32 WH-0601-XXX32"))
	if !reflect.DeepEqual(got, []string{"WH-0601-FSL32"}) {
		t.Errorf("got %v", got)
	}
}

func TestExtractNilRecognition(t *testing.T) {
	e := mustExtractor(t, Lenient())
	if got := e.Extract(nil); got == nil || len(got) != 0 {
		t.Errorf("Extract(nil) = %#v, want empty non-nil", got)
	}
}

func TestPatternByName(t *testing.T) {
	if p, err := PatternByName("STRICT"); err != nil || p.Mode != FullToken {
		t.Errorf("strict: %+v %v", p, err)
	}
	if p, err := PatternByName("lenient"); err != nil || p.Mode != Search {
		t.Errorf("lenient: %+v %v", p, err)
	}
	if _, err := PatternByName("fuzzy"); err == nil {
		t.Errorf("expected error for unknown pattern")
	}
}

func TestNewExtractorRejectsBadExpr(t *testing.T) {
	if _, err := NewExtractor(Pattern{Name: "bad", Expr: `WH-(`}); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestExtractorPatternKeepsSource(t *testing.T) {
	e := mustExtractor(t, Strict())
	p := e.Pattern()
	if p.Name != "strict" || p.Expr != Strict().Expr {
		t.Errorf("Pattern() = %+v, want the unanchored strict pattern", p)
	}
}
