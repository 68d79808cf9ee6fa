package ocr

import (
	"image"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

func TestVisionRecognition(t *testing.T) {
	resp := &visionpb.AnnotateImageResponse{
		FullTextAnnotation: &visionpb.TextAnnotation{Text: "BIN WH-0601-PG-89-FSL32\n"},
		TextAnnotations: []*visionpb.EntityAnnotation{
			{Description: "BIN WH-0601-PG-89-FSL32"},
			{
				Description: "BIN",
				BoundingPoly: &visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
					{X: 10, Y: 20}, {X: 40, Y: 20}, {X: 40, Y: 35}, {X: 10, Y: 35},
				}},
			},
			{
				Description: "WH-0601-PG-89-FSL32",
				BoundingPoly: &visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
					{X: 50, Y: 18}, {X: 210, Y: 18}, {X: 210, Y: 36}, {X: 50, Y: 36},
				}},
			},
		},
	}

	rec := visionRecognition(resp)
	if rec.Text != "BIN WH-0601-PG-89-FSL32\n" {
		t.Errorf("Text = %q", rec.Text)
	}
	if len(rec.Words) != 2 {
		t.Fatalf("got %d words, want 2", len(rec.Words))
	}
	want := BoundingBox{X: 50, Y: 18, Width: 160, Height: 18}
	if rec.Words[1].Text != "WH-0601-PG-89-FSL32" || rec.Words[1].Box != want {
		t.Errorf("word = %+v, want box %+v", rec.Words[1], want)
	}
}

func TestDocumentRecognition(t *testing.T) {
	text := "WH-0601-PG-89-FSL32 ROW\n"
	doc := &documentaipb.Document{
		Text: text,
		Pages: []*documentaipb.Document_Page{
			{
				Dimension: &documentaipb.Document_Page_Dimension{Width: 1000, Height: 500},
				Tokens: []*documentaipb.Document_Page_Token{
					{Layout: &documentaipb.Document_Page_Layout{
						TextAnchor: &documentaipb.Document_TextAnchor{TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{
							{StartIndex: 0, EndIndex: 20},
						}},
						BoundingPoly: &documentaipb.BoundingPoly{NormalizedVertices: []*documentaipb.NormalizedVertex{
							{X: 0.1, Y: 0.2}, {X: 0.5, Y: 0.2}, {X: 0.5, Y: 0.3}, {X: 0.1, Y: 0.3},
						}},
					}},
					{Layout: &documentaipb.Document_Page_Layout{
						TextAnchor: &documentaipb.Document_TextAnchor{TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{
							{StartIndex: 20, EndIndex: 24},
						}},
					}},
				},
			},
		},
	}

	rec := documentRecognition(doc, image.Rect(0, 0, 100, 50))
	if rec.Text != text {
		t.Errorf("Text = %q", rec.Text)
	}
	if len(rec.Words) != 2 {
		t.Fatalf("got %d words, want 2", len(rec.Words))
	}
	if rec.Words[0].Text != "WH-0601-PG-89-FSL32" {
		t.Errorf("token text = %q", rec.Words[0].Text)
	}
	box := rec.Words[0].Box
	if box.X != 100 || box.Y != 100 || box.Width < 399 || box.Width > 400 || box.Height < 49 || box.Height > 50 {
		t.Errorf("box = %+v", box)
	}
	if rec.Words[1].Text != "ROW" {
		t.Errorf("second token = %q", rec.Words[1].Text)
	}
}

func TestBoundingBoxRect(t *testing.T) {
	box := BoundingBox{X: 3, Y: 4, Width: 10, Height: 5}
	if got := BoxFromRect(box.Rect()); got != box {
		t.Errorf("round trip = %+v", got)
	}
}
