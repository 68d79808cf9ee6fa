package scan

import (
	"context"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"tagscan/internal/config"
	"tagscan/internal/document"
	"tagscan/internal/ocr"
	"tagscan/internal/preprocess"
)

type fakeEngine struct {
	rec   *ocr.Recognition
	err   error
	calls int
	seen  image.Image
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Close() error { return nil }

func (f *fakeEngine) Recognize(ctx context.Context, img image.Image) (*ocr.Recognition, error) {
	f.calls++
	f.seen = img
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

func whitePage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func newTestScanner(t *testing.T, p Profile, e ocr.Engine) *Scanner {
	t.Helper()
	s, err := NewScanner(p, e, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	return s
}

func TestScanPageLocalAnnotates(t *testing.T) {
	box := ocr.BoundingBox{X: 10, Y: 10, Width: 40, Height: 12}
	engine := &fakeEngine{rec: &ocr.Recognition{
		Engine: "fake",
		Text:   "BIN WH-0601-PG-89-FSL32",
		Words: []ocr.Word{
			{Text: "BIN", Box: ocr.BoundingBox{X: 1, Y: 1, Width: 5, Height: 5}},
			{Text: "WH-0601-PG-89-FSL32", Box: box},
		},
	}}
	page := whitePage(80, 40)

	res, err := newTestScanner(t, LocalProfile(), engine).ScanPage(context.Background(), page)
	if err != nil {
		t.Fatalf("ScanPage() error = %v", err)
	}
	if !reflect.DeepEqual(res.Values(), []string{"WH-0601-PG-89-FSL32"}) {
		t.Errorf("tags = %v", res.Values())
	}
	if res.Annotated == nil {
		t.Fatal("expected annotated image")
	}
	if res.Annotated.Bounds() != page.Bounds() {
		t.Errorf("annotated bounds = %v", res.Annotated.Bounds())
	}
	if _, ok := engine.seen.(*image.Gray); !ok {
		t.Errorf("engine received %T, want thresholded *image.Gray", engine.seen)
	}
	if page.NRGBAAt(10, 10).G != 0xff || page.NRGBAAt(10, 10).R != 0xff {
		t.Error("original page was modified")
	}
}

func TestScanPageNoBoxesNoAnnotation(t *testing.T) {
	engine := &fakeEngine{rec: &ocr.Recognition{Text: "WH-0601-PG-89-FSL32"}}
	res, err := newTestScanner(t, LocalProfile(), engine).ScanPage(context.Background(), whitePage(20, 20))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Tags) != 1 || res.Annotated != nil {
		t.Errorf("res = %+v", res)
	}
	if res.Engine != "fake" {
		t.Errorf("Engine = %q", res.Engine)
	}
}

func TestScanPageRemote(t *testing.T) {
	engine := &fakeEngine{rec: &ocr.Recognition{Engine: "fake", Text: "x WH_0601_PG_89_CSL07 y WH-0601-PG-89-XXX32"}}
	res, err := newTestScanner(t, RemoteProfile(), engine).ScanPage(context.Background(), whitePage(20, 20))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Values(), []string{"WH_0601_PG_89_CSL07"}) {
		t.Errorf("tags = %v", res.Values())
	}
	if res.Annotated != nil {
		t.Error("remote profile should not annotate")
	}
	if _, ok := engine.seen.(*image.NRGBA); !ok {
		t.Errorf("engine received %T, want contrast-enhanced *image.NRGBA", engine.seen)
	}
}

func TestScanPageZeroTags(t *testing.T) {
	engine := &fakeEngine{rec: &ocr.Recognition{Text: "nothing here"}}
	res, err := newTestScanner(t, RemoteProfile(), engine).ScanPage(context.Background(), whitePage(5, 5))
	if err != nil {
		t.Fatal(err)
	}
	if res.Tags == nil || len(res.Tags) != 0 {
		t.Errorf("Tags = %#v, want empty non-nil", res.Tags)
	}
}

func TestScanPageEngineError(t *testing.T) {
	cause := ocr.NewOCRError("fake", "Recognize", ocr.ErrRemoteStatus, "status 500")
	engine := &fakeEngine{err: cause}
	_, err := newTestScanner(t, RemoteProfile(), engine).ScanPage(context.Background(), whitePage(5, 5))
	if !errors.Is(err, ocr.ErrRemoteStatus) {
		t.Fatalf("error = %v, want ErrRemoteStatus", err)
	}
}

func TestScanPageInvalidImage(t *testing.T) {
	engine := &fakeEngine{rec: &ocr.Recognition{}}
	_, err := newTestScanner(t, LocalProfile(), engine).ScanPage(context.Background(), nil)
	if !errors.Is(err, preprocess.ErrInvalidImage) {
		t.Fatalf("error = %v, want ErrInvalidImage", err)
	}
	if engine.calls != 0 {
		t.Error("engine called for invalid image")
	}
}

func TestScanDocumentPageRange(t *testing.T) {
	engine := &fakeEngine{rec: &ocr.Recognition{Text: "WH-0601-PG-89-FSL32"}}
	s := newTestScanner(t, RemoteProfile(), engine)
	doc := &document.Document{Name: "a.pdf", Kind: document.KindPDF, Pages: []image.Image{whitePage(4, 4), whitePage(6, 6)}}

	res, err := s.ScanDocument(context.Background(), doc, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Page != 2 || engine.seen.Bounds().Dx() != 6 {
		t.Errorf("scanned page %d with width %d", res.Page, engine.seen.Bounds().Dx())
	}

	for _, page := range []int{0, 3, -1} {
		if _, err := s.ScanDocument(context.Background(), doc, page); !errors.Is(err, ErrPageOutOfRange) {
			t.Errorf("page %d: error = %v, want ErrPageOutOfRange", page, err)
		}
	}
}

func TestNewScannerValidation(t *testing.T) {
	if _, err := NewScanner(LocalProfile(), nil, zerolog.Nop()); err == nil {
		t.Error("expected error without engine")
	}
	p := LocalProfile()
	p.Threshold.BlockSize = 4
	if _, err := NewScanner(p, &fakeEngine{}, zerolog.Nop()); !errors.Is(err, preprocess.ErrInvalidOptions) {
		t.Errorf("error = %v, want ErrInvalidOptions", err)
	}
}

func TestProfileFromConfig(t *testing.T) {
	cfg := &config.Config{Profile: "remote", Matcher: "strict", RenderDPI: 150, Annotate: "true"}
	p, err := ProfileFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "remote" || p.Pattern.Name != "strict" || p.DPI != 150 || !p.Annotate {
		t.Errorf("profile = %+v", p)
	}
	if p.EngineName("") != ocr.EngineOCRSpace || p.EngineName("vision") != "vision" {
		t.Errorf("EngineName = %q", p.EngineName(""))
	}

	p, err = ProfileFromConfig(&config.Config{Profile: "local"})
	if err != nil {
		t.Fatal(err)
	}
	if p.DPI != 200 || p.Pattern.Name != "strict" || !p.Annotate || p.DefaultEngine != ocr.EngineTesseract {
		t.Errorf("local profile = %+v", p)
	}

	if _, err := ProfileFromConfig(&config.Config{Profile: "cloud"}); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestRemoteEmptyParsedResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ParsedResults":[],"OCRExitCode":1,"IsErroredOnProcessing":false}`)
	}))
	defer server.Close()

	engine, err := ocr.NewOCRSpaceEngine(ocr.OCRSpaceConfig{Endpoint: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := newTestScanner(t, RemoteProfile(), engine).ScanPage(context.Background(), whitePage(30, 10))
	if err != nil {
		t.Fatalf("ScanPage() error = %v", err)
	}
	if res.Tags == nil || len(res.Tags) != 0 {
		t.Errorf("Tags = %#v, want empty", res.Tags)
	}
	if res.Engine != ocr.EngineOCRSpace {
		t.Errorf("Engine = %q", res.Engine)
	}
}
