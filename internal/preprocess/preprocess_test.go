package preprocess

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func whitePage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func TestAdaptiveThresholdKeepsDimensions(t *testing.T) {
	sizes := []image.Point{{1, 1}, {7, 3}, {64, 48}, {15, 200}}
	for _, size := range sizes {
		out, err := AdaptiveThreshold(whitePage(size.X, size.Y), DefaultThreshold)
		if err != nil {
			t.Fatalf("AdaptiveThreshold(%v) error = %v", size, err)
		}
		if out.Bounds().Dx() != size.X || out.Bounds().Dy() != size.Y {
			t.Errorf("bounds = %v, want %dx%d", out.Bounds(), size.X, size.Y)
		}
	}
}

func TestAdaptiveThresholdUniformPageIsBackground(t *testing.T) {
	out, err := AdaptiveThreshold(whitePage(20, 20), DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Pix {
		if v != 0 {
			t.Fatalf("pixel %d = %d, want 0", i, v)
		}
	}
}

func TestAdaptiveThresholdInvertsInk(t *testing.T) {
	img := whitePage(31, 31)
	for x := 10; x < 21; x++ {
		img.Set(x, 15, color.Black)
	}

	out, err := AdaptiveThreshold(img, DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.GrayAt(15, 15).Y; got != 255 {
		t.Errorf("ink pixel = %d, want 255", got)
	}
	if got := out.GrayAt(15, 2).Y; got != 0 {
		t.Errorf("paper pixel = %d, want 0", got)
	}
}

func TestAdaptiveThresholdOffsetBounds(t *testing.T) {
	img := whitePage(10, 10)
	sub := img.SubImage(image.Rect(3, 4, 9, 10))

	out, err := AdaptiveThreshold(sub, DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds() != sub.Bounds() {
		t.Errorf("bounds = %v, want %v", out.Bounds(), sub.Bounds())
	}
}

func TestAdaptiveThresholdInvalid(t *testing.T) {
	testCases := []struct {
		name    string
		img     image.Image
		opts    ThresholdOptions
		wantErr error
	}{
		{"nil image", nil, DefaultThreshold, ErrInvalidImage},
		{"empty image", image.NewGray(image.Rect(0, 0, 0, 5)), DefaultThreshold, ErrInvalidImage},
		{"even block", whitePage(4, 4), ThresholdOptions{BlockSize: 14, C: 8}, ErrInvalidOptions},
		{"tiny block", whitePage(4, 4), ThresholdOptions{BlockSize: 1}, ErrInvalidOptions},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := AdaptiveThreshold(tc.img, tc.opts); !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestGrayscaleLuma(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	gray, err := Grayscale(img)
	if err != nil {
		t.Fatal(err)
	}
	if v := gray.GrayAt(0, 0).Y; v < 70 || v > 80 {
		t.Errorf("red luma = %d, want ~76", v)
	}
	if v := gray.GrayAt(1, 0).Y; v != 255 {
		t.Errorf("white luma = %d", v)
	}
}

func TestEnhanceContrast(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	img.SetGray(0, 0, color.Gray{Y: 96})
	img.SetGray(1, 0, color.Gray{Y: 128})
	img.SetGray(2, 0, color.Gray{Y: 160})

	out, err := EnhanceContrast(img, DefaultContrastFactor)
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Dx() != 3 || out.Bounds().Dy() != 1 {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	dark, light := out.NRGBAAt(0, 0).R, out.NRGBAAt(2, 0).R
	if dark >= 96 || light <= 160 {
		t.Errorf("contrast not increased: %d..%d", dark, light)
	}
	if spread := int(light) - int(dark); spread < 120 || spread > 136 {
		t.Errorf("spread = %d, want about double 64", spread)
	}
}

func TestEnhanceContrastInvalid(t *testing.T) {
	if _, err := EnhanceContrast(nil, 2); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("nil image error = %v", err)
	}
	if _, err := EnhanceContrast(whitePage(2, 2), 0); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("zero factor error = %v", err)
	}
}

func TestApply(t *testing.T) {
	page := whitePage(16, 9)

	out, err := Apply(page, Options{Strategy: StrategyThreshold, Threshold: DefaultThreshold})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.(*image.Gray); !ok {
		t.Errorf("threshold output = %T, want *image.Gray", out)
	}

	out, err = Apply(page, Options{Strategy: StrategyContrast, ContrastFactor: DefaultContrastFactor})
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Size() != page.Bounds().Size() {
		t.Errorf("contrast bounds = %v", out.Bounds())
	}

	if _, err := Apply(page, Options{Strategy: "sharpen"}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("unknown strategy error = %v", err)
	}
}
