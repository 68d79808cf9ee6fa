package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/disintegration/imaging"

	"tagscan/internal/ocr"
)

// Example runs the OCR.space backend on a single page image.
func Example() {
	// Load .env file (using godotenv in main)
	// This should be done in your main() function:
	//
	// if err := godotenv.Load(); err != nil {
	//     log.Printf("Warning: Could not load .env file: %v", err)
	// }

	engine, err := ocr.NewOCRSpaceEngine(ocr.OCRSpaceConfig{
		APIKey:  os.Getenv("OCR_SPACE_API_KEY"),
		Timeout: 30 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to create OCR engine: %v", err)
	}
	defer engine.Close()

	page, err := imaging.Open("shelf_label.png")
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec, err := engine.Recognize(ctx, page)
	if err != nil {
		log.Fatalf("Failed to recognize page: %v", err)
	}

	fmt.Printf("Extracted text (%d characters) in %v:\n%s\n", len(rec.Text), rec.Duration, rec.Text)
}

// Example_words prints word boxes from a backend that reports positions.
func Example_words() {
	ctx := context.Background()

	engine, err := ocr.NewVisionEngine(ctx, ocr.VisionConfig{Timeout: 30 * time.Second})
	if err != nil {
		log.Fatalf("Failed to create OCR engine: %v", err)
	}
	defer engine.Close()

	page, err := imaging.Open("shelf_label.png")
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}

	rec, err := engine.Recognize(ctx, page)
	if err != nil {
		log.Fatalf("Failed to recognize page: %v", err)
	}

	if !rec.HasWords() {
		fmt.Println("No word positions returned")
		return
	}
	for _, w := range rec.Words {
		fmt.Printf("%-24s x=%d y=%d w=%d h=%d\n", w.Text, w.Box.X, w.Box.Y, w.Box.Width, w.Box.Height)
	}
}

// Example_errorHandling shows how failures map to the sentinel errors.
func Example_errorHandling() {
	engine, err := ocr.NewOCRSpaceEngine(ocr.OCRSpaceConfig{
		APIKey: os.Getenv("OCR_SPACE_API_KEY"),
	})
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Fatalf("Please set OCR_SPACE_API_KEY")
		}
		log.Fatalf("Failed to create OCR engine: %v", err)
	}

	page, err := imaging.Open("blurry_label.jpg")
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}

	rec, err := engine.Recognize(context.Background(), page)
	if err != nil {
		var ocrErr *ocr.OCRError
		switch {
		case errors.Is(err, ocr.ErrRemoteStatus):
			log.Printf("OCR.space rejected the request. Check the API key and quota.")
		case errors.Is(err, ocr.ErrRemoteProcessing):
			log.Printf("OCR.space could not process the image: %v", err)
		case errors.Is(err, ocr.ErrMalformedResponse):
			log.Printf("OCR.space returned an unexpected response.")
		case errors.As(err, &ocrErr):
			log.Printf("%s failed during %s: %s", ocrErr.Engine, ocrErr.Op, ocrErr.Details)
		default:
			log.Fatalf("OCR processing failed: %v", err)
		}
		return
	}

	fmt.Printf("Recognized %d characters\n", len(rec.Text))
}
