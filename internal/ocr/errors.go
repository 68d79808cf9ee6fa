package ocr

import (
	"context"
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrInvalidImage is returned when the page image is nil or has no pixels.
	ErrInvalidImage = errors.New("invalid page image")

	// ErrOCRFailed is returned when the OCR backend could not be reached or
	// failed while recognizing the image.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrRemoteStatus is returned when a remote OCR endpoint answers with a
	// non-2xx HTTP status.
	ErrRemoteStatus = errors.New("OCR service returned an error status")

	// ErrMalformedResponse is returned when a remote OCR response does not have
	// the expected shape.
	ErrMalformedResponse = errors.New("malformed OCR service response")

	// ErrRemoteProcessing is returned when the remote service reports that it
	// failed to process the image.
	ErrRemoteProcessing = errors.New("OCR service could not process the image")

	// ErrMissingCredentials is returned when an engine needs an API key or
	// cloud credentials that are not configured.
	ErrMissingCredentials = errors.New("missing OCR backend credentials")

	// ErrContextCanceled is returned when the context is canceled during processing.
	ErrContextCanceled = errors.New("OCR processing was canceled")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize", "NewVisionEngine").
	Op string

	// Engine is the name of the engine that failed.
	Engine string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	prefix := "ocr"
	if e.Engine != "" {
		prefix = "ocr/" + e.Engine
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s failed: %s: %v", prefix, e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", prefix, e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError for the given engine and operation.
func NewOCRError(engine, op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Engine:  engine,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(engine, op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}

	return NewOCRError(engine, op, err, details)
}

// contextError maps context cancellation onto the package errors so callers
// can tell a timeout apart from a backend failure.
func contextError(engine, op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewOCRError(engine, op, err, "timed out waiting for OCR backend")
	case errors.Is(err, context.Canceled):
		return NewOCRError(engine, op, ErrContextCanceled, err.Error())
	default:
		return nil
	}
}
