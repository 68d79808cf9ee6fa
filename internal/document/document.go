// Package document turns uploaded files into page images.
//
// PDFs are rasterized page by page with MuPDF (go-fitz); PNG and JPEG uploads
// are decoded as a single page. The file extension decides the kind and the
// content must agree with it.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/h2non/filetype"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrDocumentTooLarge  = errors.New("document too large")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrEmptyDocument     = errors.New("document has no pages")
)

// Kind is the document type derived from the file extension.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)

// DefaultDPI is used when Options.DPI is unset.
const DefaultDPI = 200

// SupportedExtensions lists the accepted upload extensions.
var SupportedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg"}

// Options controls loading.
type Options struct {
	// DPI is the PDF rasterization resolution.
	DPI float64

	// MaxBytes rejects larger uploads when positive.
	MaxBytes int64
}

// Document is an uploaded file rendered to page images.
type Document struct {
	Name  string
	Kind  Kind
	Pages []image.Image
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	if d == nil {
		return 0
	}
	return len(d.Pages)
}

// Page returns the 1-based page n.
func (d *Document) Page(n int) (image.Image, bool) {
	if n < 1 || n > d.PageCount() {
		return nil, false
	}
	return d.Pages[n-1], true
}

// KindOf maps a filename to a document kind.
func KindOf(filename string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(SupportedExtensions, ext) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if ext == ".pdf" {
		return KindPDF, nil
	}
	return KindImage, nil
}

// Load validates data against filename's extension and renders its pages.
func Load(data []byte, filename string, opts Options) (*Document, error) {
	kind, err := KindOf(filename)
	if err != nil {
		return nil, err
	}
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrDocumentTooLarge, len(data), opts.MaxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidDocument)
	}

	doc := &Document{Name: filepath.Base(filename), Kind: kind}
	switch kind {
	case KindPDF:
		if !filetype.Is(data, "pdf") && !hasPDFHeader(data) {
			return nil, fmt.Errorf("%w: %s is not a PDF", ErrInvalidDocument, doc.Name)
		}
		dpi := opts.DPI
		if dpi <= 0 {
			dpi = DefaultDPI
		}
		doc.Pages, err = renderPDF(data, dpi)
	case KindImage:
		if !filetype.IsImage(data) {
			return nil, fmt.Errorf("%w: %s is not an image", ErrInvalidDocument, doc.Name)
		}
		var img image.Image
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			err = fmt.Errorf("%w: decode %s: %v", ErrInvalidDocument, doc.Name, err)
		}
		doc.Pages = []image.Image{img}
	}
	if err != nil {
		return nil, err
	}
	if len(doc.Pages) == 0 {
		return nil, ErrEmptyDocument
	}
	return doc, nil
}

// pdfHeaderWindow is how far into the file the %PDF- marker may appear.
// Readers accept leading bytes before it, as MuPDF does.
const pdfHeaderWindow = 1024

func hasPDFHeader(data []byte) bool {
	return bytes.Contains(data[:min(len(data), pdfHeaderWindow)], []byte("%PDF-"))
}

func renderPDF(data []byte, dpi float64) ([]image.Image, error) {
	pdf, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", ErrInvalidDocument, err)
	}
	defer pdf.Close()

	n := pdf.NumPage()
	if n == 0 {
		return nil, ErrEmptyDocument
	}
	pages := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		img, err := pdf.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("%w: render page %d: %v", ErrInvalidDocument, i+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
