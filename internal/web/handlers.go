package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"

	"tagscan/internal/document"
	"tagscan/internal/ocr"
	"tagscan/internal/preprocess"
	"tagscan/internal/scan"
	"tagscan/internal/tags"
)

const noTagsMessage = "No matching tags found."

type pageView struct {
	Profile       string
	Engine        string
	MaxUploadMB   int64
	ExportEnabled bool
	Accept        string

	FileName  string
	IsPDF     bool
	PageCount int
	Page      int

	Result *resultView
	Error  string
	Notice string
}

type resultView struct {
	Page      int
	Tags      []string
	Text      string
	Annotated bool
	Duration  string
	Empty     string
}

func (s *Server) view(sess *session) pageView {
	v := pageView{
		Profile:       s.scanner.Profile().Name,
		Engine:        s.scanner.Engine(),
		MaxUploadMB:   s.maxUpload >> 20,
		ExportEnabled: s.exporter != nil,
		Accept:        strings.Join(document.SupportedExtensions, ","),
		Error:         sess.errMsg,
		Notice:        sess.notice,
	}
	if sess.doc != nil {
		v.FileName = sess.doc.Name
		v.IsPDF = sess.doc.Kind == document.KindPDF
		v.PageCount = sess.doc.PageCount()
		v.Page = sess.page
	}
	if res := sess.result; res != nil {
		v.Result = &resultView{
			Page:      res.Page,
			Tags:      res.Values(),
			Text:      res.Text,
			Annotated: res.Annotated != nil,
			Duration:  res.Duration.Round(time.Millisecond).String(),
		}
		if len(res.Tags) == 0 {
			v.Result.Empty = noTagsMessage
		}
	}
	return v
}

func (s *Server) render(w http.ResponseWriter, status int, sess *session) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "index.html", s.view(sess)); err != nil {
		s.log.Error().Err(err).Msg("Failed to render page")
	}
}

// fail shows msg on the page with the given status. The message is kept until
// the next successful action.
func (s *Server) fail(w http.ResponseWriter, sess *session, status int, msg string) {
	sess.errMsg = msg
	sess.notice = ""
	s.render(w, status, sess)
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	s.render(w, http.StatusOK, sess)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	data, filename, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, sess, statusFor(err), err.Error())
		return
	}

	doc, err := s.scanner.Load(data, filename, s.maxUpload)
	if err != nil {
		s.log.Warn().Err(err).Str("file", filename).Msg("Upload rejected")
		s.fail(w, sess, statusFor(err), userMessage(err))
		return
	}

	s.log.Info().
		Str("file", doc.Name).
		Str("kind", string(doc.Kind)).
		Int("pages", doc.PageCount()).
		Msg("Document loaded")

	sess.reset(doc)
	s.redirectHome(w, r)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.doc == nil {
		s.fail(w, sess, http.StatusBadRequest, "Upload a document first.")
		return
	}
	n, err := strconv.Atoi(r.FormValue("page"))
	if err != nil {
		s.fail(w, sess, http.StatusBadRequest, "Page must be a number.")
		return
	}

	sess.selectPage(n)
	sess.result = nil
	sess.errMsg = ""
	sess.notice = ""
	s.redirectHome(w, r)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.doc == nil {
		s.fail(w, sess, http.StatusBadRequest, "Upload a document first.")
		return
	}

	res, err := s.scanner.ScanDocument(r.Context(), sess.doc, sess.page)
	if err != nil {
		sess.result = nil
		s.fail(w, sess, statusFor(err), userMessage(err))
		return
	}

	sess.result = res
	sess.errMsg = ""
	sess.notice = ""
	s.redirectHome(w, r)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if s.exporter == nil {
		s.fail(w, sess, http.StatusBadRequest, "Export is not configured.")
		return
	}
	if sess.doc == nil || sess.result == nil {
		s.fail(w, sess, http.StatusBadRequest, "Run OCR before exporting.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.exportTTL)
	defer cancel()

	report := scan.NewReport(sess.doc.Name, sess.result, time.Now())
	if err := s.exporter.ExportReport(ctx, report); err != nil {
		s.log.Error().Err(err).Msg("Export failed")
		s.fail(w, sess, http.StatusBadGateway, "Export failed: "+err.Error())
		return
	}

	sess.errMsg = ""
	sess.notice = fmt.Sprintf("Exported %d tag(s).", len(report.Tags))
	s.redirectHome(w, r)
}

func (s *Server) handlePageImage(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	img, ok := sess.doc.Page(n)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writePNG(w, img)
}

func (s *Server) handleAnnotated(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.result == nil || sess.result.Annotated == nil {
		http.NotFound(w, r)
		return
	}
	s.writePNG(w, sess.result.Annotated)
}

func (s *Server) writePNG(w http.ResponseWriter, img image.Image) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode PNG")
	}
}

type apiScanResponse struct {
	File       string     `json:"file"`
	Page       int        `json:"page"`
	PageCount  int        `json:"page_count"`
	Engine     string     `json:"engine"`
	Tags       []string   `json:"tags"`
	Matches    []tags.Tag `json:"matches"`
	Text       string     `json:"text"`
	DurationMS int64      `json:"duration_ms"`
}

type apiError struct {
	Error string `json:"error"`
}

func (s *Server) handleAPIScan(w http.ResponseWriter, r *http.Request) {
	data, filename, err := s.readUpload(w, r)
	if err != nil {
		writeJSON(w, statusFor(err), apiError{Error: err.Error()})
		return
	}

	page := 1
	if raw := r.FormValue("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "page must be a number"})
			return
		}
	}

	doc, err := s.scanner.Load(data, filename, s.maxUpload)
	if err != nil {
		writeJSON(w, statusFor(err), apiError{Error: userMessage(err)})
		return
	}
	res, err := s.scanner.ScanDocument(r.Context(), doc, page)
	if err != nil {
		writeJSON(w, statusFor(err), apiError{Error: userMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, apiScanResponse{
		File:       doc.Name,
		Page:       res.Page,
		PageCount:  doc.PageCount(),
		Engine:     res.Engine,
		Tags:       res.Values(),
		Matches:    res.Tags,
		Text:       res.Text,
		DurationMS: res.Duration.Milliseconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"profile":  s.scanner.Profile().Name,
		"engine":   s.scanner.Engine(),
		"sessions": s.sessions.len(),
	})
}

var errNoUpload = errors.New("no document uploaded")

// readUpload reads the "document" multipart field within the upload limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", fmt.Errorf("%w: limit is %d MB", document.ErrDocumentTooLarge, s.maxUpload>>20)
		}
		return nil, "", fmt.Errorf("%w: %v", errNoUpload, err)
	}
	f, header, err := r.FormFile("document")
	if err != nil {
		return nil, "", errNoUpload
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	return data, header.Filename, nil
}

// statusFor maps pipeline errors onto HTTP status codes: bad input is the
// client's fault, OCR backend failures are upstream failures.
func statusFor(err error) int {
	switch {
	case errors.Is(err, document.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoUpload),
		errors.Is(err, document.ErrUnsupportedFormat),
		errors.Is(err, document.ErrInvalidDocument),
		errors.Is(err, document.ErrEmptyDocument),
		errors.Is(err, scan.ErrPageOutOfRange),
		errors.Is(err, preprocess.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, ocr.ErrContextCanceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// userMessage turns pipeline errors into text for the page.
func userMessage(err error) string {
	switch {
	case errors.Is(err, document.ErrUnsupportedFormat):
		return "Unsupported file type. Upload a PDF, PNG or JPEG."
	case errors.Is(err, document.ErrDocumentTooLarge):
		return "The file is too large."
	case errors.Is(err, document.ErrEmptyDocument):
		return "The document has no pages."
	case errors.Is(err, document.ErrInvalidDocument):
		return "The file could not be read: " + err.Error()
	case errors.Is(err, scan.ErrPageOutOfRange):
		return err.Error()
	case errors.Is(err, ocr.ErrMissingCredentials):
		return "The OCR engine is not configured: " + err.Error()
	default:
		return "OCR failed: " + err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
