// Package pdftext turns a PDF document into one text record per page.
//
// Pages are returned in physical order with 1-indexed, contiguous page
// numbers. A page without a text layer yields an empty record, never a
// missing one.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultMaxBytes caps in-memory extraction.
const DefaultMaxBytes int64 = 200 << 20

var (
	// ErrMalformedDocument is returned when the input cannot be parsed as a PDF.
	ErrMalformedDocument = errors.New("malformed pdf document")
	// ErrPageExtraction classifies a failure on a single page.
	ErrPageExtraction = errors.New("page extraction failed")
	// ErrDocumentTooLarge is returned when the input exceeds the extractor's byte limit.
	ErrDocumentTooLarge = errors.New("pdf document too large")
)

// PageRecord is the text of one page. Text is empty when the page has no
// recognizable text.
type PageRecord struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// PageExtractionError reports the page that failed in strict mode.
type PageExtractionError struct {
	Page int
	Err  error
}

func (e *PageExtractionError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageExtractionError) Unwrap() []error {
	return []error{ErrPageExtraction, e.Err}
}

// Result is the full outcome of an extraction. FailedPages lists pages that
// were degraded to empty text.
type Result struct {
	Pages       []PageRecord
	FailedPages []int
	Duration    time.Duration
}

// Texts returns the text column in page order.
func (r *Result) Texts() []string {
	texts := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		texts[i] = p.Text
	}
	return texts
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithStrictPages makes a single failing page abort the extraction.
func WithStrictPages(strict bool) Option {
	return func(e *Extractor) { e.strict = strict }
}

// WithMaxBytes overrides DefaultMaxBytes. Values <= 0 are ignored.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithLogger sets the logger used for degraded pages.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Extractor reads page text with github.com/ledongthuc/pdf. It holds no
// per-call state and is safe for concurrent use.
type Extractor struct {
	strict   bool
	maxBytes int64
	logger   *slog.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strict reports whether a failing page aborts extraction.
func (e *Extractor) Strict() bool {
	return e.strict
}

// ExtractFile reads the PDF at path. Nothing is written to disk.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	return e.ExtractReader(ctx, f, stat.Size())
}

// ExtractBytes extracts pages from an in-memory document.
func (e *Extractor) ExtractBytes(ctx context.Context, content []byte) (*Result, error) {
	return e.ExtractReader(ctx, bytes.NewReader(content), int64(len(content)))
}

// ExtractReader extracts pages from r, which must hold size bytes of PDF data.
func (e *Extractor) ExtractReader(ctx context.Context, r io.ReaderAt, size int64) (*Result, error) {
	ctx, span := otel.Tracer("pdftext").Start(ctx, "pdftext.extract")
	defer span.End()
	start := time.Now()

	if size <= 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedDocument)
	}
	if size > e.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrDocumentTooLarge, size, e.maxBytes)
	}

	reader, numPages, err := openReader(r, size)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed document")
		return nil, err
	}
	span.SetAttributes(attribute.Int("pdf.pages", numPages))

	result := &Result{Pages: make([]PageRecord, 0, numPages)}
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extraction cancelled at page %d: %w", i, err)
		}

		text, err := pageText(reader, i)
		if err != nil {
			if e.strict {
				perr := &PageExtractionError{Page: i, Err: err}
				span.RecordError(perr)
				span.SetStatus(codes.Error, "page extraction failed")
				return nil, perr
			}
			e.logger.Warn("page text extraction failed, storing empty text", "page", i, "error", err)
			result.FailedPages = append(result.FailedPages, i)
			text = ""
		}
		result.Pages = append(result.Pages, PageRecord{PageNumber: i, Text: text})
	}

	result.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("pdf.failed_pages", len(result.FailedPages)))
	return result, nil
}

// openReader guards the parser: malformed cross-reference data can panic
// inside the library instead of returning an error.
func openReader(r io.ReaderAt, size int64) (reader *pdf.Reader, numPages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reader, numPages = nil, 0
			err = fmt.Errorf("%w: %v", ErrMalformedDocument, rec)
		}
	}()

	reader, err = pdf.NewReader(r, size)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	numPages = reader.NumPage()
	return reader, numPages, nil
}

func pageText(reader *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%v", rec)
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	// nil font map lets the library resolve the page's own font encodings.
	raw, err := page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToValidUTF8(raw, "�")), nil
}
