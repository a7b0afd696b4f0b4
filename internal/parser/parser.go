// Package parser extracts plain text from PDF bytes.
//
// Extraction is a pure function over the input bytes: callers fetch the
// document from object storage and persist the output themselves. Failures
// split into two classes the pipeline treats differently: InvalidInputError
// (the document itself is unacceptable, never retried) and ParseError
// (structural parse trouble, worth a bounded retry).
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var pdfHeader = []byte("%PDF")

// ParseResult is the output of a successful extraction.
type ParseResult struct {
	Text      string
	PageCount int
}

// Config bounds what the extractor will accept.
type Config struct {
	MaxSizeBytes int64
	MaxPages     int
}

// DefaultConfig returns the extraction limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxSizeBytes: 25 << 20, // 25MB
		MaxPages:     100,
	}
}

// document is the minimal surface the extractor needs from a parsed PDF.
// Page numbers are 1-based.
type document interface {
	PageCount() int
	PageText(page int) (string, error)
}

// docOpener opens raw bytes into a document. Swappable in tests.
type docOpener func(data []byte) (document, error)

// Extractor extracts text and page counts from PDF bytes.
type Extractor struct {
	cfg  Config
	open docOpener
}

// New creates an Extractor with the given limits.
func New(cfg Config) *Extractor {
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = DefaultConfig().MaxSizeBytes
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultConfig().MaxPages
	}
	return &Extractor{cfg: cfg, open: openPDF}
}

// Extract validates the document and returns its plain text and page count.
//
// Validation order is cheapest-first: header, size, page count, then per-page
// text. A document where no page yields non-whitespace text is rejected as
// invalid input (scanned/image-only PDFs are out of scope). Pages are joined
// with a blank line between them.
func (e *Extractor) Extract(data []byte) (*ParseResult, error) {
	if !bytes.HasPrefix(data, pdfHeader) {
		return nil, &InvalidInputError{Reason: "unsupported content: missing PDF header"}
	}

	if int64(len(data)) > e.cfg.MaxSizeBytes {
		return nil, &InvalidInputError{Reason: fmt.Sprintf(
			"file too large: %.1fMB > %.1fMB",
			float64(len(data))/(1<<20), float64(e.cfg.MaxSizeBytes)/(1<<20),
		)}
	}

	doc, err := e.open(data)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	pageCount := doc.PageCount()
	if pageCount > e.cfg.MaxPages {
		return nil, &InvalidInputError{Reason: fmt.Sprintf(
			"too many pages: %d > %d", pageCount, e.cfg.MaxPages,
		)}
	}

	pages := make([]string, 0, pageCount)
	hasText := false
	for i := 1; i <= pageCount; i++ {
		text, err := doc.PageText(i)
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("page %d: %w", i, err)}
		}
		stripped := strings.TrimSpace(text)
		pages = append(pages, stripped)
		if stripped != "" {
			hasText = true
		}
	}

	if !hasText {
		return nil, &InvalidInputError{Reason: "no extractable text: document may be scanned/image-only"}
	}

	return &ParseResult{
		Text:      strings.TrimSpace(strings.Join(pages, "\n\n")),
		PageCount: pageCount,
	}, nil
}

// pdfDocument adapts the pdf reader to the document interface. pdfcpu provides
// the authoritative page count (and a structural sanity check on open);
// ledongthuc/pdf provides per-page plain text, which pdfcpu does not expose.
type pdfDocument struct {
	count  int
	reader *pdf.Reader
}

func openPDF(data []byte) (document, error) {
	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF structure: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	return &pdfDocument{count: count, reader: reader}, nil
}

func (d *pdfDocument) PageCount() int { return d.count }

func (d *pdfDocument) PageText(page int) (string, error) {
	p := d.reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}
