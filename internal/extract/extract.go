package extract

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/bobmatnyc/dedup-cli/internal/config"
	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// Result is what extraction hands to fingerprinting and quality scoring:
// full text, the per-page split, the structural page count, and whatever
// memo-style header fields the first page carried.
type Result struct {
	Text      string
	PageTexts []string
	PageCount int
	Metadata  model.DocumentMetadata
}

// Extractor extracts text content from archive files.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Result, error)
}

// PageExtractor extracts per-page text from a single PDF file. Page indices
// are preserved: blank pages come back as empty strings, never dropped.
type PageExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
}

// New creates an Extractor based on config.
func New(cfg config.ExtractConfig) (Extractor, error) {
	switch cfg.Provider {
	case "pdftotext", "":
		return &FileExtractor{pdf: NewPdfToText(cfg.PdfToTextPath, cfg.TimeoutSecs)}, nil
	case "builtin":
		return &FileExtractor{pdf: &StreamExtractor{}}, nil
	default:
		return nil, eris.Errorf("extract: unknown provider %q", cfg.Provider)
	}
}

// FileExtractor dispatches on file extension: PDFs go through the configured
// page extractor, text-like files are read directly with charset detection.
type FileExtractor struct {
	pdf PageExtractor
}

// Extract reads one file and assembles the extraction result. An empty result
// (image-only PDF, blank sidecar) is not an error; the caller fingerprints it
// against the empty-content marker and moves on.
func (e *FileExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	var (
		pages []string
		err   error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		pages, err = e.pdf.ExtractPages(ctx, path)
	case ".txt", ".text", ".md":
		pages, err = extractTextFile(path)
	default:
		return nil, eris.Errorf("extract: unsupported format %q for %s", ext, path)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{
		Text:      strings.Join(pages, "\f"),
		PageTexts: pages,
		PageCount: len(pages),
	}
	if len(pages) > 0 {
		res.Metadata = ParseHeader(pages[0])
	}

	return res, nil
}

// extractTextFile reads a plain-text or sidecar file. Scanning vendors save
// pdftotext output as .txt sidecars, so form feeds still mark page breaks.
func extractTextFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read %s", path)
	}

	text, err := decodeText(data)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: decode %s", path)
	}

	return splitFormFeed(text), nil
}

// decodeText returns data as UTF-8, decoding from Windows-1252 when the raw
// bytes are not valid UTF-8. Archive sidecars predate Unicode tooling often
// enough that the fallback earns its keep.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data), nil
	}

	enc, err := htmlindex.Get("windows-1252")
	if err != nil {
		return "", eris.Wrap(err, "lookup fallback charset")
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", eris.Wrap(err, "windows-1252 decode")
	}
	return string(decoded), nil
}

// splitFormFeed splits text into pages on form-feed characters. pdftotext
// terminates every page with \f, so the trailing empty chunk is structural
// and dropped; interior blank pages keep their slot.
func splitFormFeed(text string) []string {
	pages := strings.Split(text, "\f")
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages
}
