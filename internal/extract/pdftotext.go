package extract

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
	timeout time.Duration
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty,
// "pdftotext" is used; timeoutSecs <= 0 disables the per-file timeout.
func NewPdfToText(binPath string, timeoutSecs int) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	var timeout time.Duration
	if timeoutSecs > 0 {
		timeout = time.Duration(timeoutSecs) * time.Second
	}
	return &PdfToText{binPath: binPath, timeout: timeout}
}

// ExtractPages runs pdftotext -layout on the given PDF and splits stdout on
// the form feeds pdftotext emits after each page. When the structural page
// count from the preflight exceeds the split, trailing blank pages are padded
// in so page indices stay aligned with the document.
func (p *PdfToText) ExtractPages(ctx context.Context, pdfPath string) ([]string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "extract: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	pages := splitFormFeed(stdout.String())

	// Preflight count is advisory: a PDF pdftotext could read but pdfcpu
	// cannot still extracts.
	if count, err := PageCount(pdfPath); err == nil {
		for len(pages) < count {
			pages = append(pages, "")
		}
	}

	return pages, nil
}
