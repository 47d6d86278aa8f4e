package extract

import (
	"bytes"
	"context"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"
)

// StreamExtractor extracts PDF text in-process by parsing page content
// streams with pdfcpu. No external binary required; coverage is limited to
// text drawn with the common show operators, which is what typewritten
// archive scans with an OCR text layer use.
type StreamExtractor struct{}

// ExtractPages parses every page's content stream. Pages without text come
// back as empty strings so indices stay aligned.
func (s *StreamExtractor) ExtractPages(ctx context.Context, pdfPath string) ([]string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open %s", pdfPath)
	}
	defer f.Close() //nolint:errcheck

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read pdf %s", pdfPath)
	}

	pages := make([]string, 0, pdfCtx.PageCount)
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "extract: cancelled")
		}
		pages = append(pages, pageText(pdfCtx, pageNr))
	}

	return pages, nil
}

// PageCount opens the PDF and returns its structural page count.
func PageCount(pdfPath string) (int, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, eris.Wrapf(err, "extract: open %s", pdfPath)
	}
	defer f.Close() //nolint:errcheck

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0, eris.Wrapf(err, "extract: read pdf %s", pdfPath)
	}
	return pdfCtx.PageCount, nil
}

// pageText pulls one page's content stream and parses its text operators.
// Unreadable streams yield an empty page rather than failing the document.
func pageText(pdfCtx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromStream(data)
}

// literalRe matches PDF string literals in parentheses: (text here)
var literalRe = regexp.MustCompile(`\(([^)]*)\)`)

// textFromStream walks content stream lines and collects text from the show
// operators: Tj, TJ, and ' draw string literals; Td, TD, and T* only move
// the cursor and turn into whitespace.
func textFromStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range literalRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodeLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range literalRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodeLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return collapseText(sb.String())
}

// decodeLiteral resolves the escape sequences a PDF string literal may carry,
// including octal byte escapes like \040.
func decodeLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c < '0' || c > '7' {
				sb.WriteByte(c)
				continue
			}
			val := int(c - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// collapseText squeezes whitespace runs and drops non-printable bytes left
// over from stream parsing. A run containing a line break collapses to a
// newline so header lines survive; pure horizontal runs become one space.
func collapseText(text string) string {
	var sb strings.Builder
	var pendingSpace, pendingLine bool
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			pendingLine = true
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsPrint(r):
			if pendingLine && sb.Len() > 0 {
				sb.WriteByte('\n')
			} else if pendingSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			pendingLine, pendingSpace = false, false
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
