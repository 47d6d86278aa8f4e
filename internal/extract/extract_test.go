package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmatnyc/dedup-cli/internal/config"
)

func writeTextFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// --- Provider selection ---

func TestNew_DefaultProvider(t *testing.T) {
	ext, err := New(config.ExtractConfig{})
	require.NoError(t, err)

	fe, ok := ext.(*FileExtractor)
	require.True(t, ok)
	assert.IsType(t, &PdfToText{}, fe.pdf)
}

func TestNew_BuiltinProvider(t *testing.T) {
	ext, err := New(config.ExtractConfig{Provider: "builtin"})
	require.NoError(t, err)

	fe, ok := ext.(*FileExtractor)
	require.True(t, ok)
	assert.IsType(t, &StreamExtractor{}, fe.pdf)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.ExtractConfig{Provider: "tesseract"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "tesseract"`)
}

// --- Text files ---

const memoText = `MEMORANDUM

From: R. Maxwell
To: J. Alvarez; M. Chen
Cc: Records Desk
Date: MARCH 4, 1997
Subject: Flight logs for review

Attached are the flight logs pulled from the March transfer.
`

func TestFileExtractor_Extract_TextFile(t *testing.T) {
	ext, err := New(config.ExtractConfig{})
	require.NoError(t, err)

	path := writeTextFile(t, "memo.txt", []byte(memoText))
	res, err := ext.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, res.PageCount)
	require.Len(t, res.PageTexts, 1)
	assert.Contains(t, res.Text, "Attached are the flight logs")

	md := res.Metadata
	assert.Equal(t, "MEMORANDUM", md.Title)
	assert.Equal(t, "R. Maxwell", md.Sender)
	assert.Equal(t, []string{"J. Alvarez", "M. Chen", "Records Desk"}, md.Recipients)
	assert.Equal(t, "1997-03-04", md.Date)
	assert.Equal(t, "Flight logs for review", md.Subject)
	assert.True(t, md.HasHeaderFields())
}

func TestFileExtractor_Extract_SidecarFormFeeds(t *testing.T) {
	ext, err := New(config.ExtractConfig{})
	require.NoError(t, err)

	path := writeTextFile(t, "sidecar.txt", []byte("page one body\fpage two body\f"))
	res, err := ext.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, res.PageCount)
	require.Len(t, res.PageTexts, 2)
	assert.Equal(t, "page two body", res.PageTexts[1])
}

func TestFileExtractor_Extract_Windows1252(t *testing.T) {
	ext, err := New(config.ExtractConfig{})
	require.NoError(t, err)

	path := writeTextFile(t, "legacy.txt", []byte("R\xe9sum\xe9 \x93quoted\x94"))
	res, err := ext.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Contains(t, res.Text, "Résumé")
	assert.Contains(t, res.Text, "“quoted”")
}

func TestFileExtractor_Extract_StripsBOM(t *testing.T) {
	ext, err := New(config.ExtractConfig{})
	require.NoError(t, err)

	path := writeTextFile(t, "bom.txt", []byte("\xEF\xBB\xBFReport body"))
	res, err := ext.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Report body", res.Text)
}

func TestFileExtractor_Extract_EmptyFile(t *testing.T) {
	ext, err := New(config.ExtractConfig{})
	require.NoError(t, err)

	path := writeTextFile(t, "blank.txt", nil)
	res, err := ext.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, res.PageCount)
	assert.Empty(t, res.Text)
	assert.Empty(t, res.Metadata.Title)
}

func TestFileExtractor_Extract_UnsupportedFormat(t *testing.T) {
	ext, err := New(config.ExtractConfig{})
	require.NoError(t, err)

	path := writeTextFile(t, "inventory.xlsx", []byte("not really a spreadsheet"))
	_, err = ext.Extract(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestFileExtractor_Extract_MissingFile(t *testing.T) {
	ext, err := New(config.ExtractConfig{})
	require.NoError(t, err)

	missing := filepath.Join(t.TempDir(), "absent.txt")
	_, err = ext.Extract(context.Background(), missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.txt")
}

// --- Header parsing ---

func TestParseHeader_TitleSkipsHeaderLines(t *testing.T) {
	md := ParseHeader("From: A. Reed\nSubject: Schedules\n\nQuarterly transfer summary")
	assert.Equal(t, "Quarterly transfer summary", md.Title)
	assert.Equal(t, "A. Reed", md.Sender)
}

func TestParseHeader_TitleFallsBackToHeaderLine(t *testing.T) {
	md := ParseHeader("From: A. Reed\nTo: B. Cole")
	assert.Equal(t, "From: A. Reed", md.Title)
}

func TestParseHeader_AlternateKeys(t *testing.T) {
	md := ParseHeader("Sender: Clerk of Court\nRecipients: Intake, Archive\nSent: 3/4/1997")
	assert.Equal(t, "Clerk of Court", md.Sender)
	assert.Equal(t, []string{"Intake", "Archive"}, md.Recipients)
	assert.Equal(t, "1997-03-04", md.Date)
}

func TestParseHeader_ReplyPrefixKeptVerbatim(t *testing.T) {
	// Reply/forward prefixes are stripped during signature matching, not here.
	md := ParseHeader("Subject: RE: Flight logs")
	assert.Equal(t, "RE: Flight logs", md.Subject)
}

func TestParseHeader_LongTitleTruncated(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	md := ParseHeader(string(long))
	assert.Len(t, md.Title, maxTitleLen)
}

func TestParseHeader_FirstValueWins(t *testing.T) {
	md := ParseHeader("From: First Sender\nFrom: Second Sender\nDate: 1997-03-04\nDate: 1998-01-01")
	assert.Equal(t, "First Sender", md.Sender)
	assert.Equal(t, "1997-03-04", md.Date)
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"iso", "1997-03-04", "1997-03-04"},
		{"long month uppercase", "MARCH 4, 1997", "1997-03-04"},
		{"abbreviated month", "Mar. 4, 1997", "1997-03-04"},
		{"day first", "4 March 1997", "1997-03-04"},
		{"slashes", "3/4/1997", "1997-03-04"},
		{"two digit year", "03/04/97", "1997-03-04"},
		{"extra whitespace", "  March   4,  1997 ", "1997-03-04"},
		{"unparseable kept", "circa spring 1997", "circa spring 1997"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.in))
		})
	}
}

// --- Page splitting ---

func TestSplitFormFeed(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitFormFeed("a\fb\f"))
	assert.Equal(t, []string{"a", "b"}, splitFormFeed("a\fb"))
	assert.Equal(t, []string{"a", ""}, splitFormFeed("a\f\f"))
	assert.Equal(t, []string{"a"}, splitFormFeed("a"))
	assert.Equal(t, []string{""}, splitFormFeed(""))
}
