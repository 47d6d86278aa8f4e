package extract

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// headerScanLines bounds how deep into a page header fields are looked for.
const headerScanLines = 40

const maxTitleLen = 200

var headerKeys = map[string]bool{
	"from":       true,
	"sender":     true,
	"to":         true,
	"recipients": true,
	"cc":         true,
	"date":       true,
	"sent":       true,
	"subject":    true,
}

// ParseHeader scans the top of a page for memo-style header lines (From:,
// To:, Date:, Subject:) and fills whatever fields it finds. Scanned archives
// are noisy; every field is best-effort and absence is never an error. The
// title is the first non-empty line that is not a header field.
func ParseHeader(page string) model.DocumentMetadata {
	var md model.DocumentMetadata

	lines := strings.Split(page, "\n")
	limit := len(lines)
	if limit > headerScanLines {
		limit = headerScanLines
	}

	for _, line := range lines[:limit] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := splitHeaderLine(line)
		if !ok {
			if md.Title == "" {
				md.Title = truncate(line, maxTitleLen)
			}
			continue
		}

		switch key {
		case "from", "sender":
			if md.Sender == "" {
				md.Sender = value
			}
		case "to", "recipients", "cc":
			md.Recipients = append(md.Recipients, splitRecipients(value)...)
		case "date", "sent":
			if md.Date == "" {
				md.Date = NormalizeDate(value)
			}
		case "subject":
			if md.Subject == "" {
				md.Subject = value
			}
		}
	}

	if md.Title == "" {
		for _, line := range lines {
			if line = strings.TrimSpace(line); line != "" {
				md.Title = truncate(line, maxTitleLen)
				break
			}
		}
	}

	return md
}

func splitHeaderLine(line string) (key, value string, ok bool) {
	k, v, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	k = strings.ToLower(strings.TrimSpace(k))
	if !headerKeys[k] {
		return "", "", false
	}
	return k, strings.TrimSpace(v), true
}

func splitRecipients(value string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == ',' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// dateLayouts are the forms typewritten archive headers actually use.
var dateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	"2 January 2006",
	"02 January 2006",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
}

var titleCaser = cases.Title(language.English)

// NormalizeDate reduces the date forms found in memo headers to YYYY-MM-DD.
// Unparseable dates come back whitespace-collapsed but otherwise untouched; a
// wrong guess is worse than an unnormalized string.
func NormalizeDate(value string) string {
	cleaned := strings.Join(strings.Fields(value), " ")
	if cleaned == "" {
		return ""
	}

	recased := titleCaser.String(strings.ToLower(cleaned))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, recased); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return cleaned
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
