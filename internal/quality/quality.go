// Package quality scores extracted text for OCR fidelity. The score is the
// sole ranking key for primary-source selection, so it must be deterministic
// for identical input.
package quality

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// defaultCharsPerPage is the expected character density of a cleanly
// extracted page of typed text.
const defaultCharsPerPage = 1800

// Score component weights. Printable and wordlike ratios dominate because
// garbage characters are the clearest OCR-failure signal.
const (
	weightPrintable = 0.35
	weightWordlike  = 0.25
	weightDensity   = 0.25
	weightStructure = 0.15
)

// Assessment is the full quality breakdown for one document's text.
type Assessment struct {
	Score          float64            `json:"score"`
	PrintableRatio float64            `json:"printable_ratio"`
	WordlikeRatio  float64            `json:"wordlike_ratio"`
	Density        float64            `json:"density"`
	HasHeaders     bool               `json:"has_headers"`
	HasRedactions  bool               `json:"has_redactions"`
	Garbled        bool               `json:"garbled"`
	Completeness   model.Completeness `json:"completeness"`
}

// Assessor scores text against an expected per-page character density. It is
// stateless and safe for concurrent use.
type Assessor struct {
	charsPerPage int
}

// NewAssessor returns an Assessor. charsPerPage <= 0 selects the default.
func NewAssessor(charsPerPage int) *Assessor {
	if charsPerPage <= 0 {
		charsPerPage = defaultCharsPerPage
	}
	return &Assessor{charsPerPage: charsPerPage}
}

// Assess scores extracted text in [0,1]. pageCount may be zero when the page
// structure is unknown; density is then judged against a single page and
// completeness reported as unknown.
func (a *Assessor) Assess(text string, pageCount int) Assessment {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Assessment{Completeness: model.CompletenessFragment}
	}

	assessment := Assessment{
		PrintableRatio: printableRatio(trimmed),
		WordlikeRatio:  wordlikeRatio(trimmed),
		HasHeaders:     hasHeaderLines(trimmed),
		HasRedactions:  HasRedactions(trimmed),
		Garbled:        hasGarbledPrefix(trimmed),
	}

	expectedPages := pageCount
	if expectedPages <= 0 {
		expectedPages = 1
	}
	density := float64(len([]rune(trimmed))) / float64(expectedPages*a.charsPerPage)
	if density > 1 {
		density = 1
	}
	assessment.Density = density

	structure := 0.5
	if assessment.HasHeaders {
		structure = 1.0
	}

	score := weightPrintable*assessment.PrintableRatio +
		weightWordlike*assessment.WordlikeRatio +
		weightDensity*density +
		weightStructure*structure
	if assessment.Garbled {
		score *= 0.5
	}
	if score > 1 {
		score = 1
	}
	assessment.Score = score

	assessment.Completeness = completeness(density, pageCount)
	return assessment
}

func completeness(density float64, pageCount int) model.Completeness {
	if pageCount <= 0 {
		return model.CompletenessUnknown
	}
	switch {
	case density >= 0.6:
		return model.CompletenessComplete
	case density >= 0.25:
		return model.CompletenessPartial
	default:
		return model.CompletenessFragment
	}
}

// printableRatio returns the fraction of printable characters. Private Use
// Area glyphs, the replacement character, and non-whitespace control
// characters count as garbage.
func printableRatio(text string) float64 {
	total := 0
	printable := 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	// Private Use Area
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	// Replacement character
	if r == 0xFFFD {
		return true
	}
	// Control chars except whitespace
	if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
		return true
	}
	return false
}

// wordlikeRatio returns the ratio of word-like tokens to total tokens. A
// token is word-like when it spans 2-15 runes and contains at least one
// letter or digit; OCR noise produces single-character confetti, fused runs
// far past normal word length, or glyph salad with no letters at all.
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := len([]rune(f))
		if n >= 2 && n <= 15 && strings.ContainsFunc(f, isWordRune) {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// hasGarbledPrefix detects text whose opening words are mostly single
// characters, the signature of garbled header extraction.
func hasGarbledPrefix(text string) bool {
	words := strings.Fields(text)
	if len(words) < 20 {
		return false
	}

	sampleSize := min(50, len(words))
	singleCharWords := 0
	for _, w := range words[:sampleSize] {
		if len(w) == 1 {
			r := rune(w[0])
			if r != '.' && r != '-' && r != 'X' && r != 'x' && r != 'v' && r != ':' {
				singleCharWords++
			}
		}
	}

	return float64(singleCharWords)/float64(sampleSize) > 0.4
}

var headerLinePattern = regexp.MustCompile(`(?im)^\s*(from|to|cc|date|subject|re|memo(randum)?)\s*:`)

// hasHeaderLines reports whether the opening of the document carries
// header-style field lines.
func hasHeaderLines(text string) bool {
	head := text
	if len(head) > 2000 {
		head = head[:2000]
	}
	return headerLinePattern.MatchString(head)
}

var redactionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[?\b(redacted|withheld)\b\]?`),
	regexp.MustCompile(`X{5,}`),
	regexp.MustCompile(`█+`),
	regexp.MustCompile(`\(b\)\s*\([1-9]\)`),
}

// HasRedactions reports whether the text carries visible redaction marks:
// blackout blocks, RESTRICTED/REDACTED stamps, or FOIA exemption markers
// like (b)(1).
func HasRedactions(text string) bool {
	for _, pat := range redactionPatterns {
		if pat.MatchString(text) {
			return true
		}
	}
	return false
}
