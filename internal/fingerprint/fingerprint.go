// Package fingerprint computes every hash form used to identify a document:
// exact file and content hashes, a locality-sensitive fuzzy hash, and
// per-page hashes for partial-overlap detection.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// EmptyMarker is hashed in place of text when extraction yielded nothing
// usable. Hashing an explicit marker keeps blank documents exact duplicates
// of each other and distinct from every non-blank document.
const EmptyMarker = "[EMPTY_CONTENT]"

// canonicalIDHexLen is how many leading hex digits of the content hash form
// the canonical identifier.
const canonicalIDHexLen = 16

// defaultMinTextLength is the normalized length below which content counts
// as empty.
const defaultMinTextLength = 8

// Generator computes fingerprints. It is stateless and safe for concurrent
// use.
type Generator struct {
	minTextLength int
}

// NewGenerator returns a Generator. minTextLength <= 0 selects the default.
func NewGenerator(minTextLength int) *Generator {
	if minTextLength <= 0 {
		minTextLength = defaultMinTextLength
	}
	return &Generator{minTextLength: minTextLength}
}

// Generate computes the full fingerprint for one document: file hash over
// the raw bytes, content hash and fuzzy hash over the normalized text, and
// per-page hashes when page texts are available.
func (g *Generator) Generate(raw []byte, text string, pageTexts []string) *model.Fingerprint {
	fp := &model.Fingerprint{
		FileHash: FileHash(raw),
	}

	normalized := Normalize(text)
	if len(normalized) < g.minTextLength {
		fp.Empty = true
		normalized = EmptyMarker
	}
	fp.ContentHash = hashString(normalized)
	fp.SimHash = FormatSimHash(SimHash(normalized))

	if len(pageTexts) > 0 {
		fp.PageHashes = g.hashPages(pageTexts)
	}

	return fp
}

// hashPages maps 1-based page index to the hash of that page's normalized
// text. Blank pages hash the empty marker so they still compare equal to
// other blank pages.
func (g *Generator) hashPages(pageTexts []string) map[int]string {
	hashes := make(map[int]string, len(pageTexts))
	for i, page := range pageTexts {
		normalized := Normalize(page)
		if len(normalized) < g.minTextLength {
			normalized = EmptyMarker
		}
		hashes[i+1] = hashString(normalized)
	}
	return hashes
}

// FileHash returns the SHA-256 hex digest of raw file bytes.
func FileHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ContentHash normalizes text and returns its SHA-256 hex digest. Empty or
// too-short text hashes the empty marker.
func ContentHash(text string) string {
	normalized := Normalize(text)
	if len(normalized) < defaultMinTextLength {
		normalized = EmptyMarker
	}
	return hashString(normalized)
}

// CanonicalID derives the stable canonical identifier from a content hash.
// Same content always maps to the same ID no matter which source produced
// it, and the mapping is pure: no counter, no clock, no randomness.
func CanonicalID(contentHash string) string {
	if len(contentHash) < canonicalIDHexLen {
		return "doc-" + contentHash
	}
	return "doc-" + contentHash[:canonicalIDHexLen]
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
