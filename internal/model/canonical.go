package model

import (
	"time"
)

// Completeness classifies how much of a document's original content survived
// extraction.
type Completeness string

const (
	CompletenessComplete Completeness = "complete"
	CompletenessPartial  Completeness = "partial"
	CompletenessFragment Completeness = "fragment"
	CompletenessUnknown  Completeness = "unknown"
)

// Valid reports whether c is one of the defined completeness levels.
func (c Completeness) Valid() bool {
	switch c {
	case CompletenessComplete, CompletenessPartial, CompletenessFragment, CompletenessUnknown:
		return true
	}
	return false
}

// CanonicalDocument is the single logical record for one distinct piece of
// content across all of its discovered copies. Exactly one exists per unique
// content hash, and its CanonicalID is never reassigned once created.
type CanonicalDocument struct {
	CanonicalID   string       `json:"canonical_id"`
	ContentHash   string       `json:"content_hash"`
	FileHash      string       `json:"file_hash"`
	SimHash       string       `json:"sim_hash,omitempty"`
	DocumentType  string       `json:"document_type,omitempty"`
	Title         string       `json:"title,omitempty"`
	Date          string       `json:"date,omitempty"`
	Subject       string       `json:"subject,omitempty"`
	Sender        string       `json:"sender,omitempty"`
	Recipients    []string     `json:"recipients,omitempty"`
	PageCount     int          `json:"page_count"`
	OCRQuality    float64      `json:"ocr_quality"`
	HasRedactions bool         `json:"has_redactions"`
	Completeness  Completeness `json:"completeness"`

	// PrimarySource is the file path of the Source currently judged
	// authoritative; SelectionReason explains the most recent choice.
	PrimarySource   string `json:"primary_source"`
	SelectionReason string `json:"selection_reason"`

	// MergedInto is set when this identity was retired in favor of another
	// canonical document. All sources are carried forward at merge time.
	MergedInto string `json:"merged_into,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Retired reports whether this canonical identity has been merged away.
func (d *CanonicalDocument) Retired() bool {
	return d.MergedInto != ""
}

// Source is one physical file instance that was ingested and matched to a
// canonical document. Sources are append-only provenance: never deleted,
// never rewritten.
type Source struct {
	ID           string    `json:"id"`
	CanonicalID  string    `json:"canonical_id"`
	SourceName   string    `json:"source_name"`
	Collection   string    `json:"collection"`
	FilePath     string    `json:"file_path"`
	Format       string    `json:"format,omitempty"`
	FileHash     string    `json:"file_hash,omitempty"`
	FileSize     int64     `json:"file_size"`
	QualityScore float64   `json:"quality_score"`
	DownloadDate time.Time `json:"download_date"`
	AddedAt      time.Time `json:"added_at"`
}

// OutranksForPrimary reports whether s should replace other as primary
// source. Quality wins outright; ties break on earliest download date, then
// lexicographically smallest file path, so selection is reproducible
// regardless of ingestion order.
func (s *Source) OutranksForPrimary(other *Source) bool {
	if other == nil {
		return true
	}
	if s.QualityScore != other.QualityScore {
		return s.QualityScore > other.QualityScore
	}
	if !s.DownloadDate.Equal(other.DownloadDate) {
		return s.DownloadDate.Before(other.DownloadDate)
	}
	return s.FilePath < other.FilePath
}

// SelectPrimary returns the source that wins primary selection among
// candidates, or nil when candidates is empty.
func SelectPrimary(candidates []Source) *Source {
	var best *Source
	for i := range candidates {
		if candidates[i].OutranksForPrimary(best) {
			best = &candidates[i]
		}
	}
	return best
}
