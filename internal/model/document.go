package model

import (
	"time"
)

// Document is one ingested file as handed over by the extraction layer: raw
// byte identity, extracted text, and whatever header metadata the extractor
// could parse. It is the unit of work for fingerprinting, quality scoring,
// and duplicate detection.
type Document struct {
	// ID identifies the document within a batch; the orchestrator uses the
	// file path when the caller does not assign one.
	ID string `json:"id"`

	SourceName   string    `json:"source_name"`
	Collection   string    `json:"collection"`
	FilePath     string    `json:"file_path"`
	Format       string    `json:"format,omitempty"`
	FileSize     int64     `json:"file_size"`
	DownloadDate time.Time `json:"download_date"`

	// Text is the full extracted text; PageTexts is the optional per-page
	// split. Absence of PageTexts excludes the document from partial-overlap
	// analysis but is not an error.
	Text      string   `json:"-"`
	PageTexts []string `json:"-"`
	PageCount int      `json:"page_count"`

	Metadata DocumentMetadata `json:"metadata"`

	Fingerprint *Fingerprint `json:"fingerprint,omitempty"`
	Quality     float64      `json:"quality"`
}

// DocumentMetadata holds header-like fields parsed by the extraction layer.
// All fields are optional; metadata matching only considers documents where
// HasHeaderFields reports true.
type DocumentMetadata struct {
	DocumentType string   `json:"document_type,omitempty"`
	Title        string   `json:"title,omitempty"`
	Date         string   `json:"date,omitempty"`
	Subject      string   `json:"subject,omitempty"`
	Sender       string   `json:"sender,omitempty"`
	Recipients   []string `json:"recipients,omitempty"`
}

// HasHeaderFields reports whether enough structured fields were parsed for
// metadata-signature matching to be meaningful.
func (m DocumentMetadata) HasHeaderFields() bool {
	return m.Sender != "" && m.Subject != ""
}

// Fingerprint carries every hash form computed for one document. FileHash
// covers the raw bytes; ContentHash covers the normalized text; SimHash is a
// locality-sensitive digest for near-duplicate scoring; PageHashes maps page
// index (1-based) to the hash of that page's normalized text.
type Fingerprint struct {
	FileHash    string         `json:"file_hash"`
	ContentHash string         `json:"content_hash"`
	SimHash     string         `json:"sim_hash"`
	PageHashes  map[int]string `json:"page_hashes,omitempty"`

	// Empty marks documents whose extraction yielded no usable text. Their
	// ContentHash is computed over an explicit empty-content marker so that
	// blank documents still deduplicate against each other.
	Empty bool `json:"empty"`
}
