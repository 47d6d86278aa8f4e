// Package artifact emits the per-canonical deliverable: a markdown file with
// YAML front matter enumerating identity, quality, and full source
// provenance, followed by the normalized body text of the primary source.
// Files are written atomically (tmp then rename) so a consumer never reads a
// partial artifact, and regenerating after a primary reassignment is a plain
// overwrite.
package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// Writer deposits canonical artifacts into a target directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer targeting dir. The directory is created on
// first write if it does not exist.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

type frontMatter struct {
	CanonicalID     string       `yaml:"canonical_id"`
	ContentHash     string       `yaml:"content_hash"`
	FileHash        string       `yaml:"file_hash"`
	DocumentType    string       `yaml:"document_type,omitempty"`
	Title           string       `yaml:"title,omitempty"`
	Date            string       `yaml:"date,omitempty"`
	PageCount       int          `yaml:"page_count"`
	OCRQuality      float64      `yaml:"ocr_quality"`
	Completeness    string       `yaml:"completeness"`
	HasRedactions   bool         `yaml:"has_redactions"`
	PrimarySource   string       `yaml:"primary_source"`
	SelectionReason string       `yaml:"selection_reason,omitempty"`
	GeneratedAt     string       `yaml:"generated_at"`
	Sources         []sourceMeta `yaml:"sources"`
}

type sourceMeta struct {
	SourceName   string  `yaml:"source_name"`
	Collection   string  `yaml:"collection"`
	FilePath     string  `yaml:"file_path"`
	DownloadDate string  `yaml:"download_date"`
	QualityScore float64 `yaml:"quality_score"`
	FileSize     int64   `yaml:"file_size,omitempty"`
}

// Path returns where the artifact for a canonical id lives.
func (w *Writer) Path(canonicalID string) string {
	return filepath.Join(w.dir, canonicalID+".md")
}

// Write emits <dir>/<canonical_id>.md for doc. body is the normalized text
// of the current primary source; sources is the complete provenance list.
// Returns the path of the written file.
func (w *Writer) Write(doc *model.CanonicalDocument, sources []model.Source, body string) (string, error) {
	if doc == nil {
		return "", eris.New("artifact: nil document")
	}
	if doc.CanonicalID == "" {
		return "", eris.New("artifact: document has no canonical id")
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "artifact: mkdir %s", w.dir)
	}

	fm := frontMatter{
		CanonicalID:     doc.CanonicalID,
		ContentHash:     doc.ContentHash,
		FileHash:        doc.FileHash,
		DocumentType:    doc.DocumentType,
		Title:           doc.Title,
		Date:            doc.Date,
		PageCount:       doc.PageCount,
		OCRQuality:      doc.OCRQuality,
		Completeness:    string(doc.Completeness),
		HasRedactions:   doc.HasRedactions,
		PrimarySource:   doc.PrimarySource,
		SelectionReason: doc.SelectionReason,
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
		Sources:         make([]sourceMeta, 0, len(sources)),
	}
	for _, src := range sources {
		fm.Sources = append(fm.Sources, sourceMeta{
			SourceName:   src.SourceName,
			Collection:   src.Collection,
			FilePath:     src.FilePath,
			DownloadDate: src.DownloadDate.UTC().Format("2006-01-02"),
			QualityScore: src.QualityScore,
			FileSize:     src.FileSize,
		})
	}

	head, err := yaml.Marshal(fm)
	if err != nil {
		return "", eris.Wrap(err, "artifact: marshal front matter")
	}

	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	content := "---\n" + string(head) + "---\n\n" + body

	target := w.Path(doc.CanonicalID)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return "", eris.Wrapf(err, "artifact: write %s", tmp)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return "", eris.Wrapf(err, "artifact: rename %s", target)
	}

	return target, nil
}
