// Package registry persists canonical documents, their source provenance,
// and the append-only operation log behind a driver-neutral Store.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bobmatnyc/dedup-cli/internal/config"
	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// ErrContentHashExists is returned by InsertCanonical when another canonical
// document already owns the content hash. Callers recover by attaching their
// source to the existing document instead.
var ErrContentHashExists = eris.New("registry: content hash already registered")

// Filter narrows ListCanonical results.
type Filter struct {
	Collection     string `json:"collection,omitempty"`
	DocumentType   string `json:"document_type,omitempty"`
	IncludeRetired bool   `json:"include_retired,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}

// OpFilter narrows ListOperations results.
type OpFilter struct {
	CanonicalID string          `json:"canonical_id,omitempty"`
	Operation   model.Operation `json:"operation,omitempty"`
	Status      model.OpStatus  `json:"status,omitempty"`
	Since       time.Time       `json:"since,omitempty"`
	Limit       int             `json:"limit,omitempty"`
}

// AttachResult reports what an AttachSource call changed.
type AttachResult struct {
	Attached      bool   `json:"attached"`       // false when the source row already existed
	Reassigned    bool   `json:"reassigned"`     // true when the primary source changed
	PrimarySource string `json:"primary_source"` // file path of the primary source after the call
}

// Store defines the persistence interface for the canonical registry.
// Single-row lookups return (nil, nil) when no row matches.
type Store interface {
	// Canonical documents
	FindByContentHash(ctx context.Context, contentHash string) (*model.CanonicalDocument, error)
	GetCanonical(ctx context.Context, canonicalID string) (*model.CanonicalDocument, error)
	InsertCanonical(ctx context.Context, doc *model.CanonicalDocument, src *model.Source) error
	ListCanonical(ctx context.Context, filter Filter) ([]model.CanonicalDocument, error)
	MergeCanonical(ctx context.Context, fromID, toID, reason string) error

	// Sources
	AttachSource(ctx context.Context, canonicalID string, src *model.Source) (*AttachResult, error)
	ListSources(ctx context.Context, canonicalID string) ([]model.Source, error)
	ResolveSourcePath(ctx context.Context, filePath string) (*model.CanonicalDocument, error)

	// Page fingerprints
	SavePageHashes(ctx context.Context, canonicalID string, pages map[int]string) error
	PageHashes(ctx context.Context, canonicalID string) (map[int]string, error)

	// Operation log
	Log(ctx context.Context, entry *model.OperationLogEntry) error
	ListOperations(ctx context.Context, filter OpFilter) ([]model.OperationLogEntry, error)

	// Lifecycle
	Stats(ctx context.Context) (*model.RegistryStats, error)
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the Store named by cfg.Driver.
func Open(ctx context.Context, cfg config.RegistryConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("registry: unknown driver %q", cfg.Driver)
	}
}

// ResolveCanonical follows merged_into references from id until it reaches a
// live canonical document, or (nil, nil) when the chain dead-ends.
func ResolveCanonical(ctx context.Context, s Store, id string) (*model.CanonicalDocument, error) {
	seen := map[string]bool{}
	for {
		if seen[id] {
			return nil, eris.Errorf("registry: merge cycle at %s", id)
		}
		seen[id] = true

		doc, err := s.GetCanonical(ctx, id)
		if err != nil {
			return nil, err
		}
		if doc == nil || !doc.Retired() {
			return doc, nil
		}
		id = doc.MergedInto
	}
}

// Column lists shared by both driver implementations.
const (
	canonicalColumns = `canonical_id, content_hash, file_hash, simhash, document_type, title, doc_date, subject, sender, recipients, page_count, ocr_quality, has_redactions, completeness, primary_source, selection_reason, merged_into, created_at, updated_at`
	sourceColumns    = `id, canonical_id, source_name, collection, file_path, format, file_hash, file_size, quality_score, download_date, added_at`
	oplogColumns     = `id, ts, operation, canonical_id, source, status, message, details`
)

// selectionReason explains why winner took primary over displaced. A nil
// displaced means winner is the only source on record.
func selectionReason(winner, displaced *model.Source) string {
	if displaced == nil {
		return "only source"
	}
	switch {
	case winner.QualityScore != displaced.QualityScore:
		return fmt.Sprintf("quality %.2f over %.2f", winner.QualityScore, displaced.QualityScore)
	case !winner.DownloadDate.Equal(displaced.DownloadDate):
		return fmt.Sprintf("earlier download %s", winner.DownloadDate.UTC().Format("2006-01-02"))
	default:
		return "file path order"
	}
}
