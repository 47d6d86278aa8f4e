package model

import (
	"time"
)

// Operation names a registry mutation recorded in the operation log.
type Operation string

const (
	OpCreate          Operation = "create"
	OpAttachSource    Operation = "attach-source"
	OpReassignPrimary Operation = "reassign-primary"
	OpMerge           Operation = "merge"
	OpConflict        Operation = "conflict"
)

// OpStatus is the recorded outcome of a logged operation.
type OpStatus string

const (
	OpStatusOK      OpStatus = "ok"
	OpStatusFailed  OpStatus = "failed"
	OpStatusFlagged OpStatus = "flagged"
)

// OperationLogEntry is one row of the append-only audit trail. Entries are
// never mutated or deleted; together they explain every identity decision
// the registry has ever made.
type OperationLogEntry struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Operation   Operation         `json:"operation"`
	CanonicalID string            `json:"canonical_id,omitempty"`
	Source      string            `json:"source,omitempty"`
	Status      OpStatus          `json:"status"`
	Message     string            `json:"message"`
	Details     map[string]string `json:"details,omitempty"`
}

// RegistryStats summarizes the registry for status reporting and health
// checks.
type RegistryStats struct {
	CanonicalDocuments int64     `json:"canonical_documents"`
	RetiredDocuments   int64     `json:"retired_documents"`
	Sources            int64     `json:"sources"`
	Operations         int64     `json:"operations"`
	FlaggedConflicts   int64     `json:"flagged_conflicts"`
	Collections        int64     `json:"collections"`
	LastOperationAt    time.Time `json:"last_operation_at"`
}
