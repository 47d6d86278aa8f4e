package model

import (
	"time"
)

// DocumentOutcome is the terminal state of one document in an ingestion run.
type DocumentOutcome string

const (
	OutcomeCreated  DocumentOutcome = "created"
	OutcomeAttached DocumentOutcome = "attached"
	OutcomeFailed   DocumentOutcome = "failed"
)

// IngestResult records what happened to one document during ingestion.
// ErrorType labels a failure "transient" or "permanent" so an operator knows
// whether re-running the batch is likely to help.
type IngestResult struct {
	DocID       string          `json:"doc_id"`
	FilePath    string          `json:"file_path"`
	CanonicalID string          `json:"canonical_id,omitempty"`
	Outcome     DocumentOutcome `json:"outcome"`
	Reassigned  bool            `json:"reassigned,omitempty"`
	Quality     float64         `json:"quality"`
	Error       string          `json:"error,omitempty"`
	ErrorType   string          `json:"error_type,omitempty"`
}

// IngestReport summarizes one ingestion run: per-document counts plus the
// failed files and their reasons.
type IngestReport struct {
	Collection string         `json:"collection"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Total      int            `json:"total"`
	Created    int            `json:"created"`
	Attached   int            `json:"attached"`
	Reassigned int            `json:"reassigned"`
	Failed     int            `json:"failed"`
	Results    []IngestResult `json:"results,omitempty"`
	Failures   []IngestResult `json:"failures,omitempty"`
}

// AnalysisReport is the output of a standalone duplicate-detection run over
// the registered corpus: the groups found per phase plus any cross-phase
// conflicts that need review.
type AnalysisReport struct {
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Documents   int               `json:"documents"`
	Groups      []DuplicateGroup  `json:"groups"`
	Conflicts   []Conflict        `json:"conflicts"`
	PhaseCounts map[GroupType]int `json:"phase_counts"`
}

// ExportFailure records one canonical document whose artifact could not be
// re-emitted, usually because the primary source file is unreadable.
type ExportFailure struct {
	CanonicalID string `json:"canonical_id"`
	Path        string `json:"path"`
	Error       string `json:"error"`
}

// ExportReport summarizes an artifact re-emission pass over the registry.
type ExportReport struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Total      int             `json:"total"`
	Written    int             `json:"written"`
	Failed     int             `json:"failed"`
	Failures   []ExportFailure `json:"failures,omitempty"`
}
