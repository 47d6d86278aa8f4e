package model

import (
	"sort"
)

// GroupType names the detection phase that produced a duplicate group. The
// four phases are independent dimensions of sameness, kept separate so every
// merge decision stays explainable.
type GroupType string

const (
	GroupExact    GroupType = "exact"
	GroupFuzzy    GroupType = "fuzzy"
	GroupMetadata GroupType = "metadata"
	GroupPartial  GroupType = "partial"
)

// DuplicateGroup is the ephemeral output of one detection phase: a set of
// document IDs believed to represent the same underlying content, with the
// evidence that supports the grouping. Groups are consumed to update the
// registry, never persisted as-is.
type DuplicateGroup struct {
	Type       GroupType         `json:"type"`
	Docs       []string          `json:"docs"`
	Similarity float64           `json:"similarity"`
	Method     string            `json:"method"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewDuplicateGroup builds a group with its document set deduplicated and
// sorted, so equal groups compare equal regardless of discovery order.
func NewDuplicateGroup(t GroupType, docs []string, similarity float64, method string) DuplicateGroup {
	seen := make(map[string]bool, len(docs))
	uniq := make([]string, 0, len(docs))
	for _, d := range docs {
		if !seen[d] {
			seen[d] = true
			uniq = append(uniq, d)
		}
	}
	sort.Strings(uniq)
	return DuplicateGroup{
		Type:       t,
		Docs:       uniq,
		Similarity: similarity,
		Method:     method,
		Metadata:   map[string]string{},
	}
}

// Contains reports whether the group includes the given document ID.
func (g *DuplicateGroup) Contains(id string) bool {
	for _, d := range g.Docs {
		if d == id {
			return true
		}
	}
	return false
}

// PairKey returns a canonical key for a two-document relationship,
// independent of argument order.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x1f" + b
}

// Conflict records a pair of documents grouped differently by two detection
// phases. Conflicts are never auto-resolved; they are surfaced for external
// review instead of being silently merged.
type Conflict struct {
	DocA   string    `json:"doc_a"`
	DocB   string    `json:"doc_b"`
	PhaseA GroupType `json:"phase_a"`
	PhaseB GroupType `json:"phase_b"`
	Detail string    `json:"detail"`
}
