// Package detector finds duplicate documents across four independent
// dimensions of sameness: byte-identical content, near-identical text after
// OCR noise, same logical message under a different scan, and partial page
// reuse between otherwise different documents. The phases stay separate so
// every grouping decision remains explainable.
package detector

import (
	"sort"

	"github.com/bobmatnyc/dedup-cli/internal/config"
	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// Default phase parameters, applied for zero config values.
const (
	defaultFuzzyThreshold     = 0.90
	defaultMetadataConfidence = 0.95
	defaultOverlapMin         = 0.10
	defaultOverlapMax         = 0.90
	defaultAlignPrefixBytes   = 4096
	defaultBucketCutover      = 2000
)

// Detector runs the four duplicate-detection phases over a batch of
// fingerprinted documents. It is stateless and safe for concurrent use.
type Detector struct {
	cfg config.DetectorConfig
}

// New returns a Detector with defaults filled in for unset config values.
func New(cfg config.DetectorConfig) *Detector {
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = defaultFuzzyThreshold
	}
	if cfg.MetadataConfidence <= 0 {
		cfg.MetadataConfidence = defaultMetadataConfidence
	}
	if cfg.OverlapMin <= 0 {
		cfg.OverlapMin = defaultOverlapMin
	}
	if cfg.OverlapMax <= 0 {
		cfg.OverlapMax = defaultOverlapMax
	}
	if cfg.AlignPrefixBytes <= 0 {
		cfg.AlignPrefixBytes = defaultAlignPrefixBytes
	}
	if cfg.BucketCutover <= 0 {
		cfg.BucketCutover = defaultBucketCutover
	}
	return &Detector{cfg: cfg}
}

// Detect runs every phase and reconciles their outputs into a single group
// list plus the cross-phase conflicts that need external review.
func (d *Detector) Detect(docs []model.Document) ([]model.DuplicateGroup, []model.Conflict) {
	exact := d.DetectExact(docs)

	grouped := make(map[string]bool)
	for _, g := range exact {
		for _, id := range g.Docs {
			grouped[id] = true
		}
	}
	remaining := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		if !grouped[doc.ID] {
			remaining = append(remaining, doc)
		}
	}

	fuzzy := d.DetectFuzzy(remaining)
	meta := d.DetectMetadata(docs)
	partial := d.DetectPartial(docs)

	return d.reconcile(exact, fuzzy, meta, partial)
}

// sortGroups orders groups deterministically: by type, then by first member.
func sortGroups(groups []model.DuplicateGroup) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Type != groups[j].Type {
			return groups[i].Type < groups[j].Type
		}
		if len(groups[i].Docs) == 0 || len(groups[j].Docs) == 0 {
			return len(groups[i].Docs) > len(groups[j].Docs)
		}
		return groups[i].Docs[0] < groups[j].Docs[0]
	})
}
