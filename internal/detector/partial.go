package detector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// DetectPartial finds pairs of documents sharing some but not all pages. A
// pair qualifies only when the shared-page proportion of at least one side
// falls strictly inside the configured band: near-total overlaps belong to
// phases 1-2 and near-zero overlaps are not meaningfully related. Documents
// without page hashes are skipped, not failed.
func (d *Detector) DetectPartial(docs []model.Document) []model.DuplicateGroup {
	paged := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Fingerprint != nil && len(doc.Fingerprint.PageHashes) > 0 {
			paged = append(paged, doc)
		}
	}

	var groups []model.DuplicateGroup
	for i := 0; i < len(paged); i++ {
		for j := i + 1; j < len(paged); j++ {
			if g, ok := d.pageOverlap(&paged[i], &paged[j]); ok {
				groups = append(groups, g)
			}
		}
	}

	sortGroups(groups)
	return groups
}

// pageOverlap evaluates one pair of paged documents.
func (d *Detector) pageOverlap(a, b *model.Document) (model.DuplicateGroup, bool) {
	hashesB := make(map[string]bool, len(b.Fingerprint.PageHashes))
	for _, h := range b.Fingerprint.PageHashes {
		hashesB[h] = true
	}

	shared := make(map[string]bool)
	for _, h := range a.Fingerprint.PageHashes {
		if hashesB[h] {
			shared[h] = true
		}
	}
	if len(shared) == 0 {
		return model.DuplicateGroup{}, false
	}

	ratioA := float64(len(shared)) / float64(len(a.Fingerprint.PageHashes))
	ratioB := float64(len(shared)) / float64(len(b.Fingerprint.PageHashes))
	if !d.insideBand(ratioA) && !d.insideBand(ratioB) {
		return model.DuplicateGroup{}, false
	}

	similarity := ratioA
	if ratioB > similarity {
		similarity = ratioB
	}

	g := model.NewDuplicateGroup(model.GroupPartial, []string{a.ID, b.ID}, similarity, "page_overlap")
	g.Metadata["shared_pages"] = fmt.Sprintf("%d", len(shared))
	g.Metadata["overlap_"+a.ID] = fmt.Sprintf("%.2f", ratioA)
	g.Metadata["overlap_"+b.ID] = fmt.Sprintf("%.2f", ratioB)
	g.Metadata["pages_"+a.ID] = CompressPageRange(sharedPages(a.Fingerprint.PageHashes, shared))
	g.Metadata["pages_"+b.ID] = CompressPageRange(sharedPages(b.Fingerprint.PageHashes, shared))
	return g, true
}

func (d *Detector) insideBand(ratio float64) bool {
	return ratio > d.cfg.OverlapMin && ratio < d.cfg.OverlapMax
}

// sharedPages returns the page numbers whose hash is in the shared set.
func sharedPages(pageHashes map[int]string, shared map[string]bool) []int {
	var pages []int
	for page, h := range pageHashes {
		if shared[h] {
			pages = append(pages, page)
		}
	}
	return pages
}

// CompressPageRange renders page numbers compactly: consecutive runs
// collapse to "start-end", isolated pages stand alone, comma-separated.
// [1 2 3 5 6 8] becomes "1-3, 5-6, 8".
func CompressPageRange(pages []int) string {
	if len(pages) == 0 {
		return ""
	}
	sorted := append([]int(nil), pages...)
	sort.Ints(sorted)

	var b strings.Builder
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		if start == prev {
			fmt.Fprintf(&b, "%d", start)
		} else {
			fmt.Fprintf(&b, "%d-%d", start, prev)
		}
	}
	for _, p := range sorted[1:] {
		if p == prev {
			continue
		}
		if p == prev+1 {
			prev = p
			continue
		}
		flush()
		start, prev = p, p
	}
	flush()
	return b.String()
}
