package detector

import (
	"fmt"
	"sort"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// reconcile merges the four phase outputs into one report. A relationship
// already settled by a stronger phase is folded into that phase's group
// rather than reported twice; a relationship the phases disagree on becomes
// a flagged conflict, never a silent merge.
//
// Precedence: exact subsumes everything. A partial-overlap pair inside a
// fuzzy group becomes page-range evidence on that group. A metadata group
// whose members span two different fuzzy groups is a conflict: the fuzzy
// phase says the texts are different documents, the metadata phase says
// they are the same message.
func (d *Detector) reconcile(exact, fuzzy, meta, partial []model.DuplicateGroup) ([]model.DuplicateGroup, []model.Conflict) {
	exactOf := memberIndex(exact)
	fuzzyOf := memberIndex(fuzzy)

	var keptPartial []model.DuplicateGroup
	for _, g := range partial {
		a, b := g.Docs[0], g.Docs[1]
		if _, ok := sameGroup(exactOf, a, b); ok {
			continue
		}
		if fi, ok := sameGroup(fuzzyOf, a, b); ok {
			foldOverlap(&fuzzy[fi], g)
			continue
		}
		keptPartial = append(keptPartial, g)
	}

	var conflicts []model.Conflict
	var keptMeta []model.DuplicateGroup
	for _, g := range meta {
		byFuzzyGroup := make(map[int][]string)
		for _, id := range g.Docs {
			if fi, ok := fuzzyOf[id]; ok {
				byFuzzyGroup[fi] = append(byFuzzyGroup[fi], id)
			}
		}
		if len(byFuzzyGroup) >= 2 {
			conflicts = append(conflicts, crossingConflicts(g, byFuzzyGroup)...)
			continue
		}
		if coveredBy(exactOf, g.Docs) || coveredBy(fuzzyOf, g.Docs) {
			continue
		}
		keptMeta = append(keptMeta, g)
	}

	out := make([]model.DuplicateGroup, 0, len(exact)+len(fuzzy)+len(keptMeta)+len(keptPartial))
	out = append(out, exact...)
	out = append(out, fuzzy...)
	out = append(out, keptMeta...)
	out = append(out, keptPartial...)
	sortGroups(out)

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].DocA != conflicts[j].DocA {
			return conflicts[i].DocA < conflicts[j].DocA
		}
		return conflicts[i].DocB < conflicts[j].DocB
	})
	return out, conflicts
}

// memberIndex maps each document ID to the index of the group containing it.
func memberIndex(groups []model.DuplicateGroup) map[string]int {
	idx := make(map[string]int)
	for i, g := range groups {
		for _, id := range g.Docs {
			idx[id] = i
		}
	}
	return idx
}

// sameGroup reports the group both documents share, if any.
func sameGroup(idx map[string]int, a, b string) (int, bool) {
	ia, oka := idx[a]
	ib, okb := idx[b]
	if oka && okb && ia == ib {
		return ia, true
	}
	return 0, false
}

// coveredBy reports whether every document sits in one single group.
func coveredBy(idx map[string]int, ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	first, ok := idx[ids[0]]
	if !ok {
		return false
	}
	for _, id := range ids[1:] {
		gi, ok := idx[id]
		if !ok || gi != first {
			return false
		}
	}
	return true
}

// foldOverlap attaches a partial pair's page-range evidence to the fuzzy
// group that already covers the pair.
func foldOverlap(target *model.DuplicateGroup, partial model.DuplicateGroup) {
	a, b := partial.Docs[0], partial.Docs[1]
	key := fmt.Sprintf("page_overlap:%s+%s", a, b)
	target.Metadata[key] = fmt.Sprintf("%s / %s (%s pages shared)",
		partial.Metadata["pages_"+a], partial.Metadata["pages_"+b], partial.Metadata["shared_pages"])
}

// crossingConflicts emits one conflict per pair of metadata-matched
// documents that fuzzy matching placed in different groups.
func crossingConflicts(g model.DuplicateGroup, byFuzzyGroup map[int][]string) []model.Conflict {
	groupIDs := make([]int, 0, len(byFuzzyGroup))
	for fi := range byFuzzyGroup {
		groupIDs = append(groupIDs, fi)
	}
	sort.Ints(groupIDs)

	var conflicts []model.Conflict
	for i := 0; i < len(groupIDs); i++ {
		for j := i + 1; j < len(groupIDs); j++ {
			for _, docA := range byFuzzyGroup[groupIDs[i]] {
				for _, docB := range byFuzzyGroup[groupIDs[j]] {
					a, b := docA, docB
					if b < a {
						a, b = b, a
					}
					conflicts = append(conflicts, model.Conflict{
						DocA:   a,
						DocB:   b,
						PhaseA: model.GroupFuzzy,
						PhaseB: model.GroupMetadata,
						Detail: fmt.Sprintf("metadata signature %q matches documents that fuzzy matching split", g.Metadata["signature"]),
					})
				}
			}
		}
	}
	return conflicts
}
