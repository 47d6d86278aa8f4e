package detector

import (
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"github.com/bobmatnyc/dedup-cli/internal/fingerprint"
	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// DetectFuzzy finds near-duplicate pairs among documents not already grouped
// exactly. Pair similarity is the maximum of the simhash score and an
// alignment ratio over a bounded text prefix; pairs at or above the
// configured threshold are merged into groups. Beyond the bucket cutover,
// candidate pairs are restricted to documents sharing a simhash band so the
// phase stays tractable on large corpora.
func (d *Detector) DetectFuzzy(docs []model.Document) []model.DuplicateGroup {
	candidates := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Fingerprint == nil || doc.Fingerprint.Empty {
			continue
		}
		candidates = append(candidates, doc)
	}
	if len(candidates) < 2 {
		return nil
	}

	uf := newUnionFind(len(candidates))
	pairScore := make(map[string]float64)

	for _, pair := range d.candidatePairs(candidates) {
		a, b := &candidates[pair[0]], &candidates[pair[1]]
		score := d.pairSimilarity(a, b)
		if score < d.cfg.FuzzyThreshold {
			continue
		}
		uf.union(pair[0], pair[1])
		pairScore[model.PairKey(a.ID, b.ID)] = score
	}

	members := make(map[int][]int)
	for i := range candidates {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	var groups []model.DuplicateGroup
	for _, idxs := range members {
		if len(idxs) < 2 {
			continue
		}
		ids := make([]string, 0, len(idxs))
		for _, i := range idxs {
			ids = append(ids, candidates[i].ID)
		}

		// The weakest qualifying pair is the group's reported similarity.
		minScore := 1.0
		pairs := 0
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if s, ok := pairScore[model.PairKey(ids[i], ids[j])]; ok {
					pairs++
					if s < minScore {
						minScore = s
					}
				}
			}
		}

		g := model.NewDuplicateGroup(model.GroupFuzzy, ids, minScore, "simhash+alignment")
		g.Metadata["matched_pairs"] = strconv.Itoa(pairs)
		groups = append(groups, g)
	}

	sortGroups(groups)
	return groups
}

// pairSimilarity scores one candidate pair as the better of the two signals:
// fuzzy-hash distance and character alignment over a bounded prefix. The
// alignment ratio rescues short documents, where a handful of changed tokens
// moves many simhash bits.
func (d *Detector) pairSimilarity(a, b *model.Document) float64 {
	var simScore float64
	va, errA := fingerprint.ParseSimHash(a.Fingerprint.SimHash)
	vb, errB := fingerprint.ParseSimHash(b.Fingerprint.SimHash)
	if errA == nil && errB == nil {
		simScore = fingerprint.SimHashSimilarity(va, vb)
	}

	prefixA := fingerprint.Normalize(boundedPrefix(a.Text, d.cfg.AlignPrefixBytes))
	prefixB := fingerprint.Normalize(boundedPrefix(b.Text, d.cfg.AlignPrefixBytes))
	var alignScore float64
	if prefixA != "" && prefixB != "" {
		alignScore = levenshtein.Similarity(prefixA, prefixB, levenshtein.NewParams())
	}

	if alignScore > simScore {
		return alignScore
	}
	return simScore
}

// boundedPrefix cuts s at limit bytes without splitting a rune.
func boundedPrefix(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// candidatePairs returns index pairs to score. Small batches compare all
// pairs; large batches only compare documents sharing a simhash band, which
// keeps every pair within Hamming distance 3 reachable.
func (d *Detector) candidatePairs(docs []model.Document) [][2]int {
	if len(docs) <= d.cfg.BucketCutover {
		pairs := make([][2]int, 0, len(docs)*(len(docs)-1)/2)
		for i := 0; i < len(docs); i++ {
			for j := i + 1; j < len(docs); j++ {
				pairs = append(pairs, [2]int{i, j})
			}
		}
		return pairs
	}

	buckets := make(map[string][]int)
	for i, doc := range docs {
		v, err := fingerprint.ParseSimHash(doc.Fingerprint.SimHash)
		if err != nil {
			continue
		}
		for _, key := range fingerprint.BandKeys(v) {
			buckets[key] = append(buckets[key], i)
		}
	}

	seen := make(map[string]bool)
	var pairs [][2]int
	for _, idxs := range buckets {
		for i := 0; i < len(idxs); i++ {
			for j := i + 1; j < len(idxs); j++ {
				a, b := idxs[i], idxs[j]
				key := fmt.Sprintf("%d:%d", a, b)
				if seen[key] {
					continue
				}
				seen[key] = true
				pairs = append(pairs, [2]int{a, b})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

// unionFind is a plain disjoint-set over document indices.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
