package detector

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmatnyc/dedup-cli/internal/config"
	"github.com/bobmatnyc/dedup-cli/internal/fingerprint"
	"github.com/bobmatnyc/dedup-cli/internal/model"
)

var memoText = strings.Repeat(
	"The records committee convened at ten in the morning to review the pending transfer schedule. "+
		"Each collection was discussed in order of accession and the motions were recorded by the clerk. ", 3)

var manifestText = strings.Repeat(
	"Shipping manifest for the northern warehouse listing crate numbers, declared weights, and customs "+
		"stamps collected at the port of entry during the second week of the quarter. ", 3)

// newTestDetector returns a detector with default thresholds.
func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	return New(config.DetectorConfig{})
}

// makeDoc fingerprints text the same way ingestion does.
func makeDoc(id, text string) model.Document {
	g := fingerprint.NewGenerator(0)
	return model.Document{
		ID:          id,
		FilePath:    id,
		Text:        text,
		Fingerprint: g.Generate([]byte(id), text, nil),
	}
}

// makePagedDoc fingerprints a document from per-page texts.
func makePagedDoc(id string, pages []string) model.Document {
	g := fingerprint.NewGenerator(0)
	return model.Document{
		ID:          id,
		FilePath:    id,
		Text:        strings.Join(pages, "\n"),
		Fingerprint: g.Generate([]byte(id), strings.Join(pages, "\n"), pages),
	}
}

// --- Phase 1: exact ---

func TestDetectExact(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t)

	t.Run("identical content groups at 1.0", func(t *testing.T) {
		t.Parallel()
		docs := []model.Document{
			makeDoc("a.pdf", memoText),
			makeDoc("b.pdf", memoText),
			makeDoc("c.pdf", manifestText),
		}
		groups := d.DetectExact(docs)

		require.Len(t, groups, 1)
		assert.Equal(t, model.GroupExact, groups[0].Type)
		assert.Equal(t, []string{"a.pdf", "b.pdf"}, groups[0].Docs)
		assert.Equal(t, 1.0, groups[0].Similarity)
		assert.Equal(t, "content_hash", groups[0].Method)
		assert.Equal(t, docs[0].Fingerprint.ContentHash, groups[0].Metadata["hash"])
	})

	t.Run("file hash fallback without content hash", func(t *testing.T) {
		t.Parallel()
		docs := []model.Document{
			{ID: "x", Fingerprint: &model.Fingerprint{FileHash: "f1"}},
			{ID: "y", Fingerprint: &model.Fingerprint{FileHash: "f1"}},
			{ID: "z", Fingerprint: &model.Fingerprint{FileHash: "f2"}},
		}
		groups := d.DetectExact(docs)

		require.Len(t, groups, 1)
		assert.Equal(t, "file_hash", groups[0].Method)
		assert.Equal(t, []string{"x", "y"}, groups[0].Docs)
	})

	t.Run("blank documents group with each other only", func(t *testing.T) {
		t.Parallel()
		docs := []model.Document{
			makeDoc("blank1.pdf", ""),
			makeDoc("blank2.pdf", "   "),
			makeDoc("real.pdf", memoText),
		}
		groups := d.DetectExact(docs)

		require.Len(t, groups, 1)
		assert.Equal(t, []string{"blank1.pdf", "blank2.pdf"}, groups[0].Docs)
	})

	t.Run("missing fingerprints are skipped", func(t *testing.T) {
		t.Parallel()
		groups := d.DetectExact([]model.Document{{ID: "n1"}, {ID: "n2"}})
		assert.Empty(t, groups)
	})
}

// --- Phase 2: fuzzy ---

func TestDetectFuzzy(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t)

	t.Run("near-identical text groups", func(t *testing.T) {
		t.Parallel()
		edited := strings.Replace(memoText, "ten in the morning", "ten fifteen in the morning", 1)
		docs := []model.Document{
			makeDoc("orig.pdf", memoText),
			makeDoc("rescan.pdf", edited),
			makeDoc("other.pdf", manifestText),
		}
		groups := d.DetectFuzzy(docs)

		require.Len(t, groups, 1)
		assert.Equal(t, model.GroupFuzzy, groups[0].Type)
		assert.Equal(t, []string{"orig.pdf", "rescan.pdf"}, groups[0].Docs)
		assert.GreaterOrEqual(t, groups[0].Similarity, 0.90)
		assert.Equal(t, "simhash+alignment", groups[0].Method)
	})

	t.Run("alignment rescues short documents", func(t *testing.T) {
		t.Parallel()
		// Short texts flip many simhash bits per changed token; the bounded
		// prefix alignment still sees them as near-identical.
		docs := []model.Document{
			makeDoc("s1", "Meeting notes from the April nineteenth session of the board"),
			makeDoc("s2", "Meeting notes from the April nineteenth session of the board."),
		}
		groups := d.DetectFuzzy(docs)

		require.Len(t, groups, 1)
		assert.GreaterOrEqual(t, groups[0].Similarity, 0.90)
	})

	t.Run("unrelated documents stay apart", func(t *testing.T) {
		t.Parallel()
		docs := []model.Document{
			makeDoc("a", memoText),
			makeDoc("b", manifestText),
		}
		assert.Empty(t, d.DetectFuzzy(docs))
	})

	t.Run("empty documents are skipped", func(t *testing.T) {
		t.Parallel()
		docs := []model.Document{
			makeDoc("e1", ""),
			makeDoc("e2", ""),
			makeDoc("real", memoText),
		}
		assert.Empty(t, d.DetectFuzzy(docs))
	})

	t.Run("bucket restriction still finds close pairs", func(t *testing.T) {
		t.Parallel()
		bucketed := New(config.DetectorConfig{BucketCutover: 1})
		// Identical text shares every simhash band, so the pair survives the
		// switch from all-pairs to per-bucket candidate generation.
		docs := []model.Document{
			makeDoc("orig.pdf", memoText),
			makeDoc("copy.pdf", memoText),
			makeDoc("other.pdf", manifestText),
		}
		groups := bucketed.DetectFuzzy(docs)

		require.Len(t, groups, 1)
		assert.Equal(t, []string{"copy.pdf", "orig.pdf"}, groups[0].Docs)
	})
}

// --- Phase 3: metadata ---

func TestMetadataSignature(t *testing.T) {
	t.Parallel()

	t.Run("reply prefixes and case fold away", func(t *testing.T) {
		t.Parallel()
		a := model.DocumentMetadata{
			Sender:     "J. Castellano",
			Recipients: []string{"Records Division", "Archive Desk"},
			Date:       "1997-03-14",
			Subject:    "Re:  Fwd: Quarterly   transfer",
		}
		b := model.DocumentMetadata{
			Sender:     "j. castellano",
			Recipients: []string{"archive desk", "records division"},
			Date:       "1997-03-14",
			Subject:    "Quarterly transfer",
		}
		assert.Equal(t, MetadataSignature(a), MetadataSignature(b))
	})

	t.Run("different date differs", func(t *testing.T) {
		t.Parallel()
		a := model.DocumentMetadata{Sender: "x", Subject: "s", Date: "1997-03-14"}
		b := model.DocumentMetadata{Sender: "x", Subject: "s", Date: "1997-03-15"}
		assert.NotEqual(t, MetadataSignature(a), MetadataSignature(b))
	})
}

func TestDetectMetadata(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t)

	meta := model.DocumentMetadata{Sender: "Castellano", Subject: "Transfer schedule", Date: "1997-03-14"}
	docs := []model.Document{
		{ID: "scan-a", Metadata: meta},
		{ID: "scan-b", Metadata: model.DocumentMetadata{Sender: "castellano", Subject: "RE: Transfer  schedule", Date: "1997-03-14"}},
		{ID: "unrelated", Metadata: model.DocumentMetadata{Sender: "Webb", Subject: "Other matter", Date: "1997-03-14"}},
		{ID: "no-headers", Metadata: model.DocumentMetadata{Subject: "Transfer schedule"}},
	}

	groups := d.DetectMetadata(docs)

	require.Len(t, groups, 1)
	assert.Equal(t, model.GroupMetadata, groups[0].Type)
	assert.Equal(t, []string{"scan-a", "scan-b"}, groups[0].Docs)
	assert.InDelta(t, 0.95, groups[0].Similarity, 0.0001)
	assert.Equal(t, "metadata_signature", groups[0].Method)
	assert.NotEmpty(t, groups[0].Metadata["signature"])
}

// --- Phase 4: partial overlap ---

// numberedPages builds n distinct page texts, with tag keeping them unique
// across documents.
func numberedPages(tag string, n int) []string {
	pages := make([]string, n)
	for i := range pages {
		pages[i] = fmt.Sprintf("Unique page body %s number %d with enough text to hash distinctly.", tag, i+1)
	}
	return pages
}

func TestDetectPartial(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t)

	t.Run("shared page band is reported with ranges", func(t *testing.T) {
		t.Parallel()
		pagesA := numberedPages("alpha", 10)
		pagesB := numberedPages("beta", 12)
		// Pages 3-7 of each document carry the same content.
		for i := 2; i < 7; i++ {
			pagesB[i] = pagesA[i]
		}
		docs := []model.Document{
			makePagedDoc("ten.pdf", pagesA),
			makePagedDoc("twelve.pdf", pagesB),
		}

		groups := d.DetectPartial(docs)
		require.Len(t, groups, 1)

		g := groups[0]
		assert.Equal(t, model.GroupPartial, g.Type)
		assert.Equal(t, []string{"ten.pdf", "twelve.pdf"}, g.Docs)
		assert.Equal(t, "5", g.Metadata["shared_pages"])
		assert.Equal(t, "3-7", g.Metadata["pages_ten.pdf"])
		assert.Equal(t, "3-7", g.Metadata["pages_twelve.pdf"])
		assert.Equal(t, "0.50", g.Metadata["overlap_ten.pdf"])
		assert.Equal(t, "0.42", g.Metadata["overlap_twelve.pdf"])
		assert.InDelta(t, 0.5, g.Similarity, 0.0001)
	})

	t.Run("near-total overlap on both sides is excluded", func(t *testing.T) {
		t.Parallel()
		pagesA := numberedPages("gamma", 10)
		pagesB := append([]string(nil), pagesA...)
		pagesB[9] = "A single replaced closing page with different text entirely."
		docs := []model.Document{
			makePagedDoc("first.pdf", pagesA),
			makePagedDoc("second.pdf", pagesB),
		}
		// 9 of 10 pages shared: 0.90 on both sides, not strictly inside.
		assert.Empty(t, d.DetectPartial(docs))
	})

	t.Run("near-zero overlap on both sides is excluded", func(t *testing.T) {
		t.Parallel()
		pagesA := numberedPages("delta", 10)
		pagesB := numberedPages("epsilon", 10)
		pagesB[0] = pagesA[0]
		docs := []model.Document{
			makePagedDoc("first.pdf", pagesA),
			makePagedDoc("second.pdf", pagesB),
		}
		// 1 of 10 pages shared: 0.10 on both sides, not strictly inside.
		assert.Empty(t, d.DetectPartial(docs))
	})

	t.Run("full containment qualifies through the larger side", func(t *testing.T) {
		t.Parallel()
		pagesSmall := numberedPages("zeta", 4)
		pagesLarge := numberedPages("eta", 10)
		copy(pagesLarge[3:7], pagesSmall)
		docs := []model.Document{
			makePagedDoc("insert.pdf", pagesSmall),
			makePagedDoc("report.pdf", pagesLarge),
		}

		groups := d.DetectPartial(docs)
		require.Len(t, groups, 1)
		assert.Equal(t, "1-4", groups[0].Metadata["pages_insert.pdf"])
		assert.Equal(t, "4-7", groups[0].Metadata["pages_report.pdf"])
	})

	t.Run("documents without page hashes are skipped", func(t *testing.T) {
		t.Parallel()
		docs := []model.Document{
			makeDoc("flat1.pdf", memoText),
			makePagedDoc("paged.pdf", numberedPages("theta", 6)),
		}
		assert.Empty(t, d.DetectPartial(docs))
	})
}

func TestCompressPageRange(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		pages []int
		want  string
	}{
		{"mixed runs and singles", []int{1, 2, 3, 5, 6, 8}, "1-3, 5-6, 8"},
		{"unsorted input", []int{8, 3, 1, 6, 2, 5}, "1-3, 5-6, 8"},
		{"single page", []int{4}, "4"},
		{"one long run", []int{2, 3, 4, 5}, "2-5"},
		{"duplicates collapse", []int{1, 1, 2, 2, 3}, "1-3"},
		{"empty", nil, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CompressPageRange(tc.pages))
		})
	}
}
