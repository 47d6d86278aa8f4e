package detector

import (
	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// DetectExact groups documents by content hash, falling back to file hash
// for documents without one. Similarity is 1.0 by definition; grouping is a
// single hash-map pass.
func (d *Detector) DetectExact(docs []model.Document) []model.DuplicateGroup {
	byContent := make(map[string][]string)
	byFile := make(map[string][]string)
	for _, doc := range docs {
		if doc.Fingerprint == nil {
			continue
		}
		switch {
		case doc.Fingerprint.ContentHash != "":
			byContent[doc.Fingerprint.ContentHash] = append(byContent[doc.Fingerprint.ContentHash], doc.ID)
		case doc.Fingerprint.FileHash != "":
			byFile[doc.Fingerprint.FileHash] = append(byFile[doc.Fingerprint.FileHash], doc.ID)
		}
	}

	var groups []model.DuplicateGroup
	for hash, ids := range byContent {
		if len(ids) < 2 {
			continue
		}
		g := model.NewDuplicateGroup(model.GroupExact, ids, 1.0, "content_hash")
		g.Metadata["hash"] = hash
		groups = append(groups, g)
	}
	for hash, ids := range byFile {
		if len(ids) < 2 {
			continue
		}
		g := model.NewDuplicateGroup(model.GroupExact, ids, 1.0, "file_hash")
		g.Metadata["hash"] = hash
		groups = append(groups, g)
	}

	sortGroups(groups)
	return groups
}
