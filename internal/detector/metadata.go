package detector

import (
	"regexp"
	"sort"
	"strings"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

var (
	replyPrefixRe = regexp.MustCompile(`(?i)^(re|fw|fwd)\s*:\s*`)
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
)

// MetadataSignature builds the normalized signature used for structured-field
// matching:
//  1. Sender lower-cased and trimmed
//  2. Recipients lower-cased, trimmed, sorted into a set
//  3. Date trimmed as-is
//  4. Subject with reply/forward prefixes stripped, lower-cased, whitespace
//     collapsed
//
// Two documents with the same signature are the same logical message even
// when their OCR text differs materially.
func MetadataSignature(m model.DocumentMetadata) string {
	sender := strings.ToLower(strings.TrimSpace(m.Sender))

	recipients := make([]string, 0, len(m.Recipients))
	for _, r := range m.Recipients {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			recipients = append(recipients, r)
		}
	}
	sort.Strings(recipients)

	date := strings.TrimSpace(m.Date)

	return strings.Join([]string{
		sender,
		strings.Join(recipients, ";"),
		date,
		normalizeSubject(m.Subject),
	}, "|")
}

// normalizeSubject strips reply/forward prefixes (repeatedly, for chains
// like "Re: Fwd: Re:"), lower-cases, and collapses whitespace.
func normalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		stripped := replyPrefixRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = strings.ToLower(s)
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// DetectMetadata groups documents sharing an identical metadata signature.
// Only documents with parsed header fields participate. Similarity is the
// configured metadata-match confidence, not computed per pair.
func (d *Detector) DetectMetadata(docs []model.Document) []model.DuplicateGroup {
	bySignature := make(map[string][]string)
	for _, doc := range docs {
		if !doc.Metadata.HasHeaderFields() {
			continue
		}
		sig := MetadataSignature(doc.Metadata)
		bySignature[sig] = append(bySignature[sig], doc.ID)
	}

	var groups []model.DuplicateGroup
	for sig, ids := range bySignature {
		if len(ids) < 2 {
			continue
		}
		g := model.NewDuplicateGroup(model.GroupMetadata, ids, d.cfg.MetadataConfidence, "metadata_signature")
		g.Metadata["signature"] = sig
		groups = append(groups, g)
	}

	sortGroups(groups)
	return groups
}
