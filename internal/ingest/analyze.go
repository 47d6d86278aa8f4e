package ingest

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bobmatnyc/dedup-cli/internal/detector"
	"github.com/bobmatnyc/dedup-cli/internal/model"
	"github.com/bobmatnyc/dedup-cli/internal/registry"
)

// prepareAll runs the per-document preparation stages concurrently and
// returns results in input order.
func (o *Orchestrator) prepareAll(ctx context.Context, docs []model.Document) []prepared {
	workers := o.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := make([]prepared, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			out[i] = o.prepare(gctx, doc)
			return nil
		})
	}
	_ = g.Wait() // workers never error; per-document failures ride in prepared.err
	return out
}

// Analyze runs duplicate detection over a batch without touching canonical
// state. Groups are reported per phase; cross-phase conflicts are flagged in
// the operation log so they reach review instead of being silently merged.
func (o *Orchestrator) Analyze(ctx context.Context, docs []model.Document, det *detector.Detector) (*model.AnalysisReport, error) {
	report := &model.AnalysisReport{
		StartedAt:   time.Now().UTC(),
		PhaseCounts: map[model.GroupType]int{},
	}

	ready := make([]model.Document, 0, len(docs))
	for _, p := range o.prepareAll(ctx, docs) {
		if p.err != nil {
			zap.L().Warn("document skipped",
				zap.String("file", p.doc.FilePath),
				zap.Error(p.err))
			continue
		}
		ready = append(ready, p.doc)
	}
	report.Documents = len(ready)

	if err := o.detect(ctx, ready, det, report); err != nil {
		return report, err
	}

	report.FinishedAt = time.Now().UTC()
	zap.L().Info("analysis complete",
		zap.Int("documents", report.Documents),
		zap.Int("groups", len(report.Groups)),
		zap.Int("conflicts", len(report.Conflicts)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// AnalyzeCorpus runs duplicate detection across every live canonical document
// in the registry. Stored fingerprints and metadata drive all four phases;
// extracted text is not persisted, so fuzzy scoring rests on the simhash
// rather than edit distance.
func (o *Orchestrator) AnalyzeCorpus(ctx context.Context, collection string, det *detector.Detector) (*model.AnalysisReport, error) {
	report := &model.AnalysisReport{
		StartedAt:   time.Now().UTC(),
		PhaseCounts: map[model.GroupType]int{},
	}

	canon, err := o.store.ListCanonical(ctx, registry.Filter{Collection: collection})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list canonical")
	}

	docs := make([]model.Document, 0, len(canon))
	for _, c := range canon {
		pages, err := o.store.PageHashes(ctx, c.CanonicalID)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: page hashes for %s", c.CanonicalID)
		}
		docs = append(docs, model.Document{
			ID:        c.CanonicalID,
			FilePath:  c.PrimarySource,
			PageCount: c.PageCount,
			Metadata: model.DocumentMetadata{
				DocumentType: c.DocumentType,
				Title:        c.Title,
				Date:         c.Date,
				Subject:      c.Subject,
				Sender:       c.Sender,
				Recipients:   c.Recipients,
			},
			Fingerprint: &model.Fingerprint{
				FileHash:    c.FileHash,
				ContentHash: c.ContentHash,
				SimHash:     c.SimHash,
				PageHashes:  pages,
			},
			Quality: c.OCRQuality,
		})
	}
	report.Documents = len(docs)

	if err := o.detect(ctx, docs, det, report); err != nil {
		return report, err
	}

	report.FinishedAt = time.Now().UTC()
	zap.L().Info("corpus analysis complete",
		zap.String("collection", collection),
		zap.Int("documents", report.Documents),
		zap.Int("groups", len(report.Groups)),
		zap.Int("conflicts", len(report.Conflicts)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// detect executes the detector over prepared documents, tallies groups per
// phase, and flags every cross-phase conflict in the operation log.
func (o *Orchestrator) detect(ctx context.Context, ready []model.Document, det *detector.Detector, report *model.AnalysisReport) error {
	groups, conflicts := det.Detect(ready)
	report.Groups = groups
	report.Conflicts = conflicts
	for _, g := range groups {
		report.PhaseCounts[g.Type]++
	}

	for _, c := range conflicts {
		entry := &model.OperationLogEntry{
			Operation: model.OpConflict,
			Source:    c.DocA,
			Status:    model.OpStatusFlagged,
			Message:   fmt.Sprintf("detection phases disagree: %s vs %s", c.PhaseA, c.PhaseB),
			Details: map[string]string{
				"doc_a":   c.DocA,
				"doc_b":   c.DocB,
				"phase_a": string(c.PhaseA),
				"phase_b": string(c.PhaseB),
				"detail":  c.Detail,
			},
		}
		if err := o.store.Log(ctx, entry); err != nil {
			return eris.Wrap(err, "ingest: log conflict")
		}
	}
	return nil
}
