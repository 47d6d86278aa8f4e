package ingest

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bobmatnyc/dedup-cli/internal/model"
	"github.com/bobmatnyc/dedup-cli/internal/registry"
)

// Export re-emits the canonical artifact for every live canonical document.
// The registry stores no document text, so each body is re-extracted from
// the primary source file, located by joining sourceRoot with the stored
// archive-relative path. Per-document failures are recorded and the pass
// continues.
func (o *Orchestrator) Export(ctx context.Context, sourceRoot, collection string) (*model.ExportReport, error) {
	if o.artifacts == nil {
		return nil, eris.New("ingest: export requires an artifact writer")
	}

	report := &model.ExportReport{StartedAt: time.Now().UTC()}

	canon, err := o.store.ListCanonical(ctx, registry.Filter{Collection: collection})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list canonical")
	}
	report.Total = len(canon)

	for i := range canon {
		doc := &canon[i]
		if err := o.exportOne(ctx, sourceRoot, doc); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, model.ExportFailure{
				CanonicalID: doc.CanonicalID,
				Path:        doc.PrimarySource,
				Error:       err.Error(),
			})
			zap.L().Warn("artifact export failed",
				zap.String("canonical_id", doc.CanonicalID),
				zap.String("path", doc.PrimarySource),
				zap.Error(err))
			continue
		}
		report.Written++
	}

	report.FinishedAt = time.Now().UTC()
	zap.L().Info("export complete",
		zap.String("collection", collection),
		zap.Int("total", report.Total),
		zap.Int("written", report.Written),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (o *Orchestrator) exportOne(ctx context.Context, sourceRoot string, doc *model.CanonicalDocument) error {
	path := filepath.Join(sourceRoot, filepath.FromSlash(doc.PrimarySource))
	res, err := o.extractor.Extract(ctx, path)
	if err != nil {
		return eris.Wrap(err, "extract primary source")
	}

	sources, err := o.store.ListSources(ctx, doc.CanonicalID)
	if err != nil {
		return eris.Wrap(err, "list sources")
	}

	if _, err := o.artifacts.Write(doc, sources, res.Text); err != nil {
		return eris.Wrap(err, "write artifact")
	}
	return nil
}
