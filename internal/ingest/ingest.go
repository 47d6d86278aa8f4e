// Package ingest drives canonicalization runs. Extraction, fingerprinting,
// and quality scoring are pure per-document work and fan out across a bounded
// worker pool; registry writes and artifact emission stay on the collecting
// goroutine so the storage layer sees one writer per run. Each registry
// mutation is a single transaction, so a crash mid-batch never leaves a
// canonical document without its source.
package ingest

import (
	"context"
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bobmatnyc/dedup-cli/internal/artifact"
	"github.com/bobmatnyc/dedup-cli/internal/config"
	"github.com/bobmatnyc/dedup-cli/internal/extract"
	"github.com/bobmatnyc/dedup-cli/internal/fingerprint"
	"github.com/bobmatnyc/dedup-cli/internal/model"
	"github.com/bobmatnyc/dedup-cli/internal/quality"
	"github.com/bobmatnyc/dedup-cli/internal/registry"
	"github.com/bobmatnyc/dedup-cli/internal/resilience"
)

// Orchestrator runs the per-document state machine: fingerprinted, looked
// up, created or attached, ranked, emitted.
type Orchestrator struct {
	cfg       config.IngestConfig
	store     registry.Store
	extractor extract.Extractor
	gen       *fingerprint.Generator
	assessor  *quality.Assessor
	artifacts *artifact.Writer
	retry     resilience.RetryConfig
}

// New assembles an Orchestrator from its collaborators. Registry calls on the
// write path retry briefly when another process holds the storage lock.
func New(
	cfg config.IngestConfig,
	store registry.Store,
	extractor extract.Extractor,
	gen *fingerprint.Generator,
	assessor *quality.Assessor,
	artifacts *artifact.Writer,
) *Orchestrator {
	retry := resilience.StorageRetryConfig()
	retry.OnRetry = resilience.RetryLogger("ingest", "registry write")
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		extractor: extractor,
		gen:       gen,
		assessor:  assessor,
		artifacts: artifacts,
		retry:     retry,
	}
}

// prepared is one document after the parallel stages, ready for the
// single-writer registry stage.
type prepared struct {
	doc        model.Document
	assessment quality.Assessment
	err        error
}

// Run ingests docs into the registry. Per-document failures are recorded and
// the batch continues; a registry error aborts the run, because ingesting
// without durability is not an option. The partial report is returned
// alongside the error.
func (o *Orchestrator) Run(ctx context.Context, docs []model.Document) (*model.IngestReport, error) {
	report := &model.IngestReport{
		Collection: o.cfg.Collection,
		StartedAt:  time.Now().UTC(),
		Total:      len(docs),
	}

	workers := o.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prepCh := make(chan prepared)
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(workers)

	go func() {
		defer close(prepCh)
		for _, doc := range docs {
			doc := doc
			g.Go(func() error {
				p := o.prepare(gctx, doc)
				select {
				case prepCh <- p:
				case <-gctx.Done():
				}
				return nil
			})
		}
		g.Wait() //nolint:errcheck // workers report through prepCh
	}()

	var runErr error
	for p := range prepCh {
		if runErr != nil {
			continue // drain after abort
		}

		result, err := o.register(ctx, p)
		report.Results = append(report.Results, result)

		switch result.Outcome {
		case model.OutcomeCreated:
			report.Created++
		case model.OutcomeAttached:
			report.Attached++
		case model.OutcomeFailed:
			report.Failed++
			report.Failures = append(report.Failures, result)
		}
		if result.Reassigned {
			report.Reassigned++
		}

		if err != nil {
			runErr = err
			cancel()
		}
	}

	report.FinishedAt = time.Now().UTC()

	zap.L().Info("ingestion run complete",
		zap.String("collection", report.Collection),
		zap.Int("total", report.Total),
		zap.Int("created", report.Created),
		zap.Int("attached", report.Attached),
		zap.Int("reassigned", report.Reassigned),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)

	if runErr != nil {
		return report, eris.Wrap(runErr, "ingest: batch aborted")
	}
	return report, nil
}

// prepare runs the parallel stages for one document: read bytes, extract,
// fingerprint, assess. An extraction error is not fatal to the document: the
// file still has a byte identity, so it is fingerprinted against the
// empty-content marker and flagged through completeness. Only an unreadable
// file fails, since without bytes there is no identity at all.
func (o *Orchestrator) prepare(ctx context.Context, doc model.Document) prepared {
	if doc.ID == "" {
		doc.ID = doc.FilePath
	}

	raw, err := os.ReadFile(doc.ID)
	if err != nil {
		return prepared{doc: doc, err: eris.Wrapf(err, "ingest: read %s", doc.ID)}
	}
	doc.FileSize = int64(len(raw))

	res, err := o.extractor.Extract(ctx, doc.ID)
	if err != nil {
		zap.L().Warn("extraction failed, ingesting with empty text",
			zap.String("file", doc.FilePath),
			zap.Error(err))
		res = &extract.Result{}
	}
	doc.Text = res.Text
	doc.PageTexts = res.PageTexts
	doc.PageCount = res.PageCount
	mergeMetadata(&doc.Metadata, res.Metadata)

	doc.Fingerprint = o.gen.Generate(raw, doc.Text, doc.PageTexts)

	assessment := o.assessor.Assess(doc.Text, doc.PageCount)
	doc.Quality = assessment.Score

	return prepared{doc: doc, assessment: assessment}
}

// register is the single-writer stage: look up by content hash, create or
// attach, and emit the artifact when this document's text became (or stayed)
// the primary. A non-nil error is a registry failure and aborts the batch.
func (o *Orchestrator) register(ctx context.Context, p prepared) (model.IngestResult, error) {
	result := model.IngestResult{
		DocID:    p.doc.ID,
		FilePath: p.doc.FilePath,
		Quality:  p.doc.Quality,
	}
	if p.err != nil {
		result.Outcome = model.OutcomeFailed
		result.Error = p.err.Error()
		result.ErrorType = resilience.ClassifyError(p.err)
		zap.L().Warn("document failed", zap.String("file", p.doc.FilePath), zap.Error(p.err))
		return result, nil
	}

	src := sourceFor(p.doc)
	fp := p.doc.Fingerprint

	existing, err := resilience.DoVal(ctx, o.retry, func(ctx context.Context) (*model.CanonicalDocument, error) {
		return o.store.FindByContentHash(ctx, fp.ContentHash)
	})
	if err != nil {
		return failed(result, err), err
	}

	if existing == nil {
		cd := o.buildCanonical(p)
		err := resilience.Do(ctx, o.retry, func(ctx context.Context) error {
			return o.store.InsertCanonical(ctx, cd, &src)
		})
		switch {
		case err == nil:
			result.Outcome = model.OutcomeCreated
			result.CanonicalID = cd.CanonicalID
			o.savePageHashes(ctx, cd.CanonicalID, fp.PageHashes)
			o.emit(ctx, &result, cd.CanonicalID, p.doc.Text)
			return result, nil
		case errors.Is(err, registry.ErrContentHashExists):
			// Lost the create race; another worker registered this content
			// first. Fall through to the attach path.
			existing, err = o.store.FindByContentHash(ctx, fp.ContentHash)
			if err == nil && existing == nil {
				err = eris.New("ingest: content hash vanished after create race")
			}
			if err != nil {
				return failed(result, err), err
			}
		default:
			return failed(result, err), err
		}
	}

	// Content may have been merged away since it was first registered;
	// sources always attach to the surviving canonical.
	target, err := registry.ResolveCanonical(ctx, o.store, existing.CanonicalID)
	if err != nil {
		return failed(result, err), err
	}

	attach, err := resilience.DoVal(ctx, o.retry, func(ctx context.Context) (*registry.AttachResult, error) {
		return o.store.AttachSource(ctx, target.CanonicalID, &src)
	})
	if err != nil {
		return failed(result, err), err
	}

	result.Outcome = model.OutcomeAttached
	result.CanonicalID = target.CanonicalID
	result.Reassigned = attach.Reassigned
	if attach.Reassigned {
		// This document's text is now the primary; page hashes and the
		// artifact body must reflect it.
		o.savePageHashes(ctx, target.CanonicalID, fp.PageHashes)
		o.emit(ctx, &result, target.CanonicalID, p.doc.Text)
	}
	return result, nil
}

func failed(result model.IngestResult, err error) model.IngestResult {
	result.Outcome = model.OutcomeFailed
	result.Error = err.Error()
	result.ErrorType = resilience.ClassifyError(err)
	return result
}

// emit writes the canonical artifact with body as the primary text. The
// registry is the source of truth and artifacts are regenerable, so an emit
// failure is recorded on the result but does not fail the document.
func (o *Orchestrator) emit(ctx context.Context, result *model.IngestResult, canonicalID, body string) {
	if o.artifacts == nil {
		return
	}

	doc, err := o.store.GetCanonical(ctx, canonicalID)
	if err == nil && doc != nil {
		var sources []model.Source
		sources, err = o.store.ListSources(ctx, canonicalID)
		if err == nil {
			_, err = o.artifacts.Write(doc, sources, body)
		}
	}
	if err != nil {
		result.Error = err.Error()
		zap.L().Warn("artifact emit failed",
			zap.String("canonical_id", canonicalID),
			zap.Error(err))
	}
}

func (o *Orchestrator) savePageHashes(ctx context.Context, canonicalID string, hashes map[int]string) {
	if len(hashes) == 0 {
		return
	}
	if err := o.store.SavePageHashes(ctx, canonicalID, hashes); err != nil {
		zap.L().Warn("page hash save failed",
			zap.String("canonical_id", canonicalID),
			zap.Error(err))
	}
}

// buildCanonical shapes the first registration of new content. The registry
// fills selection and timestamp fields transactionally.
func (o *Orchestrator) buildCanonical(p prepared) *model.CanonicalDocument {
	doc := p.doc
	md := doc.Metadata
	fp := doc.Fingerprint

	return &model.CanonicalDocument{
		CanonicalID:   fingerprint.CanonicalID(fp.ContentHash),
		ContentHash:   fp.ContentHash,
		FileHash:      fp.FileHash,
		SimHash:       fp.SimHash,
		DocumentType:  md.DocumentType,
		Title:         md.Title,
		Date:          md.Date,
		Subject:       md.Subject,
		Sender:        md.Sender,
		Recipients:    md.Recipients,
		PageCount:     doc.PageCount,
		OCRQuality:    doc.Quality,
		HasRedactions: p.assessment.HasRedactions,
		Completeness:  p.assessment.Completeness,
	}
}

func sourceFor(doc model.Document) model.Source {
	name := doc.SourceName
	if name == "" {
		name = doc.Collection
	}
	return model.Source{
		SourceName:   name,
		Collection:   doc.Collection,
		FilePath:     doc.FilePath,
		Format:       doc.Format,
		FileHash:     doc.Fingerprint.FileHash,
		FileSize:     doc.FileSize,
		QualityScore: doc.Quality,
		DownloadDate: doc.DownloadDate,
	}
}

// mergeMetadata fills blanks in dst from extracted metadata; fields already
// provided by a manifest win.
func mergeMetadata(dst *model.DocumentMetadata, src model.DocumentMetadata) {
	if dst.DocumentType == "" {
		dst.DocumentType = src.DocumentType
	}
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Date == "" {
		dst.Date = src.Date
	}
	if dst.Subject == "" {
		dst.Subject = src.Subject
	}
	if dst.Sender == "" {
		dst.Sender = src.Sender
	}
	if len(dst.Recipients) == 0 {
		dst.Recipients = src.Recipients
	}
}
