package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchestrator_Export_ReemitsArtifacts(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	archive := filepath.Join(root, "district-archive")
	require.NoError(t, os.MkdirAll(archive, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(archive, "memo.txt"), []byte(memoText), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(archive, "slips.txt"), []byte(routingText), 0o644))

	store := newIngestStore(t)
	orch := newTestOrchestrator(t, store, 1, "")

	docs, err := DiscoverDir(archive, "test")
	require.NoError(t, err)
	run, err := orch.Run(ctx, docs)
	require.NoError(t, err)
	require.Equal(t, 2, run.Created)

	// Re-emit through a second orchestrator into a fresh output directory,
	// the way the export command regenerates artifacts after the fact.
	outDir := t.TempDir()
	exporter := newTestOrchestrator(t, store, 1, outDir)
	report, err := exporter.Export(ctx, root, "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Written)
	assert.Zero(t, report.Failed)

	var memoBody string
	for _, r := range run.Results {
		b, err := os.ReadFile(filepath.Join(outDir, r.CanonicalID+".md"))
		require.NoError(t, err)
		assert.Contains(t, string(b), "canonical_id: "+r.CanonicalID)
		if filepath.Base(r.FilePath) == "memo.txt" {
			memoBody = string(b)
		}
	}
	assert.Contains(t, memoBody, "Subject: Transfer schedule")
	assert.Contains(t, memoBody, "primary_source: district-archive/memo.txt")
}

func TestOrchestrator_Export_MissingSourceFileContinues(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	archive := filepath.Join(root, "district-archive")
	require.NoError(t, os.MkdirAll(archive, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(archive, "memo.txt"), []byte(memoText), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(archive, "slips.txt"), []byte(routingText), 0o644))

	store := newIngestStore(t)
	orch := newTestOrchestrator(t, store, 1, "")

	docs, err := DiscoverDir(archive, "test")
	require.NoError(t, err)
	run, err := orch.Run(ctx, docs)
	require.NoError(t, err)
	require.Equal(t, 2, run.Created)

	require.NoError(t, os.Remove(filepath.Join(archive, "slips.txt")))

	outDir := t.TempDir()
	exporter := newTestOrchestrator(t, store, 1, outDir)
	report, err := exporter.Export(ctx, root, "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "district-archive/slips.txt", report.Failures[0].Path)
	assert.NotEmpty(t, report.Failures[0].Error)
}

func TestOrchestrator_Export_RequiresWriter(t *testing.T) {
	store := newIngestStore(t)
	orch := newTestOrchestrator(t, store, 1, "")

	_, err := orch.Export(context.Background(), t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact writer")
}
