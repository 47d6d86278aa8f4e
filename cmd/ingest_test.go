package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

func TestPrintIngestReport(t *testing.T) {
	started := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	r := &model.IngestReport{
		Collection: "district-a",
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Total:      12,
		Created:    8,
		Attached:   3,
		Reassigned: 1,
		Failed:     1,
		Failures: []model.IngestResult{
			{
				FilePath:  "district-a/box14/torn_page.pdf",
				Outcome:   model.OutcomeFailed,
				Error:     "extract: pdftotext exited with status 1",
				ErrorType: "permanent",
			},
		},
	}

	var buf bytes.Buffer
	printIngestReport(&buf, r)

	output := buf.String()
	assert.Contains(t, output, "12 documents")
	assert.Contains(t, output, "district-a")
	assert.Contains(t, output, "1m30s")
	assert.Contains(t, output, "created:")
	assert.Contains(t, output, "8")
	assert.Contains(t, output, "FILE")
	assert.Contains(t, output, "district-a/box14/torn_page.pdf")
	assert.Contains(t, output, "permanent")
	assert.Contains(t, output, "pdftotext exited")
}

func TestPrintIngestReport_NoFailures(t *testing.T) {
	r := &model.IngestReport{
		Collection: "district-a",
		Total:      3,
		Created:    3,
	}

	var buf bytes.Buffer
	printIngestReport(&buf, r)

	output := buf.String()
	assert.Contains(t, output, "3 documents")
	// No failure table when everything succeeded.
	assert.NotContains(t, output, "ERROR")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "this is...", truncate("this is far too long", 10))
}
