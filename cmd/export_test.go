package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

func TestPrintExportReport(t *testing.T) {
	r := &model.ExportReport{
		Total:   9,
		Written: 8,
		Failed:  1,
		Failures: []model.ExportFailure{
			{
				CanonicalID: "doc-c0ffee0012345678",
				Path:        "district-a/box2/missing.pdf",
				Error:       "open district-a/box2/missing.pdf: no such file or directory",
			},
		},
	}

	var buf bytes.Buffer
	printExportReport(&buf, r)

	output := buf.String()
	assert.Contains(t, output, "8 of 9")
	assert.Contains(t, output, "failed:")
	assert.Contains(t, output, "doc-c0ffee0012345678")
	assert.Contains(t, output, "district-a/box2/missing.pdf")
	assert.Contains(t, output, "no such file")
}

func TestPrintExportReport_Clean(t *testing.T) {
	r := &model.ExportReport{Total: 4, Written: 4}

	var buf bytes.Buffer
	printExportReport(&buf, r)

	output := buf.String()
	assert.Contains(t, output, "4 of 4")
	assert.NotContains(t, output, "CANONICAL ID")
}
