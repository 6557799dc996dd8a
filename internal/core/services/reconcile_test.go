package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
)

func streamWithKeys(t *testing.T, field string, keys ...int) *domain.FieldStream {
	t.Helper()
	s := domain.NewFieldStream(field)
	for _, k := range keys {
		s.Put(k, "payload")
	}
	return s
}

func TestBuildMismatchReport(t *testing.T) {
	streams := map[string]*domain.FieldStream{
		"instruction": streamWithKeys(t, "instruction", 0, 1, 2, 3, 7),
		"output":      streamWithKeys(t, "output", 0, 1, 2, 5),
	}

	report := BuildMismatchReport(streams, nil, []string{"instruction", "output"})

	assert.Equal(t, 3, report.IntersectionSize)
	assert.Equal(t, []string{"instruction", "output"}, report.FieldNames())

	instr := report.Fields[0]
	assert.Equal(t, 5, instr.TotalKeys)
	assert.Equal(t, 2, instr.OnlyInCount)
	assert.Equal(t, []domain.Range{{Start: 3, End: 3}, {Start: 7, End: 7}}, instr.OnlyIn)
	assert.Equal(t, 0, instr.Coverage.Min)
	assert.Equal(t, 7, instr.Coverage.Max)
	assert.Equal(t, 3, instr.Coverage.MissingCount)

	out := report.Fields[1]
	assert.Equal(t, 1, out.OnlyInCount)
	assert.Equal(t, []domain.Range{{Start: 5, End: 5}}, out.OnlyIn)

	assert.Equal(t, 3, report.TotalMismatches)
}

func TestBuildMismatchReport_IdenticalStreams(t *testing.T) {
	streams := map[string]*domain.FieldStream{
		"instruction": streamWithKeys(t, "instruction", 1, 2, 3),
		"output":      streamWithKeys(t, "output", 1, 2, 3),
	}

	report := BuildMismatchReport(streams, nil, []string{"instruction", "output"})

	assert.Equal(t, 3, report.IntersectionSize)
	assert.Zero(t, report.TotalMismatches)
	for _, f := range report.Fields {
		assert.Empty(t, f.OnlyIn)
	}
}

func TestBuildMismatchReport_EmptyStream(t *testing.T) {
	streams := map[string]*domain.FieldStream{
		"instruction": streamWithKeys(t, "instruction", 1, 2),
		"output":      domain.NewFieldStream("output"),
	}

	report := BuildMismatchReport(streams, nil, []string{"instruction", "output"})

	assert.Zero(t, report.IntersectionSize)
	assert.Equal(t, 2, report.TotalMismatches)
}

func TestReconcileService(t *testing.T) {
	resultsDir := t.TempDir()

	instrDir := filepath.Join(resultsDir, "instruction")
	require.NoError(t, os.MkdirAll(instrDir, 0o755))
	writeResultsFile(t, instrDir, "results_batch_1.jsonl",
		anthropicLine("ds_instruction_line_0", "hidayat"),
		anthropicLine("ds_instruction_line_1", "aur hidayat"),
	)

	outDir := filepath.Join(resultsDir, "output")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	writeResultsFile(t, outDir, "results_batch_1.jsonl",
		anthropicLine("ds_output_line_0", "jawab"),
	)

	svc := NewReconcileService(resultsDir, []string{"instruction", "output"})
	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.IntersectionSize)
	assert.Equal(t, 1, report.TotalMismatches)
	require.Len(t, report.Fields, 2)
	assert.Equal(t, []string{"results_batch_1.jsonl"}, report.Fields[0].SourceFiles)
}

func TestReconcileService_NoFields(t *testing.T) {
	svc := NewReconcileService(t.TempDir(), nil)
	_, err := svc.Reconcile(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
