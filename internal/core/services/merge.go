package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driving"
	"github.com/mcslab/transbatch-cli/internal/logger"
)

// Ensure MergeService implements the interface.
var _ driving.Merger = (*MergeService)(nil)

// MergeService joins the per-field result streams on their key
// intersection and writes the merged dataset as JSONL.
type MergeService struct {
	reconcile  *ReconcileService
	fields     []string
	constants  map[string]string
	outputPath string
}

// NewMergeService creates a merge service. fields gives the output
// field order; a field listed in constants is written with its fixed
// value instead of being read from a result stream.
func NewMergeService(resultsDir string, fields []string, constants map[string]string, outputPath string) *MergeService {
	var streamFields []string
	for _, f := range fields {
		if _, ok := constants[f]; !ok {
			streamFields = append(streamFields, f)
		}
	}
	return &MergeService{
		reconcile:  NewReconcileService(resultsDir, streamFields),
		fields:     fields,
		constants:  constants,
		outputPath: outputPath,
	}
}

// Merge builds the merged records and writes them to the configured
// output path, one JSON object per line in ascending key order.
func (s *MergeService) Merge(ctx context.Context) (*driving.MergeResult, error) {
	streams, sources, err := s.reconcile.loadStreams(ctx)
	if err != nil {
		return nil, err
	}
	report := BuildMismatchReport(streams, sources, s.reconcile.fields)

	records := BuildMergedRecords(streams, s.fields, s.constants)
	if len(records) == 0 {
		return nil, fmt.Errorf("merge: %w", domain.ErrEmptyIntersection)
	}

	if err := WriteMergedJSONL(s.outputPath, records); err != nil {
		return nil, err
	}
	logger.Info("Wrote %d merged records to %s", len(records), s.outputPath)

	return &driving.MergeResult{
		OutputPath: s.outputPath,
		Records:    len(records),
		Report:     report,
	}, nil
}

// BuildMergedRecords produces one record per intersection key, in
// ascending key order, with fields laid out in the given order.
// Constant fields take their fixed value; stream fields take the
// payload extracted for that key.
func BuildMergedRecords(streams map[string]*domain.FieldStream, fields []string, constants map[string]string) []domain.MergedRecord {
	intersection := domain.IntersectKeys(streams)

	records := make([]domain.MergedRecord, 0, len(intersection))
	for _, key := range intersection {
		rec := domain.MergedRecord{Key: key}
		for _, f := range fields {
			if v, ok := constants[f]; ok {
				rec.Fields = append(rec.Fields, domain.FieldValue{Name: f, Value: v})
				continue
			}
			text, _ := streams[f].Get(key)
			rec.Fields = append(rec.Fields, domain.FieldValue{Name: f, Value: text})
		}
		records = append(records, rec)
	}
	return records
}

// WriteMergedJSONL writes records to path, one object per line. The
// parent directory is created if needed; output is byte-identical
// across runs for the same records.
func WriteMergedJSONL(path string, records []domain.MergedRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create merged file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", rec.Key, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write record %d: %w", rec.Key, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write record %d: %w", rec.Key, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush merged file: %w", err)
	}
	return nil
}
