package services

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driving"
	"github.com/mcslab/transbatch-cli/internal/logger"
)

// Ensure ReconcileService implements the interface.
var _ driving.Reconciler = (*ReconcileService)(nil)

// ReconcileService loads every field's result stream and reports how
// their key sets line up.
type ReconcileService struct {
	loader     *StreamLoader
	resultsDir string
	fields     []string
}

// NewReconcileService creates a reconcile service. fields gives the
// configured field order; each field's results live under
// resultsDir/<field>/.
func NewReconcileService(resultsDir string, fields []string) *ReconcileService {
	return &ReconcileService{
		loader:     NewStreamLoader(),
		resultsDir: resultsDir,
		fields:     fields,
	}
}

// Reconcile builds all field streams and compares them.
func (s *ReconcileService) Reconcile(ctx context.Context) (*domain.MismatchReport, error) {
	streams, sources, err := s.loadStreams(ctx)
	if err != nil {
		return nil, err
	}
	return BuildMismatchReport(streams, sources, s.fields), nil
}

// LoadStreams exposes the per-field streams for callers that need the
// payloads as well as the report, such as the merge service.
func (s *ReconcileService) LoadStreams(ctx context.Context) (map[string]*domain.FieldStream, error) {
	streams, _, err := s.loadStreams(ctx)
	return streams, err
}

func (s *ReconcileService) loadStreams(ctx context.Context) (map[string]*domain.FieldStream, map[string][]string, error) {
	if len(s.fields) == 0 {
		return nil, nil, fmt.Errorf("reconcile: %w: no fields configured", domain.ErrInvalidInput)
	}

	streams := make(map[string]*domain.FieldStream, len(s.fields))
	sources := make(map[string][]string, len(s.fields))

	for _, field := range s.fields {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		dir := filepath.Join(s.resultsDir, field)
		paths, err := DiscoverResultFiles(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("discover %s results: %w", field, err)
		}
		if len(paths) == 0 {
			logger.Warn("No result files for field %s in %s", field, dir)
		}

		stream, err := s.loader.BuildFieldStream(field, paths)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s stream: %w", field, err)
		}
		logger.Info("Loaded %d keys for field %s from %d files", stream.Len(), field, len(paths))

		streams[field] = stream
		names := make([]string, len(paths))
		for i, p := range paths {
			names[i] = filepath.Base(p)
		}
		sources[field] = names
	}

	return streams, sources, nil
}

// BuildMismatchReport compares the key sets of all streams. fieldOrder
// fixes the order of the per-field sections; sources may be nil.
func BuildMismatchReport(streams map[string]*domain.FieldStream, sources map[string][]string, fieldOrder []string) *domain.MismatchReport {
	intersection := domain.IntersectKeys(streams)
	inInter := make(map[int]struct{}, len(intersection))
	for _, k := range intersection {
		inInter[k] = struct{}{}
	}

	report := &domain.MismatchReport{
		IntersectionSize: len(intersection),
	}

	for _, field := range fieldOrder {
		stream, ok := streams[field]
		if !ok {
			continue
		}

		keys := stream.Keys()
		var onlyIn []int
		for _, k := range keys {
			if _, ok := inInter[k]; !ok {
				onlyIn = append(onlyIn, k)
			}
		}

		fr := domain.FieldReport{
			Field:       field,
			TotalKeys:   len(keys),
			OnlyIn:      domain.CompressRanges(onlyIn),
			OnlyInCount: len(onlyIn),
			Coverage:    domain.AnalyzeGaps(keys),
			Stats:       stream.Stats,
			SourceFiles: sources[field],
		}
		report.TotalMismatches += fr.OnlyInCount
		report.Fields = append(report.Fields, fr)
	}

	return report
}
