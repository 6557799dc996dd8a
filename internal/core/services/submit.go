package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driven"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driving"
	"github.com/mcslab/transbatch-cli/internal/logger"
)

// Ensure SubmitService implements the interface.
var _ driving.Submitter = (*SubmitService)(nil)

// SubmitConfig carries the settings the submission lifecycle needs.
type SubmitConfig struct {
	// BatchesDir holds the prepared batch files, one subdirectory
	// per field.
	BatchesDir string

	// ResultsDir is where downloaded result files are written, one
	// subdirectory per field.
	ResultsDir string

	// SubmitDelay is the minimum interval between submissions.
	SubmitDelay time.Duration
}

// SubmitService drives the batch lifecycle: submit prepared files,
// poll their status, download results when they end. All state lives
// in the status store so runs are resumable.
type SubmitService struct {
	client  driven.BatchClient
	store   driven.BatchStatusStore
	cfg     SubmitConfig
	limiter *rate.Limiter
}

// NewSubmitService creates a submit service.
func NewSubmitService(client driven.BatchClient, store driven.BatchStatusStore, cfg SubmitConfig) *SubmitService {
	if cfg.SubmitDelay <= 0 {
		cfg.SubmitDelay = 2 * time.Second
	}
	return &SubmitService{
		client:  client,
		store:   store,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.SubmitDelay), 1),
	}
}

var batchFilePattern = regexp.MustCompile(`^batch_(\d+)\.jsonl$`)

// discoverBatchFiles returns every batch_N.jsonl under dir in
// ascending batch order.
func discoverBatchFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read batches directory %s: %w", dir, err)
	}

	type numbered struct {
		num  int
		name string
	}
	var files []numbered
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := batchFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, numbered{num: num, name: entry.Name()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].num < files[j].num })

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

// SubmitAll submits every prepared batch file for field that is not
// already tracked as in flight or successfully ended. Failed, expired
// and canceled batches are submitted again.
func (s *SubmitService) SubmitAll(ctx context.Context, field string) (*driving.SubmitSummary, error) {
	dir := filepath.Join(s.cfg.BatchesDir, field)
	names, err := discoverBatchFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("submit %s: %w: no batch files in %s", field, domain.ErrNoRequests, dir)
	}

	summary := &driving.SubmitSummary{Field: field}
	for _, name := range names {
		key := filepath.ToSlash(filepath.Join(field, name))

		rec, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get record %s: %w", key, err)
		}
		if rec != nil && rec.Active() {
			logger.Debug("Skipping %s: already %s (job %s)", key, rec.Status, rec.JobID)
			summary.Skipped++
			continue
		}

		requests, err := readRequestFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if len(requests) == 0 {
			logger.Warn("Skipping empty batch file %s", key)
			summary.Skipped++
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		now := time.Now()
		job, err := s.client.Submit(ctx, requests)
		if err != nil {
			summary.Failed++
			logger.Warn("Submit %s failed: %v", key, err)
			saveErr := s.store.Save(ctx, &domain.BatchRecord{
				File:         key,
				Field:        field,
				Status:       domain.BatchFailed,
				RequestCount: len(requests),
				UpdatedAt:    now,
				LastError:    err.Error(),
			})
			if saveErr != nil {
				return nil, fmt.Errorf("save record %s: %w", key, saveErr)
			}
			continue
		}

		logger.Info("Submitted %s as job %s (%d requests)", key, job.ID, len(requests))
		if err := s.store.Save(ctx, &domain.BatchRecord{
			File:         key,
			Field:        field,
			JobID:        job.ID,
			Status:       job.Status,
			RequestCount: len(requests),
			SubmittedAt:  now,
			UpdatedAt:    now,
		}); err != nil {
			return nil, fmt.Errorf("save record %s: %w", key, err)
		}
		summary.Submitted++
	}

	return summary, nil
}

// CheckAll refreshes the status of every tracked batch and downloads
// results for batches that ended and have not been downloaded yet.
func (s *SubmitService) CheckAll(ctx context.Context) (*driving.CheckSummary, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	summary := &driving.CheckSummary{}
	for i := range records {
		rec := &records[i]

		if rec.JobID != "" && !rec.Status.Terminal() {
			job, err := s.client.Status(ctx, rec.JobID)
			if err != nil {
				logger.Warn("Status check for %s (job %s) failed: %v", rec.File, rec.JobID, err)
				rec.LastError = err.Error()
				rec.UpdatedAt = time.Now()
				if err := s.store.Save(ctx, rec); err != nil {
					return nil, fmt.Errorf("save record %s: %w", rec.File, err)
				}
				continue
			}

			if job.Status != rec.Status {
				logger.Info("Batch %s: %s -> %s", rec.File, rec.Status, job.Status)
				if job.Status == domain.BatchEnded {
					summary.NewlyEnded = append(summary.NewlyEnded, rec.File)
				}
			}
			rec.Status = job.Status
			rec.LastError = ""
			rec.UpdatedAt = time.Now()
			if err := s.store.Save(ctx, rec); err != nil {
				return nil, fmt.Errorf("save record %s: %w", rec.File, err)
			}
		}

		if rec.Status == domain.BatchEnded && !rec.Downloaded {
			if _, err := s.Download(ctx, rec.File); err != nil {
				logger.Warn("Download for %s failed: %v", rec.File, err)
				continue
			}
			summary.Downloaded++
		}
	}

	records, err = s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	summary.Records = records
	return summary, nil
}

// Download fetches the results of one tracked batch and writes them
// as results_<batchfile> in the field's results directory.
func (s *SubmitService) Download(ctx context.Context, file string) (*domain.BatchRecord, error) {
	rec, err := s.store.Get(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", file, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("download %s: %w", file, domain.ErrNotFound)
	}
	if rec.Status != domain.BatchEnded {
		return nil, fmt.Errorf("download %s (status %s): %w", file, rec.Status, domain.ErrBatchNotReady)
	}

	lines, err := s.client.FetchResults(ctx, rec.JobID)
	if err != nil {
		rec.LastError = err.Error()
		rec.UpdatedAt = time.Now()
		if saveErr := s.store.Save(ctx, rec); saveErr != nil {
			return nil, fmt.Errorf("save record %s: %w", file, saveErr)
		}
		return nil, fmt.Errorf("fetch results for %s: %w", file, err)
	}

	dir := filepath.Join(s.cfg.ResultsDir, rec.Field)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}
	path := filepath.Join(dir, "results_"+filepath.Base(rec.File))
	if err := writeRequestFile(path, lines); err != nil {
		return nil, err
	}

	rec.Downloaded = true
	rec.ResultsFile = path
	rec.LastError = ""
	rec.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save record %s: %w", file, err)
	}

	logger.Info("Downloaded %d result lines to %s", len(lines), path)
	return rec, nil
}

// Monitor polls CheckAll at interval until every tracked batch is
// terminal and every ended batch is downloaded, or ctx is cancelled.
func (s *SubmitService) Monitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		summary, err := s.CheckAll(ctx)
		if err != nil {
			return err
		}

		done := true
		for i := range summary.Records {
			rec := &summary.Records[i]
			if !rec.Status.Terminal() {
				done = false
				break
			}
			if rec.Status == domain.BatchEnded && !rec.Downloaded {
				done = false
				break
			}
		}
		if done {
			logger.Info("All %d batches settled", len(summary.Records))
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// readRequestFile loads the raw request lines of a prepared batch
// file. Lines are validated as JSON but otherwise left opaque.
func readRequestFile(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	var requests []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("batch file %s: %w: invalid request line", path, domain.ErrInvalidInput)
		}
		requests = append(requests, json.RawMessage(bytes.Clone(line)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch file %s: %w", path, err)
	}
	return requests, nil
}
