package driving

import (
	"context"
	"time"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
)

// PrepareResult summarises a batch preparation run for one field.
type PrepareResult struct {
	Field        string   `json:"field"`
	BatchFiles   []string `json:"batch_files"`
	Requests     int      `json:"requests"`
	SkippedEmpty int      `json:"skipped_empty"`
	DecodeErrors int      `json:"decode_errors"`
}

// Preparer turns a source dataset into vendor batch request files.
type Preparer interface {
	Prepare(ctx context.Context, field string) (*PrepareResult, error)
}

// SubmitSummary reports the outcome of a submit pass over the
// prepared batch files of a field.
type SubmitSummary struct {
	Field     string `json:"field"`
	Submitted int    `json:"submitted"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// CheckSummary reports the state of every tracked batch after a
// status poll, including those that reached a terminal state during
// this pass.
type CheckSummary struct {
	Records    []domain.BatchRecord `json:"records"`
	NewlyEnded []string             `json:"newly_ended"`
	Downloaded int                  `json:"downloaded"`
}

// Submitter drives the batch lifecycle against the vendor API:
// submit prepared files, poll their status, and fetch results.
type Submitter interface {
	// SubmitAll submits every prepared batch file for field that is
	// not already tracked as active or terminal-successful.
	SubmitAll(ctx context.Context, field string) (*SubmitSummary, error)

	// CheckAll refreshes the status of every tracked batch and
	// downloads results for batches that ended since the last check.
	CheckAll(ctx context.Context) (*CheckSummary, error)

	// Download fetches the results of a single tracked batch file.
	Download(ctx context.Context, file string) (*domain.BatchRecord, error)

	// Monitor polls CheckAll at interval until every tracked batch is
	// terminal or ctx is cancelled.
	Monitor(ctx context.Context, interval time.Duration) error
}

// Reconciler compares the result streams of all configured fields and
// reports key coverage and mismatches.
type Reconciler interface {
	Reconcile(ctx context.Context) (*domain.MismatchReport, error)
}

// MergeResult summarises a merge run.
type MergeResult struct {
	OutputPath string                 `json:"output_path"`
	Records    int                    `json:"records"`
	Report     *domain.MismatchReport `json:"report"`
}

// Merger joins the per-field result streams on their key
// intersection and writes the merged dataset.
type Merger interface {
	Merge(ctx context.Context) (*MergeResult, error)
}
