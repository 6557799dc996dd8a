package driven

import (
	"context"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
)

// BatchStatusStore persists per-batch-file submission state between
// runs so completed batches are not resubmitted. The state is an
// explicit record passed in and out; the core holds nothing global.
type BatchStatusStore interface {
	// Save stores or updates the record, keyed by batch file name.
	Save(ctx context.Context, rec *domain.BatchRecord) error

	// Get retrieves the record for a batch file.
	// Returns nil and no error if the file has never been submitted.
	Get(ctx context.Context, file string) (*domain.BatchRecord, error)

	// List returns all records, ordered by batch file name.
	List(ctx context.Context) ([]domain.BatchRecord, error)

	// Delete removes the record for a batch file.
	Delete(ctx context.Context, file string) error
}
