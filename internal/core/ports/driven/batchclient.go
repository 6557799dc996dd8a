package driven

import (
	"context"
	"encoding/json"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
)

// BatchClient is the opaque vendor surface for batch processing.
// Request and result lines are raw JSON: the core never interprets
// vendor request bodies, and result envelopes are decoded by the
// reconciliation side, not here.
type BatchClient interface {
	// Submit sends prepared request lines as one batch and returns
	// the vendor's job handle.
	Submit(ctx context.Context, requests []json.RawMessage) (*domain.BatchJob, error)

	// Status retrieves the current state of a batch.
	Status(ctx context.Context, jobID string) (*domain.BatchJob, error)

	// FetchResults returns the result envelope lines for an ended
	// batch. Returns domain.ErrBatchNotReady while processing.
	FetchResults(ctx context.Context, jobID string) ([]json.RawMessage, error)

	// Vendor names the backing service, for logs and status output.
	Vendor() string
}
