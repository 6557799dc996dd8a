package domain

import "time"

// BatchStatus is the vendor-reported processing state of a batch job.
type BatchStatus string

// Batch processing states.
const (
	BatchPending  BatchStatus = "pending"
	BatchRunning  BatchStatus = "running"
	BatchEnded    BatchStatus = "ended"
	BatchFailed   BatchStatus = "failed"
	BatchExpired  BatchStatus = "expired"
	BatchCanceled BatchStatus = "canceled"
)

// IsValid reports whether the status is a known state.
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchPending, BatchRunning, BatchEnded, BatchFailed, BatchExpired, BatchCanceled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the vendor will make no further progress.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchEnded, BatchFailed, BatchExpired, BatchCanceled:
		return true
	default:
		return false
	}
}

// Resubmittable reports whether a batch in this state should be
// submitted again. Ended batches keep their results; pending and
// running ones are already in flight.
func (s BatchStatus) Resubmittable() bool {
	switch s {
	case BatchFailed, BatchExpired, BatchCanceled:
		return true
	default:
		return false
	}
}

// RequestCounts mirrors the vendor's per-batch request tally.
type RequestCounts struct {
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Errored    int `json:"errored"`
	Canceled   int `json:"canceled"`
	Expired    int `json:"expired"`
	Total      int `json:"total"`
}

// BatchJob is a vendor-side batch as seen through the opaque client
// interface: a handle plus its current processing state.
type BatchJob struct {
	// ID is the vendor-assigned job handle.
	ID string

	// Status is the current processing state.
	Status BatchStatus

	// RequestCounts is the vendor's request tally, when reported.
	RequestCounts RequestCounts

	// CreatedAt is when the vendor accepted the batch.
	CreatedAt time.Time

	// ExpiresAt is when unprocessed requests lapse, when reported.
	ExpiresAt time.Time
}

// BatchRecord is the persisted submission state for one prepared
// batch file. It is an explicit value passed through the status store
// between runs; the pipeline itself holds no global state.
type BatchRecord struct {
	// File is the prepared batch file name, unique per field.
	File string

	// Field is the logical field the batch belongs to.
	Field string

	// JobID is the vendor handle, empty until submitted.
	JobID string

	// Status is the last observed processing state.
	Status BatchStatus

	// RequestCount is the number of request lines submitted.
	RequestCount int

	// SubmittedAt is when the batch was accepted by the vendor.
	SubmittedAt time.Time

	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time

	// Downloaded marks that results were fetched and written out.
	Downloaded bool

	// ResultsFile is where the downloaded envelopes were written.
	ResultsFile string

	// LastError holds the most recent submission or download failure.
	LastError string
}

// Active reports whether the batch is submitted and still worth
// polling or downloading.
func (r *BatchRecord) Active() bool {
	return r.JobID != "" && !r.Status.Resubmittable()
}
