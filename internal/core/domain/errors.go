package domain

import "errors"

// Domain errors represent pipeline failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoRequests indicates a prepared batch file contained no valid requests.
	ErrNoRequests = errors.New("no valid requests")

	// ErrBatchNotReady indicates a batch has not finished processing,
	// so its results cannot be downloaded yet.
	ErrBatchNotReady = errors.New("batch not ready")

	// ErrEmptyIntersection indicates no record key is present in every
	// required field stream, so there is nothing to merge.
	ErrEmptyIntersection = errors.New("no matching keys across field streams")
)
