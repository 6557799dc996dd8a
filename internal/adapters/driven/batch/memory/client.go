// Package memory provides an in-memory batch client for tests and
// offline development. Jobs live only for the process lifetime and
// transition state when told to.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.BatchClient = (*Client)(nil)

type job struct {
	status   domain.BatchStatus
	requests []json.RawMessage
	results  []json.RawMessage
	created  time.Time
}

// Client is an in-memory BatchClient. Submitted jobs start running;
// tests drive them to a terminal state with Complete or Fail.
type Client struct {
	mu   sync.Mutex
	jobs map[string]*job
}

// NewClient creates an empty in-memory batch client.
func NewClient() *Client {
	return &Client{jobs: make(map[string]*job)}
}

// Submit registers the requests as a new running job.
func (c *Client) Submit(_ context.Context, requests []json.RawMessage) (*domain.BatchJob, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("submit batch: %w", domain.ErrNoRequests)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := "membatch_" + uuid.NewString()
	now := time.Now()
	c.jobs[id] = &job{
		status:   domain.BatchRunning,
		requests: append([]json.RawMessage(nil), requests...),
		created:  now,
	}

	return &domain.BatchJob{
		ID:        id,
		Status:    domain.BatchRunning,
		CreatedAt: now,
		RequestCounts: domain.RequestCounts{
			Processing: len(requests),
			Total:      len(requests),
		},
	}, nil
}

// Status reports the current state of a job.
func (c *Client) Status(_ context.Context, jobID string) (*domain.BatchJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, ok := c.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", jobID, domain.ErrNotFound)
	}

	counts := domain.RequestCounts{Total: len(j.requests)}
	switch j.status {
	case domain.BatchEnded:
		counts.Succeeded = len(j.requests)
	case domain.BatchFailed, domain.BatchExpired, domain.BatchCanceled:
		counts.Errored = len(j.requests)
	default:
		counts.Processing = len(j.requests)
	}

	return &domain.BatchJob{
		ID:            jobID,
		Status:        j.status,
		RequestCounts: counts,
		CreatedAt:     j.created,
	}, nil
}

// FetchResults returns the result lines set via Complete.
func (c *Client) FetchResults(_ context.Context, jobID string) ([]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, ok := c.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", jobID, domain.ErrNotFound)
	}
	if j.status != domain.BatchEnded {
		return nil, fmt.Errorf("batch %s is %s: %w", jobID, j.status, domain.ErrBatchNotReady)
	}

	return append([]json.RawMessage(nil), j.results...), nil
}

// Vendor names the backing service.
func (c *Client) Vendor() string {
	return "memory"
}

// Complete marks a job ended with the given result lines.
func (c *Client) Complete(jobID string, results []json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, ok := c.jobs[jobID]
	if !ok {
		return fmt.Errorf("batch %s: %w", jobID, domain.ErrNotFound)
	}
	j.status = domain.BatchEnded
	j.results = append([]json.RawMessage(nil), results...)
	return nil
}

// Fail moves a job to the given terminal failure state.
func (c *Client) Fail(jobID string, status domain.BatchStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, ok := c.jobs[jobID]
	if !ok {
		return fmt.Errorf("batch %s: %w", jobID, domain.ErrNotFound)
	}
	j.status = status
	return nil
}

// Requests returns the request lines submitted for a job.
func (c *Client) Requests(jobID string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, ok := c.jobs[jobID]
	if !ok {
		return nil
	}
	return append([]json.RawMessage(nil), j.requests...)
}

// JobIDs returns the ids of all submitted jobs, in no particular order.
func (c *Client) JobIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.jobs))
	for id := range c.jobs {
		ids = append(ids, id)
	}
	return ids
}
