// Package anthropic provides a batch client using the Anthropic
// Message Batches API.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.BatchClient = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultTimeout = 120 * time.Second

	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic batch client.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Timeout is the per-request timeout (default: 120s). Result
	// downloads can be large, so this covers the whole body read.
	Timeout time.Duration
}

// Client submits and tracks batches via the Message Batches API.
// Request lines must already be in the {"custom_id", "params"} wire
// format; the client never inspects them.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// batchResponse is the Message Batches object returned by create and
// retrieve calls.
type batchResponse struct {
	ID               string `json:"id"`
	ProcessingStatus string `json:"processing_status"`
	RequestCounts    struct {
		Processing int `json:"processing"`
		Succeeded  int `json:"succeeded"`
		Errored    int `json:"errored"`
		Canceled   int `json:"canceled"`
		Expired    int `json:"expired"`
	} `json:"request_counts"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Error     *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient creates a new Anthropic batch client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}, nil
}

// Vendor names the backing service.
func (c *Client) Vendor() string {
	return "anthropic"
}

// Submit creates a message batch from the prepared request lines.
func (c *Client) Submit(ctx context.Context, requests []json.RawMessage) (*domain.BatchJob, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("submit batch: %w", domain.ErrNoRequests)
	}

	body, err := json.Marshal(struct {
		Requests []json.RawMessage `json:"requests"`
	}{Requests: requests})
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	batch, err := c.doBatch(ctx, http.MethodPost, "/v1/messages/batches", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return c.toJob(batch), nil
}

// Status retrieves the current state of a batch.
func (c *Client) Status(ctx context.Context, jobID string) (*domain.BatchJob, error) {
	batch, err := c.doBatch(ctx, http.MethodGet, "/v1/messages/batches/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	return c.toJob(batch), nil
}

// FetchResults streams the result lines of an ended batch.
func (c *Client) FetchResults(ctx context.Context, jobID string) ([]json.RawMessage, error) {
	batch, err := c.doBatch(ctx, http.MethodGet, "/v1/messages/batches/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	if batch.ProcessingStatus != "ended" {
		return nil, fmt.Errorf("batch %s is %s: %w", jobID, batch.ProcessingStatus, domain.ErrBatchNotReady)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/v1/messages/batches/"+jobID+"/results", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}

	return readJSONLines(resp.Body)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

func (c *Client) doBatch(ctx context.Context, method, path string, body io.Reader) (*batchResponse, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var batch batchResponse
	if err := json.Unmarshal(respBody, &batch); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if batch.Error != nil {
		return nil, fmt.Errorf("anthropic error: %s", batch.Error.Message)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("anthropic batch: %w", domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return &batch, nil
}

// toJob maps the vendor batch object onto the domain job.
func (c *Client) toJob(batch *batchResponse) *domain.BatchJob {
	counts := domain.RequestCounts{
		Processing: batch.RequestCounts.Processing,
		Succeeded:  batch.RequestCounts.Succeeded,
		Errored:    batch.RequestCounts.Errored,
		Canceled:   batch.RequestCounts.Canceled,
		Expired:    batch.RequestCounts.Expired,
	}
	counts.Total = counts.Processing + counts.Succeeded + counts.Errored + counts.Canceled + counts.Expired

	var status domain.BatchStatus
	switch batch.ProcessingStatus {
	case "in_progress", "canceling":
		status = domain.BatchRunning
	case "ended":
		// The vendor reports "ended" even when every request errored
		// or expired; distinguish by the counts.
		switch {
		case counts.Succeeded > 0:
			status = domain.BatchEnded
		case counts.Expired > 0:
			status = domain.BatchExpired
		case counts.Canceled > 0:
			status = domain.BatchCanceled
		case counts.Errored > 0:
			status = domain.BatchFailed
		default:
			status = domain.BatchEnded
		}
	default:
		status = domain.BatchPending
	}

	return &domain.BatchJob{
		ID:            batch.ID,
		Status:        status,
		RequestCounts: counts,
		CreatedAt:     batch.CreatedAt,
		ExpiresAt:     batch.ExpiresAt,
	}
}

// readJSONLines splits a JSONL body into raw lines.
func readJSONLines(r io.Reader) ([]json.RawMessage, error) {
	var lines []json.RawMessage

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, json.RawMessage(bytes.Clone(line)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return lines, nil
}
