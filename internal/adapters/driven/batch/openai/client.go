// Package openai provides a batch client using the OpenAI Batch API.
// Request files are uploaded through the Files API, then referenced by
// the created batch; results come back as an output file.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.BatchClient = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com"
	DefaultTimeout = 120 * time.Second

	completionWindow = "24h"
	batchEndpoint    = "/v1/chat/completions"
)

// Config holds configuration for the OpenAI batch client.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com).
	BaseURL string

	// Timeout is the per-request timeout (default: 120s).
	Timeout time.Duration
}

// Client submits and tracks batches via the OpenAI Batch API.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// batchResponse is the batch object returned by create and retrieve.
type batchResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	OutputFileID  string `json:"output_file_id"`
	ErrorFileID   string `json:"error_file_id"`
	CreatedAt     int64  `json:"created_at"`
	ExpiresAt     int64  `json:"expires_at"`
	RequestCounts struct {
		Total     int `json:"total"`
		Completed int `json:"completed"`
		Failed    int `json:"failed"`
	} `json:"request_counts"`
}

type apiError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewClient creates a new OpenAI batch client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
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
	return "openai"
}

// Submit uploads the request lines as a batch input file and creates
// a batch referencing it.
func (c *Client) Submit(ctx context.Context, requests []json.RawMessage) (*domain.BatchJob, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("submit batch: %w", domain.ErrNoRequests)
	}

	fileID, err := c.uploadBatchFile(ctx, requests)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(struct {
		InputFileID      string `json:"input_file_id"`
		Endpoint         string `json:"endpoint"`
		CompletionWindow string `json:"completion_window"`
	}{
		InputFileID:      fileID,
		Endpoint:         batchEndpoint,
		CompletionWindow: completionWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/batches", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	batch, err := c.doBatch(req)
	if err != nil {
		return nil, err
	}
	return toJob(batch), nil
}

// Status retrieves the current state of a batch.
func (c *Client) Status(ctx context.Context, jobID string) (*domain.BatchJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/batches/"+jobID, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	batch, err := c.doBatch(req)
	if err != nil {
		return nil, err
	}
	return toJob(batch), nil
}

// FetchResults downloads the output file of a completed batch.
func (c *Client) FetchResults(ctx context.Context, jobID string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/batches/"+jobID, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	batch, err := c.doBatch(req)
	if err != nil {
		return nil, err
	}
	if batch.Status != "completed" {
		return nil, fmt.Errorf("batch %s is %s: %w", jobID, batch.Status, domain.ErrBatchNotReady)
	}
	if batch.OutputFileID == "" {
		return nil, fmt.Errorf("batch %s has no output file", jobID)
	}

	fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/files/"+batch.OutputFileID+"/content", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	fileReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(fileReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}

	return readJSONLines(resp.Body)
}

// uploadBatchFile sends the request lines to the Files API with the
// batch purpose and returns the file id.
func (c *Client) uploadBatchFile(ctx context.Context, requests []json.RawMessage) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("purpose", "batch"); err != nil {
		return "", fmt.Errorf("write purpose field: %w", err)
	}
	fw, err := mw.CreateFormFile("file", "batch_input.jsonl")
	if err != nil {
		return "", fmt.Errorf("create file field: %w", err)
	}
	for _, line := range requests {
		if _, err := fw.Write(line); err != nil {
			return "", fmt.Errorf("write request line: %w", err)
		}
		if _, err := fw.Write([]byte{'\n'}); err != nil {
			return "", fmt.Errorf("write request line: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}

	var file struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &file); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if file.ID == "" {
		return "", fmt.Errorf("openai: upload returned no file id")
	}
	return file.ID, nil
}

func (c *Client) doBatch(req *http.Request) (*batchResponse, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("openai batch: %w", domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil {
			return nil, fmt.Errorf("openai error: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}

	var batch batchResponse
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &batch, nil
}

// toJob maps the vendor batch object onto the domain job.
func toJob(batch *batchResponse) *domain.BatchJob {
	var status domain.BatchStatus
	switch batch.Status {
	case "validating":
		status = domain.BatchPending
	case "in_progress", "finalizing", "cancelling":
		status = domain.BatchRunning
	case "completed":
		status = domain.BatchEnded
	case "failed":
		status = domain.BatchFailed
	case "expired":
		status = domain.BatchExpired
	case "cancelled":
		status = domain.BatchCanceled
	default:
		status = domain.BatchPending
	}

	job := &domain.BatchJob{
		ID:     batch.ID,
		Status: status,
		RequestCounts: domain.RequestCounts{
			Total:     batch.RequestCounts.Total,
			Succeeded: batch.RequestCounts.Completed,
			Errored:   batch.RequestCounts.Failed,
		},
	}
	if batch.CreatedAt > 0 {
		job.CreatedAt = time.Unix(batch.CreatedAt, 0)
	}
	if batch.ExpiresAt > 0 {
		job.ExpiresAt = time.Unix(batch.ExpiresAt, 0)
	}
	return job
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
