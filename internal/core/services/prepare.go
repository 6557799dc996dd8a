package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driven"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driving"
	"github.com/mcslab/transbatch-cli/internal/logger"
)

// Ensure PrepareService implements the interface.
var _ driving.Preparer = (*PrepareService)(nil)

// Vendor names accepted by the prepare and submit services.
const (
	VendorAnthropic = "anthropic"
	VendorOpenAI    = "openai"
)

// PrepareConfig carries the settings a preparation run needs.
type PrepareConfig struct {
	// SourcePath is the source dataset, one JSON object per line.
	SourcePath string

	// BatchesDir is where batch_N.jsonl files are written, one
	// subdirectory per field.
	BatchesDir string

	// Namespace prefixes every custom id. Sanitized before use.
	Namespace string

	// Vendor selects the request body format.
	Vendor string

	Model       string
	MaxTokens   int
	Temperature float64

	// BatchSize is the number of requests per batch file.
	BatchSize int
}

// PrepareService turns a source dataset into vendor batch request
// files, one request per non-empty source row.
type PrepareService struct {
	prompts driven.PromptStore
	cfg     PrepareConfig
}

// NewPrepareService creates a prepare service.
func NewPrepareService(prompts driven.PromptStore, cfg PrepareConfig) *PrepareService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 250
	}
	return &PrepareService{prompts: prompts, cfg: cfg}
}

// Prepare reads the source dataset and writes batch request files for
// field. The line index in the source file becomes the record key, so
// rows skipped for an empty field leave a hole rather than shifting
// every later key.
func (s *PrepareService) Prepare(ctx context.Context, field string) (*driving.PrepareResult, error) {
	if field == "" {
		return nil, fmt.Errorf("prepare: %w: empty field name", domain.ErrInvalidInput)
	}
	if s.cfg.Vendor != VendorAnthropic && s.cfg.Vendor != VendorOpenAI {
		return nil, fmt.Errorf("prepare: %w: unknown vendor %q", domain.ErrInvalidInput, s.cfg.Vendor)
	}

	template, err := s.prompts.Load(driven.PromptTranslate)
	if err != nil {
		return nil, fmt.Errorf("load translate prompt: %w", err)
	}
	if !strings.Contains(template, "{record}") {
		return nil, fmt.Errorf("prepare: %w: translate prompt has no {record} placeholder", domain.ErrInvalidInput)
	}
	system, err := s.prompts.Load(driven.PromptSystem)
	if err != nil {
		return nil, fmt.Errorf("load system prompt: %w", err)
	}

	src, err := os.Open(s.cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("open source dataset: %w", err)
	}
	defer src.Close()

	outDir := filepath.Join(s.cfg.BatchesDir, field)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create batches directory: %w", err)
	}

	namespace := domain.SanitizeNamespace(s.cfg.Namespace)
	result := &driving.PrepareResult{Field: field}

	var (
		batch   []json.RawMessage
		batchNo int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		batchNo++
		path := filepath.Join(outDir, fmt.Sprintf("batch_%d.jsonl", batchNo))
		if err := writeRequestFile(path, batch); err != nil {
			return err
		}
		logger.Info("Wrote %s (%d requests)", path, len(batch))
		result.BatchFiles = append(result.BatchFiles, filepath.Base(path))
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	idx := -1
	for scanner.Scan() {
		idx++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var row map[string]any
		if err := json.Unmarshal(line, &row); err != nil {
			result.DecodeErrors++
			logger.Debug("Skipping undecodable source line %d: %v", idx, err)
			continue
		}

		text, _ := row[field].(string)
		text = strings.TrimSpace(text)
		if text == "" {
			result.SkippedEmpty++
			continue
		}

		customID := domain.EncodeCustomID(namespace, field, idx)
		prompt := strings.ReplaceAll(template, "{record}", text)

		req, err := s.buildRequest(customID, system, prompt)
		if err != nil {
			return nil, fmt.Errorf("build request for line %d: %w", idx, err)
		}

		batch = append(batch, req)
		result.Requests++
		if len(batch) >= s.cfg.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read source dataset: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if result.Requests == 0 {
		return nil, fmt.Errorf("prepare %s: %w", field, domain.ErrNoRequests)
	}
	return result, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildRequest serialises one batch request in the configured
// vendor's wire format.
func (s *PrepareService) buildRequest(customID, system, prompt string) (json.RawMessage, error) {
	switch s.cfg.Vendor {
	case VendorOpenAI:
		req := struct {
			CustomID string `json:"custom_id"`
			Method   string `json:"method"`
			URL      string `json:"url"`
			Body     struct {
				Model       string        `json:"model"`
				Messages    []chatMessage `json:"messages"`
				MaxTokens   int           `json:"max_tokens"`
				Temperature float64       `json:"temperature"`
			} `json:"body"`
		}{
			CustomID: customID,
			Method:   "POST",
			URL:      "/v1/chat/completions",
		}
		req.Body.Model = s.cfg.Model
		req.Body.Messages = []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		}
		req.Body.MaxTokens = s.cfg.MaxTokens
		req.Body.Temperature = s.cfg.Temperature
		return json.Marshal(req)

	case VendorAnthropic:
		req := struct {
			CustomID string `json:"custom_id"`
			Params   struct {
				Model       string        `json:"model"`
				System      string        `json:"system"`
				Messages    []chatMessage `json:"messages"`
				MaxTokens   int           `json:"max_tokens"`
				Temperature float64       `json:"temperature"`
			} `json:"params"`
		}{CustomID: customID}
		req.Params.Model = s.cfg.Model
		req.Params.System = system
		req.Params.Messages = []chatMessage{{Role: "user", Content: prompt}}
		req.Params.MaxTokens = s.cfg.MaxTokens
		req.Params.Temperature = s.cfg.Temperature
		return json.Marshal(req)

	default:
		return nil, fmt.Errorf("%w: unknown vendor %q", domain.ErrInvalidInput, s.cfg.Vendor)
	}
}

func writeRequestFile(path string, requests []json.RawMessage) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create batch file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, req := range requests {
		if _, err := w.Write(req); err != nil {
			return fmt.Errorf("write batch file %s: %w", path, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write batch file %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush batch file %s: %w", path, err)
	}
	return nil
}
