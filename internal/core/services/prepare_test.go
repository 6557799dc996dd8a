package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driven"
)

type stubPrompts map[string]string

func (s stubPrompts) Load(name string) (string, error) {
	p, ok := s[name]
	if !ok {
		return "", fmt.Errorf("prompt %s: %w", name, domain.ErrNotFound)
	}
	return p, nil
}

func testPrompts() stubPrompts {
	return stubPrompts{
		driven.PromptTranslate: "Translate this to Roman Urdu:\n{record}\n",
		driven.PromptSystem:    "You are a translator.",
	}
}

func writeSourceDataset(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644))
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestPrepare_Anthropic(t *testing.T) {
	source := writeSourceDataset(t,
		`{"instruction":"Add two numbers.","output":"def add(a, b): return a + b"}`,
		`{"instruction":"","output":"skipped"}`,
		`{"instruction":"Sort a list.","output":"sorted(xs)"}`,
		"not valid json",
		`{"instruction":"Reverse a string.","output":"s[::-1]"}`,
	)
	batchesDir := t.TempDir()

	svc := NewPrepareService(testPrompts(), PrepareConfig{
		SourcePath:  source,
		BatchesDir:  batchesDir,
		Namespace:   "alpaca-ds",
		Vendor:      VendorAnthropic,
		Model:       "claude-sonnet-4-20250514",
		MaxTokens:   6805,
		Temperature: 0.2,
		BatchSize:   2,
	})

	res, err := svc.Prepare(context.Background(), "instruction")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Requests)
	assert.Equal(t, 1, res.SkippedEmpty)
	assert.Equal(t, 1, res.DecodeErrors)
	assert.Equal(t, []string{"batch_1.jsonl", "batch_2.jsonl"}, res.BatchFiles)

	lines := readLines(t, filepath.Join(batchesDir, "instruction", "batch_1.jsonl"))
	require.Len(t, lines, 2)

	var req struct {
		CustomID string `json:"custom_id"`
		Params   struct {
			Model     string `json:"model"`
			System    string `json:"system"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &req))

	// Keys follow the source line index, so the skipped rows leave holes.
	assert.Equal(t, "alpaca-ds_instruction_line_0", req.CustomID)
	assert.Equal(t, "claude-sonnet-4-20250514", req.Params.Model)
	assert.Equal(t, "You are a translator.", req.Params.System)
	assert.Equal(t, 6805, req.Params.MaxTokens)
	require.Len(t, req.Params.Messages, 1)
	assert.Equal(t, "user", req.Params.Messages[0].Role)
	assert.Contains(t, req.Params.Messages[0].Content, "Add two numbers.")
	assert.NotContains(t, req.Params.Messages[0].Content, "{record}")

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &req))
	assert.Equal(t, "alpaca-ds_instruction_line_2", req.CustomID)

	second := readLines(t, filepath.Join(batchesDir, "instruction", "batch_2.jsonl"))
	require.Len(t, second, 1)
	require.NoError(t, json.Unmarshal([]byte(second[0]), &req))
	assert.Equal(t, "alpaca-ds_instruction_line_4", req.CustomID)
}

func TestPrepare_OpenAI(t *testing.T) {
	source := writeSourceDataset(t,
		`{"output":"jawab likho"}`,
	)
	batchesDir := t.TempDir()

	svc := NewPrepareService(testPrompts(), PrepareConfig{
		SourcePath:  source,
		BatchesDir:  batchesDir,
		Namespace:   "ds",
		Vendor:      VendorOpenAI,
		Model:       "gpt-4.1-2025-04-14",
		MaxTokens:   6805,
		Temperature: 0.2,
	})

	res, err := svc.Prepare(context.Background(), "output")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Requests)

	lines := readLines(t, filepath.Join(batchesDir, "output", "batch_1.jsonl"))
	require.Len(t, lines, 1)

	var req struct {
		CustomID string `json:"custom_id"`
		Method   string `json:"method"`
		URL      string `json:"url"`
		Body     struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Temperature float64 `json:"temperature"`
		} `json:"body"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &req))

	assert.Equal(t, "ds_output_line_0", req.CustomID)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/v1/chat/completions", req.URL)
	assert.Equal(t, "gpt-4.1-2025-04-14", req.Body.Model)
	assert.InDelta(t, 0.2, req.Body.Temperature, 1e-9)
	require.Len(t, req.Body.Messages, 2)
	assert.Equal(t, "system", req.Body.Messages[0].Role)
	assert.Equal(t, "user", req.Body.Messages[1].Role)
	assert.Contains(t, req.Body.Messages[1].Content, "jawab likho")
}

func TestPrepare_Validation(t *testing.T) {
	source := writeSourceDataset(t, `{"instruction":"x"}`)

	t.Run("unknown vendor", func(t *testing.T) {
		svc := NewPrepareService(testPrompts(), PrepareConfig{
			SourcePath: source,
			BatchesDir: t.TempDir(),
			Vendor:     "cohere",
		})
		_, err := svc.Prepare(context.Background(), "instruction")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("empty field", func(t *testing.T) {
		svc := NewPrepareService(testPrompts(), PrepareConfig{
			SourcePath: source,
			BatchesDir: t.TempDir(),
			Vendor:     VendorAnthropic,
		})
		_, err := svc.Prepare(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("template without placeholder", func(t *testing.T) {
		prompts := testPrompts()
		prompts[driven.PromptTranslate] = "no placeholder here"
		svc := NewPrepareService(prompts, PrepareConfig{
			SourcePath: source,
			BatchesDir: t.TempDir(),
			Vendor:     VendorAnthropic,
		})
		_, err := svc.Prepare(context.Background(), "instruction")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("no usable rows", func(t *testing.T) {
		empty := writeSourceDataset(t, `{"instruction":""}`)
		svc := NewPrepareService(testPrompts(), PrepareConfig{
			SourcePath: empty,
			BatchesDir: t.TempDir(),
			Vendor:     VendorAnthropic,
		})
		_, err := svc.Prepare(context.Background(), "instruction")
		assert.ErrorIs(t, err, domain.ErrNoRequests)
	})
}

func TestPrepare_NamespaceSanitized(t *testing.T) {
	source := writeSourceDataset(t, `{"instruction":"x"}`)
	batchesDir := t.TempDir()

	svc := NewPrepareService(testPrompts(), PrepareConfig{
		SourcePath: source,
		BatchesDir: batchesDir,
		Namespace:  "my data set!",
		Vendor:     VendorAnthropic,
	})

	_, err := svc.Prepare(context.Background(), "instruction")
	require.NoError(t, err)

	lines := readLines(t, filepath.Join(batchesDir, "instruction", "batch_1.jsonl"))
	var req struct {
		CustomID string `json:"custom_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &req))
	assert.Equal(t, "my_data_set__instruction_line_0", req.CustomID)
}
