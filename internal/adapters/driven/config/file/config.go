package file

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
)

// Default configuration values.
const (
	DefaultBatchSize     = 250
	DefaultSubmitDelay   = 2 * time.Second
	DefaultPollInterval  = 30 * time.Second
	defaultConfigName    = "config.toml"
	defaultMergedFile    = "merged/merged_data.jsonl"
	defaultBatchesDir    = "batches"
	defaultResultsDir    = "results"
	defaultReportFile    = "reports/mismatch_report.json"
	defaultMaxTokens     = 6805
	defaultTemperature   = 0.2
	defaultAnthropicName = "claude-sonnet-4-20250514"
	defaultOpenAIName    = "gpt-4.1-2025-04-14"
)

// Config is the pipeline configuration, loaded from a TOML file.
type Config struct {
	// Namespace prefixes every custom id, typically the dataset name.
	Namespace string `toml:"namespace"`

	// Fields is the merged output field order. Fields listed in
	// Constants are written with a fixed value; the rest are
	// translated through the batch pipeline.
	Fields []string `toml:"fields"`

	// Constants maps field names to fixed values.
	Constants map[string]string `toml:"constants"`

	Paths  PathsConfig  `toml:"paths"`
	Vendor VendorConfig `toml:"vendor"`
	Batch  BatchConfig  `toml:"batch"`
}

// PathsConfig locates the pipeline's files. Relative paths are
// resolved against the working directory.
type PathsConfig struct {
	// Source is the source dataset JSONL file.
	Source string `toml:"source"`

	// Batches holds prepared batch files, one subdirectory per field.
	Batches string `toml:"batches"`

	// Results holds downloaded result files, one subdirectory per field.
	Results string `toml:"results"`

	// Merged is the merged output JSONL file.
	Merged string `toml:"merged"`

	// Report is where reconcile writes its JSON report.
	Report string `toml:"report"`

	// Data is the status database directory. Empty means
	// ~/.transbatch/data.
	Data string `toml:"data"`
}

// VendorConfig selects and configures the batch API vendor.
type VendorConfig struct {
	// Name is "anthropic" or "openai".
	Name string `toml:"name"`

	// Model is the model identifier sent in every request.
	Model string `toml:"model"`

	// APIKey is the vendor API key. When empty, the vendor's usual
	// environment variable is consulted.
	APIKey string `toml:"api_key"`

	// BaseURL overrides the vendor endpoint, for testing.
	BaseURL string `toml:"base_url"`

	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

// BatchConfig tunes batch sizing and polling.
type BatchConfig struct {
	// Size is the number of requests per batch file.
	Size int `toml:"size"`

	// SubmitDelaySeconds is the minimum interval between submissions.
	SubmitDelaySeconds int `toml:"submit_delay_seconds"`

	// PollIntervalSeconds is the monitor poll interval.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// SubmitDelay returns the configured submit delay.
func (c *Config) SubmitDelay() time.Duration {
	if c.Batch.SubmitDelaySeconds <= 0 {
		return DefaultSubmitDelay
	}
	return time.Duration(c.Batch.SubmitDelaySeconds) * time.Second
}

// PollInterval returns the configured monitor poll interval.
func (c *Config) PollInterval() time.Duration {
	if c.Batch.PollIntervalSeconds <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.Batch.PollIntervalSeconds) * time.Second
}

// StreamFields returns the fields that go through the batch pipeline,
// in output order, skipping constant fields.
func (c *Config) StreamFields() []string {
	var fields []string
	for _, f := range c.Fields {
		if _, ok := c.Constants[f]; !ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{
		Namespace: "dataset",
		Fields:    []string{"instruction", "input", "output"},
		Constants: map[string]string{"input": ""},
		Paths: PathsConfig{
			Source:  "dataset.jsonl",
			Batches: defaultBatchesDir,
			Results: defaultResultsDir,
			Merged:  defaultMergedFile,
			Report:  defaultReportFile,
		},
		Vendor: VendorConfig{
			Name:        "anthropic",
			MaxTokens:   defaultMaxTokens,
			Temperature: defaultTemperature,
		},
		Batch: BatchConfig{
			Size: DefaultBatchSize,
		},
	}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath returns ~/.transbatch/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".transbatch", defaultConfigName), nil
}

// Load reads the config file at path. A missing file yields the
// default config; a present but unreadable or invalid file is an
// error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config as TOML, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// applyDefaults fills unset values, including the vendor API key from
// the environment.
func (c *Config) applyDefaults() {
	if c.Paths.Batches == "" {
		c.Paths.Batches = defaultBatchesDir
	}
	if c.Paths.Results == "" {
		c.Paths.Results = defaultResultsDir
	}
	if c.Paths.Merged == "" {
		c.Paths.Merged = defaultMergedFile
	}
	if c.Paths.Report == "" {
		c.Paths.Report = defaultReportFile
	}
	if c.Batch.Size <= 0 {
		c.Batch.Size = DefaultBatchSize
	}
	if c.Vendor.MaxTokens <= 0 {
		c.Vendor.MaxTokens = defaultMaxTokens
	}
	if c.Vendor.Temperature <= 0 {
		c.Vendor.Temperature = defaultTemperature
	}

	switch c.Vendor.Name {
	case "anthropic":
		if c.Vendor.Model == "" {
			c.Vendor.Model = defaultAnthropicName
		}
		if c.Vendor.APIKey == "" {
			c.Vendor.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "openai":
		if c.Vendor.Model == "" {
			c.Vendor.Model = defaultOpenAIName
		}
		if c.Vendor.APIKey == "" {
			c.Vendor.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// Validate checks the parts every command relies on.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("%w: namespace is required", domain.ErrInvalidInput)
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("%w: at least one field is required", domain.ErrInvalidInput)
	}
	if len(c.StreamFields()) == 0 {
		return fmt.Errorf("%w: every field is constant, nothing to translate", domain.ErrInvalidInput)
	}
	for name := range c.Constants {
		if !slices.Contains(c.Fields, name) {
			return fmt.Errorf("%w: constant field %q is not in fields", domain.ErrInvalidInput, name)
		}
	}
	if c.Vendor.Name != "anthropic" && c.Vendor.Name != "openai" {
		return fmt.Errorf("%w: vendor must be anthropic or openai, got %q", domain.ErrInvalidInput, c.Vendor.Name)
	}
	return nil
}
