// Package cli provides the cobra command-line interface for the
// transbatch pipeline.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	batchanthropic "github.com/mcslab/transbatch-cli/internal/adapters/driven/batch/anthropic"
	batchopenai "github.com/mcslab/transbatch-cli/internal/adapters/driven/batch/openai"
	"github.com/mcslab/transbatch-cli/internal/adapters/driven/config/file"
	"github.com/mcslab/transbatch-cli/internal/adapters/driven/status/sqlite"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driven"
	"github.com/mcslab/transbatch-cli/internal/core/services"
	"github.com/mcslab/transbatch-cli/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	cfgPath string
	verbose bool

	// appConfig is loaded once in the persistent pre-run and shared
	// by every command.
	appConfig *file.Config

	// statusStore is opened lazily; commands that never touch the
	// store should not create the database.
	statusStore *sqlite.Store
)

var rootCmd = &cobra.Command{
	Use:   "transbatch",
	Short: "Batch-translation dataset pipeline",
	Long: `Transbatch prepares instruction-tuning datasets for batch translation,
submits the batches to an LLM vendor, reconciles the downloaded result
streams and merges them into a single training file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)

		path := cfgPath
		if path == "" {
			var err error
			path, err = file.DefaultPath()
			if err != nil {
				return err
			}
		}

		cfg, err := file.Load(path)
		if err != nil {
			return err
		}
		appConfig = cfg
		logger.Debug("Config loaded (namespace %s, vendor %s)", cfg.Namespace, cfg.Vendor.Name)
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if statusStore != nil {
			statusStore.Close()
			statusStore = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default ~/.transbatch/config.toml)")
}

// Execute runs the root command. The version string is injected from
// main.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}

// newBatchClient builds the vendor client from config.
func newBatchClient() (driven.BatchClient, error) {
	switch appConfig.Vendor.Name {
	case "anthropic":
		return batchanthropic.NewClient(batchanthropic.Config{
			APIKey:  appConfig.Vendor.APIKey,
			BaseURL: appConfig.Vendor.BaseURL,
		})
	case "openai":
		return batchopenai.NewClient(batchopenai.Config{
			APIKey:  appConfig.Vendor.APIKey,
			BaseURL: appConfig.Vendor.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown vendor %q", appConfig.Vendor.Name)
	}
}

// newStatusStore opens (once per invocation) the SQLite status store.
func newStatusStore() (*sqlite.Store, error) {
	if statusStore != nil {
		return statusStore, nil
	}
	store, err := sqlite.NewStore(appConfig.Paths.Data)
	if err != nil {
		return nil, fmt.Errorf("open status store: %w", err)
	}
	statusStore = store
	return store, nil
}

// newSubmitService wires the submit service from config.
func newSubmitService() (*services.SubmitService, error) {
	client, err := newBatchClient()
	if err != nil {
		return nil, err
	}
	store, err := newStatusStore()
	if err != nil {
		return nil, err
	}
	return services.NewSubmitService(client, store, services.SubmitConfig{
		BatchesDir:  appConfig.Paths.Batches,
		ResultsDir:  appConfig.Paths.Results,
		SubmitDelay: appConfig.SubmitDelay(),
	}), nil
}

// newPrepareService wires the prepare service from config.
func newPrepareService() (*services.PrepareService, error) {
	prompts, err := file.NewPromptStore("")
	if err != nil {
		return nil, err
	}
	return services.NewPrepareService(prompts, services.PrepareConfig{
		SourcePath:  appConfig.Paths.Source,
		BatchesDir:  appConfig.Paths.Batches,
		Namespace:   appConfig.Namespace,
		Vendor:      appConfig.Vendor.Name,
		Model:       appConfig.Vendor.Model,
		MaxTokens:   appConfig.Vendor.MaxTokens,
		Temperature: appConfig.Vendor.Temperature,
		BatchSize:   appConfig.Batch.Size,
	}), nil
}

// newReconcileService wires the reconcile service from config.
func newReconcileService() *services.ReconcileService {
	return services.NewReconcileService(appConfig.Paths.Results, appConfig.StreamFields())
}

// newMergeService wires the merge service from config.
func newMergeService() *services.MergeService {
	return services.NewMergeService(appConfig.Paths.Results, appConfig.Fields,
		appConfig.Constants, appConfig.Paths.Merged)
}

// resolveFields returns the fields a command should operate on: the
// explicit argument if given, otherwise every configured stream field.
func resolveFields(args []string) []string {
	if len(args) > 0 {
		return args
	}
	return appConfig.StreamFields()
}
