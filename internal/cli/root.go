// Package cli provides the command-line interface for the invoice
// extractor.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tlacour/invoice-extractor/constants"
	"github.com/tlacour/invoice-extractor/internal/common"
	"github.com/tlacour/invoice-extractor/internal/llm"
	"github.com/tlacour/invoice-extractor/internal/llm/bedrock"
	"github.com/tlacour/invoice-extractor/internal/llm/ollama"
	"github.com/tlacour/invoice-extractor/internal/llm/openai"
	"github.com/tlacour/invoice-extractor/internal/repository"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool
	logFile string

	// Loaded in PersistentPreRunE, shared by all subcommands.
	cfg       *common.Config
	logger    *slog.Logger
	logCloser func() error
	store     repository.InvoiceStore
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "invoicectl",
	Short: "Extract structured fields from PDF invoices with an LLM",
	Long: `Invoicectl reads the text layer of PDF invoices, asks a language model
for the accounting fields (fournisseur, montant HT, numéro et date de
facture, chrono, couverture), normalizes the answer and stores one
record per document.

Records can then be queried or exported to an XLSX workbook.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = common.LoadConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCloser = common.SetupLogger(logFile, level)
		slog.SetDefault(logger)

		var err error
		store, err = openStore(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
			}
		}
		if logCloser != nil {
			_ = logCloser()
		}
	},
}

func openStore(ctx context.Context, cfg *common.Config) (repository.InvoiceStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return repository.OpenPostgres(ctx, cfg.Store.DSN, cfg.Store.DialTimeout, logger)
	default:
		return repository.OpenSQLite(ctx, cfg.Store.SQLitePath, logger)
	}
}

// buildRegistry wires every available model adapter. Bedrock families are
// best effort: a host without AWS credentials can still use openai or
// ollama models.
func buildRegistry(ctx context.Context) *llm.Registry {
	registry := llm.NewRegistry(logger)

	bedrockFamilies := []constants.ModelFamily{
		constants.FamilyAnthropic,
		constants.FamilyMeta,
		constants.FamilyTitan,
		constants.FamilyAI21,
		constants.FamilyCohere,
	}
	for _, family := range bedrockFamilies {
		adapter, err := bedrock.New(ctx, family, logger)
		if err != nil {
			logger.Warn("cli.bedrock_unavailable", "family", family, "error", err)
			continue
		}
		registry.Register(adapter)
	}

	registry.Register(openai.New(openai.Config{
		APIKey:  cfg.Model.OpenAIAPIKey,
		BaseURL: cfg.Model.OpenAIBaseURL,
	}, logger))
	registry.Register(ollama.New(cfg.Model.OllamaHost, logger))

	return registry
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(exportCmd)
}
