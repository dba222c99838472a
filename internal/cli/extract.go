package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tlacour/invoice-extractor/internal/extract"
	"github.com/tlacour/invoice-extractor/internal/normalize"
	"github.com/tlacour/invoice-extractor/internal/parser"
	"github.com/tlacour/invoice-extractor/internal/pipeline"
)

var (
	extractModelID string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf> [file.pdf...]",
	Short: "Extract invoice fields from one or more PDF files",
	Long: `Extract runs the full pipeline on each PDF: text extraction, model
invocation, parsing, normalization and storage. The resulting record is
printed as JSON.

A document that fails extraction is still recorded with status FAILED;
extract continues with the remaining files and exits non-zero if any
document failed.

Examples:
  invoicectl extract facture_orange_2025-11.pdf
  invoicectl extract --model ollama:mistral invoices/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractModelID, "model", "m", "", "model ID (default from MODEL_ID)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	registry := buildRegistry(ctx)
	synonyms := normalize.DefaultSynonyms()
	orch := pipeline.NewOrchestrator(
		cfg.Pipeline,
		cfg.Model,
		extract.NewPDFExtractor(cfg.Pipeline.MinTextLength, logger),
		registry,
		parser.New(synonyms.RecognizedKeys(), logger),
		normalize.NewNormalizer(synonyms, logger),
		normalize.NewSupplierCorrector(cfg.Supplier.KnownClients, cfg.Supplier.KnownSuppliers, logger),
		store,
		logger,
	)

	var failed []string
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read %s: %v\n", path, err)
			failed = append(failed, path)
			continue
		}

		rec, err := orch.Run(ctx, pipeline.Request{
			SourceID: path,
			Data:     data,
			ModelID:  extractModelID,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: extract %s: %v\n", filepath.Base(path), err)
			failed = append(failed, path)
		}
		// Even on failure a record exists: print what was salvaged.
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d documents failed: %s",
			len(failed), len(args), strings.Join(failed, ", "))
	}
	return nil
}
