package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tlacour/invoice-extractor/internal/export"
	"github.com/tlacour/invoice-extractor/internal/repository"
)

var (
	exportOut      string
	exportSupplier string
	exportFrom     string
	exportTo       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored invoice records to an XLSX workbook",
	Long: `Export writes the matching records to an XLSX workbook, one row per
invoice, in the column layout the accounting team expects.

Examples:
  invoicectl export -o factures.xlsx
  invoicectl export -o orange-q1.xlsx --supplier ORANGE --from 2025-01-01 --to 2025-03-31`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "invoices.xlsx", "output file")
	exportCmd.Flags().StringVarP(&exportSupplier, "supplier", "s", "", "filter by supplier")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "invoice date lower bound (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "invoice date upper bound (YYYY-MM-DD)")
}

func runExport(cmd *cobra.Command, args []string) error {
	svc := export.NewService(store, logger)
	data, err := svc.ExportInvoicesXLSX(cmd.Context(), repository.Filter{
		Supplier: exportSupplier,
		DateFrom: exportFrom,
		DateTo:   exportTo,
	})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if err := os.WriteFile(exportOut, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", exportOut, len(data))
	return nil
}
