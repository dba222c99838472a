package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tlacour/invoice-extractor/internal/repository"
)

var (
	querySupplier string
	queryNumber   string
	queryFrom     string
	queryTo       string
	queryLimit    int
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored invoice records",
	Long: `Query lists stored records, filtered by supplier, invoice number or
invoice date range (ISO dates, inclusive).

Examples:
  invoicectl query --supplier ORANGE
  invoicectl query --number FAC-2025-0042
  invoicectl query --from 2025-01-01 --to 2025-03-31 --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&querySupplier, "supplier", "s", "", "filter by supplier")
	queryCmd.Flags().StringVar(&queryNumber, "number", "", "filter by invoice number")
	queryCmd.Flags().StringVar(&queryFrom, "from", "", "invoice date lower bound (YYYY-MM-DD)")
	queryCmd.Flags().StringVar(&queryTo, "to", "", "invoice date upper bound (YYYY-MM-DD)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 100, "max results")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print records as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	recs, err := store.Search(cmd.Context(), repository.Filter{
		Supplier:      querySupplier,
		InvoiceNumber: queryNumber,
		DateFrom:      queryFrom,
		DateTo:        queryTo,
		Limit:         queryLimit,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Println("No records found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FOURNISSEUR\tMONTANT HT\tNUMÉRO\tDATE\tSTATUT\tFICHIER")
	for _, r := range recs {
		amount := ""
		if r.AmountExclTax != nil {
			amount = fmt.Sprintf("%.2f", *r.AmountExclTax)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			orDash(r.Supplier), amount, orDash(r.InvoiceNumber),
			orDash(r.InvoiceDate), r.Status, r.SourceFilename)
	}
	return w.Flush()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
