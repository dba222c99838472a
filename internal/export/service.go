package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tlacour/invoice-extractor/internal/repository"
)

// Service is a tiny façade over the invoice store that produces XLSX bytes
// for exports.
type Service struct {
	store  repository.InvoiceStore
	logger *slog.Logger
}

func NewService(store repository.InvoiceStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportInvoicesXLSX returns an XLSX workbook (as bytes) for the given
// filter. Dates in the filter are inclusive, ISO formatted. Missing fields
// render as empty cells so the workbook is usable even for partial records.
func (s *Service) ExportInvoicesXLSX(ctx context.Context, f repository.Filter) ([]byte, error) {
	start := time.Now()

	recs, err := s.store.Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	wb := excelize.NewFile()
	const sheet = "Factures"
	if index, _ := wb.GetSheetIndex(sheet); index == -1 {
		if _, err := wb.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := wb.GetSheetIndex(sheet)
	wb.SetActiveSheet(activeIndex)
	// Drop the default sheet so the workbook only contains ours.
	_ = wb.DeleteSheet("Sheet1")

	headers := []string{
		"Fournisseur",
		"Montant HT",
		"Numéro facture",
		"Date facture",
		"Chrono",
		"Couverture",
		"Fichier source",
		"Statut",
		"Modèle",
		"Confiance",
		"Date extraction",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = wb.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = wb.SetCellValue(sheet, cell, v)
		}

		write(1, strOrEmpty(r.Supplier))
		if r.AmountExclTax != nil {
			write(2, *r.AmountExclTax)
		} else {
			write(2, "")
		}
		write(3, strOrEmpty(r.InvoiceNumber))
		write(4, strOrEmpty(r.InvoiceDate))
		write(5, strOrEmpty(r.Chrono))
		write(6, strOrEmpty(r.PeriodCovered))
		write(7, r.SourceFilename)
		write(8, string(r.Status))
		write(9, r.ModelUsed)
		if r.Confidence != nil {
			write(10, *r.Confidence)
		} else {
			write(10, "")
		}
		if !r.ExtractionTimestamp.IsZero() {
			write(11, r.ExtractionTimestamp.Format("2006-01-02"))
		} else {
			write(11, "")
		}

		row++
	}

	// Widen a few columns
	_ = wb.SetColWidth(sheet, "A", "A", 28) // supplier
	_ = wb.SetColWidth(sheet, "B", "B", 14) // amount
	_ = wb.SetColWidth(sheet, "C", "C", 20) // invoice number
	_ = wb.SetColWidth(sheet, "D", "D", 14) // date
	_ = wb.SetColWidth(sheet, "E", "F", 16) // chrono, period
	_ = wb.SetColWidth(sheet, "G", "G", 40) // source file
	_ = wb.SetColWidth(sheet, "K", "K", 16) // extraction date

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
