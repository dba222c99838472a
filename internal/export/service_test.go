package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tlacour/invoice-extractor/constants"
	"github.com/tlacour/invoice-extractor/internal/normalize"
	"github.com/tlacour/invoice-extractor/internal/repository"
)

func strp(v string) *string   { return &v }
func f64p(v float64) *float64 { return &v }

func seededStore(t *testing.T) repository.InvoiceStore {
	t.Helper()
	ctx := context.Background()
	s, err := repository.OpenSQLite(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	recs := []normalize.InvoiceRecord{
		{
			InvoiceID:           "id-orange",
			Supplier:            strp("ORANGE"),
			AmountExclTax:       f64p(102.50),
			InvoiceNumber:       strp("FAC-0042"),
			InvoiceDate:         strp("2025-11-19"),
			Chrono:              strp("2025-117"),
			SourceFilename:      "facture_orange.pdf",
			ExtractionTimestamp: time.Date(2025, 11, 20, 9, 30, 0, 0, time.UTC),
			ModelUsed:           "anthropic.claude-v2",
			Status:              constants.StatusExtracted,
			Attempts:            1,
		},
		{
			InvoiceID:           "id-partial",
			Supplier:            strp("SFR"),
			SourceFilename:      "scan0001.pdf",
			ExtractionTimestamp: time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC),
			ModelUsed:           "anthropic.claude-v2",
			Status:              constants.StatusPartial,
			Attempts:            2,
		},
	}
	for _, r := range recs {
		if err := s.Put(ctx, r); err != nil {
			t.Fatalf("Put(%s) error = %v", r.InvoiceID, err)
		}
	}
	return s
}

func TestExportInvoicesXLSX(t *testing.T) {
	svc := NewService(seededStore(t), nil)

	data, err := svc.ExportInvoicesXLSX(context.Background(), repository.Filter{})
	if err != nil {
		t.Fatalf("ExportInvoicesXLSX() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("ExportInvoicesXLSX() returned no bytes")
	}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = wb.Close() }()

	rows, err := wb.GetRows("Factures")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2 records", len(rows))
	}

	if rows[0][0] != "Fournisseur" || rows[0][3] != "Date facture" {
		t.Errorf("header row = %v", rows[0])
	}

	// records sort by invoice date, the partial one has none and comes first
	partial := rows[1]
	if partial[0] != "SFR" {
		t.Errorf("partial supplier = %q, want SFR", partial[0])
	}
	if len(partial) > 1 && partial[1] != "" {
		t.Errorf("partial amount = %q, want empty", partial[1])
	}

	full := rows[2]
	if full[0] != "ORANGE" {
		t.Errorf("supplier = %q, want ORANGE", full[0])
	}
	if full[1] != "102.5" {
		t.Errorf("amount = %q, want 102.5", full[1])
	}
	if full[2] != "FAC-0042" {
		t.Errorf("invoice number = %q", full[2])
	}
	if full[3] != "2025-11-19" {
		t.Errorf("invoice date = %q", full[3])
	}
	if full[7] != "EXTRACTED" {
		t.Errorf("status = %q", full[7])
	}
	if full[10] != "2025-11-20" {
		t.Errorf("extraction date = %q, want 2025-11-20", full[10])
	}
}

func TestExportInvoicesXLSX_Filtered(t *testing.T) {
	svc := NewService(seededStore(t), nil)

	data, err := svc.ExportInvoicesXLSX(context.Background(), repository.Filter{Supplier: "ORANGE"})
	if err != nil {
		t.Fatalf("ExportInvoicesXLSX() error = %v", err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = wb.Close() }()

	rows, err := wb.GetRows("Factures")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1 record", len(rows))
	}
	if rows[1][0] != "ORANGE" {
		t.Errorf("supplier = %q, want ORANGE", rows[1][0])
	}
}

func TestExportInvoicesXLSX_EmptyStore(t *testing.T) {
	s, err := repository.OpenSQLite(context.Background(), ":memory:", nil)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	svc := NewService(s, nil)
	data, err := svc.ExportInvoicesXLSX(context.Background(), repository.Filter{})
	if err != nil {
		t.Fatalf("ExportInvoicesXLSX() error = %v", err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = wb.Close() }()

	rows, err := wb.GetRows("Factures")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows, want header only", len(rows))
	}
}
