package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tlacour/invoice-extractor/constants"
	"github.com/tlacour/invoice-extractor/internal/normalize"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS invoices (
	invoice_id      TEXT PRIMARY KEY,
	fournisseur     TEXT,
	montant_ht      REAL,
	numero_facture  TEXT,
	date_facture    TEXT,
	chrono          TEXT,
	couverture      TEXT,
	nom_fichier     TEXT NOT NULL,
	extraction_date TEXT NOT NULL,
	model_used      TEXT NOT NULL,
	confidence      REAL,
	status          TEXT NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	failure_reason  TEXT
);
CREATE INDEX IF NOT EXISTS idx_invoices_fournisseur ON invoices (fournisseur);
CREATE INDEX IF NOT EXISTS idx_invoices_numero_facture ON invoices (numero_facture);
CREATE INDEX IF NOT EXISTS idx_invoices_date_facture ON invoices (date_facture);
`

// SQLiteStore is the embedded InvoiceStore, the default for single-host
// deployments and tests.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ InvoiceStore = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the store at path. ":memory:" works.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	logger.Info("store.sqlite.open", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Put upserts the record by invoice_id.
func (s *SQLiteStore) Put(ctx context.Context, rec normalize.InvoiceRecord) error {
	const q = `
INSERT INTO invoices (
	invoice_id, fournisseur, montant_ht, numero_facture, date_facture,
	chrono, couverture, nom_fichier, extraction_date, model_used,
	confidence, status, attempts, failure_reason
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(invoice_id) DO UPDATE SET
	fournisseur = excluded.fournisseur,
	montant_ht = excluded.montant_ht,
	numero_facture = excluded.numero_facture,
	date_facture = excluded.date_facture,
	chrono = excluded.chrono,
	couverture = excluded.couverture,
	nom_fichier = excluded.nom_fichier,
	extraction_date = excluded.extraction_date,
	model_used = excluded.model_used,
	confidence = excluded.confidence,
	status = excluded.status,
	attempts = excluded.attempts,
	failure_reason = excluded.failure_reason`

	_, err := s.db.ExecContext(ctx, q,
		rec.InvoiceID, rec.Supplier, rec.AmountExclTax, rec.InvoiceNumber, rec.InvoiceDate,
		rec.Chrono, rec.PeriodCovered, rec.SourceFilename,
		rec.ExtractionTimestamp.Format(time.RFC3339), rec.ModelUsed,
		rec.Confidence, string(rec.Status), rec.Attempts, rec.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("put invoice %s: %w", rec.InvoiceID, err)
	}
	s.logger.Info("store.put", "invoice_id", rec.InvoiceID, "status", rec.Status)
	return nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, invoiceID string) (*normalize.InvoiceRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM invoices WHERE invoice_id = ?", invoiceID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice %s: %w", invoiceID, err)
	}
	return rec, nil
}

// Search queries by the indexed attributes.
func (s *SQLiteStore) Search(ctx context.Context, f Filter) ([]normalize.InvoiceRecord, error) {
	var conds []string
	var args []any
	if f.Supplier != "" {
		conds = append(conds, "fournisseur = ?")
		args = append(args, f.Supplier)
	}
	if f.InvoiceNumber != "" {
		conds = append(conds, "numero_facture = ?")
		args = append(args, f.InvoiceNumber)
	}
	if f.DateFrom != "" {
		conds = append(conds, "date_facture >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		conds = append(conds, "date_facture <= ?")
		args = append(args, f.DateTo)
	}

	q := selectColumns + " FROM invoices"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY date_facture, invoice_id"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search invoices: %w", err)
	}
	defer rows.Close()

	var out []normalize.InvoiceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

const selectColumns = `SELECT invoice_id, fournisseur, montant_ht, numero_facture, date_facture,
	chrono, couverture, nom_fichier, extraction_date, model_used,
	confidence, status, attempts, failure_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*normalize.InvoiceRecord, error) {
	var rec normalize.InvoiceRecord
	var extractionDate, status string
	err := row.Scan(
		&rec.InvoiceID, &rec.Supplier, &rec.AmountExclTax, &rec.InvoiceNumber, &rec.InvoiceDate,
		&rec.Chrono, &rec.PeriodCovered, &rec.SourceFilename, &extractionDate, &rec.ModelUsed,
		&rec.Confidence, &status, &rec.Attempts, &rec.FailureReason,
	)
	if err != nil {
		return nil, err
	}
	if t, perr := time.Parse(time.RFC3339, extractionDate); perr == nil {
		rec.ExtractionTimestamp = t
	}
	rec.Status = constants.ExtractionStatus(status)
	return &rec, nil
}
