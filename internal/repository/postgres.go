package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tlacour/invoice-extractor/constants"
	"github.com/tlacour/invoice-extractor/internal/normalize"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS invoices (
	invoice_id      TEXT PRIMARY KEY,
	fournisseur     TEXT,
	montant_ht      DOUBLE PRECISION,
	numero_facture  TEXT,
	date_facture    TEXT,
	chrono          TEXT,
	couverture      TEXT,
	nom_fichier     TEXT NOT NULL,
	extraction_date TIMESTAMPTZ NOT NULL,
	model_used      TEXT NOT NULL,
	confidence      DOUBLE PRECISION,
	status          TEXT NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	failure_reason  TEXT
);
CREATE INDEX IF NOT EXISTS idx_invoices_fournisseur ON invoices (fournisseur);
CREATE INDEX IF NOT EXISTS idx_invoices_numero_facture ON invoices (numero_facture);
CREATE INDEX IF NOT EXISTS idx_invoices_date_facture ON invoices (date_facture);
`

// PostgresStore is the shared InvoiceStore for multi-host deployments.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ InvoiceStore = (*PostgresStore)(nil)

// OpenPostgres connects a pgx pool and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string, dialTimeout time.Duration, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "invoice-extractor"

	if dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	logger.Info("store.postgres.open")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Put upserts the record by invoice_id.
func (s *PostgresStore) Put(ctx context.Context, rec normalize.InvoiceRecord) error {
	const q = `
INSERT INTO invoices (
	invoice_id, fournisseur, montant_ht, numero_facture, date_facture,
	chrono, couverture, nom_fichier, extraction_date, model_used,
	confidence, status, attempts, failure_reason
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (invoice_id) DO UPDATE SET
	fournisseur = EXCLUDED.fournisseur,
	montant_ht = EXCLUDED.montant_ht,
	numero_facture = EXCLUDED.numero_facture,
	date_facture = EXCLUDED.date_facture,
	chrono = EXCLUDED.chrono,
	couverture = EXCLUDED.couverture,
	nom_fichier = EXCLUDED.nom_fichier,
	extraction_date = EXCLUDED.extraction_date,
	model_used = EXCLUDED.model_used,
	confidence = EXCLUDED.confidence,
	status = EXCLUDED.status,
	attempts = EXCLUDED.attempts,
	failure_reason = EXCLUDED.failure_reason`

	_, err := s.pool.Exec(ctx, q,
		rec.InvoiceID, rec.Supplier, rec.AmountExclTax, rec.InvoiceNumber, rec.InvoiceDate,
		rec.Chrono, rec.PeriodCovered, rec.SourceFilename, rec.ExtractionTimestamp, rec.ModelUsed,
		rec.Confidence, string(rec.Status), rec.Attempts, rec.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("put invoice %s: %w", rec.InvoiceID, err)
	}
	s.logger.Info("store.put", "invoice_id", rec.InvoiceID, "status", rec.Status)
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, invoiceID string) (*normalize.InvoiceRecord, error) {
	row := s.pool.QueryRow(ctx, pgSelectColumns+" FROM invoices WHERE invoice_id = $1", invoiceID)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice %s: %w", invoiceID, err)
	}
	return rec, nil
}

// Search queries by the indexed attributes.
func (s *PostgresStore) Search(ctx context.Context, f Filter) ([]normalize.InvoiceRecord, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Supplier != "" {
		conds = append(conds, "fournisseur = "+arg(f.Supplier))
	}
	if f.InvoiceNumber != "" {
		conds = append(conds, "numero_facture = "+arg(f.InvoiceNumber))
	}
	if f.DateFrom != "" {
		conds = append(conds, "date_facture >= "+arg(f.DateFrom))
	}
	if f.DateTo != "" {
		conds = append(conds, "date_facture <= "+arg(f.DateTo))
	}

	q := pgSelectColumns + " FROM invoices"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY date_facture, invoice_id"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search invoices: %w", err)
	}
	defer rows.Close()

	var out []normalize.InvoiceRecord
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

const pgSelectColumns = `SELECT invoice_id, fournisseur, montant_ht, numero_facture, date_facture,
	chrono, couverture, nom_fichier, extraction_date, model_used,
	confidence, status, attempts, failure_reason`

func scanPgRecord(row pgx.Row) (*normalize.InvoiceRecord, error) {
	var rec normalize.InvoiceRecord
	var status string
	err := row.Scan(
		&rec.InvoiceID, &rec.Supplier, &rec.AmountExclTax, &rec.InvoiceNumber, &rec.InvoiceDate,
		&rec.Chrono, &rec.PeriodCovered, &rec.SourceFilename, &rec.ExtractionTimestamp, &rec.ModelUsed,
		&rec.Confidence, &status, &rec.Attempts, &rec.FailureReason,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = constants.ExtractionStatus(status)
	return &rec, nil
}
