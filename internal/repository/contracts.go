// Package repository persists canonical invoice records. The pipeline
// only depends on the InvoiceStore interface; index provisioning and
// schema management belong to the implementations.
package repository

import (
	"context"
	"errors"

	"github.com/tlacour/invoice-extractor/internal/normalize"
)

// ErrNotFound is returned when no record matches the given id.
var ErrNotFound = errors.New("invoice not found")

// Filter narrows a Search. Zero values mean "any". Dates are ISO 8601.
type Filter struct {
	Supplier      string
	InvoiceNumber string
	DateFrom      string
	DateTo        string
	Limit         int
}

// InvoiceStore is the storage collaborator. Put is an upsert keyed on
// invoice_id so retried deliveries of the same source never duplicate
// records; supplier, invoice number and invoice date are indexed for
// lookup.
type InvoiceStore interface {
	Put(ctx context.Context, rec normalize.InvoiceRecord) error
	GetByID(ctx context.Context, invoiceID string) (*normalize.InvoiceRecord, error)
	Search(ctx context.Context, f Filter) ([]normalize.InvoiceRecord, error)
	Close() error
}
