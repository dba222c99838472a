package normalize

import (
	"crypto/sha256"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tlacour/invoice-extractor/constants"
)

// idNamespace scopes the deterministic invoice ids. Fixed forever; changing
// it would re-key every stored document.
var idNamespace = uuid.MustParse("7b7f0f2e-4a1d-4c43-9c2b-5d7a93f10a55")

// DeterministicID derives the invoice id from a content fingerprint, so
// re-processing the same document produces the same id and the storage
// upsert stays idempotent.
func DeterministicID(data []byte) string {
	sum := sha256.Sum256(data)
	return uuid.NewSHA1(idNamespace, sum[:]).String()
}

// InvoiceRecord is the only entity that crosses the pipeline boundary into
// storage. Fields absent from the source are null, never omitted.
type InvoiceRecord struct {
	InvoiceID           string                     `json:"invoice_id"`
	Supplier            *string                    `json:"fournisseur"`
	AmountExclTax       *float64                   `json:"montant_ht"`
	InvoiceNumber       *string                    `json:"numero_facture"`
	InvoiceDate         *string                    `json:"date_facture"`
	Chrono              *string                    `json:"chrono"`
	PeriodCovered       *string                    `json:"couverture"`
	SourceFilename      string                     `json:"nom_fichier"`
	ExtractionTimestamp time.Time                  `json:"extraction_date"`
	ModelUsed           string                     `json:"model_used"`
	Confidence          *float64                   `json:"confidence"`
	Status              constants.ExtractionStatus `json:"status"`
	Attempts            int                        `json:"attempts"`
	FailureReason       *string                    `json:"failure_reason"`
}

// BuildRecord assembles the canonical record for one extraction. The id is
// assigned here exactly once.
func BuildRecord(fields Fields, sourceBytes []byte, sourceFilename, modelID string, attempts int) InvoiceRecord {
	rec := InvoiceRecord{
		InvoiceID:           DeterministicID(sourceBytes),
		Supplier:            fields.Supplier,
		AmountExclTax:       fields.AmountExclTax,
		InvoiceNumber:       fields.InvoiceNumber,
		InvoiceDate:         fields.InvoiceDate,
		Chrono:              fields.Chrono,
		PeriodCovered:       fields.PeriodCovered,
		SourceFilename:      sourceFilename,
		ExtractionTimestamp: time.Now().UTC(),
		ModelUsed:           modelID,
		Confidence:          fields.Confidence,
		Attempts:            attempts,
	}
	if fields.SourceFilename != nil && rec.SourceFilename == "" {
		rec.SourceFilename = *fields.SourceFilename
	}
	switch fields.CoreFieldCount() {
	case len(constants.CoreFields):
		rec.Status = constants.StatusExtracted
	default:
		rec.Status = constants.StatusPartial
	}
	return rec
}

// MarkFailed downgrades the record after the pipeline gave up, keeping
// whatever fields were salvaged.
func (r *InvoiceRecord) MarkFailed(reason string) {
	r.Status = constants.StatusFailed
	r.FailureReason = &reason
}

const recordSchema = `{
	"type": "object",
	"properties": {
		"invoice_id":     {"type": "string", "minLength": 36, "maxLength": 36},
		"fournisseur":    {"type": ["string", "null"], "minLength": 1},
		"montant_ht":     {"type": ["number", "null"]},
		"numero_facture": {"type": ["string", "null"], "minLength": 1},
		"date_facture":   {"type": ["string", "null"], "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
		"chrono":         {"type": ["string", "null"]},
		"couverture":     {"type": ["string", "null"]},
		"nom_fichier":    {"type": "string"},
		"model_used":     {"type": "string"},
		"confidence":     {"type": ["number", "null"], "minimum": 0, "maximum": 1},
		"status":         {"type": "string", "enum": ["EXTRACTED", "PARTIAL", "FAILED"]},
		"attempts":       {"type": "integer", "minimum": 0}
	},
	"required": ["invoice_id", "fournisseur", "montant_ht", "numero_facture", "date_facture", "nom_fichier", "status"]
}`

var compiledRecordSchema = jsonschema.MustCompileString("invoice-record.schema.json", recordSchema)

// ValidateRecord checks the record against the canonical schema. Advisory:
// callers log a warning on violation instead of failing the pipeline,
// since partial extraction is expected.
func ValidateRecord(rec InvoiceRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return compiledRecordSchema.Validate(v)
}
