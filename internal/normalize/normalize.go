// Package normalize maps the parser's raw JSON object onto the canonical
// invoice schema: synonym resolution, type coercion, advisory validation.
// Normalization never fails on unknown input; unrecognized keys are
// dropped and missing canonical fields become null.
package normalize

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tlacour/invoice-extractor/constants"
)

// Fields is the normalized shape of one extraction. Nil means the field
// was absent or uncoercible in the source; it is stored as null, never
// omitted, to keep the schema stable for downstream queries.
type Fields struct {
	Supplier       *string
	AmountExclTax  *float64
	InvoiceNumber  *string
	InvoiceDate    *string // ISO 8601 (YYYY-MM-DD)
	Chrono         *string
	PeriodCovered  *string
	SourceFilename *string
	Confidence     *float64
}

// CoreFieldCount returns how many of the core fields are set.
func (f Fields) CoreFieldCount() int {
	n := 0
	if f.Supplier != nil {
		n++
	}
	if f.AmountExclTax != nil {
		n++
	}
	if f.InvoiceNumber != nil {
		n++
	}
	if f.InvoiceDate != nil {
		n++
	}
	return n
}

type Normalizer struct {
	synonyms SynonymTable
	logger   *slog.Logger
}

func NewNormalizer(synonyms SynonymTable, logger *slog.Logger) *Normalizer {
	if synonyms == nil {
		synonyms = DefaultSynonyms()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{synonyms: synonyms, logger: logger}
}

// Synonyms exposes the injected table (for the parser's recognized set).
func (n *Normalizer) Synonyms() SynonymTable { return n.synonyms }

// Normalize coerces raw onto the canonical schema. Idempotent: feeding a
// canonical-schema object back through yields the same result.
func (n *Normalizer) Normalize(raw map[string]any) Fields {
	var f Fields
	if v, ok := n.synonyms.lookup(constants.FieldSupplier, raw); ok {
		f.Supplier = coerceString(v)
	}
	if v, ok := n.synonyms.lookup(constants.FieldAmountExclTax, raw); ok {
		f.AmountExclTax = coerceAmount(v)
	}
	if v, ok := n.synonyms.lookup(constants.FieldInvoiceNumber, raw); ok {
		f.InvoiceNumber = coerceString(v)
	}
	if v, ok := n.synonyms.lookup(constants.FieldInvoiceDate, raw); ok {
		f.InvoiceDate = coerceDate(v)
	}
	if v, ok := n.synonyms.lookup(constants.FieldChrono, raw); ok {
		f.Chrono = coerceString(v)
	}
	if v, ok := n.synonyms.lookup(constants.FieldPeriodCovered, raw); ok {
		f.PeriodCovered = coerceString(v)
	}
	if v, ok := n.synonyms.lookup(constants.FieldSourceFile, raw); ok {
		f.SourceFilename = coerceString(v)
	}
	if v, ok := n.synonyms.lookup(constants.FieldConfidence, raw); ok {
		f.Confidence = coerceConfidence(v)
	}

	if f.CoreFieldCount() == 0 {
		n.logger.Warn("normalize.empty_core_fields", "raw_keys", len(raw))
	}
	return f
}

// coerceString trims and rejects empty or literal-null values. Numbers are
// formatted without a decimal point when integral (chrono numbers arrive
// as JSON numbers).
func coerceString(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			s = strconv.FormatInt(int64(t), 10)
		} else {
			s = strconv.FormatFloat(t, 'f', -1, 64)
		}
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = strings.TrimSpace(fmt.Sprintf("%v", t))
	}
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
		return nil
	}
	return &s
}

// coerceAmount parses numeric strings into a decimal amount, stripping
// currency symbols and thousands separators and accepting the French
// decimal comma ("102,50 €" and "102.50" both yield 102.50).
func coerceAmount(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return &t
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			return nil
		}
		var b strings.Builder
		for _, r := range s {
			switch {
			case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
				b.WriteRune(r)
			}
		}
		cleaned := b.String()
		lastComma := strings.LastIndex(cleaned, ",")
		lastDot := strings.LastIndex(cleaned, ".")
		switch {
		case lastComma >= 0 && lastDot >= 0:
			// the later separator is the decimal one
			if lastComma > lastDot {
				cleaned = strings.ReplaceAll(cleaned, ".", "")
				cleaned = strings.Replace(cleaned, ",", ".", 1)
			} else {
				cleaned = strings.ReplaceAll(cleaned, ",", "")
			}
		case lastComma >= 0:
			if strings.Count(cleaned, ",") > 1 {
				cleaned = strings.ReplaceAll(cleaned, ",", "")
			} else {
				cleaned = strings.Replace(cleaned, ",", ".", 1)
			}
		case strings.Count(cleaned, ".") > 1:
			cleaned = strings.Replace(cleaned, ".", "", strings.Count(cleaned, ".")-1)
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// dateLayouts are tried in order. Numeric day/month forms are day-first:
// the corpus is French paperwork, 19/11/2025 means November 19th.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02/01/06",
	time.RFC3339,
}

// coerceDate normalizes the accepted input formats to ISO 8601, falling
// back to nil (not an error) when unparseable.
func coerceDate(v any) *string {
	s := coerceString(v)
	if s == nil {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			iso := t.Format("2006-01-02")
			return &iso
		}
	}
	return nil
}

func coerceConfidence(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return &f
}
