package normalize

import (
	"strings"

	"github.com/tlacour/invoice-extractor/constants"
)

// SynonymTable maps a canonical field name to the alternate spellings the
// models produce for it. Matching is case-insensitive; order matters, the
// first alternate present in the source object wins.
//
// The table is an immutable configuration value injected into the
// Normalizer, never package-level mutable state, so per-locale or
// per-tenant sets can be swapped in without code change.
type SynonymTable map[string][]string

// DefaultSynonyms covers the French and English spellings seen in
// production responses, including the verbose human-readable variants.
func DefaultSynonyms() SynonymTable {
	return SynonymTable{
		constants.FieldSupplier: {
			"fournisseur", "supplier", "vendor", "vendeur", "emetteur", "émetteur",
			"nom du fournisseur", "supplier name",
		},
		constants.FieldAmountExclTax: {
			"montant_ht", "montant ht", "montant", "amount", "total",
			"amount_excl_tax", "montant hors taxes", "total_ht", "net_amount",
		},
		constants.FieldInvoiceNumber: {
			"numero_facture", "numéro_facture", "numero", "numéro",
			"invoice_number", "facture_numero", "invoice_no", "numéro de facture",
		},
		constants.FieldInvoiceDate: {
			"date_facture", "date", "invoice_date", "date de facture",
			"date de la facture",
		},
		constants.FieldChrono: {
			"chrono", "numero_chrono", "chrono_number", "document_chrono",
			"le numero chrono du document",
		},
		constants.FieldPeriodCovered: {
			"couverture", "periode_couverture", "periode", "période", "period",
			"coverage_period", "period_covered", "la période de couverture",
		},
		constants.FieldSourceFile: {
			"nom_fichier", "filename", "file_name", "nom du fichier",
		},
		constants.FieldConfidence: {
			"confidence", "confiance", "confidence_score",
		},
	}
}

// RecognizedKeys flattens the table into every key spelling, canonical
// names included. The response parser uses this set to rank candidates.
func (t SynonymTable) RecognizedKeys() []string {
	var keys []string
	seen := make(map[string]struct{})
	add := func(k string) {
		k = strings.ToLower(strings.TrimSpace(k))
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for canonical, alts := range t {
		add(canonical)
		for _, a := range alts {
			add(a)
		}
	}
	return keys
}

// lookup returns the value for canonical in raw, scanning the alternates
// in table order against lowercased source keys.
func (t SynonymTable) lookup(canonical string, raw map[string]any) (any, bool) {
	lowered := make(map[string]any, len(raw))
	for k, v := range raw {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}
	if v, ok := lowered[strings.ToLower(canonical)]; ok {
		return v, true
	}
	for _, alt := range t[canonical] {
		if v, ok := lowered[strings.ToLower(alt)]; ok {
			return v, true
		}
	}
	return nil, false
}
