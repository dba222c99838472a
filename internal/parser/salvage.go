package parser

import (
	"regexp"
	"strings"

	"github.com/tlacour/invoice-extractor/constants"
)

// Last-resort field patterns for responses where no JSON object parses at
// all. The retry loop usually recovers first; this only feeds the
// record-what-we-could terminal record.
var salvagePatterns = map[string]*regexp.Regexp{
	constants.FieldSupplier:      regexp.MustCompile(`(?i)(?:fournisseur|supplier|vendeur)\s*[:\s]\s*([^\n]+)`),
	constants.FieldAmountExclTax: regexp.MustCompile(`(?i)(?:montant|amount|total)\s*[:\s]\s*([\d,.]+)\s*€?`),
	constants.FieldInvoiceNumber: regexp.MustCompile(`(?i)(?:numero|numéro|facture|invoice)[\s#:]+([A-Za-z0-9\-_]+)`),
	constants.FieldInvoiceDate:   regexp.MustCompile(`(?i)(?:date|date facture)\s*[:\s]\s*(\d{2}[/-]\d{2}[/-]\d{4}|\d{4}[/-]\d{2}[/-]\d{2})`),
}

var reLooseAmount = regexp.MustCompile(`(\d+[.,]\d{2})\s*€`)

// Salvage scans free text for invoice fields when JSON extraction has
// failed on every attempt. Returns a (possibly empty) raw object in the
// canonical key space; the normalizer handles coercion as usual.
func Salvage(raw string) map[string]any {
	out := make(map[string]any)
	for field, re := range salvagePatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			out[field] = strings.TrimSpace(m[1])
		}
	}
	if _, ok := out[constants.FieldAmountExclTax]; !ok {
		if m := reLooseAmount.FindStringSubmatch(raw); m != nil {
			out[constants.FieldAmountExclTax] = m[1]
		}
	}
	return out
}
