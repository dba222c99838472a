package llm

import (
	"strings"
	"testing"
)

func TestBuildInvoicePrompt(t *testing.T) {
	p := BuildInvoicePrompt("Facture ORANGE\nMontant HT: 102,50", "facture_orange.pdf")

	for _, want := range []string{
		"fournisseur",
		"montant_ht",
		"numero_facture",
		"date_facture",
		"chrono",
		"couverture",
		"nom_fichier",
		"facture_orange.pdf",
		"Facture ORANGE",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildInvoicePrompt_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("ligne de facture avec beaucoup de texte\n", 2000)
	p := BuildInvoicePrompt(long, "grosse_facture.pdf")

	if !strings.Contains(p, "[texte tronqué]") {
		t.Error("prompt missing the truncation marker")
	}
	if len(p) >= len(long) {
		t.Errorf("prompt length %d, want shorter than input %d", len(p), len(long))
	}
}
