package parser

import (
	"errors"
	"testing"

	"github.com/tlacour/invoice-extractor/internal/common"
	"github.com/tlacour/invoice-extractor/internal/normalize"
)

func newTestParser() *Parser {
	return New(normalize.DefaultSynonyms().RecognizedKeys(), nil)
}

func TestParse_FencedBlockWithProse(t *testing.T) {
	raw := "Voici les informations extraites de la facture :\n\n" +
		"```json\n" +
		"{\"fournisseur\": \"ORANGE\", \"montant_ht\": \"102,50\", \"numero_facture\": \"FAC-0042\"}\n" +
		"```\n\n" +
		"N'hésitez pas si vous avez d'autres questions."

	obj, err := newTestParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := obj["fournisseur"]; got != "ORANGE" {
		t.Errorf("fournisseur = %v, want ORANGE", got)
	}
	if got := obj["numero_facture"]; got != "FAC-0042" {
		t.Errorf("numero_facture = %v, want FAC-0042", got)
	}
}

func TestParse_FenceWithoutLanguageTag(t *testing.T) {
	raw := "```\n{\"fournisseur\": \"SFR\"}\n```"
	obj, err := newTestParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := obj["fournisseur"]; got != "SFR" {
		t.Errorf("fournisseur = %v, want SFR", got)
	}
}

func TestParse_BareObject(t *testing.T) {
	obj, err := newTestParser().Parse(`{"fournisseur": "OVH", "montant_ht": 42.10}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := obj["montant_ht"]; got != 42.10 {
		t.Errorf("montant_ht = %v, want 42.10", got)
	}
}

func TestParse_PicksCandidateWithMostRecognizedKeys(t *testing.T) {
	// The first object is an example echoed back from the prompt; the
	// second is the actual answer and carries more recognized keys.
	raw := `Un exemple de format : {"fournisseur": null}
Résultat :
{"fournisseur": "CEGEDIM", "montant_ht": "150.00", "numero_facture": "F-1", "date_facture": "2025-11-19", "chrono": "2025-117"}`

	obj, err := newTestParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := obj["fournisseur"]; got != "CEGEDIM" {
		t.Errorf("fournisseur = %v, want CEGEDIM", got)
	}
	if _, ok := obj["chrono"]; !ok {
		t.Errorf("selected candidate is missing chrono, picked the wrong object: %v", obj)
	}
}

func TestParse_FirstCandidateWinsTies(t *testing.T) {
	raw := `{"fournisseur": "FIRST"} puis {"fournisseur": "SECOND"}`
	obj, err := newTestParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := obj["fournisseur"]; got != "FIRST" {
		t.Errorf("fournisseur = %v, want FIRST", got)
	}
}

func TestParse_LenientMalformations(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "trailing comma",
			raw:  `{"fournisseur": "FREE", "montant_ht": "12.00",}`,
		},
		{
			name: "smart quotes",
			raw:  `{“fournisseur”: “BOUYGUES”}`,
		},
		{
			name: "guillemets",
			raw:  `{«fournisseur»: «BOUYGUES»}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := newTestParser().Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.raw, err)
			}
			if _, ok := obj["fournisseur"]; !ok {
				t.Errorf("Parse(%q) = %v, missing fournisseur", tt.raw, obj)
			}
		})
	}
}

func TestParse_NoJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "prose only", raw: "Je suis désolé, je ne peux pas lire ce document."},
		{name: "bare array", raw: `["fournisseur", "montant_ht"]`},
		{name: "unbalanced", raw: `{"fournisseur": "ORANGE"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestParser().Parse(tt.raw)
			if !errors.Is(err, common.ErrNoJSONFound) {
				t.Errorf("Parse(%q) error = %v, want ErrNoJSONFound", tt.raw, err)
			}
		})
	}
}

func TestParse_AmbiguousWhenNoRecognizedKeys(t *testing.T) {
	raw := `{"foo": 1} and {"bar": 2}`
	_, err := newTestParser().Parse(raw)
	if !errors.Is(err, common.ErrAmbiguousJSON) {
		t.Errorf("Parse(%q) error = %v, want ErrAmbiguousJSON", raw, err)
	}
}

func TestParse_SingleUnrecognizedObjectStillReturned(t *testing.T) {
	// One candidate is never ambiguous, even with zero recognized keys.
	obj, err := newTestParser().Parse(`{"foo": 1}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := obj["foo"]; got != 1.0 {
		t.Errorf("foo = %v, want 1", got)
	}
}

func TestParse_BracesInsideStrings(t *testing.T) {
	raw := `{"fournisseur": "ACME {SAS}", "numero_facture": "F-}1{"}`
	obj, err := newTestParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := obj["fournisseur"]; got != "ACME {SAS}" {
		t.Errorf("fournisseur = %v, want ACME {SAS}", got)
	}
}

func TestBalancedSpans(t *testing.T) {
	spans := balancedSpans(`pre {"a": {"b": 1}} mid {"c": 2} post`)
	if len(spans) != 2 {
		t.Fatalf("balancedSpans() = %d spans, want 2: %v", len(spans), spans)
	}
	if spans[0] != `{"a": {"b": 1}}` {
		t.Errorf("spans[0] = %q", spans[0])
	}
	if spans[1] != `{"c": 2}` {
		t.Errorf("spans[1] = %q", spans[1])
	}
}
