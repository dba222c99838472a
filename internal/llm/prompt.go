package llm

import (
	"fmt"
	"strings"
)

// maxPromptTextLength caps the PDF text embedded in the prompt so we stay
// under the smaller models' token limits.
const maxPromptTextLength = 10000

// BuildInvoicePrompt composes the extraction prompt: document text,
// filename hint, the field list and strict-JSON formatting rules. The
// prompt is French because the corpus is French accounting paperwork; the
// field names it requests are the canonical storage keys.
//
// The fournisseur/client disambiguation block exists because models
// reliably confuse the invoice issuer with the recipient on this corpus.
func BuildInvoicePrompt(pdfText, filename string) string {
	if len(pdfText) > maxPromptTextLength {
		pdfText = pdfText[:maxPromptTextLength] + "... [texte tronqué]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tu es un expert comptable. En te basant sur ces données : %s\n\n", pdfText)
	fmt.Fprintf(&b, "Nom du fichier (peut contenir un indice sur le fournisseur) : %s\n\n", filename)

	b.WriteString(`Extrais les informations suivantes et formate-les en JSON strict (sans markdown, juste le code brut).

IMPORTANT - Distinction fournisseur/client :
- Le FOURNISSEUR est la société qui a ÉMIS/ENVOYÉ la facture (l'émetteur, le vendeur, celui qui facture)
- Le CLIENT est la société qui REÇOIT la facture (le destinataire, l'acheteur, celui qui paie)
- Ne confonds JAMAIS le client avec le fournisseur

Le fournisseur est souvent identifié :
  * Dans l'en-tête ou le logo de la facture (en haut)
  * Dans les coordonnées bancaires (RIB, IBAN)
  * Dans le nom du fichier PDF

ASTUCE: Le nom du fichier contient souvent le nom du FOURNISSEUR

Champs à extraire :
- fournisseur (Nom de la société ÉMETTRICE de la facture, PAS le client/destinataire)
- montant_ht (Montant hors taxes, nombre uniquement)
- numero_facture (Numéro de la facture)
- date_facture (Date de la facture au format YYYY-MM-DD)
- chrono (Le numéro Chrono du document si présent)
- couverture (La période de couverture/facturation si présente)
`)
	fmt.Fprintf(&b, "- nom_fichier (nom du fichier : %s)\n", filename)
	b.WriteString(`
Si une info est manquante, mets null.

Réponds UNIQUEMENT avec le JSON, sans texte avant ou après.`)

	return b.String()
}
