package constants

// Canonical invoice field names. These are the only keys the normalizer
// emits; everything coming out of the model is mapped onto this set.
const (
	FieldSupplier      = "fournisseur"
	FieldAmountExclTax = "montant_ht"
	FieldInvoiceNumber = "numero_facture"
	FieldInvoiceDate   = "date_facture"
	FieldChrono        = "chrono"
	FieldPeriodCovered = "couverture"
	FieldSourceFile    = "nom_fichier"
	FieldConfidence    = "confidence"
)

// CanonicalFields lists every canonical key in storage order.
var CanonicalFields = []string{
	FieldSupplier,
	FieldAmountExclTax,
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldChrono,
	FieldPeriodCovered,
	FieldSourceFile,
	FieldConfidence,
}

// CoreFields are the ones that decide whether an extraction counts as
// successful; a record where all of these are null is flagged.
var CoreFields = []string{
	FieldSupplier,
	FieldAmountExclTax,
	FieldInvoiceNumber,
	FieldInvoiceDate,
}
