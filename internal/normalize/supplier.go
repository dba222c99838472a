package normalize

import (
	"log/slog"
	"strings"
)

// SupplierCorrector fixes the one systematic model mistake seen in
// production: reporting the receiving client as the supplier. Clients on
// the known-client list are never suppliers; when the model names one, the
// real supplier is re-derived from the source filename or nulled out.
type SupplierCorrector struct {
	knownClients   []string
	knownSuppliers []string
	logger         *slog.Logger
}

func NewSupplierCorrector(knownClients, knownSuppliers []string, logger *slog.Logger) *SupplierCorrector {
	if logger == nil {
		logger = slog.Default()
	}
	return &SupplierCorrector{
		knownClients:   knownClients,
		knownSuppliers: knownSuppliers,
		logger:         logger,
	}
}

// Apply corrects fields.Supplier in place when it matches a known client.
func (c *SupplierCorrector) Apply(fields *Fields, filename string) {
	if fields.Supplier == nil {
		return
	}
	supplierUpper := strings.ToUpper(*fields.Supplier)

	isClient := false
	for _, client := range c.knownClients {
		if strings.Contains(supplierUpper, strings.ToUpper(client)) {
			isClient = true
			break
		}
	}
	if !isClient {
		return
	}

	c.logger.Warn("normalize.supplier_is_known_client", "supplier", *fields.Supplier)

	filenameUpper := strings.ToUpper(filename)
	for _, supplier := range c.knownSuppliers {
		if strings.Contains(filenameUpper, strings.ToUpper(supplier)) {
			c.logger.Info("normalize.supplier_from_filename", "supplier", supplier)
			s := supplier
			fields.Supplier = &s
			return
		}
	}

	c.logger.Warn("normalize.supplier_unresolved", "filename", filename)
	fields.Supplier = nil
}
