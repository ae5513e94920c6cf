package secondary

import (
	"context"
	"encoding/json"
)

// CatalogClient defines the secondary port for the catalog (system of
// record) API.
type CatalogClient interface {
	// GetItemByBarcode returns the raw item JSON for barcode, or nil when the
	// catalog has no active item. Failures carry domain.KindTransient for
	// transport problems and domain.KindTerminal for API-level errors.
	GetItemByBarcode(ctx context.Context, apiKey, barcode string) (json.RawMessage, error)
}
