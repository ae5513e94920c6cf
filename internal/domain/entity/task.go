package entity

import (
	"fmt"
	"strings"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
)

// BarcodeRetrievalTask asks the fetch stage to re-read one item from the
// catalog. It is the Queue A message body.
type BarcodeRetrievalTask struct {
	Institution string `json:"institution"`
	Barcode     string `json:"barcode"`
	Process     string `json:"process"`
}

// Validate reports the first missing required field, wrapping
// domain.ErrInvalidTask.
func (t *BarcodeRetrievalTask) Validate() error {
	if strings.TrimSpace(t.Institution) == "" {
		return fmt.Errorf("%w: institution is required", domain.ErrInvalidTask)
	}
	if strings.TrimSpace(t.Barcode) == "" {
		return fmt.Errorf("%w: barcode is required", domain.ErrInvalidTask)
	}
	return nil
}

// ItemValidationTask points the downstream validator at a stored item blob.
// It is the Queue B message body.
type ItemValidationTask struct {
	Institution string `json:"institution"`
	BlobName    string `json:"blob_name"`
	Process     string `json:"process"`
}
