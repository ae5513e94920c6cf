package valueobject

import (
	"fmt"
	"strings"
)

// BlobName is the deterministic storage name of an item snapshot.
// The same barcode and institution always map to the same name, so repeated
// fetches overwrite rather than accumulate.
type BlobName struct {
	value string
}

// NewBlobName builds barcode_<barcode>_iz_<institution>.json.
func NewBlobName(barcode, institutionCode string) (BlobName, error) {
	b := strings.TrimSpace(barcode)
	if b == "" {
		return BlobName{}, fmt.Errorf("barcode must not be empty")
	}
	code := strings.TrimSpace(institutionCode)
	if code == "" {
		return BlobName{}, fmt.Errorf("institution code must not be empty")
	}
	return BlobName{value: "barcode_" + b + "_iz_" + code + ".json"}, nil
}

// String returns the blob name.
func (n BlobName) String() string {
	return n.value
}

