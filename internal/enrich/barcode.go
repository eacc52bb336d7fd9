package enrich

import (
	"fmt"
	"strings"

	"scanbay/internal/services"
)

// BarcodeLimitError carries the offending count and the configured maximum.
type BarcodeLimitError struct {
	Count int
	Max   int
}

func (e *BarcodeLimitError) Error() string {
	return fmt.Sprintf("%d barcodes exceed the maximum of %d", e.Count, e.Max)
}

// ParseBarcodes splits a raw barcode string on whitespace, commas,
// semicolons, and pipes, dropping empty tokens. Exceeding max fails the run
// before any external call is made.
func ParseBarcodes(raw string, max int) ([]string, error) {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', ',', ';', '|':
			return true
		}
		return false
	})
	barcodes := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token != "" {
			barcodes = append(barcodes, token)
		}
	}
	if max > 0 && len(barcodes) > max {
		limitErr := &BarcodeLimitError{Count: len(barcodes), Max: max}
		return nil, services.Wrap(services.ErrBarcodeLimit, "enrich", "parse barcodes", "limit exceeded", limitErr)
	}
	return barcodes, nil
}
