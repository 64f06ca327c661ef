package catalog

import (
	"errors"
	"fmt"
)

// ProductRecord is the canonical product representation produced by an
// extraction adapter, independent of source-specific formats. Optional
// fields are pointers; absence means the source did not expose the value.
// Records are validated once at the adapter boundary so downstream code
// never branches on ad-hoc field presence.
type ProductRecord struct {
	Title        string            `json:"title"`
	ProductURL   string            `json:"product_url"`
	Brand        *string           `json:"brand,omitempty"`
	Description  *string           `json:"description,omitempty"`
	Category     *string           `json:"category,omitempty"`
	Features     map[string]string `json:"features,omitempty"`
	Availability int               `json:"availability"`
	Price        *float64          `json:"price,omitempty"`
	SalePrice    *float64          `json:"sale_price,omitempty"`
	SKU          *string           `json:"sku,omitempty"`
	UPC          *string           `json:"upc,omitempty"`
	Images       []string          `json:"images,omitempty"`
}

// ErrInvalidRecord marks a record an adapter produced that is missing
// required identity fields.
var ErrInvalidRecord = errors.New("invalid product record")

// Validate checks the fields every downstream component relies on.
func (r ProductRecord) Validate() error {
	if r.ProductURL == "" {
		return fmt.Errorf("%w: product_url is required", ErrInvalidRecord)
	}
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRecord)
	}
	if r.Availability != 0 && r.Availability != 1 {
		return fmt.Errorf("%w: availability must be 0 or 1, got %d", ErrInvalidRecord, r.Availability)
	}
	return nil
}

// String returns a pointer to s, for filling optional record fields.
func String(s string) *string { return &s }

// Float returns a pointer to f, for filling optional record fields.
func Float(f float64) *float64 { return &f }
