package model

import "time"

// Product status constants.
const (
	ProductStatusAvailable   = "available"
	ProductStatusUnavailable = "unavailable"
	ProductStatusArchived    = "archived"
)

// Product is a catalog entry from the remote backend. Quantity is tracked
// in base units; pricing variants provide alternate sale units.
type Product struct {
	// ID is the backend-assigned row identifier.
	ID int64 `json:"id"`

	// Name is the display name, e.g. "Amoxicillin 500mg".
	Name string `json:"name"`

	// Category is a free-form grouping label.
	Category string `json:"category,omitempty"`

	// Barcode is the scannable product code, if any.
	Barcode string `json:"barcode,omitempty"`

	// Quantity is the stock on hand in base units. Never negative.
	Quantity int `json:"quantity"`

	// BasePrice is the price of one base unit, in cents.
	BasePrice int64 `json:"base_price"`

	// ExpireDate is the batch expiry date. Nil when no expiry is tracked.
	ExpireDate *time.Time `json:"expire_date,omitempty"`

	// Status is one of the ProductStatus* constants.
	Status string `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Variants is populated by queries that join the variants table.
	Variants []Variant `json:"variants,omitempty"`
}

// Archived reports whether the product has been removed from active use.
func (p Product) Archived() bool {
	return p.Status == ProductStatusArchived
}

// Variant is an alternate sale unit for a product, e.g. a blister of 10
// tablets or a box of 100. Factor converts one variant unit to base units.
type Variant struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UnitName  string    `json:"unit_name"`
	Factor    int       `json:"factor"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}
