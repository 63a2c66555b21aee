package model

import "time"

// Payment method constants.
const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentMobile = "mobile"
)

// Sale is a completed checkout recorded in the backend.
// All monetary amounts are in cents.
type Sale struct {
	ID            int64     `json:"id"`
	Subtotal      int64     `json:"subtotal"`
	Discount      int64     `json:"discount"`
	Total         int64     `json:"total"`
	PaymentMethod string    `json:"payment_method"`
	Cashier       string    `json:"cashier,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Items is populated by queries that join the sale_items table.
	Items []SaleItem `json:"items,omitempty"`
}

// SaleItem is one line of a sale. Name and UnitPrice are denormalized at
// checkout time so history survives later catalog edits.
type SaleItem struct {
	ID        int64  `json:"id"`
	SaleID    int64  `json:"sale_id"`
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Name      string `json:"name"`
	UnitName  string `json:"unit_name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`

	// Factor is base units per sale unit, copied from the variant (1 for
	// base-unit sales). Stock decrements by Quantity * Factor.
	Factor int `json:"factor"`

	Subtotal int64 `json:"subtotal"`
}
