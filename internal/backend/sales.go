package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/mwangi/pharmos/internal/model"
)

// saleInsert is the write shape for sale headers. The id column is
// identity-assigned, so it never appears in the payload.
type saleInsert struct {
	Subtotal      int64     `json:"subtotal"`
	Discount      int64     `json:"discount"`
	Total         int64     `json:"total"`
	PaymentMethod string    `json:"payment_method"`
	Cashier       string    `json:"cashier,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// saleItemInsert is the write shape for sale lines.
type saleItemInsert struct {
	SaleID    int64  `json:"sale_id"`
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Name      string `json:"name"`
	UnitName  string `json:"unit_name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Factor    int    `json:"factor"`
	Subtotal  int64  `json:"subtotal"`
}

// InsertSale records a sale header plus its line items and returns the
// stored sale with backend-assigned ids.
func (c *Client) InsertSale(ctx context.Context, sale model.Sale, items []model.SaleItem) (*model.Sale, error) {
	header := saleInsert{
		Subtotal:      sale.Subtotal,
		Discount:      sale.Discount,
		Total:         sale.Total,
		PaymentMethod: sale.PaymentMethod,
		Cashier:       sale.Cashier,
		CreatedAt:     sale.CreatedAt,
	}

	var created []model.Sale
	if err := c.post(ctx, "/rest/v1/sales", header, &created); err != nil {
		return nil, fmt.Errorf("inserting sale: %w", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("inserting sale: empty response")
	}

	stored := created[0]
	rows := make([]saleItemInsert, 0, len(items))
	for _, item := range items {
		rows = append(rows, saleItemInsert{
			SaleID:    stored.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			UnitName:  item.UnitName,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Factor:    item.Factor,
			Subtotal:  item.Subtotal,
		})
	}

	var storedItems []model.SaleItem
	if err := c.post(ctx, "/rest/v1/sale_items", rows, &storedItems); err != nil {
		return nil, fmt.Errorf("inserting items for sale %d: %w", stored.ID, err)
	}
	stored.Items = storedItems

	return &stored, nil
}

// ListSales retrieves sales (with items) created within [from, to],
// newest first.
func (c *Client) ListSales(ctx context.Context, from, to time.Time) ([]model.Sale, error) {
	var sales []model.Sale
	path := fmt.Sprintf(
		"/rest/v1/sales?select=*,items:sale_items(*)&created_at=gte.%s&created_at=lte.%s&order=created_at.desc",
		from.UTC().Format(time.RFC3339),
		to.UTC().Format(time.RFC3339),
	)
	if err := c.get(ctx, path, &sales); err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	return sales, nil
}
