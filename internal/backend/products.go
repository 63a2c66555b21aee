package backend

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mwangi/pharmos/internal/model"
)

// productInsert is the write shape for product rows. Backend-assigned
// columns (id, timestamps) are left for the database to fill; posting a
// zero id to an identity column would be rejected.
type productInsert struct {
	Name       string     `json:"name"`
	Category   string     `json:"category,omitempty"`
	Barcode    string     `json:"barcode,omitempty"`
	Quantity   int        `json:"quantity"`
	BasePrice  int64      `json:"base_price"`
	ExpireDate *time.Time `json:"expire_date,omitempty"`
	Status     string     `json:"status"`
}

// variantUpsert is the write shape for pricing variants; the backend
// matches on (product_id, unit_name) and assigns the id.
type variantUpsert struct {
	ProductID int64  `json:"product_id"`
	UnitName  string `json:"unit_name"`
	Factor    int    `json:"factor"`
	Price     int64  `json:"price"`
}

// ListProducts retrieves the full product catalog, including archived
// entries. Callers decide which statuses they care about.
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := c.get(ctx, "/rest/v1/products?select=*&order=name.asc", &products)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// GetProduct retrieves a single product by id.
func (c *Client) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	var products []model.Product
	path := fmt.Sprintf("/rest/v1/products?select=*&id=eq.%d&limit=1", id)
	if err := c.get(ctx, path, &products); err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("product %d not found", id)
	}
	return &products[0], nil
}

// CreateProduct inserts a product and returns the stored row.
func (c *Client) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	row := productInsert{
		Name:       p.Name,
		Category:   p.Category,
		Barcode:    p.Barcode,
		Quantity:   p.Quantity,
		BasePrice:  p.BasePrice,
		ExpireDate: p.ExpireDate,
		Status:     p.Status,
	}

	var created []model.Product
	if err := c.post(ctx, "/rest/v1/products", row, &created); err != nil {
		return nil, fmt.Errorf("creating product %q: %w", p.Name, err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("creating product %q: empty response", p.Name)
	}
	return &created[0], nil
}

// UpdateProduct applies a partial update to the product row. fields maps
// column names to new values, e.g. {"quantity": 5}.
func (c *Client) UpdateProduct(ctx context.Context, id int64, fields map[string]interface{}) error {
	path := fmt.Sprintf("/rest/v1/products?id=eq.%d", id)
	if err := c.patch(ctx, path, fields, nil); err != nil {
		return fmt.Errorf("updating product %d: %w", id, err)
	}
	return nil
}

// DeleteProduct removes a product row.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/rest/v1/products?id=eq.%d", id)
	if err := c.delete(ctx, path); err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	return nil
}

// ListVariants retrieves the pricing variants for a product.
func (c *Client) ListVariants(ctx context.Context, productID int64) ([]model.Variant, error) {
	var variants []model.Variant
	path := fmt.Sprintf(
		"/rest/v1/variants?select=*&product_id=eq.%d&order=factor.asc", productID,
	)
	if err := c.get(ctx, path, &variants); err != nil {
		return nil, fmt.Errorf("listing variants for product %d: %w", productID, err)
	}
	return variants, nil
}

// UpsertVariant inserts or updates a pricing variant.
func (c *Client) UpsertVariant(ctx context.Context, v model.Variant) (*model.Variant, error) {
	row := variantUpsert{
		ProductID: v.ProductID,
		UnitName:  v.UnitName,
		Factor:    v.Factor,
		Price:     v.Price,
	}

	var stored []model.Variant
	path := "/rest/v1/variants?on_conflict=" + url.QueryEscape("product_id,unit_name")
	if err := c.post(ctx, path, row, &stored); err != nil {
		return nil, fmt.Errorf("upserting variant %q: %w", v.UnitName, err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("upserting variant %q: empty response", v.UnitName)
	}
	return &stored[0], nil
}

// DeleteVariant removes a pricing variant.
func (c *Client) DeleteVariant(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/rest/v1/variants?id=eq.%d", id)
	if err := c.delete(ctx, path); err != nil {
		return fmt.Errorf("deleting variant %d: %w", id, err)
	}
	return nil
}
