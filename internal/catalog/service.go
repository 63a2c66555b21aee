// Package catalog manages the product catalog through the backend client
// and emits system notifications for the actions staff care about seeing
// in the feed (imports, archives, price changes, deletes).
package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mwangi/pharmos/internal/model"
	"github.com/mwangi/pharmos/internal/notify"
	"github.com/mwangi/pharmos/internal/store"
)

// Backend is the slice of the backend client the catalog uses.
type Backend interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, id int64, fields map[string]interface{}) error
	DeleteProduct(ctx context.Context, id int64) error
	ListVariants(ctx context.Context, productID int64) ([]model.Variant, error)
	UpsertVariant(ctx context.Context, v model.Variant) (*model.Variant, error)
	DeleteVariant(ctx context.Context, id int64) error
}

// Service exposes catalog operations to the UI.
type Service struct {
	api Backend
	bk  store.Bookkeeping
	log *zap.Logger
}

// NewService creates a catalog service.
func NewService(api Backend, bk store.Bookkeeping, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{api: api, bk: bk, log: log}
}

// Products returns the catalog excluding archived entries.
func (s *Service) Products(ctx context.Context) ([]model.Product, error) {
	all, err := s.api.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, p := range all {
		if !p.Archived() {
			out = append(out, p)
		}
	}
	return out, nil
}

// Create inserts a new product.
func (s *Service) Create(ctx context.Context, p model.Product) (*model.Product, error) {
	if p.Status == "" {
		p.Status = model.ProductStatusAvailable
	}
	return s.api.CreateProduct(ctx, p)
}

// Update applies a partial update to a product.
func (s *Service) Update(ctx context.Context, id int64, fields map[string]interface{}) error {
	return s.api.UpdateProduct(ctx, id, fields)
}

// ChangePrice sets a new base price and surfaces the change in the feed.
// The event id embeds the day, so retries within a day collapse into one
// notification.
func (s *Service) ChangePrice(ctx context.Context, id int64, newPrice int64) error {
	p, err := s.api.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if p.BasePrice == newPrice {
		return nil
	}

	if err := s.api.UpdateProduct(ctx, id, map[string]interface{}{
		"base_price": newPrice,
	}); err != nil {
		return err
	}

	return notify.AddSystemNotification(s.bk, model.SystemNotification{
		ID:       eventID("price-change", id),
		IconType: "price-change",
		IconBg:   "blue",
		Title:    "Price updated",
		Description: fmt.Sprintf(
			"%s price changed from %s to %s",
			p.Name, formatCents(p.BasePrice), formatCents(newPrice),
		),
		Path: fmt.Sprintf("/inventory/%d", id),
	})
}

// Archive marks a product archived, removing it from notification
// derivation and the active catalog.
func (s *Service) Archive(ctx context.Context, id int64) error {
	p, err := s.api.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	if err := s.api.UpdateProduct(ctx, id, map[string]interface{}{
		"status": model.ProductStatusArchived,
	}); err != nil {
		return err
	}

	return notify.AddSystemNotification(s.bk, model.SystemNotification{
		ID:          eventID("archive", id),
		IconType:    "archive",
		IconBg:      "gray",
		Title:       "Product archived",
		Description: fmt.Sprintf("%s was archived", p.Name),
	})
}

// Delete removes a product entirely.
func (s *Service) Delete(ctx context.Context, id int64) error {
	p, err := s.api.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	if err := s.api.DeleteProduct(ctx, id); err != nil {
		return err
	}

	return notify.AddSystemNotification(s.bk, model.SystemNotification{
		ID:          eventID("delete", id),
		IconType:    "delete",
		IconBg:      "red",
		Title:       "Product deleted",
		Description: fmt.Sprintf("%s was removed from the catalog", p.Name),
	})
}

// Variants returns the pricing variants for a product.
func (s *Service) Variants(ctx context.Context, productID int64) ([]model.Variant, error) {
	return s.api.ListVariants(ctx, productID)
}

// SaveVariant inserts or updates a pricing variant after validating the
// conversion factor.
func (s *Service) SaveVariant(ctx context.Context, v model.Variant) (*model.Variant, error) {
	if v.Factor <= 0 {
		return nil, fmt.Errorf("variant %q: factor must be positive", v.UnitName)
	}
	return s.api.UpsertVariant(ctx, v)
}

// DeleteVariant removes a pricing variant.
func (s *Service) DeleteVariant(ctx context.Context, id int64) error {
	return s.api.DeleteVariant(ctx, id)
}

// eventID builds a per-action, per-entity, per-day system event id.
func eventID(action string, id int64) string {
	return fmt.Sprintf("%s-%d-%s", action, id, time.Now().Format("2006-01-02"))
}

// formatCents renders a cent amount as a decimal string.
func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
