package pos

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mwangi/pharmos/internal/model"
)

// Backend is the slice of the backend client checkout needs.
type Backend interface {
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	UpdateProduct(ctx context.Context, id int64, fields map[string]interface{}) error
	InsertSale(ctx context.Context, sale model.Sale, items []model.SaleItem) (*model.Sale, error)
	ListSales(ctx context.Context, from, to time.Time) ([]model.Sale, error)
}

// Service records sales and answers sales-history queries.
type Service struct {
	api Backend
	log *zap.Logger

	// onStockChange is invoked after checkout decrements stock, so the
	// product watcher can re-fetch without waiting for the next tick.
	onStockChange func()
}

// NewService creates a POS service. onStockChange may be nil.
func NewService(api Backend, log *zap.Logger, onStockChange func()) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{api: api, log: log, onStockChange: onStockChange}
}

// Checkout validates stock against the live product rows, records the sale
// with denormalized line items, and decrements product quantities.
func (s *Service) Checkout(ctx context.Context, cart *Cart, paymentMethod, cashier string) (*model.Sale, error) {
	if cart.Empty() {
		return nil, fmt.Errorf("cart is empty")
	}

	lines := cart.Lines()

	// Re-read each product so the stock check uses live quantities, and
	// tally base units per product across lines (a product can appear in
	// several variant lines).
	needed := make(map[int64]int)
	current := make(map[int64]*model.Product)
	for _, line := range lines {
		if _, ok := current[line.Product.ID]; !ok {
			p, err := s.api.GetProduct(ctx, line.Product.ID)
			if err != nil {
				return nil, err
			}
			current[line.Product.ID] = p
		}
		needed[line.Product.ID] += line.BaseUnits()
	}

	for id, units := range needed {
		p := current[id]
		if p.Archived() || p.Status == model.ProductStatusUnavailable {
			return nil, fmt.Errorf("%s is not available for sale", p.Name)
		}
		if p.Quantity < units {
			return nil, fmt.Errorf(
				"insufficient stock for %s: need %d, have %d",
				p.Name, units, p.Quantity,
			)
		}
	}

	sale := model.Sale{
		Subtotal:      cart.Subtotal(),
		Discount:      cart.Discount(),
		Total:         cart.Total(),
		PaymentMethod: paymentMethod,
		Cashier:       cashier,
		CreatedAt:     time.Now().UTC(),
	}

	items := make([]model.SaleItem, 0, len(lines))
	for _, line := range lines {
		item := model.SaleItem{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			UnitName:  line.UnitName(),
			UnitPrice: line.UnitPrice(),
			Quantity:  line.Quantity,
			Factor:    line.Factor(),
			Subtotal:  line.Subtotal(),
		}
		if line.Variant != nil {
			id := line.Variant.ID
			item.VariantID = &id
		}
		items = append(items, item)
	}

	stored, err := s.api.InsertSale(ctx, sale, items)
	if err != nil {
		return nil, err
	}

	for id, units := range needed {
		newQuantity := current[id].Quantity - units
		if err := s.api.UpdateProduct(ctx, id, map[string]interface{}{
			"quantity": newQuantity,
		}); err != nil {
			// The sale is recorded; a failed decrement self-corrects on
			// the next manual stock count. Log and keep going.
			s.log.Error("stock decrement failed after sale",
				zap.Int64("product_id", id),
				zap.Int64("sale_id", stored.ID),
				zap.Error(err),
			)
		}
	}

	if s.onStockChange != nil {
		s.onStockChange()
	}

	s.log.Info("sale recorded",
		zap.Int64("sale_id", stored.ID),
		zap.Int("items", len(items)),
		zap.Int64("total", stored.Total),
	)
	return stored, nil
}

// ProductSales aggregates quantity and revenue for one product.
type ProductSales struct {
	ProductID int64
	Name      string
	Units     int
	Revenue   int64
}

// Summary is an aggregate over a sales period.
type Summary struct {
	From        time.Time
	To          time.Time
	SaleCount   int
	Revenue     int64
	Discounts   int64
	TopProducts []ProductSales
}

// Summary computes revenue, sale count, and top products for [from, to].
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*Summary, error) {
	sales, err := s.api.ListSales(ctx, from, to)
	if err != nil {
		return nil, err
	}

	summary := &Summary{From: from, To: to}
	perProduct := make(map[int64]*ProductSales)

	for _, sale := range sales {
		summary.SaleCount++
		summary.Revenue += sale.Total
		summary.Discounts += sale.Discount

		for _, item := range sale.Items {
			agg, ok := perProduct[item.ProductID]
			if !ok {
				agg = &ProductSales{ProductID: item.ProductID, Name: item.Name}
				perProduct[item.ProductID] = agg
			}
			agg.Units += item.Quantity * item.Factor
			agg.Revenue += item.Subtotal
		}
	}

	for _, agg := range perProduct {
		summary.TopProducts = append(summary.TopProducts, *agg)
	}
	sort.Slice(summary.TopProducts, func(i, j int) bool {
		if summary.TopProducts[i].Revenue != summary.TopProducts[j].Revenue {
			return summary.TopProducts[i].Revenue > summary.TopProducts[j].Revenue
		}
		return summary.TopProducts[i].Name < summary.TopProducts[j].Name
	})
	if len(summary.TopProducts) > 5 {
		summary.TopProducts = summary.TopProducts[:5]
	}

	return summary, nil
}
