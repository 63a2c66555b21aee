package pos

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mwangi/pharmos/internal/model"
)

// fakeBackend implements Backend with function fields; nil fields fail
// the test if called.
type fakeBackend struct {
	t *testing.T

	getProduct    func(ctx context.Context, id int64) (*model.Product, error)
	updateProduct func(ctx context.Context, id int64, fields map[string]interface{}) error
	insertSale    func(ctx context.Context, sale model.Sale, items []model.SaleItem) (*model.Sale, error)
	listSales     func(ctx context.Context, from, to time.Time) ([]model.Sale, error)
}

func (f *fakeBackend) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if f.getProduct == nil {
		f.t.Fatal("unexpected GetProduct call")
	}
	return f.getProduct(ctx, id)
}

func (f *fakeBackend) UpdateProduct(ctx context.Context, id int64, fields map[string]interface{}) error {
	if f.updateProduct == nil {
		f.t.Fatal("unexpected UpdateProduct call")
	}
	return f.updateProduct(ctx, id, fields)
}

func (f *fakeBackend) InsertSale(ctx context.Context, sale model.Sale, items []model.SaleItem) (*model.Sale, error) {
	if f.insertSale == nil {
		f.t.Fatal("unexpected InsertSale call")
	}
	return f.insertSale(ctx, sale, items)
}

func (f *fakeBackend) ListSales(ctx context.Context, from, to time.Time) ([]model.Sale, error) {
	if f.listSales == nil {
		f.t.Fatal("unexpected ListSales call")
	}
	return f.listSales(ctx, from, to)
}

func TestCheckout_RecordsSaleAndDecrementsStock(t *testing.T) {
	live := testProduct() // 200 base units
	var insertedItems []model.SaleItem
	decrements := map[int64]interface{}{}

	api := &fakeBackend{
		t: t,
		getProduct: func(ctx context.Context, id int64) (*model.Product, error) {
			p := live
			return &p, nil
		},
		insertSale: func(ctx context.Context, sale model.Sale, items []model.SaleItem) (*model.Sale, error) {
			insertedItems = items
			stored := sale
			stored.ID = 33
			return &stored, nil
		},
		updateProduct: func(ctx context.Context, id int64, fields map[string]interface{}) error {
			decrements[id] = fields["quantity"]
			return nil
		},
	}

	poked := false
	s := NewService(api, nil, func() { poked = true })

	cart := NewCart()
	if err := cart.Add(live, nil, 3); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := cart.Add(live, blisterOf10(), 2); err != nil {
		t.Fatalf("Add: %v", err)
	}
	cart.SetDiscount(50)

	sale, err := s.Checkout(context.Background(), cart, model.PaymentCash, "asha")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if sale.ID != 33 {
		t.Errorf("sale ID: got %d", sale.ID)
	}
	if sale.Subtotal != 3*50+2*450 {
		t.Errorf("Subtotal: got %d, want %d", sale.Subtotal, 3*50+2*450)
	}
	if sale.Total != sale.Subtotal-50 {
		t.Errorf("Total: got %d, want %d", sale.Total, sale.Subtotal-50)
	}

	if len(insertedItems) != 2 {
		t.Fatalf("got %d items, want 2", len(insertedItems))
	}
	for _, item := range insertedItems {
		if item.Name == "" || item.UnitPrice == 0 {
			t.Errorf("item not denormalized: %+v", item)
		}
	}

	// 200 - (3 + 2*10) = 177 base units left.
	if got := decrements[live.ID]; got != 177 {
		t.Errorf("decrement: got %v, want 177", got)
	}
	if !poked {
		t.Error("stock change callback not invoked")
	}
}

func TestCheckout_InsufficientStock(t *testing.T) {
	live := testProduct()
	live.Quantity = 15

	api := &fakeBackend{
		t: t,
		getProduct: func(ctx context.Context, id int64) (*model.Product, error) {
			p := live
			return &p, nil
		},
	}
	s := NewService(api, nil, nil)

	// Two blisters need 20 base units; only 15 on hand.
	cart := NewCart()
	if err := cart.Add(live, blisterOf10(), 2); err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, err := s.Checkout(context.Background(), cart, model.PaymentCash, "")
	if err == nil {
		t.Fatal("Checkout succeeded with insufficient stock")
	}
	if !strings.Contains(err.Error(), "insufficient stock") {
		t.Errorf("error: got %v", err)
	}
}

func TestCheckout_UnavailableProduct(t *testing.T) {
	live := testProduct()
	live.Status = model.ProductStatusUnavailable

	api := &fakeBackend{
		t: t,
		getProduct: func(ctx context.Context, id int64) (*model.Product, error) {
			p := live
			return &p, nil
		},
	}
	s := NewService(api, nil, nil)

	cart := NewCart()
	if err := cart.Add(live, nil, 1); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := s.Checkout(context.Background(), cart, model.PaymentCash, ""); err == nil {
		t.Fatal("Checkout sold an unavailable product")
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	s := NewService(&fakeBackend{t: t}, nil, nil)
	if _, err := s.Checkout(context.Background(), NewCart(), model.PaymentCash, ""); err == nil {
		t.Fatal("Checkout accepted an empty cart")
	}
}

func TestCheckout_StaleCartQuantityRejected(t *testing.T) {
	// The cart was built when 200 units were on hand, but the live row
	// says 2. Checkout must trust the live row.
	live := testProduct()
	live.Quantity = 2

	api := &fakeBackend{
		t: t,
		getProduct: func(ctx context.Context, id int64) (*model.Product, error) {
			p := live
			return &p, nil
		},
	}
	s := NewService(api, nil, nil)

	stale := testProduct()
	cart := NewCart()
	if err := cart.Add(stale, nil, 5); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := s.Checkout(context.Background(), cart, model.PaymentCash, ""); err == nil {
		t.Fatal("Checkout used the cart's stale quantity")
	}
}

func TestSummary(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)

	api := &fakeBackend{
		t: t,
		listSales: func(ctx context.Context, gotFrom, gotTo time.Time) ([]model.Sale, error) {
			if !gotFrom.Equal(from) || !gotTo.Equal(to) {
				t.Errorf("range: got [%v, %v]", gotFrom, gotTo)
			}
			return []model.Sale{
				{
					ID: 1, Total: 1000, Discount: 100,
					Items: []model.SaleItem{
						{ProductID: 1, Name: "A", Quantity: 2, Factor: 10, Subtotal: 900},
						{ProductID: 2, Name: "B", Quantity: 1, Factor: 1, Subtotal: 200},
					},
				},
				{
					ID: 2, Total: 500, Discount: 0,
					Items: []model.SaleItem{
						{ProductID: 2, Name: "B", Quantity: 2, Factor: 1, Subtotal: 500},
					},
				},
			}, nil
		},
	}
	s := NewService(api, nil, nil)

	summary, err := s.Summary(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if summary.SaleCount != 2 {
		t.Errorf("SaleCount: got %d, want 2", summary.SaleCount)
	}
	if summary.Revenue != 1500 {
		t.Errorf("Revenue: got %d, want 1500", summary.Revenue)
	}
	if summary.Discounts != 100 {
		t.Errorf("Discounts: got %d, want 100", summary.Discounts)
	}

	if len(summary.TopProducts) != 2 {
		t.Fatalf("TopProducts: got %+v", summary.TopProducts)
	}
	if summary.TopProducts[0].ProductID != 1 || summary.TopProducts[0].Revenue != 900 {
		t.Errorf("top product: got %+v", summary.TopProducts[0])
	}
	if summary.TopProducts[0].Units != 20 {
		t.Errorf("top product units: got %d, want 20 base units", summary.TopProducts[0].Units)
	}
	if summary.TopProducts[1].Revenue != 700 {
		t.Errorf("second product revenue: got %d, want 700", summary.TopProducts[1].Revenue)
	}
}
