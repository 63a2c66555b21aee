package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mwangi/pharmos/internal/model"
	"github.com/mwangi/pharmos/tests/testutil"
)

// fakeBackend implements Backend with per-method function fields; nil
// fields fail the test if called.
type fakeBackend struct {
	t *testing.T

	listProducts  func(ctx context.Context) ([]model.Product, error)
	getProduct    func(ctx context.Context, id int64) (*model.Product, error)
	createProduct func(ctx context.Context, p model.Product) (*model.Product, error)
	updateProduct func(ctx context.Context, id int64, fields map[string]interface{}) error
	deleteProduct func(ctx context.Context, id int64) error
}

func (f *fakeBackend) ListProducts(ctx context.Context) ([]model.Product, error) {
	if f.listProducts == nil {
		f.t.Fatal("unexpected ListProducts call")
	}
	return f.listProducts(ctx)
}

func (f *fakeBackend) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if f.getProduct == nil {
		f.t.Fatal("unexpected GetProduct call")
	}
	return f.getProduct(ctx, id)
}

func (f *fakeBackend) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	if f.createProduct == nil {
		f.t.Fatal("unexpected CreateProduct call")
	}
	return f.createProduct(ctx, p)
}

func (f *fakeBackend) UpdateProduct(ctx context.Context, id int64, fields map[string]interface{}) error {
	if f.updateProduct == nil {
		f.t.Fatal("unexpected UpdateProduct call")
	}
	return f.updateProduct(ctx, id, fields)
}

func (f *fakeBackend) DeleteProduct(ctx context.Context, id int64) error {
	if f.deleteProduct == nil {
		f.t.Fatal("unexpected DeleteProduct call")
	}
	return f.deleteProduct(ctx, id)
}

func (f *fakeBackend) ListVariants(ctx context.Context, productID int64) ([]model.Variant, error) {
	return nil, nil
}

func (f *fakeBackend) UpsertVariant(ctx context.Context, v model.Variant) (*model.Variant, error) {
	return &v, nil
}

func (f *fakeBackend) DeleteVariant(ctx context.Context, id int64) error {
	return nil
}

func TestService_ProductsExcludesArchived(t *testing.T) {
	api := &fakeBackend{
		t: t,
		listProducts: func(ctx context.Context) ([]model.Product, error) {
			return []model.Product{
				{ID: 1, Name: "A", Status: model.ProductStatusAvailable},
				{ID: 2, Name: "B", Status: model.ProductStatusArchived},
				{ID: 3, Name: "C", Status: model.ProductStatusUnavailable},
			}, nil
		},
	}
	s := NewService(api, testutil.NewTestStore(t), nil)

	products, err := s.Products(context.Background())
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2 (archived excluded)", len(products))
	}
	for _, p := range products {
		if p.Archived() {
			t.Errorf("archived product %d in active catalog", p.ID)
		}
	}
}

func TestService_ArchiveEmitsSystemNotification(t *testing.T) {
	bk := testutil.NewTestStore(t)
	var patched map[string]interface{}
	api := &fakeBackend{
		t: t,
		getProduct: func(ctx context.Context, id int64) (*model.Product, error) {
			return &model.Product{ID: id, Name: "Old line", Status: model.ProductStatusAvailable}, nil
		},
		updateProduct: func(ctx context.Context, id int64, fields map[string]interface{}) error {
			patched = fields
			return nil
		},
	}
	s := NewService(api, bk, nil)

	if err := s.Archive(context.Background(), 5); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if patched["status"] != model.ProductStatusArchived {
		t.Errorf("patch: got %v", patched)
	}

	stored := bk.GetSystemNotifications()
	if len(stored) != 1 {
		t.Fatalf("got %d system notifications, want 1", len(stored))
	}

	// Same-day retry collapses into the existing record.
	if err := s.Archive(context.Background(), 5); err != nil {
		t.Fatalf("second Archive: %v", err)
	}
	if got := bk.GetSystemNotifications(); len(got) != 1 {
		t.Errorf("retry duplicated the notification: %d records", len(got))
	}
}

func TestService_ChangePriceNoOpOnSamePrice(t *testing.T) {
	bk := testutil.NewTestStore(t)
	api := &fakeBackend{
		t: t,
		getProduct: func(ctx context.Context, id int64) (*model.Product, error) {
			return &model.Product{ID: id, Name: "A", BasePrice: 500}, nil
		},
	}
	s := NewService(api, bk, nil)

	// updateProduct is nil: an update call would fail the test.
	if err := s.ChangePrice(context.Background(), 1, 500); err != nil {
		t.Fatalf("ChangePrice: %v", err)
	}
	if got := bk.GetSystemNotifications(); len(got) != 0 {
		t.Errorf("no-op price change emitted %d notifications", len(got))
	}
}

func TestService_ChangePriceDescription(t *testing.T) {
	bk := testutil.NewTestStore(t)
	api := &fakeBackend{
		t: t,
		getProduct: func(ctx context.Context, id int64) (*model.Product, error) {
			return &model.Product{ID: id, Name: "Amoxicillin 500mg", BasePrice: 1250}, nil
		},
		updateProduct: func(ctx context.Context, id int64, fields map[string]interface{}) error {
			return nil
		},
	}
	s := NewService(api, bk, nil)

	if err := s.ChangePrice(context.Background(), 1, 1300); err != nil {
		t.Fatalf("ChangePrice: %v", err)
	}

	stored := bk.GetSystemNotifications()
	if len(stored) != 1 {
		t.Fatalf("got %d notifications, want 1", len(stored))
	}
	if !strings.Contains(stored[0].Description, "12.50") || !strings.Contains(stored[0].Description, "13.00") {
		t.Errorf("Description: got %q, want both prices", stored[0].Description)
	}
}

func TestService_SaveVariantRejectsBadFactor(t *testing.T) {
	s := NewService(&fakeBackend{t: t}, testutil.NewTestStore(t), nil)

	if _, err := s.SaveVariant(context.Background(), model.Variant{UnitName: "box", Factor: 0}); err == nil {
		t.Error("SaveVariant accepted a zero factor")
	}
	if _, err := s.SaveVariant(context.Background(), model.Variant{UnitName: "box", Factor: -5}); err == nil {
		t.Error("SaveVariant accepted a negative factor")
	}
}

func TestService_ImportCSV(t *testing.T) {
	bk := testutil.NewTestStore(t)
	var created []model.Product
	api := &fakeBackend{
		t: t,
		createProduct: func(ctx context.Context, p model.Product) (*model.Product, error) {
			if p.Name == "duplicate" {
				return nil, errors.New("unique constraint violation")
			}
			created = append(created, p)
			return &p, nil
		},
	}
	s := NewService(api, bk, nil)

	input := strings.Join([]string{
		"name,quantity,price,expire_date",
		"Amoxicillin 500mg,120,12.50,2027-06-01",
		",5,1.00,",               // missing name
		"Paracetamol 500mg,-3,1.00,", // negative quantity
		"Ibuprofen 400mg,80,8,not-a-date",
		"duplicate,10,2.00,",
		"Cetirizine 10mg,40,3.75,",
	}, "\n")

	report, err := s.ImportCSV(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if report.Imported != 2 {
		t.Errorf("Imported: got %d, want 2", report.Imported)
	}
	if report.Skipped != 4 {
		t.Errorf("Skipped: got %d, want 4", report.Skipped)
	}
	if len(report.Errors) != 4 {
		t.Fatalf("Errors: got %d, want 4: %v", len(report.Errors), report.Errors)
	}
	if report.Errors[0].Line != 3 {
		t.Errorf("first error line: got %d, want 3", report.Errors[0].Line)
	}

	if len(created) != 2 {
		t.Fatalf("created %d products, want 2", len(created))
	}
	if created[0].BasePrice != 1250 {
		t.Errorf("price in cents: got %d, want 1250", created[0].BasePrice)
	}
	if created[0].ExpireDate == nil {
		t.Error("expire_date dropped")
	}
	if created[1].ExpireDate != nil {
		t.Error("empty expire_date parsed as a date")
	}

	stored := bk.GetSystemNotifications()
	if len(stored) != 1 {
		t.Fatalf("got %d system notifications, want 1", len(stored))
	}
	if !strings.Contains(stored[0].Description, "2 products imported") {
		t.Errorf("Description: got %q", stored[0].Description)
	}
}

func TestService_ImportCSVRejectsBadHeader(t *testing.T) {
	s := NewService(&fakeBackend{t: t}, testutil.NewTestStore(t), nil)

	_, err := s.ImportCSV(context.Background(), strings.NewReader("sku,qty,cost\nx,1,2"))
	if err == nil {
		t.Fatal("ImportCSV accepted a wrong header")
	}
}

func TestService_ImportCSVNothingImportedNoNotification(t *testing.T) {
	bk := testutil.NewTestStore(t)
	s := NewService(&fakeBackend{t: t}, bk, nil)

	report, err := s.ImportCSV(context.Background(), strings.NewReader("name,quantity,price,expire_date\n,1,2.00,\n"))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if report.Imported != 0 || report.Skipped != 1 {
		t.Errorf("report: got %+v", report)
	}
	if got := bk.GetSystemNotifications(); len(got) != 0 {
		t.Errorf("empty import emitted %d notifications", len(got))
	}
}
