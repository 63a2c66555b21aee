package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mwangi/pharmos/internal/model"
)

// listerFunc adapts a function to the ProductLister interface.
type listerFunc func(ctx context.Context) ([]model.Product, error)

func (f listerFunc) ListProducts(ctx context.Context) ([]model.Product, error) {
	return f(ctx)
}

func TestWatcher_SnapshotBeforeFirstFetch(t *testing.T) {
	w := New(listerFunc(func(ctx context.Context) ([]model.Product, error) {
		return nil, nil
	}), time.Minute, nil)

	if _, err := w.Snapshot(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Snapshot: got %v, want ErrNoSnapshot", err)
	}
}

func TestWatcher_FiresOnChangeOnly(t *testing.T) {
	products := []model.Product{
		{ID: 1, Name: "A", Quantity: 10, Status: model.ProductStatusAvailable},
	}
	w := New(listerFunc(func(ctx context.Context) ([]model.Product, error) {
		out := make([]model.Product, len(products))
		copy(out, products)
		return out, nil
	}), time.Minute, nil)

	fired := 0
	w.OnChange(func() { fired++ })

	// First successful fetch always counts as a change.
	w.poll()
	if fired != 1 {
		t.Fatalf("after first poll: fired = %d, want 1", fired)
	}

	// Identical table: no notification.
	w.poll()
	if fired != 1 {
		t.Errorf("after unchanged poll: fired = %d, want 1", fired)
	}

	// Quantity moved: notification.
	products[0].Quantity = 0
	w.poll()
	if fired != 2 {
		t.Errorf("after quantity change: fired = %d, want 2", fired)
	}

	// Status moved: notification.
	products[0].Status = model.ProductStatusArchived
	w.poll()
	if fired != 3 {
		t.Errorf("after status change: fired = %d, want 3", fired)
	}

	snapshot, err := w.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].Quantity != 0 {
		t.Errorf("Snapshot: got %+v", snapshot)
	}
}

func TestWatcher_FetchErrorSurfacesAndClears(t *testing.T) {
	fetchErr := errors.New("backend unreachable")
	failing := false
	w := New(listerFunc(func(ctx context.Context) ([]model.Product, error) {
		if failing {
			return nil, fetchErr
		}
		return []model.Product{{ID: 1, Name: "A", Quantity: 5}}, nil
	}), time.Minute, nil)

	w.poll()
	if _, err := w.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot after success: %v", err)
	}

	failing = true
	w.poll()
	if _, err := w.Snapshot(context.Background()); !errors.Is(err, fetchErr) {
		t.Errorf("Snapshot after failure: got %v, want %v", err, fetchErr)
	}

	failing = false
	w.poll()
	if _, err := w.Snapshot(context.Background()); err != nil {
		t.Errorf("Snapshot after recovery: %v", err)
	}
}

func TestWatcher_SnapshotReturnsCopy(t *testing.T) {
	w := New(listerFunc(func(ctx context.Context) ([]model.Product, error) {
		return []model.Product{{ID: 1, Name: "A", Quantity: 5}}, nil
	}), time.Minute, nil)

	w.poll()
	first, _ := w.Snapshot(context.Background())
	first[0].Quantity = 999

	second, _ := w.Snapshot(context.Background())
	if second[0].Quantity != 5 {
		t.Errorf("Snapshot shares backing array with callers: %+v", second[0])
	}
}

func TestWatcher_StartAndPoke(t *testing.T) {
	fetched := make(chan struct{}, 8)
	w := New(listerFunc(func(ctx context.Context) ([]model.Product, error) {
		fetched <- struct{}{}
		return nil, nil
	}), time.Hour, nil)

	w.Start()
	defer w.Stop()

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial fetch after Start")
	}

	w.Poke()
	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch after Poke")
	}
}

func TestFingerprint(t *testing.T) {
	expire := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	a := []model.Product{{ID: 1, Quantity: 5, ExpireDate: &expire, Status: model.ProductStatusAvailable}}
	b := []model.Product{{ID: 1, Quantity: 5, ExpireDate: &expire, Status: model.ProductStatusAvailable}}
	if fingerprint(a) != fingerprint(b) {
		t.Error("equal tables produced different fingerprints")
	}

	// Fields irrelevant to derivation do not perturb the fingerprint.
	b[0].Name = "renamed"
	b[0].BasePrice = 999
	if fingerprint(a) != fingerprint(b) {
		t.Error("name or price change perturbed the fingerprint")
	}

	b[0].Quantity = 4
	if fingerprint(a) == fingerprint(b) {
		t.Error("quantity change not reflected in the fingerprint")
	}
}
