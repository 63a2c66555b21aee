// Package sync keeps a cached snapshot of the remote product table and
// signals registered listeners whenever inventory-relevant fields change.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/mwangi/pharmos/internal/model"
)

// ErrNoSnapshot is returned by Snapshot before the first successful fetch.
var ErrNoSnapshot = errors.New("no product snapshot fetched yet")

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// ProductLister is the slice of the backend client the watcher needs.
type ProductLister interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
}

// Watcher polls the backend product table on an interval (plus on demand)
// and invokes its listeners when the snapshot changes. The latest snapshot
// is cached so consumers can re-derive without a second network fetch.
type Watcher struct {
	client   ProductLister
	interval time.Duration
	log      *zap.Logger

	mu          gosync.Mutex
	snapshot    []model.Product
	fingerprint string
	lastErr     error
	fetched     bool
	listeners   []func()
	running     bool

	triggerCh chan struct{}
	stopCh    chan struct{}
}

// New creates a watcher polling client at the given interval.
func New(client ProductLister, interval time.Duration, log *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		client:    client,
		interval:  interval,
		log:       log,
		lastErr:   ErrNoSnapshot,
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// OnChange registers fn to run after every snapshot change, including the
// first successful fetch. Must be called before Start.
func (w *Watcher) OnChange(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Start launches the polling loop. It fetches once immediately.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.loop()
}

// Stop halts the polling loop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopCh)
	w.running = false
}

// Poke requests an immediate re-fetch without blocking.
func (w *Watcher) Poke() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
		// A poll is already pending; skip to avoid blocking.
	}
}

// Snapshot returns a copy of the most recent product snapshot. The error is
// non-nil when the latest fetch failed (stale data is not served as fresh)
// or when nothing has been fetched yet.
func (w *Watcher) Snapshot(ctx context.Context) ([]model.Product, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.lastErr != nil {
		return nil, w.lastErr
	}

	out := make([]model.Product, len(w.snapshot))
	copy(out, w.snapshot)
	return out, nil
}

// loop is the polling goroutine.
func (w *Watcher) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.poll()
		case <-w.triggerCh:
			w.poll()
		}
	}
}

// poll fetches the product table once and fires listeners when the
// inventory fingerprint changed.
func (w *Watcher) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	products, err := w.client.ListProducts(ctx)
	if err != nil {
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		w.log.Warn("product poll failed", zap.Error(err))
		return
	}

	fp := fingerprint(products)

	w.mu.Lock()
	changed := !w.fetched || fp != w.fingerprint
	w.snapshot = products
	w.fingerprint = fp
	w.lastErr = nil
	w.fetched = true
	listeners := make([]func(), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	if !changed {
		return
	}

	w.log.Debug("product snapshot changed", zap.Int("products", len(products)))
	for _, fn := range listeners {
		fn()
	}
}

// fingerprint summarizes the fields notification derivation depends on.
// Products arrive name-ordered from the backend, so the concatenation is
// stable for an unchanged table.
func fingerprint(products []model.Product) string {
	var b strings.Builder
	for _, p := range products {
		expire := ""
		if p.ExpireDate != nil {
			expire = p.ExpireDate.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%d:%d:%s:%s;", p.ID, p.Quantity, expire, p.Status)
	}
	return b.String()
}
