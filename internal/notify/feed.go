package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mwangi/pharmos/internal/model"
	"github.com/mwangi/pharmos/internal/store"
)

// ProductSource supplies the current product snapshot. The watcher's cached
// snapshot backs this in production; tests hand in fixtures.
type ProductSource func(ctx context.Context) ([]model.Product, error)

// DateGroup is one calendar-date bucket of the history view.
type DateGroup struct {
	// Date is the local display date, e.g. "Aug 30, 2026".
	Date  string
	Items []model.Notification
}

// Feed owns the live notification state. It re-derives the feed on every
// bookkeeping change and on product data changes, and exposes the read/
// dismiss/mute mutations.
//
// Passes are serialized: a refresh signal arriving while a pass is running
// coalesces into one trailing rerun instead of interleaving episode-map
// writes.
type Feed struct {
	bk     store.Bookkeeping
	source ProductSource
	log    *zap.Logger
	clock  func() time.Time

	mu        sync.Mutex
	all       []model.Notification
	active    []model.Notification
	muted     map[string]struct{}
	lastErr   error
	refreshed time.Time
	inflight  bool
	rerun     bool

	updates     chan struct{}
	unsubscribe func()
}

// NewFeed creates a feed bound to the given bookkeeping store and product
// source, and subscribes to store broadcasts so settings changes and system
// notification writes (from any component) trigger re-derivation.
func NewFeed(bk store.Bookkeeping, source ProductSource, log *zap.Logger) *Feed {
	if log == nil {
		log = zap.NewNop()
	}

	f := &Feed{
		bk:      bk,
		source:  source,
		log:     log,
		clock:   time.Now,
		muted:   map[string]struct{}{},
		updates: make(chan struct{}, 1),
	}

	f.unsubscribe = bk.Subscribe(func(key string) {
		// Episode writes originate from our own passes; re-deriving on
		// them would loop for nothing.
		if key == store.KeyEpisodes {
			return
		}
		if err := f.Refresh(context.Background()); err != nil {
			f.log.Warn("refresh after bookkeeping change failed", zap.Error(err))
		}
	})

	return f
}

// Close removes the store subscription.
func (f *Feed) Close() {
	if f.unsubscribe != nil {
		f.unsubscribe()
	}
}

// SetClock overrides the time source. Intended for tests.
func (f *Feed) SetClock(clock func() time.Time) {
	f.clock = clock
}

// Updates returns a channel that receives a signal after every completed
// pass. The channel holds at most one pending signal.
func (f *Feed) Updates() <-chan struct{} {
	return f.updates
}

// Refresh runs one full derivation pass: read bookkeeping, generate, persist
// episode changes, publish. Concurrent calls coalesce; the state observed
// after Refresh returns always reflects at least the inputs present when it
// was called.
func (f *Feed) Refresh(ctx context.Context) error {
	f.mu.Lock()
	if f.inflight {
		f.rerun = true
		f.mu.Unlock()
		return nil
	}
	f.inflight = true
	f.mu.Unlock()

	var err error
	for {
		err = f.refreshOnce(ctx)

		f.mu.Lock()
		if f.rerun {
			f.rerun = false
			f.mu.Unlock()
			continue
		}
		f.inflight = false
		f.mu.Unlock()
		break
	}

	f.signal()
	return err
}

// refreshOnce performs a single pass. On product fetch failure the previous
// feed is kept and only the error flag changes; no partial state is
// published.
func (f *Feed) refreshOnce(ctx context.Context) error {
	products, err := f.source(ctx)
	if err != nil {
		f.mu.Lock()
		f.lastErr = err
		f.mu.Unlock()
		f.log.Warn("product fetch failed, keeping previous feed", zap.Error(err))
		return fmt.Errorf("fetching products: %w", err)
	}

	settings := f.bk.GetSettings()
	readIDs := f.bk.GetReadIDs()
	dismissedIDs := f.bk.GetDismissedIDs()
	episodes := f.bk.GetEpisodes()
	system := f.bk.GetSystemNotifications()
	mutedList := f.bk.GetMutedCategories()

	result := Generate(products, settings, readIDs, dismissedIDs, episodes, f.clock())
	result = result.Merge(system, readIDs, dismissedIDs)

	if result.Dirty {
		if err := f.bk.SetEpisodes(result.Episodes); err != nil {
			return fmt.Errorf("persisting episode timestamps: %w", err)
		}
	}

	f.mu.Lock()
	f.all = result.All
	f.active = result.Active
	f.muted = toSet(mutedList)
	f.lastErr = nil
	f.refreshed = f.clock()
	f.mu.Unlock()

	return nil
}

// signal notifies listeners without blocking.
func (f *Feed) signal() {
	select {
	case f.updates <- struct{}{}:
	default:
	}
}

// Notifications returns the default active view: non-dismissed
// notifications with muted categories hidden.
func (f *Feed) Notifications() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.Notification, 0, len(f.active))
	for _, n := range f.active {
		if _, ok := f.muted[n.Category]; ok {
			continue
		}
		out = append(out, n)
	}
	return out
}

// All returns the full history view including dismissed notifications.
func (f *Feed) All() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.Notification, len(f.all))
	copy(out, f.all)
	return out
}

// Visible returns the active notifications under an explicit filter.
// Category model.CategoryAll shows every active notification, muted
// categories included; a specific category shows that category even when
// muted; the empty string means the default view. query is a
// case-insensitive substring match over title and description.
func (f *Feed) Visible(category, query string) []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	needle := strings.ToLower(query)
	var out []model.Notification
	for _, n := range f.active {
		switch category {
		case model.CategoryAll:
			// explicit All: no category filter, mute ignored
		case "":
			if _, ok := f.muted[n.Category]; ok {
				continue
			}
		default:
			if n.Category != category {
				continue
			}
		}

		if needle != "" {
			haystack := strings.ToLower(n.Title + " " + n.Description)
			if !strings.Contains(haystack, needle) {
				continue
			}
		}

		out = append(out, n)
	}
	return out
}

// UnreadCount returns the number of unread notifications in the default
// active view.
func (f *Feed) UnreadCount() int {
	count := 0
	for _, n := range f.Notifications() {
		if !n.Read {
			count++
		}
	}
	return count
}

// CategoryCounts maps every category, plus "All", to its count of active
// (non-dismissed) notifications. Muting does not affect counts.
func (f *Feed) CategoryCounts() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[string]int, len(model.Categories)+1)
	counts[model.CategoryAll] = len(f.active)
	for _, c := range model.Categories {
		counts[c] = 0
	}
	for _, n := range f.active {
		counts[n.Category]++
	}
	return counts
}

// GroupedByDate buckets the full history (dismissed included) by local
// calendar date. Bucket order follows the feed ordering (newest first) and
// items keep their relative order within a bucket.
func (f *Feed) GroupedByDate() []DateGroup {
	f.mu.Lock()
	defer f.mu.Unlock()

	var groups []DateGroup
	for _, n := range f.all {
		date := n.CreatedAt.Local().Format("Jan 2, 2006")
		if len(groups) == 0 || groups[len(groups)-1].Date != date {
			groups = append(groups, DateGroup{Date: date})
		}
		groups[len(groups)-1].Items = append(groups[len(groups)-1].Items, n)
	}
	return groups
}

// IsMuted reports whether category is hidden from the default view.
func (f *Feed) IsMuted(category string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.muted[category]
	return ok
}

// Err returns the error from the most recent failed pass, or nil after a
// successful one.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// LastRefresh returns when the feed last completed a successful pass.
func (f *Feed) LastRefresh() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshed
}

// lookup finds a notification by id in the current full feed.
func (f *Feed) lookup(id string) (model.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, n := range f.all {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// MarkAsRead adds id to the read set. Reading a System notification also
// dismisses it and deletes its backing record: acknowledging a system toast
// clears it. Unknown ids are a no-op. The bookkeeping writes broadcast, so
// the feed re-derives before this returns.
func (f *Feed) MarkAsRead(ctx context.Context, id string) error {
	n, ok := f.lookup(id)
	if !ok {
		return nil
	}

	if err := f.addReadIDs([]string{id}); err != nil {
		return err
	}

	if n.Category == model.CategorySystem {
		if err := f.dismissSystem([]string{id}); err != nil {
			return err
		}
	}
	return nil
}

// MarkAllAsRead marks every active notification read and auto-dismisses the
// System ones.
func (f *Feed) MarkAllAsRead(ctx context.Context) error {
	return f.MarkCategoryAsRead(ctx, model.CategoryAll)
}

// MarkCategoryAsRead is MarkAllAsRead scoped to one category.
// model.CategoryAll covers every category.
func (f *Feed) MarkCategoryAsRead(ctx context.Context, category string) error {
	f.mu.Lock()
	var ids, systemIDs []string
	for _, n := range f.active {
		if category != model.CategoryAll && n.Category != category {
			continue
		}
		ids = append(ids, n.ID)
		if n.Category == model.CategorySystem {
			systemIDs = append(systemIDs, n.ID)
		}
	}
	f.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	if err := f.addReadIDs(ids); err != nil {
		return err
	}
	if len(systemIDs) > 0 {
		if err := f.dismissSystem(systemIDs); err != nil {
			return err
		}
	}
	return nil
}

// Dismiss hides id from the active feed. The id stays in the history view
// and its read state is untouched. Dismissing a System notification also
// deletes its backing record so it cannot resurface.
func (f *Feed) Dismiss(ctx context.Context, id string) error {
	n, ok := f.lookup(id)
	if !ok {
		return nil
	}

	if n.Category == model.CategorySystem {
		return f.dismissSystem([]string{id})
	}
	return f.addDismissedIDs([]string{id})
}

// ClearCategory dismisses every active notification in the category
// (model.CategoryAll clears everything).
func (f *Feed) ClearCategory(ctx context.Context, category string) error {
	f.mu.Lock()
	var ids, systemIDs []string
	for _, n := range f.active {
		if category != model.CategoryAll && n.Category != category {
			continue
		}
		if n.Category == model.CategorySystem {
			systemIDs = append(systemIDs, n.ID)
			continue
		}
		ids = append(ids, n.ID)
	}
	f.mu.Unlock()

	if len(ids) > 0 {
		if err := f.addDismissedIDs(ids); err != nil {
			return err
		}
	}
	if len(systemIDs) > 0 {
		if err := f.dismissSystem(systemIDs); err != nil {
			return err
		}
	}
	return nil
}

// Mute hides a category from the default view. Display-only: episode
// tracking and generation are unaffected, so nothing is lost while muted.
func (f *Feed) Mute(ctx context.Context, category string) error {
	muted := f.bk.GetMutedCategories()
	for _, c := range muted {
		if c == category {
			return nil
		}
	}
	return f.bk.SetMutedCategories(append(muted, category))
}

// Unmute restores a category to the default view.
func (f *Feed) Unmute(ctx context.Context, category string) error {
	muted := f.bk.GetMutedCategories()
	out := muted[:0]
	for _, c := range muted {
		if c != category {
			out = append(out, c)
		}
	}
	if len(out) == len(muted) {
		return nil
	}
	return f.bk.SetMutedCategories(out)
}

// addReadIDs unions ids into the persisted read set.
func (f *Feed) addReadIDs(ids []string) error {
	read := f.bk.GetReadIDs()
	have := toSet(read)
	changed := false
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			read = append(read, id)
			have[id] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.bk.SetReadIDs(read)
}

// addDismissedIDs unions ids into the persisted dismissed set.
func (f *Feed) addDismissedIDs(ids []string) error {
	dismissed := f.bk.GetDismissedIDs()
	have := toSet(dismissed)
	changed := false
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			dismissed = append(dismissed, id)
			have[id] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.bk.SetDismissedIDs(dismissed)
}

// dismissSystem adds ids to the dismissed set and deletes their backing
// records from system notification storage.
func (f *Feed) dismissSystem(ids []string) error {
	if err := f.addDismissedIDs(ids); err != nil {
		return err
	}

	drop := toSet(ids)
	stored := f.bk.GetSystemNotifications()
	kept := stored[:0]
	for _, rec := range stored {
		if _, ok := drop[rec.ID]; !ok {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(stored) {
		return nil
	}
	return f.bk.SetSystemNotifications(kept)
}
