// Package notify derives the notification feed from the current product
// snapshot plus locally persisted bookkeeping. The derivation is pure and
// idempotent: the same inputs always produce the same feed, and notification
// ids are stable for as long as the underlying condition persists.
package notify

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mwangi/pharmos/internal/model"
)

// Icon type identifiers for derived notifications.
const (
	iconLowStock     = "low-stock"
	iconNoStock      = "no-stock"
	iconExpired      = "expired"
	iconExpiringSoon = "expiring-soon"
)

// Result is the output of one generation pass.
type Result struct {
	// All is every current notification, read flags applied, sorted by
	// CreatedAt descending. Includes dismissed entries (history view).
	All []model.Notification

	// Active is All minus dismissed ids.
	Active []model.Notification

	// Episodes is the episode timestamp map after this pass.
	Episodes map[string]string

	// Dirty reports whether Episodes differs from the input map and
	// needs persisting.
	Dirty bool
}

// lowEpisodeKey identifies a product's low-stock episode.
func lowEpisodeKey(productID int64) string {
	return fmt.Sprintf("low-%d", productID)
}

// noStockEpisodeKey identifies a product's out-of-stock episode.
func noStockEpisodeKey(productID int64) string {
	return fmt.Sprintf("no-stock-%d", productID)
}

// Generate computes the notification set for the given product snapshot.
//
// Episode bookkeeping: a low-stock or out-of-stock condition is one episode,
// identified by the timestamp at which it was first observed. The timestamp
// is embedded in the notification id, so read/dismissed state sticks for the
// whole episode and a recurrence after recovery produces a fresh, unread id.
// Entries are removed from the episode map exactly when the condition
// resolves.
//
// Generate does not touch storage; the caller persists Result.Episodes when
// Result.Dirty is set. Calling it again with the updated map and otherwise
// unchanged inputs yields an identical feed with Dirty false.
func Generate(
	products []model.Product,
	settings model.NotificationSettings,
	readIDs []string,
	dismissedIDs []string,
	episodes map[string]string,
	now time.Time,
) Result {
	read := toSet(readIDs)
	dismissed := toSet(dismissedIDs)

	updated := make(map[string]string, len(episodes))
	for k, v := range episodes {
		updated[k] = v
	}
	dirty := false

	var all []model.Notification

	for _, p := range products {
		if p.Archived() {
			continue
		}

		lowKey := lowEpisodeKey(p.ID)
		noKey := noStockEpisodeKey(p.ID)

		// Stock replenished above the threshold resolves the low episode.
		if p.Quantity > settings.LowStockThreshold {
			if _, ok := updated[lowKey]; ok {
				delete(updated, lowKey)
				dirty = true
			}
		}

		// Hitting zero exits the low episode; the product is now in a
		// distinct out-of-stock episode.
		if p.Quantity == 0 {
			if _, ok := updated[lowKey]; ok {
				delete(updated, lowKey)
				dirty = true
			}
		}

		// Any stock on hand resolves the out-of-stock episode.
		if p.Quantity > 0 {
			if _, ok := updated[noKey]; ok {
				delete(updated, noKey)
				dirty = true
			}
		}

		if p.Quantity > 0 && p.Quantity <= settings.LowStockThreshold {
			ts, createdAt := ensureEpisode(updated, lowKey, now, &dirty)
			all = append(all, model.Notification{
				ID:       fmt.Sprintf("low-%d-%s", p.ID, ts),
				Category: model.CategoryLowStock,
				IconType: iconLowStock,
				Title:    "Low stock",
				Description: fmt.Sprintf(
					"%s is running low (%d left)", p.Name, p.Quantity,
				),
				Path:      fmt.Sprintf("/inventory/%d", p.ID),
				CreatedAt: createdAt,
			})
		}

		if p.Quantity == 0 {
			ts, createdAt := ensureEpisode(updated, noKey, now, &dirty)
			all = append(all, model.Notification{
				ID:       fmt.Sprintf("no-stock-%d-%s", p.ID, ts),
				Category: model.CategoryNoStock,
				IconType: iconNoStock,
				Title:    "Out of stock",
				Description: fmt.Sprintf(
					"%s is out of stock", p.Name,
				),
				Path:      fmt.Sprintf("/inventory/%d", p.ID),
				CreatedAt: createdAt,
			})
		}

		// Products without a tracked expiry skip expiry evaluation.
		if p.ExpireDate == nil {
			continue
		}

		if p.ExpireDate.Before(now) {
			all = append(all, model.Notification{
				ID:       fmt.Sprintf("expired-%d", p.ID),
				Category: model.CategoryExpired,
				IconType: iconExpired,
				Title:    "Product expired",
				Description: fmt.Sprintf(
					"%s expired on %s", p.Name, p.ExpireDate.Format("Jan 2, 2006"),
				),
				Path:      fmt.Sprintf("/inventory/%d", p.ID),
				CreatedAt: *p.ExpireDate,
			})
			continue
		}

		if settings.EnableExpiringSoon {
			days := daysUntil(now, *p.ExpireDate)
			if days > 0 && days <= settings.ExpiringSoonDays {
				all = append(all, model.Notification{
					ID:       fmt.Sprintf("exp-soon-%d", p.ID),
					Category: model.CategoryExpiringSoon,
					IconType: iconExpiringSoon,
					Title:    "Expiring soon",
					Description: fmt.Sprintf(
						"%s expires in %s", p.Name, pluralDays(days),
					),
					Path:      fmt.Sprintf("/inventory/%d", p.ID),
					CreatedAt: now,
				})
			}
		}
	}

	result := Result{
		All:      finalize(all, read, dismissed),
		Episodes: updated,
		Dirty:    dirty,
	}
	return result.withActive(dismissed)
}

// withActive fills Active from All by dropping dismissed ids.
func (r Result) withActive(dismissed map[string]struct{}) Result {
	active := make([]model.Notification, 0, len(r.All))
	for _, n := range r.All {
		if _, ok := dismissed[n.ID]; ok {
			continue
		}
		active = append(active, n)
	}
	r.Active = active
	return r
}

// Merge prepends the stored system notifications onto a derived result,
// re-applying read flags, sort order, and the dismissed filter.
func (r Result) Merge(
	system []model.SystemNotification,
	readIDs []string,
	dismissedIDs []string,
) Result {
	if len(system) == 0 {
		return r
	}

	read := toSet(readIDs)
	dismissed := toSet(dismissedIDs)

	all := make([]model.Notification, 0, len(system)+len(r.All))
	for _, rec := range system {
		all = append(all, systemToNotification(rec))
	}
	all = append(all, r.All...)

	r.All = finalize(all, read, dismissed)
	return r.withActive(dismissed)
}

// systemToNotification maps a stored system record to the feed shape.
func systemToNotification(rec model.SystemNotification) model.Notification {
	category := rec.Category
	if category == "" {
		category = model.CategorySystem
	}
	return model.Notification{
		ID:          rec.ID,
		Category:    category,
		IconType:    rec.IconType,
		Title:       rec.Title,
		Description: rec.Description,
		Path:        rec.Path,
		CreatedAt:   rec.CreatedAt,
	}
}

// finalize applies read flags and the global ordering: CreatedAt
// descending, ties broken by id so recomputation is deterministic.
func finalize(
	all []model.Notification,
	read map[string]struct{},
	dismissed map[string]struct{},
) []model.Notification {
	for i := range all {
		_, all[i].Read = read[all[i].ID]
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	return all
}

// ensureEpisode returns the episode timestamp for key, creating one at now
// when the episode is new.
func ensureEpisode(
	episodes map[string]string,
	key string,
	now time.Time,
	dirty *bool,
) (string, time.Time) {
	if ts, ok := episodes[key]; ok {
		if createdAt, err := time.Parse(time.RFC3339, ts); err == nil {
			return ts, createdAt
		}
		// Unparsable timestamp: restamp the episode rather than fail.
	}

	ts := now.UTC().Format(time.RFC3339)
	episodes[key] = ts
	*dirty = true

	// Round-trip through the stored string so CreatedAt is identical on
	// this pass and every later one (RFC 3339 drops sub-second precision).
	createdAt, _ := time.Parse(time.RFC3339, ts)
	return ts, createdAt
}

// daysUntil returns the number of calendar days from now until expire,
// comparing date-truncated values so the time of day never shifts the
// count. A product expiring later today is 0 days out.
func daysUntil(now, expire time.Time) int {
	expire = expire.In(now.Location())
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	expireDay := time.Date(expire.Year(), expire.Month(), expire.Day(), 0, 0, 0, 0, now.Location())

	// Rounding absorbs DST-shortened and -lengthened days.
	return int(math.Round(expireDay.Sub(nowDay).Hours() / 24))
}

// pluralDays formats a day count for display.
func pluralDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// toSet converts an id slice to a membership set.
func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
