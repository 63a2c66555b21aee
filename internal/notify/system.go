package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mwangi/pharmos/internal/model"
	"github.com/mwangi/pharmos/internal/store"
)

// AddSystemNotification appends a system event record to bookkeeping
// storage. Insertion is idempotent on id: a retried collaborator call with
// the same id is a no-op, so repeated imports never stack duplicate alerts.
// The store broadcast triggers feed re-derivation.
//
// A missing id gets a random one; a missing CreatedAt gets the current
// time; the category defaults to System.
func AddSystemNotification(bk store.Bookkeeping, rec model.SystemNotification) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Category == "" {
		rec.Category = model.CategorySystem
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	stored := bk.GetSystemNotifications()
	for _, existing := range stored {
		if existing.ID == rec.ID {
			return nil
		}
	}

	if err := bk.SetSystemNotifications(append(stored, rec)); err != nil {
		return fmt.Errorf("storing system notification %q: %w", rec.ID, err)
	}
	return nil
}
