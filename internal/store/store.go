package store

import "github.com/mwangi/pharmos/internal/model"

// Fixed bookkeeping keys. Every concern is stored whole under one key;
// callers read-modify-write, the store never merges.
const (
	KeySettings            = "notification_settings"
	KeyReadIDs             = "notification_read_ids"
	KeyDismissedIDs        = "dismissed_notifications"
	KeyEpisodes            = "low_stock_timestamps"
	KeySystemNotifications = "system_notifications"
	KeyMutedCategories     = "muted_categories"
	KeyBranding            = "branding_settings"
)

// Bookkeeping is the client-local persistence contract for notification
// state. Getters never fail: on absence or corrupt data they return the
// typed empty default so a bad key can never take down a derivation pass.
// Setters overwrite the whole value and, on success, broadcast the key to
// all subscribers.
type Bookkeeping interface {
	GetSettings() model.NotificationSettings
	SetSettings(s model.NotificationSettings) error

	GetReadIDs() []string
	SetReadIDs(ids []string) error

	GetDismissedIDs() []string
	SetDismissedIDs(ids []string) error

	// Episodes maps an episode key (e.g. "low-42") to the RFC 3339
	// timestamp at which the condition was first observed.
	GetEpisodes() map[string]string
	SetEpisodes(episodes map[string]string) error

	GetSystemNotifications() []model.SystemNotification
	SetSystemNotifications(notifications []model.SystemNotification) error

	GetMutedCategories() []string
	SetMutedCategories(categories []string) error

	GetBranding() model.Branding
	SetBranding(b model.Branding) error

	// Subscribe registers fn to be called with the changed key after every
	// successful write. The returned function removes the subscription.
	// Callbacks run synchronously on the writer's goroutine and must not
	// block.
	Subscribe(fn func(key string)) (unsubscribe func())
}
