package model

import "time"

// Notification categories. CategoryAll is a filter value only and never
// appears on a notification itself.
const (
	CategoryAll          = "All"
	CategoryLowStock     = "Low Stock"
	CategoryNoStock      = "No Stock"
	CategoryExpired      = "Expired"
	CategoryExpiringSoon = "Expiring Soon"
	CategorySystem       = "System"
)

// Categories lists every real notification category in display order.
var Categories = []string{
	CategoryLowStock,
	CategoryNoStock,
	CategoryExpired,
	CategoryExpiringSoon,
	CategorySystem,
}

// Notification is a derived alert surfaced to the user. Notifications are
// recomputed on every refresh and never stored; only their ids are tracked
// (read and dismissed sets), which is why ID must be a pure function of the
// underlying condition.
type Notification struct {
	// ID is stable across recomputations for the same real-world condition.
	// Stock alerts embed the episode timestamp so a resolved-and-recurred
	// condition mints a fresh id.
	ID string `json:"id"`

	// Category is one of the Category* constants (never CategoryAll).
	Category string `json:"category"`

	// IconType selects the glyph rendered next to the notification.
	IconType string `json:"icon_type"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// Path is a deep link into the app, e.g. "/inventory/42".
	Path string `json:"path"`

	CreatedAt time.Time `json:"created_at"`
}

// SystemNotification is an ad-hoc event record written by collaborator
// actions (CSV import, archive, price change, delete). Unlike derived
// notifications these are persisted, and deleted once read or dismissed.
type SystemNotification struct {
	ID          string    `json:"id"`
	IconType    string    `json:"icon_type"`
	IconBg      string    `json:"icon_bg,omitempty"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Path        string    `json:"path,omitempty"`
}

// NotificationSettings are the user-editable thresholds driving stock and
// expiry alerts.
type NotificationSettings struct {
	// LowStockThreshold is the quantity at or below which (but above zero)
	// a product counts as low on stock.
	LowStockThreshold int `json:"low_stock_threshold"`

	// ExpiringSoonDays is how many days before expiry a product starts
	// counting as expiring soon.
	ExpiringSoonDays int `json:"expiring_soon_days"`

	// EnableExpiringSoon toggles Expiring Soon alerts entirely.
	// Expired alerts are unaffected.
	EnableExpiringSoon bool `json:"enable_expiring_soon"`
}

// DefaultNotificationSettings returns the settings used when nothing has
// been persisted yet. Stored settings are unmarshaled over these defaults
// so missing keys fall back.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		LowStockThreshold:  10,
		ExpiringSoonDays:   30,
		EnableExpiringSoon: true,
	}
}
