package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mwangi/pharmos/internal/model"
)

// SQLiteStore implements Bookkeeping on a local SQLite database holding a
// single key-value table. One row per concern, JSON-encoded.
type SQLiteStore struct {
	db  *sqlx.DB
	log *zap.Logger

	mu          sync.Mutex
	subscribers map[int]func(key string)
	nextSubID   int
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:          db,
		log:         log,
		subscribers: make(map[int]func(key string)),
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Subscribe registers a change callback and returns its removal function.
func (s *SQLiteStore) Subscribe(fn func(key string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// broadcast invokes every subscriber with the changed key. Subscribers are
// called outside the lock so a callback may itself write to the store.
func (s *SQLiteStore) broadcast(key string) {
	s.mu.Lock()
	fns := make([]func(string), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}

// getRaw reads the JSON blob stored under key. ok is false when the key
// is absent.
func (s *SQLiteStore) getRaw(key string) (raw string, ok bool) {
	err := s.db.Get(&raw, "SELECT value FROM bookkeeping WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		s.log.Warn("bookkeeping read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return raw, true
}

// setRaw overwrites the value under key and broadcasts the change.
func (s *SQLiteStore) setRaw(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding bookkeeping value %q: %w", key, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO bookkeeping (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing bookkeeping value %q: %w", key, err)
	}

	s.broadcast(key)
	return nil
}

// decode unmarshals raw into out. Corrupt data is treated as absence:
// out keeps whatever defaults it was initialized with.
func (s *SQLiteStore) decode(key, raw string, out interface{}) {
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.log.Warn("corrupt bookkeeping value, using defaults",
			zap.String("key", key), zap.Error(err))
	}
}

// GetSettings returns the stored notification settings merged over defaults.
func (s *SQLiteStore) GetSettings() model.NotificationSettings {
	settings := model.DefaultNotificationSettings()
	if raw, ok := s.getRaw(KeySettings); ok {
		s.decode(KeySettings, raw, &settings)
	}
	return settings
}

// SetSettings persists the notification settings.
func (s *SQLiteStore) SetSettings(settings model.NotificationSettings) error {
	return s.setRaw(KeySettings, settings)
}

// GetReadIDs returns the set of notification ids the user has seen.
func (s *SQLiteStore) GetReadIDs() []string {
	return s.getStringSlice(KeyReadIDs)
}

// SetReadIDs persists the read-id set.
func (s *SQLiteStore) SetReadIDs(ids []string) error {
	return s.setRaw(KeyReadIDs, ids)
}

// GetDismissedIDs returns the set of dismissed notification ids.
func (s *SQLiteStore) GetDismissedIDs() []string {
	return s.getStringSlice(KeyDismissedIDs)
}

// SetDismissedIDs persists the dismissed-id set.
func (s *SQLiteStore) SetDismissedIDs(ids []string) error {
	return s.setRaw(KeyDismissedIDs, ids)
}

// GetEpisodes returns the episode-key to first-observed-timestamp map.
func (s *SQLiteStore) GetEpisodes() map[string]string {
	episodes := map[string]string{}
	if raw, ok := s.getRaw(KeyEpisodes); ok {
		s.decode(KeyEpisodes, raw, &episodes)
	}
	if episodes == nil {
		episodes = map[string]string{}
	}
	return episodes
}

// SetEpisodes persists the episode timestamp map.
func (s *SQLiteStore) SetEpisodes(episodes map[string]string) error {
	return s.setRaw(KeyEpisodes, episodes)
}

// GetSystemNotifications returns the stored system notification records.
func (s *SQLiteStore) GetSystemNotifications() []model.SystemNotification {
	var notifications []model.SystemNotification
	if raw, ok := s.getRaw(KeySystemNotifications); ok {
		s.decode(KeySystemNotifications, raw, &notifications)
	}
	return notifications
}

// SetSystemNotifications persists the system notification records.
func (s *SQLiteStore) SetSystemNotifications(notifications []model.SystemNotification) error {
	return s.setRaw(KeySystemNotifications, notifications)
}

// GetMutedCategories returns the categories hidden from the default feed.
func (s *SQLiteStore) GetMutedCategories() []string {
	return s.getStringSlice(KeyMutedCategories)
}

// SetMutedCategories persists the muted-category set.
func (s *SQLiteStore) SetMutedCategories(categories []string) error {
	return s.setRaw(KeyMutedCategories, categories)
}

// GetBranding returns the stored branding merged over defaults.
func (s *SQLiteStore) GetBranding() model.Branding {
	branding := model.DefaultBranding()
	if raw, ok := s.getRaw(KeyBranding); ok {
		s.decode(KeyBranding, raw, &branding)
	}
	return branding
}

// SetBranding persists the branding settings.
func (s *SQLiteStore) SetBranding(b model.Branding) error {
	return s.setRaw(KeyBranding, b)
}

// getStringSlice reads a JSON string array under key, defaulting to empty.
func (s *SQLiteStore) getStringSlice(key string) []string {
	var ids []string
	if raw, ok := s.getRaw(key); ok {
		s.decode(key, raw, &ids)
	}
	return ids
}
