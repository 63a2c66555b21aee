package store

import (
	"testing"
	"time"

	"github.com/mwangi/pharmos/internal/model"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

// corrupt writes a non-JSON blob directly under key, bypassing setRaw.
func corrupt(t *testing.T, s *SQLiteStore, key string) {
	t.Helper()

	_, err := s.db.Exec(`
		INSERT INTO bookkeeping (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, "{not json", time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("injecting corrupt value: %v", err)
	}
}

func TestSQLiteStore_DefaultsOnAbsence(t *testing.T) {
	s := newStore(t)

	if got := s.GetSettings(); got != model.DefaultNotificationSettings() {
		t.Errorf("GetSettings: got %+v, want defaults", got)
	}
	if got := s.GetReadIDs(); len(got) != 0 {
		t.Errorf("GetReadIDs: got %v, want empty", got)
	}
	if got := s.GetEpisodes(); got == nil || len(got) != 0 {
		t.Errorf("GetEpisodes: got %v, want empty non-nil map", got)
	}
	if got := s.GetSystemNotifications(); len(got) != 0 {
		t.Errorf("GetSystemNotifications: got %v, want empty", got)
	}
	if got := s.GetBranding(); got != model.DefaultBranding() {
		t.Errorf("GetBranding: got %+v, want defaults", got)
	}
}

func TestSQLiteStore_DefaultsOnCorruption(t *testing.T) {
	s := newStore(t)

	corrupt(t, s, KeySettings)
	corrupt(t, s, KeyReadIDs)
	corrupt(t, s, KeyEpisodes)

	if got := s.GetSettings(); got != model.DefaultNotificationSettings() {
		t.Errorf("GetSettings on corrupt row: got %+v, want defaults", got)
	}
	if got := s.GetReadIDs(); len(got) != 0 {
		t.Errorf("GetReadIDs on corrupt row: got %v, want empty", got)
	}
	if got := s.GetEpisodes(); got == nil || len(got) != 0 {
		t.Errorf("GetEpisodes on corrupt row: got %v, want empty map", got)
	}

	// A write over the corrupt row repairs it.
	if err := s.SetReadIDs([]string{"low-1-x"}); err != nil {
		t.Fatalf("SetReadIDs: %v", err)
	}
	if got := s.GetReadIDs(); len(got) != 1 || got[0] != "low-1-x" {
		t.Errorf("GetReadIDs after repair: got %v", got)
	}
}

func TestSQLiteStore_RoundTripAndOverwrite(t *testing.T) {
	s := newStore(t)

	settings := model.NotificationSettings{
		LowStockThreshold:  25,
		ExpiringSoonDays:   60,
		EnableExpiringSoon: false,
	}
	if err := s.SetSettings(settings); err != nil {
		t.Fatalf("SetSettings: %v", err)
	}
	if got := s.GetSettings(); got != settings {
		t.Errorf("GetSettings: got %+v, want %+v", got, settings)
	}

	episodes := map[string]string{"low-42": "2026-03-10T09:00:00Z"}
	if err := s.SetEpisodes(episodes); err != nil {
		t.Fatalf("SetEpisodes: %v", err)
	}
	if got := s.GetEpisodes(); got["low-42"] != episodes["low-42"] {
		t.Errorf("GetEpisodes: got %v, want %v", got, episodes)
	}

	// Setters replace the whole value, no merging.
	if err := s.SetEpisodes(map[string]string{"no-stock-7": "2026-03-11T10:00:00Z"}); err != nil {
		t.Fatalf("SetEpisodes: %v", err)
	}
	got := s.GetEpisodes()
	if len(got) != 1 {
		t.Errorf("overwrite merged instead of replacing: %v", got)
	}
	if _, ok := got["low-42"]; ok {
		t.Error("stale episode key survived overwrite")
	}

	recs := []model.SystemNotification{{
		ID:        "import-2026-03-10",
		Title:     "Import finished",
		Category:  model.CategorySystem,
		CreatedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}}
	if err := s.SetSystemNotifications(recs); err != nil {
		t.Fatalf("SetSystemNotifications: %v", err)
	}
	stored := s.GetSystemNotifications()
	if len(stored) != 1 || stored[0].ID != recs[0].ID || !stored[0].CreatedAt.Equal(recs[0].CreatedAt) {
		t.Errorf("GetSystemNotifications: got %+v, want %+v", stored, recs)
	}
}

func TestSQLiteStore_SubscribeBroadcast(t *testing.T) {
	s := newStore(t)

	var keys []string
	unsubscribe := s.Subscribe(func(key string) {
		keys = append(keys, key)
	})

	if err := s.SetReadIDs([]string{"a"}); err != nil {
		t.Fatalf("SetReadIDs: %v", err)
	}
	if err := s.SetMutedCategories([]string{model.CategorySystem}); err != nil {
		t.Fatalf("SetMutedCategories: %v", err)
	}

	if len(keys) != 2 || keys[0] != KeyReadIDs || keys[1] != KeyMutedCategories {
		t.Fatalf("broadcast keys: got %v, want [%s %s]", keys, KeyReadIDs, KeyMutedCategories)
	}

	unsubscribe()
	if err := s.SetReadIDs([]string{"b"}); err != nil {
		t.Fatalf("SetReadIDs: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("callback fired after unsubscribe: %v", keys)
	}
}

func TestSQLiteStore_SubscriberMayWrite(t *testing.T) {
	s := newStore(t)

	var fired int
	s.Subscribe(func(key string) {
		fired++
		if key == KeyReadIDs {
			if err := s.SetDismissedIDs([]string{"x"}); err != nil {
				t.Errorf("nested write: %v", err)
			}
		}
	})

	if err := s.SetReadIDs([]string{"a"}); err != nil {
		t.Fatalf("SetReadIDs: %v", err)
	}
	if fired != 2 {
		t.Errorf("fired = %d, want 2 (original write plus nested write)", fired)
	}
	if got := s.GetDismissedIDs(); len(got) != 1 || got[0] != "x" {
		t.Errorf("nested write lost: %v", got)
	}
}
