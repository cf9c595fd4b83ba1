// Package preferences loads and saves per-user application settings through
// a key-value capability.
package preferences

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Storage keys. themeType matches the key used by the mobile client.
const (
	KeyTheme                = "themeType"
	KeyPushToken            = "pushToken"
	KeyNotificationsEnabled = "notificationsEnabled"
	KeyBudgetAlertsEnabled  = "budgetAlertsEnabled"
)

func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return t, nil
	default:
		return "", fmt.Errorf("invalid theme %q (want light, dark or system)", s)
	}
}

// IsDark resolves the theme against the device setting.
func (t Theme) IsDark(systemDark bool) bool {
	switch t {
	case ThemeDark:
		return true
	case ThemeSystem:
		return systemDark
	default:
		return false
	}
}

// Settings is the per-user application context.
type Settings struct {
	Theme                Theme
	PushToken            string
	NotificationsEnabled bool
	BudgetAlertsEnabled  bool
}

func DefaultSettings() Settings {
	return Settings{
		Theme:                ThemeLight,
		NotificationsEnabled: true,
		BudgetAlertsEnabled:  true,
	}
}

// CanPush reports whether a renewal reminder may be pushed to the user.
func (s Settings) CanPush() bool {
	return s.NotificationsEnabled && s.PushToken != ""
}

// KV is a per-user string key-value store.
type KV interface {
	Get(ctx context.Context, userID, key string) (value string, ok bool, err error)
	Set(ctx context.Context, userID, key, value string) error
}

// Service is the load/save contract for Settings.
type Service struct {
	kv KV
}

func NewService(kv KV) *Service {
	return &Service{kv: kv}
}

// Load returns the user's settings, falling back to defaults for missing or
// unreadable values.
func (s *Service) Load(ctx context.Context, userID string) (Settings, error) {
	settings := DefaultSettings()

	if v, ok, err := s.kv.Get(ctx, userID, KeyTheme); err != nil {
		return settings, fmt.Errorf("load theme: %w", err)
	} else if ok {
		theme, err := ParseTheme(v)
		if err != nil {
			slog.WarnContext(ctx, "Invalid stored theme, using default", "user_id", userID, "value", v)
		} else {
			settings.Theme = theme
		}
	}

	if v, ok, err := s.kv.Get(ctx, userID, KeyPushToken); err != nil {
		return settings, fmt.Errorf("load push token: %w", err)
	} else if ok {
		settings.PushToken = v
	}

	var err error
	if settings.NotificationsEnabled, err = s.loadBool(ctx, userID, KeyNotificationsEnabled, true); err != nil {
		return settings, err
	}
	if settings.BudgetAlertsEnabled, err = s.loadBool(ctx, userID, KeyBudgetAlertsEnabled, true); err != nil {
		return settings, err
	}
	return settings, nil
}

func (s *Service) loadBool(ctx context.Context, userID, key string, def bool) (bool, error) {
	v, ok, err := s.kv.Get(ctx, userID, key)
	if err != nil {
		return def, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.WarnContext(ctx, "Invalid stored flag, using default", "user_id", userID, "key", key, "value", v)
		return def, nil
	}
	return b, nil
}

// Save writes every field of settings.
func (s *Service) Save(ctx context.Context, userID string, settings Settings) error {
	if _, err := ParseTheme(string(settings.Theme)); err != nil {
		return err
	}
	pairs := []struct{ key, value string }{
		{KeyTheme, string(settings.Theme)},
		{KeyPushToken, settings.PushToken},
		{KeyNotificationsEnabled, strconv.FormatBool(settings.NotificationsEnabled)},
		{KeyBudgetAlertsEnabled, strconv.FormatBool(settings.BudgetAlertsEnabled)},
	}
	for _, p := range pairs {
		if err := s.kv.Set(ctx, userID, p.key, p.value); err != nil {
			return fmt.Errorf("save %s: %w", p.key, err)
		}
	}
	return nil
}

// SetTheme persists only the theme.
func (s *Service) SetTheme(ctx context.Context, userID string, theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, userID, KeyTheme, string(theme)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// MemoryKV is an in-process KV.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, userID, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[userID][key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, userID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[userID] == nil {
		m.data[userID] = make(map[string]string)
	}
	m.data[userID][key] = value
	return nil
}
