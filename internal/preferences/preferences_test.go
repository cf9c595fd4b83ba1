package preferences

import (
	"context"
	"errors"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	svc := NewService(NewMemoryKV())
	got, err := svc.Load(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultSettings() {
		t.Errorf("Load() = %+v, want defaults", got)
	}
	if got.Theme != ThemeLight || !got.NotificationsEnabled || !got.BudgetAlertsEnabled {
		t.Errorf("unexpected defaults: %+v", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	svc := NewService(kv)

	want := Settings{Theme: ThemeDark, PushToken: "ExponentPushToken[abc]", NotificationsEnabled: false, BudgetAlertsEnabled: true}
	if err := svc.Save(ctx, "u1", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := svc.Load(ctx, "u1")
	if err != nil || got != want {
		t.Fatalf("Load() = %+v, %v; want %+v", got, err, want)
	}
	if v, _, _ := kv.Get(ctx, "u1", "themeType"); v != "dark" {
		t.Errorf("themeType stored as %q", v)
	}

	other, _ := svc.Load(ctx, "u2")
	if other != DefaultSettings() {
		t.Errorf("settings leaked across users: %+v", other)
	}
}

func TestSetTheme(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryKV())
	if err := svc.SetTheme(ctx, "u1", ThemeSystem); err != nil {
		t.Fatal(err)
	}
	if got, _ := svc.Load(ctx, "u1"); got.Theme != ThemeSystem {
		t.Errorf("Theme = %q", got.Theme)
	}
	if err := svc.SetTheme(ctx, "u1", "sepia"); err == nil {
		t.Error("expected error for invalid theme")
	}
}

func TestLoadToleratesCorruptValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	kv.Set(ctx, "u1", KeyTheme, "neon")
	kv.Set(ctx, "u1", KeyNotificationsEnabled, "maybe")
	got, err := NewService(kv).Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Theme != ThemeLight || !got.NotificationsEnabled {
		t.Errorf("Load() = %+v, want defaults for corrupt values", got)
	}
}

type failingKV struct{}

func (failingKV) Get(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("backend down")
}
func (failingKV) Set(context.Context, string, string, string) error { return errors.New("backend down") }

func TestLoadPropagatesErrors(t *testing.T) {
	if _, err := NewService(failingKV{}).Load(context.Background(), "u1"); err == nil {
		t.Error("expected error")
	}
}

func TestThemeIsDark(t *testing.T) {
	tests := []struct {
		theme      Theme
		systemDark bool
		want       bool
	}{
		{ThemeLight, true, false},
		{ThemeDark, false, true},
		{ThemeSystem, true, true},
		{ThemeSystem, false, false},
	}
	for _, tt := range tests {
		if got := tt.theme.IsDark(tt.systemDark); got != tt.want {
			t.Errorf("%s.IsDark(%v) = %v, want %v", tt.theme, tt.systemDark, got, tt.want)
		}
	}
}

func TestCanPush(t *testing.T) {
	s := DefaultSettings()
	if s.CanPush() {
		t.Error("no token: CanPush() should be false")
	}
	s.PushToken = "tok"
	if !s.CanPush() {
		t.Error("token + enabled: CanPush() should be true")
	}
	s.NotificationsEnabled = false
	if s.CanPush() {
		t.Error("disabled: CanPush() should be false")
	}
}
