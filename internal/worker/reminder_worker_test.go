package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"subtrack/internal/amqp"
	"subtrack/internal/notify"
	"subtrack/internal/preferences"
)

type fakePusher struct {
	sent []notify.Notification
	err  error
}

func (f *fakePusher) Push(_ context.Context, n notify.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func reminderMsg() *amqp.ReminderDueMessage {
	return amqp.NewReminderDueMessage("r1", "s1", "u1",
		"Subscription Renewal Reminder",
		"Your subscription to Netflix will renew on Feb 01, 2024. Amount: $15.99",
		"2024-02-01")
}

func TestReminderWorker_HandleReminderDue(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		settings *preferences.Settings
		pushErr  error
		wantErr  bool
		wantSent int
	}{
		{
			name:     "no device registered",
			settings: nil,
			wantSent: 0,
		},
		{
			name:     "notifications enabled",
			settings: &preferences.Settings{Theme: preferences.ThemeDark, PushToken: "ExponentPushToken[abc]", NotificationsEnabled: true},
			wantSent: 1,
		},
		{
			name:     "notifications disabled",
			settings: &preferences.Settings{Theme: preferences.ThemeLight, PushToken: "ExponentPushToken[abc]", NotificationsEnabled: false},
			wantSent: 0,
		},
		{
			name:     "push fails",
			settings: &preferences.Settings{Theme: preferences.ThemeLight, PushToken: "ExponentPushToken[abc]", NotificationsEnabled: true},
			pushErr:  errors.New("expo unavailable"),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := preferences.NewService(preferences.NewMemoryKV())
			if tt.settings != nil {
				if err := prefs.Save(ctx, "u1", *tt.settings); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			}
			pusher := &fakePusher{err: tt.pushErr}
			w := NewReminderWorker(prefs, pusher)

			err := w.HandleReminderDue(ctx, reminderMsg())
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleReminderDue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(pusher.sent) != tt.wantSent {
				t.Fatalf("sent %d notifications, want %d", len(pusher.sent), tt.wantSent)
			}
			if tt.wantSent == 1 {
				n := pusher.sent[0]
				if n.To != tt.settings.PushToken || n.Title != "Subscription Renewal Reminder" {
					t.Errorf("notification = %+v", n)
				}
				if n.Data["subscriptionId"] != "s1" {
					t.Errorf("notification data = %v", n.Data)
				}
			}
		})
	}
}

func TestReminderWorker_ClearsUnregisteredToken(t *testing.T) {
	ctx := context.Background()
	prefs := preferences.NewService(preferences.NewMemoryKV())
	settings := preferences.DefaultSettings()
	settings.PushToken = "ExponentPushToken[stale]"
	if err := prefs.Save(ctx, "u1", settings); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	pusher := &fakePusher{err: fmt.Errorf("expo ticket: %w", notify.ErrDeviceNotRegistered)}
	w := NewReminderWorker(prefs, pusher)

	if err := w.HandleReminderDue(ctx, reminderMsg()); err != nil {
		t.Fatalf("HandleReminderDue() error = %v, want nil", err)
	}

	got, err := prefs.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.PushToken != "" {
		t.Errorf("PushToken = %q, want cleared", got.PushToken)
	}
	if !got.NotificationsEnabled {
		t.Error("NotificationsEnabled should be untouched")
	}
}
