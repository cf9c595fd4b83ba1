package google

import (
	"context"
	"strings"
	"testing"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{CredentialsJSON: "{}"})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet ID")
	}
	if err.Error() != "missing spreadsheet ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "sheet-id",
		CredentialsFile: t.TempDir() + "/missing.json",
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("expected read error, got: %v", err)
	}
}

func TestClient_tabName(t *testing.T) {
	tests := []struct {
		prefix string
		user   string
		want   string
	}{
		{"Subscriptions", "u1", "Subscriptions u1"},
		{"Subs", "team/alice", "Subs team_alice"},
		{"Subscriptions", "o'brien!", "Subscriptions o_brien_"},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			c := &Client{tabPrefix: tt.prefix}
			if got := c.tabName(tt.user); got != tt.want {
				t.Errorf("tabName(%q) = %q, want %q", tt.user, got, tt.want)
			}
		})
	}
}

func TestClient_PublishWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if err := c.PublishSubscriptions(context.Background(), "u1", nil); err == nil {
		t.Error("expected error when service is not initialized")
	}
}

func TestToValues(t *testing.T) {
	rows := [][]string{{"Name", "Amount"}, {}, {"Netflix", "15.99"}}
	vals := toValues(rows)

	if len(vals) != 3 || len(vals[1]) != 0 {
		t.Fatalf("toValues() shape = %v", vals)
	}
	if vals[2][0] != "Netflix" || vals[2][1] != "15.99" {
		t.Errorf("toValues() row = %v", vals[2])
	}
}
