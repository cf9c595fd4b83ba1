package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExpoPusher(t *testing.T) {
	var received []Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode: %v", err)
		}
		io.WriteString(w, `{"data":[{"status":"ok","id":"ticket-1"}]}`)
	}))
	defer srv.Close()

	p := NewExpoPusher(srv.URL, "secret")
	err := p.Push(context.Background(), Notification{
		To:    "ExponentPushToken[abc]",
		Title: "Subscription Renewal Reminder",
		Body:  "body",
		Data:  map[string]string{"subscriptionId": "s1"},
	})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if len(received) != 1 || received[0].Sound != "default" || received[0].Data["subscriptionId"] != "s1" {
		t.Errorf("received = %+v", received)
	}
}

func TestExpoPusherErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"device not registered", 200, `{"data":[{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered"}}]}`, ErrDeviceNotRegistered},
		{"ticket error", 200, `{"data":[{"status":"error","message":"too big"}]}`, nil},
		{"http error", 500, `{"errors":[{"message":"boom"}]}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := NewExpoPusher(srv.URL, "").Push(context.Background(), Notification{To: "t"})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
