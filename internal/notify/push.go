package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultExpoPushURL is the Expo push service endpoint.
const DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

// ErrDeviceNotRegistered means the push token is no longer valid.
var ErrDeviceNotRegistered = errors.New("device not registered")

// Notification is one push message to a device.
type Notification struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// Pusher delivers a notification to a device.
type Pusher interface {
	Push(ctx context.Context, n Notification) error
}

// ExpoPusher sends notifications through the Expo push API.
type ExpoPusher struct {
	url         string
	accessToken string
	client      *http.Client
}

func NewExpoPusher(url, accessToken string) *ExpoPusher {
	if url == "" {
		url = DefaultExpoPushURL
	}
	return &ExpoPusher{
		url:         url,
		accessToken: accessToken,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *ExpoPusher) Push(ctx context.Context, n Notification) error {
	if n.Sound == "" {
		n.Sound = "default"
	}
	body, err := json.Marshal([]Notification{n})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.accessToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read push response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push service returned status %d: %s",
			resp.StatusCode, gjson.GetBytes(data, "errors.0.message").String())
	}

	ticket := gjson.GetBytes(data, "data.0")
	if ticket.Get("status").String() == "error" {
		if ticket.Get("details.error").String() == "DeviceNotRegistered" {
			return ErrDeviceNotRegistered
		}
		return fmt.Errorf("push rejected: %s", ticket.Get("message").String())
	}
	return nil
}

// LogPusher writes notifications to the log instead of delivering them.
type LogPusher struct{}

func (LogPusher) Push(ctx context.Context, n Notification) error {
	slog.InfoContext(ctx, "Push notification", "to", n.To, "title", n.Title, "body", n.Body)
	return nil
}
