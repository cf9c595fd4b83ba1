package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReminderDueMessage asks the reminder worker to deliver one reminder. It
// carries the rendered text so the worker does not need the subscription.
type ReminderDueMessage struct {
	ReminderID     string    `json:"reminder_id"`
	SubscriptionID string    `json:"subscription_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	RenewsOn       string    `json:"renews_on"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewReminderDueMessage creates a reminder message stamped with the current time
func NewReminderDueMessage(reminderID, subscriptionID, userID, title, body, renewsOn string) *ReminderDueMessage {
	return &ReminderDueMessage{
		ReminderID:     reminderID,
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Title:          title,
		Body:           body,
		RenewsOn:       renewsOn,
		Timestamp:      time.Now(),
	}
}

func (m *ReminderDueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderDueMessageFromJSON(data []byte) (*ReminderDueMessage, error) {
	var msg ReminderDueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ReminderID == "" || msg.UserID == "" {
		return nil, fmt.Errorf("reminder message missing reminder_id or user_id")
	}
	return &msg, nil
}

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// SubscriptionEventMessage announces a change to one subscription. Consumers
// fetch the current state from the store.
type SubscriptionEventMessage struct {
	Event          EventType `json:"event"`
	SubscriptionID string    `json:"subscription_id"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewSubscriptionEventMessage(event EventType, subscriptionID, userID string) *SubscriptionEventMessage {
	return &SubscriptionEventMessage{
		Event:          event,
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Timestamp:      time.Now(),
	}
}

func (m *SubscriptionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SubscriptionEventMessageFromJSON(data []byte) (*SubscriptionEventMessage, error) {
	var msg SubscriptionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Event {
	case EventCreated, EventUpdated, EventDeleted:
	default:
		return nil, fmt.Errorf("unknown subscription event %q", msg.Event)
	}
	return &msg, nil
}
