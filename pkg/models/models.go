// Package models holds the persisted entities and the wire-facing
// request/response types shared by the store, pipeline and API layers.
package models

import (
	"encoding/json"
	"time"
)

// User is an account. PasswordHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        *string   `json:"email"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Application is a publisher identity. Its token carries the AP_ prefix
// and authorizes POST /message. DefaultPriority fills in when a publish
// omits one.
type Application struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Name            string    `json:"name"`
	Token           string    `json:"token"`
	Description     *string   `json:"description"`
	DefaultPriority int       `json:"default_priority"`
	Image           *string   `json:"image"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Client is a Gotify-style consumer identity. Its token carries the CL_
// prefix and acts on behalf of the owning user.
type Client struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// Topic is a named publish/subscribe channel.
type Topic struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	OwnerID      *int64    `json:"owner_id"`
	Description  *string   `json:"description"`
	EveryoneRead bool      `json:"everyone_read"`
	EveryoneWrite bool     `json:"everyone_write"`
	CreatedAt    time.Time `json:"created_at"`
}

// TopicPermission grants a user read and/or write on all topics whose name
// matches Pattern (wildcards: "*" one segment, trailing "**" any suffix).
type TopicPermission struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Pattern   string    `json:"topic_pattern"`
	CanRead   bool      `json:"can_read"`
	CanWrite  bool      `json:"can_write"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is the stored form of a notification. Exactly one of
// ApplicationID and TopicID is set. Tags and Actions hold JSON arrays
// serialized to text, Extras a JSON object serialized to text.
type Message struct {
	ID            int64      `json:"id"`
	ApplicationID *int64     `json:"application_id"`
	TopicID       *int64     `json:"topic_id"`
	UserID        *int64     `json:"user_id"`
	Title         *string    `json:"title"`
	Message       string     `json:"message"`
	Priority      int        `json:"priority"`
	Tags          *string    `json:"tags"`
	ClickURL      *string    `json:"click_url"`
	IconURL       *string    `json:"icon_url"`
	Actions       *string    `json:"actions"`
	Extras        *string    `json:"extras"`
	ContentType   *string    `json:"content_type"`
	ScheduledFor  *time.Time `json:"scheduled_for"`
	DeliveredAt   *time.Time `json:"delivered_at"`
	ExpiresAt     *time.Time `json:"expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MessageView is the delivery projection of a Message: what subscribers
// receive on streams and what publish endpoints return. Tags, Actions and
// Extras are decoded back into structured JSON.
type MessageView struct {
	ID          int64           `json:"id"`
	AppID       *int64          `json:"appid"`
	Topic       *string         `json:"topic"`
	Title       *string         `json:"title"`
	Message     string          `json:"message"`
	Priority    int             `json:"priority"`
	Tags        json.RawMessage `json:"tags,omitempty"`
	ClickURL    *string         `json:"click_url,omitempty"`
	IconURL     *string         `json:"icon_url,omitempty"`
	Actions     json.RawMessage `json:"actions,omitempty"`
	Extras      json.RawMessage `json:"extras,omitempty"`
	ContentType *string         `json:"content_type,omitempty"`
	Date        time.Time       `json:"date"`
}

// View projects the message for delivery. topicName is the resolved name
// of the message's topic, nil for application messages.
func (m *Message) View(topicName *string) *MessageView {
	v := &MessageView{
		ID:          m.ID,
		AppID:       m.ApplicationID,
		Topic:       topicName,
		Title:       m.Title,
		Message:     m.Message,
		Priority:    m.Priority,
		ClickURL:    m.ClickURL,
		IconURL:     m.IconURL,
		ContentType: m.ContentType,
		Date:        m.CreatedAt,
	}
	v.Tags = rawJSON(m.Tags)
	v.Actions = rawJSON(m.Actions)
	v.Extras = rawJSON(m.Extras)
	return v
}

// rawJSON passes stored JSON text through unchanged when it parses, so a
// stored `["a","b"]` renders as an array rather than a quoted string.
// Malformed stored text is dropped rather than corrupting the response.
func rawJSON(s *string) json.RawMessage {
	if s == nil || *s == "" {
		return nil
	}
	if !json.Valid([]byte(*s)) {
		return nil
	}
	return json.RawMessage(*s)
}

// Attachment records an uploaded file bound to a message. StorageType is
// "local" for files under the upload directory.
type Attachment struct {
	ID          int64      `json:"id"`
	MessageID   int64      `json:"message_id"`
	Filename    string     `json:"filename"`
	ContentType *string    `json:"content_type"`
	SizeBytes   int64      `json:"size_bytes"`
	StorageType string     `json:"storage_type"`
	StoragePath string     `json:"-"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// WebhookConfig is an inbound or outgoing webhook. Inbound configs expose
// POST /api/wh/{token} and project payloads by WebhookType; outgoing
// configs fire on publishes to their target topic.
type WebhookConfig struct {
	ID                  int64     `json:"id"`
	UserID              int64     `json:"user_id"`
	Name                string    `json:"name"`
	Token               string    `json:"token"`
	WebhookType         string    `json:"webhook_type"`
	TargetTopicID       *int64    `json:"target_topic_id"`
	TargetApplicationID *int64    `json:"target_application_id"`
	Template            *string   `json:"template"`
	Enabled             bool      `json:"enabled"`
	Direction           string    `json:"direction"`
	TargetURL           *string   `json:"target_url"`
	HTTPMethod          string    `json:"http_method"`
	Headers             *string   `json:"headers"`
	BodyTemplate        *string   `json:"body_template"`
	MaxRetries          int       `json:"max_retries"`
	RetryDelaySecs      int       `json:"retry_delay_secs"`
	CreatedAt           time.Time `json:"created_at"`
}

// Webhook directions and payload types.
const (
	WebhookIncoming = "incoming"
	WebhookOutgoing = "outgoing"

	WebhookTypeGitHub  = "github"
	WebhookTypeGrafana = "grafana"
	WebhookTypeGeneric = "generic"
)

// PushRegistration is an opaque push endpoint registered by a client
// device. Publishing to /UP?token= forwards the body to Endpoint.
type PushRegistration struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	Token     string    `json:"token"`
	Endpoint  string    `json:"endpoint"`
	CreatedAt time.Time `json:"created_at"`
}
