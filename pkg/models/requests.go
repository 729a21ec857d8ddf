package models

// Request bodies for the JSON API. Pointer fields distinguish "omitted"
// from zero values on partial updates.

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type CreateUser struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
	IsAdmin  *bool   `json:"is_admin"`
}

type UpdateUser struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	IsAdmin  *bool   `json:"is_admin"`
	Password *string `json:"password"`
}

type CreateApplication struct {
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	DefaultPriority *int    `json:"default_priority"`
}

type UpdateApplication struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	DefaultPriority *int    `json:"default_priority"`
}

type ChangePassword struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type CreateClient struct {
	Name string `json:"name"`
}

type UpdateClient struct {
	Name *string `json:"name"`
}

type CreateTopic struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	EveryoneRead  *bool   `json:"everyone_read"`
	EveryoneWrite *bool   `json:"everyone_write"`
}

type CreateTopicPermission struct {
	UserID   int64  `json:"user_id"`
	Pattern  string `json:"topic_pattern"`
	CanRead  *bool  `json:"can_read"`
	CanWrite *bool  `json:"can_write"`
}

// CreateAppMessage is the Gotify-compatible POST /message body.
type CreateAppMessage struct {
	Title    *string        `json:"title"`
	Message  string         `json:"message"`
	Priority *int           `json:"priority"`
	Extras   map[string]any `json:"extras"`
}

// CreateTopicMessage is the structured topic publish body.
type CreateTopicMessage struct {
	Title        *string  `json:"title"`
	Message      string   `json:"message"`
	Priority     *int     `json:"priority"`
	Tags         []string `json:"tags"`
	ClickURL     *string  `json:"click_url"`
	IconURL      *string  `json:"icon_url"`
	Actions      []any    `json:"actions"`
	ScheduledFor *string  `json:"scheduled_for"`
}

type CreateWebhook struct {
	Name                string  `json:"name"`
	WebhookType         *string `json:"webhook_type"`
	TargetTopicID       *int64  `json:"target_topic_id"`
	TargetApplicationID *int64  `json:"target_application_id"`
	Template            *string `json:"template"`
	Direction           *string `json:"direction"`
	TargetURL           *string `json:"target_url"`
	HTTPMethod          *string `json:"http_method"`
	Headers             *string `json:"headers"`
	BodyTemplate        *string `json:"body_template"`
	MaxRetries          *int    `json:"max_retries"`
	RetryDelaySecs      *int    `json:"retry_delay_secs"`
}

type UpdateWebhook struct {
	Name           *string `json:"name"`
	Template       *string `json:"template"`
	Enabled        *bool   `json:"enabled"`
	TargetURL      *string `json:"target_url"`
	HTTPMethod     *string `json:"http_method"`
	Headers        *string `json:"headers"`
	BodyTemplate   *string `json:"body_template"`
	MaxRetries     *int    `json:"max_retries"`
	RetryDelaySecs *int    `json:"retry_delay_secs"`
}

type CreatePushRegistration struct {
	Endpoint string `json:"endpoint"`
}

// Paging is the Gotify-style paging envelope on message lists.
type Paging struct {
	Size  int   `json:"size"`
	Since int64 `json:"since"`
	Limit int   `json:"limit"`
}

type PagedMessages struct {
	Messages []*MessageView `json:"messages"`
	Paging   Paging         `json:"paging"`
}

// Stats is the GET /api/stats payload.
type Stats struct {
	Users          int64 `json:"users"`
	Topics         int64 `json:"topics"`
	Messages       int64 `json:"messages"`
	MessagesLast24 int64 `json:"messages_last_24h"`
}
