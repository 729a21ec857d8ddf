// Package store is the persistence layer: one capability interface per
// entity with a single PostgreSQL implementation over database/sql.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pushbolt/pushbolt/pkg/models"
)

// Users manages accounts.
type Users interface {
	Create(ctx context.Context, username, passwordHash string, email *string, isAdmin bool) (*models.User, error)
	ByID(ctx context.Context, id int64) (*models.User, error)
	ByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, id int64, username, email *string, isAdmin *bool) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// Applications manages publisher identities.
type Applications interface {
	Create(ctx context.Context, userID int64, name string, description *string, token string) (*models.Application, error)
	ByID(ctx context.Context, id int64) (*models.Application, error)
	ByToken(ctx context.Context, token string) (*models.Application, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Application, error)
	Update(ctx context.Context, id int64, name, description *string, defaultPriority *int) (*models.Application, error)
	UpdateImage(ctx context.Context, id int64, image *string) error
	Delete(ctx context.Context, id int64) error
}

// Clients manages consumer identities.
type Clients interface {
	Create(ctx context.Context, userID int64, name, token string) (*models.Client, error)
	ByID(ctx context.Context, id int64) (*models.Client, error)
	ByToken(ctx context.Context, token string) (*models.Client, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Client, error)
	Update(ctx context.Context, id int64, name string) (*models.Client, error)
	Delete(ctx context.Context, id int64) error
}

// Topics manages topics and their permissions.
type Topics interface {
	Create(ctx context.Context, name string, ownerID *int64, description *string, everyoneRead, everyoneWrite bool) (*models.Topic, error)
	ByID(ctx context.Context, id int64) (*models.Topic, error)
	ByName(ctx context.Context, name string) (*models.Topic, error)
	List(ctx context.Context) ([]*models.Topic, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)

	CreatePermission(ctx context.Context, userID int64, pattern string, canRead, canWrite bool) (*models.TopicPermission, error)
	PermissionsForUser(ctx context.Context, userID int64) ([]*models.TopicPermission, error)
	Permissions(ctx context.Context) ([]*models.TopicPermission, error)
	DeletePermission(ctx context.Context, id int64) error
}

// MessageParams is everything needed to persist one message.
type MessageParams struct {
	ApplicationID *int64
	TopicID       *int64
	UserID        *int64
	Title         *string
	Message       string
	Priority      int
	Tags          *string
	ClickURL      *string
	IconURL       *string
	Actions       *string
	Extras        *string
	ContentType   *string
	ScheduledFor  *time.Time
	ExpiresAt     *time.Time
}

// Messages manages stored notifications.
type Messages interface {
	Create(ctx context.Context, p MessageParams) (*models.Message, error)
	ByID(ctx context.Context, id int64) (*models.Message, error)
	ListByApplication(ctx context.Context, appID int64, limit int, since int64) ([]*models.Message, error)
	ListByUserApps(ctx context.Context, userID int64, limit int, since int64) ([]*models.Message, error)
	ListByTopic(ctx context.Context, topicID int64, limit int, since int64) ([]*models.Message, error)
	Delete(ctx context.Context, id int64) error
	DeleteAllForUser(ctx context.Context, userID int64) (int64, error)

	// ClaimDue atomically marks due scheduled messages delivered and
	// returns them, oldest first.
	ClaimDue(ctx context.Context, now time.Time) ([]*models.Message, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// Attachments manages uploaded files bound to messages.
type Attachments interface {
	Create(ctx context.Context, messageID int64, filename string, contentType *string, sizeBytes int64, storagePath string, expiresAt *time.Time) (*models.Attachment, error)
	ByID(ctx context.Context, id int64) (*models.Attachment, error)
	ListExpired(ctx context.Context, now time.Time) ([]*models.Attachment, error)
	Delete(ctx context.Context, id int64) error
}

// WebhookParams is everything needed to persist one webhook config.
type WebhookParams struct {
	UserID              int64
	Name                string
	Token               string
	WebhookType         string
	TargetTopicID       *int64
	TargetApplicationID *int64
	Template            *string
	Direction           string
	TargetURL           *string
	HTTPMethod          string
	Headers             *string
	BodyTemplate        *string
	MaxRetries          int
	RetryDelaySecs      int
}

// WebhookUpdate carries the mutable webhook fields; nil leaves a field
// unchanged.
type WebhookUpdate struct {
	Name           *string
	Template       *string
	Enabled        *bool
	TargetURL      *string
	HTTPMethod     *string
	Headers        *string
	BodyTemplate   *string
	MaxRetries     *int
	RetryDelaySecs *int
}

// Webhooks manages inbound and outgoing webhook configs.
type Webhooks interface {
	Create(ctx context.Context, p WebhookParams) (*models.WebhookConfig, error)
	ByID(ctx context.Context, id int64) (*models.WebhookConfig, error)
	ByToken(ctx context.Context, token string) (*models.WebhookConfig, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.WebhookConfig, error)
	ListOutgoingForTopic(ctx context.Context, topicID int64) ([]*models.WebhookConfig, error)
	Update(ctx context.Context, id int64, u WebhookUpdate) (*models.WebhookConfig, error)
	Delete(ctx context.Context, id int64) error
}

// PushRegistrations manages opaque push endpoints.
type PushRegistrations interface {
	Create(ctx context.Context, userID *int64, token, endpoint string) (*models.PushRegistration, error)
	ByToken(ctx context.Context, token string) (*models.PushRegistration, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.PushRegistration, error)
	Delete(ctx context.Context, id int64, userID int64) error
}

// Store bundles the capability sets over one database handle.
type Store struct {
	Users             Users
	Applications      Applications
	Clients           Clients
	Topics            Topics
	Messages          Messages
	Attachments       Attachments
	Webhooks          Webhooks
	PushRegistrations PushRegistrations
}

// New builds the PostgreSQL-backed store.
func New(db *sql.DB) *Store {
	return &Store{
		Users:             &userStore{db: db},
		Applications:      &applicationStore{db: db},
		Clients:           &clientStore{db: db},
		Topics:            &topicStore{db: db},
		Messages:          &messageStore{db: db},
		Attachments:       &attachmentStore{db: db},
		Webhooks:          &webhookStore{db: db},
		PushRegistrations: &pushStore{db: db},
	}
}
