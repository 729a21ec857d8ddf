// Package pipeline is the publish core: every entry form (structured app
// publish, structured topic publish, metadata-header publish, inbound
// webhook) converges on one persist-then-fan-out path.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pushbolt/pushbolt/pkg/metrics"
	"github.com/pushbolt/pushbolt/pkg/models"
	"github.com/pushbolt/pushbolt/pkg/store"
)

// Message bodies are limited to this many bytes regardless of the HTTP
// body cap.
const MaxMessageLen = 65536

// Broadcaster is the fan-out side of the subscription fabric.
type Broadcaster interface {
	BroadcastToUser(userID int64, v *models.MessageView)
	BroadcastToTopic(name string, v *models.MessageView)
}

// Dispatcher fires outgoing webhooks for a topic publish, asynchronously.
type Dispatcher interface {
	FireTopic(topicID int64, topicName string, v *models.MessageView)
}

// Mailer sends a notification mail, asynchronously on the caller side.
type Mailer interface {
	Send(to, subject, body string) error
}

type Pipeline struct {
	store      *store.Store
	fabric     Broadcaster
	dispatcher Dispatcher
	mailer     Mailer // nil when SMTP is not configured
	logger     *slog.Logger
}

func New(st *store.Store, fabric Broadcaster, dispatcher Dispatcher, mailer Mailer) *Pipeline {
	return &Pipeline{
		store:      st,
		fabric:     fabric,
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     slog.With("component", "pipeline"),
	}
}

func validateBody(message string) error {
	if len(message) == 0 || len(message) > MaxMessageLen {
		return store.NewValidationError("message must be between 1 and %d bytes", MaxMessageLen)
	}
	return nil
}

// PublishToApplication handles the structured app publish. Priority
// defaults to the application's default priority.
func (p *Pipeline) PublishToApplication(ctx context.Context, app *models.Application, req models.CreateAppMessage) (*models.MessageView, error) {
	if err := validateBody(req.Message); err != nil {
		return nil, err
	}

	priority := app.DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}

	var extras *string
	if len(req.Extras) > 0 {
		extras = encodeJSON(req.Extras)
	}

	msg, err := p.store.Messages.Create(ctx, store.MessageParams{
		ApplicationID: &app.ID,
		UserID:        &app.UserID,
		Title:         req.Title,
		Message:       req.Message,
		Priority:      priority,
		Extras:        extras,
	})
	if err != nil {
		return nil, err
	}

	view := msg.View(nil)
	p.fabric.BroadcastToUser(app.UserID, view)
	metrics.MessagesPublished.WithLabelValues("app").Inc()
	return view, nil
}

// PublishToTopic handles the structured topic publish. Priority defaults
// to 5; scheduled_for accepts the same forms as the scheduling headers
// and defers fan-out to the scheduled-delivery worker.
func (p *Pipeline) PublishToTopic(ctx context.Context, topic *models.Topic, userID int64, req models.CreateTopicMessage) (*models.MessageView, error) {
	if err := validateBody(req.Message); err != nil {
		return nil, err
	}

	priority := 5
	if req.Priority != nil {
		priority = *req.Priority
	}

	var scheduledFor *time.Time
	if req.ScheduledFor != nil {
		at, ok := ParseSchedule(*req.ScheduledFor, time.Now())
		if !ok {
			return nil, store.NewValidationError("unparseable scheduled_for %q", *req.ScheduledFor)
		}
		scheduledFor = &at
	}

	var tags *string
	if len(req.Tags) > 0 {
		tags = encodeJSON(req.Tags)
	}
	var actions *string
	if len(req.Actions) > 0 {
		actions = encodeJSON(req.Actions)
	}

	msg, err := p.store.Messages.Create(ctx, store.MessageParams{
		TopicID:      &topic.ID,
		UserID:       &userID,
		Title:        req.Title,
		Message:      req.Message,
		Priority:     priority,
		Tags:         tags,
		ClickURL:     req.ClickURL,
		IconURL:      req.IconURL,
		Actions:      actions,
		ScheduledFor: scheduledFor,
	})
	if err != nil {
		return nil, err
	}

	view := msg.View(&topic.Name)
	if scheduledFor == nil {
		p.fabric.BroadcastToTopic(topic.Name, view)
		p.dispatcher.FireTopic(topic.ID, topic.Name, view)
	}
	metrics.MessagesPublished.WithLabelValues("topic").Inc()
	return view, nil
}

// PublishHeaders handles the catch-all POST/PUT /{topic}: the body is the
// message, everything else rides in headers. Priority defaults to 3. The
// publisher is nil for anonymous publishes on everyone-write topics.
func (p *Pipeline) PublishHeaders(ctx context.Context, topic *models.Topic, userID *int64, body string, meta Metadata) (*models.MessageView, error) {
	if err := validateBody(body); err != nil {
		return nil, err
	}

	priority := 3
	if meta.Priority != nil {
		priority = *meta.Priority
	}

	var tags *string
	if len(meta.Tags) > 0 {
		tags = encodeJSON(meta.Tags)
	}
	var expiresAt *time.Time
	if meta.CacheFor != nil {
		at := time.Now().Add(*meta.CacheFor).UTC()
		expiresAt = &at
	}

	msg, err := p.store.Messages.Create(ctx, store.MessageParams{
		TopicID:      &topic.ID,
		UserID:       userID,
		Title:        meta.Title,
		Message:      body,
		Priority:     priority,
		Tags:         tags,
		ClickURL:     meta.ClickURL,
		IconURL:      meta.IconURL,
		Actions:      meta.Actions,
		ContentType:  meta.ContentType,
		ScheduledFor: meta.ScheduledFor,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		return nil, err
	}

	view := msg.View(&topic.Name)
	if meta.ScheduledFor == nil {
		p.fabric.BroadcastToTopic(topic.Name, view)
		p.dispatcher.FireTopic(topic.ID, topic.Name, view)
	}
	if meta.Email != nil && p.mailer != nil {
		to := *meta.Email
		go func() {
			subject := topic.Name
			if meta.Title != nil {
				subject = *meta.Title
			}
			if err := p.mailer.Send(to, subject, body); err != nil {
				p.logger.Warn("notification mail failed", "to", to, "error", err)
			}
		}()
	}
	metrics.MessagesPublished.WithLabelValues("header").Inc()
	return view, nil
}

// PublishInbound projects a third-party webhook payload into a message on
// the config's target topic or application.
func (p *Pipeline) PublishInbound(ctx context.Context, cfg *models.WebhookConfig, payload map[string]any) (*models.MessageView, error) {
	title, message := ProjectPayload(cfg.WebhookType, payload)
	if err := validateBody(message); err != nil {
		return nil, err
	}

	params := store.MessageParams{
		UserID:   &cfg.UserID,
		Title:    title,
		Message:  message,
		Priority: 5,
	}

	var topic *models.Topic
	switch {
	case cfg.TargetTopicID != nil:
		t, err := p.store.Topics.ByID(ctx, *cfg.TargetTopicID)
		if err != nil {
			return nil, err
		}
		topic = t
		params.TopicID = &t.ID
	case cfg.TargetApplicationID != nil:
		params.ApplicationID = cfg.TargetApplicationID
	default:
		return nil, store.NewValidationError("webhook %d has no target", cfg.ID)
	}

	msg, err := p.store.Messages.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	if topic != nil {
		view := msg.View(&topic.Name)
		p.fabric.BroadcastToTopic(topic.Name, view)
		p.dispatcher.FireTopic(topic.ID, topic.Name, view)
		metrics.MessagesPublished.WithLabelValues("webhook").Inc()
		return view, nil
	}
	view := msg.View(nil)
	p.fabric.BroadcastToUser(cfg.UserID, view)
	metrics.MessagesPublished.WithLabelValues("webhook").Inc()
	return view, nil
}

// ProjectPayload maps a third-party payload to (title, message) by
// webhook type.
func ProjectPayload(webhookType string, payload map[string]any) (*string, string) {
	switch webhookType {
	case models.WebhookTypeGitHub:
		action, _ := payload["action"].(string)
		repo := ""
		if r, ok := payload["repository"].(map[string]any); ok {
			repo, _ = r["full_name"].(string)
		}
		title := fmt.Sprintf("GitHub: %s on %s", action, repo)
		return &title, prettyJSON(payload)
	case models.WebhookTypeGrafana:
		var title *string
		if t, ok := payload["title"].(string); ok {
			title = &t
		}
		if m, ok := payload["message"].(string); ok {
			return title, m
		}
		return title, prettyJSON(payload)
	default:
		var title *string
		if t, ok := payload["title"].(string); ok {
			title = &t
		}
		if m, ok := payload["message"].(string); ok {
			return title, m
		}
		return title, prettyJSON(payload)
	}
}

func prettyJSON(payload map[string]any) string {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(b)
}

// Deliver fans out a message claimed by the scheduled-delivery worker,
// resolving its topic name and firing outgoing webhooks.
func (p *Pipeline) Deliver(ctx context.Context, msg *models.Message) error {
	if msg.TopicID != nil {
		topic, err := p.store.Topics.ByID(ctx, *msg.TopicID)
		if err != nil {
			return err
		}
		view := msg.View(&topic.Name)
		p.fabric.BroadcastToTopic(topic.Name, view)
		p.dispatcher.FireTopic(topic.ID, topic.Name, view)
		return nil
	}
	if msg.UserID != nil {
		p.fabric.BroadcastToUser(*msg.UserID, msg.View(nil))
	}
	return nil
}
