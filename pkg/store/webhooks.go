package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pushbolt/pushbolt/pkg/models"
)

const webhookColumns = `id, user_id, name, token, webhook_type, target_topic_id, target_application_id,
	template, enabled, direction, target_url, http_method, headers, body_template,
	max_retries, retry_delay_secs, created_at`

type webhookStore struct {
	db *sql.DB
}

func scanWebhook(row interface{ Scan(...any) error }) (*models.WebhookConfig, error) {
	w := &models.WebhookConfig{}
	err := row.Scan(
		&w.ID, &w.UserID, &w.Name, &w.Token, &w.WebhookType, &w.TargetTopicID, &w.TargetApplicationID,
		&w.Template, &w.Enabled, &w.Direction, &w.TargetURL, &w.HTTPMethod, &w.Headers, &w.BodyTemplate,
		&w.MaxRetries, &w.RetryDelaySecs, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *webhookStore) Create(ctx context.Context, p WebhookParams) (*models.WebhookConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO webhook_configs (user_id, name, token, webhook_type, target_topic_id,
			target_application_id, template, direction, target_url, http_method, headers,
			body_template, max_retries, retry_delay_secs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+webhookColumns,
		p.UserID, p.Name, p.Token, p.WebhookType, p.TargetTopicID,
		p.TargetApplicationID, p.Template, p.Direction, p.TargetURL, p.HTTPMethod, p.Headers,
		p.BodyTemplate, p.MaxRetries, p.RetryDelaySecs)
	w, err := scanWebhook(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("webhook token %w", ErrAlreadyExists)
		}
		return nil, dbErr("creating webhook", err)
	}
	return w, nil
}

func (s *webhookStore) ByID(ctx context.Context, id int64) (*models.WebhookConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+webhookColumns+` FROM webhook_configs WHERE id = $1`, id)
	w, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("webhook %d %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading webhook", err)
	}
	return w, nil
}

func (s *webhookStore) ByToken(ctx context.Context, token string) (*models.WebhookConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+webhookColumns+` FROM webhook_configs WHERE token = $1`, token)
	w, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("webhook token %w", ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading webhook by token", err)
	}
	return w, nil
}

func (s *webhookStore) ListByUser(ctx context.Context, userID int64) ([]*models.WebhookConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+webhookColumns+` FROM webhook_configs WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, dbErr("listing webhooks", err)
	}
	defer rows.Close()
	return collectWebhooks(rows)
}

// ListOutgoingForTopic returns enabled outgoing configs targeting the
// topic; these fire on every publish to it.
func (s *webhookStore) ListOutgoingForTopic(ctx context.Context, topicID int64) ([]*models.WebhookConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+webhookColumns+` FROM webhook_configs
		WHERE target_topic_id = $1 AND direction = 'outgoing' AND enabled ORDER BY id`,
		topicID)
	if err != nil {
		return nil, dbErr("listing outgoing webhooks", err)
	}
	defer rows.Close()
	return collectWebhooks(rows)
}

func collectWebhooks(rows *sql.Rows) ([]*models.WebhookConfig, error) {
	var out []*models.WebhookConfig
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, dbErr("scanning webhook", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("listing webhooks", err)
	}
	return out, nil
}

func (s *webhookStore) Update(ctx context.Context, id int64, u WebhookUpdate) (*models.WebhookConfig, error) {
	current, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Name != nil {
		current.Name = *u.Name
	}
	if u.Template != nil {
		current.Template = u.Template
	}
	if u.Enabled != nil {
		current.Enabled = *u.Enabled
	}
	if u.TargetURL != nil {
		current.TargetURL = u.TargetURL
	}
	if u.HTTPMethod != nil {
		current.HTTPMethod = *u.HTTPMethod
	}
	if u.Headers != nil {
		current.Headers = u.Headers
	}
	if u.BodyTemplate != nil {
		current.BodyTemplate = u.BodyTemplate
	}
	if u.MaxRetries != nil {
		current.MaxRetries = *u.MaxRetries
	}
	if u.RetryDelaySecs != nil {
		current.RetryDelaySecs = *u.RetryDelaySecs
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE webhook_configs SET name = $1, template = $2, enabled = $3, target_url = $4,
			http_method = $5, headers = $6, body_template = $7, max_retries = $8, retry_delay_secs = $9
		WHERE id = $10
		RETURNING `+webhookColumns,
		current.Name, current.Template, current.Enabled, current.TargetURL,
		current.HTTPMethod, current.Headers, current.BodyTemplate,
		current.MaxRetries, current.RetryDelaySecs, id)
	w, err := scanWebhook(row)
	if err != nil {
		return nil, dbErr("updating webhook", err)
	}
	return w, nil
}

func (s *webhookStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhook_configs WHERE id = $1`, id)
	if err != nil {
		return dbErr("deleting webhook", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("webhook %d %w", id, ErrNotFound)
	}
	return nil
}
