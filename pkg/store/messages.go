package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pushbolt/pushbolt/pkg/models"
)

const messageColumns = `id, application_id, topic_id, user_id, title, message, priority,
	tags, click_url, icon_url, actions, extras, content_type,
	scheduled_for, delivered_at, expires_at, created_at`

type messageStore struct {
	db *sql.DB
}

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(
		&m.ID, &m.ApplicationID, &m.TopicID, &m.UserID, &m.Title, &m.Message, &m.Priority,
		&m.Tags, &m.ClickURL, &m.IconURL, &m.Actions, &m.Extras, &m.ContentType,
		&m.ScheduledFor, &m.DeliveredAt, &m.ExpiresAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func collectMessages(rows *sql.Rows) ([]*models.Message, error) {
	var out []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, dbErr("scanning message", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("reading messages", err)
	}
	return out, nil
}

func (s *messageStore) Create(ctx context.Context, p MessageParams) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (application_id, topic_id, user_id, title, message, priority,
			tags, click_url, icon_url, actions, extras, content_type, scheduled_for, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+messageColumns,
		p.ApplicationID, p.TopicID, p.UserID, p.Title, p.Message, p.Priority,
		p.Tags, p.ClickURL, p.IconURL, p.Actions, p.Extras, p.ContentType,
		p.ScheduledFor, p.ExpiresAt)
	m, err := scanMessage(row)
	if err != nil {
		return nil, dbErr("creating message", err)
	}
	return m, nil
}

func (s *messageStore) ByID(ctx context.Context, id int64) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %d %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading message", err)
	}
	return m, nil
}

func (s *messageStore) ListByApplication(ctx context.Context, appID int64, limit int, since int64) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE application_id = $1 AND id > $2
		ORDER BY id DESC LIMIT $3`,
		appID, since, limit)
	if err != nil {
		return nil, dbErr("listing application messages", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *messageStore) ListByUserApps(ctx context.Context, userID int64, limit int, since int64) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE application_id IN (SELECT id FROM applications WHERE user_id = $1)
		  AND id > $2
		ORDER BY id DESC LIMIT $3`,
		userID, since, limit)
	if err != nil {
		return nil, dbErr("listing user messages", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *messageStore) ListByTopic(ctx context.Context, topicID int64, limit int, since int64) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE topic_id = $1 AND id > $2
		ORDER BY id DESC LIMIT $3`,
		topicID, since, limit)
	if err != nil {
		return nil, dbErr("listing topic messages", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *messageStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return dbErr("deleting message", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %d %w", id, ErrNotFound)
	}
	return nil
}

// DeleteAllForUser removes messages from the user's applications plus
// topic messages the user authored. Other users' messages in shared
// topics stay.
func (s *messageStore) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE application_id IN (SELECT id FROM applications WHERE user_id = $1)
		   OR (topic_id IS NOT NULL AND user_id = $1)`,
		userID)
	if err != nil {
		return 0, dbErr("deleting user messages", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClaimDue marks every due, undelivered scheduled message as delivered in
// one statement and returns the claimed rows so concurrent sweeps never
// deliver a message twice.
func (s *messageStore) ClaimDue(ctx context.Context, now time.Time) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE messages SET delivered_at = $1
		WHERE id IN (
			SELECT id FROM messages
			WHERE scheduled_for IS NOT NULL
			  AND scheduled_for <= $1
			  AND delivered_at IS NULL
			ORDER BY scheduled_for, id
		)
		RETURNING `+messageColumns,
		now)
	if err != nil {
		return nil, dbErr("claiming scheduled messages", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *messageStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, dbErr("deleting expired messages", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *messageStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, dbErr("counting messages", err)
	}
	return n, nil
}

func (s *messageStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE created_at >= $1`, since).Scan(&n); err != nil {
		return 0, dbErr("counting recent messages", err)
	}
	return n, nil
}
