package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pushbolt/pushbolt/pkg/models"
)

const (
	topicColumns      = `id, name, owner_id, description, everyone_read, everyone_write, created_at`
	permissionColumns = `id, user_id, topic_pattern, can_read, can_write, created_at`
)

type topicStore struct {
	db *sql.DB
}

func scanTopic(row interface{ Scan(...any) error }) (*models.Topic, error) {
	t := &models.Topic{}
	err := row.Scan(&t.ID, &t.Name, &t.OwnerID, &t.Description, &t.EveryoneRead, &t.EveryoneWrite, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanPermission(row interface{ Scan(...any) error }) (*models.TopicPermission, error) {
	p := &models.TopicPermission{}
	err := row.Scan(&p.ID, &p.UserID, &p.Pattern, &p.CanRead, &p.CanWrite, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *topicStore) Create(ctx context.Context, name string, ownerID *int64, description *string, everyoneRead, everyoneWrite bool) (*models.Topic, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO topics (name, owner_id, description, everyone_read, everyone_write)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+topicColumns,
		name, ownerID, description, everyoneRead, everyoneWrite)
	t, err := scanTopic(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("topic %q %w", name, ErrAlreadyExists)
		}
		return nil, dbErr("creating topic", err)
	}
	return t, nil
}

func (s *topicStore) ByID(ctx context.Context, id int64) (*models.Topic, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE id = $1`, id)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("topic %d %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading topic", err)
	}
	return t, nil
}

func (s *topicStore) ByName(ctx context.Context, name string) (*models.Topic, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE name = $1`, name)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("topic %q %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading topic by name", err)
	}
	return t, nil
}

func (s *topicStore) List(ctx context.Context) ([]*models.Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+topicColumns+` FROM topics ORDER BY id`)
	if err != nil {
		return nil, dbErr("listing topics", err)
	}
	defer rows.Close()

	var out []*models.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, dbErr("scanning topic", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("listing topics", err)
	}
	return out, nil
}

func (s *topicStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return dbErr("deleting topic", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("topic %d %w", id, ErrNotFound)
	}
	return nil
}

func (s *topicStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM topics`).Scan(&n); err != nil {
		return 0, dbErr("counting topics", err)
	}
	return n, nil
}

func (s *topicStore) CreatePermission(ctx context.Context, userID int64, pattern string, canRead, canWrite bool) (*models.TopicPermission, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO topic_permissions (user_id, topic_pattern, can_read, can_write)
		VALUES ($1, $2, $3, $4)
		RETURNING `+permissionColumns,
		userID, pattern, canRead, canWrite)
	p, err := scanPermission(row)
	if err != nil {
		return nil, dbErr("creating permission", err)
	}
	return p, nil
}

func (s *topicStore) PermissionsForUser(ctx context.Context, userID int64) ([]*models.TopicPermission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+permissionColumns+` FROM topic_permissions WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, dbErr("listing permissions", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *topicStore) Permissions(ctx context.Context) ([]*models.TopicPermission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+permissionColumns+` FROM topic_permissions ORDER BY id`)
	if err != nil {
		return nil, dbErr("listing permissions", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func collectPermissions(rows *sql.Rows) ([]*models.TopicPermission, error) {
	var out []*models.TopicPermission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, dbErr("scanning permission", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("listing permissions", err)
	}
	return out, nil
}

func (s *topicStore) DeletePermission(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM topic_permissions WHERE id = $1`, id)
	if err != nil {
		return dbErr("deleting permission", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("permission %d %w", id, ErrNotFound)
	}
	return nil
}
