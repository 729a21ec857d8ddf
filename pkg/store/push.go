package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pushbolt/pushbolt/pkg/models"
)

const pushColumns = `id, user_id, token, endpoint, created_at`

type pushStore struct {
	db *sql.DB
}

func scanPush(row interface{ Scan(...any) error }) (*models.PushRegistration, error) {
	p := &models.PushRegistration{}
	err := row.Scan(&p.ID, &p.UserID, &p.Token, &p.Endpoint, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *pushStore) Create(ctx context.Context, userID *int64, token, endpoint string) (*models.PushRegistration, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO push_registrations (user_id, token, endpoint)
		VALUES ($1, $2, $3)
		RETURNING `+pushColumns,
		userID, token, endpoint)
	p, err := scanPush(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("push token %w", ErrAlreadyExists)
		}
		return nil, dbErr("creating push registration", err)
	}
	return p, nil
}

func (s *pushStore) ByToken(ctx context.Context, token string) (*models.PushRegistration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pushColumns+` FROM push_registrations WHERE token = $1`, token)
	p, err := scanPush(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("push registration %w", ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading push registration", err)
	}
	return p, nil
}

func (s *pushStore) ListByUser(ctx context.Context, userID int64) ([]*models.PushRegistration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pushColumns+` FROM push_registrations WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, dbErr("listing push registrations", err)
	}
	defer rows.Close()

	var out []*models.PushRegistration
	for rows.Next() {
		p, err := scanPush(rows)
		if err != nil {
			return nil, dbErr("scanning push registration", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("listing push registrations", err)
	}
	return out, nil
}

// Delete is scoped to the owning user so one user cannot remove
// another's registration by id.
func (s *pushStore) Delete(ctx context.Context, id int64, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM push_registrations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return dbErr("deleting push registration", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("push registration %d %w", id, ErrNotFound)
	}
	return nil
}
