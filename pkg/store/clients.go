package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pushbolt/pushbolt/pkg/models"
)

const clientColumns = `id, user_id, name, token, created_at`

type clientStore struct {
	db *sql.DB
}

func scanClient(row interface{ Scan(...any) error }) (*models.Client, error) {
	c := &models.Client{}
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Token, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *clientStore) Create(ctx context.Context, userID int64, name, token string) (*models.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO clients (user_id, name, token)
		VALUES ($1, $2, $3)
		RETURNING `+clientColumns,
		userID, name, token)
	c, err := scanClient(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("client token %w", ErrAlreadyExists)
		}
		return nil, dbErr("creating client", err)
	}
	return c, nil
}

func (s *clientStore) ByID(ctx context.Context, id int64) (*models.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %d %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading client", err)
	}
	return c, nil
}

func (s *clientStore) ByToken(ctx context.Context, token string) (*models.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE token = $1`, token)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client token %w", ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading client by token", err)
	}
	return c, nil
}

func (s *clientStore) ListByUser(ctx context.Context, userID int64) ([]*models.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, dbErr("listing clients", err)
	}
	defer rows.Close()

	var out []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, dbErr("scanning client", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("listing clients", err)
	}
	return out, nil
}

func (s *clientStore) Update(ctx context.Context, id int64, name string) (*models.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE clients SET name = $1 WHERE id = $2
		RETURNING `+clientColumns,
		name, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %d %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("updating client", err)
	}
	return c, nil
}

func (s *clientStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return dbErr("deleting client", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("client %d %w", id, ErrNotFound)
	}
	return nil
}
