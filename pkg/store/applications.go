package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pushbolt/pushbolt/pkg/models"
)

const applicationColumns = `id, user_id, name, token, description, default_priority, image, created_at, updated_at`

type applicationStore struct {
	db *sql.DB
}

func scanApplication(row interface{ Scan(...any) error }) (*models.Application, error) {
	a := &models.Application{}
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Token, &a.Description,
		&a.DefaultPriority, &a.Image, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *applicationStore) Create(ctx context.Context, userID int64, name string, description *string, token string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO applications (user_id, name, token, description)
		VALUES ($1, $2, $3, $4)
		RETURNING `+applicationColumns,
		userID, name, token, description)
	a, err := scanApplication(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("application token %w", ErrAlreadyExists)
		}
		return nil, dbErr("creating application", err)
	}
	return a, nil
}

func (s *applicationStore) ByID(ctx context.Context, id int64) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application %d %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading application", err)
	}
	return a, nil
}

func (s *applicationStore) ByToken(ctx context.Context, token string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE token = $1`, token)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application token %w", ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading application by token", err)
	}
	return a, nil
}

func (s *applicationStore) ListByUser(ctx context.Context, userID int64) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, dbErr("listing applications", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, dbErr("scanning application", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("listing applications", err)
	}
	return out, nil
}

func (s *applicationStore) Update(ctx context.Context, id int64, name, description *string, defaultPriority *int) (*models.Application, error) {
	current, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		current.Name = *name
	}
	if description != nil {
		current.Description = description
	}
	if defaultPriority != nil {
		current.DefaultPriority = *defaultPriority
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE applications SET name = $1, description = $2, default_priority = $3, updated_at = now()
		WHERE id = $4
		RETURNING `+applicationColumns,
		current.Name, current.Description, current.DefaultPriority, id)
	a, err := scanApplication(row)
	if err != nil {
		return nil, dbErr("updating application", err)
	}
	return a, nil
}

func (s *applicationStore) UpdateImage(ctx context.Context, id int64, image *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE applications SET image = $1, updated_at = now() WHERE id = $2`, image, id)
	if err != nil {
		return dbErr("updating application image", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("application %d %w", id, ErrNotFound)
	}
	return nil
}

func (s *applicationStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return dbErr("deleting application", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("application %d %w", id, ErrNotFound)
	}
	return nil
}
