package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pushbolt/pushbolt/pkg/models"
)

const userColumns = `id, username, password_hash, email, is_admin, created_at, updated_at`

type userStore struct {
	db *sql.DB
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *userStore) Create(ctx context.Context, username, passwordHash string, email *string, isAdmin bool) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, email, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		username, passwordHash, email, isAdmin)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q %w", username, ErrAlreadyExists)
		}
		return nil, dbErr("creating user", err)
	}
	return u, nil
}

func (s *userStore) ByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading user", err)
	}
	return u, nil
}

func (s *userStore) ByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading user by name", err)
	}
	return u, nil
}

func (s *userStore) List(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, dbErr("listing users", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, dbErr("scanning user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("listing users", err)
	}
	return out, nil
}

func (s *userStore) Update(ctx context.Context, id int64, username, email *string, isAdmin *bool) (*models.User, error) {
	current, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	newUsername := current.Username
	if username != nil {
		newUsername = *username
	}
	newEmail := current.Email
	if email != nil {
		newEmail = email
	}
	newAdmin := current.IsAdmin
	if isAdmin != nil {
		newAdmin = *isAdmin
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE users SET username = $1, email = $2, is_admin = $3, updated_at = now()
		WHERE id = $4
		RETURNING `+userColumns,
		newUsername, newEmail, newAdmin, id)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q %w", newUsername, ErrAlreadyExists)
		}
		return nil, dbErr("updating user", err)
	}
	return u, nil
}

func (s *userStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`,
		passwordHash, id)
	if err != nil {
		return dbErr("updating password", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d %w", id, ErrNotFound)
	}
	return nil
}

func (s *userStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return dbErr("deleting user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d %w", id, ErrNotFound)
	}
	return nil
}

func (s *userStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, dbErr("counting users", err)
	}
	return n, nil
}
