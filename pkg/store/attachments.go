package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pushbolt/pushbolt/pkg/models"
)

const attachmentColumns = `id, message_id, filename, content_type, size_bytes, storage_type, storage_path, expires_at, created_at`

type attachmentStore struct {
	db *sql.DB
}

func scanAttachment(row interface{ Scan(...any) error }) (*models.Attachment, error) {
	a := &models.Attachment{}
	err := row.Scan(&a.ID, &a.MessageID, &a.Filename, &a.ContentType,
		&a.SizeBytes, &a.StorageType, &a.StoragePath, &a.ExpiresAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *attachmentStore) Create(ctx context.Context, messageID int64, filename string, contentType *string, sizeBytes int64, storagePath string, expiresAt *time.Time) (*models.Attachment, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO attachments (message_id, filename, content_type, size_bytes, storage_path, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+attachmentColumns,
		messageID, filename, contentType, sizeBytes, storagePath, expiresAt)
	a, err := scanAttachment(row)
	if err != nil {
		return nil, dbErr("creating attachment", err)
	}
	return a, nil
}

func (s *attachmentStore) ByID(ctx context.Context, id int64) (*models.Attachment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = $1`, id)
	a, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attachment %d %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("loading attachment", err)
	}
	return a, nil
}

func (s *attachmentStore) ListExpired(ctx context.Context, now time.Time) ([]*models.Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return nil, dbErr("listing expired attachments", err)
	}
	defer rows.Close()

	var out []*models.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, dbErr("scanning attachment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("listing expired attachments", err)
	}
	return out, nil
}

func (s *attachmentStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return dbErr("deleting attachment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attachment %d %w", id, ErrNotFound)
	}
	return nil
}
