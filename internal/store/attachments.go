// ABOUTME: Attachment persistence methods for SQLiteStore
// ABOUTME: Stores upload metadata; file bytes live on disk under the uploads dir

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveAttachment inserts an attachment metadata row.
func (s *SQLiteStore) SaveAttachment(ctx context.Context, att *Attachment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attachments (id, session_id, filename, original_filename, path, size, mime_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		att.ID, att.SessionID, att.Filename, att.OriginalFilename, att.Path, att.Size, att.MimeType, att.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting attachment: %w", err)
	}
	return nil
}

// GetAttachment returns the attachment with the given id.
func (s *SQLiteStore) GetAttachment(ctx context.Context, id string) (*Attachment, error) {
	att := &Attachment{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, filename, original_filename, path, size, mime_type, created_at
		 FROM attachments WHERE id = ?`, id,
	).Scan(&att.ID, &att.SessionID, &att.Filename, &att.OriginalFilename, &att.Path, &att.Size, &att.MimeType, &att.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying attachment: %w", err)
	}
	return att, nil
}

// ListAttachmentsBySession returns all attachments owned by a session.
func (s *SQLiteStore) ListAttachmentsBySession(ctx context.Context, sessionID string) ([]*Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, filename, original_filename, path, size, mime_type, created_at
		 FROM attachments WHERE session_id = ? ORDER BY rowid`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying attachments: %w", err)
	}
	defer rows.Close()

	atts := []*Attachment{}
	for rows.Next() {
		att := &Attachment{}
		if err := rows.Scan(&att.ID, &att.SessionID, &att.Filename, &att.OriginalFilename, &att.Path, &att.Size, &att.MimeType, &att.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning attachment: %w", err)
		}
		atts = append(atts, att)
	}
	return atts, rows.Err()
}

// DeleteAttachment removes attachment metadata. Returns false when absent.
func (s *SQLiteStore) DeleteAttachment(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting attachment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}
