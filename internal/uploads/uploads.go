// ABOUTME: Upload service storing attachment files under per-session dirs
// ABOUTME: Files get uuid names on disk; metadata lives in the store

package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/store"
)

// Service saves uploaded files to disk and tracks them in the store.
type Service struct {
	dir    string
	store  store.Store
	logger *slog.Logger
}

// NewService creates an upload service rooted at dir.
func NewService(dir string, st store.Store, logger *slog.Logger) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads directory: %w", err)
	}
	return &Service{dir: dir, store: st, logger: logger.With("component", "uploads")}, nil
}

// Save writes the uploaded content to disk under the session's directory
// and records its metadata. The stored filename is a uuid plus the
// original extension, so client-supplied names never hit the filesystem.
func (s *Service) Save(ctx context.Context, sessionID, originalFilename, mimeType string, r io.Reader) (*store.Attachment, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	sessionDir := filepath.Join(s.dir, sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session upload dir: %w", err)
	}

	id := uuid.New().String()
	filename := id + filepath.Ext(originalFilename)
	path := filepath.Join(sessionDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating upload file: %w", err)
	}
	size, err := io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing upload: %w", err)
	}

	att := &store.Attachment{
		ID:               id,
		SessionID:        sessionID,
		Filename:         filename,
		OriginalFilename: originalFilename,
		Path:             path,
		Size:             size,
		MimeType:         mimeType,
	}
	if err := s.store.SaveAttachment(ctx, att); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("recording upload: %w", err)
	}

	s.logger.Info("upload saved", "attachment_id", id, "session_id", sessionID, "size", size)
	return att, nil
}

// Get returns an attachment's metadata.
func (s *Service) Get(ctx context.Context, id string) (*store.Attachment, error) {
	return s.store.GetAttachment(ctx, id)
}

// ListBySession returns all attachments uploaded for one session.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]*store.Attachment, error) {
	return s.store.ListAttachmentsBySession(ctx, sessionID)
}

// Open returns a reader over an attachment's file content.
func (s *Service) Open(ctx context.Context, id string) (*store.Attachment, io.ReadCloser, error) {
	att, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(att.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening upload file: %w", err)
	}
	return att, f, nil
}

// Delete removes an attachment's file and metadata. Returns false when the
// attachment does not exist.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	att, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := os.Remove(att.Path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("removing upload file: %w", err)
	}
	return s.store.DeleteAttachment(ctx, id)
}

// Resolve maps attachment ids to their metadata, silently dropping ids
// that are unknown.
func (s *Service) Resolve(ctx context.Context, ids []string) []*store.Attachment {
	var atts []*store.Attachment
	for _, id := range ids {
		att, err := s.store.GetAttachment(ctx, id)
		if err != nil {
			s.logger.Warn("dropping unknown attachment", "attachment_id", id)
			continue
		}
		atts = append(atts, att)
	}
	return atts
}
