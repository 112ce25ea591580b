// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides session/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. ":memory:" is supported.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			workspace TEXT NOT NULL,
			model TEXT NOT NULL,
			agent_session_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			attachment_ids TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);

		CREATE TABLE IF NOT EXISTS attachments (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			original_filename TEXT NOT NULL,
			path TEXT NOT NULL,
			size INTEGER NOT NULL,
			mime_type TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_attachments_session ON attachments(session_id);

		CREATE TABLE IF NOT EXISTS mcp_servers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			command TEXT NOT NULL,
			args TEXT NOT NULL DEFAULT '[]',
			env TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_plans_session ON plans(session_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// CreateSession inserts a new session, generating an ID when absent.
func (s *SQLiteStore) CreateSession(ctx context.Context, spec SessionSpec) (*Session, error) {
	session := &Session{
		ID:        spec.ID,
		Name:      spec.Name,
		Workspace: spec.Workspace,
		Model:     spec.Model,
		Messages:  []*Message{},
		CreatedAt: time.Now().UTC(),
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Name == "" {
		session.Name = "New Chat"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, workspace, model, agent_session_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.Name, session.Workspace, session.Model, session.AgentSessionID, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("session created", "session_id", session.ID)
	return session, nil
}

// GetSession loads a session with its messages in insertion order.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	session := &Session{Messages: []*Message{}}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, workspace, model, agent_session_id, created_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&session.ID, &session.Name, &session.Workspace, &session.Model, &session.AgentSessionID, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, attachment_ids, created_at
		 FROM messages WHERE session_id = ? ORDER BY rowid`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		session.Messages = append(session.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return session, nil
}

// SaveSession upserts the session row and appends any messages not yet
// stored. Existing messages are never modified or reordered: the history
// is append-only and insertion order is the conversational order.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, name, workspace, model, agent_session_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			workspace = excluded.workspace,
			model = excluded.model,
			agent_session_id = excluded.agent_session_id`,
		session.ID, session.Name, session.Workspace, session.Model, session.AgentSessionID, createdAt,
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	for _, msg := range session.Messages {
		attIDs, err := json.Marshal(msg.AttachmentIDs)
		if err != nil {
			return fmt.Errorf("encoding attachment ids: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO messages (id, session_id, role, content, attachment_ids, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, session.ID, msg.Role, msg.Content, string(attIDs), msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session save: %w", err)
	}
	return nil
}

// DeleteSession removes a session and, via cascade, its messages.
// Returns false when the session did not exist.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// ListSessions returns summaries for all sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.name, s.workspace, s.model, s.created_at,
			(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		 FROM sessions s ORDER BY s.created_at DESC, s.rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	summaries := []*SessionSummary{}
	for rows.Next() {
		sum := &SessionSummary{}
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Workspace, &sum.Model, &sum.CreatedAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning session summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// scanMessage scans a message row including its attachment id list.
func scanMessage(rows *sql.Rows) (*Message, error) {
	msg := &Message{}
	var attIDs string
	if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &attIDs, &msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	if err := json.Unmarshal([]byte(attIDs), &msg.AttachmentIDs); err != nil {
		return nil, fmt.Errorf("decoding attachment ids: %w", err)
	}
	return msg, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
