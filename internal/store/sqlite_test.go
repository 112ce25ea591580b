// ABOUTME: Tests for SQLite session and message persistence
// ABOUTME: Verifies upsert round-trips, append-only messages, and listing

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newMessage(sessionID, role, content string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateSession_Defaults(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	session, err := s.CreateSession(ctx, SessionSpec{Workspace: "/tmp/ws", Model: "claude-sonnet-4"})
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "New Chat", session.Name)
	assert.Equal(t, "/tmp/ws", session.Workspace)
	assert.Empty(t, session.Messages)
}

func TestCreateSession_ExplicitID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	session, err := s.CreateSession(ctx, SessionSpec{ID: "s1", Model: "claude-sonnet-4"})
	require.NoError(t, err)
	assert.Equal(t, "s1", session.ID)

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
}

func TestGetSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveSession_RoundTripIsNoOp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	session, err := s.CreateSession(ctx, SessionSpec{ID: "s1", Name: "chat", Workspace: "/ws", Model: "gpt-4.1"})
	require.NoError(t, err)

	session.Messages = append(session.Messages,
		newMessage("s1", RoleUser, "hello"),
		newMessage("s1", RoleAssistant, "hi there"),
	)
	require.NoError(t, s.SaveSession(ctx, session))

	first, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)

	// save(get(id)) must not drift any field
	require.NoError(t, s.SaveSession(ctx, first))
	second, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Workspace, second.Workspace)
	assert.Equal(t, first.Model, second.Model)
	require.Len(t, second.Messages, 2)
	for i := range first.Messages {
		assert.Equal(t, first.Messages[i].ID, second.Messages[i].ID)
		assert.Equal(t, first.Messages[i].Content, second.Messages[i].Content)
	}
}

func TestSaveSession_MessagesAppendOnly(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	session, err := s.CreateSession(ctx, SessionSpec{ID: "s1", Model: "claude-sonnet-4"})
	require.NoError(t, err)

	m1 := newMessage("s1", RoleUser, "first")
	session.Messages = append(session.Messages, m1)
	require.NoError(t, s.SaveSession(ctx, session))

	// Mutating an already-saved message and re-saving must not change the stored row
	m1.Content = "tampered"
	m2 := newMessage("s1", RoleAssistant, "second")
	session.Messages = append(session.Messages, m2)
	require.NoError(t, s.SaveSession(ctx, session))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "first", got.Messages[0].Content)
	assert.Equal(t, "second", got.Messages[1].Content)
}

func TestSaveSession_MessageCountMonotonic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	session, err := s.CreateSession(ctx, SessionSpec{ID: "s1", Model: "claude-sonnet-4"})
	require.NoError(t, err)

	prev := 0
	for i := 0; i < 5; i++ {
		session.Messages = append(session.Messages, newMessage("s1", RoleUser, "turn"))
		require.NoError(t, s.SaveSession(ctx, session))

		got, err := s.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(got.Messages), prev)
		prev = len(got.Messages)
	}
	assert.Equal(t, 5, prev)
}

func TestSaveSession_AttachmentIDsRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	session, err := s.CreateSession(ctx, SessionSpec{ID: "s1", Model: "claude-sonnet-4"})
	require.NoError(t, err)

	msg := newMessage("s1", RoleUser, "see attached")
	msg.AttachmentIDs = []string{"a1", "a2"}
	session.Messages = append(session.Messages, msg)
	require.NoError(t, s.SaveSession(ctx, session))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, []string{"a1", "a2"}, got.Messages[0].AttachmentIDs)
}

func TestDeleteSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	session, err := s.CreateSession(ctx, SessionSpec{ID: "s1", Model: "claude-sonnet-4"})
	require.NoError(t, err)
	session.Messages = append(session.Messages, newMessage("s1", RoleUser, "hello"))
	require.NoError(t, s.SaveSession(ctx, session))

	deleted, err := s.DeleteSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err = s.DeleteSession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestListSessions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, err := s.CreateSession(ctx, SessionSpec{Name: "a", Model: "claude-sonnet-4"})
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, SessionSpec{Name: "b", Model: "gpt-4.1"})
	require.NoError(t, err)

	a.Messages = append(a.Messages, newMessage(a.ID, RoleUser, "hi"))
	require.NoError(t, s.SaveSession(ctx, a))

	summaries, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byName := map[string]*SessionSummary{}
	for _, sum := range summaries {
		byName[sum.Name] = sum
	}
	assert.Equal(t, 1, byName["a"].MessageCount)
	assert.Equal(t, 0, byName["b"].MessageCount)
}

func TestAttachments_CRUD(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	att := &Attachment{
		ID:               "f1",
		SessionID:        "s1",
		Filename:         "f1.txt",
		OriginalFilename: "notes.txt",
		Path:             "/tmp/uploads/s1/f1.txt",
		Size:             42,
		MimeType:         "text/plain",
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, s.SaveAttachment(ctx, att))

	got, err := s.GetAttachment(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", got.OriginalFilename)
	assert.Equal(t, int64(42), got.Size)

	list, err := s.ListAttachmentsBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	deleted, err := s.DeleteAttachment(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.GetAttachment(ctx, "f1")
	assert.ErrorIs(t, err, ErrNotFound)
}
