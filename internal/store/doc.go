// ABOUTME: Package documentation for the store package
// ABOUTME: Explains the persistence model and append-only message semantics

// Package store provides SQLite-backed persistence for chat sessions,
// messages, file attachments, MCP server configurations, and plans.
//
// Sessions are saved as full upserts, but their message lists are
// append-only: SaveSession inserts messages whose ids are not yet present
// and never modifies or reorders existing rows. Concurrent saves to the
// same session id are last-writer-wins for the session fields, which is
// acceptable because a single gateway connection owns a session id during
// an active turn.
package store
