// ABOUTME: Tests for MCP server registry persistence
// ABOUTME: Covers CRUD, partial updates, and the derived status field

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServer_CRUD(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	server := &MCPServer{
		Name:    "filesystem",
		Command: "npx",
		Args:    []string{"-y", "@modelcontextprotocol/server-filesystem", "/tmp"},
		Env:     map[string]string{"DEBUG": "1"},
		Enabled: true,
	}
	require.NoError(t, s.CreateMCPServer(ctx, server))
	require.NotEmpty(t, server.ID)

	got, err := s.GetMCPServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, "filesystem", got.Name)
	assert.Equal(t, []string{"-y", "@modelcontextprotocol/server-filesystem", "/tmp"}, got.Args)
	assert.Equal(t, map[string]string{"DEBUG": "1"}, got.Env)
	assert.Equal(t, "running", got.Status())

	list, err := s.ListMCPServers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	deleted, err := s.DeleteMCPServer(ctx, server.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.GetMCPServer(ctx, server.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMCPServer_NilCollections(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	server := &MCPServer{Name: "bare", Command: "echo"}
	require.NoError(t, s.CreateMCPServer(ctx, server))

	got, err := s.GetMCPServer(ctx, server.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Args)
	assert.NotNil(t, got.Env)
	assert.Equal(t, "stopped", got.Status())
}

func TestUpdateMCPServer_Partial(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	server := &MCPServer{Name: "search", Command: "uvx", Args: []string{"mcp-search"}, Enabled: true}
	require.NoError(t, s.CreateMCPServer(ctx, server))

	enabled := false
	updated, err := s.UpdateMCPServer(ctx, server.ID, MCPServerUpdate{Enabled: &enabled})
	require.NoError(t, err)

	// Only the named field changes; status follows enabled
	assert.Equal(t, "search", updated.Name)
	assert.Equal(t, "uvx", updated.Command)
	assert.Equal(t, []string{"mcp-search"}, updated.Args)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "stopped", updated.Status())

	name := "websearch"
	updated, err = s.UpdateMCPServer(ctx, server.ID, MCPServerUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "websearch", updated.Name)
	assert.False(t, updated.Enabled)
}

func TestUpdateMCPServer_NotFound(t *testing.T) {
	s := createTestStore(t)

	name := "x"
	_, err := s.UpdateMCPServer(context.Background(), "missing", MCPServerUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}
