// ABOUTME: MCP server registry persistence for SQLiteStore
// ABOUTME: CRUD with field-level partial update; status is derived, never stored

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateMCPServer inserts an MCP server config, generating an ID when absent.
func (s *SQLiteStore) CreateMCPServer(ctx context.Context, server *MCPServer) error {
	if server.ID == "" {
		server.ID = uuid.New().String()
	}
	if server.Args == nil {
		server.Args = []string{}
	}
	if server.Env == nil {
		server.Env = map[string]string{}
	}
	if server.CreatedAt.IsZero() {
		server.CreatedAt = time.Now().UTC()
	}

	args, err := json.Marshal(server.Args)
	if err != nil {
		return fmt.Errorf("encoding args: %w", err)
	}
	env, err := json.Marshal(server.Env)
	if err != nil {
		return fmt.Errorf("encoding env: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO mcp_servers (id, name, command, args, env, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		server.ID, server.Name, server.Command, string(args), string(env), boolToInt(server.Enabled), server.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting mcp server: %w", err)
	}
	return nil
}

// GetMCPServer returns the MCP server with the given id.
func (s *SQLiteStore) GetMCPServer(ctx context.Context, id string) (*MCPServer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, command, args, env, enabled, created_at
		 FROM mcp_servers WHERE id = ?`, id,
	)
	server, err := scanMCPServer(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying mcp server: %w", err)
	}
	return server, nil
}

// ListMCPServers returns all configured MCP servers in creation order.
func (s *SQLiteStore) ListMCPServers(ctx context.Context) ([]*MCPServer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, command, args, env, enabled, created_at
		 FROM mcp_servers ORDER BY rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying mcp servers: %w", err)
	}
	defer rows.Close()

	servers := []*MCPServer{}
	for rows.Next() {
		server, err := scanMCPServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, server)
	}
	return servers, rows.Err()
}

// UpdateMCPServer applies a partial update and returns the stored result.
func (s *SQLiteStore) UpdateMCPServer(ctx context.Context, id string, update MCPServerUpdate) (*MCPServer, error) {
	server, err := s.GetMCPServer(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		server.Name = *update.Name
	}
	if update.Command != nil {
		server.Command = *update.Command
	}
	if update.Args != nil {
		server.Args = *update.Args
	}
	if update.Env != nil {
		server.Env = *update.Env
	}
	if update.Enabled != nil {
		server.Enabled = *update.Enabled
	}

	args, err := json.Marshal(server.Args)
	if err != nil {
		return nil, fmt.Errorf("encoding args: %w", err)
	}
	env, err := json.Marshal(server.Env)
	if err != nil {
		return nil, fmt.Errorf("encoding env: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE mcp_servers SET name = ?, command = ?, args = ?, env = ?, enabled = ? WHERE id = ?`,
		server.Name, server.Command, string(args), string(env), boolToInt(server.Enabled), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating mcp server: %w", err)
	}
	return server, nil
}

// DeleteMCPServer removes an MCP server config. Returns false when absent.
func (s *SQLiteStore) DeleteMCPServer(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mcp_servers WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting mcp server: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMCPServer(row rowScanner) (*MCPServer, error) {
	server := &MCPServer{}
	var args, env string
	var enabled int
	if err := row.Scan(&server.ID, &server.Name, &server.Command, &args, &env, &enabled, &server.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(args), &server.Args); err != nil {
		return nil, fmt.Errorf("decoding args: %w", err)
	}
	if err := json.Unmarshal([]byte(env), &server.Env); err != nil {
		return nil, fmt.Errorf("decoding env: %w", err)
	}
	server.Enabled = enabled != 0
	return server, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
