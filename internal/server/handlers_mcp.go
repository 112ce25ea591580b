// ABOUTME: MCP server registry endpoints
// ABOUTME: Responses carry the derived status alongside stored fields

package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/store"
)

// mcpServerView is an MCPServer plus its derived status field.
type mcpServerView struct {
	*store.MCPServer
	Status string `json:"status"`
}

func mcpView(server *store.MCPServer) mcpServerView {
	return mcpServerView{MCPServer: server, Status: server.Status()}
}

func (s *Server) handleListMCPServers(c echo.Context) error {
	servers, err := s.store.ListMCPServers(c.Request().Context())
	if err != nil {
		return s.errorJSON(c, err)
	}
	views := make([]mcpServerView, 0, len(servers))
	for _, server := range servers {
		views = append(views, mcpView(server))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleCreateMCPServer(c echo.Context) error {
	var server store.MCPServer
	if err := c.Bind(&server); err != nil {
		return badRequest(c, "invalid mcp server payload")
	}
	if server.Name == "" || server.Command == "" {
		return badRequest(c, "name and command are required")
	}
	if err := s.store.CreateMCPServer(c.Request().Context(), &server); err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, mcpView(&server))
}

func (s *Server) handleGetMCPServer(c echo.Context) error {
	server, err := s.store.GetMCPServer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, mcpView(server))
}

func (s *Server) handleUpdateMCPServer(c echo.Context) error {
	var update store.MCPServerUpdate
	if err := c.Bind(&update); err != nil {
		return badRequest(c, "invalid mcp server payload")
	}
	server, err := s.store.UpdateMCPServer(c.Request().Context(), c.Param("id"), update)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, mcpView(server))
}

func (s *Server) handleDeleteMCPServer(c echo.Context) error {
	deleted, err := s.store.DeleteMCPServer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	if !deleted {
		return notFound(c, "mcp server not found")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
