// ABOUTME: Workspace, file, instructions, skill, and review endpoints
// ABOUTME: Thin translations between HTTP and the workspace manager

package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleGetWorkspace(c echo.Context) error {
	info, err := s.workspaces.Info()
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleSetWorkspace(c echo.Context) error {
	var req struct {
		Workspace string `json:"workspace"`
	}
	if err := c.Bind(&req); err != nil || req.Workspace == "" {
		return badRequest(c, "workspace is required")
	}
	info, err := s.workspaces.SetCurrent(req.Workspace)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleCreateWorkspace(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return badRequest(c, "name is required")
	}
	info, err := s.workspaces.Create(req.Name)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleGetInstructions(c echo.Context) error {
	return c.JSON(http.StatusOK, s.workspaces.Instructions())
}

func (s *Server) handleSaveInstructions(c echo.Context) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid instructions payload")
	}
	saved, err := s.workspaces.SaveInstructions(req.Content)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) handleListFiles(c echo.Context) error {
	entries, err := s.workspaces.ListFiles(c.QueryParam("path"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) handleReadFile(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		return badRequest(c, "path is required")
	}
	content, err := s.workspaces.ReadFile(path)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"content": content, "path": path})
}

func (s *Server) handleWriteFile(c echo.Context) error {
	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil || req.Path == "" {
		return badRequest(c, "path is required")
	}
	if err := s.workspaces.WriteFile(req.Path, req.Content); err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleReview(c echo.Context) error {
	var req struct {
		Workspace string `json:"workspace"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid review payload")
	}
	return c.JSON(http.StatusOK, s.workspaces.Review(c.Request().Context(), req.Workspace))
}

func (s *Server) handleListSkills(c echo.Context) error {
	return c.JSON(http.StatusOK, s.workspaces.Skills())
}

func (s *Server) handleCreateSkill(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return badRequest(c, "name is required")
	}
	skill, err := s.workspaces.CreateSkill(req.Name)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, skill)
}

func (s *Server) handleDeleteSkill(c echo.Context) error {
	if err := s.workspaces.DeleteSkill(c.Param("name")); err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleImportSkill(c echo.Context) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.Bind(&req); err != nil || req.URL == "" {
		return badRequest(c, "url is required")
	}
	skill, err := s.workspaces.ImportSkill(req.URL)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(http.StatusOK, skill)
}
