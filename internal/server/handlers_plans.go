// ABOUTME: Session-scoped plan endpoints
// ABOUTME: Creating a plan supersedes any prior non-completed plan

package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleGetActivePlan(c echo.Context) error {
	plan, err := s.store.GetActivePlan(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, plan)
}

func (s *Server) handleCreatePlan(c echo.Context) error {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid plan payload")
	}
	plan, err := s.store.CreatePlan(c.Request().Context(), c.Param("id"), req.Title, req.Content)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, plan)
}

func (s *Server) handleListPlans(c echo.Context) error {
	plans, err := s.store.ListPlans(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, plans)
}

func (s *Server) handleDeletePlan(c echo.Context) error {
	deleted, err := s.store.DeletePlan(c.Request().Context(), c.Param("id"), c.Param("plan_id"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	if !deleted {
		return notFound(c, "plan not found")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
