// ABOUTME: Application settings endpoints with partial updates

package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/settings"
)

func (s *Server) handleGetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.settings.Get())
}

func (s *Server) handleUpdateSettings(c echo.Context) error {
	var update settings.Update
	if err := c.Bind(&update); err != nil {
		return badRequest(c, "invalid settings payload")
	}
	updated, err := s.settings.Update(update)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}
