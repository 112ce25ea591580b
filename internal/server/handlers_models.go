// ABOUTME: Model listing and default-model switching endpoints
// ABOUTME: Falls back to a static catalog when the runtime is unreachable

package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/copilot"
)

// fallbackModels is served when the agent runtime cannot list models,
// keeping the UI usable while the runtime is down.
var fallbackModels = []copilot.ModelInfo{
	{ID: "claude-sonnet-4", Name: "Claude Sonnet 4", Provider: "Anthropic"},
	{ID: "gpt-4.1", Name: "GPT-4.1", Provider: "OpenAI"},
}

// resolveProvider guesses a provider label from the model identifier when
// the runtime does not report one.
func resolveProvider(id, name string) string {
	text := strings.ToLower(id + " " + name)
	switch {
	case strings.Contains(text, "claude"):
		return "Anthropic"
	case strings.Contains(text, "gpt"), strings.Contains(text, "openai"),
		strings.Contains(text, "o1"), strings.Contains(text, "o3"), strings.Contains(text, "o4"):
		return "OpenAI"
	case strings.Contains(text, "gemini"), strings.Contains(text, "google"):
		return "Google"
	}
	return "Unknown"
}

type modelsResponse struct {
	Models  []copilot.ModelInfo `json:"models"`
	Current string              `json:"current"`
}

func (s *Server) handleListModels(c echo.Context) error {
	models, err := s.models.ListModels(c.Request().Context())
	if err != nil || len(models) == 0 {
		if err != nil {
			s.logger.Warn("listing models from runtime failed", "error", err)
		}
		models = fallbackModels
	}
	for i := range models {
		if models[i].Provider == "" {
			models[i].Provider = resolveProvider(models[i].ID, models[i].Name)
		}
	}
	return c.JSON(http.StatusOK, modelsResponse{Models: models, Current: s.state.CurrentModel()})
}

func (s *Server) handleSetModel(c echo.Context) error {
	var req struct {
		Model string `json:"model"`
	}
	if err := c.Bind(&req); err != nil || req.Model == "" {
		return badRequest(c, "invalid model")
	}
	s.state.SetModel(req.Model)
	return c.JSON(http.StatusOK, map[string]string{"model": req.Model})
}
