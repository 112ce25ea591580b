// ABOUTME: Session CRUD, metadata, context estimate, and transcript export
// ABOUTME: Export renders the conversation to HTML via goldmark

package server

import (
	"bytes"
	"fmt"
	"html"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/store"
)

func (s *Server) handleListSessions(c echo.Context) error {
	summaries, err := s.store.ListSessions(c.Request().Context())
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var req struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Workspace string `json:"workspace"`
		Model     string `json:"model"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid session payload")
	}
	if req.Workspace == "" {
		req.Workspace = s.workspaces.Current()
	}
	if req.Model == "" {
		req.Model = s.state.CurrentModel()
	}

	session, err := s.store.CreateSession(c.Request().Context(), store.SessionSpec{
		ID:        req.ID,
		Name:      req.Name,
		Workspace: req.Workspace,
		Model:     req.Model,
	})
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleGetSession(c echo.Context) error {
	session, err := s.store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleUpdateSession(c echo.Context) error {
	var req struct {
		Name *string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid session payload")
	}

	ctx := c.Request().Context()
	session, err := s.store.GetSession(ctx, c.Param("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	if req.Name != nil {
		session.Name = *req.Name
		if err := s.store.SaveSession(ctx, session); err != nil {
			return s.errorJSON(c, err)
		}
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	deleted, err := s.store.DeleteSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	if !deleted {
		return notFound(c, "session not found")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleSessionInfo(c echo.Context) error {
	session, err := s.store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":               session.ID,
		"name":             session.Name,
		"copilotSessionId": session.AgentSessionID,
		"createdAt":        session.CreatedAt,
		"workspace":        session.Workspace,
		"model":            session.Model,
		"messageCount":     len(session.Messages),
	})
}

// handleExportSession renders a session's transcript as a standalone HTML
// document, with message bodies converted from markdown.
func (s *Server) handleExportSession(c echo.Context) error {
	session, err := s.store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var doc bytes.Buffer
	fmt.Fprintf(&doc, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n", html.EscapeString(session.Name))
	fmt.Fprintf(&doc, "<h1>%s</h1>\n", html.EscapeString(session.Name))

	for _, msg := range session.Messages {
		speaker := "Assistant"
		if msg.Role == store.RoleUser {
			speaker = "Human"
		}
		fmt.Fprintf(&doc, "<section class=\"message %s\">\n<h2>%s</h2>\n", msg.Role, speaker)
		var body bytes.Buffer
		if err := md.Convert([]byte(msg.Content), &body); err != nil {
			// Fall back to escaped plain text for unconvertible content
			fmt.Fprintf(&doc, "<pre>%s</pre>\n", html.EscapeString(msg.Content))
		} else {
			doc.Write(body.Bytes())
		}
		doc.WriteString("</section>\n")
	}
	doc.WriteString("</body>\n</html>\n")

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", session.ID+".html"))
	return c.HTML(http.StatusOK, doc.String())
}

// handleContext returns a rough token estimate for a session. Message
// content counts at four characters per token plus a static overhead
// breakdown for the system prompt and tools.
func (s *Server) handleContext(c echo.Context) error {
	messageTokens := 0
	if sessionID := c.QueryParam("sessionId"); sessionID != "" {
		session, err := s.store.GetSession(c.Request().Context(), sessionID)
		if err == nil {
			for _, msg := range session.Messages {
				messageTokens += len(msg.Content) / 4
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"totalTokens": messageTokens + 3500,
		"maxTokens":   128000,
		"breakdown": map[string]int{
			"systemPrompt": 2500,
			"messages":     messageTokens,
			"files":        0,
			"tools":        500,
			"other":        500,
		},
		"compactSuggested": messageTokens > 80000,
	})
}
