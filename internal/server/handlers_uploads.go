// ABOUTME: Upload endpoints: multipart upload, download, list, delete

package server

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleUpload(c echo.Context) error {
	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		return badRequest(c, "session_id is required")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return s.errorJSON(c, err)
	}
	defer src.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(fileHeader.Filename))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	att, err := s.uploads.Save(c.Request().Context(), sessionID, fileHeader.Filename, mimeType, src)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, att)
}

func (s *Server) handleListUploads(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return badRequest(c, "session_id is required")
	}
	list, err := s.uploads.ListBySession(c.Request().Context(), sessionID)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleDownload(c echo.Context) error {
	att, rc, err := s.uploads.Open(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", att.OriginalFilename))
	return c.Stream(http.StatusOK, att.MimeType, rc)
}

func (s *Server) handleDeleteUpload(c echo.Context) error {
	deleted, err := s.uploads.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}
	if !deleted {
		return notFound(c, "file not found")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
