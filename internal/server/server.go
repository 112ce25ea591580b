// ABOUTME: HTTP server assembly: routes, middleware, and listener setup
// ABOUTME: Serves over plain TCP or an optional tailscale node

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"tailscale.com/tsnet"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/auth"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/chat"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/config"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/copilot"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/settings"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/store"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/uploads"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/workspace"
)

// ModelLister asks the agent runtime which models are available.
type ModelLister interface {
	ListModels(ctx context.Context) ([]copilot.ModelInfo, error)
}

// Deps are the collaborators the server routes delegate to.
type Deps struct {
	Store      store.Store
	Models     ModelLister
	Gateway    *chat.Gateway
	Settings   *settings.Service
	Workspaces *workspace.Manager
	Uploads    *uploads.Service
	State      *State
	Logger     *slog.Logger
}

// Server hosts the REST API and the chat WebSocket endpoint.
type Server struct {
	cfg        *config.Config
	echo       *echo.Echo
	http       *http.Server
	tsnet      *tsnet.Server
	store      store.Store
	models     ModelLister
	settings   *settings.Service
	workspaces *workspace.Manager
	uploads    *uploads.Service
	state      *State
	logger     *slog.Logger
}

// New assembles the server and registers all routes.
func New(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		cfg:        cfg,
		echo:       e,
		store:      deps.Store,
		models:     deps.Models,
		settings:   deps.Settings,
		workspaces: deps.Workspaces,
		uploads:    deps.Uploads,
		state:      deps.State,
		logger:     deps.Logger.With("component", "server"),
	}

	if cfg.Auth.JWTSecret != "" {
		verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		e.Use(skipHealth(auth.Middleware(verifier, deps.Logger)))
		s.logger.Info("bearer authentication enabled")
	} else {
		s.logger.Warn("auth.jwt_secret not configured, API is unauthenticated")
	}

	e.GET("/health", s.handleHealth)
	deps.Gateway.Register(e)
	s.registerRoutes(e)
	return s
}

// skipHealth exempts the health endpoint from a middleware.
func skipHealth(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		wrapped := mw(next)
		return func(c echo.Context) error {
			if c.Path() == "/health" || c.Request().URL.Path == "/health" {
				return next(c)
			}
			return wrapped(c)
		}
	}
}

// Handler exposes the route tree, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/api/models", s.handleListModels)
	e.POST("/api/models", s.handleSetModel)

	e.GET("/api/sessions", s.handleListSessions)
	e.POST("/api/sessions", s.handleCreateSession)
	e.GET("/api/sessions/:id", s.handleGetSession)
	e.PATCH("/api/sessions/:id", s.handleUpdateSession)
	e.DELETE("/api/sessions/:id", s.handleDeleteSession)
	e.GET("/api/sessions/:id/export", s.handleExportSession)
	e.GET("/api/session/:id/info", s.handleSessionInfo)

	e.GET("/api/session/:id/plan", s.handleGetActivePlan)
	e.POST("/api/session/:id/plan", s.handleCreatePlan)
	e.GET("/api/session/:id/plans", s.handleListPlans)
	e.DELETE("/api/session/:id/plans/:plan_id", s.handleDeletePlan)

	e.GET("/api/mcp/servers", s.handleListMCPServers)
	e.POST("/api/mcp/servers", s.handleCreateMCPServer)
	e.GET("/api/mcp/servers/:id", s.handleGetMCPServer)
	e.PATCH("/api/mcp/servers/:id", s.handleUpdateMCPServer)
	e.DELETE("/api/mcp/servers/:id", s.handleDeleteMCPServer)

	e.GET("/api/settings", s.handleGetSettings)
	e.POST("/api/settings", s.handleUpdateSettings)

	e.GET("/api/skills", s.handleListSkills)
	e.POST("/api/skills", s.handleCreateSkill)
	e.DELETE("/api/skills/:name", s.handleDeleteSkill)
	e.POST("/api/skills/import", s.handleImportSkill)

	e.GET("/api/workspace", s.handleGetWorkspace)
	e.POST("/api/workspace", s.handleSetWorkspace)
	e.POST("/api/workspaces/create", s.handleCreateWorkspace)
	e.GET("/api/workspace/instructions", s.handleGetInstructions)
	e.POST("/api/workspace/instructions", s.handleSaveInstructions)
	e.GET("/api/files", s.handleListFiles)
	e.GET("/api/file", s.handleReadFile)
	e.POST("/api/file", s.handleWriteFile)
	e.POST("/api/review", s.handleReview)

	e.POST("/api/uploads", s.handleUpload)
	e.GET("/api/uploads", s.handleListUploads)
	e.GET("/api/uploads/:id", s.handleDownload)
	e.DELETE("/api/uploads/:id", s.handleDeleteUpload)

	e.GET("/api/context", s.handleContext)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen(ctx)
	if err != nil {
		return err
	}

	s.http = &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	if s.cfg.Tailscale.Enabled {
		return s.listenTailscale(ctx)
	}
	ln, err := net.Listen("tcp", s.cfg.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.cfg.Server.HTTPAddr, err)
	}
	return ln, nil
}

// listenTailscale brings up a tsnet node and listens on it, optionally
// exposed publicly via funnel.
func (s *Server) listenTailscale(ctx context.Context) (net.Listener, error) {
	tsCfg := s.cfg.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnet = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnet.Up(ctx)
	if err != nil {
		_ = s.tsnet.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	if status.Self != nil {
		s.logger.Info("tailscale node ready", "dns_name", status.Self.DNSName)
	}

	if tsCfg.Funnel {
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := s.tsnet.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = s.tsnet.Close()
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil
	}

	ln, err := s.tsnet.Listen("tcp", ":80")
	if err != nil {
		_ = s.tsnet.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "copilot-ui", "tailscale"), nil
}

func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// Shutdown stops the HTTP server and the tailscale node, if any.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if s.tsnet != nil {
		if err := s.tsnet.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// errorJSON maps domain errors to the protocol's status codes with a
// {"error": message} body.
func (s *Server) errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, workspace.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workspace.ErrInvalidName):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": msg})
}
