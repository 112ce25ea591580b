// ABOUTME: Entry point for the copilot-ui backend server
// ABOUTME: Wires the store, agent runtime client, and HTTP server together

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/chat"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/config"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/copilot"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/server"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/settings"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/store"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/uploads"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/workspace"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                   _ _       _            _
  ___ ___  _ __ (_) | ___ | |_     _   _(_)
 / __/ _ \| '_ \| | |/ _ \| __|___| | | | |
| (_| (_) | |_) | | | (_) | ||_____| |_| | |
 \___\___/| .__/|_|_|\___/ \__|     \__,_|_|
          |_|
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: copilot-ui <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the backend server")
		fmt.Println("  health   Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.Path()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Runtime:   %s %s\n", cfg.Copilot.Command, strings.Join(cfg.Copilot.Args, " "))

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting copilot-ui",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"database", cfg.Database.Path,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	client := copilot.NewClient(cfg.Copilot.Command, cfg.Copilot.Args, logger)
	if err := client.Start(ctx); err != nil {
		// The REST API stays usable without the runtime; chat turns and
		// model listing fall back until the process is restarted.
		logger.Error("agent runtime unavailable", "command", cfg.Copilot.Command, "error", err)
	}
	defer client.Close()

	root := workspace.ResolveRoot(cfg.Workspace.Root)
	workspaces := workspace.NewManager(root, logger)

	dataDir := filepath.Dir(cfg.Database.Path)
	uploadsDir := cfg.Uploads.Dir
	if uploadsDir == "" {
		uploadsDir = filepath.Join(dataDir, "uploads")
	}
	uploadSvc, err := uploads.NewService(uploadsDir, st, logger)
	if err != nil {
		return fmt.Errorf("creating uploads service: %w", err)
	}

	settingsSvc, err := settings.NewService(filepath.Join(dataDir, "settings.toml"), logger)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	state := server.NewState(cfg.Workspace.DefaultModel)
	gateway := chat.NewGateway(chat.GatewayConfig{
		Store:       st,
		Agent:       agentAdapter{client: client},
		Handles:     copilot.NewRegistry(),
		Attachments: uploadSvc,
		Workspaces:  workspaces,
		State:       state,
		TurnTimeout: cfg.Copilot.TurnTimeout,
		Logger:      logger,
	})

	srv := server.New(cfg, server.Deps{
		Store:      st,
		Models:     client,
		Gateway:    gateway,
		Settings:   settingsSvc,
		Workspaces: workspaces,
		Uploads:    uploadSvc,
		State:      state,
		Logger:     logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// agentAdapter narrows *copilot.Client to the gateway's Agent interface,
// converting the concrete session type to the Handle it expects.
type agentAdapter struct {
	client *copilot.Client
}

func (a agentAdapter) CreateSession(ctx context.Context, cfg copilot.SessionConfig) (copilot.Handle, error) {
	session, err := a.client.CreateSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (a agentAdapter) ResumeSession(ctx context.Context, cfg copilot.SessionConfig) (copilot.Handle, error) {
	session, err := a.client.ResumeSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(&colorHandler{level: level})
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{level: h.level, attrs: newAttrs, groups: h.groups}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{level: h.level, attrs: h.attrs, groups: newGroups}
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
