// ABOUTME: Entry point for the context-gateway server
// ABOUTME: Aggregates business tool context behind a uniform capability API

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
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

	"github.com/2389/context-gateway/internal/auth"
	"github.com/2389/context-gateway/internal/bundle"
	"github.com/2389/context-gateway/internal/config"
	"github.com/2389/context-gateway/internal/dashboard"
	"github.com/2389/context-gateway/internal/httpapi"
	"github.com/2389/context-gateway/internal/registry"
	"github.com/2389/context-gateway/internal/router"
	"github.com/2389/context-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
          _                       _
      ___| |___  __      __ _  __| |_ _____      ____ _ _   _
     / __| __\ \/ /____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
    | (__| |_ >  <_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
     \___|\__/_/\_\     \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                        |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: CONTEXT_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/context-gateway/gateway.yaml > ~/.config/context-gateway/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CONTEXT_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "context-gateway", "gateway.yaml")
}

// getDataPath returns the path to the gateway data directory.
// Priority: XDG_DATA_HOME/context-gateway > ~/.local/share/context-gateway
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "context-gateway")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: context-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                Start the gateway server")
		fmt.Println("  init                 Create a config file with a fresh JWT secret")
		fmt.Println("  token --owner ID     Generate a bearer token for an owner")
		fmt.Println("  health               Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken()
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
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	if cfg.Database.Path != "" {
		fmt.Printf("Database: %s\n", cfg.Database.Path)
	} else {
		fmt.Printf("Database: in-memory\n")
	}

	fmt.Println()

	logger.Info("starting context-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	// Connection store: SQLite when a path is configured, memory otherwise
	var connections store.ConnectionStore
	if cfg.Database.Path != "" {
		connections, err = store.NewSQLiteStore(cfg.Database.Path, logger)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
	} else {
		connections = store.NewMemoryStore(logger)
	}
	defer func() { _ = connections.Close() }()

	reg := registry.NewWithBuiltins(logger, cfg.Adapters.CacheCapacity, cfg.Adapters.UpstreamWait)
	defer reg.Close()

	rt := router.New(connections, reg, logger)
	agg := bundle.New(connections, reg, logger)
	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))

	api, err := httpapi.NewServer(httpapi.Config{
		Store:            connections,
		Registry:         reg,
		Router:           rt,
		Aggregator:       agg,
		Verifier:         verifier,
		Logger:           logger,
		DefaultMaxTokens: cfg.Context.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	dashboard.New(reg, logger, version).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
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

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
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

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
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

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
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
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
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

// runToken generates a bearer token for an owner using the configured
// JWT secret: context-gateway token --owner some-user
func runToken() error {
	// Supports both "--owner value" and "--owner=value" formats
	var ownerID string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--owner" || arg == "-o":
			if i+1 >= len(args) {
				return fmt.Errorf("--owner requires a value")
			}
			ownerID = args[i+1]
			i++
		case strings.HasPrefix(arg, "--owner="):
			ownerID = strings.TrimPrefix(arg, "--owner=")
		case strings.HasPrefix(arg, "-o="):
			ownerID = strings.TrimPrefix(arg, "-o=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return fmt.Errorf("--owner flag is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(ownerID, cfg.Auth.TokenLifetime)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	expiresAt := time.Now().Add(cfg.Auth.TokenLifetime).UTC()
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

// runInit writes a starter config with a fresh random JWT secret.
func runInit() error {
	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "gateway.db")

	green := color.New(color.FgGreen)

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	// Generate random JWT secret
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	configContent := fmt.Sprintf(`# context-gateway configuration
# Generated by context-gateway init

server:
  http_addr: "localhost:8765"

database:
  path: "%s"

auth:
  jwt_secret: "%s"
  token_lifetime: "24h"

context:
  max_tokens: 4000
  include_metadata: false

adapters:
  cache_capacity: 128
  upstream_wait: "30s"

logging:
  level: "info"
  format: "text"
`, dbPath, jwtSecret)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println()
	fmt.Println("To start the server:")
	fmt.Println("  context-gateway serve")
	fmt.Println()
	fmt.Println("To mint a bearer token:")
	fmt.Println("  context-gateway token --owner your-name")

	return nil
}
