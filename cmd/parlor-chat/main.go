// ABOUTME: Terminal client for conversing with Parlor AI agents
// ABOUTME: Wires config, auth, the API client, caches and the session manager

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parlorhq/parlor-go/internal/api"
	"github.com/parlorhq/parlor-go/internal/auth"
	"github.com/parlorhq/parlor-go/internal/config"
	"github.com/parlorhq/parlor-go/internal/directory"
	"github.com/parlorhq/parlor-go/internal/history"
	"github.com/parlorhq/parlor-go/internal/preview"
)

// configFlag is the global --config flag value.
var configFlag string

var rootCmd = &cobra.Command{
	Use:          "parlor-chat",
	Short:        "Chat with Parlor AI agents from the terminal",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file path (overrides PARLOR_CONFIG and the default location)")
	rootCmd.AddCommand(chatCmd, historyCmd, composeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the shared wiring every subcommand needs.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	client    *api.Client
	directory *directory.Cache
	history   *history.Store
	confirmed *preview.ConfirmedSet
}

// newApp loads configuration and constructs the client stack.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	tokens := &auth.FileTokenSource{Path: cfg.Auth.TokenPath}
	client := api.New(cfg.Server.BaseURL, tokens, logger)

	store, err := history.NewStore(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening history cache: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		client:    client,
		directory: directory.New(cfg.Cache.AgentTTL),
		history:   store,
		confirmed: preview.NewConfirmedSet(cfg.Preview.ConfirmedCapacity),
	}, nil
}

func (a *app) close() {
	if err := a.history.Close(); err != nil {
		a.logger.Warn("closing history cache", "error", err)
	}
}

// loadConfig resolves the config file location: --config flag, then the
// PARLOR_CONFIG env var, then the XDG default. A missing default file is not
// an error; built-in defaults apply.
func loadConfig() (*config.Config, error) {
	path := configFlag
	if path == "" {
		path = os.Getenv("PARLOR_CONFIG")
	}
	if path != "" {
		return config.Load(path)
	}

	path = defaultConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// defaultConfigPath returns XDG_CONFIG_HOME/parlor/config.yaml, falling back
// to ~/.config/parlor/config.yaml.
func defaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "parlor", "config.yaml")
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
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
