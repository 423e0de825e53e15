// Package cli implements the autoredistrict command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/temotskipa/autoredistrict/pkg/buildinfo"
	"github.com/temotskipa/autoredistrict/pkg/cache"
	"github.com/temotskipa/autoredistrict/pkg/pipeline"
	"github.com/temotskipa/autoredistrict/pkg/planstore"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "autoredistrict"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	config Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var (
		logLevel   string
		logFormat  string
		verbose    bool
		noColor    bool
		configPath string
	)

	root := &cobra.Command{
		Use:          appName,
		Short:        "Autoredistrict partitions census units into balanced districts",
		Long:         `Autoredistrict is a deterministic redistricting engine. It partitions census units into contiguous, population-balanced districts, scores plans for compactness and fairness, and apportions legislative seats with the Huntington-Hill method.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				lipgloss.SetColorProfile(termenv.Ascii)
			}
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			if verbose {
				level = log.DebugLevel
			}
			formatter, err := parseLogFormat(logFormat)
			if err != nil {
				return err
			}
			c.Logger.SetLevel(level)
			c.Logger.SetFormatter(formatter)

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			c.config = cfg
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json, logfmt")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging (same as --log-level debug)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+defaultConfigFile+" if present)")

	// Register all subcommands
	root.AddCommand(c.planCommand())
	root.AddCommand(c.apportionCommand())
	root.AddCommand(c.adjacencyCommand())
	root.AddCommand(c.plansCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cch, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cch, nil, c.Logger), nil
}

// newCache picks the cache backend: null when disabled, redis when the
// config names one, the XDG file cache otherwise.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if c.config.Cache.Redis != "" {
		return cache.NewRedisCache(ctx, c.config.Cache.Redis, c.config.Cache.RedisPassword, c.config.Cache.RedisDB)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// openStore opens the configured plan store.
func (c *CLI) openStore(ctx context.Context) (planstore.Store, error) {
	return planstore.Open(ctx, c.config.Store)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/autoredistrict/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
