// Package main provides the landsatlook command-line client.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/landsatlook/internal/app"
	"github.com/jobrunner/landsatlook/internal/config"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var (
	cfgFile      string
	outputFormat string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "landsatlook",
	Short: "landsatlook - Landsat scene search, download and raster conversion",
	Long: `landsatlook finds Landsat scenes in the USGS LandsatLook STAC API,
downloads their band assets through an authenticated ERS session and
post-processes single-band GeoTIFFs.

Features:
  - STAC item search with bbox, datetime and cloud cover filters
  - Cookie-backed downloads with USGS ERS login
  - Requester-pays S3 access to the usgs-landsat bucket
  - dB-to-linear and other per-pixel raster transforms
  - Band stacking into multi-band GeoTIFFs
  - Publishing results to S3 or Azure Blob Storage
  - Directory watching for automatic conversion
  - Prometheus metrics as a node-exporter textfile`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("landsatlook %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (json, text)")
	rootCmd.PersistentFlags().String("stac-url", "", "STAC API URL")
	rootCmd.PersistentFlags().String("metrics-textfile", "", "write Prometheus metrics to this file on exit")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("stac.url", rootCmd.PersistentFlags().Lookup("stac-url"))
	_ = viper.BindPFlag("metrics.textfile", rootCmd.PersistentFlags().Lookup("metrics-textfile"))

	rootCmd.AddCommand(
		versionCmd,
		searchCmd,
		itemCmd,
		downloadCmd,
		fetchCmd,
		convertCmd,
		stackCmd,
		loginCmd,
		watchCmd,
		followCmd,
		scenesCmd,
	)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// loadConfig binds the command's flags to their configuration keys and loads
// the configuration. Flags are bound at run time so commands can share keys.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Metrics.Textfile != "" || cfg.Server.Listen != "" {
		cfg.Metrics.Enabled = true
	}
	return cfg, nil
}

// newApp loads the configuration, sets up logging and wires the application.
func newApp(cmd *cobra.Command, bindings map[string]string) (*app.App, error) {
	cfg, err := loadConfig(cmd, bindings)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	a, err := app.New(cmd.Context(), cfg, logger, app.Options{
		ProgressFor: progressFor(cfg.Download.Progress),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Logger.Error("shutdown error", "error", err)
	}
}

// setupLogger writes to stderr; stdout carries command output.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
