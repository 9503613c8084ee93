// Package main is the entry point for the transport API gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	envFile     string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting transitgw",
		observability.String("version", version),
		observability.String("environment", cfg.Environment),
		observability.String("config", flags.configPath),
	)

	if err := config.ValidateConfig(cfg); err != nil {
		fatalWithSync(logger, "invalid configuration", observability.Error(err))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := initApplication(ctx, cfg, logger)
	if err != nil {
		fatalWithSync(logger, "failed to initialize gateway", observability.Error(err))
		return
	}

	if err := run(ctx, app, logger); err != nil {
		fatalWithSync(logger, "gateway terminated", observability.Error(err))
	}
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("GATEWAY_CONFIG", ""),
		"Path to an optional YAML configuration file")
	envFile := flag.String("env-file", getEnvOrDefault("GATEWAY_ENV_FILE", ".env"),
		"Path to a .env file (ignored when missing)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		envFile:     *envFile,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("transitgw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

func loadConfig(flags cliFlags) (*config.Config, error) {
	return config.Load(flags.configPath, flags.envFile)
}

// initLogger initializes the logger from configuration. An invalid level
// falls back to the default logger rather than aborting.
func initLogger(cfg *config.Config) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log configuration, using defaults: %v\n", err)
		logger, _ = observability.NewLogger(observability.LogConfig{})
	}
	return logger
}

// fatalWithSync flushes the logger before exiting.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	logger.Error(msg, fields...)
	_ = logger.Sync()
	exitFunc(1)
}

// exitFunc is replaced in tests.
var exitFunc = os.Exit
