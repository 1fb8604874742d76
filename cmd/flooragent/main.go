package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/openfloor/openfloor-go/internal/agent"
	"github.com/openfloor/openfloor-go/internal/client"
	"github.com/openfloor/openfloor-go/internal/config"
	"github.com/openfloor/openfloor-go/internal/server"
	"github.com/openfloor/openfloor-go/internal/telemetry"
	"github.com/openfloor/openfloor-go/pkg/openfloor"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("flooragent", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	manifest, err := loadManifest(cfg)
	if err != nil {
		log.Fatalf("Failed to load manifest: %v", err)
	}

	a, err := agent.New(manifest, agent.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reload the manifest when the config file changes.
	if err := config.Watch(ctx, *configPath, logger, func(next *config.Config) {
		m, err := loadManifest(next)
		if err != nil {
			logger.Error("manifest reload failed", slog.String("error", err.Error()))
			return
		}
		a.SetManifest(m)
		logger.Info("manifest reloaded", slog.String("speaker_uri", m.Identification.SpeakerURI))
	}); err != nil {
		logger.Warn("config watch unavailable", slog.String("error", err.Error()))
	}

	// Announce the manifest to the configured floor, if any.
	if cfg.Floor.Endpoint != "" {
		c, err := client.New(cfg.Floor.Endpoint, client.WithLogger(logger))
		if err != nil {
			log.Fatalf("Failed to create floor client: %v", err)
		}
		announceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if _, err := c.Announce(announceCtx, a.Manifest()); err != nil {
			logger.Warn("floor announcement failed",
				slog.String("endpoint", cfg.Floor.Endpoint),
				slog.String("error", err.Error()))
		} else {
			logger.Info("announced to floor", slog.String("endpoint", cfg.Floor.Endpoint))
		}
		cancel()
	}

	timeout, err := time.ParseDuration(cfg.Server.RequestTimeout)
	if err != nil {
		log.Fatalf("Invalid request_timeout %q: %v", cfg.Server.RequestTimeout, err)
	}

	srv := server.New(cfg.Server.Port, timeout, cfg.Server.AuthToken, logger)
	srv.Mount(a)

	logger.Info("agent ready",
		slog.String("speaker_uri", a.SpeakerURI()),
		slog.Int("port", cfg.Server.Port))

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("agent shutdown complete")
}

// loadManifest reads the manifest file when one is configured, otherwise
// assembles a minimal manifest from the agent config fields.
func loadManifest(cfg *config.Config) (*openfloor.Manifest, error) {
	if cfg.Agent.ManifestPath != "" {
		return openfloor.LoadManifest(cfg.Agent.ManifestPath)
	}

	id, err := openfloor.NewIdentification(cfg.Agent.SpeakerURI)
	if err != nil {
		return nil, err
	}
	id.ServiceURL = cfg.Agent.ServiceURL
	id.ConversationalName = cfg.Agent.ConversationalName
	id.Organization = cfg.Agent.Organization
	return openfloor.NewManifest(id)
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
