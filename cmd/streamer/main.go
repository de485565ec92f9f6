package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/streamkit/twitterstream/internal/archive"
	"github.com/streamkit/twitterstream/internal/config"
	"github.com/streamkit/twitterstream/internal/metrics"
	"github.com/streamkit/twitterstream/internal/oauth"
	"github.com/streamkit/twitterstream/internal/relay"
	"github.com/streamkit/twitterstream/internal/sink"
	"github.com/streamkit/twitterstream/internal/stream"
	"github.com/streamkit/twitterstream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/streamer.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"host", cfg.Stream.Host,
		"path", cfg.Stream.Path,
		"clean", cfg.Stream.Clean,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Build the request signer
	signerOpts := []oauth.Option{}
	if cfg.Stream.UserAgent != "" {
		signerOpts = append(signerOpts, oauth.WithUserAgent(cfg.Stream.UserAgent))
	}
	signer, err := oauth.NewSigner(oauth.Credentials{
		ConsumerKey:       cfg.Twitter.ConsumerKey,
		ConsumerSecret:    cfg.Twitter.ConsumerSecret,
		AccessToken:       cfg.Twitter.AccessToken,
		AccessTokenSecret: cfg.Twitter.AccessTokenSecret,
	}, signerOpts...)
	if err != nil {
		logger.Error("failed to build request signer", "error", err)
		os.Exit(1)
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	streamMetrics, err := metrics.NewStreamMetrics(registry)
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Assemble downstream consumers
	var consumers sink.Fanout

	var hub *relay.Hub
	if cfg.Relay.Enabled {
		hub = relay.NewHub(relay.Config{
			Port:         cfg.Relay.Port,
			Path:         cfg.Relay.Path,
			SendBuffer:   cfg.Relay.SendBuffer,
			WriteTimeout: cfg.Relay.WriteTimeout,
		}, logger)
		consumers = append(consumers, hub)
	}

	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Archive.Database.Host,
			"port", cfg.Archive.Database.Port,
			"database", cfg.Archive.Database.Name,
		)
		db, err := archive.Connect(ctx, cfg.Archive.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		archiver = archive.NewArchiver(archive.Config{
			Instance:      cfg.Instance.ID,
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
			SpoolSize:     cfg.Archive.BufferSize,
		}, db, logger)
		consumers = append(consumers, archiver)
	}

	// Control sink: surface rate limits in the log, treat fatal stream
	// errors as a shutdown trigger.
	consumers = append(consumers, sink.Callbacks{
		Message: func(msg json.RawMessage) {
			logger.Debug("message received", "bytes", len(msg))
		},
		RateLimited: func() {
			logger.Warn("stream rate limited")
		},
		Error: func(err error) {
			logger.Error("stream failed permanently", "error", err)
			cancel()
		},
	})

	var streamSink sink.Sink = consumers
	if cfg.Stream.Clean {
		streamSink = sink.NewCleanSink(consumers, logger)
	}

	// Connection controller
	controller := stream.NewController(stream.Config{
		Host:           cfg.Stream.Host,
		Scheme:         cfg.Stream.Scheme,
		Port:           cfg.Stream.Port,
		ConnectTimeout: cfg.Stream.ConnectTimeout,
		StallTimeout:   cfg.Stream.StallTimeout,
	}, signer, streamSink, logger, streamMetrics)

	// Health and metrics server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHealthHandler(cfg, registry, hub, archiver),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	if hub != nil {
		if err := hub.Start(ctx); err != nil {
			logger.Error("failed to start relay", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			return hub.Stop(stopCtx)
		})
	}

	if archiver != nil {
		if err := archiver.Start(ctx); err != nil {
			logger.Error("failed to start archiver", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()
			return archiver.Stop(stopCtx)
		})
	}

	// Open the stream
	if err := controller.Fetch(cfg.Stream.Path, "GET"); err != nil {
		logger.Error("failed to open stream", "error", err)
		os.Exit(1)
	}

	logger.Info("streamer running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	controller.Stop()
	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("streamer stopped")
}

// createHealthHandler creates the HTTP handler for health checks and metrics.
func createHealthHandler(cfg *config.StreamerConfig, registry *prometheus.Registry, hub *relay.Hub, archiver *archive.Archiver) http.Handler {
	mux := http.NewServeMux()

	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	mux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Instance   string         `json:"instance"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Instance:   cfg.Instance.ID,
			Components: make(map[string]any),
		}

		if hub != nil {
			health.Components["relay"] = map[string]any{
				"clients": hub.ClientCount(),
			}
		}
		if archiver != nil {
			stats := archiver.WriteStats()
			health.Components["archive"] = map[string]any{
				"inserts": stats.Inserts,
				"flushes": stats.Flushes,
				"errors":  stats.Errors,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
