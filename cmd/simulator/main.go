// Command simulator serves POST /api/message and relays each message to a
// Botpress bot, or echoes it back when no webhook is configured.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsandov/botpress-simulator/pkg/botpress"
	"github.com/fsandov/botpress-simulator/pkg/cache"
	"github.com/fsandov/botpress-simulator/pkg/client"
	"github.com/fsandov/botpress-simulator/pkg/config"
	"github.com/fsandov/botpress-simulator/pkg/database"
	"github.com/fsandov/botpress-simulator/pkg/env"
	"github.com/fsandov/botpress-simulator/pkg/jobscheduler"
	"github.com/fsandov/botpress-simulator/pkg/logs"
	"github.com/fsandov/botpress-simulator/pkg/simulator"
	"github.com/fsandov/botpress-simulator/pkg/telemetry"
	"github.com/fsandov/botpress-simulator/pkg/transcript"
	"github.com/fsandov/botpress-simulator/pkg/web"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()
	if err := env.Load(); err != nil {
		logs.Error(ctx, "failed to load .env", zap.Error(err))
		os.Exit(1)
	}
	cfg, err := config.LoadSimulator()
	if err != nil {
		logs.Error(ctx, "invalid configuration", zap.Error(err))
		os.Exit(1)
	}
	logger := logs.NewLogger(logs.Options{AppName: cfg.AppName, Level: cfg.LogLevel})
	defer logger.Sync()

	app, err := build(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error(ctx, "failed to start simulator", zap.Error(err))
		os.Exit(1)
	}
	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

// build wires every dependency and returns an app whose shutdown hooks release
// them. On error anything already opened is released.
func build(ctx context.Context, cfg *config.SimulatorConfig, logger *logs.Logger, reg prometheus.Registerer) (app *web.GinApp, err error) {
	var cleanups []func(context.Context) error
	defer func() {
		if err != nil {
			for i := len(cleanups) - 1; i >= 0; i-- {
				_ = cleanups[i](context.Background())
			}
		}
	}()

	tracing := cfg.OTELEndpoint != ""
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:   cfg.AppName,
		Environment:   cfg.Environment,
		OTLPEndpoint:  cfg.OTELEndpoint,
		Insecure:      true,
		EnableMetrics: cfg.EnableMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	cleanups = append(cleanups, providers.Shutdown)

	store, err := newConversationCache(ctx, cfg, tracing)
	if err != nil {
		return nil, err
	}
	cleanups = append(cleanups, func(context.Context) error { return store.Close() })

	db, err := database.Open(ctx, database.Config{
		Dialect: cfg.DBDialect,
		DSN:     cfg.DBDSN,
	}, &database.Options{Logger: logger, Tracing: tracing})
	if err != nil {
		return nil, err
	}
	cleanups = append(cleanups, func(context.Context) error { return database.Close(db) })

	transcripts, err := transcript.NewStore(ctx, db)
	if err != nil {
		return nil, err
	}

	scheduler := jobscheduler.New(jobscheduler.WithLogger(logger))
	if cfg.TranscriptRetention > 0 {
		if _, err := scheduler.Add("transcript-retention", cfg.RetentionSchedule, retentionJob(transcripts, cfg.TranscriptRetention, logger)); err != nil {
			return nil, fmt.Errorf("schedule transcript retention: %w", err)
		}
	}
	scheduler.Start()
	cleanups = append(cleanups, scheduler.Stop)

	fwd, closeFwd := newForwarder(cfg, logger, reg)
	cleanups = append(cleanups, closeFwd)

	svc := simulator.NewService(fwd,
		simulator.WithConversations(simulator.NewConversations(store, cfg.ConversationTTL)),
		simulator.WithTranscripts(transcripts),
		simulator.WithLogger(logger),
		simulator.WithRegisterer(reg),
	)

	app = web.New(&web.GinConfig{
		AppName:           cfg.AppName,
		Port:              cfg.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   cfg.ShutdownTimeout,
		MaxHeaderBytes:    1 << 20,
		EnablePprof:       cfg.EnablePprof,
		EnableMetrics:     cfg.EnableMetrics,
		EnableRequestID:   true,
		EnableRecovery:    true,
		EnableCompression: true,
		EnableTracing:     tracing,
		EnableAccessLog:   true,
		CORSPrefix:        "/api/",
		AllowedOrigins:    cfg.AllowedOrigins,
	}, web.WithLogger(logger))
	svc.RegisterRoutes(app.GetEngine())
	app.AddHealthCheck("conversations", store.Ping)
	app.AddHealthCheck("database", func(ctx context.Context) error { return database.Ping(ctx, db) })

	// Dependencies stop after the server drains, in reverse order of creation.
	for i := len(cleanups) - 1; i >= 0; i-- {
		app.OnShutdown(cleanups[i])
	}

	mode := "botpress"
	if cfg.EchoMode() {
		mode = "echo"
	}
	logger.Info(ctx, "simulator ready",
		zap.String("mode", mode),
		zap.String("endpoint", fmt.Sprintf("http://0.0.0.0:%s/api/message", cfg.Port)),
	)
	return app, nil
}

func newConversationCache(ctx context.Context, cfg *config.SimulatorConfig, tracing bool) (cache.Cache, error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCacheFromConfig(ctx, cache.RedisConfig{
		Enabled:  true,
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Tracing:  tracing,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation cache: %w", err)
	}
	return c, nil
}

func newForwarder(cfg *config.SimulatorConfig, logger *logs.Logger, reg prometheus.Registerer) (simulator.Forwarder, func(context.Context) error) {
	if cfg.EchoMode() {
		return simulator.EchoForwarder{}, func(context.Context) error { return nil }
	}
	bp := botpress.New(botpress.Config{
		WebhookURL: cfg.Botpress.WebhookURL,
		BotID:      cfg.Botpress.BotID,
		Token:      cfg.Botpress.Token,
		WebhookID:  cfg.Botpress.WebhookID,
		Secret:     cfg.Botpress.Secret,
		APIURL:     cfg.Botpress.APIURL,
		ChatURL:    cfg.Botpress.ChatURL,
	},
		botpress.WithLogger(logger),
		botpress.WithClientOptions(
			client.WithMiddleware(client.RequestIDMiddleware()),
			client.WithMiddleware(client.TracingMiddleware(client.DefaultTracingConfig())),
			client.WithMiddleware(client.MetricsMiddleware(&client.MetricsConfig{
				Namespace:  "simulator",
				Subsystem:  "botpress",
				Registerer: reg,
			})),
		),
	)
	return bp, func(context.Context) error {
		bp.Close()
		return nil
	}
}

func retentionJob(store *transcript.Store, retention time.Duration, logger *logs.Logger) jobscheduler.Job {
	return func(ctx context.Context) error {
		removed, err := store.PurgeOlderThan(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Info(ctx, "purged old transcripts", zap.Int64("removed", removed))
		}
		return nil
	}
}
