// Command notifier sends one message to the simulator and prints the bot's
// reply. It exits 0 whether or not the exchange succeeded.
package main

import (
	"context"
	"os"
	"time"

	"github.com/fsandov/botpress-simulator/pkg/client"
	"github.com/fsandov/botpress-simulator/pkg/config"
	"github.com/fsandov/botpress-simulator/pkg/env"
	"github.com/fsandov/botpress-simulator/pkg/logs"
	"github.com/fsandov/botpress-simulator/pkg/notifier"
	"github.com/fsandov/botpress-simulator/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	exitOK          = 0
	exitConfigError = 2
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	envErr := env.Load()
	cfg, cfgErr := config.LoadNotifier()

	level := os.Getenv("LOG_LEVEL")
	if cfg != nil {
		level = cfg.LogLevel
	}
	logger := logs.NewLogger(logs.Options{Level: logs.CapLevel(level, zapcore.InfoLevel), Plain: true})
	defer logger.Sync()

	if envErr != nil {
		logger.Error(ctx, "failed to load .env", zap.Error(envErr))
		return exitConfigError
	}
	if cfgErr != nil {
		logger.Error(ctx, "invalid configuration", zap.Error(cfgErr))
		return exitConfigError
	}

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cfg.AppName + "-notifier",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		Insecure:     true,
	})
	if err != nil {
		logger.Debug(ctx, "telemetry disabled", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Debug(ctx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	httpClient := newHTTPClient(logger, reg)
	defer httpClient.Close()

	n := notifier.New(notifier.Config{
		EndpointURL: cfg.EndpointURL,
		Message:     cfg.Message,
		UserID:      cfg.UserID,
	}, notifier.WithPoster(httpClient), notifier.WithLogger(logger))
	n.Run(ctx)

	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, reg); err != nil {
			logger.Debug(ctx, "failed to write metrics textfile", zap.Error(err))
		}
	}
	return exitOK
}

// newHTTPClient builds a client with no timeout and a single attempt per call.
func newHTTPClient(logger *logs.Logger, reg prometheus.Registerer) *client.Client {
	return client.NewClient(
		client.WithMiddleware(client.RequestIDMiddleware()),
		client.WithMiddleware(client.TracingMiddleware(client.DefaultTracingConfig())),
		client.WithMiddleware(client.MetricsMiddleware(&client.MetricsConfig{
			Namespace:  "notifier",
			Subsystem:  "http",
			Registerer: reg,
		})),
		client.WithHooks(&client.HooksConfig{
			PreRequest: func(ctx context.Context, req *client.RequestInfo) {
				logger.Debug(ctx, "request", zap.String("method", req.Method), zap.String("url", req.URL))
			},
			PostRequest: func(ctx context.Context, req *client.RequestInfo, status int) {
				logger.Debug(ctx, "response", zap.String("url", req.URL), zap.Int("status", status))
			},
			OnError: func(ctx context.Context, req *client.RequestInfo, err *client.Error) {
				logger.Debug(ctx, "request failed", zap.String("url", req.URL), zap.String("kind", err.Kind.String()))
			},
		}),
	)
}
