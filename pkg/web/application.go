package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fsandov/botpress-simulator/pkg/env"
	"github.com/fsandov/botpress-simulator/pkg/logs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GinApp struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logs.Logger
	ginConfig  GinConfig
	onShutdown []func(context.Context) error
	checks     []healthCheck
}

type healthCheck struct {
	name  string
	check func(context.Context) error
}

type GinConfig struct {
	AppName           string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	EnablePprof       bool
	EnableMetrics     bool
	EnableRequestID   bool
	EnableRecovery    bool
	EnableCompression bool
	EnableTracing     bool
	EnableAccessLog   bool
	// CORSPrefix limits CORS handling to paths under it. Empty disables CORS.
	CORSPrefix     string
	AllowedOrigins []string
}

func DefaultGinConfig() *GinConfig {
	cfg := &GinConfig{
		AppName:           "botpress-simulator",
		Port:              "5000",
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		EnableRequestID:   true,
		EnableRecovery:    true,
		EnableCompression: true,
		EnableAccessLog:   true,
		CORSPrefix:        "/api/",
		AllowedOrigins:    []string{DefaultAllowedOrigin},
	}
	if env.IsRemote() {
		cfg.EnableTracing = true
		return cfg
	}
	cfg.EnablePprof = true
	cfg.EnableMetrics = true
	return cfg
}

type Option func(*GinApp)

func WithLogger(l *logs.Logger) Option {
	return func(app *GinApp) { app.logger = l }
}

func New(config *GinConfig, opts ...Option) *GinApp {
	engine := gin.New()
	engine.ContextWithFallback = true

	if config == nil {
		config = DefaultGinConfig()
	}

	app := &GinApp{
		engine:    engine,
		ginConfig: *config,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = logs.GetLogger()
	}

	app.setupMiddleware()
	app.setupRoutes()
	return app
}

// OnShutdown registers fn to run after the HTTP server has drained, in
// registration order.
func (app *GinApp) OnShutdown(fn func(context.Context) error) {
	app.onShutdown = append(app.onShutdown, fn)
}

// AddHealthCheck makes /health report unavailable while check fails.
func (app *GinApp) AddHealthCheck(name string, check func(context.Context) error) {
	app.checks = append(app.checks, healthCheck{name: name, check: check})
}

// Run listens on the configured port until ctx is cancelled or SIGINT/SIGTERM
// arrives, then shuts down gracefully.
func (app *GinApp) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%s", app.ginConfig.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return app.Serve(ctx, ln)
}

func (app *GinApp) Serve(ctx context.Context, ln net.Listener) error {
	app.httpServer = &http.Server{
		Handler:        app.engine,
		ReadTimeout:    app.ginConfig.ReadTimeout,
		WriteTimeout:   app.ginConfig.WriteTimeout,
		IdleTimeout:    app.ginConfig.IdleTimeout,
		MaxHeaderBytes: app.ginConfig.MaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.startupLog(ln.Addr().String())

	serverErr := make(chan error, 1)
	go func() {
		if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		app.logger.Warn(context.Background(), "Shutting down server...",
			zap.String("app", app.ginConfig.AppName),
			zap.String("env", env.GetEnvironment()),
		)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ginConfig.ShutdownTimeout)
		defer cancel()

		if err := app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		app.logger.Info(context.Background(), "Server exited properly")
		return nil
	}
}

func (app *GinApp) Shutdown(ctx context.Context) error {
	var errs []error
	if app.httpServer != nil {
		if err := app.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, fn := range app.onShutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (app *GinApp) GetEngine() *gin.Engine {
	return app.engine
}

func (app *GinApp) Use(middleware gin.HandlerFunc) {
	app.engine.Use(middleware)
}

func (app *GinApp) Group(path string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return app.engine.Group(path, handlers...)
}

func (app *GinApp) startupLog(addr string) {
	app.logger.Info(context.Background(), "Server started",
		zap.String("app", app.ginConfig.AppName),
		zap.String("env", env.GetEnvironment()),
		zap.String("address", addr),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH),
		zap.String("go_version", runtime.Version()),
	)
}
