package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fsandov/botpress-simulator/pkg/logs"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/penglongli/gin-metrics/ginmetrics"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	RequestIDHeader      = "X-Request-ID"
	DefaultAllowedOrigin = "https://studio.botpress.cloud"
)

type ctxKeyRequestID struct{}

func (app *GinApp) setupMiddleware() {
	app.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	app.engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	if app.ginConfig.EnableRequestID {
		app.engine.Use(RequestIDMiddleware())
	}

	if app.ginConfig.EnableRecovery {
		app.engine.Use(gin.Recovery())
	}

	if app.ginConfig.EnableTracing {
		app.engine.Use(otelgin.Middleware(app.ginConfig.AppName))
	}

	if app.ginConfig.EnableAccessLog {
		app.engine.Use(AccessLogMiddleware(app.logger))
	}

	if app.ginConfig.CORSPrefix != "" {
		app.engine.Use(CORSMiddleware(app.ginConfig.CORSPrefix, app.ginConfig.AllowedOrigins))
	}

	if app.ginConfig.EnableCompression {
		app.engine.Use(gzip.Gzip(gzip.DefaultCompression))
	}

	if app.ginConfig.EnableMetrics {
		m := ginmetrics.GetMonitor()
		m.SetMetricPath("/metrics")
		m.SetSlowTime(10)
		m.SetDuration([]float64{0.1, 0.3, 1.2, 5, 10})
		m.Use(app.engine)
	}

	app.engine.Use(SecureHeadersMiddleware())
}

// RequestIDMiddleware echoes or generates X-Request-ID and stores it on both
// the gin and the request context.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKeyRequestID{}, requestID))
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Next()
	}
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}

// CORSMiddleware applies CORS to paths under prefix only. Preflight requests
// are answered before routing.
func CORSMiddleware(prefix string, origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = []string{DefaultAllowedOrigin}
	}
	handler := cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodPost, http.MethodOptions, http.MethodGet},
		AllowHeaders:  []string{"Content-Type", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	})
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, prefix) {
			c.Next()
			return
		}
		handler(c)
	}
}

func SecureHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("X-Xss-Protection", "1; mode=block")
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		c.Next()
	}
}

func AccessLogMiddleware(logger *logs.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if id := c.GetString("request_id"); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error(c.Request.Context(), "request failed", fields)
			return
		}
		logger.Debug(c.Request.Context(), "request served", fields)
	}
}
