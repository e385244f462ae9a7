package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

func (app *GinApp) setupRoutes() {
	app.engine.GET("/health", app.health)

	if app.ginConfig.EnablePprof {
		pprof.RouteRegister(&app.engine.RouterGroup, "/debug/pprof")
	}
}

func (app *GinApp) health(c *gin.Context) {
	if len(app.checks) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(app.checks))
	for _, hc := range app.checks {
		if err := hc.check(ctx); err != nil {
			app.logger.Warn(ctx, "health check failed", zap.String("check", hc.name), zap.Error(err))
			results[hc.name] = err.Error()
			status, code = "unavailable", http.StatusServiceUnavailable
			continue
		}
		results[hc.name] = "ok"
	}
	c.JSON(code, gin.H{"status": status, "checks": results})
}
