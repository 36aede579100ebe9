package main

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/placesfinder/placesfinder/internal/config"
	"github.com/placesfinder/placesfinder/internal/middleware"
	"github.com/placesfinder/placesfinder/internal/monitoring"
	"github.com/placesfinder/placesfinder/internal/webhandler"
)

type routerDeps struct {
	cfg     config.Config
	handler *webhandler.Handler
	metrics *monitoring.MetricsCollector
	health  *monitoring.HealthChecker
}

type router struct {
	engine  *gin.Engine
	limiter *middleware.RateLimitMiddleware
}

// newRouter assembles the middleware chain, the monitoring routes and the web handler
func newRouter(deps routerDeps) (*router, error) {
	if deps.cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	otelMiddleware, err := monitoring.NewOTelMiddleware()
	if err != nil {
		return nil, err
	}
	monitor := monitoring.NewMonitoringMiddleware(nil, deps.metrics, deps.health)

	engine := gin.New()
	engine.Use(
		otelgin.Middleware(deps.cfg.Telemetry.ServiceName),
		middleware.LoggingMiddleware(nil),
		middleware.ErrorHandler(),
		monitor.GinMiddleware(),
		otelMiddleware.GinMiddleware(),
	)

	monitor.RegisterRoutes(engine)

	limiter := middleware.NewRateLimitMiddleware(deps.cfg.RateLimit.Burst, deps.cfg.RateLimit.Refill)
	deps.handler.SetSearchLimiter(limiter.Middleware())
	deps.handler.RegisterRoutes(engine)

	return &router{engine: engine, limiter: limiter}, nil
}
