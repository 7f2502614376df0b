package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/dbpool"
	"github.com/sysprohq/automation/internal/middleware"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log          *logrus.Logger
	Pool         *dbpool.Pool
	Rules        RuleService
	Audits       AuditService
	Queue        QueueService
	Reports      ReportService
	Dispatcher   EventDispatcher
	Processor    QueueProcessor
	TenantLookup middleware.TenantLookup
	CORSOrigins  []string
	Version      string
}

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers.
func registerRoutes(r *gin.Engine, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, log, deps.Version)
	rules := NewRuleHandler(deps.Rules, log)
	events := NewEventHandler(deps.Dispatcher, log)
	audits := NewAuditHandler(deps.Audits, log)
	summary := NewSummaryHandler(deps.Rules, deps.Queue, deps.Audits, log)
	queue := NewQueueHandler(deps.Processor, log)
	reports := NewReportHandler(deps.Reports, log)

	// Health and readiness are unauthenticated.
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)

	// All other routes require a tenant API key.
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(deps.TenantLookup, log))

	// Rules.
	api.GET("/rules", rules.List)
	api.POST("/rules", rules.Create)
	api.GET("/rules/:id", rules.Get)
	api.PATCH("/rules/:id", rules.Update)
	api.DELETE("/rules/:id", rules.Delete)
	api.POST("/rules/simulate", rules.Simulate)

	// Event ingestion.
	api.POST("/events", events.Ingest)

	// Evaluation trail and dashboard counts.
	api.GET("/audits", audits.List)
	api.GET("/summary", summary.Get)

	// Queue.
	api.POST("/queue/process", queue.Process)

	// Reports.
	api.POST("/reports/:id/run", reports.Run)
	api.GET("/reports/:id/run", reports.Run)
	api.GET("/reports/:id/jobs", reports.Jobs)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(r, deps)
	registerRoutes(r, deps)

	return r
}
