// Package api wires the HTTP routes for the console.
//
// Route grouping:
//   - /health and the telemetry side server are unauthenticated probes.
//   - Everything under /api/v1 requires a Bearer JWT; registry mutations, user
//     management, and the audit trail additionally require the admin flag.
//     Cluster listing and the proxied cluster routes are open to any
//     authenticated user, scoped to their cluster assignments.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/rabbit-console/rabbit-console/internal/api/admin"
	"github.com/rabbit-console/rabbit-console/internal/api/broker"
	"github.com/rabbit-console/rabbit-console/internal/audit"
	"github.com/rabbit-console/rabbit-console/internal/cluster"
	"github.com/rabbit-console/rabbit-console/internal/config"
	"github.com/rabbit-console/rabbit-console/internal/crypto"
	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
	"github.com/rabbit-console/rabbit-console/internal/jobs"
	"github.com/rabbit-console/rabbit-console/internal/middleware"
	"github.com/rabbit-console/rabbit-console/internal/rabbit"
)

// BackgroundServices holds the background loops and resources the server must
// stop during graceful shutdown, after the HTTP listener has drained.
type BackgroundServices struct {
	auditWriter  *audit.Writer
	retentionJob *jobs.AuditRetentionJob
	rateLimiter  *middleware.RateLimiter
}

// Shutdown stops all background goroutines. The audit writer is stopped last
// so records produced by draining requests are still flushed.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.retentionJob != nil {
		bg.retentionJob.Stop()
	}
	if bg.rateLimiter != nil {
		bg.rateLimiter.Stop()
	}
	if bg.auditWriter != nil {
		bg.auditWriter.Close()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates the Gin router and starts the background services.
func NewRouter(cfg *config.Config, db *sql.DB, cipher *crypto.CredentialCipher) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Vhost names arrive percent-encoded in path segments ("%2F" for the
	// default vhost). Raw-path routing keeps an encoded slash inside one
	// segment instead of splitting the route on it.
	router.UseRawPath = true
	router.UnescapePathValues = true

	clusterRepo := repositories.NewClusterRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// The user repository rides on sqlx for struct scanning.
	userRepo := repositories.NewUserRepository(sqlx.NewDb(db, "postgres"))

	resolver := cluster.NewResolver(clusterRepo, cipher)
	gateway := rabbit.NewGateway(cfg.Upstream.Timeout)
	aggregator := rabbit.NewAggregator(gateway)

	writer := audit.NewWriter(auditRepo, &cfg.Audit)
	writer.Start()
	recorder := audit.NewRecorder(writer)

	// The retention sweep only runs when auditing is on; a disabled trail has
	// nothing to expire.
	var retentionJob *jobs.AuditRetentionJob
	if cfg.Audit.Enabled {
		retentionJob = jobs.NewAuditRetentionJob(auditRepo, &cfg.Audit, 24*time.Hour)
		retentionJob.Start()
	}

	rlCfg := middleware.DefaultRateLimitConfig()
	if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
		rlCfg.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
	}
	if cfg.Security.RateLimiting.Burst > 0 {
		rlCfg.BurstSize = cfg.Security.RateLimiting.Burst
	}
	rateLimiter := middleware.NewRateLimiter(rlCfg)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(LoggerMiddleware())
	router.Use(middleware.SecurityHeaders(middleware.APISecurityHeadersConfig()))
	router.Use(CORSMiddleware(cfg))
	if cfg.Security.RateLimiting.Enabled {
		router.Use(middleware.RateLimit(rateLimiter))
	}

	router.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	clusterHandlers := admin.NewClusterHandlers(clusterRepo, userRepo, cipher)
	userHandlers := admin.NewUserHandlers(userRepo)
	auditHandlers := admin.NewAuditHandlers(auditRepo, &cfg.Audit)
	brokerHandlers := broker.NewHandlers(resolver, aggregator, recorder, clusterRepo)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.Security.JWTSecret))

	// Listing is open to any authenticated user; the handler scopes the
	// result to the caller's assignments unless they are an admin.
	v1.GET("/clusters", clusterHandlers.ListClustersHandler())

	registry := v1.Group("/clusters", middleware.AdminRequired())
	{
		registry.POST("", clusterHandlers.CreateClusterHandler())
		registry.GET("/:id", clusterHandlers.GetClusterHandler())
		registry.PUT("/:id", clusterHandlers.UpdateClusterHandler())
		registry.DELETE("/:id", clusterHandlers.DeleteClusterHandler())
		registry.POST("/:id/active", clusterHandlers.SetClusterActiveHandler())
		registry.POST("/:id/users", clusterHandlers.AssignUsersHandler())
	}

	users := v1.Group("/users", middleware.AdminRequired())
	{
		users.GET("", userHandlers.ListUsersHandler())
		users.POST("", userHandlers.CreateUserHandler())
	}

	proxied := v1.Group("/clusters/:id")
	{
		proxied.GET("/check", brokerHandlers.CheckHandler())
		proxied.GET("/overview", brokerHandlers.GetOverviewHandler())
		proxied.GET("/vhosts", brokerHandlers.ListVHostsHandler())
		proxied.GET("/connections", brokerHandlers.ListConnectionsHandler())
		proxied.GET("/channels", brokerHandlers.ListChannelsHandler())
		proxied.GET("/exchanges", brokerHandlers.ListExchangesHandler())
		proxied.GET("/queues", brokerHandlers.ListQueuesHandler())

		proxied.GET("/exchanges/:vhost/:name/bindings/:role", brokerHandlers.ListExchangeBindingsHandler())
		proxied.PUT("/exchanges/:vhost/:name", brokerHandlers.CreateExchangeHandler())
		proxied.DELETE("/exchanges/:vhost/:name", brokerHandlers.DeleteExchangeHandler())
		proxied.POST("/exchanges/:vhost/:name/bindings", brokerHandlers.CreateBindingHandler())
		proxied.POST("/exchanges/:vhost/:name/publish", brokerHandlers.PublishHandler())

		proxied.GET("/queues/:vhost/:name/bindings", brokerHandlers.ListQueueBindingsHandler())
		proxied.PUT("/queues/:vhost/:name", brokerHandlers.CreateQueueHandler())
		proxied.DELETE("/queues/:vhost/:name", brokerHandlers.DeleteQueueHandler())
		proxied.POST("/queues/:vhost/:name/purge", brokerHandlers.PurgeQueueHandler())
		proxied.POST("/queues/:vhost/:name/publish", brokerHandlers.PublishToQueueHandler())
		proxied.POST("/queues/:vhost/:name/get", brokerHandlers.GetMessagesHandler())

		proxied.PUT("/parameters/shovel/:vhost/:name", brokerHandlers.CreateShovelHandler())
	}

	auditGroup := v1.Group("/audit", middleware.AdminRequired())
	{
		auditGroup.GET("", auditHandlers.ListAuditRecordsHandler())
		auditGroup.GET("/config", auditHandlers.GetAuditConfigHandler())
		auditGroup.GET("/:id", auditHandlers.GetAuditRecordHandler())
		auditGroup.PUT("/:id", auditHandlers.RejectMutationHandler())
		auditGroup.DELETE("/:id", auditHandlers.RejectMutationHandler())
	}

	return router, &BackgroundServices{
		auditWriter:  writer,
		retentionJob: retentionJob,
		rateLimiter:  rateLimiter,
	}
}

// LoggerMiddleware writes one structured log line per request.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
			slog.Any("request_id", requestID),
		)
	}
}

// CORSMiddleware handles cross-origin requests from the console frontend.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
