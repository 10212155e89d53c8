package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/transdock/transdock/internal/config"
	"github.com/transdock/transdock/internal/eventbus"
	"github.com/transdock/transdock/internal/migration"
	"github.com/transdock/transdock/internal/observability"
	"github.com/transdock/transdock/internal/tokenblacklist"
	"github.com/transdock/transdock/internal/zfs"
	"go.uber.org/zap"
)

// Server is the HTTP/WebSocket surface over the migration orchestrator
// and the ZFS resource services.
type Server struct {
	config       *config.Config
	logger       *observability.Logger
	health       *observability.HealthChecker
	orchestrator *migration.Orchestrator
	datasets     *zfs.DatasetService
	snapshots    *zfs.SnapshotService
	pools        *zfs.PoolService
	events       *eventbus.Broadcaster
	blacklist    *tokenblacklist.Blacklist
	router       *gin.Engine

	// AuthMiddleware runs before the /api group when non-nil. TransDock
	// ships a no-op default so the core is testable without standing up
	// real auth (auth is an out-of-scope collaborator).
	AuthMiddleware gin.HandlerFunc
}

// NewServer wires the HTTP surface over its collaborators.
func NewServer(
	cfg *config.Config,
	logger *observability.Logger,
	healthChecker *observability.HealthChecker,
	orchestrator *migration.Orchestrator,
	datasets *zfs.DatasetService,
	snapshots *zfs.SnapshotService,
	pools *zfs.PoolService,
	events *eventbus.Broadcaster,
	blacklist *tokenblacklist.Blacklist,
) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:         cfg,
		logger:         logger,
		health:         healthChecker,
		orchestrator:   orchestrator,
		datasets:       datasets,
		snapshots:      snapshots,
		pools:          pools,
		events:         events,
		blacklist:      blacklist,
		AuthMiddleware: noopAuthMiddleware,
	}

	s.setupRouter()
	return s
}

func noopAuthMiddleware(c *gin.Context) { c.Next() }

func (s *Server) setupRouter() {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.loggingMiddleware())
	r.Use(s.corsMiddleware())

	r.GET("/health", s.health.HealthHandler())
	r.GET("/ready", s.health.ReadyHandler())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if s.AuthMiddleware != nil {
		api.Use(s.AuthMiddleware)
	}
	{
		migrations := api.Group("/migrations")
		{
			migrations.POST("", s.CreateMigration)
			migrations.GET("", s.ListMigrations)
			migrations.POST("/validate", s.ValidateMigration)
			migrations.GET("/:id", s.GetMigration)
			migrations.GET("/:id/status", s.GetMigrationStatus)
			migrations.POST("/:id/start", s.StartMigration)
			migrations.POST("/:id/cancel", s.CancelMigration)
			migrations.DELETE("/:id", s.DeleteMigration)
		}

		v1 := api.Group("/v1")
		{
			v1.GET("/datasets", s.ListDatasets)
			v1.GET("/datasets/:name", s.GetDataset)
			v1.POST("/datasets", s.CreateDataset)
			v1.DELETE("/datasets/:name", s.DestroyDataset)

			v1.GET("/snapshots", s.ListSnapshots)
			v1.POST("/snapshots", s.CreateSnapshot)
			v1.DELETE("/snapshots/:dataset/:name", s.DestroySnapshot)

			v1.GET("/pools", s.ListPools)
			v1.GET("/pools/:name", s.GetPool)
			v1.GET("/pools/:name/status", s.GetPoolStatus)
		}
	}

	r.GET("/ws/monitor", s.HandleWebSocket)

	s.router = r
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/ready" {
			c.Next()
			return
		}
		c.Next()
		s.logger.InfoRedacted("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := strings.Join(s.config.CORSOrigins, ",")
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Start begins serving HTTP.
func (s *Server) Start() error {
	s.events.Start()
	s.logger.Info("starting HTTP server", zap.String("addr", s.config.Addr()))
	return s.router.Run(s.config.Addr())
}

// Stop gracefully stops the server's background collaborators.
func (s *Server) Stop() error {
	s.logger.Info("stopping HTTP server")
	s.events.Stop()
	return nil
}

// GetRouter returns the gin engine for tests.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
