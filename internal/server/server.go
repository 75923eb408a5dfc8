package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/newsgate/newsgate/internal/config"
	"github.com/newsgate/newsgate/internal/service"
	"github.com/newsgate/newsgate/internal/service/publisher/instagram"
	"github.com/newsgate/newsgate/internal/service/publisher/push"
	"github.com/newsgate/newsgate/internal/service/publisher/twitter"
	"github.com/newsgate/newsgate/internal/service/publisher/web"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Auth         *service.AuthService
	PolicyStore  *service.PolicyStore
	Scheduler    *service.PublishScheduler
	Emergency    *service.EmergencyClassifier
	Jobs         *service.PublishJobService
	Orchestrator *service.PublisherOrchestrator
	Worker       *service.PublishJobWorker
	Maintenance  *service.MaintenanceService
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	monitoring := service.NewMonitoringService(db, logger)
	policyStore := service.NewPolicyStore(db, logger)
	scheduler := service.NewPublishScheduler(policyStore, logger)
	emergency := service.NewEmergencyClassifier(db, policyStore, logger)
	jobs := service.NewPublishJobService(db, logger)

	orchestrator := service.NewPublisherOrchestrator(db, logger, monitoring)
	if err := registerPublishers(orchestrator, cfg, logger); err != nil {
		return nil, err
	}
	if cfg.Channels.Media.Enabled {
		orchestrator.SetMediaHook(service.NewHTTPMediaGenerator(&cfg.Channels.Media, logger))
	}

	worker, err := service.NewPublishJobWorker(&cfg.Worker, db, orchestrator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create publish job worker: %w", err)
	}

	maintenance := service.NewMaintenanceService(&cfg.Maintenance, monitoring, logger)

	// Create router
	router := gin.New()

	srv := &Server{
		Config:       cfg,
		DB:           db,
		Router:       router,
		Logger:       logger,
		Auth:         service.NewAuthService(logger, cfg.Auth.TOTPSecret),
		PolicyStore:  policyStore,
		Scheduler:    scheduler,
		Emergency:    emergency,
		Jobs:         jobs,
		Orchestrator: orchestrator,
		Worker:       worker,
		Maintenance:  maintenance,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

// registerPublishers wires the enabled channels in the fixed fan-out order:
// web first (lowest risk), then push, then the external networks.
func registerPublishers(orchestrator *service.PublisherOrchestrator, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Channels.Web.Enabled {
		if err := orchestrator.RegisterPublisher(web.NewWebPublisher(&cfg.Channels.Web, logger)); err != nil {
			return err
		}
	}
	if cfg.Channels.Push.Enabled {
		if err := orchestrator.RegisterPublisher(push.NewPushPublisher(&cfg.Channels.Push, logger)); err != nil {
			return err
		}
	}
	if cfg.Channels.Twitter.Enabled {
		if err := orchestrator.RegisterPublisher(twitter.NewTwitterPublisher(&cfg.Channels.Twitter, logger)); err != nil {
			return err
		}
	}
	if cfg.Channels.Instagram.Enabled {
		if err := orchestrator.RegisterPublisher(instagram.NewInstagramPublisher(&cfg.Channels.Instagram, logger)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	api := s.Router.Group("/api/v1")
	{
		api.POST("/auth/login", s.handleLogin)

		// Enqueue API consumed by the editorial workflow
		jobs := api.Group("/jobs")
		{
			jobs.POST("/enqueue", s.handleEnqueue)
			jobs.GET("", s.handleListJobs)
			jobs.GET("/:id", s.handleGetJob)
			jobs.POST("/:id/cancel", s.handleCancelJob)
		}

		content := api.Group("/content")
		{
			content.GET("/:id/logs", s.handleListLogs)
			content.POST("/:id/cancel-jobs", s.handleCancelContentJobs)
		}

		emergency := api.Group("/emergency")
		{
			emergency.POST("/detect/:id", s.handleDetectEmergency)
			emergency.GET("/queue", s.handleEmergencyQueue)
			emergency.POST("/queue/:id/cancel", s.handleCancelEmergency)
		}

		// Policy administration
		admin := api.Group("/policy", s.Auth.AuthMiddleware())
		{
			admin.GET("", s.handleGetPolicy)
			admin.PUT("", s.handleUpdatePolicy)
			admin.GET("/emergency-rules", s.handleGetEmergencyRules)
			admin.PUT("/emergency-rules", s.handleUpdateEmergencyRules)
			admin.GET("/stats", s.handleAllDailyStats)
			admin.GET("/stats/:platform", s.handleDailyStats)
		}

		api.GET("/schedule/preview", s.Auth.AuthMiddleware(), s.handleSchedulePreview)
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Start background services first
	if s.Config.Worker.Enabled {
		s.Worker.Start(ctx)
	}
	if err := s.Maintenance.Start(); err != nil {
		return fmt.Errorf("failed to start maintenance service: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop background work first
	if s.Config.Worker.Enabled {
		s.Worker.Stop()
	}
	s.Maintenance.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
