package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"dubber/internal/config"
	"dubber/internal/handler"
	dubbingHandler "dubber/internal/handler/dubbing"
	dubbingModel "dubber/internal/model/dubbing"
	"dubber/internal/pkg/cache"
	"dubber/internal/pkg/dubbing/providers"
	"dubber/internal/pkg/jwt"
	"dubber/internal/pkg/mongodb"
	"dubber/internal/pkg/storagefactory"
	dubbingRepo "dubber/internal/repository/dubbing"
	"dubber/internal/server/middleware"
	"dubber/internal/service"
)

// 关闭时等待执行中任务的最长时间
const shutdownGrace = 30 * time.Second

// Server HTTP 服务器
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	mongo      *mongodb.Client
	redis      *cache.RedisCache
	jwt        *jwt.JWT
	dubbingSvc service.DubbingService
}

// New 创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()

	// 初始化 MongoDB（任务记录，必需）
	if cfg.Mongo.URI == "" {
		return nil, errors.New("mongo.uri is required")
	}
	mongoClient, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mongodb.EnsureAllIndexes(ctx, mongoClient.Database(), &dubbingModel.Job{}); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	// 初始化 Redis（合成缓存，可选）
	var redisCache *cache.RedisCache
	var clipCache providers.ClipCache
	if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without synthesis cache")
		} else {
			redisCache = rc
			clipCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	// 初始化存储
	store, err := storagefactory.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		_ = mongoClient.Close(context.Background())
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	log.Info().Str("type", store.GetStorageType()).Msg("storage initialized")

	// 初始化配音流水线
	pipeline, err := providers.NewPipeline(cfg, clipCache)
	if err != nil {
		_ = mongoClient.Close(context.Background())
		return nil, err
	}

	presignExpiry := time.Duration(0)
	if cfg.Storage.OSS != nil && cfg.Storage.OSS.PresignExpiry > 0 {
		presignExpiry = time.Duration(cfg.Storage.OSS.PresignExpiry) * time.Second
	}
	dubbingSvc := service.NewDubbingService(
		dubbingRepo.NewRepo(mongoClient.Database()),
		store,
		pipeline.Dubber,
		service.DubbingServiceConfig{
			MaxConcurrent:     cfg.Dubbing.MaxConcurrent,
			JobTimeout:        cfg.Dubbing.JobTimeout,
			DownloadURLExpiry: presignExpiry,
		},
	)
	if err := dubbingSvc.RecoverUnfinished(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to recover unfinished dubbing jobs")
	}

	// JWT
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		log.Warn().Msg("JWT secret not configured, using default (NOT SECURE for production)")
	}
	accessTokenExpiry := cfg.Auth.AccessTokenExpiry
	if accessTokenExpiry == 0 {
		accessTokenExpiry = 24 * time.Hour
	}

	srv := &Server{
		cfg:        cfg,
		engine:     engine,
		mongo:      mongoClient,
		redis:      redisCache,
		jwt:        jwt.NewJWT(jwtSecret, cfg.Auth.Issuer, accessTokenExpiry),
		dubbingSvc: dubbingSvc,
	}

	// 设置路由
	srv.setupRoutes()

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	checks := []handler.DependencyCheck{{Name: "mongo", Ping: s.mongo.Ping}}
	if s.redis != nil {
		checks = append(checks, handler.DependencyCheck{Name: "redis", Ping: s.redis.Ping})
	}
	healthHandler := handler.NewHealthHandler(checks...)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		dubbingHdl := dubbingHandler.NewHandler(s.dubbingSvc, int64(s.cfg.Dubbing.MaxSheetBytes))

		jobs := v1.Group("/dubbing/jobs")
		jobs.Use(middleware.Auth(s.jwt))
		{
			jobs.POST("", dubbingHdl.CreateJob)
			jobs.GET("", dubbingHdl.ListJobs)
			jobs.GET("/:job_id", dubbingHdl.GetJob)
			jobs.GET("/:job_id/download", dubbingHdl.Download)
			jobs.DELETE("/:job_id", dubbingHdl.DeleteJob)
		}
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down HTTP server")
	}
	if err := s.dubbingSvc.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("dubbing jobs cancelled before completion")
	}

	// 关闭连接
	if err := s.mongo.Close(context.Background()); err != nil {
		log.Error().Err(err).Msg("failed to close MongoDB connection")
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis connection")
		}
	}

	return runErr
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
