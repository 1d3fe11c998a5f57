package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todo-tracker/backend/internal/cache"
	"todo-tracker/backend/internal/config"
	"todo-tracker/backend/internal/monitoring"
	"todo-tracker/backend/internal/repositories"
	"todo-tracker/backend/internal/router"
	"todo-tracker/backend/internal/services"
	"todo-tracker/backend/internal/worker"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if cfg.Auth.JWTSecret == config.InsecureDefaultSecret {
		logger.Warn("running with the insecure default JWT secret; set JWT_SECRET")
	}

	db, err := repositories.Connect(cfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer redisClient.Close()

	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := services.NewAuthService(cfg.Auth.BCryptCost)

	var todoService services.TodoService = services.NewTodoService()
	if cfg.Cache.Enabled {
		queryCache := cache.NewRedisCacheFromClient(redisClient)
		todoService = services.NewCachedTodoService(todoService, queryCache, cfg.Cache.TTL, logger)
		logger.Info("todo query cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
	}

	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	jobWorker := worker.NewWorker(worker.Config{
		RedisClient:  redisClient,
		Logger:       logger,
		PollInterval: cfg.Worker.PollInterval,
		Queues:       cfg.Worker.Queues,
	})
	jobWorker.RegisterHandler(worker.JobTypeDueReminder, worker.DueReminderHandler(logger))
	jobWorker.Start(cfg.Worker.Concurrency)
	defer jobWorker.Stop()

	scanCtx, cancelScan := context.WithCancel(context.Background())
	defer cancelScan()
	scanner := worker.NewReminderScanner(db, redisClient, services.NewTodoService(), jobWorker, logger,
		cfg.Worker.ScanInterval, cfg.Worker.DueLookahead)
	scanner.Start(scanCtx)

	engine := router.New(router.Deps{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		AuthService: authService,
		TodoService: todoService,
		Tokens:      tokens,
	})

	server := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
