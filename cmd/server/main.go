package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"saladas-service/config"
	"saladas-service/internal/api"
	"saladas-service/internal/auth"
	"saladas-service/internal/broker"
	"saladas-service/internal/redisclient"
	"saladas-service/internal/service"
	"saladas-service/internal/store"
	"saladas-service/internal/util"
	"saladas-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting saladas service", zap.String("loss_policy", string(cfg.Business.LossPolicy)))

	tp, err := util.InitTracer("saladas-service", cfg.Server.Env, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))

	eventPublisher := service.NewInvalidatingPublisher(broker.NewEventPublisher(producer), redisClient)
	loc := cfg.Business.Location

	authService := service.NewAuthService(
		db,
		auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		auth.NewBcryptHasher(),
		redisClient,
	)
	orderService := service.NewOrderService(db, db, eventPublisher, redisClient, loc)
	fulfillmentService := service.NewFulfillmentService(db, eventPublisher, redisClient, loc)
	lossService := service.NewLossService(db, db, eventPublisher, cfg.Business.LossPolicy, loc)
	reportService := service.NewReportService(db, db, redisClient,
		cfg.Business.ReportCacheTTL, cfg.Business.ExportDetailCap, loc)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	auditWorker := worker.NewAuditWorker(
		broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.AuditGroup), db)
	go func() {
		if err := auditWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Audit worker error", zap.Error(err))
		}
	}()

	cacheWorker := worker.NewCacheWorker(
		broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.CacheGroup), redisClient)
	go func() {
		if err := cacheWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Cache worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Auth:        authService,
		Catalog:     db,
		Orders:      orderService,
		Fulfillment: fulfillmentService,
		Losses:      lossService,
		Reports:     reportService,
		Ready: map[string]api.Pinger{
			"postgres": db,
			"redis":    redisClient,
		},
	}, cfg.Server.RequestTimeout)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := auditWorker.Stop(); err != nil {
		logger.Error("Error stopping audit worker", zap.Error(err))
	}
	if err := cacheWorker.Stop(); err != nil {
		logger.Error("Error stopping cache worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
