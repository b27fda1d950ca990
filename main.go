package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"recon-svc/cache"
	"recon-svc/database"
	"recon-svc/gateway"
	"recon-svc/handlers"
	"recon-svc/kafka"
	"recon-svc/middleware"
	"recon-svc/push"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis (distributed lock backing store)
	rdb, err := cache.InitRedis(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer rdb.Close()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("recon-service")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Wire the reconciliation core
	eventLog := database.NewEventLog(db, logger)
	orders := database.NewOrderTransactionStore(db, logger)
	locker := cache.NewRedisLocker(rdb, logger)
	publisher := kafka.NewPublisher(producer, logger)
	client := gateway.NewClient(logger)
	processor := push.NewProcessor(
		getEnv("GATEWAY_SECRET", ""),
		eventLog, orders, locker, publisher, logger,
	)

	pushHandler := handlers.NewPushHandler(processor, logger)
	orderHandler := handlers.NewOrderHandler(orders, logger)
	refundHandler := handlers.NewRefundHandler(eventLog, orders, client, processor, logger)
	captureHandler := handlers.NewCaptureHandler(orders, client, processor, locker, logger)
	transactionHandler := handlers.NewTransactionHandler(eventLog, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	// Gateway webhook and merchant APIs
	router.POST("/push", pushHandler.HandlePush)
	router.POST("/orders", orderHandler.CreateOrder)
	router.POST("/orders/:id/refund", refundHandler.Refund)
	router.POST("/orders/:id/capture", captureHandler.Capture)
	router.GET("/orders/:id/transactions", transactionHandler.ListTransactions)
	router.GET("/orders/:id/payments", transactionHandler.ListPaymentRecords)

	// Start REST server
	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8086"),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Reconciliation Service started", zap.String("addr", srv.Addr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	logger.Info("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
