package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/voltmart/storefront-api/internal/config"
	"github.com/voltmart/storefront-api/internal/handler"
	"github.com/voltmart/storefront-api/internal/metrics"
	"github.com/voltmart/storefront-api/internal/middleware"
	"github.com/voltmart/storefront-api/internal/repository"
	"github.com/voltmart/storefront-api/internal/seed"
	"github.com/voltmart/storefront-api/internal/service"
	"github.com/voltmart/storefront-api/internal/store"
	"github.com/voltmart/storefront-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document store
	fileStore, err := store.NewFileStore(cfg.Store.DataDir)
	if err != nil {
		log.Error("open data dir", "error", err)
		os.Exit(1)
	}
	sections := store.NewSections(cfg.Store.LockTimeout)
	log.Info("document store ready", "dir", cfg.Store.DataDir)

	// Redis (optional)
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("connect to Redis", "error", err)
			os.Exit(1)
		}
		log.Info("connected to Redis")
	}

	// RabbitMQ (optional)
	var (
		amqpConn *amqp.Connection
		amqpCh   *amqp.Channel
	)
	if cfg.RabbitMQ.Enabled() {
		amqpConn, err = amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			log.Error("connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer amqpConn.Close()

		amqpCh, err = amqpConn.Channel()
		if err != nil {
			log.Error("open RabbitMQ channel", "error", err)
			os.Exit(1)
		}
		defer amqpCh.Close()

		if err := worker.SetupRabbitMQ(amqpCh); err != nil {
			log.Error("setup RabbitMQ", "error", err)
			os.Exit(1)
		}
		log.Info("connected to RabbitMQ")
	}

	// Repositories
	userRepo := repository.NewUserRepository(fileStore)
	productRepo := repository.NewProductRepository(fileStore)
	cartRepo := repository.NewCartRepository(fileStore)
	orderRepo := repository.NewOrderRepository(fileStore)

	// First-run data
	if cfg.Store.Seed {
		if err := seed.Run(ctx, fileStore, sections, log); err != nil {
			log.Error("seed data", "error", err)
			os.Exit(1)
		}
	}

	// Services
	authSvc := service.NewAuthService(userRepo, sections, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(productRepo, sections, redisClient)
	cartSvc := service.NewCartService(cartRepo, productRepo, sections)
	orderSvc := service.NewOrderService(orderRepo, cartRepo, productRepo, userRepo, sections, amqpCh, log)
	userSvc := service.NewUserService(userRepo, orderRepo, productRepo)

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	productH := handler.NewProductHandler(productSvc)
	cartH := handler.NewCartHandler(cartSvc, productSvc)
	orderH := handler.NewOrderHandler(orderSvc)
	userH := handler.NewUserHandler(userSvc)
	healthH := handler.NewHealthHandler(fileStore, redisClient, amqpConn)

	// Worker
	var fulfillment *worker.FulfillmentWorker
	if amqpCh != nil {
		fulfillment = worker.NewFulfillmentWorker(amqpCh, orderRepo, sections, redisClient, log)
		if err := fulfillment.Start(ctx); err != nil {
			log.Error("start fulfillment worker", "error", err)
			os.Exit(1)
		}
	}

	// Router
	router := gin.Default()
	router.Use(metrics.Middleware())
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)

		products := api.Group("/products")
		products.GET("", productH.List)
		products.GET("/:id", productH.GetByID)

		admin := products.Group("", middleware.AuthMiddleware(cfg.JWT.Secret), middleware.AdminOnly())
		admin.POST("", productH.Create)
		admin.PUT("/:id", productH.Update)
		admin.DELETE("/:id", productH.Delete)

		cart := api.Group("/cart", middleware.AuthMiddleware(cfg.JWT.Secret))
		cart.GET("", cartH.GetCart)
		cart.POST("", cartH.AddItem)
		cart.PUT("/:itemId", cartH.UpdateItem)
		cart.DELETE("/:itemId", cartH.RemoveItem)
		cart.DELETE("", cartH.ClearCart)

		orders := api.Group("/orders", middleware.AuthMiddleware(cfg.JWT.Secret))
		orders.POST("", orderH.PlaceOrder)
		orders.GET("", orderH.ListOrders)
		orders.GET("/:id", orderH.GetOrder)
		orders.PUT("/:id/status", middleware.AdminOnly(), orderH.UpdateStatus)

		users := api.Group("/users", middleware.AuthMiddleware(cfg.JWT.Secret), middleware.AdminOnly())
		users.GET("", userH.List)
		users.GET("/stats", userH.Stats)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	if fulfillment != nil {
		fulfillment.Stop()
		time.Sleep(500 * time.Millisecond)
	}
	cancel()
	log.Info("server stopped")
}
