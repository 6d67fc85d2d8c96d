package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory/internal/config"
	"inventory/internal/database"
	"inventory/internal/repositories"
	"inventory/internal/server"
	"inventory/internal/services"
	"inventory/pkg/logger"
	"inventory/pkg/media"
	"inventory/pkg/rabbitmq"
	"inventory/pkg/tokenstore"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(logger.Environment(cfg.AppEnv), cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx := context.Background()

	// --- Storage ---
	// A database that cannot be reached at startup is fatal.
	userRepo, productRepo, db, err := openRepositories(cfg, zlog)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if err := database.Close(db); err != nil {
				zlog.Warn("failed to close database", zap.Error(err))
			}
		}()
	}

	// --- Media host ---
	uploader, err := newUploader(cfg.Media)
	if err != nil {
		return err
	}

	// --- Optional RabbitMQ event stream ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, zlog.Named("rabbitmq"))
		if err != nil {
			return err
		}
		defer mqClient.Close()
		publisher = mqClient
		startAuditConsumer(mqClient, zlog.Named("audit"))
	}

	// --- Optional logout denylist ---
	var authOpts []services.AuthOption
	if cfg.Redis.Enabled() {
		denylist, err := tokenstore.NewRedisDenylist(ctx, tokenstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer denylist.Close()
		authOpts = append(authOpts, services.WithDenylist(denylist))
		zlog.Info("logout denylist enabled", zap.String("addr", cfg.Redis.Addr))
	}

	// --- Initialize Services ---
	authService := services.NewAuthService(userRepo, cfg.Auth, zlog, authOpts...)
	productService := services.NewProductService(productRepo, uploader, cfg.Media.Folder, publisher, zlog)

	var health server.HealthCheck
	if db != nil {
		health = func(ctx context.Context) error { return database.Ping(ctx, db) }
	}

	app := server.New(server.Deps{
		Config:         cfg,
		Log:            zlog,
		AuthService:    authService,
		ProductService: productService,
		Health:         health,
	})

	// --- Start HTTP Server ---
	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("starting server", zap.String("addr", cfg.AppPort), zap.String("env", cfg.AppEnv))
		serverErr <- app.Listen(cfg.AppPort)
	}()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		zlog.Info("shutting down server", zap.String("signal", sig.String()))
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
	zlog.Info("server gracefully stopped")
	return nil
}

func openRepositories(cfg *config.Config, zlog *zap.Logger) (repositories.UserRepository, repositories.ProductRepository, *gorm.DB, error) {
	if cfg.DatabaseDriver == config.DriverMemory {
		zlog.Warn("using in-memory storage, data is lost on restart")
		return repositories.NewMemoryUserRepository(), repositories.NewMemoryProductRepository(), nil, nil
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, zlog)
	if err != nil {
		return nil, nil, nil, err
	}
	return repositories.NewGORMUserRepository(db), repositories.NewGORMProductRepository(db), db, nil
}

func newUploader(cfg config.MediaConfig) (media.Uploader, error) {
	switch cfg.Driver {
	case config.MediaCloudinary:
		return media.NewCloudinaryUploader(media.CloudinaryConfig{
			CloudName: cfg.CloudName,
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			Timeout:   cfg.Timeout,
		}), nil
	case config.MediaLocal:
		return media.NewLocalUploader(cfg.UploadDir, "/uploads")
	default:
		return nil, errors.New("unsupported media driver " + cfg.Driver)
	}
}

// startAuditConsumer logs every product event delivered to the audit queue.
func startAuditConsumer(mqClient *rabbitmq.Client, zlog *zap.Logger) {
	handler := func(msg amqp.Delivery) error {
		zlog.Info("product event",
			zap.String("routing_key", msg.RoutingKey),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.ByteString("body", msg.Body),
		)
		return nil
	}
	if err := mqClient.Consume(handler); err != nil {
		zlog.Error("failed to start event consumer", zap.Error(err))
	}
}
