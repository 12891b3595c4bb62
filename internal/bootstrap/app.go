package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"webinfinitygen/internal/ai"
	"webinfinitygen/internal/app"
	"webinfinitygen/internal/blob"
	"webinfinitygen/internal/config"
	"webinfinitygen/internal/events"
	"webinfinitygen/internal/model"
	minioClient "webinfinitygen/internal/platform/minio"
	mysqlClient "webinfinitygen/internal/platform/mysql"
	rabbitmqClient "webinfinitygen/internal/platform/rabbitmq"
	redisClient "webinfinitygen/internal/platform/redis"
	sqliteClient "webinfinitygen/internal/platform/sqlite"
	"webinfinitygen/internal/ratelimit"
	"webinfinitygen/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	MinIO  *minio.Client

	Blobs       *blob.Store
	Hub         *events.Hub
	Publisher   app.EventPublisher
	Invoker     *ai.WebhookClient
	Limiter     *ratelimit.Limiter
	RelayWorker *worker.EventRelayWorker

	StartedAt time.Time
}

// New connects every dependency named by the config. Redis and RabbitMQ are
// optional; without RabbitMQ events only reach subscribers on this instance.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: NewLogger(cfg.App),
		Hub:    events.NewHub(),
	}
	if err := a.connect(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.StartedAt = time.Now()
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	a.DB = db
	if err := db.AutoMigrate(&model.Account{}, &model.ChatSession{}, &model.ChatMessage{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		if cfg.RateLimit.Enabled {
			a.Limiter = ratelimit.New(a.Redis, cfg.RateLimit.TurnsPerWindow, cfg.RateLimitWindow())
		}
	}

	a.MinIO, err = minioClient.New(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.UseSSL, cfg.MinIO.Bucket)
	if err != nil {
		return err
	}
	a.Blobs = blob.New(a.MinIO, blob.Config{
		Bucket:       cfg.MinIO.Bucket,
		PublicScheme: cfg.MinIO.PublicScheme,
		PublicHost:   cfg.MinIO.PublicHost,
		PublicPort:   cfg.MinIO.PublicPort,
		MaxAttempts:  cfg.MinIO.MaxAttempts,
	})
	if err := a.Blobs.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket failed: %w", err)
	}

	webhooks := make(map[model.ChatType]string, len(cfg.Upstream.Webhooks))
	for chatType, url := range cfg.Upstream.Webhooks {
		if !model.ChatType(chatType).Valid() {
			a.Logger.Warn("ignoring webhook for unknown chat type", "chat_type", chatType)
			continue
		}
		webhooks[model.ChatType(chatType)] = url
	}
	a.Invoker = ai.NewWebhookClient(webhooks, cfg.UpstreamTimeout())

	a.Publisher = a.Hub
	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.RelayWorker = worker.NewEventRelayWorker(a.MQConn, a.Hub, cfg.RabbitMQ.Exchange, a.Logger)
		if err := a.RelayWorker.Start(ctx); err != nil {
			return fmt.Errorf("start event relay worker failed: %w", err)
		}
		a.Publisher = rabbitmqClient.NewEventPublisher(a.MQConn, cfg.RabbitMQ.Exchange)
	}
	return nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == "sqlite" {
		return sqliteClient.New(ctx, cfg.SQLitePath)
	}
	return mysqlClient.New(ctx, cfg.MySQL)
}

func (a *App) Close() error {
	var closeErr error
	if a.RelayWorker != nil {
		a.RelayWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
