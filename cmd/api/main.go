package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/config"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/db"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/telemetry"
	"github.com/IgorGrieder/minimizurl/internal/messaging/kafka"
	"github.com/IgorGrieder/minimizurl/internal/messaging/webhook"
	"github.com/IgorGrieder/minimizurl/internal/processing/clicks"
	"github.com/IgorGrieder/minimizurl/internal/processing/links"
	"github.com/IgorGrieder/minimizurl/internal/storage/mongo"
	redisStorage "github.com/IgorGrieder/minimizurl/internal/storage/redis"
	httpTransport "github.com/IgorGrieder/minimizurl/internal/transport/http"
	"github.com/IgorGrieder/minimizurl/internal/transport/http/middleware"
	"github.com/IgorGrieder/minimizurl/pkg/httpclient"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
	)

	ctx := context.Background()

	var shutdownTracer func(context.Context) error
	if cfg.OTel.Enabled {
		shutdownTracer, err = telemetry.InitTracer(ctx, telemetry.Options{
			Endpoint:       cfg.OTel.Endpoint,
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Env,
			SampleRatio:    cfg.OTel.SampleRatio,
		})
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			logger.Info("OpenTelemetry tracer initialized", zap.String("endpoint", cfg.OTel.Endpoint))
		}
	}

	mongoConn, err := db.ConnectMongo(ctx, db.MongoOptions{
		URI:              cfg.MongoDB.URI,
		Database:         cfg.MongoDB.Database,
		ConnectTimeout:   cfg.MongoDB.ConnectTimeout,
		OperationTimeout: cfg.MongoDB.OperationTimeout,
		MaxPoolSize:      cfg.MongoDB.MaxPoolSize,
	})
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() { _ = mongoConn.Disconnect(context.Background()) }()

	linkRepo, err := mongo.NewLinksRepository(mongoConn)
	if err != nil {
		logger.Fatal("Failed to initialize links repository", zap.Error(err))
	}
	clickRepo, err := mongo.NewClickEventsRepository(mongoConn)
	if err != nil {
		logger.Fatal("Failed to initialize click events repository", zap.Error(err))
	}

	readiness := map[string]httpTransport.Pinger{"mongo": mongoConn}

	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisStorage.New(ctx, redisStorage.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()

		readiness["redis"] = httpTransport.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	var sequencer links.Sequencer = mongo.NewSequenceRepository(mongoConn)
	if cfg.Shortener.SequenceBackend == config.SequenceRedis {
		sequencer = redisStorage.NewSequence(redisClient, "seq")
	}

	sink, closeSink := newClickSink(cfg, clickRepo)
	defer closeSink()

	recorder := clicks.NewRecorder(sink, clicks.Options{
		QueueSize:   cfg.Clicks.QueueSize,
		Workers:     cfg.Clicks.Workers,
		SaveTimeout: cfg.Clicks.SaveTimeout,
	})

	linkSvc := links.NewService(linkRepo, sequencer, recorder, clickRepo, cfg.Shortener.LinkTTL)

	var createLimiter middleware.Limiter
	if cfg.Security.CreateRatePerMinute > 0 {
		if redisClient != nil {
			store := redisStorage.NewFixedWindowLimiter(redisClient, "rl:create", time.Minute)
			createLimiter = middleware.NewRedisLimiter(store, cfg.Security.CreateRatePerMinute)
		} else {
			createLimiter = middleware.NewLocalLimiter(cfg.Security.CreateRatePerMinute)
		}
	}

	router := httpTransport.NewRouter(cfg, httpTransport.RouterDeps{
		Links:         linkSvc,
		Authenticator: middleware.NewAuthenticator(cfg.Security.JWTSecret, cfg.Security.JWTIssuer),
		CreateLimiter: createLimiter,
		Readiness:     readiness,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}
		if err := recorder.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Click recorder did not drain", zap.Error(err))
		}
		logger.Info("Click recorder stopped",
			zap.Int64("dropped", recorder.Dropped()),
			zap.Int64("failed", recorder.Failed()),
		)
		if shutdownTracer != nil {
			_ = shutdownTracer(shutdownCtx)
		}
	}()

	logger.Info("Server starting",
		zap.String("address", cfg.Server.Addr()),
		zap.String("sequence", cfg.Shortener.SequenceBackend),
		zap.String("click_sink", cfg.Clicks.Sink),
	)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server error", zap.Error(err))
	}
	<-stopped

	logger.Info("Server stopped gracefully")
}

// newClickSink picks where recorded clicks go. The returned func releases
// the sink's resources.
func newClickSink(cfg *config.Config, store *mongo.ClickEventsRepository) (clicks.Sink, func()) {
	switch cfg.Clicks.Sink {
	case config.SinkKafka:
		publisher := kafka.NewClickPublisher(kafka.WriterConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		return publisher, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close click publisher", zap.Error(err))
			}
		}
	case config.SinkWebhook:
		client := httpclient.NewClient(httpclient.Options{
			Timeout:     cfg.Clicks.SaveTimeout,
			MaxRetries:  2,
			MaxFailures: 5,
			OpenTimeout: 30 * time.Second,
		})
		return webhook.NewClickSink(client, cfg.Clicks.WebhookURL, cfg.Clicks.WebhookToken), func() {}
	default:
		return store, func() {}
	}
}
