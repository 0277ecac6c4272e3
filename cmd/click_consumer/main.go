package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/IgorGrieder/minimizurl/internal/config"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/db"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/telemetry"
	"github.com/IgorGrieder/minimizurl/internal/messaging/kafka"
	mongoStorage "github.com/IgorGrieder/minimizurl/internal/storage/mongo"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConsumer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serviceName := fmt.Sprintf("%s-click-consumer", cfg.App.Name)
	if cfg.OTel.Enabled {
		shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Options{
			Endpoint:       cfg.OTel.Endpoint,
			ServiceName:    serviceName,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Env,
			SampleRatio:    cfg.OTel.SampleRatio,
		})
		if err != nil {
			logger.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			logger.Info("OpenTelemetry tracer initialized",
				zap.String("endpoint", cfg.OTel.Endpoint),
				zap.String("service", serviceName),
			)
			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					logger.Warn("failed to shutdown tracer", zap.Error(err))
				}
			}()
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
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() { _ = mongoConn.Disconnect(context.Background()) }()

	clickRepo, err := mongoStorage.NewClickEventsRepository(mongoConn)
	if err != nil {
		logger.Fatal("failed to initialize click events repository", zap.Error(err))
	}

	consumer := kafka.NewClickConsumer(kafka.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
		MaxWait: cfg.FetchMaxWait,
	}, clickRepo, kafka.ConsumerOptions{
		OperationTimeout: cfg.OperationTimeout,
		Backoff:          cfg.Backoff,
	})
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("failed to close kafka reader", zap.Error(err))
		}
	}()

	logger.Info("click consumer started",
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
		zap.String("kafka_topic", cfg.Kafka.Topic),
		zap.String("kafka_group", cfg.Kafka.GroupID),
	)

	if err := consumer.Run(ctx); err != nil {
		logger.Error("click consumer stopped with error", zap.Error(err))
		return
	}
	logger.Info("click consumer stopping")
}
