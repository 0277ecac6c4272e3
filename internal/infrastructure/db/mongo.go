package db

import (
	"context"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

type MongoOptions struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	// OperationTimeout bounds every command issued through the client.
	OperationTimeout time.Duration
	MaxPoolSize      uint64
}

// Mongo holds the shared client and the database every repository writes to.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// ConnectMongo dials MongoDB with otel command tracing and waits for a
// primary to answer a ping.
func ConnectMongo(ctx context.Context, opts MongoOptions) (*Mongo, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetMonitor(otelmongo.NewMonitor())
	if opts.OperationTimeout > 0 {
		clientOptions.SetTimeout(opts.OperationTimeout)
	}
	if opts.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(opts.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("mongodb connected", zap.String("database", opts.Database))
	return &Mongo{
		Client:   client,
		Database: client.Database(opts.Database),
	}, nil
}

// Ping backs the readiness probe.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Disconnect(ctx context.Context) error {
	if m.Client == nil {
		return nil
	}
	return m.Client.Disconnect(ctx)
}

func (m *Mongo) Collection(name string) *mongo.Collection {
	return m.Database.Collection(name)
}
