package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	SequenceMongo = "mongo"
	SequenceRedis = "redis"

	SinkMongo   = "mongo"
	SinkKafka   = "kafka"
	SinkWebhook = "webhook"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Shortener ShortenerConfig
	Clicks    ClicksConfig
	Security  SecurityConfig
	OTel      OTelConfig
}

type AppConfig struct {
	Name     string `env:"APP_NAME" envDefault:"minimizurl"`
	Version  string `env:"APP_VERSION" envDefault:"0.1.0"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type ServerConfig struct {
	Host            string        `env:"APP_HOST"`
	Port            string        `env:"APP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

type MongoDBConfig struct {
	URI              string        `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	Database         string        `env:"MONGODB_DATABASE" envDefault:"minimizurl"`
	ConnectTimeout   time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	OperationTimeout time.Duration `env:"MONGODB_OPERATION_TIMEOUT" envDefault:"3s"`
	MaxPoolSize      uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"100"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic   string   `env:"KAFKA_CLICK_TOPIC" envDefault:"clicks.recorded"`
	GroupID string   `env:"KAFKA_CLICK_GROUP_ID" envDefault:"click-analytics"`
}

type ShortenerConfig struct {
	BaseURL         string        `env:"SHORTENER_BASE_URL" envDefault:"http://localhost:8080"`
	RedirectStatus  int           `env:"REDIRECT_STATUS" envDefault:"302"`
	LinkTTL         time.Duration `env:"LINK_TTL" envDefault:"720h"`
	SequenceBackend string        `env:"SEQUENCE_BACKEND" envDefault:"mongo"`
}

type ClicksConfig struct {
	Sink         string        `env:"CLICK_SINK" envDefault:"mongo"`
	QueueSize    int           `env:"CLICK_QUEUE_SIZE" envDefault:"10000"`
	Workers      int           `env:"CLICK_WORKERS" envDefault:"4"`
	SaveTimeout  time.Duration `env:"CLICK_SAVE_TIMEOUT" envDefault:"2s"`
	WebhookURL   string        `env:"CLICK_WEBHOOK_URL"`
	WebhookToken string        `env:"CLICK_WEBHOOK_TOKEN"`
}

type SecurityConfig struct {
	JWTSecret           string   `env:"JWT_SECRET"`
	JWTIssuer           string   `env:"JWT_ISSUER"`
	CreateRatePerMinute int      `env:"CREATE_RATE_PER_MINUTE" envDefault:"60"`
	AllowedOrigins      []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type OTelConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"http://localhost:4318"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Shortener.RedirectStatus != 301 && c.Shortener.RedirectStatus != 302 {
		return fmt.Errorf("REDIRECT_STATUS must be 301 or 302 (got %d)", c.Shortener.RedirectStatus)
	}
	if c.Shortener.LinkTTL <= 0 {
		return fmt.Errorf("LINK_TTL must be > 0 (got %s)", c.Shortener.LinkTTL)
	}
	if !oneOf(c.Shortener.SequenceBackend, SequenceMongo, SequenceRedis) {
		return fmt.Errorf("SEQUENCE_BACKEND must be mongo or redis (got %q)", c.Shortener.SequenceBackend)
	}
	if c.Shortener.SequenceBackend == SequenceRedis && !c.Redis.Enabled {
		return fmt.Errorf("SEQUENCE_BACKEND=redis requires REDIS_ENABLED=true")
	}

	switch c.Clicks.Sink {
	case SinkMongo:
	case SinkKafka:
		if len(c.Kafka.Brokers) == 0 || strings.TrimSpace(c.Kafka.Topic) == "" {
			return fmt.Errorf("CLICK_SINK=kafka requires KAFKA_BROKERS and KAFKA_CLICK_TOPIC")
		}
	case SinkWebhook:
		if strings.TrimSpace(c.Clicks.WebhookURL) == "" {
			return fmt.Errorf("CLICK_SINK=webhook requires CLICK_WEBHOOK_URL")
		}
	default:
		return fmt.Errorf("CLICK_SINK must be mongo, kafka or webhook (got %q)", c.Clicks.Sink)
	}

	if c.Security.CreateRatePerMinute < 0 {
		return fmt.Errorf("CREATE_RATE_PER_MINUTE must be >= 0")
	}
	if c.App.Env == "production" && c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// ConsumerConfig configures cmd/click_consumer.
type ConsumerConfig struct {
	App     AppConfig
	MongoDB MongoDBConfig
	Kafka   KafkaConfig
	OTel    OTelConfig

	FetchMaxWait     time.Duration `env:"KAFKA_CONSUMER_MAX_WAIT" envDefault:"500ms"`
	OperationTimeout time.Duration `env:"KAFKA_CONSUMER_OPERATION_TIMEOUT" envDefault:"5s"`
	Backoff          time.Duration `env:"KAFKA_CONSUMER_BACKOFF" envDefault:"500ms"`
}

func LoadConsumer() (*ConsumerConfig, error) {
	cfg := &ConsumerConfig{}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if strings.TrimSpace(cfg.Kafka.Topic) == "" {
		return nil, fmt.Errorf("KAFKA_CLICK_TOPIC must not be empty")
	}
	if strings.TrimSpace(cfg.Kafka.GroupID) == "" {
		return nil, fmt.Errorf("KAFKA_CLICK_GROUP_ID must not be empty")
	}
	if cfg.OperationTimeout <= 0 {
		return nil, fmt.Errorf("KAFKA_CONSUMER_OPERATION_TIMEOUT must be > 0")
	}
	return cfg, nil
}
