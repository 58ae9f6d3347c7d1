package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	MQNone     = "none"
	MQRabbitMQ = "rabbitmq"
	MQPubSub   = "pubsub"
)

type Config struct {
	Env         string `env:"ENV" env-default:"prod"`
	ServerPort  int    `env:"SERVER_PORT" env-default:"8080"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	StoreDriver string `env:"STORE_DRIVER" env-default:"mongo"`

	Mongo     MongoConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	MQ        MQConfig
}

type MongoConfig struct {
	URI    string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	DBName string `env:"MONGO_DB" env-default:"bookingd"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     int    `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"bookingd"`
	Password string `env:"DB_PASSWORD" env-default:"password"`
	DBName   string `env:"DB_NAME" env-default:"bookingd_db"`
	UseSSL   bool   `env:"DB_SSL" env-default:"false"`
}

type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET"`
	TokenTTL   time.Duration `env:"JWT_EXPIRES_IN" env-default:"168h"`
	BcryptCost int           `env:"BCRYPT_COST" env-default:"10"`
}

// RateLimitConfig applies to the authentication and admin route groups.
// A zero RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS" env-default:"5"`
	Burst int     `env:"RATE_LIMIT_BURST" env-default:"10"`
}

type MQConfig struct {
	Driver   string `env:"MQ_DRIVER" env-default:"none"`
	Channel  string `env:"MQ_CHANNEL" env-default:"bookingd-events"`
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" env-default:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" env-default:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH" env-default:"0"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" env-default:"-sub"`
}

// LoadConfig reads configuration from the environment. In the dev
// environment a local .env file is loaded first.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.MQ.Driver = strings.ToLower(strings.TrimSpace(cfg.MQ.Driver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration that cannot start a server.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case StoreMongo, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.MQ.Driver {
	case "", MQNone, MQRabbitMQ, MQPubSub:
	default:
		return fmt.Errorf("unknown MQ_DRIVER %q", c.MQ.Driver)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	return nil
}
