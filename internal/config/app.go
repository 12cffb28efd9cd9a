package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type AppConfig struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"court-reservation"`
	Env         string `envconfig:"ENV" default:"dev"`

	// Сеть
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr string `envconfig:"GRPC_ADDR" default:":50051"`

	// JWT
	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	JWTExpireMin int    `envconfig:"JWT_EXPIRE_MIN" default:"60"`

	// Клуб
	Courts                 []string      `envconfig:"COURTS" default:"P1,P2,P3"`
	RejectOverlappingRules bool          `envconfig:"REJECT_OVERLAPPING_RULES" default:"false"`
	PendingTTL             time.Duration `envconfig:"PENDING_TTL" default:"5m"`
	StoreTimeout           time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	// Redis
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// RabbitMQ; пустой URL отключает публикацию событий
	RabbitURL       string `envconfig:"RABBIT_URL"`
	BookingExchange string `envconfig:"BOOKING_EXCHANGE" default:"courts.events"`

	// OpenTelemetry; пустой endpoint отключает экспорт трейсов
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load подтягивает необязательный .env и читает переменные окружения.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}
	if c.JWTSecret == "" {
		return nil, fmt.Errorf("invalid app config: JWT_SECRET must not be empty")
	}
	if c.PendingTTL <= 0 {
		return nil, fmt.Errorf("invalid app config: PENDING_TTL must be positive")
	}
	if c.StoreTimeout <= 0 {
		return nil, fmt.Errorf("invalid app config: STORE_TIMEOUT must be positive")
	}
	return &c, nil
}

func (c *AppConfig) JWTTTL() time.Duration {
	return time.Duration(c.JWTExpireMin) * time.Minute
}
