package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Order    OrderConfig
	Promo    PromoConfig
	S3       S3Config
	Redis    RedisConfig
	Kafka    KafkaConfig
	SMTP     SMTPConfig
	Notify   NotifyConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey    string
	JWTSecret string
}

// OrderConfig holds the pricing and limits applied when orders are assembled.
type OrderConfig struct {
	TaxRate               decimal.Decimal
	TaxRoundPlaces        int32
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	MinOrderAmount        decimal.Decimal
	MaxCartItems          int
	TxTimeout             time.Duration
}

// PromoConfig holds promo catalogue configuration.
type PromoConfig struct {
	Files         []string
	MinMatchCount int
}

// S3Config holds AWS S3 configuration for promo catalogue files.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "promos/")
}

// RedisConfig holds Redis configuration for the notification queue.
type RedisConfig struct {
	URL string
}

// KafkaConfig holds the order event stream configuration. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SMTPConfig holds outgoing mail configuration. An empty host disables email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NotifyConfig holds the post-commit notification dispatcher configuration.
type NotifyConfig struct {
	Queue       string // "memory" or "redis"
	Workers     int
	MaxAttempts int
	BaseBackoff time.Duration
	BufferSize  int
}

// Load loads configuration from environment variables, reading a .env file first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey:    getEnv("API_KEY", ""),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Order: OrderConfig{
			TaxRate:               getEnvAsDecimal("ORDER_TAX_RATE", decimal.RequireFromString("0.19")),
			TaxRoundPlaces:        int32(getEnvAsInt("ORDER_TAX_ROUND_PLACES", 0)),
			FreeShippingThreshold: getEnvAsDecimal("ORDER_FREE_SHIPPING_THRESHOLD", decimal.NewFromInt(150000)),
			FlatShippingFee:       getEnvAsDecimal("ORDER_FLAT_SHIPPING_FEE", decimal.NewFromInt(5000)),
			MinOrderAmount:        getEnvAsDecimal("ORDER_MIN_AMOUNT", decimal.NewFromInt(10000)),
			MaxCartItems:          getEnvAsInt("ORDER_MAX_CART_ITEMS", 50),
			TxTimeout:             getEnvAsDuration("ORDER_TX_TIMEOUT", 5*time.Second),
		},
		Promo: PromoConfig{
			Files:         getEnvAsList("PROMO_FILES", nil),
			MinMatchCount: getEnvAsInt("PROMO_MIN_MATCH_COUNT", 1),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "us-east-1"),
			Prefix:  getEnv("S3_PREFIX", "promos/"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_ORDER_TOPIC", "order-events"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "orders@storefront.local"),
		},
		Notify: NotifyConfig{
			Queue:       getEnv("NOTIFY_QUEUE", "memory"),
			Workers:     getEnvAsInt("NOTIFY_WORKERS", 4),
			MaxAttempts: getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 5),
			BaseBackoff: getEnvAsDuration("NOTIFY_BASE_BACKOFF", 500*time.Millisecond),
			BufferSize:  getEnvAsInt("NOTIFY_BUFFER_SIZE", 256),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if err := c.Order.validate(); err != nil {
		return err
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Promo.MinMatchCount < 1 {
		return fmt.Errorf("promo min match count must be at least 1")
	}

	switch c.Notify.Queue {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required when the notification queue is redis")
		}
	default:
		return fmt.Errorf("invalid notification queue: %s (must be memory or redis)", c.Notify.Queue)
	}

	if c.Notify.Workers < 1 {
		return fmt.Errorf("notification workers must be at least 1")
	}

	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("notification max attempts must be at least 1")
	}

	return nil
}

// moneyScale is the number of decimal places stored in the NUMERIC(14, 2) money columns.
const moneyScale = 2

func (c *OrderConfig) validate() error {
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid order tax rate: %s (must be in [0, 1))", c.TaxRate)
	}
	if c.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("free shipping threshold cannot be negative")
	}
	if c.FlatShippingFee.IsNegative() {
		return fmt.Errorf("flat shipping fee cannot be negative")
	}
	if c.MinOrderAmount.IsNegative() {
		return fmt.Errorf("minimum order amount cannot be negative")
	}
	if c.TaxRoundPlaces < 0 || c.TaxRoundPlaces > moneyScale {
		return fmt.Errorf("invalid tax round places: %d (must be in [0, %d])", c.TaxRoundPlaces, moneyScale)
	}
	if c.MaxCartItems < 1 {
		return fmt.Errorf("max cart items must be at least 1")
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("order transaction timeout must be positive")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
