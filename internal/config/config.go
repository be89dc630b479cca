package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Payment    PaymentConfig
	Booking    BookingConfig
	Auth       AuthConfig
	Withdrawal WithdrawalConfig
	Ticket     TicketConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SessionTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	BookingConfirmed    string
	WithdrawalCompleted string
}

// All returns every topic the services produce to.
func (t TopicConfig) All() []string {
	return []string{t.BookingConfirmed, t.WithdrawalCompleted}
}

type PaymentConfig struct {
	Provider        string // paystack | stripe
	SecretKey       string
	BaseURL         string
	Currency        string
	CallbackBaseURL string
	VerifyTimeout   time.Duration
	VerifyAttempts  int
}

type BookingConfig struct {
	CommissionRate string
	FrontendURL    string
}

type AuthConfig struct {
	OIDCIssuer   string
	JWTSecret    string
	AdminUserIDs []string
}

type WithdrawalConfig struct {
	Minimum string
}

type TicketConfig struct {
	QRSecret string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8084"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			AutoMigrate:  getEnvBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			SessionTTL: getEnvDuration("PAYMENT_SESSION_TTL", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID: getEnv("KAFKA_GROUP_ID", "eventcircle-ticketing-worker"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				BookingConfirmed:    getEnv("KAFKA_TOPIC_BOOKING_CONFIRMED", "eventcircle.booking.confirmed"),
				WithdrawalCompleted: getEnv("KAFKA_TOPIC_WITHDRAWAL_COMPLETED", "eventcircle.withdrawal.completed"),
			},
		},
		Payment: PaymentConfig{
			Provider:        strings.ToLower(getEnv("PAYMENT_PROVIDER", "paystack")),
			SecretKey:       getEnv("PAYMENT_SECRET_KEY", ""),
			BaseURL:         getEnv("PAYMENT_BASE_URL", ""),
			Currency:        strings.ToUpper(getEnv("PAYMENT_CURRENCY", "ZAR")),
			CallbackBaseURL: getEnv("PAYMENT_CALLBACK_BASE_URL", "http://localhost:8084"),
			VerifyTimeout:   getEnvDuration("PAYMENT_VERIFY_TIMEOUT", 15*time.Second),
			VerifyAttempts:  getEnvInt("PAYMENT_VERIFY_ATTEMPTS", 3),
		},
		Booking: BookingConfig{
			CommissionRate: getEnv("COMMISSION_RATE", "0.13"),
			FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Auth: AuthConfig{
			OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
			JWTSecret:    getEnv("JWT_SECRET", ""),
			AdminUserIDs: getEnvList("ADMIN_USER_IDS", nil),
		},
		Withdrawal: WithdrawalConfig{
			Minimum: getEnv("WITHDRAWAL_MINIMUM", "50.00"),
		},
		Ticket: TicketConfig{
			QRSecret: getEnv("TICKET_QR_SECRET", "change-me"),
		},
	}
}

// Validate catches misconfiguration that would otherwise surface mid-booking.
func (c *Config) Validate() error {
	rate, err := decimal.NewFromString(c.Booking.CommissionRate)
	if err != nil {
		return fmt.Errorf("COMMISSION_RATE: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("COMMISSION_RATE must be in [0, 1), got %s", c.Booking.CommissionRate)
	}
	if _, err := decimal.NewFromString(c.Withdrawal.Minimum); err != nil {
		return fmt.Errorf("WITHDRAWAL_MINIMUM: %w", err)
	}
	switch c.Payment.Provider {
	case "paystack", "stripe":
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.Payment.Provider)
	}
	if c.Auth.OIDCIssuer == "" && c.Auth.JWTSecret == "" {
		return errors.New("either OIDC_ISSUER or JWT_SECRET must be set")
	}
	if c.Payment.VerifyAttempts < 1 {
		return errors.New("PAYMENT_VERIFY_ATTEMPTS must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
