package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ottsonly-backend/pkg/logger"
	"ottsonly-backend/pkg/money"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	App       *AppConfig
	DB        *DBConfig
	Redis     *RedisConfig
	JWT       *JWTConfig
	Payment   *PaymentConfig
	Referral  *ReferralConfig
	Notify    *NotifyConfig
	RateLimit *RateLimitConfig
}

type AppConfig struct {
	Name     string
	Env      string
	Port     string
	LogLevel string
}

type DBConfig struct {
	Driver          string // mysql, postgres or memory
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type PaymentConfig struct {
	Gateway            string // midtrans or sandbox
	KeyID              string
	KeySecret          string
	MidtransServerKey  string
	MidtransProduction bool
	ProcessingTimeout  time.Duration
	ReclaimInterval    time.Duration
}

type ReferralConfig struct {
	CommissionRate            decimal.Decimal
	MinWithdrawal             money.Amount
	AdminCreditPaysCommission bool
}

type NotifyConfig struct {
	Stream         string
	Group          string
	FCMCredentials string
	FCMTopic       string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads .env (if present) and the environment, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file found, using process environment")
	}

	cfg := &Config{
		App:       LoadAppConfig(),
		DB:        LoadDBConfig(),
		Redis:     LoadRedisConfig(),
		JWT:       LoadJWTConfig(),
		Payment:   LoadPaymentConfig(),
		Referral:  LoadReferralConfig(),
		Notify:    LoadNotifyConfig(),
		RateLimit: LoadRateLimitConfig(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadAppConfig() *AppConfig {
	return &AppConfig{
		Name:     getEnv("APP_NAME", "OTTSONLY"),
		Env:      getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func LoadDBConfig() *DBConfig {
	driver := strings.ToLower(getEnv("DB_DRIVER", "mysql"))
	defaultPort := "3306"
	if driver == "postgres" {
		defaultPort = "5432"
	}
	return &DBConfig{
		Driver:          driver,
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnv("DB_PORT", defaultPort),
		User:            getEnv("DB_USER", "root"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "ottsonly"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime: time.Duration(getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
	}
}

func LoadRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("REDIS_DB", 0),
	}
}

func LoadJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret: getEnv("JWT_SECRET", ""),
		TTL:    getEnvAsDuration("JWT_TTL", 24*time.Hour),
	}
}

func LoadPaymentConfig() *PaymentConfig {
	return &PaymentConfig{
		Gateway:            strings.ToLower(getEnv("PAYMENT_GATEWAY", "sandbox")),
		KeyID:              getEnv("PAYMENT_KEY_ID", "rzp_test_key"),
		KeySecret:          getEnv("PAYMENT_KEY_SECRET", ""),
		MidtransServerKey:  getEnv("MIDTRANS_SERVER_KEY", ""),
		MidtransProduction: getEnvAsBool("MIDTRANS_PRODUCTION", false),
		ProcessingTimeout:  getEnvAsDuration("PAYMENT_PROCESSING_TIMEOUT", 15*time.Minute),
		ReclaimInterval:    getEnvAsDuration("PAYMENT_RECLAIM_INTERVAL", time.Minute),
	}
}

func LoadReferralConfig() *ReferralConfig {
	return &ReferralConfig{
		CommissionRate:            getEnvAsDecimal("REFERRAL_COMMISSION_RATE", decimal.RequireFromString("0.10")),
		MinWithdrawal:             getEnvAsAmount("REFERRAL_MIN_WITHDRAWAL", money.FromRupees(100)),
		AdminCreditPaysCommission: getEnvAsBool("REFERRAL_ADMIN_CREDIT_PAYS_COMMISSION", false),
	}
}

func LoadNotifyConfig() *NotifyConfig {
	return &NotifyConfig{
		Stream:         getEnv("NOTIFY_STREAM", "stream:notifications"),
		Group:          getEnv("NOTIFY_GROUP", "notifications_cg"),
		FCMCredentials: getEnv("NOTIFY_FCM_CREDENTIALS", ""),
		FCMTopic:       getEnv("NOTIFY_FCM_TOPIC", "admin"),
	}
}

func LoadRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		Burst: getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// Validate rejects settings the money paths cannot run with.
func (c *Config) Validate() error {
	var errs []error

	rate := c.Referral.CommissionRate
	if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("REFERRAL_COMMISSION_RATE must be in (0,1], got %s", rate))
	}
	if !c.Referral.MinWithdrawal.IsPositive() {
		errs = append(errs, errors.New("REFERRAL_MIN_WITHDRAWAL must be greater than zero"))
	}
	switch c.DB.Driver {
	case "mysql", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver))
	}
	switch c.Payment.Gateway {
	case "midtrans":
		if c.Payment.MidtransServerKey == "" {
			errs = append(errs, errors.New("MIDTRANS_SERVER_KEY is required for the midtrans gateway"))
		}
	case "sandbox":
	default:
		errs = append(errs, fmt.Errorf("unsupported PAYMENT_GATEWAY %q", c.Payment.Gateway))
	}

	if c.App.Env == "development" {
		if c.JWT.Secret == "" {
			c.JWT.Secret = "dev-secret"
		}
		if c.Payment.KeySecret == "" {
			c.Payment.KeySecret = "dev-payment-secret"
		}
	} else {
		if c.JWT.Secret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required"))
		}
		if c.Payment.KeySecret == "" {
			errs = append(errs, errors.New("PAYMENT_KEY_SECRET is required"))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

//============================================================

// getEnv returns the value of the environment variable or a default value if not set
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		logger.Warnf("invalid integer for %s, using %d", key, defaultVal)
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
		logger.Warnf("invalid number for %s, using %v", key, defaultVal)
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
		logger.Warnf("invalid boolean for %s, using %v", key, defaultVal)
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		logger.Warnf("invalid duration for %s, using %s", key, defaultVal)
	}
	return defaultVal
}

func getEnvAsDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
		logger.Warnf("invalid decimal for %s, using %s", key, defaultVal)
	}
	return defaultVal
}

func getEnvAsAmount(key string, defaultVal money.Amount) money.Amount {
	if val := os.Getenv(key); val != "" {
		if a, err := money.Parse(val); err == nil {
			return a
		}
		logger.Warnf("invalid amount for %s, using %s", key, defaultVal)
	}
	return defaultVal
}
