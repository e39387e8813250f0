/**
 * @description
 * This package handles the configuration management for the cup-service. It
 * uses the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the cup-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string  `mapstructure:"SERVER_PORT"`
	DatabaseURL              string  `mapstructure:"DATABASE_URL"`
	RabbitMQURL              string  `mapstructure:"RABBITMQ_URL"`
	RedisURL                 string  `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string  `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	PushServiceURL           string  `mapstructure:"PUSH_SERVICE_URL"`
	PushServiceAPIKey        string  `mapstructure:"PUSH_SERVICE_API_KEY"`
	JWKSURL                  string  `mapstructure:"JWKS_URL"`
	CronSecret               string  `mapstructure:"CRON_SECRET"`
	DepositAmount            int64   `mapstructure:"DEPOSIT_AMOUNT"`
	BorrowDurationHours      int     `mapstructure:"BORROW_DURATION_HOURS"`
	OnTimePoints             int     `mapstructure:"ONTIME_POINTS"`
	OverduePoints            int     `mapstructure:"OVERDUE_POINTS"`
	DefaultCommissionPercent float64 `mapstructure:"DEFAULT_COMMISSION_PERCENT"`
	BorrowRateLimitPerMinute int     `mapstructure:"BORROW_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values. Deposit and borrow window defaults mirror the
	// production values (20,000 VND refundable hold, 24 hour loan).
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "sipsmart:rate_limit")
	viper.SetDefault("DEPOSIT_AMOUNT", 20000)
	viper.SetDefault("BORROW_DURATION_HOURS", 24)
	viper.SetDefault("ONTIME_POINTS", 50)
	viper.SetDefault("OVERDUE_POINTS", 20)
	viper.SetDefault("DEFAULT_COMMISSION_PERCENT", 10.0)
	viper.SetDefault("BORROW_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("PUSH_SERVICE_URL")
	_ = viper.BindEnv("PUSH_SERVICE_API_KEY")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("CRON_SECRET")
	_ = viper.BindEnv("DEPOSIT_AMOUNT")
	_ = viper.BindEnv("BORROW_DURATION_HOURS")
	_ = viper.BindEnv("ONTIME_POINTS")
	_ = viper.BindEnv("OVERDUE_POINTS")
	_ = viper.BindEnv("DEFAULT_COMMISSION_PERCENT")
	_ = viper.BindEnv("BORROW_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "sipsmart:rate_limit"
	}

	if config.DepositAmount <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive deposit configured; using default\" deposit=%d", config.DepositAmount)
		config.DepositAmount = 20000
	}
	if config.BorrowDurationHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive borrow duration configured; using default\" hours=%d", config.BorrowDurationHours)
		config.BorrowDurationHours = 24
	}
	if config.OnTimePoints < 0 {
		config.OnTimePoints = 0
	}
	if config.OverduePoints < 0 {
		config.OverduePoints = 0
	}
	if config.DefaultCommissionPercent < 0 {
		log.Printf("level=warn component=config msg=\"negative commission percent configured; coercing to zero\" percent=%f", config.DefaultCommissionPercent)
		config.DefaultCommissionPercent = 0
	}
	if config.DefaultCommissionPercent > 100 {
		log.Printf("level=warn component=config msg=\"commission percent too high; capping at 100\" percent=%f", config.DefaultCommissionPercent)
		config.DefaultCommissionPercent = 100
	}
	if config.BorrowRateLimitPerMinute < 0 {
		config.BorrowRateLimitPerMinute = 0
	}

	return
}
