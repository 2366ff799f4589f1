/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables and an
 * optional .env file, providing a centralized and straightforward way to
 * manage application settings.
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

// Config holds all the configuration variables for the portal-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	PortalEventQueue           string `mapstructure:"PORTAL_EVENT_QUEUE"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	JWTSecret                  string `mapstructure:"JWT_SECRET"`
	LoginDomain                string `mapstructure:"LOGIN_DOMAIN"`
	SessionTTLHours            int    `mapstructure:"SESSION_TTL_HOURS"`
	AllowedOrigins             string `mapstructure:"ALLOWED_ORIGINS"`
	AdminEmail                 string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword              string `mapstructure:"ADMIN_PASSWORD"`
	StatsSnapshotSchedule      string `mapstructure:"STATS_SNAPSHOT_SCHEDULE"`
	LoginRateLimitPerMinute    int    `mapstructure:"LOGIN_RATE_LIMIT_PER_MINUTE"`
	RegisterRateLimitPerMinute int    `mapstructure:"REGISTER_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("PORTAL_EVENT_QUEUE", "portal_service.dashboard_updates")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "unitymfi:rate_limit")
	viper.SetDefault("LOGIN_DOMAIN", "unitymfi.com")
	viper.SetDefault("ALLOWED_ORIGINS", "https://*,http://*")
	viper.SetDefault("SESSION_TTL_HOURS", 24)
	viper.SetDefault("STATS_SNAPSHOT_SCHEDULE", "@hourly")
	viper.SetDefault("LOGIN_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("REGISTER_RATE_LIMIT_PER_MINUTE", 5)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PORTAL_EVENT_QUEUE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("LOGIN_DOMAIN")
	_ = viper.BindEnv("SESSION_TTL_HOURS")
	_ = viper.BindEnv("ALLOWED_ORIGINS")
	_ = viper.BindEnv("ADMIN_EMAIL")
	_ = viper.BindEnv("ADMIN_PASSWORD")
	_ = viper.BindEnv("STATS_SNAPSHOT_SCHEDULE")
	_ = viper.BindEnv("LOGIN_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("REGISTER_RATE_LIMIT_PER_MINUTE")

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
	config.LoginDomain = strings.TrimPrefix(strings.TrimSpace(config.LoginDomain), "@")
	if config.LoginDomain == "" {
		config.LoginDomain = "unitymfi.com"
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "unitymfi:rate_limit"
	}
	if config.SessionTTLHours <= 0 {
		config.SessionTTLHours = 24
	}
	if config.LoginRateLimitPerMinute <= 0 {
		config.LoginRateLimitPerMinute = 10
	}
	if config.RegisterRateLimitPerMinute <= 0 {
		config.RegisterRateLimitPerMinute = 5
	}
	if strings.TrimSpace(config.StatsSnapshotSchedule) == "" {
		config.StatsSnapshotSchedule = "@hourly"
	}
	if strings.TrimSpace(config.AllowedOrigins) == "" {
		config.AllowedOrigins = "https://*,http://*"
	}

	return
}
