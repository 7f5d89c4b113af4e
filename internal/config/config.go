package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`
	Port        string `mapstructure:"port"`
	PublicURL   string `mapstructure:"public_url"`

	// Auth
	JWTSecret string `mapstructure:"jwt_secret"`

	// Notification Gateway
	NotificationGatewayDetails NotificationGatewayConfig `mapstructure:"notification_gateway"`

	// Invite reminders
	InviteReminder InviteReminderConfig `mapstructure:"invite_reminder"`
}

type NotificationGatewayConfig struct {
	URL        string `mapstructure:"url"`
	InstanceID string `mapstructure:"instance_id"`
	APIToken   string `mapstructure:"api_token"`
}

type InviteReminderConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	After   time.Duration `mapstructure:"after"`
}

// App holds the global config instance
var App Config

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) error {
	// Auto-load .env file if present so 'go run' works without exporting vars
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("invite_reminder.enabled", true)
	v.SetDefault("invite_reminder.after", 72*time.Hour)

	// Config file settings
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("dev.config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("palate")

	// Bind standard environment variables (Docker/deploy compatibility)
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("redis_url", "REDIS_URL")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("public_url", "PUBLIC_URL")
	_ = v.BindEnv("jwt_secret", "JWT_SECRET")

	_ = v.BindEnv("notification_gateway.url", "PALATE_GATEWAY_URL")
	_ = v.BindEnv("notification_gateway.api_token", "PALATE_GATEWAY_TOKEN")
	_ = v.BindEnv("notification_gateway.instance_id", "PALATE_INSTANCE_ID")

	_ = v.BindEnv("invite_reminder.enabled", "INVITE_REMINDER_ENABLED")
	_ = v.BindEnv("invite_reminder.after", "INVITE_REMINDER_AFTER")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and environment variables")
		} else {
			return err
		}
	} else {
		log.Printf("Loaded config from: %s", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&App); err != nil {
		return err
	}

	// Backfill environment variables for code that still uses os.Getenv()
	setEnvIfEmpty("DATABASE_URL", App.DatabaseURL)
	setEnvIfEmpty("REDIS_URL", App.RedisURL)
	setEnvIfEmpty("PORT", App.Port)
	setEnvIfEmpty("PUBLIC_URL", App.PublicURL)
	setEnvIfEmpty("JWT_SECRET", App.JWTSecret)

	setEnvIfEmpty("PALATE_GATEWAY_URL", App.NotificationGatewayDetails.URL)
	setEnvIfEmpty("PALATE_GATEWAY_TOKEN", App.NotificationGatewayDetails.APIToken)
	setEnvIfEmpty("PALATE_INSTANCE_ID", App.NotificationGatewayDetails.InstanceID)

	return nil
}

func setEnvIfEmpty(key, value string) {
	if value != "" && os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}
