package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	TelegramBotToken       string
	TelegramAdminChatID    int64
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxMB            int
	ChatChannel            string
	NotifyTimeout          time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// TelegramEnabled reports whether outbound Telegram notifications are configured.
// Both the bot credential and the admin chat must be present; otherwise every
// send is skipped without affecting the rest of the system.
func (c Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramAdminChatID != 0
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PENNY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Pennysavia API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "4000")
	v.SetDefault("cloudinary.folder", "pennysavia/uploads")
	v.SetDefault("upload.max_mb", 25)
	v.SetDefault("chat.channel", "pennysavia")
	v.SetDefault("notify.timeout", "15s")

	timeoutString := v.GetString("notify.timeout")
	if timeoutString == "" {
		timeoutString = "15s"
	}

	timeout, err := time.ParseDuration(timeoutString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid notify timeout: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		TelegramBotToken:       v.GetString("telegram.bot_token"),
		TelegramAdminChatID:    v.GetInt64("telegram.admin_chat_id"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		ChatChannel:            v.GetString("chat.channel"),
		NotifyTimeout:          timeout,
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 25
	}

	return cfg, nil
}
