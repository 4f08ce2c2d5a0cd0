package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type DiscordConfig struct {
	BotToken string
}

// IsConfigured returns true if all required Discord configuration is present
func (c DiscordConfig) IsConfigured() bool {
	return c.BotToken != ""
}

type SlackConfig struct {
	BotToken string
}

// IsConfigured returns true if all required Slack configuration is present
func (c SlackConfig) IsConfigured() bool {
	return c.BotToken != ""
}

type QueueConfig struct {
	MaxPending  int
	Concurrency int
	MaxRetries  int
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

type AppConfig struct {
	// Core configuration (always required)
	OwnerID            string
	CommandPrefix      string
	DatabasePath       string
	StateDir           string
	Port               string // Optional with default "8080"
	CORSAllowedOrigins string
	UseStrictConfig    bool // If true, error when any transport is not fully configured

	QueueConfig     QueueConfig
	RateLimitConfig RateLimitConfig

	// Transport configurations (grouped)
	DiscordConfig DiscordConfig
	SlackConfig   SlackConfig
}

func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ Could not load .env file, continuing with system env vars")
	}

	ownerID, err := getEnvRequired("BOT_OWNER_ID")
	if err != nil {
		return nil, err
	}

	maxPending, err := getEnvInt("QUEUE_MAX_PENDING", 100)
	if err != nil {
		return nil, err
	}
	concurrency, err := getEnvInt("QUEUE_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getEnvInt("QUEUE_MAX_RETRIES", 2)
	if err != nil {
		return nil, err
	}
	rateMaxRequests, err := getEnvInt("RATE_LIMIT_MAX_REQUESTS", 10)
	if err != nil {
		return nil, err
	}
	rateWindowSeconds, err := getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}

	config := &AppConfig{
		OwnerID:            ownerID,
		CommandPrefix:      getEnvWithDefault("COMMAND_PREFIX", "."),
		DatabasePath:       getEnvWithDefault("DB_PATH", "relaybot.db"),
		StateDir:           getEnvWithDefault("STATE_DIR", "."),
		Port:               getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins: getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		UseStrictConfig:    getEnvWithDefault("USE_STRICT_CONFIG", "false") == "true",

		QueueConfig: QueueConfig{
			MaxPending:  maxPending,
			Concurrency: concurrency,
			MaxRetries:  maxRetries,
		},
		RateLimitConfig: RateLimitConfig{
			MaxRequests: rateMaxRequests,
			Window:      time.Duration(rateWindowSeconds) * time.Second,
		},

		// Discord configuration (optional)
		DiscordConfig: DiscordConfig{
			BotToken: os.Getenv("DISCORD_BOT_TOKEN"),
		},

		// Slack configuration (optional)
		SlackConfig: SlackConfig{
			BotToken: os.Getenv("SLACK_BOT_TOKEN"),
		},
	}

	if config.DiscordConfig.IsConfigured() {
		log.Printf("✅ Discord transport configured")
	} else {
		log.Printf("⚠️ Discord transport not configured - Discord features will be disabled")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("discord transport is not fully configured (USE_STRICT_CONFIG=true)")
		}
	}

	if config.SlackConfig.IsConfigured() {
		log.Printf("✅ Slack transport configured")
	} else {
		log.Printf("⚠️ Slack transport not configured - Slack features will be disabled")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("slack transport is not fully configured (USE_STRICT_CONFIG=true)")
		}
	}

	return config, nil
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}
