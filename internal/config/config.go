package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the service configuration, read from the environment.
type Config struct {
	Port             string
	DBDriver         string
	DBDSN            string
	RedisAddr        string
	RedisChannel     string
	CORSOrigins      []string
	ClientQueueSize  int
	ChatHistoryLimit int
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Port:             getEnvOrDefault("PORT", "8080"),
		DBDriver:         getEnvOrDefault("DB_DRIVER", "sqlite"),
		DBDSN:            os.Getenv("DB_DSN"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisChannel:     getEnvOrDefault("REDIS_CHANNEL", "collab:rooms"),
		CORSOrigins:      splitList(getEnvOrDefault("CORS_ORIGINS", "*")),
		ClientQueueSize:  getEnvInt("CLIENT_QUEUE_SIZE", 64),
		ChatHistoryLimit: getEnvInt("CHAT_HISTORY_LIMIT", 50),
	}
	if config.DBDSN == "" {
		config.DBDSN = defaultDSN(config.DBDriver)
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.DBDriver != "sqlite" && config.DBDriver != "postgres" {
		return errors.New("unsupported DB_DRIVER: " + config.DBDriver + ". Supported: sqlite, postgres")
	}
	if config.ClientQueueSize <= 0 {
		return fmt.Errorf("CLIENT_QUEUE_SIZE must be positive, got %d", config.ClientQueueSize)
	}
	if config.ChatHistoryLimit <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be positive, got %d", config.ChatHistoryLimit)
	}
	return nil
}

func defaultDSN(driver string) string {
	if driver != "postgres" {
		return "collab.db"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		getEnvOrDefault("POSTGRES_HOST", "localhost"),
		getEnvOrDefault("POSTGRES_USER", "postgres"),
		getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
		getEnvOrDefault("POSTGRES_DB", "postgres"),
		getEnvOrDefault("POSTGRES_PORT", "5432"),
		getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		return -1
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
