package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RabbitMQConfig holds RabbitMQ configuration
type RabbitMQConfig struct {
	Enabled   bool
	Host      string
	Port      int
	User      string
	Password  string
	Queue     string
	Prefetch  int
	Consumers int
}

// URL builds the AMQP connection URL (guest user automatically uses / vhost)
func (c *RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.User, c.Password, c.Host, c.Port)
}

// GetRabbitMQConfig returns RabbitMQ configuration from environment variables
func GetRabbitMQConfig() *RabbitMQConfig {
	return &RabbitMQConfig{
		Enabled:   getEnvBool("RABBITMQ_ENABLED", true),
		Host:      getEnv("RABBITMQ_HOST", "localhost"),
		Port:      getEnvInt("RABBITMQ_PORT", 5672),
		User:      getEnv("RABBITMQ_USER", "guest"),
		Password:  getEnv("RABBITMQ_PASS", "guest"),
		Queue:     getEnv("RABBITMQ_ASSIGN_QUEUE", "assign_jobs"),
		Prefetch:  getEnvInt("RABBITMQ_PREFETCH", 10),
		Consumers: getEnvInt("RABBITMQ_CONSUMERS", 1),
	}
}

// getEnv gets environment variable with fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("90s", "2h") or bare seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
