package rabbitmq

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds broker connection settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	VirtualHost string
	Heartbeat   time.Duration

	// ServiceName identifies this client in envelopes and message ids.
	ServiceName string

	// PrefetchCount limits unacked deliveries per consumer channel.
	PrefetchCount int
}

// NewConfigFromEnv builds a Config from RABBITMQ_* environment variables.
func NewConfigFromEnv(serviceName string) Config {
	return Config{
		Host:          getEnv("RABBITMQ_HOST", "localhost"),
		Port:          getEnvAsInt("RABBITMQ_PORT", 5672),
		Username:      getEnv("RABBITMQ_USER", "guest"),
		Password:      getEnv("RABBITMQ_PASS", "guest"),
		VirtualHost:   getEnv("RABBITMQ_VIRTUAL_HOST", "/"),
		Heartbeat:     30 * time.Second,
		ServiceName:   serviceName,
		PrefetchCount: 1,
	}
}

// URL returns the amqp:// connection URL. The default vhost "/" maps to an
// empty path segment per the AMQP URI spec.
func (c Config) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
	}
	if c.VirtualHost != "" && c.VirtualHost != "/" {
		u.Path = "/" + c.VirtualHost
	}
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
