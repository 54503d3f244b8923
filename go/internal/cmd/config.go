package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the yaml service configuration. Connection settings stay in the
// environment; the file describes what this instance runs.
type Config struct {
	Service struct {
		Name       string `yaml:"name"`
		HealthAddr string `yaml:"health_addr"`
	} `yaml:"service"`

	Consumers struct {
		Enabled []string `yaml:"enabled"`
	} `yaml:"consumers"`

	Outbox struct {
		PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
		BatchSize           int  `yaml:"batch_size"`
		UseListener         bool `yaml:"use_listener"`
	} `yaml:"outbox"`

	Ledger struct {
		RetentionDays        int `yaml:"retention_days"`
		CleanupIntervalHours int `yaml:"cleanup_interval_hours"`
	} `yaml:"ledger"`

	Idempotency struct {
		RecordPermanentFailures *bool `yaml:"record_permanent_failures"`
	} `yaml:"idempotency"`
}

func defaultConfig() *Config {
	var config Config
	config.Service.Name = "activity_service"
	config.Service.HealthAddr = ":8081"
	config.Consumers.Enabled = []string{"patient", "patient-allocation", "drift"}
	config.Outbox.UseListener = true
	config.Ledger.RetentionDays = 30
	config.Ledger.CleanupIntervalHours = 6
	return &config
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Service.Name == "" {
		config.Service.Name = "activity_service"
	}
	if config.Service.HealthAddr == "" {
		config.Service.HealthAddr = ":8081"
	}
	if config.Ledger.RetentionDays <= 0 {
		config.Ledger.RetentionDays = 30
	}
	if config.Ledger.CleanupIntervalHours <= 0 {
		config.Ledger.CleanupIntervalHours = 6
	}

	return config, nil
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
