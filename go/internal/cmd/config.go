package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-backed service configuration. Environment variables
// override the file for the database and NATS endpoints so deployments
// can keep secrets out of the file.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Nats struct {
		URL              string `yaml:"url"`
		MaxReconnects    int    `yaml:"max_reconnects"`
		ReconnectWaitSec int    `yaml:"reconnect_wait_sec"`
		SubjectPrefix    string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Session struct {
		DefaultEstimationType string `yaml:"default_estimation_type"`
		DefaultTimeLimitSec   int    `yaml:"default_time_limit_sec"`
	} `yaml:"session"`
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

func defaultConfig() *Config {
	var config Config
	config.Server.Port = "8080"
	config.Nats.URL = "nats://localhost:4222"
	config.Nats.MaxReconnects = -1
	config.Nats.ReconnectWaitSec = 2
	config.Nats.SubjectPrefix = "poker.session"
	config.Session.DefaultEstimationType = "fibonacci"
	config.Session.DefaultTimeLimitSec = 60
	return &config
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.Nats.URL = getEnv("NATS_URL", config.Nats.URL)
	config.Server.Port = getEnv("PORT", config.Server.Port)
	return config, nil
}

func (c *Config) reconnectWait() time.Duration {
	return time.Duration(c.Nats.ReconnectWaitSec) * time.Second
}
