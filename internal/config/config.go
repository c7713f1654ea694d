package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	MySQLDSN  string `yaml:"mysql_dsn"`
	RedisAddr string `yaml:"redis_addr"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
		GroupID string   `yaml:"group_id"`
	} `yaml:"kafka"`

	JWTSecret string            `yaml:"jwt_secret"`
	Accounts  map[string]string `yaml:"accounts"`

	WorkerCount int `yaml:"worker_count"`

	PurchaseRatePerMinute float64 `yaml:"purchase_rate_per_minute"`
	PurchaseRateBurst     int     `yaml:"purchase_rate_burst"`
}

// Load reads the yaml file named by CONFIG_PATH (optional) and applies env
// overrides for the connection settings. Defaults suit a local
// docker-compose stack.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:              ":8080",
		MySQLDSN:              "root:root@tcp(localhost:3306)/ticketrush?parseTime=true",
		RedisAddr:             "localhost:6379",
		JWTSecret:             "ticket-rush-secret",
		WorkerCount:           10,
		PurchaseRatePerMinute: 600,
		PurchaseRateBurst:     20,
		Accounts: map[string]string{
			"demo": "demo",
		},
	}
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.Topic = "ticket.purchase"
	cfg.Kafka.GroupID = "ticket-rush-commit"

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.MySQLDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = []string{v}
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}

	if cfg.WorkerCount <= 0 {
		return nil, fmt.Errorf("worker_count must be positive, got %d", cfg.WorkerCount)
	}
	return cfg, nil
}
