package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration, loaded once at startup and
// injected into the components that need it.
type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Postgres   PostgresConfig  `yaml:"postgres"`
	Redis      RedisConfig     `yaml:"redis"`
	Kafka      KafkaConfig     `yaml:"kafka"`
	RateLimit  RateLimitConfig `yaml:"ratelimit"`
	Authorizer GatewayConfig   `yaml:"authorizer"`
	Notifier   GatewayConfig   `yaml:"notifier"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// GatewayConfig points at one external HTTP collaborator. TimeoutSeconds
// bounds the whole call; a timed-out call counts as a failure.
type GatewayConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the call timeout with a 5s default.
func (g GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Load reads the yaml file and applies env overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if u := os.Getenv("AUTHORIZER_URL"); u != "" {
		cfg.Authorizer.URL = u
	}
	if u := os.Getenv("NOTIFIER_URL"); u != "" {
		cfg.Notifier.URL = u
	}
	return &cfg, nil
}
