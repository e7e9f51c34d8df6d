// Package config provides structures and loading for the portal configuration.
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the top-level configuration shared by all binaries.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	BaseURL                 string `yaml:"base_url" env:"BASE_URL"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	HTTPServer              `yaml:"http_server"`
	RedisConnection         `yaml:"redis_connection"`
	Session                 `yaml:"session"`
	Stripe                  `yaml:"stripe"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
}

// HTTPServer holds listener settings.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection holds cache connection settings.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"5s"`
}

// Session holds token settings for the auth service.
type Session struct {
	SecretKey     string        `yaml:"secret_key" env:"SESSION_SECRET_KEY"`
	SessionTTL    time.Duration `yaml:"session_ttl" env-default:"24h"`
	ResetTokenTTL time.Duration `yaml:"reset_token_ttl" env-default:"1h"`
}

// Stripe holds payment provider credentials.
type Stripe struct {
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
}

// RabbitMQ holds broker connection settings for notifications.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// SMTP holds outgoing mail settings for the notifier.
type SMTP struct {
	SMTPHost     string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort     string `yaml:"port" env:"SMTP_PORT"`
	SMTPUsername string `yaml:"username" env:"SMTP_USERNAME"`
	SMTPPassword string `yaml:"password" env:"SMTP_PASSWORD"`
	SMTPFrom     string `yaml:"from" env:"SMTP_FROM"`
}

// MustLoad loads the configuration from the file pointed to by CONFIG_PATH.
// It terminates the process on any error.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
