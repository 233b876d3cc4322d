package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultSessionDuration = 24 * time.Hour

type Config struct {
	DatabasePath       string        `yaml:"database_path"`
	Port               string        `yaml:"port"`
	Environment        string        `yaml:"environment"`
	LogLevel           string        `yaml:"log_level"`
	AllowedOrigins     string        `yaml:"allowed_origins"`
	MovementsFile      string        `yaml:"movements_file"`
	SessionDuration    time.Duration `yaml:"session_duration"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	MailgunDomain      string        `yaml:"mailgun_domain"`
	MailgunAPIKey      string        `yaml:"mailgun_api_key"`
	MailgunSenderEmail string        `yaml:"mailgun_sender_email"`
	MailgunSenderName  string        `yaml:"mailgun_sender_name"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. A .env file in the working directory is read
// first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DatabasePath:       "spicywod.db",
		Port:               "8080",
		Environment:        "production",
		LogLevel:           "INFO",
		AllowedOrigins:     "http://localhost:8080",
		SessionDuration:    DefaultSessionDuration,
		SweepInterval:      10 * time.Minute,
		MailgunSenderEmail: "noreply@spicywod.app",
		MailgunSenderName:  "SpicyWOD",
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.DatabasePath = getEnv("DATABASE_PATH", cfg.DatabasePath)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.AllowedOrigins = getEnv("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.MovementsFile = getEnv("MOVEMENTS_FILE", cfg.MovementsFile)
	cfg.MailgunDomain = getEnv("MAILGUN_DOMAIN", cfg.MailgunDomain)
	cfg.MailgunAPIKey = getEnv("MAILGUN_API_KEY", cfg.MailgunAPIKey)
	cfg.MailgunSenderEmail = getEnv("MAILGUN_SENDER_EMAIL", cfg.MailgunSenderEmail)
	cfg.MailgunSenderName = getEnv("MAILGUN_SENDER_NAME", cfg.MailgunSenderName)

	if v := os.Getenv("SESSION_DURATION_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			cfg.SessionDuration = time.Duration(hours) * time.Hour
		}
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SweepInterval = d
		}
	}
}

func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.SessionDuration <= 0 {
		return fmt.Errorf("session duration must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
