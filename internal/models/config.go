package models

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr string          `yaml:"server_addr"`
	PublicURL  string          `yaml:"public_url"`
	DataDir    string          `yaml:"data_dir"`
	UploadDir  string          `yaml:"upload_dir"`
	ProfileDir string          `yaml:"profile_dir"`
	MaxUpload  int64           `yaml:"max_upload_bytes"`
	Auth       AuthConfig      `yaml:"auth"`
	Kafka      KafkaConfig     `yaml:"kafka"`
	Log        LogConfig       `yaml:"log"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type AuthConfig struct {
	SecretKey  string        `yaml:"secret_key"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	EventsTopic string   `yaml:"events_topic"`
	JobsTopic   string   `yaml:"jobs_topic"`
	GroupID     string   `yaml:"group_id"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

func DefaultConfig() Config {
	return Config{
		ServerAddr: ":3000",
		PublicURL:  "http://localhost:3000",
		DataDir:    "data",
		UploadDir:  "uploads",
		ProfileDir: "profile",
		MaxUpload:  10 << 20,
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 10,
		},
		Kafka: KafkaConfig{
			EventsTopic: "photohub-events",
			JobsTopic:   "photohub-filter-jobs",
			GroupID:     "photohub-filters",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Requests: 10,
			Window:   time.Minute,
		},
	}
}

// LoadConfig reads defaults, then the YAML file at path (if present), then
// a .env file and process environment overrides.
func LoadConfig(path string) (*Config, error) {
	const op = "models.LoadConfig"

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: .env: %w", op, err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("APP_PORT"); v != "" {
		c.ServerAddr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("PUBLIC_URL"); v != "" {
		c.PublicURL = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		c.UploadDir = v
	}
	if v := os.Getenv("PROFILE_DIR"); v != "" {
		c.ProfileDir = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		c.Auth.SecretKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return errors.New("auth secret key is required (SECRET_KEY)")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth token ttl must be positive")
	}
	if c.DataDir == "" || c.UploadDir == "" || c.ProfileDir == "" {
		return errors.New("data, upload and profile directories are required")
	}
	if c.MaxUpload <= 0 {
		return errors.New("max upload size must be positive")
	}
	if c.Kafka.Enabled() && (c.Kafka.EventsTopic == "" || c.Kafka.JobsTopic == "") {
		return errors.New("kafka topics are required when brokers are set")
	}
	return nil
}
