package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Addr            string        `yaml:"addr"`
	JWTSecret       string        `yaml:"jwt_secret"`
	APITimeout      time.Duration `yaml:"timeout"`
	DatabasePath    string        `yaml:"database_path"`
	TokenDuration   time.Duration `yaml:"token_duration"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	OTP             OTPConfig     `yaml:"otp"`
	Uploads         UploadConfig  `yaml:"uploads"`
	Forms           FormsConfig   `yaml:"forms"`
	Workers         WorkerConfig  `yaml:"workers"`
	Mail            MailConfig    `yaml:"mail"`
}

type OTPConfig struct {
	// Window is how long a sent code stays valid.
	Window time.Duration `yaml:"window"`
	// VerificationTTL bounds the verification token issued after a match.
	VerificationTTL time.Duration `yaml:"verification_ttl"`
	// Store selects the code store: "sqlite" or "redis".
	Store    string `yaml:"store"`
	RedisURL string `yaml:"redis_url"`
}

type UploadConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
	PDFOnly  bool   `yaml:"pdf_only"`
}

type FormsConfig struct {
	EnforceConstraints bool `yaml:"enforce_constraints"`
	// EditorVariant is "full" or "basic".
	EditorVariant string `yaml:"editor_variant"`
}

// MailConfig selects how notification emails leave the service. With an
// empty WebhookURL messages are only logged.
type MailConfig struct {
	From       string `yaml:"from"`
	WebhookURL string `yaml:"webhook_url"`
}

type WorkerConfig struct {
	Count       int `yaml:"count"`
	MaxAttempts int `yaml:"max_attempts"`
}

// LoadConfig builds the configuration from defaults, the environment (a .env
// file in the working directory is honoured) and an optional YAML file.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Addr:            getEnv("RECRUIT_ADDR", ":8080"),
		JWTSecret:       getEnv("RECRUIT_JWT_SECRET", insecureJWTSecret),
		APITimeout:      15 * time.Second,
		DatabasePath:    getEnv("RECRUIT_DATABASE_PATH", "recruit.db"),
		TokenDuration:   1 * time.Hour,
		CleanupInterval: 10 * time.Minute,
		OTP: OTPConfig{
			Window:          5 * time.Minute,
			VerificationTTL: 30 * time.Minute,
			Store:           getEnv("RECRUIT_OTP_STORE", "sqlite"),
			RedisURL:        getEnv("RECRUIT_REDIS_URL", ""),
		},
		Uploads: UploadConfig{
			Dir:      getEnv("RECRUIT_UPLOAD_DIR", "uploads"),
			MaxBytes: 5 << 20,
		},
		Forms: FormsConfig{
			EnforceConstraints: true,
			EditorVariant:      "full",
		},
		Workers: WorkerConfig{Count: 2, MaxAttempts: 3},
		Mail: MailConfig{
			From:       getEnv("RECRUIT_MAIL_FROM", "no-reply@recruit.local"),
			WebhookURL: getEnv("RECRUIT_MAIL_WEBHOOK_URL", ""),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks the configuration and fills zero values with defaults.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.JWTSecret == insecureJWTSecret && os.Getenv("RECRUIT_ENV") != "development" {
		return errors.New("insecure default jwt_secret; set RECRUIT_JWT_SECRET or RECRUIT_ENV=development")
	}
	if c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 10 * time.Minute
	}
	if c.OTP.Window < time.Second {
		return fmt.Errorf("otp.window must be at least 1s, got %v", c.OTP.Window)
	}
	if c.OTP.VerificationTTL <= 0 {
		c.OTP.VerificationTTL = 30 * time.Minute
	}
	switch c.OTP.Store {
	case "", "sqlite":
		c.OTP.Store = "sqlite"
	case "redis":
		if c.OTP.RedisURL == "" {
			return errors.New("otp.redis_url is required when otp.store is redis")
		}
	default:
		return fmt.Errorf("unknown otp.store %q", c.OTP.Store)
	}
	if c.Uploads.MaxBytes <= 0 {
		c.Uploads.MaxBytes = 5 << 20
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	switch c.Forms.EditorVariant {
	case "":
		c.Forms.EditorVariant = "full"
	case "full", "basic":
	default:
		return fmt.Errorf("unknown forms.editor_variant %q", c.Forms.EditorVariant)
	}
	if c.Workers.Count <= 0 {
		c.Workers.Count = 2
	}
	if c.Workers.MaxAttempts <= 0 {
		c.Workers.MaxAttempts = 3
	}
	if c.Mail.From == "" {
		c.Mail.From = "no-reply@recruit.local"
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
