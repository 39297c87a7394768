package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL                 string `yaml:"ttl"`
		QuestionsPerAttempt int    `yaml:"questions_per_attempt"`
		SessionTTL          string `yaml:"session_ttl"`
	} `yaml:"quiz"`
	Auth struct {
		JWTSecret      string   `yaml:"jwt_secret"`
		RefreshSecret  string   `yaml:"refresh_secret"`
		AccessTTL      string   `yaml:"access_ttl"`
		RefreshTTL     string   `yaml:"refresh_ttl"`
		GoogleClientID string   `yaml:"google_client_id"`
		AdminEmails    []string `yaml:"admin_emails"`
	} `yaml:"auth"`
	Uploads struct {
		Dir          string `yaml:"dir"`
		PublicPrefix string `yaml:"public_prefix"`
		AvatarSize   int    `yaml:"avatar_size"`
	} `yaml:"uploads"`
	Leaderboard struct {
		Size int `yaml:"size"`
	} `yaml:"leaderboard"`
	Log struct {
		Level string `yaml:"level"`
		Color bool   `yaml:"color"`
	} `yaml:"log"`
}

// Default is the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Quiz.QuestionsPerAttempt = 10
	cfg.Uploads.Dir = "uploads"
	cfg.Uploads.PublicPrefix = "/uploads"
	cfg.Uploads.AvatarSize = 256
	cfg.Leaderboard.Size = 10
	cfg.Log.Level = "info"
	cfg.Log.Color = true
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file is not
// an error. Values from a .env file and the environment override the file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Postgres.URL, "DATABASE_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.RefreshSecret, "JWT_REFRESH_SECRET")
	setString(&cfg.Auth.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&cfg.Uploads.Dir, "UPLOAD_DIR")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if v, ok := os.LookupEnv("ADMIN_EMAILS"); ok {
		cfg.Auth.AdminEmails = splitList(v)
	}
	if v, ok := os.LookupEnv("LOG_COLOR"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.Color = b
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
