package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database       DatabaseConfig
	Log            LogConfig
	Scanner        ScannerConfig
	Recalc         RecalcConfig
	AllowedOrigins []string
}

// DatabaseConfig locates the embedded database file.
type DatabaseConfig struct {
	Path        string
	BusyTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// ScannerConfig bounds how long an attendance scan may wait for the
// per-student lock before it is reported as a timeout.
type ScannerConfig struct {
	LockTimeout time.Duration
}

// RecalcConfig controls the background payment-status recalculation.
type RecalcConfig struct {
	Interval   time.Duration
	MaxRetries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Path:        v.GetString("DB_PATH"),
		BusyTimeout: parseDuration(v.GetString("DB_BUSY_TIMEOUT"), 5*time.Second),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scanner = ScannerConfig{
		LockTimeout: parseDuration(v.GetString("SCANNER_LOCK_TIMEOUT"), 5*time.Second),
	}

	cfg.Recalc = RecalcConfig{
		Interval:   parseDuration(v.GetString("RECALC_INTERVAL"), 6*time.Hour),
		MaxRetries: v.GetInt("RECALC_MAX_RETRIES"),
	}

	cfg.AllowedOrigins = splitAndTrim(v.GetString("ALLOWED_ORIGINS"))

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8140)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_PATH", defaultDatabasePath())
	v.SetDefault("DB_BUSY_TIMEOUT", "5s")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCANNER_LOCK_TIMEOUT", "5s")

	v.SetDefault("RECALC_INTERVAL", "6h")
	v.SetDefault("RECALC_MAX_RETRIES", 3)

	// The desktop shell serves the UI from a custom scheme, so the
	// command surface stays permissive on localhost by default.
	v.SetDefault("ALLOWED_ORIGINS", "")
}

func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "markaz.db"
	}
	return filepath.Join(dir, "markaz", "markaz.db")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
