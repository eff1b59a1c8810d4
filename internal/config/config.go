package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration shared by hmpd, hmpadm and hmp.
type Config struct {
	// Server side
	DBPath          string        `yaml:"db_path"`
	Addr            string        `yaml:"addr"`
	JWTAccessSecret string        `yaml:"jwt_access_secret"`
	JWTAccessTTL    time.Duration `yaml:"jwt_access_ttl"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MaxImportMB     int           `yaml:"max_import_mb" validate:"min=1"`
	Timezone        string        `yaml:"timezone"`
	WorkHoursStart  string        `yaml:"work_hours_start" validate:"omitempty,len=5"`
	WorkHoursEnd    string        `yaml:"work_hours_end" validate:"omitempty,len=5"`

	// Client side
	LocalPath      string `yaml:"local_path"`
	APIBase        string `yaml:"api_base" validate:"omitempty,url"`
	Mode           string `yaml:"mode"`
	PushDebounceMS int    `yaml:"push_debounce_ms" validate:"min=0"`

	LogLevel string `yaml:"log_level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Output   string `yaml:"output" validate:"omitempty,oneof=table json yaml"`
}

// PushDebounce returns the push debounce window as a duration.
func (c *Config) PushDebounce() time.Duration {
	return time.Duration(c.PushDebounceMS) * time.Millisecond
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/hmp/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		Addr:           "127.0.0.1:3001",
		JWTAccessTTL:   15 * time.Minute,
		MaxImportMB:    50,
		Timezone:       "America/New_York",
		WorkHoursStart: "08:00",
		WorkHoursEnd:   "17:00",
		PushDebounceMS: 150,
		LogLevel:       "info",
	}

	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// YAML config is optional
	_ = loadYAMLConfig(cfg)

	if dbPath := getEnvOrFile("HMP_DB_PATH", "HMP_DB_PATH_FILE"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if addr := os.Getenv("HMP_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if secret := getEnvOrFile("HMP_JWT_ACCESS_SECRET", "HMP_JWT_ACCESS_SECRET_FILE"); secret != "" {
		cfg.JWTAccessSecret = strings.TrimSpace(secret)
	}
	if ttl := os.Getenv("HMP_JWT_ACCESS_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid HMP_JWT_ACCESS_TTL %q: %w", ttl, err)
		}
		cfg.JWTAccessTTL = d
	}
	if origins := os.Getenv("HMP_CORS_ORIGIN"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	if v := os.Getenv("HMP_MAX_IMPORT_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HMP_MAX_IMPORT_MB %q: %w", v, err)
		}
		cfg.MaxImportMB = n
	}
	if tz := os.Getenv("HMP_TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}
	if localPath := os.Getenv("HMP_LOCAL_PATH"); localPath != "" {
		cfg.LocalPath = localPath
	}
	if apiBase := os.Getenv("HMP_API_BASE"); apiBase != "" {
		cfg.APIBase = apiBase
	}
	if mode := os.Getenv("HMP_MODE"); mode != "" {
		cfg.Mode = mode
	}
	if v := os.Getenv("HMP_PUSH_DEBOUNCE_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HMP_PUSH_DEBOUNCE_MS %q: %w", v, err)
		}
		cfg.PushDebounceMS = n
	}
	if logLevel := os.Getenv("HMP_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = strings.ToLower(logLevel)
	}
	if output := os.Getenv("HMP_OUTPUT"); output != "" {
		cfg.Output = output
	}

	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")

	if cfg.DBPath == "" || cfg.LocalPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir := filepath.Join(homeDir, ".local", "share", "hmp")
		if cfg.DBPath == "" {
			cfg.DBPath = filepath.Join(dataDir, "hmp.db")
		}
		if cfg.LocalPath == "" {
			cfg.LocalPath = filepath.Join(dataDir, "local.db")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAMLConfig loads configuration from ~/.config/hmp/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "hmp", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return string(data)
		}
	}

	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
