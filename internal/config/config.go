// Package config loads runtime options from layered INI files with
// ONELAB_* environment overrides. config/setting.ini selects the active
// environment and holds defaults; config/<env>/onelab.ini overrides them.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	settingsFile     = "config/setting.ini"
	defaultEnv       = "dev"
	envConfigPattern = "config/%s/onelab.ini"
)

// Settings contains global toggles such as the active environment.
type Settings struct {
	Environment string
	Defaults    map[string]string
}

// ServerConfig describes runtime options for the daemon.
type ServerConfig struct {
	Environment string
	ListenAddr  string

	// Storage
	StorageDriver string // sqlite|postgres|memory
	DatabaseDSN   string
	SQLitePath    string

	// Secrets
	AuthSecret    string
	WebhookSecret string

	// Upstream generator
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAITimeout time.Duration

	// Observability
	LogFile  string
	LogLevel string

	// Programmatic API limits
	RateLimitRPS   float64
	RateLimitBurst int

	// Ledger
	InitialCredits int

	// Optional YAML catalog with tool costs and credit packages
	CatalogPath string
}

// LoadServerConfig reads the current environment and loads the matching
// config file, applying ONELAB_* environment variable overrides on top.
func LoadServerConfig(root string) (ServerConfig, error) {
	if root == "" {
		root = "."
	}
	s, err := loadSettings(root)
	if err != nil {
		return ServerConfig{}, err
	}

	envValues, err := parseINI(filepath.Join(root, fmt.Sprintf(envConfigPattern, s.Environment)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			envValues = map[string]string{}
		} else {
			return ServerConfig{}, err
		}
	}

	merged := make(map[string]string)
	for k, v := range s.Defaults {
		merged[k] = v
	}
	for k, v := range envValues {
		merged[k] = v
	}

	cfg := ServerConfig{
		Environment:    s.Environment,
		ListenAddr:     firstNonEmpty(os.Getenv("ONELAB_LISTEN_ADDR"), merged["listen_addr"], ":8080"),
		StorageDriver:  strings.ToLower(firstNonEmpty(os.Getenv("ONELAB_STORAGE_DRIVER"), merged["storage_driver"], "sqlite")),
		DatabaseDSN:    firstNonEmpty(os.Getenv("ONELAB_DB_DSN"), merged["database_dsn"]),
		SQLitePath:     firstNonEmpty(os.Getenv("ONELAB_SQLITE_PATH"), merged["sqlite_path"], filepath.Join(root, "data", "onelab.db")),
		AuthSecret:     firstNonEmpty(os.Getenv("ONELAB_AUTH_SECRET"), merged["auth_secret"]),
		WebhookSecret:  firstNonEmpty(os.Getenv("ONELAB_WEBHOOK_SECRET"), merged["webhook_secret"]),
		OpenAIAPIKey:   firstNonEmpty(os.Getenv("ONELAB_OPENAI_API_KEY"), merged["openai_api_key"]),
		OpenAIBaseURL:  firstNonEmpty(os.Getenv("ONELAB_OPENAI_BASE_URL"), merged["openai_base_url"]),
		OpenAIModel:    firstNonEmpty(os.Getenv("ONELAB_OPENAI_MODEL"), merged["openai_model"]),
		LogFile:        firstNonEmpty(os.Getenv("ONELAB_LOG_FILE"), merged["log_file"]),
		LogLevel:       firstNonEmpty(os.Getenv("ONELAB_LOG_LEVEL"), merged["log_level"], "info"),
		RateLimitBurst: parseOptionalInt(firstNonEmpty(os.Getenv("ONELAB_RATE_LIMIT_BURST"), merged["rate_limit_burst"]), 20),
		InitialCredits: parseOptionalInt(firstNonEmpty(os.Getenv("ONELAB_INITIAL_CREDITS"), merged["initial_credits"]), 25),
		CatalogPath:    firstNonEmpty(os.Getenv("ONELAB_CATALOG_PATH"), merged["catalog_path"]),
	}

	switch cfg.StorageDriver {
	case "sqlite", "postgres", "memory":
	default:
		return ServerConfig{}, fmt.Errorf("invalid storage_driver %q", cfg.StorageDriver)
	}
	if cfg.StorageDriver == "postgres" && cfg.DatabaseDSN == "" {
		return ServerConfig{}, errors.New("storage_driver postgres requires database_dsn")
	}

	if v := firstNonEmpty(os.Getenv("ONELAB_RATE_LIMIT_RPS"), merged["rate_limit_rps"]); strings.TrimSpace(v) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("invalid rate_limit_rps %q: %w", v, err)
		}
		cfg.RateLimitRPS = parsed
	} else {
		cfg.RateLimitRPS = 10
	}

	if v := firstNonEmpty(os.Getenv("ONELAB_OPENAI_TIMEOUT"), merged["openai_timeout"]); strings.TrimSpace(v) != "" {
		dur, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return ServerConfig{}, fmt.Errorf("invalid openai_timeout %q: %w", v, err)
		}
		cfg.OpenAITimeout = dur
	}

	return cfg, nil
}

func loadSettings(root string) (Settings, error) {
	values, err := parseINI(filepath.Join(root, settingsFile))
	if errors.Is(err, os.ErrNotExist) {
		return Settings{Environment: defaultEnv, Defaults: map[string]string{}}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	env := values["environment"]
	if env == "" {
		env = defaultEnv
	}
	defaults := make(map[string]string)
	for k, v := range values {
		if k == "environment" {
			continue
		}
		defaults[k] = v
	}
	return Settings{Environment: env, Defaults: defaults}, nil
}

func parseINI(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		values[strings.ToLower(key)] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func parseOptionalInt(v string, fallback int) int {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return parsed
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
