// Package bootstrap scaffolds the on-disk configuration layout used by the
// daemon: config/setting.ini plus a per-environment onelab.ini.
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InitOptions configures config file generation.
type InitOptions struct {
	Root          string
	Environment   string
	ListenAddr    string
	StorageDriver string
	SQLitePath    string
	AuthSecret    string
	WebhookSecret string
	Force         bool
}

// Init scaffolds configuration files, refusing to overwrite existing ones
// unless Force is set.
func Init(opts InitOptions) error {
	applyDefaults(&opts)
	if err := Validate(opts); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(opts.Root, "config", opts.Environment), 0o755); err != nil {
		return err
	}

	settingPath := filepath.Join(opts.Root, "config", "setting.ini")
	if err := writeFile(settingPath, settingTemplate(opts), opts.Force); err != nil {
		return err
	}

	serverPath := filepath.Join(opts.Root, "config", opts.Environment, "onelab.ini")
	return writeFile(serverPath, serverTemplate(opts), opts.Force)
}

// Validate checks option consistency without touching the filesystem.
func Validate(opts InitOptions) error {
	applyDefaults(&opts)
	switch opts.StorageDriver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("invalid storage driver %q", opts.StorageDriver)
	}
	if strings.ContainsAny(opts.Environment, "/\\ ") {
		return errors.New("environment must be a plain directory name")
	}
	return nil
}

func applyDefaults(opts *InitOptions) {
	if strings.TrimSpace(opts.Root) == "" {
		opts.Root = "."
	}
	if strings.TrimSpace(opts.Environment) == "" {
		opts.Environment = "dev"
	}
	if strings.TrimSpace(opts.ListenAddr) == "" {
		opts.ListenAddr = ":8080"
	}
	if strings.TrimSpace(opts.StorageDriver) == "" {
		opts.StorageDriver = "sqlite"
	}
	if strings.TrimSpace(opts.SQLitePath) == "" {
		opts.SQLitePath = "data/onelab.db"
	}
	if strings.TrimSpace(opts.AuthSecret) == "" {
		opts.AuthSecret = "onelab-dev-secret"
	}
	if strings.TrimSpace(opts.WebhookSecret) == "" {
		opts.WebhookSecret = "onelab-dev-webhook-secret"
	}
}

func writeFile(path, contents string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}

func settingTemplate(opts InitOptions) string {
	return fmt.Sprintf(`# OneLab server settings
environment=%s
`, opts.Environment)
}

func serverTemplate(opts InitOptions) string {
	return fmt.Sprintf(`# Environment specific overrides for %s
listen_addr=%s
storage_driver=%s
sqlite_path=%s
# database_dsn=postgres://onelab@localhost/onelab?sslmode=disable
auth_secret=%s
webhook_secret=%s
log_level=info
# Dash '-' disables file output.
log_file=logs/onelabd.log
rate_limit_rps=10
rate_limit_burst=20
initial_credits=25
# catalog_path=config/catalog.yaml
# openai_api_key=
`, opts.Environment, opts.ListenAddr, opts.StorageDriver, opts.SQLitePath, opts.AuthSecret, opts.WebhookSecret)
}
