package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadServerConfigDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := LoadServerConfig(root)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Environment != "dev" {
		t.Fatalf("environment = %q", cfg.Environment)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.StorageDriver != "sqlite" {
		t.Fatalf("storage driver = %q", cfg.StorageDriver)
	}
	if cfg.InitialCredits != 25 {
		t.Fatalf("initial credits = %d", cfg.InitialCredits)
	}
	if cfg.RateLimitRPS != 10 || cfg.RateLimitBurst != 20 {
		t.Fatalf("rate limit = %v rps / %d burst", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoadServerConfigLayering(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "config", "setting.ini"), `
environment = prod
listen_addr = :9000
log_level = debug
`)
	writeFile(t, filepath.Join(root, "config", "prod", "onelab.ini"), `
listen_addr = :9100
storage_driver = postgres
database_dsn = postgres://onelab@db/onelab
rate_limit_rps = 2.5
initial_credits = 50
`)

	cfg, err := LoadServerConfig(root)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Environment != "prod" {
		t.Fatalf("environment = %q", cfg.Environment)
	}
	// Env-specific file wins over settings defaults.
	if cfg.ListenAddr != ":9100" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.StorageDriver != "postgres" || cfg.DatabaseDSN == "" {
		t.Fatalf("storage = %q dsn = %q", cfg.StorageDriver, cfg.DatabaseDSN)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("rate limit rps = %v", cfg.RateLimitRPS)
	}
	if cfg.InitialCredits != 50 {
		t.Fatalf("initial credits = %d", cfg.InitialCredits)
	}
}

func TestLoadServerConfigEnvOverride(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "config", "setting.ini"), "listen_addr = :9000\n")

	t.Setenv("ONELAB_LISTEN_ADDR", ":7777")
	t.Setenv("ONELAB_AUTH_SECRET", "from-env")

	cfg, err := LoadServerConfig(root)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.ListenAddr != ":7777" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.AuthSecret != "from-env" {
		t.Fatalf("auth secret = %q", cfg.AuthSecret)
	}
}

func TestLoadServerConfigRejectsBadDriver(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "config", "setting.ini"), "storage_driver = oracle\n")
	if _, err := LoadServerConfig(root); err == nil {
		t.Fatal("invalid driver accepted")
	}
}

func TestLoadServerConfigPostgresNeedsDSN(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "config", "setting.ini"), "storage_driver = postgres\n")
	if _, err := LoadServerConfig(root); err == nil {
		t.Fatal("postgres without dsn accepted")
	}
}

func TestLoadCatalogDefaults(t *testing.T) {
	cat, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if cat.ToolCosts["roadmap"] != 5 || cat.ToolCosts["pitch_deck"] != 15 {
		t.Fatalf("tool costs = %v", cat.ToolCosts)
	}
	if _, ok := cat.FindPackage("starter"); !ok {
		t.Fatal("starter package missing")
	}
	unlimited, ok := cat.FindPackage("unlimited")
	if !ok || !unlimited.Unlimited {
		t.Fatalf("unlimited package = %+v ok=%v", unlimited, ok)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, `
tool_costs:
  roadmap: 7
packages:
  - id: mega
    credits: 1000
    price_usd: 49
`)

	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if cat.ToolCosts["roadmap"] != 7 {
		t.Fatalf("roadmap cost = %d", cat.ToolCosts["roadmap"])
	}
	// Tools left out keep their defaults.
	if cat.ToolCosts["prd"] != 10 {
		t.Fatalf("prd cost = %d", cat.ToolCosts["prd"])
	}
	if _, ok := cat.FindPackage("mega"); !ok {
		t.Fatal("mega package missing")
	}
	if _, ok := cat.FindPackage("starter"); ok {
		t.Fatal("defaults leaked into explicit package list")
	}
}

func TestLoadCatalogRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"unknown tool": "tool_costs:\n  mystery: 5\n",
		"free tool":    "tool_costs:\n  roadmap: 0\n",
		"package without id": `
packages:
  - credits: 100
    price_usd: 9
`,
		"package without credits": `
packages:
  - id: empty
    price_usd: 9
`,
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		writeFile(t, path, content)
		if _, err := LoadCatalog(path); err == nil {
			t.Fatalf("%s accepted", name)
		}
	}
}
