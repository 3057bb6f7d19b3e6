package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testYAML = `server:
  host: "127.0.0.1"
  port: 3000
  mode: "release"
  trust_request_id: true
  max_page_size: 50
  cors:
    allow_origins: ["http://app.example.com"]
    max_age: "12h"
database:
  driver: "postgres"
  sqlite:
    path: "data/test.db"
  postgres:
    host: "db.example.com"
    port: 5433
    user: "admin"
    password: "secret"
    dbname: "testdb"
    sslmode: "require"
  pool:
    max_idle_conns: 5
    max_open_conns: 50
    conn_max_lifetime: "30m"
  seed_file: " configs/db.json "
  auto_migrate: false
log:
  level: "info"
  format: "json"
  output: "stderr"
client:
  base_url: "http://api.example.com:8080/v1"
  timeout: "3s"
  page_size: 25
  latency: "150ms"
  discard_stale: true
`

const minimalServerYAML = `server:
  host: "0.0.0.0"
  port: 8080
  mode: "debug"
database:
  driver: "sqlite"
  sqlite:
    path: "data/app.db"
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_FullYAML(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, testYAML))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 3000 || cfg.Server.Mode != "release" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if !cfg.Server.TrustRequestID {
		t.Error("Server.TrustRequestID = false, want true")
	}
	if cfg.Server.MaxPageSize != 50 {
		t.Errorf("Server.MaxPageSize = %d, want 50", cfg.Server.MaxPageSize)
	}
	if got := cfg.Server.CORS.AllowOrigins; len(got) != 1 || got[0] != "http://app.example.com" {
		t.Errorf("Server.CORS.AllowOrigins = %v", got)
	}
	if got := cfg.Server.ShutdownTimeoutDuration(); got != 5*time.Second {
		t.Errorf("ShutdownTimeoutDuration() = %v, want default 5s", got)
	}

	// Database
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "postgres")
	}
	if cfg.Database.Postgres.Host != "db.example.com" || cfg.Database.Postgres.Port != 5433 {
		t.Errorf("Postgres = %+v", cfg.Database.Postgres)
	}
	if cfg.Database.Pool.MaxOpenConns != 50 || cfg.Database.Pool.ConnMaxLifetime != "30m" {
		t.Errorf("Pool = %+v", cfg.Database.Pool)
	}
	if cfg.Database.SeedFile != "configs/db.json" {
		t.Errorf("Database.SeedFile = %q, want trimmed path", cfg.Database.SeedFile)
	}
	if cfg.Database.ShouldAutoMigrate() {
		t.Error("ShouldAutoMigrate() = true, want false")
	}

	// Log
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" || cfg.Log.Output != "stderr" {
		t.Errorf("Log = %+v", cfg.Log)
	}

	// Client
	if cfg.Client.BaseURL != "http://api.example.com:8080/v1" {
		t.Errorf("Client.BaseURL = %q", cfg.Client.BaseURL)
	}
	if cfg.Client.TimeoutDuration() != 3*time.Second {
		t.Errorf("Client.TimeoutDuration() = %v, want 3s", cfg.Client.TimeoutDuration())
	}
	if cfg.Client.LatencyDuration() != 150*time.Millisecond {
		t.Errorf("Client.LatencyDuration() = %v, want 150ms", cfg.Client.LatencyDuration())
	}
	if cfg.Client.PageSize != 25 || !cfg.Client.DiscardStale {
		t.Errorf("Client = %+v", cfg.Client)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, minimalServerYAML))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("Server.ShutdownTimeout = %q, want %q", cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if !cfg.Database.ShouldAutoMigrate() {
		t.Error("ShouldAutoMigrate() = false, want true by default")
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat || cfg.Log.Output != DefaultLogOutput {
		t.Errorf("Log = %+v, want defaults", cfg.Log)
	}
	if cfg.Client.BaseURL != DefaultClientBaseURL || cfg.Client.PageSize != DefaultClientPageSize {
		t.Errorf("Client = %+v, want defaults", cfg.Client)
	}
	if cfg.Client.TimeoutDuration() != 10*time.Second {
		t.Errorf("Client.TimeoutDuration() = %v, want 10s", cfg.Client.TimeoutDuration())
	}
	if cfg.Client.LatencyDuration() != 0 {
		t.Errorf("Client.LatencyDuration() = %v, want 0", cfg.Client.LatencyDuration())
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeTestConfig(t, testYAML)

	t.Setenv("APP__SERVER__PORT", "9090")
	t.Setenv("APP__DATABASE__DRIVER", "sqlite")
	t.Setenv("APP__LOG__LEVEL", "error")

	// Keys containing underscores keep them; only __ separates levels.
	t.Setenv("APP__DATABASE__POOL__MAX_IDLE_CONNS", "20")
	t.Setenv("APP__CLIENT__BASE_URL", "https://users.example.com")
	t.Setenv("APP__CLIENT__DISCARD_STALE", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d (env override)", cfg.Server.Port, 9090)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q (env override)", cfg.Database.Driver, "sqlite")
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want %q (env override)", cfg.Log.Level, "error")
	}
	if cfg.Database.Pool.MaxIdleConns != 20 {
		t.Errorf("Pool.MaxIdleConns = %d, want %d (env override)", cfg.Database.Pool.MaxIdleConns, 20)
	}
	if cfg.Client.BaseURL != "https://users.example.com" {
		t.Errorf("Client.BaseURL = %q (env override)", cfg.Client.BaseURL)
	}
	if cfg.Client.DiscardStale {
		t.Error("Client.DiscardStale = true, want false (env override)")
	}

	// Non-overridden values should remain from YAML.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q (unchanged)", cfg.Server.Host, "127.0.0.1")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "invalid mode",
			yaml:    strings.Replace(minimalServerYAML, `mode: "debug"`, `mode: "production"`, 1),
			wantErr: "invalid server.mode",
		},
		{
			name:    "port out of range",
			yaml:    strings.Replace(minimalServerYAML, "port: 8080", "port: 70000", 1),
			wantErr: "invalid server.port",
		},
		{
			name:    "blank host",
			yaml:    strings.Replace(minimalServerYAML, `host: "0.0.0.0"`, `host: "   "`, 1),
			wantErr: "server.host is required",
		},
		{
			name:    "negative max page size",
			yaml:    strings.Replace(minimalServerYAML, "port: 8080", "port: 8080\n  max_page_size: -1", 1),
			wantErr: "server.max_page_size",
		},
		{
			name:    "bad shutdown timeout",
			yaml:    strings.Replace(minimalServerYAML, `mode: "debug"`, "mode: \"debug\"\n  shutdown_timeout: \"0s\"", 1),
			wantErr: "server.shutdown_timeout",
		},
		{
			name:    "unsupported driver",
			yaml:    strings.Replace(minimalServerYAML, `driver: "sqlite"`, `driver: "mysql"`, 1),
			wantErr: "invalid database.driver",
		},
		{
			name:    "sqlite without path",
			yaml:    strings.Replace(minimalServerYAML, `path: "data/app.db"`, `path: ""`, 1),
			wantErr: "database.sqlite.path is required",
		},
		{
			name:    "invalid log level",
			yaml:    minimalServerYAML + "log:\n  level: \"verbose\"\n",
			wantErr: "invalid log.level",
		},
		{
			name:    "invalid log format",
			yaml:    minimalServerYAML + "log:\n  format: \"xml\"\n",
			wantErr: "invalid log.format",
		},
		{
			name:    "invalid log output",
			yaml:    minimalServerYAML + "log:\n  output: \"syslog\"\n",
			wantErr: "invalid log.output",
		},
		{
			name:    "relative client base url",
			yaml:    minimalServerYAML + "client:\n  base_url: \"localhost:8080\"\n",
			wantErr: "invalid client.base_url",
		},
		{
			name:    "negative latency",
			yaml:    minimalServerYAML + "client:\n  latency: \"-1s\"\n",
			wantErr: "invalid client.latency",
		},
		{
			name:    "negative page size",
			yaml:    minimalServerYAML + "client:\n  page_size: -5\n",
			wantErr: "invalid client.page_size",
		},
		{
			name:    "zero client timeout",
			yaml:    minimalServerYAML + "client:\n  timeout: \"0s\"\n",
			wantErr: "client.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTestConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %q, want contains %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_PostgresValidation(t *testing.T) {
	base := `server:
  host: "127.0.0.1"
  port: 8080
  mode: "%MODE%"
database:
  driver: "postgres"
  postgres:
    host: "%HOST%"
    port: 5432
    user: "app"
    dbname: "users"
    sslmode: "%SSL%"
`
	render := func(mode, host, ssl string) string {
		return strings.NewReplacer("%MODE%", mode, "%HOST%", host, "%SSL%", ssl).Replace(base)
	}

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"valid debug", render("debug", "db", "disable"), ""},
		{"valid release", render("release", "db", "verify-full"), ""},
		{"missing host", render("debug", " ", "disable"), "database.postgres.host is required"},
		{"unknown sslmode", render("debug", "db", "maybe"), "invalid database.postgres.sslmode"},
		{"plaintext in release", render("release", "db", "disable"), "for server.mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTestConfig(t, tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Load() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want contains %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadClient_IgnoresServerSections(t *testing.T) {
	path := writeTestConfig(t, `server:
  mode: "bogus"
client:
  base_url: "http://127.0.0.1:9000"
  page_size: 5
`)

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient() error: %v", err)
	}
	if cfg.Client.BaseURL != "http://127.0.0.1:9000" || cfg.Client.PageSize != 5 {
		t.Errorf("Client = %+v", cfg.Client)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want default", cfg.Log.Level)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() should reject the same file")
	}
}

func TestLoadClient_EnvOnly(t *testing.T) {
	t.Setenv("APP__CLIENT__PAGE_SIZE", "7")
	t.Setenv("APP__LOG__OUTPUT", "discard")

	cfg, err := LoadClient("")
	if err != nil {
		t.Fatalf("LoadClient() error: %v", err)
	}
	if cfg.Client.PageSize != 7 {
		t.Errorf("Client.PageSize = %d, want 7", cfg.Client.PageSize)
	}
	if cfg.Client.BaseURL != DefaultClientBaseURL {
		t.Errorf("Client.BaseURL = %q, want default", cfg.Client.BaseURL)
	}
	if cfg.Log.Output != "discard" {
		t.Errorf("Log.Output = %q, want discard", cfg.Log.Output)
	}
}

func TestLoadClient_InvalidClient(t *testing.T) {
	path := writeTestConfig(t, "client:\n  base_url: \"ftp://files.example.com\"\n")
	if _, err := LoadClient(path); err == nil {
		t.Fatal("LoadClient() expected error for ftp base url")
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error for shipped config: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Client.PageSize != 10 {
		t.Errorf("Client.PageSize = %d, want 10", cfg.Client.PageSize)
	}
}
