package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level application configuration. The server reads every
// section; the console client only reads log and client.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Client   ClientConfig   `koanf:"client"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string     `koanf:"host"`
	Port            int        `koanf:"port"`
	Mode            string     `koanf:"mode"`
	ShutdownTimeout string     `koanf:"shutdown_timeout"`
	TrustRequestID  bool       `koanf:"trust_request_id"`
	MaxPageSize     int        `koanf:"max_page_size"`
	CORS            CORSConfig `koanf:"cors"`
}

// CORSConfig holds CORS middleware settings.
type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	ExposeHeaders    []string `koanf:"expose_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `koanf:"driver"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Pool     PoolConfig     `koanf:"pool"`
	// SeedFile is a json-server db.json loaded into an empty users table.
	SeedFile string `koanf:"seed_file"`
	// AutoMigrate defaults to true.
	AutoMigrate *bool `koanf:"auto_migrate"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// Output selects the console stream: "stdout", "stderr" or "discard".
	Output          string `koanf:"output"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// ClientConfig holds settings of the console client and its list controller.
type ClientConfig struct {
	BaseURL  string `koanf:"base_url"`
	Timeout  string `koanf:"timeout"`
	PageSize int    `koanf:"page_size"`
	// Latency is an artificial delay added to every remote call.
	Latency string `koanf:"latency"`
	// DiscardStale drops list responses that arrive after a newer fetch was
	// started. Off by default: the last response to arrive wins.
	DiscardStale bool `koanf:"discard_stale"`
}

// Defaults applied by Validate when a field is left empty.
const (
	DefaultShutdownTimeout = "5s"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultLogOutput       = "stdout"
	DefaultClientBaseURL   = "http://localhost:8080"
	DefaultClientTimeout   = "10s"
	DefaultClientPageSize  = 10
)

// Load reads configuration from a YAML file and overlays environment variables,
// then validates every section.
//
// Environment variables use the prefix "APP__" and double-underscore as the
// hierarchy separator. Single underscores are preserved as part of the key name.
// For example, APP__SERVER__PORT=9090 overrides server.port and
// APP__DATABASE__POOL__MAX_IDLE_CONNS=20 overrides database.pool.max_idle_conns.
func Load(configPath string) (*Config, error) {
	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient is Load for the console client: only the log and client sections
// are validated, and an empty configPath means environment variables only.
func LoadClient(configPath string) (*Config, error) {
	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Log.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Client.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// APP__SERVER__PORT -> server.port
	// APP__CLIENT__BASE_URL -> client.base_url
	if err := k.Load(env.Provider("APP__", ".", func(s string) string {
		key := strings.TrimPrefix(s, "APP__")
		key = strings.ToLower(key)
		key = strings.ReplaceAll(key, "__", ".")
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints and supported values, filling in
// defaults for optional fields.
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Database.validate(c.Server.Mode); err != nil {
		return err
	}
	if err := c.Log.validate(); err != nil {
		return err
	}
	return c.Client.validate()
}

func (s *ServerConfig) validate() error {
	mode := strings.TrimSpace(s.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		s.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", s.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", s.Port)
	}

	host := strings.TrimSpace(s.Host)
	if host == "" {
		return fmt.Errorf("server.host is required")
	}
	s.Host = host

	if s.MaxPageSize < 0 {
		return fmt.Errorf("invalid server.max_page_size %d: must not be negative", s.MaxPageSize)
	}

	s.ShutdownTimeout = strings.TrimSpace(s.ShutdownTimeout)
	if s.ShutdownTimeout == "" {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if err := positiveDuration("server.shutdown_timeout", s.ShutdownTimeout); err != nil {
		return err
	}

	s.CORS.MaxAge = strings.TrimSpace(s.CORS.MaxAge)
	if ma := s.CORS.MaxAge; ma != "" {
		if err := positiveDuration("server.cors.max_age", ma); err != nil {
			return err
		}
	}
	return nil
}

// ShutdownTimeoutDuration returns the validated shutdown timeout.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseDurationOr(s.ShutdownTimeout, 5*time.Second)
}

func (d *DatabaseConfig) validate(mode string) error {
	switch d.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of %q, %q", d.Driver, "sqlite", "postgres")
	}

	if d.Driver == "sqlite" {
		sqlitePath := strings.TrimSpace(d.SQLite.Path)
		if sqlitePath == "" {
			return fmt.Errorf("database.sqlite.path is required when driver is sqlite")
		}
		d.SQLite.Path = sqlitePath
	}

	if d.Driver == "postgres" {
		if err := d.Postgres.validate(mode); err != nil {
			return err
		}
	}

	d.SeedFile = strings.TrimSpace(d.SeedFile)
	d.Pool.ConnMaxLifetime = strings.TrimSpace(d.Pool.ConnMaxLifetime)
	if lm := d.Pool.ConnMaxLifetime; lm != "" {
		if err := positiveDuration("database.pool.conn_max_lifetime", lm); err != nil {
			return err
		}
	}
	return nil
}

// ShouldAutoMigrate reports whether the schema is migrated on startup.
func (d DatabaseConfig) ShouldAutoMigrate() bool {
	return d.AutoMigrate == nil || *d.AutoMigrate
}

func (p *PostgresConfig) validate(mode string) error {
	host := strings.TrimSpace(p.Host)
	if host == "" {
		return fmt.Errorf("database.postgres.host is required when driver is postgres")
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("invalid database.postgres.port %d: must be between 1 and 65535", p.Port)
	}
	user := strings.TrimSpace(p.User)
	if user == "" {
		return fmt.Errorf("database.postgres.user is required when driver is postgres")
	}
	dbName := strings.TrimSpace(p.DBName)
	if dbName == "" {
		return fmt.Errorf("database.postgres.dbname is required when driver is postgres")
	}

	sslMode := strings.TrimSpace(p.SSLMode)
	switch sslMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("invalid database.postgres.sslmode %q: must be one of %q, %q, %q, %q, %q, %q", p.SSLMode, "disable", "allow", "prefer", "require", "verify-ca", "verify-full")
	}
	if mode == gin.ReleaseMode {
		switch sslMode {
		case "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %q, %q, %q", p.SSLMode, gin.ReleaseMode, "require", "verify-ca", "verify-full")
		}
	}

	p.Host = host
	p.User = user
	p.DBName = dbName
	p.SSLMode = sslMode
	return nil
}

func (l *LogConfig) validate() error {
	level := strings.ToLower(strings.TrimSpace(l.Level))
	if level == "" {
		level = DefaultLogLevel
	}
	switch level {
	case "debug", "info", "warn", "error":
		l.Level = level
	default:
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q", l.Level, "debug", "info", "warn", "error")
	}

	format := strings.ToLower(strings.TrimSpace(l.Format))
	if format == "" {
		format = DefaultLogFormat
	}
	switch format {
	case "text", "json":
		l.Format = format
	default:
		return fmt.Errorf("invalid log.format %q: must be one of %q, %q", l.Format, "text", "json")
	}

	output := strings.ToLower(strings.TrimSpace(l.Output))
	if output == "" {
		output = DefaultLogOutput
	}
	switch output {
	case "stdout", "stderr", "discard":
		l.Output = output
	default:
		return fmt.Errorf("invalid log.output %q: must be one of %q, %q, %q", l.Output, "stdout", "stderr", "discard")
	}
	return nil
}

func (c *ClientConfig) validate() error {
	baseURL := strings.TrimSpace(c.BaseURL)
	if baseURL == "" {
		baseURL = DefaultClientBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid client.base_url %q: %w", c.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid client.base_url %q: must be an absolute http or https URL", c.BaseURL)
	}
	c.BaseURL = baseURL

	c.Timeout = strings.TrimSpace(c.Timeout)
	if c.Timeout == "" {
		c.Timeout = DefaultClientTimeout
	}
	if err := positiveDuration("client.timeout", c.Timeout); err != nil {
		return err
	}

	c.Latency = strings.TrimSpace(c.Latency)
	if c.Latency != "" {
		d, err := time.ParseDuration(c.Latency)
		if err != nil {
			return fmt.Errorf("invalid client.latency %q: %w", c.Latency, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid client.latency %q: must not be negative", c.Latency)
		}
	}

	if c.PageSize == 0 {
		c.PageSize = DefaultClientPageSize
	}
	if c.PageSize < 0 {
		return fmt.Errorf("invalid client.page_size %d: must be positive", c.PageSize)
	}
	return nil
}

// TimeoutDuration returns the validated per-request timeout.
func (c ClientConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(c.Timeout, 10*time.Second)
}

// LatencyDuration returns the validated artificial latency, 0 when unset.
func (c ClientConfig) LatencyDuration() time.Duration {
	return parseDurationOr(c.Latency, 0)
}

func positiveDuration(name, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be greater than 0", name, value)
	}
	return nil
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
