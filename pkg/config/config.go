package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read by Load.
const DefaultPath = "config.yaml"

// Config holds all configuration for the account-health server.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Routing  RoutingConfig  `yaml:"routing"`
	Batch    BatchConfig    `yaml:"batch"`
	Retry    RetryConfig    `yaml:"retry"`

	// DirectoryFile is the tenants.yaml used when no database host is set.
	DirectoryFile string `yaml:"directory_file" env:"DIRECTORY_FILE" env-default:"tenants.yaml"`

	// ClientsConcurrency bounds parallel sheet reads for the detailed client listing.
	ClientsConcurrency int `yaml:"clients_concurrency" env:"CLIENTS_CONCURRENCY" env-default:"4"`
}

// AuthConfig holds sign-in and session settings.
type AuthConfig struct {
	// EnableVerification controls whether sign-in JWTs are validated.
	// Set to false for local development without an identity provider.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	Audience string `yaml:"audience" env:"AUTH_AUDIENCE" env-default:""`

	SessionSecret string        `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML
	SessionName   string        `yaml:"session_name" env:"SESSION_NAME" env-default:"sc_session"`
	SessionMaxAge time.Duration `yaml:"session_max_age" env:"SESSION_MAX_AGE" env-default:"168h"`

	// CookieDomain is the domain for the session cookie (optional).
	// If empty, it is derived from BaseURL and the routing root domains.
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN" env-default:""`
}

// DatabaseConfig holds the tenant directory's PostgreSQL settings.
// An empty Host selects the file-backed directory instead.
type DatabaseConfig struct {
	Host            string        `yaml:"host" env:"PGHOST" env-default:""`
	Port            int           `yaml:"port" env:"PGPORT" env-default:"5432"`
	User            string        `yaml:"user" env:"PGUSER" env-default:"health"`
	Password        string        `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database        string        `yaml:"database" env:"PGDATABASE" env-default:"account_health"`
	SSLMode         string        `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections  int32         `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	MinConnections  int32         `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"PGMAX_CONN_LIFETIME" env-default:"1h"`
}

// SheetsConfig selects and configures the spreadsheet backend.
type SheetsConfig struct {
	// Backend is "google" or "memory". The memory backend serves
	// FixturesFile and loses writes on restart.
	Backend         string `yaml:"backend" env:"SHEETS_BACKEND" env-default:"google"`
	CredentialsJSON string `yaml:"-" env:"GOOGLE_SHEETS_CREDENTIALS_JSON"` // Secret - not in YAML
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_SHEETS_CREDENTIALS_FILE" env-default:""`
	Endpoint        string `yaml:"endpoint" env:"SHEETS_ENDPOINT" env-default:""`
	FixturesFile    string `yaml:"fixtures_file" env:"SHEETS_FIXTURES_FILE" env-default:""`
}

// RoutingConfig describes the host names the gate recognizes.
type RoutingConfig struct {
	RootDomains      []string `yaml:"root_domains" env:"ROOT_DOMAINS" env-separator:"," env-default:"sellercentry.com"`
	TeamSubdomain    string   `yaml:"team_subdomain" env:"TEAM_SUBDOMAIN" env-default:"team"`
	PreviewPlatforms []string `yaml:"preview_platforms" env:"PREVIEW_PLATFORMS" env-separator:"," env-default:"vercel.app"`
	// AllowDevOverride honours ?tenant= on generic hosts. Never enable in production.
	AllowDevOverride bool `yaml:"allow_dev_override" env:"ALLOW_DEV_OVERRIDE" env-default:"false"`
}

// BatchConfig bounds batch writes.
type BatchConfig struct {
	MaxItems   int           `yaml:"max_items" env:"BATCH_MAX_ITEMS" env-default:"100"`
	ChunkSize  int           `yaml:"chunk_size" env:"BATCH_CHUNK_SIZE" env-default:"10"`
	ChunkDelay time.Duration `yaml:"chunk_delay" env:"BATCH_CHUNK_DELAY" env-default:"1s"`
}

// RetryConfig tunes backoff for idempotent sheet calls.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" env:"RETRY_MAX_RETRIES" env-default:"3"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"RETRY_INITIAL_DELAY" env-default:"250ms"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"RETRY_MAX_DELAY" env-default:"8s"`
}

// Load reads config.yaml from the working directory with environment
// variable overrides.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultPath, version)
}

// LoadFile reads the YAML file at path with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)
	cfg.Routing.RootDomains = normalizeList(cfg.Routing.RootDomains)
	cfg.Routing.PreviewPlatforms = normalizeList(cfg.Routing.PreviewPlatforms)

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET must be set")
	}
	if c.Auth.EnableVerification && len(c.Auth.JWKSEndpoints) == 0 {
		return fmt.Errorf("jwks_endpoints is required when token verification is enabled")
	}
	switch c.Sheets.Backend {
	case "google", "memory":
	default:
		return fmt.Errorf("unknown sheets backend %q", c.Sheets.Backend)
	}
	if c.Batch.ChunkSize <= 0 || c.Batch.MaxItems <= 0 {
		return fmt.Errorf("batch chunk_size and max_items must be positive")
	}
	if c.Routing.TeamSubdomain == "" {
		return fmt.Errorf("routing team_subdomain must be set")
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2". The issuer may itself contain '='
// only if the URL does not; the last '=' splits the pair.
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		idx := strings.LastIndex(pair, "=")
		if idx <= 0 || idx == len(pair)-1 {
			continue
		}
		endpoints[strings.TrimSpace(pair[:idx])] = strings.TrimSpace(pair[idx+1:])
	}
	return endpoints
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// UseDatabase reports whether the tenant directory lives in Postgres.
func (c *DatabaseConfig) UseDatabase() bool {
	return c.Host != ""
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
