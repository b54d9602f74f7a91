// Package config loads the application configuration from the
// environment, with YAML overrides for the pricing rate card.
package config

import (
	"fmt"
	"strings"

	"github.com/joeshaw/envdecode"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Auth      AuthConfig
	Rates     RatesConfig
	Proposals ProposalsConfig
	Invoices  InvoicesConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Audit     AuditConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string `env:"SERVER_HOST,default=0.0.0.0"`
	Port            int    `env:"SERVER_PORT,default=8080"`
	ReadTimeoutSec  int    `env:"SERVER_READ_TIMEOUT,default=15"`
	WriteTimeoutSec int    `env:"SERVER_WRITE_TIMEOUT,default=30"`
}

// DatabaseConfig controls the SQL backend. An empty driver or DSN keeps
// the application on in-memory stores.
type DatabaseConfig struct {
	Driver          string `env:"DATABASE_DRIVER,default="`
	DSN             string `env:"DATABASE_URL,default="`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME,default=300"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=tourops"`
}

// AuthConfig controls API authentication.
//
// Users is a semicolon-separated list of username:password:role entries;
// passwords may be bcrypt hashes or, for development setups, plaintext.
// APITokens is a comma-separated list of static bearer tokens accepted
// without a JWT handshake.
type AuthConfig struct {
	JWTSecret   string `env:"AUTH_JWT_SECRET,default="`
	TokenTTLSec int    `env:"AUTH_TOKEN_TTL,default=86400"`
	Users       string `env:"AUTH_USERS,default="`
	APITokens   string `env:"AUTH_API_TOKENS,default="`
}

// RatesConfig points at an optional YAML rate card override file.
type RatesConfig struct {
	Path string `env:"RATE_CARD_PATH,default="`
}

// ProposalsConfig controls proposal delivery windows.
type ProposalsConfig struct {
	ValidityDays  int    `env:"PROPOSAL_VALIDITY_DAYS,default=14"`
	SweepSchedule string `env:"PROPOSAL_SWEEP_SCHEDULE,default=@hourly"`
}

// InvoicesConfig controls invoice payment terms.
type InvoicesConfig struct {
	NetDays int `env:"INVOICE_NET_DAYS,default=14"`
}

// RedisConfig enables the optional cross-instance event bridge.
type RedisConfig struct {
	Addr    string `env:"REDIS_ADDR,default="`
	Channel string `env:"REDIS_EVENTS_CHANNEL,default=tourops.events"`
}

// RateLimitConfig controls per-caller request throttling.
type RateLimitConfig struct {
	PerSecond int `env:"RATE_LIMIT_PER_SECOND,default=20"`
	Burst     int `env:"RATE_LIMIT_BURST,default=40"`
}

// CORSConfig lists allowed browser origins, comma separated.
type CORSConfig struct {
	Origins string `env:"CORS_ORIGINS,default=*"`
}

// AuditConfig controls the staff API audit trail. Entries always land in
// the in-memory ring; Path adds a JSONL file sink.
type AuditConfig struct {
	Path string `env:"AUDIT_LOG_PATH,default="`
	Max  int    `env:"AUDIT_MEMORY_MAX,default=200"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Driver != "" && c.Database.DSN == "" {
		return fmt.Errorf("database driver %q configured without a DSN", c.Database.Driver)
	}
	if c.Database.Driver == "" && c.Database.DSN != "" {
		c.Database.Driver = "postgres"
	}
	if c.Proposals.ValidityDays <= 0 {
		return fmt.Errorf("proposal validity must be positive, got %d days", c.Proposals.ValidityDays)
	}
	if c.Invoices.NetDays <= 0 {
		return fmt.Errorf("invoice net terms must be positive, got %d days", c.Invoices.NetDays)
	}
	if c.RateLimit.PerSecond <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimit.PerSecond)
	}
	return nil
}

// AuthUser is one configured API user.
type AuthUser struct {
	Username string
	Password string
	Role     string
}

// ParseUsers expands the AUTH_USERS entry list. Malformed entries are
// rejected rather than silently skipped.
func (c AuthConfig) ParseUsers() ([]AuthUser, error) {
	raw := strings.TrimSpace(c.Users)
	if raw == "" {
		return nil, nil
	}
	var users []AuthUser
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed AUTH_USERS entry %q (want username:password:role)", entry)
		}
		role := strings.TrimSpace(parts[2])
		if role == "" {
			role = "staff"
		}
		users = append(users, AuthUser{
			Username: strings.TrimSpace(parts[0]),
			Password: parts[1],
			Role:     role,
		})
	}
	return users, nil
}

// ParseAPITokens expands the static token list.
func (c AuthConfig) ParseAPITokens() []string {
	raw := strings.TrimSpace(c.APITokens)
	if raw == "" {
		return nil
	}
	var tokens []string
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// ParseOrigins expands the CORS origin list.
func (c CORSConfig) ParseOrigins() []string {
	raw := strings.TrimSpace(c.Origins)
	if raw == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
