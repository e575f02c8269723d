package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "NOVAO"

// EnvironmentDevelopment disables Secure cookies so the portal works over plain http locally.
const EnvironmentDevelopment = "development"

// minSessionSecretLength is the shortest accepted HMAC key for session tokens.
const minSessionSecretLength = 32

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Peers allowed to set X-Forwarded-For / X-Real-IP. Empty means the
	// socket address is always the client address.
	TrustedProxies []netip.Prefix

	// Deployment environment ("production" or "development")
	Environment string

	// Enable debug logging
	Debug bool

	// HMAC key for portal session tokens and bridged-session bindings
	SessionSecret []byte

	Admin   AdminConfig
	Gate    GateConfig
	Login   LoginConfig
	Panel   PanelConfig
	CORS    CORSConfig
	Metrics MetricsConfig
}

// AdminConfig holds the operator credentials for the admin portal.
// Secrets are only kept as bcrypt hashes; plaintext values supplied through
// the environment are hashed during Load.
type AdminConfig struct {
	Username     string
	PasswordHash string
	PINHash      string
	PINLength    int
}

// Configured reports whether admin login can succeed at all.
func (a AdminConfig) Configured() bool {
	return a.Username != "" && a.PasswordHash != ""
}

// GateConfig tunes the PIN attempt lockout.
type GateConfig struct {
	MaxAttempts int
	BaseLockout time.Duration
	MaxLockout  time.Duration
	Capacity    int
}

// LoginConfig tunes the per-client token bucket on credential endpoints.
type LoginConfig struct {
	Rate  float64
	Burst int
}

// PanelConfig describes the fixed API contract of the upstream panel.
// The panel base URL itself is runtime data held in the settings store.
type PanelConfig struct {
	EndpointRoot  string
	SessionCookie string
	Timeout       time.Duration
}

// CORSConfig holds browser origin policy.
type CORSConfig struct {
	AllowedOrigins []string
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// SecureCookies reports whether cookies must carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return c.Environment != EnvironmentDevelopment
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "file:novao.db")
	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("environment", "production")
	v.SetDefault("debug", false)
	v.SetDefault("session_secret", "")
	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.pin", "")
	v.SetDefault("admin.pin_hash", "")
	v.SetDefault("admin.pin_length", 4)
	v.SetDefault("gate.max_attempts", 5)
	v.SetDefault("gate.base_lockout", 30*time.Second)
	v.SetDefault("gate.max_lockout", 15*time.Minute)
	v.SetDefault("gate.capacity", 10000)
	v.SetDefault("login.rate", 1.0)
	v.SetDefault("login.burst", 5)
	v.SetDefault("panel.endpoint_root", "/panel/api/inbounds")
	v.SetDefault("panel.session_cookie", "session")
	v.SetDefault("panel.timeout", 15*time.Second)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("metrics.enabled", true)
}

// Load reads configuration from the global viper instance (config file, if one
// was read by the caller) and NOVAO_ prefixed environment variables.
// Environment variables take precedence over file values.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Nested keys are read one by one; AutomaticEnv does not populate them
	// through Unmarshal.
	cfg := &Config{
		DatabaseURL:   v.GetString("database_url"),
		ServerAddr:    v.GetString("server_addr"),
		Environment:   strings.ToLower(v.GetString("environment")),
		Debug:         v.GetBool("debug"),
		SessionSecret: []byte(v.GetString("session_secret")),
		Admin: AdminConfig{
			Username:  v.GetString("admin.username"),
			PINLength: v.GetInt("admin.pin_length"),
		},
		Gate: GateConfig{
			MaxAttempts: v.GetInt("gate.max_attempts"),
			BaseLockout: v.GetDuration("gate.base_lockout"),
			MaxLockout:  v.GetDuration("gate.max_lockout"),
			Capacity:    v.GetInt("gate.capacity"),
		},
		Login: LoginConfig{
			Rate:  v.GetFloat64("login.rate"),
			Burst: v.GetInt("login.burst"),
		},
		Panel: PanelConfig{
			EndpointRoot:  strings.TrimRight(v.GetString("panel.endpoint_root"), "/"),
			SessionCookie: v.GetString("panel.session_cookie"),
			Timeout:       v.GetDuration("panel.timeout"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetStringSlice("cors.allowed_origins")),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required")
	}
	if cfg.ServerAddr == "" {
		return nil, fmt.Errorf("server_addr is required")
	}
	if len(cfg.SessionSecret) < minSessionSecretLength {
		return nil, fmt.Errorf("session_secret is required and must be at least %d bytes", minSessionSecretLength)
	}
	if cfg.Admin.PINLength <= 0 {
		return nil, fmt.Errorf("admin.pin_length must be positive")
	}
	if cfg.Panel.SessionCookie == "" {
		return nil, fmt.Errorf("panel.session_cookie is required")
	}
	if cfg.Panel.Timeout <= 0 {
		return nil, fmt.Errorf("panel.timeout must be positive")
	}
	if cfg.Gate.MaxAttempts <= 0 {
		return nil, fmt.Errorf("gate.max_attempts must be positive")
	}

	var err error
	cfg.TrustedProxies, err = parsePrefixes(splitList(v.GetStringSlice("server.trusted_proxies")))
	if err != nil {
		return nil, fmt.Errorf("server.trusted_proxies: %w", err)
	}
	cfg.Admin.PasswordHash, err = resolveSecretHash(v, "admin.password")
	if err != nil {
		return nil, err
	}
	cfg.Admin.PINHash, err = resolveSecretHash(v, "admin.pin")
	if err != nil {
		return nil, err
	}
	if pin := v.GetString("admin.pin"); pin != "" {
		if len(pin) != cfg.Admin.PINLength || !isDigits(pin) {
			return nil, fmt.Errorf("admin.pin must be %d digits", cfg.Admin.PINLength)
		}
	}

	return cfg, nil
}

// resolveSecretHash returns the configured bcrypt hash for key, preferring
// <key>_hash and falling back to hashing the plaintext <key>.
func resolveSecretHash(v *viper.Viper, key string) (string, error) {
	if hash := v.GetString(key + "_hash"); hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return "", fmt.Errorf("%s_hash is not a bcrypt hash: %w", key, err)
		}
		return hash, nil
	}
	plain := v.GetString(key)
	if plain == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", key, err)
	}
	return string(hash), nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parsePrefixes accepts CIDRs and bare addresses; a bare address is a
// single-host prefix.
func parsePrefixes(in []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(in))
	for _, item := range in {
		if prefix, err := netip.ParsePrefix(item); err == nil {
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("invalid address or CIDR %q", item)
		}
		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return out, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
