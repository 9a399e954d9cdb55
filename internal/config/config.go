package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied before the file and the environment
const (
	DefaultAddr         = ":8080"
	DefaultResendWindow = 60 * time.Second
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Identity IdentityConfig `yaml:"identity"`
	Phone    PhoneConfig    `yaml:"phone"`
}

// ServerConfig represents the WebSocket server settings
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"` // "*" allows any origin
	AllowLocalhost bool     `yaml:"allow_localhost"`

	// ConnectionsPerMinute limits channel connections per client IP; 0 disables
	ConnectionsPerMinute int `yaml:"connections_per_minute,omitempty"`

	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers,omitempty"`
}

// IdentityConfig represents the Firebase project the bridge signs users into
type IdentityConfig struct {
	APIKey       string `yaml:"api_key"`
	ProjectID    string `yaml:"project_id"`
	TenantID     string `yaml:"tenant_id,omitempty"`
	EmulatorHost string `yaml:"emulator_host,omitempty"` // e.g. "localhost:9099"
	Credentials  string `yaml:"credentials,omitempty"`   // service account JSON path
	VerifyTokens bool   `yaml:"verify_tokens"`
}

// PhoneConfig represents phone verification settings
type PhoneConfig struct {
	ResendWindow time.Duration     `yaml:"resend_window"`
	TestNumbers  map[string]string `yaml:"test_numbers,omitempty"` // phone number -> fixed SMS code

	// AutoRetrievalDelay holds back test number codes, as a device would
	// before reading the SMS. A verifyPhoneNumber timeout shorter than the
	// delay ends in phoneCodeAutoRetrievalTimeout.
	AutoRetrievalDelay time.Duration `yaml:"auto_retrieval_delay,omitempty"`
}

// defaults returns a Config holding the default values
func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:           DefaultAddr,
			AllowLocalhost: true,
		},
		Identity: IdentityConfig{
			VerifyTokens: true,
		},
		Phone: PhoneConfig{
			ResendWindow: DefaultResendWindow,
		},
	}
}

// Load reads configuration from the specified YAML file.
// An empty path loads from the environment only.
// Environment variables override file values:
//   - AUTHBRIDGE_ADDR overrides server.addr
//   - AUTHBRIDGE_ALLOWED_ORIGINS (comma separated) overrides server.allowed_origins
//   - AUTHBRIDGE_ALLOW_LOCALHOST overrides server.allow_localhost
//   - AUTHBRIDGE_TRUST_PROXY_HEADERS overrides server.trust_proxy_headers
//   - FIREBASE_API_KEY, FIREBASE_PROJECT_ID, FIREBASE_TENANT_ID override identity.*
//   - FIREBASE_AUTH_EMULATOR_HOST overrides identity.emulator_host
//   - GOOGLE_APPLICATION_CREDENTIALS overrides identity.credentials
//   - AUTHBRIDGE_VERIFY_TOKENS overrides identity.verify_tokens
//   - AUTHBRIDGE_PHONE_RESEND_WINDOW overrides phone.resend_window
//   - AUTHBRIDGE_PHONE_AUTO_RETRIEVAL_DELAY overrides phone.auto_retrieval_delay
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromEnv()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv builds the configuration from defaults and environment variables
func LoadFromEnv() (*Config, error) {
	cfg := defaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	setString("AUTHBRIDGE_ADDR", &c.Server.Addr)
	if v := os.Getenv("AUTHBRIDGE_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if err := setBool("AUTHBRIDGE_ALLOW_LOCALHOST", &c.Server.AllowLocalhost); err != nil {
		return err
	}
	if err := setBool("AUTHBRIDGE_TRUST_PROXY_HEADERS", &c.Server.TrustProxyHeaders); err != nil {
		return err
	}

	setString("FIREBASE_API_KEY", &c.Identity.APIKey)
	setString("FIREBASE_PROJECT_ID", &c.Identity.ProjectID)
	setString("FIREBASE_TENANT_ID", &c.Identity.TenantID)
	setString("FIREBASE_AUTH_EMULATOR_HOST", &c.Identity.EmulatorHost)
	setString("GOOGLE_APPLICATION_CREDENTIALS", &c.Identity.Credentials)
	if err := setBool("AUTHBRIDGE_VERIFY_TOKENS", &c.Identity.VerifyTokens); err != nil {
		return err
	}

	if v := os.Getenv("AUTHBRIDGE_PHONE_RESEND_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid AUTHBRIDGE_PHONE_RESEND_WINDOW: %w", err)
		}
		c.Phone.ResendWindow = d
	}
	if v := os.Getenv("AUTHBRIDGE_PHONE_AUTO_RETRIEVAL_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid AUTHBRIDGE_PHONE_AUTO_RETRIEVAL_DELAY: %w", err)
		}
		c.Phone.AutoRetrievalDelay = d
	}

	return nil
}

// splitList splits a comma separated list, dropping empty items
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if c.Server.ConnectionsPerMinute < 0 {
		return fmt.Errorf("server.connections_per_minute must not be negative")
	}

	for i, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("server.allowed_origins[%d] %q is not an http(s) origin", i, origin)
		}
	}

	// The emulator accepts any API key
	if c.Identity.APIKey == "" && c.Identity.EmulatorHost == "" {
		return fmt.Errorf("identity.api_key is required unless identity.emulator_host is set")
	}

	if c.Identity.VerifyTokens && c.Identity.EmulatorHost == "" && c.Identity.ProjectID == "" {
		return fmt.Errorf("identity.project_id is required when identity.verify_tokens is enabled")
	}

	if c.Phone.ResendWindow < 0 {
		return fmt.Errorf("phone.resend_window must not be negative")
	}

	if c.Phone.AutoRetrievalDelay < 0 {
		return fmt.Errorf("phone.auto_retrieval_delay must not be negative")
	}

	for number, code := range c.Phone.TestNumbers {
		if !isPhoneNumber(number) {
			return fmt.Errorf("phone.test_numbers: %q is not an E.164 phone number", number)
		}
		if !isDigits(code) {
			return fmt.Errorf("phone.test_numbers[%q]: code must be digits", number)
		}
	}

	return nil
}

// isPhoneNumber reports whether s looks like an E.164 number: "+" and up to 15 digits
func isPhoneNumber(s string) bool {
	digits, ok := strings.CutPrefix(s, "+")
	return ok && len(digits) <= 15 && isDigits(digits)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
