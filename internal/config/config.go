// Package config provides configuration management for the LinkMark client.
// It handles loading and parsing the YAML configuration file, applying defaults and
// environment overrides, and exposes structured access to the backend endpoint,
// OAuth client settings, the persisted store backend, and the active-tab source.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIBaseURL is the placeholder backend used until a real one is configured.
	DefaultAPIBaseURL = "https://your-backend-api.com/api"

	// DefaultProfileURL is the Google userinfo endpoint queried after login.
	DefaultProfileURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	// DefaultAuthDir holds the token cache, the file store and logs.
	DefaultAuthDir = "~/.linkmark"

	// DefaultCallbackPort is the local port of the OAuth loopback server.
	DefaultCallbackPort = 8085

	// DefaultChromeURL is the DevTools endpoint of a Chrome started with --remote-debugging-port=9222.
	DefaultChromeURL = "http://127.0.0.1:9222"

	// MaxCategoryHistory caps the number of remembered categories.
	MaxCategoryHistory = 10

	// DefaultRequestTimeout bounds profile, revoke and backend calls.
	DefaultRequestTimeout = 30 * time.Second
)

// DefaultCategories seeds category autocomplete before any history exists.
var DefaultCategories = []string{
	"Work",
	"Learning",
	"Shopping",
	"Entertainment",
	"News",
	"Research",
	"Tools",
	"Social",
}

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// APIBaseURL is the backend base URL; bookmarks are posted to {APIBaseURL}/bookmarks.
	APIBaseURL string `yaml:"api-base-url" json:"api-base-url"`

	// ProfileURL is the endpoint returning {name, email, picture} for an access token.
	ProfileURL string `yaml:"profile-url" json:"profile-url"`

	// AuthDir is where the token cache, file store and log files live. A leading ~ is expanded.
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// RequestTimeout bounds each outbound HTTP call. Zero disables the bound.
	RequestTimeout time.Duration `yaml:"request-timeout" json:"request-timeout"`

	// Debug enables debug level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile writes logs to rotating files under {AuthDir}/logs instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB bounds the log directory size. <= 0 disables the cleaner.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	// Locale selects the popup language ("en" or "zh").
	Locale string `yaml:"locale" json:"locale"`

	OAuth    OAuthConfig    `yaml:"oauth" json:"oauth"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Tab      TabConfig      `yaml:"tab" json:"tab"`
	Bookmark BookmarkConfig `yaml:"bookmark" json:"bookmark"`
}

// OAuthConfig configures the Google identity flow.
type OAuthConfig struct {
	ClientID     string `yaml:"client-id" json:"client-id"`
	ClientSecret string `yaml:"client-secret" json:"client-secret"`

	// CallbackPort overrides the loopback callback port.
	CallbackPort int `yaml:"callback-port" json:"callback-port"`

	// NoBrowser prints the authorization URL instead of opening a browser.
	NoBrowser bool `yaml:"no-browser" json:"no-browser"`

	// RevokeRemote revokes the token at Google on logout in addition to dropping the local cache.
	RevokeRemote *bool `yaml:"revoke-remote,omitempty" json:"revoke-remote,omitempty"`
}

// ShouldRevokeRemote reports whether logout revokes the token at Google. Defaults to true.
func (o OAuthConfig) ShouldRevokeRemote() bool {
	return o.RevokeRemote == nil || *o.RevokeRemote
}

// StoreConfig selects and configures the persisted key-value store.
type StoreConfig struct {
	// Type is one of file, sqlite, postgres, object, git, keyring.
	Type string `yaml:"type" json:"type"`

	// Path overrides the file/sqlite location. Defaults live under AuthDir.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// DSN is the Postgres connection string.
	DSN    string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty"`

	// Object storage settings.
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Bucket    string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	AccessKey string `yaml:"access-key,omitempty" json:"access-key,omitempty"`
	SecretKey string `yaml:"secret-key,omitempty" json:"secret-key,omitempty"`
	Region    string `yaml:"region,omitempty" json:"region,omitempty"`
	Prefix    string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	UseSSL    bool   `yaml:"use-ssl,omitempty" json:"use-ssl,omitempty"`

	// Git settings.
	GitURL      string `yaml:"git-url,omitempty" json:"git-url,omitempty"`
	GitUsername string `yaml:"git-username,omitempty" json:"git-username,omitempty"`
	GitPassword string `yaml:"git-password,omitempty" json:"git-password,omitempty"`

	// KeyringService names the OS keyring service entry.
	KeyringService string `yaml:"keyring-service,omitempty" json:"keyring-service,omitempty"`
}

// TabConfig selects where the active tab is read from.
type TabConfig struct {
	// Source is chrome, clipboard, or auto (chrome then clipboard).
	Source string `yaml:"source" json:"source"`

	// ChromeURL is the DevTools HTTP endpoint of the running browser.
	ChromeURL string `yaml:"chrome-url" json:"chrome-url"`
}

// BookmarkConfig configures saving and category suggestions.
type BookmarkConfig struct {
	// MaxHistory is the number of remembered categories, clamped to 1..10.
	MaxHistory int `yaml:"max-history" json:"max-history"`

	// DefaultCategories are suggested after the remembered ones.
	DefaultCategories []string `yaml:"default-categories" json:"default-categories"`

	// SimulateSuccessOnFailure treats any backend failure as a successful save.
	// Demo scaffolding only; keep it off against a real backend.
	SimulateSuccessOnFailure bool `yaml:"simulate-success-on-failure" json:"simulate-success-on-failure"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultConfigPath returns ~/.linkmark/config.yaml, or config.yaml when the home directory is unknown.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".linkmark", "config.yaml")
}

// LoadConfig reads the configuration file and fails when it does not exist.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads the configuration file. When optional is true a missing
// file yields the defaults instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			cfg.applyDefaults()
			cfg.applyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to configFile, creating the parent directory.
func SaveConfig(configFile string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp := configFile + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Rename(tmp, configFile)
}

// Validate checks the fields that would otherwise fail late at request time.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api-base-url %q must be an absolute http(s) URL", c.APIBaseURL)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: request-timeout must not be negative")
	}
	switch c.Store.Type {
	case "file", "sqlite", "postgres", "object", "git", "keyring":
	default:
		return fmt.Errorf("config: unknown store type %q", c.Store.Type)
	}
	switch c.Tab.Source {
	case "chrome", "clipboard", "auto":
	default:
		return fmt.Errorf("config: unknown tab source %q", c.Tab.Source)
	}
	return nil
}

// BookmarksURL returns the endpoint bookmarks are posted to.
func (c *Config) BookmarksURL() string {
	return strings.TrimRight(c.APIBaseURL, "/") + "/bookmarks"
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if strings.TrimSpace(c.ProfileURL) == "" {
		c.ProfileURL = DefaultProfileURL
	}
	if strings.TrimSpace(c.AuthDir) == "" {
		c.AuthDir = DefaultAuthDir
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
	if c.OAuth.CallbackPort <= 0 {
		c.OAuth.CallbackPort = DefaultCallbackPort
	}
	c.Store.Type = strings.ToLower(strings.TrimSpace(c.Store.Type))
	if c.Store.Type == "" {
		c.Store.Type = "file"
	}
	if c.Store.KeyringService == "" {
		c.Store.KeyringService = "linkmark"
	}
	c.Tab.Source = strings.ToLower(strings.TrimSpace(c.Tab.Source))
	if c.Tab.Source == "" {
		c.Tab.Source = "auto"
	}
	if c.Tab.ChromeURL == "" {
		c.Tab.ChromeURL = DefaultChromeURL
	}
	if c.Bookmark.MaxHistory <= 0 || c.Bookmark.MaxHistory > MaxCategoryHistory {
		c.Bookmark.MaxHistory = MaxCategoryHistory
	}
	if c.Bookmark.DefaultCategories == nil {
		c.Bookmark.DefaultCategories = append([]string(nil), DefaultCategories...)
	}
}

// applyEnv lets LINKMARK_* variables (typically from .env) override file values.
func (c *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"LINKMARK_API_BASE_URL", &c.APIBaseURL},
		{"LINKMARK_CLIENT_ID", &c.OAuth.ClientID},
		{"LINKMARK_CLIENT_SECRET", &c.OAuth.ClientSecret},
		{"LINKMARK_STORE_DSN", &c.Store.DSN},
		{"LINKMARK_PROXY_URL", &c.ProxyURL},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				*o.target = trimmed
			}
		}
	}
}
