// Package config loads the authormap configuration from an optional YAML
// file with environment variable overrides on top.
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"authormap/internal/directory"
)

// Config holds application configuration
type Config struct {
	Directory DirectoryConfig `yaml:"directory"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DirectoryConfig holds directory connection configuration
type DirectoryConfig struct {
	URLs   []string `yaml:"urls"`    // LDAP URLs, tried in order
	BaseDN string   `yaml:"base_dn"` // Root of the organizational hierarchy
	Domain string   `yaml:"domain"`  // Domain label for output lines; derived from entries when empty

	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	KerberosRealm  string `yaml:"kerberos_realm"`
	KerberosKeytab string `yaml:"kerberos_keytab"`
	KerberosCCache string `yaml:"kerberos_ccache"`
	KerberosConfig string `yaml:"kerberos_config"`
	KerberosSPN    string `yaml:"kerberos_spn"`

	UseTLS        bool `yaml:"use_tls" default:"true"`
	SkipTLSVerify bool `yaml:"skip_tls_verify"`

	// Timeout is a duration string ("30s", "2m"); the YAML decoder has no
	// native duration support.
	Timeout  string `yaml:"timeout" default:"30s"`
	PageSize uint32 `yaml:"page_size" default:"1000"`
}

// OutputConfig holds output artifact configuration
type OutputConfig struct {
	Path string `yaml:"path" default:"authors.txt"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

// Load reads configuration from the given YAML file (optional; an empty path
// or missing file yields defaults), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set default values: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values with AUTHORMAP_* environment variables.
func (c *Config) applyEnv() {
	if urls := getEnv("AUTHORMAP_URLS", ""); urls != "" {
		c.Directory.URLs = parseList(urls)
	}
	c.Directory.BaseDN = getEnv("AUTHORMAP_BASE_DN", c.Directory.BaseDN)
	c.Directory.Domain = getEnv("AUTHORMAP_DOMAIN", c.Directory.Domain)
	c.Directory.Username = getEnv("AUTHORMAP_USERNAME", c.Directory.Username)
	c.Directory.Password = getEnv("AUTHORMAP_PASSWORD", c.Directory.Password)
	c.Directory.KerberosRealm = getEnv("AUTHORMAP_KERBEROS_REALM", c.Directory.KerberosRealm)
	c.Output.Path = getEnv("AUTHORMAP_OUTPUT", c.Output.Path)
	c.Logging.Level = getEnv("AUTHORMAP_LOG_LEVEL", c.Logging.Level)
}

// Validate checks that the configuration is sufficient to run a scan.
func (c *Config) Validate() error {
	if len(c.Directory.URLs) == 0 {
		return fmt.Errorf("directory.urls: at least one directory URL is required")
	}
	if c.Directory.BaseDN == "" {
		return fmt.Errorf("directory.base_dn is required")
	}
	if c.Directory.KerberosRealm == "" && c.Directory.Username == "" {
		return fmt.Errorf("directory.username is required for simple bind")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	if _, err := time.ParseDuration(c.Directory.Timeout); err != nil {
		return fmt.Errorf("directory.timeout: %w", err)
	}
	return nil
}

// ConnectionConfig converts the directory section into the connection
// configuration consumed by the directory client.
func (c *Config) ConnectionConfig() *directory.ConnectionConfig {
	conn := directory.DefaultConnectionConfig()
	conn.URLs = c.Directory.URLs
	conn.BaseDN = c.Directory.BaseDN
	conn.Domain = c.Directory.Domain
	conn.Username = c.Directory.Username
	conn.Password = c.Directory.Password
	conn.KerberosRealm = c.Directory.KerberosRealm
	conn.KerberosKeytab = c.Directory.KerberosKeytab
	conn.KerberosCCache = c.Directory.KerberosCCache
	conn.KerberosConfig = c.Directory.KerberosConfig
	conn.KerberosSPN = c.Directory.KerberosSPN
	conn.UseTLS = c.Directory.UseTLS
	conn.PageSize = c.Directory.PageSize
	if timeout, err := time.ParseDuration(c.Directory.Timeout); err == nil {
		conn.Timeout = timeout
	}

	if c.Directory.SkipTLSVerify {
		conn.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true,
		}
	}

	return conn
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseList parses a comma-separated list
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
