package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: CELLWATCH_SCAN__INTERVAL -> scan.interval.
const EnvPrefix = "CELLWATCH_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CELLWATCH_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	// A configured channel list replaces the defaults instead of merging
	// into them element by element.
	if k.Exists("channels") {
		cfg.Channels = nil
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var (
	validProfiles   = map[string]bool{"manual": true, "development": true, "stealth": true}
	validPlatforms  = map[string]bool{"modemmanager": true, "carrier": true, "fixture": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
)

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if !validProfiles[c.Profile] {
		return fmt.Errorf("invalid profile %q: must be one of manual, development, stealth", c.Profile)
	}

	if c.Recipient != "" && !strings.Contains(c.Recipient, "@") {
		return fmt.Errorf("invalid recipient %q: not an email address", c.Recipient)
	}

	if c.Scan.Interval < 0 || c.Scan.EmailStatusTTL < 0 || (c.Scan.StartDelay != nil && *c.Scan.StartDelay < 0) {
		return fmt.Errorf("scan durations must be non-negative")
	}

	// Unknown platforms are allowed; they select a reader that reports the
	// platform as unsupported.
	if c.Telemetry.Platform == "" {
		return fmt.Errorf("telemetry.platform is required")
	}
	if c.Telemetry.Platform == "fixture" && c.Telemetry.Fixtures == "" {
		return fmt.Errorf("telemetry.fixtures is required for the fixture platform")
	}

	seen := make(map[string]bool, len(c.Channels))
	for i, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channels[%d]: name is required", i)
		}
		if seen[ch.Name] {
			return fmt.Errorf("channels[%d]: duplicate name %q", i, ch.Name)
		}
		seen[ch.Name] = true
		if ch.Endpoint == "" {
			return fmt.Errorf("channel %s: endpoint is required", ch.Name)
		}
		for _, code := range ch.Accept {
			if code < 100 || code > 599 {
				return fmt.Errorf("channel %s: invalid accepted status %d", ch.Name, code)
			}
		}
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when the server is enabled")
	}

	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log.level %q: must be one of debug, info, warn, error", c.Log.Level)
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}

	return nil
}

// KnownPlatform reports whether name selects a real reader.
func KnownPlatform(name string) bool {
	return validPlatforms[name]
}

// OutboxPath is the SQLite file holding dispatched reports, or "" when no
// data_dir is set and the outbox lives in memory for the process lifetime.
func (c *Config) OutboxPath() string {
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, "outbox.db")
}

// ResolveCredential returns the credential from CredentialEnv when that
// variable is set, otherwise the literal Credential.
func (ch ChannelConfig) ResolveCredential() string {
	if ch.CredentialEnv != "" {
		if v := os.Getenv(ch.CredentialEnv); v != "" {
			return v
		}
	}
	return ch.Credential
}
