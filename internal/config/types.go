package config

import "time"

// Config is the top-level cellwatch configuration, corresponding to .cellwatch.yml.
type Config struct {
	Recipient string          `yaml:"recipient" koanf:"recipient"`
	Profile   string          `yaml:"profile" koanf:"profile"`
	Scan      ScanConfig      `yaml:"scan" koanf:"scan"`
	Telemetry TelemetryConfig `yaml:"telemetry" koanf:"telemetry"`
	Channels  []ChannelConfig `yaml:"channels" koanf:"channels"`
	Server    ServerConfig    `yaml:"server" koanf:"server"`
	DataDir   string          `yaml:"data_dir,omitempty" koanf:"data_dir"`
	Log       LogConfig       `yaml:"log" koanf:"log"`
}

// ScanConfig overrides the selected profile. Zero values keep the profile's
// own setting, except StartDelay, where an explicit 0 scans immediately.
type ScanConfig struct {
	Interval        time.Duration  `yaml:"interval,omitempty" koanf:"interval"`
	StartDelay      *time.Duration `yaml:"start_delay,omitempty" koanf:"start_delay"`
	HeartbeatEvery  uint64         `yaml:"heartbeat_every,omitempty" koanf:"heartbeat_every"`
	ChangeDetection *bool          `yaml:"change_detection,omitempty" koanf:"change_detection"`
	EmailStatusTTL  time.Duration  `yaml:"email_status_ttl,omitempty" koanf:"email_status_ttl"`
}

// TelemetryConfig selects and configures the cell reader.
type TelemetryConfig struct {
	Platform  string `yaml:"platform" koanf:"platform"`
	Modem     string `yaml:"modem,omitempty" koanf:"modem"`
	MMCLIPath string `yaml:"mmcli_path,omitempty" koanf:"mmcli_path"`
	Fixtures  string `yaml:"fixtures,omitempty" koanf:"fixtures"`
}

// ChannelConfig describes one notification relay. Channels are tried in the
// order they are listed.
type ChannelConfig struct {
	Name       string `yaml:"name" koanf:"name"`
	Endpoint   string `yaml:"endpoint" koanf:"endpoint"`
	Credential string `yaml:"credential,omitempty" koanf:"credential"`
	// CredentialEnv names an environment variable that holds the credential.
	// When set, the channel is not ready until a credential is available.
	CredentialEnv string            `yaml:"credential_env,omitempty" koanf:"credential_env"`
	Fields        map[string]string `yaml:"fields,omitempty" koanf:"fields"`
	Accept        []int             `yaml:"accept,omitempty" koanf:"accept"`
}

// ServerConfig controls the local HTTP status API.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" koanf:"enabled"`
	Addr    string `yaml:"addr" koanf:"addr"`
}

// LogConfig controls log output. A non-empty File enables a rotating log file.
type LogConfig struct {
	Level      string `yaml:"level" koanf:"level"`
	Format     string `yaml:"format" koanf:"format"`
	File       string `yaml:"file,omitempty" koanf:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" koanf:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups,omitempty" koanf:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" koanf:"max_age_days"`
}
