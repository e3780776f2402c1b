package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Profile != "stealth" {
		t.Errorf("expected default profile %q, got %q", "stealth", cfg.Profile)
	}
	if cfg.Telemetry.Platform != "modemmanager" {
		t.Errorf("expected default platform %q, got %q", "modemmanager", cfg.Telemetry.Platform)
	}
	if len(cfg.Channels) != 3 {
		t.Fatalf("expected 3 default channels, got %d", len(cfg.Channels))
	}
	order := []string{"emailjs", "formspree", "smtp_api"}
	for i, name := range order {
		if cfg.Channels[i].Name != name {
			t.Errorf("channels[%d] = %q, want %q", i, cfg.Channels[i].Name, name)
		}
	}
	if got := cfg.Channels[2].Accept; len(got) != 2 || got[1] != 202 {
		t.Errorf("smtp_api accept = %v, want [200 202]", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.cellwatch.yml")

	original := DefaultConfig()
	original.Recipient = "ops@example.com"
	original.Profile = "development"
	original.Scan.Interval = 45 * time.Second
	original.Channels = []ChannelConfig{{
		Name:     "relay",
		Endpoint: "https://relay.example.com/send",
		Fields:   map[string]string{"service_id": "service_k9x2"},
		Accept:   []int{200, 202},
	}}

	// Save.
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load back.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Recipient != original.Recipient {
		t.Errorf("recipient: got %q, want %q", loaded.Recipient, original.Recipient)
	}
	if loaded.Profile != original.Profile {
		t.Errorf("profile: got %q, want %q", loaded.Profile, original.Profile)
	}
	if loaded.Scan.Interval != 45*time.Second {
		t.Errorf("scan.interval: got %s, want 45s", loaded.Scan.Interval)
	}
	if len(loaded.Channels) != 1 {
		t.Fatalf("channels: got %d, want 1 (configured list replaces defaults)", len(loaded.Channels))
	}
	ch := loaded.Channels[0]
	if ch.Name != "relay" || ch.Fields["service_id"] != "service_k9x2" {
		t.Errorf("channel: got %+v", ch)
	}
	if len(ch.Accept) != 2 || ch.Accept[1] != 202 {
		t.Errorf("accept: got %v, want [200 202]", ch.Accept)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Profile != "stealth" {
		t.Errorf("expected default profile, got %q", cfg.Profile)
	}
	if len(cfg.Channels) != 3 {
		t.Errorf("expected default channels, got %d", len(cfg.Channels))
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.yml")
	if err := os.WriteFile(path, []byte("recipient: ops@example.com\nscan:\n  start_delay: 1s\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scan.StartDelay == nil || *cfg.Scan.StartDelay != time.Second {
		t.Errorf("start_delay: got %v, want 1s", cfg.Scan.StartDelay)
	}
	if cfg.Server.Addr != "127.0.0.1:8088" {
		t.Errorf("server.addr: got %q, want default", cfg.Server.Addr)
	}
	if len(cfg.Channels) != 3 {
		t.Errorf("channels: got %d, want defaults", len(cfg.Channels))
	}
}

func TestLoadExplicitZeroStartDelay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "immediate.yml")
	if err := os.WriteFile(path, []byte("scan:\n  start_delay: 0s\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scan.StartDelay == nil {
		t.Fatal("start_delay: got nil, want explicit 0s")
	}
	if *cfg.Scan.StartDelay != 0 {
		t.Errorf("start_delay: got %s, want 0s", *cfg.Scan.StartDelay)
	}

	unset, err := Load(filepath.Join(dir, "missing.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if unset.Scan.StartDelay != nil {
		t.Errorf("start_delay without config: got %s, want nil", *unset.Scan.StartDelay)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("CELLWATCH_PROFILE", "manual")
	t.Setenv("CELLWATCH_SCAN__INTERVAL", "90s")
	t.Setenv("CELLWATCH_SERVER__ENABLED", "false")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Profile != "manual" {
		t.Errorf("env override failed: got %q, want %q", loaded.Profile, "manual")
	}
	if loaded.Scan.Interval != 90*time.Second {
		t.Errorf("nested env override failed: got %s, want 90s", loaded.Scan.Interval)
	}
	if loaded.Server.Enabled {
		t.Error("expected server.enabled = false from env")
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"CELLWATCH_PROFILE":               "profile",
		"CELLWATCH_SCAN__INTERVAL":        "scan.interval",
		"CELLWATCH_TELEMETRY__MMCLI_PATH": "telemetry.mmcli_path",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"profile", func(c *Config) { c.Profile = "turbo" }},
		{"recipient", func(c *Config) { c.Recipient = "nobody" }},
		{"negative interval", func(c *Config) { c.Scan.Interval = -time.Second }},
		{"negative start delay", func(c *Config) { d := -time.Second; c.Scan.StartDelay = &d }},
		{"no platform", func(c *Config) { c.Telemetry.Platform = "" }},
		{"fixture without files", func(c *Config) { c.Telemetry.Platform = "fixture" }},
		{"unnamed channel", func(c *Config) { c.Channels[0].Name = "" }},
		{"duplicate channel", func(c *Config) { c.Channels[1].Name = c.Channels[0].Name }},
		{"no endpoint", func(c *Config) { c.Channels[0].Endpoint = "" }},
		{"bad accept", func(c *Config) { c.Channels[0].Accept = []int{42} }},
		{"no server addr", func(c *Config) { c.Server.Addr = "" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateUnknownPlatformAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telemetry.Platform = "ios"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unknown platform should validate, got: %v", err)
	}
	if KnownPlatform("ios") {
		t.Error("KnownPlatform(ios) = true, want false")
	}
}

func TestResolveCredential(t *testing.T) {
	ch := ChannelConfig{Credential: "literal", CredentialEnv: "CELLWATCH_TEST_RELAY_KEY"}
	if got := ch.ResolveCredential(); got != "literal" {
		t.Errorf("without env: got %q, want literal", got)
	}

	t.Setenv("CELLWATCH_TEST_RELAY_KEY", "from-env")
	if got := ch.ResolveCredential(); got != "from-env" {
		t.Errorf("with env: got %q, want from-env", got)
	}
}

func TestOutboxPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/cellwatch"
	if got := cfg.OutboxPath(); got != filepath.Join("/var/lib/cellwatch", "outbox.db") {
		t.Errorf("OutboxPath() = %q", got)
	}
}

func TestOutboxInMemoryByDefault(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DataDir != "" {
		t.Errorf("default data_dir = %q, want empty", cfg.DataDir)
	}
	if got := cfg.OutboxPath(); got != "" {
		t.Errorf("OutboxPath() = %q, want empty without data_dir", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config without data_dir should validate, got: %v", err)
	}
}
