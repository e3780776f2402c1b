package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ziadkadry99/cellwatch/internal/config"
)

func TestBuildProfileOverrides(t *testing.T) {
	off := false
	delay := time.Second
	cfg := config.DefaultConfig()
	cfg.Profile = "development"
	cfg.Scan = config.ScanConfig{
		Interval:        45 * time.Second,
		StartDelay:      &delay,
		HeartbeatEvery:  4,
		ChangeDetection: &off,
	}

	p, err := buildProfile(cfg)
	if err != nil {
		t.Fatalf("buildProfile: %v", err)
	}
	if p.Interval != 45*time.Second {
		t.Errorf("Interval = %s, want 45s", p.Interval)
	}
	if p.StartDelay != time.Second {
		t.Errorf("StartDelay = %s, want 1s", p.StartDelay)
	}
	if p.HeartbeatEvery != 4 {
		t.Errorf("HeartbeatEvery = %d, want 4", p.HeartbeatEvery)
	}
	if p.ChangeDetection {
		t.Error("ChangeDetection = true, want false")
	}
}

func TestBuildProfileImmediateStart(t *testing.T) {
	zero := time.Duration(0)
	cfg := config.DefaultConfig()
	cfg.Scan.StartDelay = &zero

	p, err := buildProfile(cfg)
	if err != nil {
		t.Fatalf("buildProfile: %v", err)
	}
	if p.StartDelay != 0 {
		t.Errorf("StartDelay = %s, want 0 for an explicit zero", p.StartDelay)
	}
}

func TestOpenOutboxInMemoryByDefault(t *testing.T) {
	database, err := openOutbox(config.DefaultConfig())
	if err != nil {
		t.Fatalf("openOutbox: %v", err)
	}
	defer database.Close()
	if got := database.Path(); got != ":memory:" {
		t.Errorf("Path() = %q, want :memory:", got)
	}
}

func TestOpenOutboxUnderDataDir(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "state")

	database, err := openOutbox(cfg)
	if err != nil {
		t.Fatalf("openOutbox: %v", err)
	}
	defer database.Close()
	if got, want := database.Path(), filepath.Join(cfg.DataDir, "outbox.db"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
	if _, err := os.Stat(database.Path()); err != nil {
		t.Errorf("outbox file not created: %v", err)
	}
}

func TestBuildProfileKeepsDefaults(t *testing.T) {
	cfg := config.DefaultConfig()

	p, err := buildProfile(cfg)
	if err != nil {
		t.Fatalf("buildProfile: %v", err)
	}
	if p.Name != "stealth" || p.Interval != 2*time.Minute || p.HeartbeatEvery != 10 || !p.ChangeDetection {
		t.Errorf("profile = %+v, want stock stealth", p)
	}
}

func TestBuildProfileManualStaysManual(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Profile = "manual"
	cfg.Scan.Interval = time.Minute

	p, err := buildProfile(cfg)
	if err != nil {
		t.Fatalf("buildProfile: %v", err)
	}
	if p.Interval != 0 {
		t.Errorf("Interval = %s, want 0 for manual", p.Interval)
	}
}

func TestBuildProfileUnknown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Profile = "turbo"
	if _, err := buildProfile(cfg); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestBuildChannelsDefaultsNotReady(t *testing.T) {
	t.Setenv("SMTP_API_KEY", "")
	channels := buildChannels(config.DefaultConfig().Channels)

	if len(channels) != 3 {
		t.Fatalf("got %d channels, want 3", len(channels))
	}
	for _, ch := range channels {
		if ch.Ready() {
			t.Errorf("%s ready with sample settings", ch.Name())
		}
	}
}

func TestBuildChannelsCredentialFromEnv(t *testing.T) {
	cfgs := []config.ChannelConfig{{
		Name:          "relay",
		Endpoint:      "https://relay.example.com/send",
		CredentialEnv: "CELLWATCH_TEST_RELAY_KEY",
	}}

	t.Setenv("CELLWATCH_TEST_RELAY_KEY", "")
	if buildChannels(cfgs)[0].Ready() {
		t.Error("relay ready without a credential")
	}

	t.Setenv("CELLWATCH_TEST_RELAY_KEY", "k9x2-live")
	if !buildChannels(cfgs)[0].Ready() {
		t.Error("relay not ready with credential from env")
	}
}
