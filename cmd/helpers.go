package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ziadkadry99/cellwatch/internal/config"
	"github.com/ziadkadry99/cellwatch/internal/db"
	"github.com/ziadkadry99/cellwatch/internal/logging"
	"github.com/ziadkadry99/cellwatch/internal/notifications"
	"github.com/ziadkadry99/cellwatch/internal/report"
	"github.com/ziadkadry99/cellwatch/internal/scanner"
	"github.com/ziadkadry99/cellwatch/internal/telemetry"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `cellwatch init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// app holds everything the commands share, built from one config.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	reader     telemetry.Reader
	database   *db.DB
	outbox     *notifications.Store
	dispatcher *notifications.Dispatcher
	scanner    *scanner.Scanner

	logCloser io.Closer
}

// newApp loads the config and wires the reader, outbox, dispatcher and
// scanner. Callers must Close it.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.New(cfg.Log, verbose)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	slog.SetDefault(logger)
	a := &app{cfg: cfg, logger: logger, logCloser: logCloser}

	a.reader, err = buildReader(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating telemetry reader: %w", err)
	}
	if !config.KnownPlatform(cfg.Telemetry.Platform) {
		logger.Warn("unknown telemetry platform; every scan will report it as unsupported", "platform", cfg.Telemetry.Platform)
	}

	a.database, err = openOutbox(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening outbox: %w", err)
	}
	a.outbox = notifications.NewStore(a.database)

	formatter := report.Formatter{Recipient: cfg.Recipient, Platform: a.reader.Platform()}
	a.dispatcher = notifications.NewDispatcher(formatter, buildChannels(cfg.Channels),
		notifications.WithOutbox(a.outbox),
		notifications.WithLogger(logger),
	)

	profile, err := buildProfile(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	opts := []scanner.Option{
		scanner.WithProfile(profile),
		scanner.WithLogger(logger),
		scanner.WithRecipient(cfg.Recipient),
	}
	if cfg.Scan.EmailStatusTTL > 0 {
		opts = append(opts, scanner.WithEmailStatusTTL(cfg.Scan.EmailStatusTTL))
	}
	a.scanner = scanner.New(a.reader, a.dispatcher, opts...)

	return a, nil
}

// Close releases the outbox and the log file.
func (a *app) Close() error {
	var errs []error
	if a.database != nil {
		errs = append(errs, a.database.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

// openOutbox opens the outbox file under data_dir, or an in-memory outbox
// that lasts for this process when data_dir is unset.
func openOutbox(cfg *config.Config) (*db.DB, error) {
	if path := cfg.OutboxPath(); path != "" {
		return db.Open(path)
	}
	return db.OpenMemory()
}

// persistentOutbox reports whether outbox records outlive the process.
func (a *app) persistentOutbox() bool {
	return a.cfg.OutboxPath() != ""
}

// outboxLabel describes where outbox records are kept.
func (a *app) outboxLabel() string {
	if a.persistentOutbox() {
		return a.database.Path()
	}
	return "in memory (set data_dir to keep reports across runs)"
}

// buildReader creates the telemetry reader selected by the config.
func buildReader(cfg *config.Config) (telemetry.Reader, error) {
	return telemetry.New(telemetry.Options{
		Platform:    cfg.Telemetry.Platform,
		Modem:       cfg.Telemetry.Modem,
		MMCLIPath:   cfg.Telemetry.MMCLIPath,
		FixtureGlob: cfg.Telemetry.Fixtures,
	})
}

// buildChannels turns the configured relays into channels, in order. A relay
// with credential_env is not ready until that variable or a literal
// credential supplies one.
func buildChannels(cfgs []config.ChannelConfig) []notifications.Channel {
	client := &http.Client{Timeout: 10 * time.Second}
	channels := make([]notifications.Channel, 0, len(cfgs))
	for _, c := range cfgs {
		channels = append(channels, notifications.NewWebhook(notifications.WebhookConfig{
			Name:              c.Name,
			Endpoint:          c.Endpoint,
			Credential:        c.ResolveCredential(),
			RequireCredential: c.CredentialEnv != "",
			Fields:            c.Fields,
			Accept:            c.Accept,
		}, client))
	}
	return channels
}

// buildProfile resolves the named profile and applies the scan overrides.
// The manual profile never gets an interval.
func buildProfile(cfg *config.Config) (scanner.Profile, error) {
	p, err := scanner.ProfileByName(cfg.Profile)
	if err != nil {
		return p, err
	}

	sc := cfg.Scan
	if sc.Interval > 0 && p.Interval > 0 {
		p.Interval = sc.Interval
	}
	if sc.StartDelay != nil {
		p.StartDelay = *sc.StartDelay
	}
	if sc.HeartbeatEvery > 0 {
		p.HeartbeatEvery = sc.HeartbeatEvery
	}
	if sc.ChangeDetection != nil && p.Interval > 0 {
		p.ChangeDetection = *sc.ChangeDetection
	}
	return p, nil
}
