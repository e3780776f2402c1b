package config

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to cellwatch! Let's configure the scanner.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Recipient.
	recipientPrompt := promptui.Prompt{
		Label: "Report recipient email",
		Validate: func(s string) error {
			if !strings.Contains(s, "@") {
				return fmt.Errorf("not an email address")
			}
			return nil
		},
	}
	recipient, err := recipientPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	cfg.Recipient = strings.TrimSpace(recipient)

	// 2. Profile.
	profilePrompt := promptui.Select{
		Label: "Select scanning profile",
		Items: []string{
			"stealth     - scan every 2 minutes, alert on tower changes",
			"development - scan every 30 seconds",
			"manual      - scan only on request",
		},
	}
	profileIdx, _, err := profilePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("profile selection: %w", err)
	}
	cfg.Profile = []string{"stealth", "development", "manual"}[profileIdx]

	// 3. Telemetry platform.
	platformPrompt := promptui.Select{
		Label: "Select telemetry source",
		Items: []string{
			"modemmanager - full cell identity via mmcli",
			"carrier      - operator only, cell identity restricted",
			"fixture      - replay snapshots from YAML files",
		},
	}
	platformIdx, _, err := platformPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("platform selection: %w", err)
	}
	cfg.Telemetry.Platform = []string{"modemmanager", "carrier", "fixture"}[platformIdx]

	if cfg.Telemetry.Platform == "fixture" {
		fixturePrompt := promptui.Prompt{
			Label:   "Fixture files (glob)",
			Default: "fixtures/**/*.yml",
		}
		glob, err := fixturePrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("fixtures: %w", err)
		}
		cfg.Telemetry.Fixtures = glob
	} else {
		modemPrompt := promptui.Prompt{
			Label:   "ModemManager modem index",
			Default: cfg.Telemetry.Modem,
		}
		modem, err := modemPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("modem: %w", err)
		}
		cfg.Telemetry.Modem = modem
	}

	// 4. One relay to configure now; the others keep their samples.
	names := make([]string, 0, len(cfg.Channels)+1)
	for _, ch := range cfg.Channels {
		names = append(names, ch.Name)
	}
	names = append(names, "skip")

	channelPrompt := promptui.Select{
		Label: "Configure a notification relay",
		Items: names,
	}
	channelIdx, _, err := channelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("channel selection: %w", err)
	}
	if channelIdx < len(cfg.Channels) {
		if err := configureChannel(&cfg.Channels[channelIdx]); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// configureChannel prompts for the endpoint and every field still holding a
// sample value.
func configureChannel(ch *ChannelConfig) error {
	endpointPrompt := promptui.Prompt{
		Label:   ch.Name + " endpoint",
		Default: ch.Endpoint,
	}
	endpoint, err := endpointPrompt.Run()
	if err != nil {
		return fmt.Errorf("%s endpoint: %w", ch.Name, err)
	}
	ch.Endpoint = endpoint

	for key, value := range ch.Fields {
		p := promptui.Prompt{
			Label:   fmt.Sprintf("%s %s", ch.Name, key),
			Default: value,
		}
		v, err := p.Run()
		if err != nil {
			return fmt.Errorf("%s %s: %w", ch.Name, key, err)
		}
		ch.Fields[key] = v
	}

	if ch.CredentialEnv != "" {
		fmt.Printf("\nNote: set %s in your environment with the %s credential.\n", ch.CredentialEnv, ch.Name)
		ch.Credential = ""
	}
	return nil
}
