package scanner

import (
	"fmt"
	"strings"
	"time"
)

// Profile is a scanning cadence. Profiles differ only in calibration.
type Profile struct {
	Name  string
	Label string
	// Interval between automatic cycles; zero disables the timer.
	Interval        time.Duration
	StartDelay      time.Duration
	ChangeDetection bool
	// HeartbeatEvery sends a periodic update on unchanged cycles whose scan
	// count is a multiple of it; zero disables heartbeats.
	HeartbeatEvery uint64
}

const (
	DefaultStartDelay     = 3 * time.Second
	DefaultHeartbeatEvery = 10
	DefaultEmailStatusTTL = 5 * time.Second
)

var (
	Manual = Profile{
		Name:  "manual",
		Label: "Manual",
	}
	Development = Profile{
		Name:            "development",
		Label:           "Development",
		Interval:        30 * time.Second,
		StartDelay:      DefaultStartDelay,
		ChangeDetection: true,
		HeartbeatEvery:  DefaultHeartbeatEvery,
	}
	Stealth = Profile{
		Name:            "stealth",
		Label:           "Stealth",
		Interval:        120 * time.Second,
		StartDelay:      DefaultStartDelay,
		ChangeDetection: true,
		HeartbeatEvery:  DefaultHeartbeatEvery,
	}
)

// Profiles lists the built-in profiles.
func Profiles() []Profile {
	return []Profile{Manual, Development, Stealth}
}

// ProfileByName returns the built-in profile with the given name.
func ProfileByName(name string) (Profile, error) {
	for _, p := range Profiles() {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("unknown profile %q (want manual, development or stealth)", name)
}

// every renders an interval the way the status line shows it.
func every(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	case d >= time.Second && d%time.Second == 0:
		return plural(int(d/time.Second), "second")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
