// Package report turns cell snapshots into the plain-text reports emailed by
// the notification channels.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/cellwatch/internal/cell"
)

// Kind selects the report template.
type Kind string

const (
	KindAlert     Kind = "alert"
	KindHeartbeat Kind = "heartbeat"
	KindManual    Kind = "manual"
)

// EventType returns the tag sent alongside the report.
func (k Kind) EventType() string {
	switch k {
	case KindAlert:
		return "cell_tower_change"
	case KindHeartbeat:
		return "periodic_update"
	default:
		return "manual_report"
	}
}

// Report is a formatted, ready-to-send message.
type Report struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	EventType string    `json:"event_type"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Formatter builds reports. The zero value uses the system clock and local time.
type Formatter struct {
	Recipient string
	Platform  string
	Location  *time.Location
	Now       func() time.Time
}

// Build formats a report of the given kind. prev is only used by alerts and
// may be nil; scanCount is only used by heartbeats.
func (f Formatter) Build(kind Kind, snap cell.Snapshot, prev *cell.Snapshot, scanCount uint64) Report {
	now := f.now()
	stamp := f.local(now).Format("2006-01-02 15:04:05 MST")

	var subject, body string
	switch kind {
	case KindAlert:
		subject = "Cell Tower Change Alert - " + stamp
		body = f.alertBody(snap, prev, now)
	case KindHeartbeat:
		subject = fmt.Sprintf("Cell Tower Periodic Update #%d - %s", scanCount, stamp)
		body = f.heartbeatBody(snap, scanCount, now)
	default:
		kind = KindManual
		subject = "Manual Cell Tower Report - " + stamp
		body = f.manualBody(snap, now)
	}

	return Report{
		ID:        uuid.New().String(),
		Kind:      kind,
		EventType: kind.EventType(),
		Recipient: f.Recipient,
		Subject:   subject,
		Body:      body,
		CreatedAt: now,
	}
}

func (f Formatter) alertBody(snap cell.Snapshot, prev *cell.Snapshot, now time.Time) string {
	var sb strings.Builder
	writeTitle(&sb, "Cell Tower Change Alert")
	fmt.Fprintf(&sb, "Timestamp: %s\n\n", now.UTC().Format(time.RFC3339))

	sb.WriteString("Changes Detected:\n\n")
	if prev == nil {
		sb.WriteString("- Initial cell tower detected (no previous data)\n")
	} else {
		changes := cell.Diff(*prev, snap)
		if len(changes) == 0 {
			sb.WriteString("- No field differences\n")
		}
		for _, c := range changes {
			fmt.Fprintf(&sb, "- %s: %s -> %s\n", c.Label, c.Before, c.After)
		}
	}
	sb.WriteString("\n")

	f.writeSnapshot(&sb, "Current", snap, now)
	return finish(&sb)
}

func (f Formatter) heartbeatBody(snap cell.Snapshot, scanCount uint64, now time.Time) string {
	var sb strings.Builder
	writeTitle(&sb, "Cell Tower Periodic Update")
	fmt.Fprintf(&sb, "Timestamp: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Scan Number: %d\n", scanCount)
	sb.WriteString("Status: No cell tower changes detected\n\n")

	f.writeSnapshot(&sb, "Current", snap, now)
	return finish(&sb)
}

func (f Formatter) manualBody(snap cell.Snapshot, now time.Time) string {
	var sb strings.Builder
	writeTitle(&sb, "Cell Tower Information Report")
	fmt.Fprintf(&sb, "Timestamp: %s\n\n", now.UTC().Format(time.RFC3339))

	f.writeSnapshot(&sb, "", snap, now)
	return finish(&sb)
}

func (f Formatter) writeSnapshot(sb *strings.Builder, prefix string, snap cell.Snapshot, now time.Time) {
	heading := func(name string) string {
		if prefix == "" {
			return name + ":"
		}
		return prefix + " " + name + ":"
	}

	sb.WriteString(heading("Network Information") + "\n\n")
	fmt.Fprintf(sb, "- Mobile Country Code (MCC): %s\n", snap.MCC)
	fmt.Fprintf(sb, "- Mobile Network Code (MNC): %s\n", snap.MNC)
	fmt.Fprintf(sb, "- Location Area Code (LAC): %s\n", snap.LAC)
	fmt.Fprintf(sb, "- Cell ID (CID): %s\n\n", snap.CID)

	sb.WriteString(heading("Signal Information") + "\n\n")
	fmt.Fprintf(sb, "- Signal Strength: %s\n", snap.SignalDisplay())
	fmt.Fprintf(sb, "- RSSI: %d dBm\n", snap.RSSI)
	fmt.Fprintf(sb, "- Network Type: %s\n\n", snap.NetworkType)

	sb.WriteString(heading("Carrier Information") + "\n\n")
	fmt.Fprintf(sb, "- Carrier Name: %s\n", snap.CarrierName)
	fmt.Fprintf(sb, "- Country Code: %s\n\n", snap.CountryCode)

	captured := snap.CapturedAt
	if captured.IsZero() {
		captured = now
	}
	sb.WriteString("Device Information:\n\n")
	fmt.Fprintf(sb, "- Platform: %s\n", orUnknown(f.Platform))
	fmt.Fprintf(sb, "- Scan Time: %s\n", f.local(captured).Format("2006-01-02 15:04:05 MST"))
}

func writeTitle(sb *strings.Builder, title string) {
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len(title)) + "\n\n")
}

func finish(sb *strings.Builder) string {
	sb.WriteString("\n---\n\nThis report was generated automatically by cellwatch.\n")
	return strings.TrimSpace(sb.String())
}

func (f Formatter) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f Formatter) local(t time.Time) time.Time {
	if f.Location != nil {
		return t.In(f.Location)
	}
	return t.Local()
}

func orUnknown(v string) string {
	if v == "" {
		return cell.Unknown
	}
	return v
}
