package notifications

import (
	"errors"
	"time"

	"github.com/ziadkadry99/cellwatch/internal/report"
)

// ErrDispatchFailed is returned when no channel delivered a report.
var ErrDispatchFailed = errors.New("all notification channels failed")

// Attempt records one channel's part in a delivery.
type Attempt struct {
	Channel    string    `json:"channel"`
	Skipped    bool      `json:"skipped,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Result is the outcome of sending one report.
type Result struct {
	ReportID  string    `json:"report_id"`
	Delivered bool      `json:"delivered"`
	Channel   string    `json:"channel,omitempty"`
	Attempts  []Attempt `json:"attempts"`
}

// Calls counts the attempts that reached the network.
func (r Result) Calls() int {
	n := 0
	for _, a := range r.Attempts {
		if !a.Skipped {
			n++
		}
	}
	return n
}

// Record is a report as kept in the outbox, together with its delivery history.
type Record struct {
	ID        string      `json:"id"`
	Kind      report.Kind `json:"kind"`
	EventType string      `json:"event_type"`
	Recipient string      `json:"recipient"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	Delivered bool        `json:"delivered"`
	Channel   string      `json:"channel,omitempty"`
	Attempts  []Attempt   `json:"attempts"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Report rebuilds the report the record was created from.
func (r Record) Report() report.Report {
	return report.Report{
		ID:        r.ID,
		Kind:      r.Kind,
		EventType: r.EventType,
		Recipient: r.Recipient,
		Subject:   r.Subject,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
	}
}
