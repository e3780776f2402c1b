// Package status holds the user-facing scanner state and pushes every change
// to subscribers.
package status

import (
	"time"

	"github.com/ziadkadry99/cellwatch/internal/cell"
)

// Severity classifies a status message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityAlert   Severity = "alert"
)

// SignalSeverity grades a signal percentage for display.
func SignalSeverity(percent int) Severity {
	switch {
	case percent >= 75:
		return SeveritySuccess
	case percent >= 50:
		return SeverityWarning
	case percent > 0:
		return SeverityError
	default:
		return SeverityInfo
	}
}

// EmailStatus is the transient outcome of the last report delivery.
type EmailStatus struct {
	Visible  bool     `json:"visible"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// CellView is the display form of the current snapshot.
type CellView struct {
	MCC            string    `json:"mcc"`
	MNC            string    `json:"mnc"`
	LAC            string    `json:"lac"`
	CID            string    `json:"cid"`
	SignalStrength string    `json:"signal_strength"`
	SignalClass    Severity  `json:"signal_class"`
	RSSI           int       `json:"rssi_dbm"`
	NetworkType    string    `json:"network_type"`
	CarrierName    string    `json:"carrier_name"`
	CountryCode    string    `json:"country_code"`
	LastUpdated    time.Time `json:"last_updated"`
}

// NewCellView builds the display form of s.
func NewCellView(s cell.Snapshot) *CellView {
	return &CellView{
		MCC:            s.MCC,
		MNC:            s.MNC,
		LAC:            s.LAC,
		CID:            s.CID,
		SignalStrength: s.SignalDisplay(),
		SignalClass:    SignalSeverity(s.SignalPercent),
		RSSI:           s.RSSI,
		NetworkType:    s.NetworkType,
		CarrierName:    s.CarrierName,
		CountryCode:    s.CountryCode,
		LastUpdated:    s.CapturedAt,
	}
}

// State is everything a presentation layer needs to render.
type State struct {
	StatusMessage string      `json:"status_message"`
	Severity      Severity    `json:"severity"`
	HasData       bool        `json:"has_data"`
	Loading       bool        `json:"loading"`
	EmailLoading  bool        `json:"email_loading"`
	Email         EmailStatus `json:"email"`
	Cell          *CellView   `json:"cell,omitempty"`
	ScanCount     uint64      `json:"scan_count"`
	CanSendEmail  bool        `json:"can_send_email"`
}

// clone copies s, including the cell view.
func (s State) clone() State {
	if s.Cell != nil {
		c := *s.Cell
		s.Cell = &c
	}
	return s
}

// EventType names the part of the state a transition touched.
type EventType string

const (
	EventStatus  EventType = "status"
	EventCell    EventType = "cell"
	EventLoading EventType = "loading"
	EventEmail   EventType = "email"
)

// Event is pushed to subscribers after every transition and carries the full
// resulting state.
type Event struct {
	Seq   uint64    `json:"seq"`
	Type  EventType `json:"type"`
	State State     `json:"state"`
	At    time.Time `json:"at"`
}
