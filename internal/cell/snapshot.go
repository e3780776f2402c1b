// Package cell defines the serving-cell snapshot and the identity rules used
// to decide whether the device moved to a different tower.
package cell

import (
	"fmt"
	"time"
)

// Sentinel values used when the platform cannot supply a field.
const (
	Unknown    = "Unknown"
	Restricted = "Restricted"
	NoRSSI     = -999
)

// Snapshot is the cell registration captured at one scan instant.
type Snapshot struct {
	MCC           string    `json:"mcc" yaml:"mcc"`
	MNC           string    `json:"mnc" yaml:"mnc"`
	LAC           string    `json:"lac" yaml:"lac"`
	CID           string    `json:"cid" yaml:"cid"`
	SignalPercent int       `json:"signal_percent" yaml:"signal_percent"`
	RSSI          int       `json:"rssi_dbm" yaml:"rssi_dbm"`
	NetworkType   string    `json:"network_type" yaml:"network_type"`
	CarrierName   string    `json:"carrier_name" yaml:"carrier_name"`
	CountryCode   string    `json:"country_code" yaml:"country_code"`
	CapturedAt    time.Time `json:"captured_at" yaml:"captured_at"`
}

// Normalize returns a copy with every missing string set to Unknown, the
// signal clamped to [0,100] and a zero RSSI replaced by NoRSSI.
func (s Snapshot) Normalize() Snapshot {
	s.MCC = orUnknown(s.MCC)
	s.MNC = orUnknown(s.MNC)
	s.LAC = orUnknown(s.LAC)
	s.CID = orUnknown(s.CID)
	s.NetworkType = orUnknown(s.NetworkType)
	s.CarrierName = orUnknown(s.CarrierName)
	s.CountryCode = orUnknown(s.CountryCode)
	s.SignalPercent = ClampPercent(s.SignalPercent)
	if s.RSSI == 0 {
		s.RSSI = NoRSSI
	}
	return s
}

// SignalDisplay renders the signal as "<n>%", or "Unknown" when there is none.
func (s Snapshot) SignalDisplay() string {
	if s.SignalPercent > 0 {
		return fmt.Sprintf("%d%%", s.SignalPercent)
	}
	return Unknown
}

// ClampPercent bounds n to [0,100].
func ClampPercent(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// LevelToPercent maps a 0-4 signal bar level to a percentage.
func LevelToPercent(level int) int {
	return ClampPercent(level * 25)
}

func orUnknown(v string) string {
	if v == "" {
		return Unknown
	}
	return v
}

// networkTypes maps radio technology codes to display labels.
var networkTypes = map[int]string{
	0:  "Unknown",
	1:  "GPRS",
	2:  "EDGE",
	3:  "UMTS",
	4:  "CDMA",
	5:  "EVDO_0",
	6:  "EVDO_A",
	7:  "1xRTT",
	8:  "HSDPA",
	9:  "HSUPA",
	10: "HSPA",
	11: "iDEN",
	12: "EVDO_B",
	13: "LTE",
	14: "eHRPD",
	15: "HSPA+",
	16: "GSM",
	17: "TD_SCDMA",
	18: "IWLAN",
	19: "LTE_CA",
	20: "NR",
}

// NetworkTypeName returns the label for a radio technology code.
func NetworkTypeName(code int) string {
	if name, ok := networkTypes[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", code)
}
