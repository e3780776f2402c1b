package cell

import "strconv"

// Identity is the tuple that decides whether two snapshots are the same tower.
type Identity struct {
	MCC         string
	MNC         string
	LAC         string
	CID         string
	CarrierName string
}

// Identity returns the identity key of s.
func (s Snapshot) Identity() Identity {
	return Identity{
		MCC:         s.MCC,
		MNC:         s.MNC,
		LAC:         s.LAC,
		CID:         s.CID,
		CarrierName: s.CarrierName,
	}
}

// SameTower reports whether a and b share every identity field. Comparison is
// exact and case-sensitive.
func SameTower(a, b Snapshot) bool {
	return a.Identity() == b.Identity()
}

// FieldChange is one differing field between two snapshots.
type FieldChange struct {
	Field  string `json:"field"`
	Label  string `json:"label"`
	Before string `json:"before"`
	After  string `json:"after"`
}

type reportField struct {
	field string
	label string
	value func(Snapshot) string
}

// reportFields is the fixed order in which fields are compared and listed.
var reportFields = []reportField{
	{"mcc", "Mobile Country Code (MCC)", func(s Snapshot) string { return s.MCC }},
	{"mnc", "Mobile Network Code (MNC)", func(s Snapshot) string { return s.MNC }},
	{"lac", "Location Area Code (LAC)", func(s Snapshot) string { return s.LAC }},
	{"cid", "Cell ID (CID)", func(s Snapshot) string { return s.CID }},
	{"carrier_name", "Carrier Name", func(s Snapshot) string { return s.CarrierName }},
	{"network_type", "Network Type", func(s Snapshot) string { return s.NetworkType }},
	{"country_code", "Country Code", func(s Snapshot) string { return s.CountryCode }},
	{"signal_percent", "Signal Strength", func(s Snapshot) string { return s.SignalDisplay() }},
	{"rssi_dbm", "RSSI (dBm)", func(s Snapshot) string { return strconv.Itoa(s.RSSI) }},
}

// Diff lists the fields whose values differ between prev and cur.
// CapturedAt is never compared.
func Diff(prev, cur Snapshot) []FieldChange {
	var changes []FieldChange
	for _, f := range reportFields {
		before, after := f.value(prev), f.value(cur)
		if before == after {
			continue
		}
		changes = append(changes, FieldChange{
			Field:  f.field,
			Label:  f.label,
			Before: before,
			After:  after,
		})
	}
	return changes
}
