package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// mmcli wraps the ModemManager command-line client in JSON mode.
type mmcli struct {
	path   string
	modem  string
	runner Runner
}

// mmValue is how mmcli reports a value it does not have.
const mmValue = "--"

type modemInfo struct {
	Modem struct {
		ThreeGPP struct {
			OperatorCode string `json:"operator-code"`
			OperatorName string `json:"operator-name"`
		} `json:"3gpp"`
		Generic struct {
			AccessTechnologies []string `json:"access-technologies"`
			SignalQuality      struct {
				Value string `json:"value"`
			} `json:"signal-quality"`
		} `json:"generic"`
	} `json:"modem"`
}

type locationStatus struct {
	Modem struct {
		Location struct {
			Capabilities []string `json:"capabilities"`
			Enabled      []string `json:"enabled"`
		} `json:"location"`
	} `json:"modem"`
}

type locationInfo struct {
	Modem struct {
		Location struct {
			ThreeGPP struct {
				MCC string `json:"mcc"`
				MNC string `json:"mnc"`
				LAC string `json:"lac"`
				TAC string `json:"tac"`
				CID string `json:"cid"`
			} `json:"3gpp"`
		} `json:"location"`
	} `json:"modem"`
}

type signalTech struct {
	RSSI string `json:"rssi"`
}

type signalInfo struct {
	Modem struct {
		Signal struct {
			NR5G signalTech `json:"5g"`
			LTE  signalTech `json:"lte"`
			UMTS signalTech `json:"umts"`
			GSM  signalTech `json:"gsm"`
			CDMA signalTech `json:"cdma1x"`
			EVDO signalTech `json:"evdo"`
		} `json:"signal"`
	} `json:"modem"`
}

func (m mmcli) query(ctx context.Context, v any, extra ...string) error {
	args := append([]string{"-m", m.modem}, extra...)
	args = append(args, "-J")
	out, err := m.runner.Run(ctx, m.path, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, v); err != nil {
		return fmt.Errorf("decoding mmcli output: %w", err)
	}
	return nil
}

func (m mmcli) modemInfo(ctx context.Context) (*modemInfo, error) {
	var info modemInfo
	if err := m.query(ctx, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (m mmcli) locationStatus(ctx context.Context) (*locationStatus, error) {
	var st locationStatus
	if err := m.query(ctx, &st, "--location-status"); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m mmcli) location(ctx context.Context) (*locationInfo, error) {
	var loc locationInfo
	if err := m.query(ctx, &loc, "--location-get"); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (m mmcli) signal(ctx context.Context) (*signalInfo, error) {
	var sig signalInfo
	if err := m.query(ctx, &sig, "--signal-get"); err != nil {
		return nil, err
	}
	return &sig, nil
}

// present reports whether an mmcli field carries a value.
func present(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != mmValue
}

// splitOperatorCode splits "310260" into MCC "310" and MNC "260".
func splitOperatorCode(code string) (mcc, mnc string, ok bool) {
	code = strings.TrimSpace(code)
	if len(code) < 5 {
		return "", "", false
	}
	return code[:3], code[3:], true
}

// hexToDecimal converts the hex area and cell codes mmcli prints into the
// decimal form used in reports.
func hexToDecimal(v string) (string, bool) {
	if !present(v) {
		return "", false
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 16, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatUint(n, 10), true
}

// accessTechnologies maps ModemManager technology names to report labels.
var accessTechnologies = map[string]string{
	"gsm":         "GSM",
	"gsm-compact": "GSM",
	"gprs":        "GPRS",
	"edge":        "EDGE",
	"umts":        "UMTS",
	"hsdpa":       "HSDPA",
	"hsupa":       "HSUPA",
	"hspa":        "HSPA",
	"hspa-plus":   "HSPA+",
	"1xrtt":       "1xRTT",
	"evdo0":       "EVDO_0",
	"evdoa":       "EVDO_A",
	"evdob":       "EVDO_B",
	"lte":         "LTE",
	"lte-cat-m":   "LTE",
	"lte-nb-iot":  "LTE",
	"5gnr":        "NR",
}

// networkType picks the most advanced technology mmcli reports.
func networkType(techs []string) (string, bool) {
	var best string
	for _, t := range techs {
		label, ok := accessTechnologies[strings.ToLower(strings.TrimSpace(t))]
		if !ok {
			continue
		}
		if best == "" || rank(label) > rank(best) {
			best = label
		}
	}
	return best, best != ""
}

func rank(label string) int {
	switch label {
	case "NR":
		return 4
	case "LTE":
		return 3
	case "HSPA+", "HSPA", "HSDPA", "HSUPA", "UMTS", "EVDO_B", "EVDO_A", "EVDO_0":
		return 2
	default:
		return 1
	}
}

// rssiFor returns the RSSI of the technology in use, falling back to the
// first technology that reports one.
func rssiFor(sig *signalInfo, tech string) (int, bool) {
	s := sig.Modem.Signal
	ordered := []signalTech{s.NR5G, s.LTE, s.UMTS, s.GSM, s.CDMA, s.EVDO}
	switch tech {
	case "LTE":
		ordered = append([]signalTech{s.LTE}, ordered...)
	case "UMTS", "HSPA", "HSPA+", "HSDPA", "HSUPA":
		ordered = append([]signalTech{s.UMTS}, ordered...)
	case "GSM", "GPRS", "EDGE":
		ordered = append([]signalTech{s.GSM}, ordered...)
	}
	for _, t := range ordered {
		if !present(t.RSSI) {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(t.RSSI), 64)
		if err != nil {
			continue
		}
		return int(f), true
	}
	return 0, false
}

// mccCountries maps mobile country codes to ISO 3166 alpha-2 codes.
var mccCountries = map[string]string{
	"202": "gr", "204": "nl", "206": "be", "208": "fr", "214": "es",
	"222": "it", "226": "ro", "228": "ch", "232": "at", "234": "gb",
	"235": "gb", "238": "dk", "240": "se", "242": "no", "244": "fi",
	"260": "pl", "262": "de", "268": "pt", "272": "ie", "250": "ru",
	"302": "ca", "310": "us", "311": "us", "312": "us", "313": "us",
	"314": "us", "315": "us", "316": "us", "334": "mx", "404": "in",
	"405": "in", "440": "jp", "441": "jp", "450": "kr", "460": "cn",
	"505": "au", "530": "nz", "602": "eg", "621": "ng", "655": "za",
	"722": "ar", "724": "br", "730": "cl", "732": "co",
}

func countryFor(mcc string) (string, bool) {
	iso, ok := mccCountries[mcc]
	return iso, ok
}
