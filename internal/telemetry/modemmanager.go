package telemetry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/cellwatch/internal/cell"
)

// lacCISource is the ModemManager location source that exposes area and
// cell identifiers.
const lacCISource = "3gpp-lac-ci"

// ModemManagerReader reads the full cell registration through ModemManager.
type ModemManagerReader struct {
	mm  mmcli
	now func() time.Time
}

// Platform implements Reader.
func (r *ModemManagerReader) Platform() string { return PlatformModemManager }

// Authorize requires the 3GPP LAC/CI location source to be enabled, which is
// how ModemManager gates access to cell identity.
func (r *ModemManagerReader) Authorize(ctx context.Context) error {
	st, err := r.mm.locationStatus(ctx)
	if err != nil {
		if errors.Is(err, ErrTelemetryUnavailable) {
			return err
		}
		return fmt.Errorf("%w: querying location status: %v", ErrTelemetryUnavailable, err)
	}
	if !slices.Contains(st.Modem.Location.Enabled, lacCISource) {
		return fmt.Errorf("%w: location source %s not enabled (mmcli -m %s --location-enable-3gpp)",
			ErrPermissionDenied, lacCISource, r.mm.modem)
	}
	return nil
}

// Read implements Reader. Operator data is mandatory; area, cell and RSSI
// degrade to sentinels when their queries fail.
func (r *ModemManagerReader) Read(ctx context.Context) (cell.Snapshot, error) {
	info, err := r.mm.modemInfo(ctx)
	if err != nil {
		if errors.Is(err, ErrTelemetryUnavailable) {
			return cell.Snapshot{}, err
		}
		return cell.Snapshot{}, fmt.Errorf("%w: %v", ErrTelemetryUnavailable, err)
	}

	snap := operatorSnapshot(info)
	snap.CapturedAt = clock(r.now)()

	tech, ok := networkType(info.Modem.Generic.AccessTechnologies)
	if ok {
		snap.NetworkType = tech
	}
	if q := info.Modem.Generic.SignalQuality.Value; present(q) {
		if n, err := strconv.Atoi(strings.TrimSpace(q)); err == nil {
			snap.SignalPercent = cell.ClampPercent(n)
		}
	}

	if loc, err := r.mm.location(ctx); err == nil {
		applyLocation(&snap, loc, tech)
	}
	if sig, err := r.mm.signal(ctx); err == nil {
		if rssi, ok := rssiFor(sig, tech); ok {
			snap.RSSI = rssi
		}
	}

	if snap.MCC == cell.Unknown && snap.CarrierName == cell.Unknown {
		return cell.Snapshot{}, fmt.Errorf("%w: modem %s is not registered", ErrTelemetryUnavailable, r.mm.modem)
	}
	return snap.Normalize(), nil
}

// CarrierReader reports operator data only. Area and cell identifiers are
// always Restricted and the signal is unknown.
type CarrierReader struct {
	mm  mmcli
	now func() time.Time
}

// Platform implements Reader.
func (r *CarrierReader) Platform() string { return PlatformCarrier }

// Authorize implements Reader; operator data needs no authorization.
func (r *CarrierReader) Authorize(context.Context) error { return nil }

// Read implements Reader.
func (r *CarrierReader) Read(ctx context.Context) (cell.Snapshot, error) {
	info, err := r.mm.modemInfo(ctx)
	if err != nil {
		if errors.Is(err, ErrTelemetryUnavailable) {
			return cell.Snapshot{}, err
		}
		return cell.Snapshot{}, fmt.Errorf("%w: %v", ErrTelemetryUnavailable, err)
	}

	snap := operatorSnapshot(info)
	snap.LAC = cell.Restricted
	snap.CID = cell.Restricted
	snap.SignalPercent = 0
	snap.RSSI = cell.NoRSSI
	snap.NetworkType = cell.Unknown
	snap.CapturedAt = clock(r.now)()
	return snap.Normalize(), nil
}

func operatorSnapshot(info *modemInfo) cell.Snapshot {
	snap := cell.Snapshot{
		MCC:         cell.Unknown,
		MNC:         cell.Unknown,
		LAC:         cell.Unknown,
		CID:         cell.Unknown,
		NetworkType: cell.Unknown,
		CarrierName: cell.Unknown,
		CountryCode: cell.Unknown,
		RSSI:        cell.NoRSSI,
	}
	if mcc, mnc, ok := splitOperatorCode(info.Modem.ThreeGPP.OperatorCode); ok {
		snap.MCC, snap.MNC = mcc, mnc
		if iso, ok := countryFor(mcc); ok {
			snap.CountryCode = iso
		}
	}
	if name := strings.TrimSpace(info.Modem.ThreeGPP.OperatorName); present(name) {
		snap.CarrierName = name
	}
	return snap
}

// applyLocation copies area and cell identifiers. LTE and NR cells are
// addressed by tracking area, older technologies by location area.
func applyLocation(snap *cell.Snapshot, loc *locationInfo, tech string) {
	g := loc.Modem.Location.ThreeGPP
	area := g.LAC
	if tech == "LTE" || tech == "NR" || !present(area) || isZeroHex(area) {
		if present(g.TAC) && !isZeroHex(g.TAC) {
			area = g.TAC
		}
	}
	if v, ok := hexToDecimal(area); ok {
		snap.LAC = v
	}
	if v, ok := hexToDecimal(g.CID); ok {
		snap.CID = v
	}
}

func isZeroHex(v string) bool {
	return strings.Trim(strings.TrimSpace(v), "0") == ""
}

func clock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
