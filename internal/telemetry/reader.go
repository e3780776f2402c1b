// Package telemetry reads the serving-cell registration from the host
// platform. Each supported platform is one Reader implementation, chosen once
// at startup by New.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/ziadkadry99/cellwatch/internal/cell"
)

// Reader errors. A failed Read always wraps one of them.
var (
	ErrPermissionDenied     = errors.New("telemetry: permission denied")
	ErrPlatformUnsupported  = errors.New("telemetry: platform unsupported")
	ErrTelemetryUnavailable = errors.New("telemetry: no usable cell data")
)

// Platform names accepted by New.
const (
	PlatformModemManager = "modemmanager"
	PlatformCarrier      = "carrier"
	PlatformFixture      = "fixture"
)

// Reader queries the platform for the current cell registration.
type Reader interface {
	// Platform returns the platform name this reader serves.
	Platform() string

	// Authorize checks that the platform grants access to cell identity data.
	// Readers that need no authorization return nil.
	Authorize(ctx context.Context) error

	// Read returns the current snapshot. Fields the platform cannot supply
	// are filled with sentinels instead of failing the read.
	Read(ctx context.Context) (cell.Snapshot, error)
}

// Options selects and configures a Reader.
type Options struct {
	Platform    string
	Modem       string
	MMCLIPath   string
	FixtureGlob string
	Runner      Runner
}

// New returns the Reader for opts.Platform. Unknown platforms, and
// modemmanager on a non-Linux host, yield a reader that fails every call with
// ErrPlatformUnsupported so the scan loop keeps running and reporting it.
func New(opts Options) (Reader, error) {
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	mm := mmcli{path: opts.MMCLIPath, modem: opts.Modem, runner: runner}
	if mm.path == "" {
		mm.path = "mmcli"
	}
	if mm.modem == "" {
		mm.modem = "0"
	}

	switch opts.Platform {
	case PlatformModemManager:
		if runtime.GOOS != "linux" {
			return Unsupported(opts.Platform + "/" + runtime.GOOS), nil
		}
		return &ModemManagerReader{mm: mm}, nil
	case PlatformCarrier:
		return &CarrierReader{mm: mm}, nil
	case PlatformFixture:
		return NewFixtureReader(opts.FixtureGlob)
	default:
		return Unsupported(opts.Platform), nil
	}
}

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s not installed", ErrTelemetryUnavailable, name)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("running %s: %w: %s", name, err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("running %s: %w", name, err)
	}
	return out, nil
}

type unsupported struct {
	name string
}

// Unsupported returns a Reader that rejects every call with
// ErrPlatformUnsupported.
func Unsupported(name string) Reader {
	return unsupported{name: name}
}

func (u unsupported) Platform() string { return u.name }

func (u unsupported) Authorize(context.Context) error {
	return fmt.Errorf("%w: %q", ErrPlatformUnsupported, u.name)
}

func (u unsupported) Read(context.Context) (cell.Snapshot, error) {
	return cell.Snapshot{}, fmt.Errorf("%w: %q", ErrPlatformUnsupported, u.name)
}
