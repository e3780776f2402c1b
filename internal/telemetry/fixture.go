package telemetry

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/cellwatch/internal/cell"
)

// FixtureEntry is one recorded scan result. Error, when set, makes the read
// fail instead: "permission_denied" or "unavailable".
type FixtureEntry struct {
	cell.Snapshot `yaml:",inline"`
	Error         string `yaml:"error,omitempty"`
}

type fixtureFile struct {
	Snapshots []FixtureEntry `yaml:"snapshots"`
}

// FixtureReader replays snapshots loaded from YAML files, round-robin.
type FixtureReader struct {
	mu      sync.Mutex
	entries []FixtureEntry
	next    int
	now     func() time.Time
}

// NewFixtureReader loads every file matching pattern (doublestar syntax, e.g.
// "testdata/**/*.yml") in lexical order.
func NewFixtureReader(pattern string) (*FixtureReader, error) {
	if pattern == "" {
		return nil, fmt.Errorf("fixture platform requires telemetry.fixtures")
	}
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("matching fixtures %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no fixture files match %q", pattern)
	}
	sort.Strings(paths)

	var entries []FixtureEntry
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading fixture %s: %w", p, err)
		}
		var f fixtureFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing fixture %s: %w", p, err)
		}
		entries = append(entries, f.Snapshots...)
	}
	return NewFixtureReaderFromEntries(entries)
}

// NewFixtureReaderFromEntries replays the given entries.
func NewFixtureReaderFromEntries(entries []FixtureEntry) (*FixtureReader, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("fixture contains no snapshots")
	}
	return &FixtureReader{entries: entries}, nil
}

// Platform implements Reader.
func (r *FixtureReader) Platform() string { return PlatformFixture }

// Authorize implements Reader.
func (r *FixtureReader) Authorize(context.Context) error { return nil }

// Read implements Reader.
func (r *FixtureReader) Read(ctx context.Context) (cell.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return cell.Snapshot{}, err
	}

	r.mu.Lock()
	e := r.entries[r.next]
	r.next = (r.next + 1) % len(r.entries)
	r.mu.Unlock()

	switch e.Error {
	case "":
	case "permission_denied":
		return cell.Snapshot{}, fmt.Errorf("%w: fixture", ErrPermissionDenied)
	case "unavailable":
		return cell.Snapshot{}, fmt.Errorf("%w: fixture", ErrTelemetryUnavailable)
	default:
		return cell.Snapshot{}, fmt.Errorf("%w: fixture error %q", ErrTelemetryUnavailable, e.Error)
	}

	snap := e.Snapshot
	snap.CapturedAt = clock(r.now)()
	return snap.Normalize(), nil
}
