// Package scanner runs the periodic scan cycle: read the serving cell,
// compare it with the previous reading and request reports on changes and
// heartbeats.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ziadkadry99/cellwatch/internal/cell"
	"github.com/ziadkadry99/cellwatch/internal/notifications"
	"github.com/ziadkadry99/cellwatch/internal/report"
	"github.com/ziadkadry99/cellwatch/internal/status"
	"github.com/ziadkadry99/cellwatch/internal/telemetry"
)

var (
	// ErrBusy is returned when another scan or report is in flight.
	ErrBusy = errors.New("scanner busy")
	// ErrNoData is returned by SendReport before any successful scan.
	ErrNoData = errors.New("no cell data to report")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("scanner already started")
	// ErrCyclePanic wraps a panic recovered from a scan cycle.
	ErrCyclePanic = errors.New("scan cycle panicked")
)

// Class is the classification of one cycle.
type Class string

const (
	NoData    Class = "no_data"
	Changed   Class = "changed"
	Unchanged Class = "unchanged"
)

// Dispatcher delivers reports. *notifications.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind report.Kind, snap cell.Snapshot, prev *cell.Snapshot, scanCount uint64) (notifications.Result, error)
}

// Outcome describes what one cycle did.
type Outcome struct {
	Class     Class          `json:"class"`
	Snapshot  *cell.Snapshot `json:"snapshot,omitempty"`
	Previous  *cell.Snapshot `json:"previous,omitempty"`
	ScanCount uint64         `json:"scan_count"`
	// Report is the kind dispatched by the cycle, empty when none was.
	Report      report.Kind           `json:"report,omitempty"`
	Dispatch    *notifications.Result `json:"dispatch,omitempty"`
	DispatchErr error                 `json:"-"`
}

// Scanner owns the scan state and the busy gate shared by automatic cycles,
// manual scans and manual reports.
type Scanner struct {
	reader     telemetry.Reader
	dispatcher Dispatcher
	hub        *status.Hub
	profile    Profile
	logger     *slog.Logger
	recipient  string
	emailTTL   time.Duration

	busy atomic.Bool

	mu        sync.Mutex
	prev      *cell.Snapshot
	current   *cell.Snapshot
	scanCount uint64

	runMu   sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithProfile sets the cadence. The default is Stealth.
func WithProfile(p Profile) Option {
	return func(s *Scanner) { s.profile = p }
}

// WithHub publishes state to hub instead of a private one.
func WithHub(h *status.Hub) Option {
	return func(s *Scanner) { s.hub = h }
}

// WithLogger sets the scanner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecipient names the report recipient in status messages.
func WithRecipient(addr string) Option {
	return func(s *Scanner) { s.recipient = addr }
}

// WithEmailStatusTTL sets how long a manual report outcome stays visible.
func WithEmailStatusTTL(d time.Duration) Option {
	return func(s *Scanner) { s.emailTTL = d }
}

// New creates a Scanner reading from reader and reporting through dispatcher.
func New(reader telemetry.Reader, dispatcher Dispatcher, opts ...Option) *Scanner {
	s := &Scanner{
		reader:     reader,
		dispatcher: dispatcher,
		profile:    Stealth,
		logger:     slog.Default(),
		emailTTL:   DefaultEmailStatusTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = status.NewHub(s.profile.Label + " mode initializing...")
	}
	return s
}

// Hub returns the status hub the scanner publishes to.
func (s *Scanner) Hub() *status.Hub { return s.hub }

// Profile returns the scanner's profile.
func (s *Scanner) Profile() Profile { return s.profile }

// Current returns the latest snapshot from any scan.
func (s *Scanner) Current() (cell.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return cell.Snapshot{}, false
	}
	return *s.current, true
}

// Previous returns the snapshot the next cycle will compare against.
func (s *Scanner) Previous() (cell.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prev == nil {
		return cell.Snapshot{}, false
	}
	return *s.prev, true
}

// ScanCount returns the number of successful automatic cycles.
func (s *Scanner) ScanCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanCount
}

// Start launches the scan loop. After the profile's start delay it scans
// once and then on every interval until ctx is done or Stop is called.
func (s *Scanner) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.hub.SetStatus(s.profile.Label+" mode starting...", status.SeverityInfo)
	go s.loop(ctx, s.done)
	return nil
}

// Stop cancels the loop and waits for it to exit. It is safe to call more
// than once, concurrently, and on a scanner that was never started; every
// call returns only after the loop has exited.
func (s *Scanner) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scanner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.profile.StartDelay > 0 {
		delay := time.NewTimer(s.profile.StartDelay)
		select {
		case <-ctx.Done():
			delay.Stop()
			return
		case <-delay.C:
		}
	}

	if s.profile.Interval <= 0 {
		s.hub.SetStatus(s.profile.Label+" mode - scans run on request", status.SeverityInfo)
		return
	}

	s.hub.SetStatus(fmt.Sprintf("%s mode active - monitoring every %s", s.profile.Label, every(s.profile.Interval)), status.SeveritySuccess)
	s.tick(ctx)

	ticker := time.NewTicker(s.profile.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scanner) tick(ctx context.Context) {
	out, err := s.RunCycle(ctx)
	switch {
	case err == nil:
		s.logger.Debug("scanner: cycle complete", "class", out.Class, "scan", out.ScanCount)
	case errors.Is(err, ErrBusy):
		s.logger.Debug("scanner: skipping tick, busy")
	case ctx.Err() != nil:
	default:
		s.logger.Warn("scanner: cycle failed", "scan", out.ScanCount, "error", err)
	}
}

// RunCycle performs one automatic cycle. A failed read returns an Outcome
// classified NoData together with the read error; a failed dispatch is
// reported in the Outcome only.
func (s *Scanner) RunCycle(ctx context.Context) (Outcome, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return Outcome{}, ErrBusy
	}
	defer s.busy.Store(false)
	return s.cycle(ctx)
}

func (s *Scanner) cycle(ctx context.Context) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scanner: cycle panicked", "panic", r, "stack", string(debug.Stack()))
			s.hub.SetStatus(s.profile.Label+" scan error occurred", status.SeverityError)
			out = Outcome{Class: NoData, ScanCount: s.ScanCount()}
			err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
		}
	}()

	if err := s.reader.Authorize(ctx); err != nil {
		count := s.ScanCount()
		if errors.Is(err, telemetry.ErrPermissionDenied) {
			s.hub.SetStatus(s.profile.Label+" mode: Permissions required", status.SeverityWarning)
		} else {
			s.noData(count)
		}
		return Outcome{Class: NoData, ScanCount: count}, err
	}

	snap, err := s.reader.Read(ctx)
	if err != nil {
		count := s.ScanCount()
		s.noData(count)
		return Outcome{Class: NoData, ScanCount: count}, err
	}

	s.mu.Lock()
	s.scanCount++
	count := s.scanCount
	prev := s.prev
	stored := snap
	s.prev = &stored
	s.current = &stored
	s.mu.Unlock()

	changed := prev == nil || !cell.SameTower(*prev, snap)
	s.hub.SetCell(snap, count)

	out = Outcome{Snapshot: &snap, Previous: prev, ScanCount: count}
	label := fmt.Sprintf("%s scan #%d", s.profile.Label, count)

	if changed {
		out.Class = Changed
		if !s.profile.ChangeDetection {
			s.hub.SetStatus(label+" - Cell tower changed", status.SeverityAlert)
			return out, nil
		}

		s.hub.SetStatus(label+" - Cell tower changed! Sending alert...", status.SeverityAlert)
		res, derr := s.dispatcher.Dispatch(ctx, report.KindAlert, snap, prev, count)
		out.Report, out.Dispatch, out.DispatchErr = report.KindAlert, &res, derr
		if derr != nil {
			s.hub.SetEmailStatus("Failed to send change alert", status.SeverityError, 0)
			s.hub.SetStatus(label+" - Alert failed to send", status.SeverityError)
		} else {
			s.hub.SetEmailStatus("Cell tower change alert sent", status.SeveritySuccess, 0)
			s.hub.SetStatus(label+" - Alert sent successfully", status.SeveritySuccess)
		}
		return out, nil
	}

	out.Class = Unchanged
	s.hub.SetStatus(label+" - No changes detected", status.SeveritySuccess)

	if n := s.profile.HeartbeatEvery; n > 0 && count%n == 0 {
		res, derr := s.dispatcher.Dispatch(ctx, report.KindHeartbeat, snap, nil, count)
		out.Report, out.Dispatch, out.DispatchErr = report.KindHeartbeat, &res, derr
		if derr == nil {
			s.hub.SetEmailStatus("Periodic update sent", status.SeverityInfo, 0)
		}
	}
	return out, nil
}

func (s *Scanner) noData(count uint64) {
	s.hub.SetStatus(fmt.Sprintf("%s scan #%d - No cell data available", s.profile.Label, count), status.SeverityWarning)
}

// ScanNow reads the serving cell on request. It refreshes the current
// snapshot but leaves the scan count and the comparison baseline alone.
func (s *Scanner) ScanNow(ctx context.Context) (snap cell.Snapshot, err error) {
	if !s.busy.CompareAndSwap(false, true) {
		return cell.Snapshot{}, ErrBusy
	}
	defer s.busy.Store(false)

	s.hub.SetLoading(true)
	defer s.hub.SetLoading(false)
	s.hub.SetStatus("Manual scan in progress...", status.SeverityInfo)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scanner: manual scan panicked", "panic", r, "stack", string(debug.Stack()))
			s.clearCurrent()
			s.hub.SetStatus(fmt.Sprintf("Error: %v", r), status.SeverityError)
			snap, err = cell.Snapshot{}, fmt.Errorf("%w: %v", ErrCyclePanic, r)
		}
	}()

	if err := s.reader.Authorize(ctx); err != nil {
		if errors.Is(err, telemetry.ErrPermissionDenied) {
			s.hub.SetStatus("Location permission required to access cell tower data", status.SeverityError)
		} else {
			s.clearCurrent()
			s.hub.SetStatus("Unable to retrieve cell tower data", status.SeverityError)
		}
		return cell.Snapshot{}, err
	}

	snap, err = s.reader.Read(ctx)
	if err != nil {
		s.clearCurrent()
		s.hub.SetStatus("Unable to retrieve cell tower data", status.SeverityError)
		return cell.Snapshot{}, err
	}

	s.mu.Lock()
	stored := snap
	s.current = &stored
	count := s.scanCount
	s.mu.Unlock()

	s.hub.SetCell(snap, count)
	s.hub.SetStatus("Manual scan completed successfully", status.SeveritySuccess)
	return snap, nil
}

func (s *Scanner) clearCurrent() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.hub.ClearCell()
}

// SendReport dispatches a manual report of the current snapshot.
func (s *Scanner) SendReport(ctx context.Context) (notifications.Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return notifications.Result{}, ErrBusy
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	var snap cell.Snapshot
	ok := s.current != nil
	if ok {
		snap = *s.current
	}
	count := s.scanCount
	s.mu.Unlock()
	if !ok {
		return notifications.Result{}, ErrNoData
	}

	s.hub.SetEmailLoading(true)
	s.hub.SetEmailStatus("Sending manual report...", status.SeverityInfo, 0)

	res, err := s.dispatcher.Dispatch(ctx, report.KindManual, snap, nil, count)

	s.hub.SetEmailLoading(false)
	if err != nil {
		s.hub.SetEmailStatus("Failed to send manual report. Please try again.", status.SeverityError, s.emailTTL)
		return res, err
	}

	msg := "Manual report sent successfully"
	if s.recipient != "" {
		msg += " to " + s.recipient
	}
	s.hub.SetEmailStatus(msg, status.SeveritySuccess, s.emailTTL)
	return res, nil
}
