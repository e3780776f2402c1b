package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ziadkadry99/cellwatch/internal/cell"
	"github.com/ziadkadry99/cellwatch/internal/report"
)

// Dispatcher formats reports and delivers them over an ordered list of
// channels. The first channel that succeeds ends the delivery.
type Dispatcher struct {
	formatter report.Formatter
	channels  []Channel
	outbox    *Store
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOutbox records every delivery in store.
func WithOutbox(store *Store) Option {
	return func(d *Dispatcher) { d.outbox = store }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a Dispatcher trying channels in the given order.
func NewDispatcher(f report.Formatter, channels []Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		formatter: f,
		channels:  channels,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Channels returns the configured channels in priority order.
func (d *Dispatcher) Channels() []Channel {
	return d.channels
}

// Outbox returns the store deliveries are recorded in, or nil.
func (d *Dispatcher) Outbox() *Store {
	return d.outbox
}

// Dispatch formats a report of the given kind and sends it.
func (d *Dispatcher) Dispatch(ctx context.Context, kind report.Kind, snap cell.Snapshot, prev *cell.Snapshot, scanCount uint64) (Result, error) {
	return d.Send(ctx, d.formatter.Build(kind, snap, prev, scanCount))
}

// Send delivers r and records the outcome in the outbox. When every channel
// fails the full report is logged and the error wraps ErrDispatchFailed.
func (d *Dispatcher) Send(ctx context.Context, r report.Report) (Result, error) {
	res, err := d.deliver(ctx, r)

	if d.outbox != nil {
		rec := Record{
			ID:        r.ID,
			Kind:      r.Kind,
			EventType: r.EventType,
			Recipient: r.Recipient,
			Subject:   r.Subject,
			Body:      r.Body,
			Delivered: res.Delivered,
			Channel:   res.Channel,
			Attempts:  res.Attempts,
			CreatedAt: r.CreatedAt,
		}
		if id, cerr := d.outbox.Create(context.WithoutCancel(ctx), rec); cerr != nil {
			d.logger.Warn("notifications: recording dispatch", "report_id", r.ID, "error", cerr)
		} else {
			res.ReportID = id
		}
	}

	if err != nil {
		d.logFailure(r, res, err)
	}
	return res, err
}

// Resend retries delivery of an outbox record. Records that were already
// delivered are sent again; the new attempts are appended either way.
func (d *Dispatcher) Resend(ctx context.Context, id string) (Result, error) {
	if d.outbox == nil {
		return Result{}, errors.New("no outbox configured")
	}
	rec, err := d.outbox.GetByID(ctx, id)
	if err != nil {
		return Result{}, err
	}

	r := rec.Report()
	res, err := d.deliver(ctx, r)
	if rerr := d.outbox.RecordResult(context.WithoutCancel(ctx), id, res); rerr != nil {
		d.logger.Warn("notifications: recording resend", "report_id", id, "error", rerr)
	}
	if err != nil {
		d.logFailure(r, res, err)
	}
	return res, err
}

func (d *Dispatcher) deliver(ctx context.Context, r report.Report) (Result, error) {
	res := Result{ReportID: r.ID}

	for _, ch := range d.channels {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
		}

		attempt := Attempt{Channel: ch.Name(), At: d.now()}
		if !ch.Ready() {
			attempt.Skipped = true
			res.Attempts = append(res.Attempts, attempt)
			d.logger.Debug("notifications: channel not configured", "channel", ch.Name())
			continue
		}

		err := ch.Send(ctx, r)
		if err == nil {
			res.Attempts = append(res.Attempts, attempt)
			res.Delivered = true
			res.Channel = ch.Name()
			d.logger.Info("notifications: report sent", "channel", ch.Name(), "kind", r.Kind, "report_id", r.ID)
			return res, nil
		}

		attempt.Error = err.Error()
		var se *StatusError
		if errors.As(err, &se) {
			attempt.StatusCode = se.Code
		}
		res.Attempts = append(res.Attempts, attempt)
		d.logger.Warn("notifications: channel failed", "channel", ch.Name(), "error", err)
	}

	return res, ErrDispatchFailed
}

func (d *Dispatcher) logFailure(r report.Report, res Result, err error) {
	d.logger.Error("notifications: report not delivered",
		"error", err,
		"report_id", r.ID,
		"kind", r.Kind,
		"attempted", res.Calls(),
		"recipient", r.Recipient,
		"subject", r.Subject,
		"body", r.Body,
	)
}
