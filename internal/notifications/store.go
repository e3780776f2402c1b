package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/cellwatch/internal/db"
	"github.com/ziadkadry99/cellwatch/internal/report"
)

// ErrNotFound is returned when no outbox record has the requested ID.
var ErrNotFound = errors.New("outbox record not found")

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02 15:04:05.000000"

// ListFilter controls which records are returned by List.
type ListFilter struct {
	Kind      report.Kind
	Delivered *bool
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// Store is the outbox: every dispatched report with its delivery attempts.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Create inserts a record. If rec.ID is empty a UUID is generated; the ID
// actually stored is returned.
func (s *Store) Create(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	attempts, err := encodeAttempts(rec.Attempts)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispatches (id, kind, event_type, recipient, subject, body, delivered, channel, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.EventType, rec.Recipient, rec.Subject, rec.Body,
		boolInt(rec.Delivered), rec.Channel, attempts,
		formatTime(rec.CreatedAt), formatTime(s.now()),
	)
	if err != nil {
		return "", fmt.Errorf("inserting dispatch: %w", err)
	}
	return rec.ID, nil
}

// GetByID retrieves a single record.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, event_type, recipient, subject, body, delivered, channel, attempts, created_at, updated_at
		FROM dispatches WHERE id = ?`, id)

	rec, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List returns records matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Delivered != nil {
		clauses = append(clauses, "delivered = ?")
		args = append(args, boolInt(*filter.Delivered))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, formatTime(filter.Until))
	}

	query := "SELECT id, kind, event_type, recipient, subject, body, delivered, channel, attempts, created_at, updated_at FROM dispatches"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dispatches: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

// GetPending returns all undelivered records.
func (s *Store) GetPending(ctx context.Context) ([]Record, error) {
	delivered := false
	return s.List(ctx, ListFilter{Delivered: &delivered})
}

// RecordResult appends the attempts of a new delivery to the record. A
// delivered record stays delivered.
func (s *Store) RecordResult(ctx context.Context, id string, res Result) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	attempts, err := encodeAttempts(append(rec.Attempts, res.Attempts...))
	if err != nil {
		return err
	}
	channel := rec.Channel
	if res.Delivered {
		channel = res.Channel
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE dispatches SET delivered = ?, channel = ?, attempts = ?, updated_at = ?
		WHERE id = ?`,
		boolInt(rec.Delivered || res.Delivered), channel, attempts, formatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating dispatch: %w", err)
	}
	return nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Record, error) {
	var (
		rec                  Record
		kind, attemptsJSON   string
		delivered            int
		createdAt, updatedAt string
	)

	err := sc.Scan(&rec.ID, &kind, &rec.EventType, &rec.Recipient, &rec.Subject, &rec.Body,
		&delivered, &rec.Channel, &attemptsJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.Kind = report.Kind(kind)
	rec.Delivered = delivered != 0
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)

	if err := json.Unmarshal([]byte(attemptsJSON), &rec.Attempts); err != nil {
		rec.Attempts = nil
	}
	return &rec, nil
}

func encodeAttempts(a []Attempt) (string, error) {
	if a == nil {
		a = []Attempt{}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshalling attempts: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
