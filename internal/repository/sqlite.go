package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/xiaot623/gogo/traceview/internal/domain"
)

// ErrDuplicate is returned when a run, span or event id is already taken.
var ErrDuplicate = errors.New("duplicate id")

// wrapDuplicate turns a unique or primary key violation into ErrDuplicate.
func wrapDuplicate(err error, what, id string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %s %s", ErrDuplicate, what, id)
	}
	return err
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS spans (
			span_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			parent_span_id TEXT,
			name TEXT NOT NULL,
			status TEXT,
			started_at INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (run_id) REFERENCES runs(run_id),
			FOREIGN KEY (parent_span_id) REFERENCES spans(span_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spans_run ON spans(run_id)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			span_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			kind TEXT NOT NULL,
			correlation_id TEXT,
			sequence_number INTEGER,
			status TEXT,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id),
			FOREIGN KEY (span_id) REFERENCES spans(span_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_span ON events(span_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun creates a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, status, started_at, ended_at) VALUES (?, ?, ?, ?)`,
		run.RunID, run.Status, run.StartedAt, run.EndedAt)
	return wrapDuplicate(err, "run", run.RunID)
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	var status string
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, status, started_at, ended_at FROM runs WHERE run_id = ?`,
		runID).Scan(&run.RunID, &status, &run.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Status = domain.ParseTraceStatus(status)
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	return &run, nil
}

// UpdateRunStatus updates the status of a run. Success and error also set
// the end time.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status domain.TraceStatus) error {
	var endedAt sql.NullTime
	if status == domain.TraceStatusSuccess || status == domain.TraceStatusError {
		endedAt = sql.NullTime{Time: time.Now(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ended_at = ? WHERE run_id = ?`,
		status, endedAt, runID)
	return err
}

// CreateSpan creates a new span.
func (s *SQLiteStore) CreateSpan(ctx context.Context, span *domain.SpanRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spans (span_id, run_id, parent_span_id, name, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		span.SpanID, span.RunID, nullString(span.ParentSpanID), span.Name, nullString(string(span.Status)), span.StartedAt)
	return wrapDuplicate(err, "span", span.SpanID)
}

// GetSpan retrieves a span by ID.
func (s *SQLiteStore) GetSpan(ctx context.Context, spanID string) (*domain.SpanRecord, error) {
	var span domain.SpanRecord
	var parentSpanID, status sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT span_id, run_id, parent_span_id, name, status, started_at FROM spans WHERE span_id = ?`,
		spanID).Scan(&span.SpanID, &span.RunID, &parentSpanID, &span.Name, &status, &span.StartedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	span.ParentSpanID = parentSpanID.String
	span.Status = domain.Status(status.String)
	return &span, nil
}

// CreateEvents stores events of one span in a single transaction. A taken
// event id fails the whole batch with ErrDuplicate.
func (s *SQLiteStore) CreateEvents(ctx context.Context, runID, spanID string, events []domain.RawEvent) error {
	_, err := s.insertEvents(ctx, `INSERT`, runID, spanID, events)
	return err
}

// CreateEventsIfAbsent stores events of one span in a single transaction,
// skipping events whose id is already stored. It returns the ids it inserted.
func (s *SQLiteStore) CreateEventsIfAbsent(ctx context.Context, runID, spanID string, events []domain.RawEvent) ([]string, error) {
	return s.insertEvents(ctx, `INSERT OR IGNORE`, runID, spanID, events)
}

func (s *SQLiteStore) insertEvents(ctx context.Context, verb, runID, spanID string, events []domain.RawEvent) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		verb+` INTO events (event_id, run_id, span_id, ts, kind, correlation_id, sequence_number, status, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := make([]string, 0, len(events))
	for _, ev := range events {
		var seq sql.NullInt64
		if ev.SequenceNumber != nil {
			seq = sql.NullInt64{Int64: *ev.SequenceNumber, Valid: true}
		}
		res, err := stmt.ExecContext(ctx,
			ev.EventID, runID, spanID, ev.Timestamp, ev.Kind, nullString(ev.CorrelationID), seq,
			nullString(string(ev.Status)), nullStringBytes(ev.Payload))
		if err != nil {
			return nil, fmt.Errorf("failed to insert event %s: %w", ev.EventID, wrapDuplicate(err, "event", ev.EventID))
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted = append(inserted, ev.EventID)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit events: %w", err)
	}
	return inserted, nil
}

// GetEvents retrieves events for a run across all spans, in stored order.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string, afterTs int64, kinds []string, limit int) ([]domain.RawEvent, error) {
	query := `SELECT event_id, ts, kind, correlation_id, sequence_number, status, payload FROM events WHERE run_id = ?`
	args := []interface{}{runID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, k := range kinds {
			placeholders[i] = "?"
			args = append(args, k)
		}
		query += fmt.Sprintf(" AND kind IN (%s)", strings.Join(placeholders, ","))
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.RawEvent
	for rows.Next() {
		ev, err := scanEvent(rows, nil)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEvents returns the number of events stored for a run.
func (s *SQLiteStore) CountEvents(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// GetTrace materializes the span tree of a run. Events within a span are
// ordered by timestamp, then by insertion. Spans whose parent is unknown
// or themselves are treated as top level.
func (s *SQLiteStore) GetTrace(ctx context.Context, runID string) (*domain.Trace, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}

	spanRows, err := s.db.QueryContext(ctx,
		`SELECT span_id, parent_span_id, name, status, started_at FROM spans WHERE run_id = ? ORDER BY started_at ASC, rowid ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	var records []domain.SpanRecord
	for spanRows.Next() {
		rec := domain.SpanRecord{RunID: runID}
		var parentSpanID, status sql.NullString
		if err := spanRows.Scan(&rec.SpanID, &parentSpanID, &rec.Name, &status, &rec.StartedAt); err != nil {
			spanRows.Close()
			return nil, err
		}
		rec.ParentSpanID = parentSpanID.String
		rec.Status = domain.Status(status.String)
		records = append(records, rec)
	}
	spanRows.Close()
	if err := spanRows.Err(); err != nil {
		return nil, err
	}

	eventRows, err := s.db.QueryContext(ctx,
		`SELECT event_id, ts, kind, correlation_id, sequence_number, status, payload, span_id FROM events WHERE run_id = ? ORDER BY ts ASC, rowid ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	defer eventRows.Close()

	bySpan := make(map[string][]domain.RawEvent)
	for eventRows.Next() {
		var spanID string
		ev, err := scanEvent(eventRows, &spanID)
		if err != nil {
			return nil, err
		}
		bySpan[spanID] = append(bySpan[spanID], ev)
	}
	if err := eventRows.Err(); err != nil {
		return nil, err
	}

	return &domain.Trace{
		RunID:  run.RunID,
		Status: run.Status,
		Spans:  assembleSpans(records, bySpan),
	}, nil
}

func assembleSpans(records []domain.SpanRecord, bySpan map[string][]domain.RawEvent) []domain.Span {
	known := make(map[string]bool, len(records))
	for _, r := range records {
		known[r.SpanID] = true
	}
	children := make(map[string][]domain.SpanRecord)
	for _, r := range records {
		parent := r.ParentSpanID
		if !known[parent] || parent == r.SpanID {
			parent = ""
		}
		children[parent] = append(children[parent], r)
	}

	var build func(parent string) []domain.Span
	build = func(parent string) []domain.Span {
		recs := children[parent]
		spans := make([]domain.Span, 0, len(recs))
		for _, r := range recs {
			events := bySpan[r.SpanID]
			if events == nil {
				events = []domain.RawEvent{}
			}
			spans = append(spans, domain.Span{
				SpanID:    r.SpanID,
				Name:      r.Name,
				Status:    r.Status,
				StartedAt: r.StartedAt,
				Events:    events,
				Spans:     build(r.SpanID),
			})
		}
		return spans
	}
	return build("")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row scanner, spanID *string) (domain.RawEvent, error) {
	var ev domain.RawEvent
	var kind string
	var correlationID, status, payload sql.NullString
	var seq sql.NullInt64
	dest := []interface{}{&ev.EventID, &ev.Timestamp, &kind, &correlationID, &seq, &status, &payload}
	if spanID != nil {
		dest = append(dest, spanID)
	}
	if err := row.Scan(dest...); err != nil {
		return ev, err
	}
	ev.Kind = domain.EventKind(kind)
	ev.CorrelationID = correlationID.String
	ev.Status = domain.Status(status.String)
	if seq.Valid {
		n := seq.Int64
		ev.SequenceNumber = &n
	}
	if payload.Valid {
		ev.Payload = json.RawMessage(payload.String)
	}
	return ev, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
