package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is a stored ledger computation without its entries.
type Run struct {
	ID          string          `json:"id"`
	Window      capacity.Window `json:"window"`
	HoursPerDay int             `json:"hours_per_day"`
	GeneratedAt time.Time       `json:"generated_at"`
	Assignees   int             `json:"assignees"`
	IdleDays    int             `json:"idle_business_days"`
	Anomalies   int             `json:"anomalies"`
}

// TrendPoint is one assignee's figures in one run.
type TrendPoint struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Entry       capacity.Entry `json:"entry"`
}

// Store persists ledgers so idle capacity can be compared across runs.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveLedger stores the ledger, its entries and anomalies in one
// transaction and returns the new run ID.
func (s *Store) SaveLedger(ctx context.Context, ledger *capacity.Ledger) (string, error) {
	runID := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	generatedAt := ledger.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_runs (id, window_start, window_end, hours_per_day, generated_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID,
		ledger.Window.Start.Format(capacity.DateLayout),
		ledger.Window.End.Format(capacity.DateLayout),
		ledger.HoursPerDay,
		generatedAt.UTC().Format(timeLayout),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for _, e := range ledger.Entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_entries (run_id, assignee, team, window_start, window_end, window_override,
				tasks, tasks_in_window, window_business_days, occupied_business_days, idle_business_days, idle_hours)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID,
			e.Assignee,
			e.Team,
			e.Window.Start.Format(capacity.DateLayout),
			e.Window.End.Format(capacity.DateLayout),
			boolToInt(e.Override),
			e.Tasks,
			e.TasksInWindow,
			e.WindowBusinessDays,
			e.OccupiedBusinessDays,
			e.IdleBusinessDays,
			e.IdleHours,
		)
		if err != nil {
			return "", fmt.Errorf("inserting entry for %s: %w", e.Assignee, err)
		}
	}

	for _, a := range ledger.Anomalies {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_anomalies (run_id, task_id, assignee, kind, field, value) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, a.TaskID, a.Assignee, string(a.Kind), a.Field, a.Value,
		)
		if err != nil {
			return "", fmt.Errorf("inserting anomaly: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return runID, nil
}

const runColumns = `r.id, r.window_start, r.window_end, r.hours_per_day, r.generated_at,
	(SELECT COUNT(*) FROM ledger_entries e WHERE e.run_id = r.id),
	(SELECT COALESCE(SUM(e.idle_business_days), 0) FROM ledger_entries e WHERE e.run_id = r.id),
	(SELECT COUNT(*) FROM ledger_anomalies a WHERE a.run_id = r.id)`

// ListRuns returns the most recent runs first. A non-positive limit
// returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+`
		FROM ledger_runs r
		ORDER BY r.generated_at DESC, r.created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Run returns the header of one run.
func (s *Store) Run(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM ledger_runs r WHERE r.id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run                     Run
		start, end, generatedAt string
	)
	if err := row.Scan(&run.ID, &start, &end, &run.HoursPerDay, &generatedAt,
		&run.Assignees, &run.IdleDays, &run.Anomalies); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scanning run: %w", err)
	}
	window, err := capacity.ParseWindow(start, end)
	if err != nil {
		return run, fmt.Errorf("run %s: %w", run.ID, err)
	}
	run.Window = window
	run.GeneratedAt, _ = time.Parse(timeLayout, generatedAt)
	return run, nil
}

// Entries returns the ledger entries of one run, sorted by assignee.
func (s *Store) Entries(ctx context.Context, runID string) ([]capacity.Entry, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM ledger_runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries e WHERE e.run_id = ? ORDER BY e.assignee`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []capacity.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AssigneeTrend returns the assignee's entries across the most recent
// runs, newest first.
func (s *Store) AssigneeTrend(ctx context.Context, assignee string, limit int) ([]TrendPoint, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.generated_at, `+entryColumns+`
		FROM ledger_entries e
		JOIN ledger_runs r ON r.id = e.run_id
		WHERE e.assignee = ?
		ORDER BY r.generated_at DESC, r.created_at DESC
		LIMIT ?`, assignee, limit)
	if err != nil {
		return nil, fmt.Errorf("loading trend: %w", err)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var (
			p           TrendPoint
			generatedAt string
		)
		e, err := scanEntry(rows, &p.RunID, &generatedAt)
		if err != nil {
			return nil, err
		}
		p.Entry = e
		p.GeneratedAt, _ = time.Parse(timeLayout, generatedAt)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("assignee %s: %w", assignee, ErrNotFound)
	}
	return points, nil
}

const entryColumns = `e.assignee, e.team, e.window_start, e.window_end, e.window_override, e.tasks, e.tasks_in_window,
	e.window_business_days, e.occupied_business_days, e.idle_business_days, e.idle_hours`

// scanEntry scans entryColumns, preceded by any extra destinations.
func scanEntry(rows *sql.Rows, leading ...any) (capacity.Entry, error) {
	var (
		e          capacity.Entry
		start, end string
		override   int
	)
	dest := append(leading,
		&e.Assignee, &e.Team, &start, &end, &override, &e.Tasks, &e.TasksInWindow,
		&e.WindowBusinessDays, &e.OccupiedBusinessDays, &e.IdleBusinessDays, &e.IdleHours,
	)
	if err := rows.Scan(dest...); err != nil {
		return e, fmt.Errorf("scanning entry: %w", err)
	}
	w, err := capacity.ParseWindow(start, end)
	if err != nil {
		return e, fmt.Errorf("entry %s: %w", e.Assignee, err)
	}
	e.Window = w
	e.Override = override != 0
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
