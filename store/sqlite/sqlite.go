/*
Package sqlite provides SQLite-backed persistence for the billing workflow.

PURPOSE:
  The reconciliation engine itself is pure and stateless; what needs to
  survive between sessions is the workflow around it: client master data,
  uploaded approval quota sets, and saved reconciliation runs so a printed
  invoice can be re-rendered later from the same computation.

KEY TABLES:
  clients:     Client master data (name, care grade, billing period)
  quota_sets:  One uploaded or manually entered approval per client
  quota_rows:  The rows of a quota set, ordered
  runs:        Saved reconciliation results (totals + lines as JSON)

DECIMAL STORAGE:
  Quantities and amounts are stored as TEXT and parsed with
  decimal.NewFromString, so nothing ever round-trips through binary floats.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - api: HTTP layer using this store
  - reconcile: The pure engine whose inputs/outputs are persisted here
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/reconcile"
	"github.com/warp/billing-engine/tariff"
)

// Store implements persistence for clients, quota sets, and runs.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		birth_date TEXT,
		care_grade INTEGER NOT NULL DEFAULT 0,
		insurance_no TEXT,
		debtor_no TEXT,
		approval_no TEXT,
		approval_date TEXT,
		period_from TEXT,
		period_to TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quota_sets (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		label TEXT,
		source_file TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS quota_rows (
		set_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		code TEXT NOT NULL,
		description TEXT,
		per_week TEXT NOT NULL,
		per_month TEXT NOT NULL,
		PRIMARY KEY (set_id, position),
		FOREIGN KEY (set_id) REFERENCES quota_sets(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		allowance TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_quota_sets_client ON quota_sets(client_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_client ON runs(client_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CLIENTS
// =============================================================================

// Client is the master data of one care client.
type Client struct {
	ID           string
	Name         string
	BirthDate    string
	CareGrade    int
	InsuranceNo  string
	DebtorNo     string
	ApprovalNo   string
	ApprovalDate string
	PeriodFrom   string
	PeriodTo     string
	CreatedAt    time.Time
}

// SaveClient inserts or replaces a client record.
func (s *Store) SaveClient(ctx context.Context, c Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO clients
			(id, name, birth_date, care_grade, insurance_no, debtor_no,
			 approval_no, approval_date, period_from, period_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.BirthDate, c.CareGrade, c.InsuranceNo, c.DebtorNo,
		c.ApprovalNo, c.ApprovalDate, c.PeriodFrom, c.PeriodTo,
		c.CreatedAt.Format(time.RFC3339))
	return err
}

// GetClient returns a client by ID, nil when absent.
func (s *Store) GetClient(ctx context.Context, id string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, birth_date, care_grade, insurance_no, debtor_no,
		       approval_no, approval_date, period_from, period_to, created_at
		FROM clients WHERE id = ?`, id)

	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListClients returns all clients ordered by name.
func (s *Store) ListClients(ctx context.Context) ([]Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, birth_date, care_grade, insurance_no, debtor_no,
		       approval_no, approval_date, period_from, period_to, created_at
		FROM clients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeleteClient removes a client and, via cascade, its quota sets and runs.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(r rowScanner) (*Client, error) {
	var c Client
	var createdAt string
	err := r.Scan(&c.ID, &c.Name, &c.BirthDate, &c.CareGrade, &c.InsuranceNo,
		&c.DebtorNo, &c.ApprovalNo, &c.ApprovalDate, &c.PeriodFrom, &c.PeriodTo,
		&createdAt)
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// =============================================================================
// QUOTA SETS
// =============================================================================

// QuotaSet is one stored approval: metadata plus its rows.
type QuotaSet struct {
	ID         string
	ClientID   string
	Label      string
	SourceFile string
	CreatedAt  time.Time
	Rows       []reconcile.QuotaRow
}

// SaveQuotaSet stores a quota set and its rows atomically, replacing any
// previous set with the same ID.
func (s *Store) SaveQuotaSet(ctx context.Context, set QuotaSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO quota_sets (id, client_id, label, source_file, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		set.ID, set.ClientID, set.Label, set.SourceFile,
		set.CreatedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM quota_rows WHERE set_id = ?`, set.ID); err != nil {
		return err
	}
	for i, row := range set.Rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO quota_rows (set_id, position, code, description, per_week, per_month)
			VALUES (?, ?, ?, ?, ?, ?)`,
			set.ID, i, tariff.Normalize(row.Code), row.Description,
			row.PerWeek.String(), row.PerMonth.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetQuotaSet returns a quota set with its rows, nil when absent.
func (s *Store) GetQuotaSet(ctx context.Context, id string) (*QuotaSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var set QuotaSet
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, label, source_file, created_at
		FROM quota_sets WHERE id = ?`, id).
		Scan(&set.ID, &set.ClientID, &set.Label, &set.SourceFile, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	set.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, description, per_week, per_month
		FROM quota_rows WHERE set_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var code, description, perWeek, perMonth string
		if err := rows.Scan(&code, &description, &perWeek, &perMonth); err != nil {
			return nil, err
		}
		week, err := decimal.NewFromString(perWeek)
		if err != nil {
			return nil, fmt.Errorf("corrupt per_week for %s: %w", code, err)
		}
		month, err := decimal.NewFromString(perMonth)
		if err != nil {
			return nil, fmt.Errorf("corrupt per_month for %s: %w", code, err)
		}
		set.Rows = append(set.Rows, reconcile.QuotaRow{
			Code:        code,
			Description: description,
			PerWeek:     week,
			PerMonth:    month,
		})
	}
	return &set, rows.Err()
}

// ListQuotaSets returns a client's quota sets, newest first, without rows.
func (s *Store) ListQuotaSets(ctx context.Context, clientID string) ([]QuotaSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, label, source_file, created_at
		FROM quota_sets WHERE client_id = ? ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QuotaSet
	for rows.Next() {
		var set QuotaSet
		var createdAt string
		if err := rows.Scan(&set.ID, &set.ClientID, &set.Label, &set.SourceFile, &createdAt); err != nil {
			return nil, err
		}
		set.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, set)
	}
	return out, rows.Err()
}

// DeleteQuotaSet removes a quota set and its rows.
func (s *Store) DeleteQuotaSet(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM quota_sets WHERE id = ?`, id)
	return err
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

// RunRecord is one saved reconciliation: the serialized result plus enough
// metadata to list and re-render it.
type RunRecord struct {
	ID         string
	ClientID   string
	Allowance  decimal.Decimal
	ResultJSON string
	CreatedAt  time.Time
}

// SaveRun stores a reconciliation run.
func (s *Store) SaveRun(ctx context.Context, run RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, client_id, allowance, result_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.ClientID, run.Allowance.String(), run.ResultJSON,
		run.CreatedAt.Format(time.RFC3339))
	return err
}

// GetRun returns a run by ID, nil when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run RunRecord
	var allowance, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, allowance, result_json, created_at
		FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.ClientID, &allowance, &run.ResultJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Allowance, err = decimal.NewFromString(allowance)
	if err != nil {
		return nil, fmt.Errorf("corrupt allowance for run %s: %w", id, err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &run, nil
}

// ListRuns returns a client's runs, newest first, without the result payload.
func (s *Store) ListRuns(ctx context.Context, clientID string) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, allowance, created_at
		FROM runs WHERE client_id = ? ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var run RunRecord
		var allowance, createdAt string
		if err := rows.Scan(&run.ID, &run.ClientID, &allowance, &createdAt); err != nil {
			return nil, err
		}
		run.Allowance, err = decimal.NewFromString(allowance)
		if err != nil {
			return nil, fmt.Errorf("corrupt allowance for run %s: %w", run.ID, err)
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, run)
	}
	return out, rows.Err()
}

// Reset clears all data. Dev/test only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"runs", "quota_rows", "quota_sets", "clients"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
