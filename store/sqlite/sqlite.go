/*
Package sqlite provides a SQLite-backed implementation of payment.Store.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on payment_lines
  - The only UPDATE touches payment_batches.status, guarded by the
    expected current status

KEY TABLES:
  payment_batches: One row per appended batch (intent, status, actor)
  payment_lines:   Immutable chain records, one row per line

INDEXES:
  - PRIMARY KEY(case_id, order_token): One line per order token per case.
    Two writers racing for the same token cannot both commit.
  - idx_payment_lines_batch: Loading a batch's lines
  - idx_payment_batches_case: Listing a case's batches

CONCURRENCY:
  AppendBatch counts the case's lines and inserts inside one SQL
  transaction. A count that differs from the expected version, or a
  primary-key collision, is reported as generic.ErrConcurrentModification.
  The RWMutex serializes writers within one process; across processes
  the primary key does the same job.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/payments.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := payment.NewService(payment.ServiceParams{Store: store, ...})

SEE ALSO:
  - payment/store.go: Interface definition
  - payment/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/payment-ledger/generic"
	"github.com/warp/payment-ledger/payment"
)

// kindNew marks New lines in payment_lines.kind; Change lines store their ChangeKind.
const kindNew = "new"

// Store implements payment.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ payment.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

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
	CREATE TABLE IF NOT EXISTS payment_batches (
		id INTEGER PRIMARY KEY,
		case_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		status TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payment_batches_case
		ON payment_batches(case_id);

	-- Chain records (append-only)
	CREATE TABLE IF NOT EXISTS payment_lines (
		case_id TEXT NOT NULL,
		order_token INTEGER NOT NULL,
		batch_id INTEGER NOT NULL REFERENCES payment_batches(id),
		line_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		previous_id TEXT,
		period_from TEXT NOT NULL,
		period_to TEXT NOT NULL,
		amount TEXT,
		attributes_json TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (case_id, order_token)
	);

	CREATE INDEX IF NOT EXISTS idx_payment_lines_batch
		ON payment_lines(batch_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CHAIN
// =============================================================================

const lineColumns = `order_token, batch_id, line_id, kind, previous_id,
	period_from, period_to, amount, attributes_json, created_at`

// LoadChain returns the case's lines ordered by order token.
func (s *Store) LoadChain(ctx context.Context, caseID payment.CaseID) (payment.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.queryLines(ctx, `
		SELECT `+lineColumns+`
		FROM payment_lines
		WHERE case_id = ?
		ORDER BY order_token ASC
	`, string(caseID))
	if err != nil {
		return nil, err
	}

	chain := make(payment.Chain, 0, len(rows))
	for _, r := range rows {
		chain = append(chain, r.line)
	}
	return chain, nil
}

// AppendBatch writes the batch and its lines in one transaction if the
// case still has expectedVersion lines.
func (s *Store) AppendBatch(ctx context.Context, batch *payment.Batch, expectedVersion int) error {
	if len(batch.Lines) == 0 {
		return payment.ErrEmptyBatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var version int
	if err := sqlTx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payment_lines WHERE case_id = ?", string(batch.CaseID),
	).Scan(&version); err != nil {
		return fmt.Errorf("failed to read chain version: %w", err)
	}
	if version != expectedVersion {
		return fmt.Errorf("%w: case %s has %d lines, expected %d",
			generic.ErrConcurrentModification, batch.CaseID, version, expectedVersion)
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO payment_batches (id, case_id, intent, status, actor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		batch.ID.Int64(),
		string(batch.CaseID),
		string(batch.Intent),
		string(batch.Status),
		batch.Actor,
		formatTime(batch.CreatedAt),
		formatTime(batch.UpdatedAt),
	)
	if err != nil {
		return insertError("batch", err)
	}

	for _, l := range batch.Lines {
		if err := s.insertLine(ctx, sqlTx, batch, l); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func (s *Store) insertLine(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, batch *payment.Batch, l payment.Line) error {
	var (
		kind       string
		period     generic.Period
		amount     sql.NullString
		attributes sql.NullString
	)
	switch line := l.(type) {
	case *payment.NewLine:
		kind = kindNew
		period = line.Period
		amount = sql.NullString{String: line.Amount.Value.String(), Valid: true}
		attrJSON, err := json.Marshal(line.Attributes)
		if err != nil {
			return fmt.Errorf("failed to encode attributes: %w", err)
		}
		attributes = sql.NullString{String: string(attrJSON), Valid: true}
	case *payment.ChangeLine:
		kind = string(line.Kind)
		period = line.Period
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO payment_lines
		(case_id, order_token, batch_id, line_id, kind, previous_id,
		 period_from, period_to, amount, attributes_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(batch.CaseID),
		l.Order(),
		batch.ID.Int64(),
		l.LineID().String(),
		kind,
		nullID(l.Previous()),
		period.Start.String(),
		period.End.String(),
		amount,
		attributes,
		formatTime(l.Created()),
	)
	if err != nil {
		return insertError("line", err)
	}
	return nil
}

type lineRow struct {
	batchID snowflake.ID
	line    payment.Line
}

func (s *Store) queryLines(ctx context.Context, query string, args ...any) ([]lineRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var result []lineRow
	for rows.Next() {
		r, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanLine(rows *sql.Rows) (lineRow, error) {
	var (
		orderToken int64
		batchID    int64
		lineID     string
		kind       string
		previousID sql.NullString
		from, to   string
		amount     sql.NullString
		attributes sql.NullString
		createdAt  string
	)
	if err := rows.Scan(&orderToken, &batchID, &lineID, &kind, &previousID,
		&from, &to, &amount, &attributes, &createdAt); err != nil {
		return lineRow{}, fmt.Errorf("failed to scan line: %w", err)
	}

	id, err := payment.ParseLineID(lineID)
	if err != nil {
		return lineRow{}, fmt.Errorf("line %d: %w", orderToken, err)
	}
	var previous *payment.LineID
	if previousID.Valid {
		p, err := payment.ParseLineID(previousID.String)
		if err != nil {
			return lineRow{}, fmt.Errorf("line %d previous: %w", orderToken, err)
		}
		previous = &p
	}
	start, err := generic.ParseTimePoint(from)
	if err != nil {
		return lineRow{}, err
	}
	end, err := generic.ParseTimePoint(to)
	if err != nil {
		return lineRow{}, err
	}
	period := generic.Period{Start: start, End: end}
	created, err := parseTime(createdAt)
	if err != nil {
		return lineRow{}, fmt.Errorf("line %d created_at: %w", orderToken, err)
	}

	if kind != kindNew {
		return lineRow{batchID: snowflake.ID(batchID), line: &payment.ChangeLine{
			ID:         id,
			OrderToken: orderToken,
			CreatedAt:  created,
			PreviousID: previous,
			Kind:       payment.ChangeKind(kind),
			Period:     period,
		}}, nil
	}

	value, err := generic.ParseAmount(amount.String)
	if err != nil {
		return lineRow{}, fmt.Errorf("line %d amount: %w", orderToken, err)
	}
	line := &payment.NewLine{
		ID:         id,
		OrderToken: orderToken,
		CreatedAt:  created,
		Period:     period,
		Amount:     value,
		PreviousID: previous,
	}
	if attributes.Valid && attributes.String != "" {
		if err := json.Unmarshal([]byte(attributes.String), &line.Attributes); err != nil {
			return lineRow{}, fmt.Errorf("line %d attributes: %w", orderToken, err)
		}
	}
	return lineRow{batchID: snowflake.ID(batchID), line: line}, nil
}

// =============================================================================
// BATCHES
// =============================================================================

const batchColumns = `id, case_id, intent, status, actor, created_at, updated_at`

// GetBatch returns a batch with its lines.
func (s *Store) GetBatch(ctx context.Context, id snowflake.ID) (*payment.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+batchColumns+" FROM payment_batches WHERE id = ?", id.Int64())
	if err != nil {
		return nil, fmt.Errorf("failed to query batch: %w", err)
	}
	batches, err := scanBatches(rows)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, fmt.Errorf("%w: batch %d", generic.ErrEntityNotFound, id.Int64())
	}

	lines, err := s.queryLines(ctx, `
		SELECT `+lineColumns+`
		FROM payment_lines
		WHERE batch_id = ?
		ORDER BY order_token ASC
	`, id.Int64())
	if err != nil {
		return nil, err
	}
	batch := batches[0]
	for _, r := range lines {
		batch.Lines = append(batch.Lines, r.line)
	}
	return batch, nil
}

// ListBatches returns the case's batches in chain order.
func (s *Store) ListBatches(ctx context.Context, caseID payment.CaseID) ([]*payment.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+batchColumns+`
		FROM payment_batches b
		WHERE case_id = ?
		ORDER BY (SELECT MIN(order_token) FROM payment_lines l WHERE l.batch_id = b.id) ASC
	`, string(caseID))
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	batches, err := scanBatches(rows)
	if err != nil {
		return nil, err
	}

	lines, err := s.queryLines(ctx, `
		SELECT `+lineColumns+`
		FROM payment_lines
		WHERE case_id = ?
		ORDER BY order_token ASC
	`, string(caseID))
	if err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]*payment.Batch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}
	for _, r := range lines {
		if b, ok := byID[r.batchID]; ok {
			b.Lines = append(b.Lines, r.line)
		}
	}
	return batches, nil
}

func scanBatches(rows *sql.Rows) ([]*payment.Batch, error) {
	defer rows.Close()

	var batches []*payment.Batch
	for rows.Next() {
		var (
			id                   int64
			caseID               string
			intent, status       string
			actor                string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&id, &caseID, &intent, &status, &actor, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		created, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("batch %d created_at: %w", id, err)
		}
		updated, err := parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("batch %d updated_at: %w", id, err)
		}
		batches = append(batches, &payment.Batch{
			ID:        snowflake.ID(id),
			CaseID:    payment.CaseID(caseID),
			Intent:    payment.Intent(intent),
			Status:    payment.Status(status),
			Actor:     actor,
			CreatedAt: created,
			UpdatedAt: updated,
		})
	}
	return batches, rows.Err()
}

// UpdateBatchStatus moves a batch from one status to another.
func (s *Store) UpdateBatchStatus(ctx context.Context, id snowflake.ID, from, to payment.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_batches SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), formatTime(at), id.Int64(), string(from))
	if err != nil {
		return fmt.Errorf("failed to update batch status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, "SELECT status FROM payment_batches WHERE id = ?", id.Int64()).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: batch %d", generic.ErrEntityNotFound, id.Int64())
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: batch %d is %s, expected %s", generic.ErrConcurrentModification, id.Int64(), current, from)
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullID(id *payment.LineID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func insertError(what string, err error) error {
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s already stored", generic.ErrConcurrentModification, what)
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
