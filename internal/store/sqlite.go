package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailbot/internal/model"
)

// SQLiteStore implements the Journal interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Journal = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// RecordDecision inserts a journal entry.
func (s *SQLiteStore) RecordDecision(
	ctx context.Context,
	e model.JournalEntry,
) (model.JournalEntry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.DecidedAt.IsZero() {
		e.DecidedAt = time.Now()
	}
	e.DecidedAt = e.DecidedAt.UTC()
	if e.Actions == nil {
		e.Actions = []model.WireAction{}
	}

	actionsJSON, err := json.Marshal(e.Actions)
	if err != nil {
		return e, fmt.Errorf("marshaling actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, message_id, mailbox, uid, sender, subject,
			source, rule_name, status, actions, reason, error,
			dry_run, applied, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.MessageID, e.Mailbox, e.UID, e.Sender, e.Subject,
		e.Source, e.RuleName, e.Status, string(actionsJSON), e.Reason, e.Error,
		boolToInt(e.DryRun), boolToInt(e.Applied), e.DecidedAt,
	)
	if err != nil {
		return e, fmt.Errorf("recording decision %s: %w", e.ID, err)
	}

	return e, nil
}

// HasMessage reports whether a decided or rejected entry exists for the
// message.
func (s *SQLiteStore) HasMessage(
	ctx context.Context,
	mailbox, messageID string,
	uid uint32,
) (bool, error) {
	query := `SELECT COUNT(*) FROM decisions
		WHERE status IN ('decided', 'rejected') AND mailbox = ? AND uid = ?`
	args := []interface{}{mailbox, uid}
	if messageID != "" {
		query = `SELECT COUNT(*) FROM decisions
			WHERE status IN ('decided', 'rejected') AND message_id = ?`
		args = []interface{}{messageID}
	}

	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return false, fmt.Errorf("checking journal for message: %w", err)
	}
	return n > 0, nil
}

// ListDecisions returns entries matching filter, newest first.
func (s *SQLiteStore) ListDecisions(
	ctx context.Context,
	filter DecisionFilter,
) ([]model.JournalEntry, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Source != nil {
		conditions = append(conditions, "source = ?")
		args = append(args, *filter.Source)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(sender LIKE ? OR subject LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT * FROM decisions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY decided_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	var rows []decisionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}

	entries := make([]model.JournalEntry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// CountByStatus returns the number of entries per status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT status, COUNT(*) AS n FROM decisions GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting decisions: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// decisionRow mirrors the decisions table.
type decisionRow struct {
	model.JournalEntry
	ActionsJSON string `db:"actions"`
}

func (r decisionRow) entry() (model.JournalEntry, error) {
	e := r.JournalEntry
	if r.ActionsJSON != "" {
		if err := json.Unmarshal([]byte(r.ActionsJSON), &e.Actions); err != nil {
			return model.JournalEntry{}, fmt.Errorf("unmarshaling actions of %s: %w", e.ID, err)
		}
	}
	return e, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
