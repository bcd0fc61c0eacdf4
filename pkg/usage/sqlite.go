package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/providers"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore persists records in a SQLite database (pure Go driver, WAL mode).
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	closeOnce sync.Once

	insertStmt  *sql.Stmt
	summaryStmt *sql.Stmt
	cleanupStmt *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	// Path is the database file. Parent directories are created.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (and if needed creates) the database at cfg.Path.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		stream INTEGER NOT NULL,
		status TEXT NOT NULL,
		error_type TEXT NOT NULL DEFAULT '',
		prompt_tokens INTEGER NOT NULL,
		completion_tokens INTEGER NOT NULL,
		total_tokens INTEGER NOT NULL,
		cost_usd REAL,
		latency_ms INTEGER NOT NULL,
		finish_reason TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_usage_provider_model ON usage_records(provider, model);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO usage_records (id, timestamp, provider, model, stream, status, error_type,
			prompt_tokens, completion_tokens, total_tokens, cost_usd, latency_ms, finish_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.summaryStmt, err = s.db.Prepare(`
		SELECT provider, model,
			COUNT(*),
			SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END),
			SUM(prompt_tokens),
			SUM(completion_tokens),
			SUM(total_tokens),
			COALESCE(SUM(cost_usd), 0),
			SUM(CASE WHEN cost_usd IS NULL THEN 1 ELSE 0 END)
		FROM usage_records
		WHERE timestamp >= ?
		GROUP BY provider, model
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare summary statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM usage_records
		WHERE timestamp < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return nil
}

// Record inserts rec.
func (s *SQLiteStore) Record(ctx context.Context, rec *Record) error {
	if err := prepare(rec); err != nil {
		return err
	}

	var cost sql.NullFloat64
	if rec.CostUSD != nil {
		cost = sql.NullFloat64{Float64: *rec.CostUSD, Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.insertStmt.ExecContext(ctx,
		rec.ID,
		rec.Timestamp.UnixNano(),
		string(rec.Provider),
		rec.Model,
		rec.Stream,
		rec.Status,
		rec.ErrorType,
		rec.PromptTokens,
		rec.CompletionTokens,
		rec.TotalTokens,
		cost,
		rec.LatencyMs,
		rec.FinishReason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// List returns matching records, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	var (
		where []string
		args  []interface{}
	)
	if !filter.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		where = append(where, "timestamp < ?")
		args = append(args, filter.Until.UnixNano())
	}
	if filter.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, string(filter.Provider))
	}
	if filter.Model != "" {
		where = append(where, "model = ?")
		args = append(args, filter.Model)
	}

	query := `SELECT id, timestamp, provider, model, stream, status, error_type,
		prompt_tokens, completion_tokens, total_tokens, cost_usd, latency_ms, finish_reason
		FROM usage_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			rec      Record
			ts       int64
			provider string
			cost     sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &ts, &provider, &rec.Model, &rec.Stream, &rec.Status, &rec.ErrorType,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &cost, &rec.LatencyMs, &rec.FinishReason); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.Timestamp = time.Unix(0, ts)
		rec.Provider = providers.Kind(provider)
		if cost.Valid {
			c := cost.Float64
			rec.CostUSD = &c
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// Summary aggregates records at or after since.
func (s *SQLiteStore) Summary(ctx context.Context, since time.Time) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.summaryStmt.QueryContext(ctx, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	defer rows.Close()

	summary := &Summary{Since: since, ByModel: []ModelTotals{}}
	for rows.Next() {
		var (
			mt       ModelTotals
			provider string
		)
		if err := rows.Scan(&provider, &mt.Model, &mt.Requests, &mt.Errors, &mt.PromptTokens,
			&mt.CompletionTokens, &mt.TotalTokens, &mt.CostUSD, &mt.Unpriced); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		mt.Provider = providers.Kind(provider)

		summary.Requests += mt.Requests
		summary.Errors += mt.Errors
		summary.PromptTokens += mt.PromptTokens
		summary.CompletionTokens += mt.CompletionTokens
		summary.TotalTokens += mt.TotalTokens
		summary.CostUSD += mt.CostUSD
		summary.Unpriced += mt.Unpriced

		summary.ByModel = append(summary.ByModel, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	sortModelTotals(summary.ByModel)
	return summary, nil
}

// Cleanup deletes records older than olderThan.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.cleanupStmt.ExecContext(ctx, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(deleted), nil
}

// Close closes prepared statements and the database.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for _, stmt := range []*sql.Stmt{s.insertStmt, s.summaryStmt, s.cleanupStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		closeErr = s.db.Close()
	})

	return closeErr
}
