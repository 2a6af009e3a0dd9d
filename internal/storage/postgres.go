package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/deusflow/digest/internal/news"
)

const historyTable = "digest_history"

const schema = `
CREATE TABLE IF NOT EXISTS digest_history (
	id SERIAL PRIMARY KEY,
	hash VARCHAR(64) UNIQUE NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	category VARCHAR(100),
	source VARCHAR(200),
	sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_digest_history_sent_at ON digest_history(sent_at);
`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresHistory keeps sent articles in PostgreSQL.
type PostgresHistory struct {
	db  *sql.DB
	ttl time.Duration
	log *slog.Logger
	now func() time.Time
}

// NewPostgresHistory connects to dsn and creates the history table if needed.
func NewPostgresHistory(ctx context.Context, dsn string, ttl time.Duration, log *slog.Logger) (*PostgresHistory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info("PostgreSQL history connected")
	return &PostgresHistory{db: db, ttl: ttlOrDefault(ttl), log: log, now: time.Now}, nil
}

func seenQuery(fingerprint string, cutoff time.Time) (string, []any, error) {
	return psql.Select("COUNT(*)").
		From(historyTable).
		Where(sq.Eq{"hash": fingerprint}).
		Where(sq.Gt{"sent_at": cutoff}).
		ToSql()
}

func markQuery(entries []Entry) (string, []any, error) {
	q := psql.Insert(historyTable).Columns("hash", "title", "link", "category", "source", "sent_at")
	for _, e := range entries {
		q = q.Values(e.Hash, e.Title, e.Link, e.Category, e.Source, e.SentAt)
	}
	return q.Suffix("ON CONFLICT (hash) DO UPDATE SET sent_at = EXCLUDED.sent_at").ToSql()
}

func cleanupQuery(cutoff time.Time) (string, []any, error) {
	return psql.Delete(historyTable).Where(sq.Lt{"sent_at": cutoff}).ToSql()
}

func (ph *PostgresHistory) Seen(ctx context.Context, fingerprint string) (bool, error) {
	query, args, err := seenQuery(fingerprint, ph.now().Add(-ph.ttl))
	if err != nil {
		return false, fmt.Errorf("build seen query: %w", err)
	}

	var count int
	if err := ph.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("query history: %w", err)
	}
	return count > 0, nil
}

// Mark upserts articles as sent now and removes expired rows.
func (ph *PostgresHistory) Mark(ctx context.Context, articles []news.Article) error {
	now := ph.now()
	entries := entriesFor(articles, now)
	if len(entries) == 0 {
		return nil
	}

	query, args, err := markQuery(entries)
	if err != nil {
		return fmt.Errorf("build mark query: %w", err)
	}
	if _, err := ph.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert history: %w", err)
	}

	query, args, err = cleanupQuery(now.Add(-ph.ttl))
	if err != nil {
		return fmt.Errorf("build cleanup query: %w", err)
	}
	res, err := ph.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("cleanup history: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		ph.log.Info("cleaned up old history records", "rows", rows)
	}
	return nil
}

func (ph *PostgresHistory) Close() error {
	if ph.db != nil {
		return ph.db.Close()
	}
	return nil
}
