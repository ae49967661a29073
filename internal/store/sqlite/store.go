// Package sqlite implements the post and tag store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/iemanja/iemanjad/internal/store"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that stored timestamps sort lexically in
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides SQLite-backed persistence. The schema is created by the
// migrations package before Open is called.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.Backend = (*Store)(nil)

// Open opens the SQLite database at path.
// Every pooled connection gets WAL mode and a busy timeout, and
// transactions take the write lock up front.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("backend", "sqlite"),
	}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tags returns the tag repository.
func (s *Store) Tags() store.TagRepository {
	return &TagRepository{db: s.db, logger: s.logger}
}

// PostRows returns the post table access.
func (s *Store) PostRows() store.PostRows {
	return &PostRows{db: s.db, logger: s.logger}
}

// Relations returns the relation synchronizer.
func (s *Store) Relations() store.RelationSynchronizer {
	return &Relations{db: s.db, logger: s.logger}
}

// formatTime formats a time.Time for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// inClause returns ":prefix0, :prefix1, ..." and the matching named args.
func inClause(prefix string, values []string) (string, []any) {
	placeholders := make([]byte, 0, len(values)*(len(prefix)+4))
	args := make([]any, 0, len(values))
	for i, v := range values {
		if i > 0 {
			placeholders = append(placeholders, ", "...)
		}
		name := fmt.Sprintf("%s%d", prefix, i)
		placeholders = append(placeholders, ':')
		placeholders = append(placeholders, name...)
		args = append(args, sql.Named(name, v))
	}
	return string(placeholders), args
}
