// Package postgres implements the post and tag store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iemanja/iemanjad/internal/store"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store provides PostgreSQL-backed persistence. The schema is created by
// the migrations package before Open is called.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ store.Backend = (*Store)(nil)

// Open connects a pool to the database at url and pings it.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: logger.With("backend", "postgres"),
	}, nil
}

// Close closes every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Tags returns the tag repository.
func (s *Store) Tags() store.TagRepository {
	return &TagRepository{pool: s.pool, logger: s.logger}
}

// PostRows returns the post table access.
func (s *Store) PostRows() store.PostRows {
	return &PostRows{pool: s.pool, logger: s.logger}
}

// Relations returns the relation synchronizer.
func (s *Store) Relations() store.RelationSynchronizer {
	return &Relations{pool: s.pool, logger: s.logger}
}

// newID returns a time-ordered UUID.
func newID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// validID reports whether s can be compared against a UUID column.
// Anything else cannot match a row.
func validID(s string) bool {
	return uuid.Validate(s) == nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
