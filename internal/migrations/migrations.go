// Package migrations applies the embedded, ordered schema migrations with golang-migrate.
package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// Dialect selects a migration set.
type Dialect string

// Supported dialects.
const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DatabaseURL converts a storage address into the URL golang-migrate
// expects for the dialect.
func DatabaseURL(d Dialect, address string) (string, error) {
	switch d {
	case SQLite:
		path := strings.TrimPrefix(address, "sqlite://")
		if path == "" {
			return "", errors.New("sqlite path is empty")
		}
		return "sqlite://" + path, nil
	case Postgres:
		u, err := url.Parse(address)
		if err != nil {
			return "", fmt.Errorf("parse postgres address: %w", err)
		}
		u.Scheme = "pgx5"
		return u.String(), nil
	default:
		return "", fmt.Errorf("unknown dialect %q", d)
	}
}

// Up applies every pending migration of the dialect to the database at
// address. Canceling ctx stops after the migration in progress.
func Up(ctx context.Context, d Dialect, address string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	databaseURL, err := DatabaseURL(d, address)
	if err != nil {
		return err
	}

	src, err := iofs.New(files, string(d))
	if err != nil {
		return fmt.Errorf("open %s migrations: %w", d, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()
	m.Log = &migrateLogger{logger: logger.With("component", "migrate")}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply %s migrations: %w", d, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}

	logger.Info("Schema up to date", "dialect", d, "version", version)
	return nil
}

// migrateLogger adapts slog to migrate.Logger.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
