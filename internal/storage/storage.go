// Package storage opens the backend named by a database address.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/iemanja/iemanjad/internal/migrations"
	"github.com/iemanja/iemanjad/internal/store"
	"github.com/iemanja/iemanjad/internal/store/badgerstore"
	"github.com/iemanja/iemanjad/internal/store/postgres"
	"github.com/iemanja/iemanjad/internal/store/sqlite"
)

// Engine names a storage backend.
type Engine string

// Supported engines.
const (
	EngineSQLite   Engine = "sqlite"
	EngineBadger   Engine = "badger"
	EnginePostgres Engine = "postgres"
)

// InMemory is the badger path that selects an in-memory database.
const InMemory = "memory"

// Address is a parsed database address.
type Address struct {
	Engine Engine
	// Path is the file or directory for sqlite and badger. Empty for an
	// in-memory badger database.
	Path string
	// URL is the connection string for postgres.
	URL string
}

func (a Address) String() string {
	switch a.Engine {
	case EnginePostgres:
		return a.URL
	case EngineBadger:
		if a.Path == "" {
			return "badger://" + InMemory
		}
	}
	return string(a.Engine) + "://" + a.Path
}

// ParseAddress parses sqlite://<path>, badger://<path>, badger://memory,
// postgres://... and postgresql://... addresses.
func ParseAddress(address string) (Address, error) {
	scheme, rest, ok := strings.Cut(address, "://")
	if !ok {
		return Address{}, fmt.Errorf("database address %q has no scheme", address)
	}

	switch strings.ToLower(scheme) {
	case "sqlite":
		if rest == "" {
			return Address{}, fmt.Errorf("database address %q has no path", address)
		}
		return Address{Engine: EngineSQLite, Path: rest}, nil
	case "badger":
		if rest == "" {
			return Address{}, fmt.Errorf("database address %q has no path", address)
		}
		if rest == InMemory {
			return Address{Engine: EngineBadger}, nil
		}
		return Address{Engine: EngineBadger, Path: rest}, nil
	case "postgres", "postgresql":
		return Address{Engine: EnginePostgres, URL: address}, nil
	default:
		return Address{}, fmt.Errorf("unsupported database scheme %q", scheme)
	}
}

// Open migrates the database at address when the engine has a schema and
// opens it. Parent directories of file-backed databases are created.
func Open(ctx context.Context, address string, logger *slog.Logger) (store.Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	switch addr.Engine {
	case EngineSQLite:
		if err := os.MkdirAll(filepath.Dir(addr.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		if err := migrations.Up(ctx, migrations.SQLite, addr.Path, logger); err != nil {
			return nil, err
		}
		s, err := sqlite.Open(addr.Path, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Storage opened", "engine", addr.Engine, "path", addr.Path)
		return s, nil

	case EngineBadger:
		if addr.Path != "" {
			if err := os.MkdirAll(addr.Path, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		s, err := badgerstore.Open(addr.Path, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Storage opened", "engine", addr.Engine, "path", addr.String())
		return s, nil

	case EnginePostgres:
		if err := migrations.Up(ctx, migrations.Postgres, addr.URL, logger); err != nil {
			return nil, err
		}
		s, err := postgres.Open(ctx, addr.URL, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Storage opened", "engine", addr.Engine)
		return s, nil
	}

	return nil, fmt.Errorf("unsupported engine %q", addr.Engine)
}
