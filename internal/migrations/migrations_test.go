package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestDatabaseURL(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		address string
		want    string
		wantErr bool
	}{
		{"sqlite absolute", SQLite, "sqlite:///var/lib/iemanjad/db.sqlite", "sqlite:///var/lib/iemanjad/db.sqlite", false},
		{"sqlite bare path", SQLite, "/tmp/x.db", "sqlite:///tmp/x.db", false},
		{"sqlite empty", SQLite, "sqlite://", "", true},
		{"postgres", Postgres, "postgres://u:p@localhost:5432/posts?sslmode=disable", "pgx5://u:p@localhost:5432/posts?sslmode=disable", false},
		{"postgresql scheme", Postgres, "postgresql://localhost/posts", "pgx5://localhost/posts", false},
		{"unknown", Dialect("mysql"), "mysql://x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DatabaseURL(tt.dialect, tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres} {
		entries, err := files.ReadDir(string(d))
		require.NoError(t, err)

		var ups []string
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".up.sql") {
				ups = append(ups, e.Name())
			}
		}
		assert.Equal(t, []string{
			"000001_create_tags.up.sql",
			"000002_create_posts.up.sql",
			"000003_create_posts_tags.up.sql",
		}, ups, "dialect %s", d)
	}
}

func TestUp_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	ctx := context.Background()

	require.NoError(t, Up(ctx, SQLite, path, nil))
	// A second run is a no-op.
	require.NoError(t, Up(ctx, SQLite, path, nil))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"tags", "posts", "posts_tags"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}
