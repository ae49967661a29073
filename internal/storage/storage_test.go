package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iemanja/iemanjad/internal/domain"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    Address
		wantErr bool
	}{
		{"sqlite", "sqlite:///var/lib/iemanjad/iemanjad.db", Address{Engine: EngineSQLite, Path: "/var/lib/iemanjad/iemanjad.db"}, false},
		{"sqlite relative", "sqlite://data/x.db", Address{Engine: EngineSQLite, Path: "data/x.db"}, false},
		{"badger dir", "badger:///var/lib/iemanjad/kv", Address{Engine: EngineBadger, Path: "/var/lib/iemanjad/kv"}, false},
		{"badger memory", "badger://memory", Address{Engine: EngineBadger}, false},
		{"postgres", "postgres://u:p@db:5432/iemanja", Address{Engine: EnginePostgres, URL: "postgres://u:p@db:5432/iemanja"}, false},
		{"postgresql", "postgresql://db/iemanja", Address{Engine: EnginePostgres, URL: "postgresql://db/iemanja"}, false},
		{"no scheme", "/var/lib/db", Address{}, true},
		{"empty sqlite path", "sqlite://", Address{}, true},
		{"empty badger path", "badger://", Address{}, true},
		{"unknown scheme", "mysql://db", Address{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "badger://memory", Address{Engine: EngineBadger}.String())
	assert.Equal(t, "sqlite:///tmp/x.db", Address{Engine: EngineSQLite, Path: "/tmp/x.db"}.String())
}

func TestOpen_SQLiteCreatesDirectoryAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "iemanjad.db")
	ctx := context.Background()

	b, err := Open(ctx, "sqlite://"+path, nil)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Ping(ctx))
	tag, err := b.Tags().Create(ctx, domain.NewTag{Name: "go"})
	require.NoError(t, err)
	assert.Equal(t, "go", tag.Name)
}

func TestOpen_BadgerMemory(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, "badger://memory", nil)
	require.NoError(t, err)
	defer b.Close()

	assert.NoError(t, b.Ping(ctx))
}

func TestOpen_RejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "mysql://db", nil)
	assert.Error(t, err)
}
