package postgres

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iemanja/iemanjad/internal/migrations"
	"github.com/iemanja/iemanjad/internal/store"
	"github.com/iemanja/iemanjad/internal/store/storetest"
)

// testURLEnv names the database the tests run against. Its tables are
// truncated before every test.
const testURLEnv = "IEMANJA_TEST_POSTGRES_URL"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv(testURLEnv)
	if url == "" {
		t.Skipf("%s not set", testURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	require.NoError(t, migrations.Up(ctx, migrations.Postgres, url, logger))
	s, err := Open(ctx, url, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE posts_tags, posts, tags`)
	require.NoError(t, err)
	return s
}

func TestBackend(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		return newTestStore(t)
	})
}

func TestMalformedIDIsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.PostRows().GetPost(ctx, "post-not-a-uuid")
	assert.True(t, store.IsNotFound(err))

	err = s.PostRows().DeletePost(ctx, "post-not-a-uuid")
	assert.True(t, store.IsNotFound(err))
}

func TestValidID(t *testing.T) {
	id, err := newID()
	require.NoError(t, err)

	assert.True(t, validID(id))
	assert.False(t, validID("no-such-post"))
	assert.False(t, validID(""))
}
