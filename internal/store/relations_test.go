package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iemanja/iemanjad/internal/domain"
)

func TestMissingTagNames(t *testing.T) {
	tags := func(names ...string) []domain.Tag {
		out := make([]domain.Tag, len(names))
		for i, n := range names {
			out[i] = domain.Tag{ID: "tag-" + n, Name: n}
		}
		return out
	}

	tests := []struct {
		name      string
		found     []domain.Tag
		requested []string
		want      []string
	}{
		{"all found", tags("a", "b"), []string{"a", "b"}, nil},
		{"some missing", tags("a"), []string{"c", "a", "b"}, []string{"b", "c"}},
		{"none found", nil, []string{"x"}, []string{"x"}},
		{"nothing requested", nil, nil, nil},
		// Not reachable through ResolveTags, but the difference is symmetric.
		{"extra found", tags("a", "z"), []string{"a"}, []string{"z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MissingTagNames(tt.found, tt.requested))
		})
	}
}

func TestTagIDs(t *testing.T) {
	ids := TagIDs([]domain.Tag{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}})
	assert.Equal(t, []string{"1", "2"}, ids)
	assert.Empty(t, TagIDs(nil))
}

func TestResolveTags(t *testing.T) {
	ctx := context.Background()
	repo := newFakeTags("go", "rust")

	t.Run("all exist", func(t *testing.T) {
		got, err := ResolveTags(ctx, repo, []string{"go", "rust"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"go", "rust"}, domain.TagNames(got))
	})

	t.Run("empty skips lookup", func(t *testing.T) {
		calls := repo.findCalls
		got, err := ResolveTags(ctx, repo, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, calls, repo.findCalls)
	})

	t.Run("missing names", func(t *testing.T) {
		_, err := ResolveTags(ctx, repo, []string{"go", "zig", "c"})
		require.ErrorIs(t, err, ErrTagsNotFound)
		assert.Equal(t, []string{"c", "zig"}, MissingTags(err))
	})

	t.Run("lookup error passes through", func(t *testing.T) {
		failing := newFakeTags()
		failing.findErr = ErrDatabase.WithCause(errors.New("timeout"))
		_, err := ResolveTags(ctx, failing, []string{"go"})
		assert.ErrorIs(t, err, ErrDatabase)
	})

	t.Run("unrequested tag is rejected", func(t *testing.T) {
		leaky := newFakeTags("go", "rust")
		leaky.findOverride = []domain.Tag{{ID: "tag-go", Name: "go"}, {ID: "tag-rust", Name: "rust"}}
		_, err := ResolveTags(ctx, leaky, []string{"go"})
		assert.ErrorIs(t, err, ErrTagFind)
	})

	t.Run("duplicate result is rejected", func(t *testing.T) {
		dup := newFakeTags("go")
		dup.findOverride = []domain.Tag{{ID: "tag-go", Name: "go"}, {ID: "tag-go", Name: "go"}}
		_, err := ResolveTags(ctx, dup, []string{"go", "rust"})
		assert.ErrorIs(t, err, ErrTagFind)
	})
}
