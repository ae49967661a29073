// Package storetest runs the same behavioral checks against every storage backend.
package storetest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iemanja/iemanjad/internal/domain"
	"github.com/iemanja/iemanjad/internal/store"
)

// OpenFunc returns a fresh, empty backend. It must register its own cleanup.
type OpenFunc func(t *testing.T) store.Backend

type harness struct {
	backend store.Backend
	tags    store.TagRepository
	posts   store.PostRepository
}

func newHarness(t *testing.T, open OpenFunc) *harness {
	t.Helper()
	b := open(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &harness{
		backend: b,
		tags:    b.Tags(),
		posts:   store.NewPostsFromBackend(b, logger),
	}
}

func (h *harness) mustTags(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		_, err := h.tags.Create(context.Background(), domain.NewTag{Name: n})
		require.NoError(t, err, "create tag %q", n)
	}
}

func assertSameInstant(t *testing.T, want, got time.Time, field string) {
	t.Helper()
	assert.True(t, want.Equal(got), "%s: got %v, want %v", field, got, want)
}

// Run executes the suite against the backend returned by open.
func Run(t *testing.T, open OpenFunc) {
	t.Run("Ping", func(t *testing.T) { testPing(t, open) })

	t.Run("TagCreateAndGet", func(t *testing.T) { testTagCreateAndGet(t, open) })
	t.Run("TagCreateDuplicate", func(t *testing.T) { testTagCreateDuplicate(t, open) })
	t.Run("TagFindAll", func(t *testing.T) { testTagFindAll(t, open) })
	t.Run("TagListingIsRepeatable", func(t *testing.T) { testTagListingIsRepeatable(t, open) })
	t.Run("TagFindInNames", func(t *testing.T) { testTagFindInNames(t, open) })
	t.Run("TagUpdate", func(t *testing.T) { testTagUpdate(t, open) })
	t.Run("TagDelete", func(t *testing.T) { testTagDelete(t, open) })

	t.Run("PostCreateRejectsUnknownTags", func(t *testing.T) { testPostCreateRejectsUnknownTags(t, open) })
	t.Run("PostPaginationBound", func(t *testing.T) { testPostPaginationBound(t, open) })
	t.Run("PostRoundTrip", func(t *testing.T) { testPostRoundTrip(t, open) })
	t.Run("PostCreateWithoutTags", func(t *testing.T) { testPostCreateWithoutTags(t, open) })
	t.Run("PostUpdateReplacesTags", func(t *testing.T) { testPostUpdateReplacesTags(t, open) })
	t.Run("PostUpdateErrors", func(t *testing.T) { testPostUpdateErrors(t, open) })
	t.Run("PostUpdateKeepsCreatedAtFloor", func(t *testing.T) { testPostUpdateCreatedAtFloor(t, open) })
	t.Run("PostDelete", func(t *testing.T) { testPostDelete(t, open) })
	t.Run("DeletedTagIsOmittedFromPosts", func(t *testing.T) { testDeletedTagIsOmitted(t, open) })
	t.Run("ListingIsRepeatable", func(t *testing.T) { testListingIsRepeatable(t, open) })
	t.Run("ConcurrentCreatesShareTags", func(t *testing.T) { testConcurrentCreates(t, open) })
}

func testPing(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	assert.NoError(t, h.backend.Ping(context.Background()))
}

func testTagCreateAndGet(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()

	created, err := h.tags.Create(ctx, domain.NewTag{Name: "golang"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "golang", created.Name)

	got, err := h.tags.Get(ctx, "golang")
	require.NoError(t, err)
	assert.Equal(t, *created, *got)

	_, err = h.tags.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTagCreateDuplicate(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	h.mustTags(t, "dup")

	_, err := h.tags.Create(context.Background(), domain.NewTag{Name: "dup"})
	require.ErrorIs(t, err, store.ErrTagCreation)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testTagFindAll(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "delta", "alpha", "echo", "charlie", "bravo")

	page, err := h.tags.FindAll(ctx, store.FindAllOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "charlie"}, domain.TagNames(page.Tags))
	assert.Equal(t, 5, page.Total)

	page, err = h.tags.FindAll(ctx, store.FindAllOptions{Limit: 10, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Tags)
	assert.Equal(t, 5, page.Total)

	page, err = h.tags.FindAll(ctx, store.DefaultFindAllOptions())
	require.NoError(t, err)
	assert.Len(t, page.Tags, 5)

	// A zero limit reports the total without any rows.
	for _, opts := range []store.FindAllOptions{{}, {Limit: 0, Offset: 2}} {
		page, err = h.tags.FindAll(ctx, opts)
		require.NoError(t, err)
		assert.Empty(t, page.Tags, "opts %+v", opts)
		assert.NotNil(t, page.Tags, "opts %+v", opts)
		assert.Equal(t, 5, page.Total, "opts %+v", opts)
	}

	page, err = h.tags.FindAll(ctx, store.FindAllOptions{Limit: -1, Offset: -1})
	require.NoError(t, err)
	assert.Len(t, page.Tags, 5)
	assert.Equal(t, "alpha", page.Tags[0].Name)
}

func testTagListingIsRepeatable(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	for i := range 9 {
		h.mustTags(t, fmt.Sprintf("tag-%d", 8-i))
	}

	opts := store.FindAllOptions{Limit: 4, Offset: 3}
	first, err := h.tags.FindAll(ctx, opts)
	require.NoError(t, err)
	second, err := h.tags.FindAll(ctx, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, first.Tags, second.Tags)
	assert.Equal(t, []string{"tag-3", "tag-4", "tag-5", "tag-6"}, domain.TagNames(second.Tags))

	next, err := h.tags.FindAll(ctx, store.FindAllOptions{Limit: 4, Offset: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{"tag-7", "tag-8"}, domain.TagNames(next.Tags))
}

func testTagFindInNames(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "a", "b", "c")

	found, err := h.tags.FindInNames(ctx, []string{"a", "c", "zzz"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, domain.TagNames(found))

	found, err = h.tags.FindInNames(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func testTagUpdate(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "old", "taken")

	before, err := h.tags.Get(ctx, "old")
	require.NoError(t, err)

	renamed, err := h.tags.Update(ctx, "old", domain.NewTag{Name: "new"})
	require.NoError(t, err)
	assert.Equal(t, before.ID, renamed.ID)
	assert.Equal(t, "new", renamed.Name)

	_, err = h.tags.Get(ctx, "old")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = h.tags.Update(ctx, "ghost", domain.NewTag{Name: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = h.tags.Update(ctx, "new", domain.NewTag{Name: "taken"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testTagDelete(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "gone")

	require.NoError(t, h.tags.Delete(ctx, "gone"))
	_, err := h.tags.Get(ctx, "gone")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, h.tags.Delete(ctx, "gone"), store.ErrNotFound)
}

func testPostCreateRejectsUnknownTags(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "known")

	_, err := h.posts.Create(ctx, domain.NewPost{
		Title: "t",
		Tags:  []string{"known", "unknown-2", "unknown-1"},
	})
	require.ErrorIs(t, err, store.ErrTagsNotFound)
	assert.Equal(t, []string{"unknown-1", "unknown-2"}, store.MissingTags(err))

	list, err := h.posts.FindAll(ctx, store.DefaultFindAllOptions())
	require.NoError(t, err)
	assert.Zero(t, list.Total)
	assert.Empty(t, list.Posts)
}

func testPostPaginationBound(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()

	const n = 13
	for i := range n {
		_, err := h.posts.Create(ctx, domain.NewPost{Title: fmt.Sprintf("post %02d", i)})
		require.NoError(t, err)
	}

	tests := []struct {
		opts store.FindAllOptions
		want int
	}{
		{store.FindAllOptions{}, 0},
		{store.FindAllOptions{Limit: 0, Offset: 5}, 0},
		{store.FindAllOptions{Limit: -1}, store.DefaultLimit},
		{store.DefaultFindAllOptions(), store.DefaultLimit},
		{store.FindAllOptions{Limit: 5}, 5},
		{store.FindAllOptions{Limit: 10, Offset: 10}, 3},
		{store.FindAllOptions{Limit: 10, Offset: 13}, 0},
		{store.FindAllOptions{Limit: 100}, n},
	}
	for _, tt := range tests {
		page, err := h.posts.FindAll(ctx, tt.opts)
		require.NoError(t, err)
		assert.Len(t, page.Posts, tt.want, "opts %+v", tt.opts)
		assert.NotNil(t, page.Posts, "opts %+v", tt.opts)
		bound := tt.opts
		bound.Validate()
		assert.LessOrEqual(t, len(page.Posts), bound.Limit, "opts %+v", tt.opts)
		assert.Equal(t, n, page.Total, "opts %+v", tt.opts)
	}
}

func testPostRoundTrip(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "x", "y", "unused")

	created, err := h.posts.Create(ctx, domain.NewPost{
		Title:   "Round",
		Content: "Trip",
		Tags:    []string{"y", "x", "y"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"x", "y"}, domain.TagNames(created.Tags))
	assertSameInstant(t, created.CreatedAt, created.UpdatedAt, "updated_at")

	got, err := h.posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Round", got.Title)
	assert.Equal(t, "Trip", got.Content)
	assert.Equal(t, created.Tags, got.Tags)
	assertSameInstant(t, created.CreatedAt, got.CreatedAt, "created_at")
	assertSameInstant(t, created.UpdatedAt, got.UpdatedAt, "updated_at")

	_, err = h.posts.Get(ctx, "no-such-post")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testPostCreateWithoutTags(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()

	created, err := h.posts.Create(ctx, domain.NewPost{Title: "untagged", Tags: []string{}})
	require.NoError(t, err)
	assert.Empty(t, created.Tags)

	got, err := h.posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
	assert.NotNil(t, got.Tags)
}

func testPostUpdateReplacesTags(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "a", "b", "c")

	created, err := h.posts.Create(ctx, domain.NewPost{Title: "v1", Content: "c1", Tags: []string{"a", "b"}})
	require.NoError(t, err)

	updated, err := h.posts.Update(ctx, created.ID, domain.NewPost{Title: "v2", Content: "c2", Tags: []string{"b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "v2", updated.Title)
	assert.Equal(t, []string{"b", "c"}, domain.TagNames(updated.Tags))
	assertSameInstant(t, created.CreatedAt, updated.CreatedAt, "created_at")
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt), "updated_at before created_at")

	got, err := h.posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
	assert.Equal(t, "c2", got.Content)
	assert.Equal(t, []string{"b", "c"}, domain.TagNames(got.Tags))

	// Replacing with an empty set clears every relation.
	_, err = h.posts.Update(ctx, created.ID, domain.NewPost{Title: "v3"})
	require.NoError(t, err)
	got, err = h.posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func testPostUpdateErrors(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "a")

	created, err := h.posts.Create(ctx, domain.NewPost{Title: "keep", Tags: []string{"a"}})
	require.NoError(t, err)

	_, err = h.posts.Update(ctx, created.ID, domain.NewPost{Title: "lost", Tags: []string{"a", "nope"}})
	require.ErrorIs(t, err, store.ErrTagsNotFound)
	assert.Equal(t, []string{"nope"}, store.MissingTags(err))

	got, err := h.posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Title)
	assert.Equal(t, []string{"a"}, domain.TagNames(got.Tags))

	_, err = h.posts.Update(ctx, "no-such-post", domain.NewPost{Title: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testPostUpdateCreatedAtFloor(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	rows := h.backend.PostRows()

	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	inserted, err := rows.InsertPost(ctx, &domain.PostRow{
		Title:     "clock",
		CreatedAt: created,
		UpdatedAt: created,
	})
	require.NoError(t, err)

	// A writer whose clock runs behind still leaves updated_at at created_at.
	updated, err := rows.UpdatePost(ctx, &domain.PostRow{
		ID:        inserted.ID,
		Title:     "skewed",
		UpdatedAt: created.Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "skewed", updated.Title)
	assertSameInstant(t, created, updated.CreatedAt, "created_at")
	assertSameInstant(t, created, updated.UpdatedAt, "updated_at")

	later := created.Add(time.Minute)
	updated, err = rows.UpdatePost(ctx, &domain.PostRow{ID: inserted.ID, Title: "on time", UpdatedAt: later})
	require.NoError(t, err)
	assertSameInstant(t, later, updated.UpdatedAt, "updated_at")
}

func testPostDelete(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "a")

	created, err := h.posts.Create(ctx, domain.NewPost{Title: "bye", Tags: []string{"a"}})
	require.NoError(t, err)

	require.NoError(t, h.posts.Delete(ctx, created.ID))
	_, err = h.posts.Get(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, h.posts.Delete(ctx, created.ID), store.ErrNotFound)

	list, err := h.posts.FindAll(ctx, store.DefaultFindAllOptions())
	require.NoError(t, err)
	assert.Zero(t, list.Total)

	// The tag itself is untouched.
	_, err = h.tags.Get(ctx, "a")
	assert.NoError(t, err)
}

func testDeletedTagIsOmitted(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "stays", "goes")

	created, err := h.posts.Create(ctx, domain.NewPost{Title: "p", Tags: []string{"stays", "goes"}})
	require.NoError(t, err)

	require.NoError(t, h.tags.Delete(ctx, "goes"))

	got, err := h.posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"stays"}, domain.TagNames(got.Tags))

	list, err := h.posts.FindAll(ctx, store.DefaultFindAllOptions())
	require.NoError(t, err)
	require.Len(t, list.Posts, 1)
	assert.Equal(t, []string{"stays"}, domain.TagNames(list.Posts[0].Tags))

	// A tag recreated under the same name is a different tag.
	h.mustTags(t, "goes")
	got, err = h.posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"stays"}, domain.TagNames(got.Tags))
}

func testListingIsRepeatable(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "t1", "t2")

	for i := range 7 {
		tags := []string{"t1"}
		if i%2 == 0 {
			tags = append(tags, "t2")
		}
		_, err := h.posts.Create(ctx, domain.NewPost{Title: fmt.Sprintf("p%d", i), Tags: tags})
		require.NoError(t, err)
	}

	opts := store.FindAllOptions{Limit: 4, Offset: 2}
	first, err := h.posts.FindAll(ctx, opts)
	require.NoError(t, err)
	second, err := h.posts.FindAll(ctx, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Total, second.Total)
	require.Len(t, second.Posts, len(first.Posts))
	for i := range first.Posts {
		assert.Equal(t, first.Posts[i].ID, second.Posts[i].ID)
		assert.Equal(t, first.Posts[i].Tags, second.Posts[i].Tags)
	}

	// Pages do not overlap.
	all, err := h.posts.FindAll(ctx, store.FindAllOptions{Limit: 100})
	require.NoError(t, err)
	seen := make(map[string]bool)
	for _, p := range all.Posts {
		assert.False(t, seen[p.ID], "duplicate post %s", p.ID)
		seen[p.ID] = true
	}
	for i, p := range first.Posts {
		assert.Equal(t, all.Posts[opts.Offset+i].ID, p.ID)
	}
}

func testConcurrentCreates(t *testing.T, open OpenFunc) {
	h := newHarness(t, open)
	ctx := context.Background()
	h.mustTags(t, "shared", "also-shared")

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	ids := make([]string, workers)

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := h.posts.Create(ctx, domain.NewPost{
				Title: fmt.Sprintf("concurrent %d", i),
				Tags:  []string{"shared", "also-shared"},
			})
			errs[i] = err
			if p != nil {
				ids[i] = p.ID
			}
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i], "worker %d", i)
		got, err := h.posts.Get(ctx, ids[i])
		require.NoError(t, err)
		assert.Equal(t, []string{"also-shared", "shared"}, domain.TagNames(got.Tags))
	}

	list, err := h.posts.FindAll(ctx, store.DefaultFindAllOptions())
	require.NoError(t, err)
	assert.Equal(t, workers, list.Total)
}
