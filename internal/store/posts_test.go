package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iemanja/iemanjad/internal/domain"
)

type postsFixture struct {
	posts     *Posts
	tags      *fakeTags
	rows      *fakeRows
	relations *fakeRelations
	clock     time.Time
}

func newPostsFixture(t *testing.T, tagNames ...string) *postsFixture {
	t.Helper()
	tags := newFakeTags(tagNames...)
	relations := newFakeRelations()
	rows := newFakeRows(relations, tags)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	f := &postsFixture{
		tags:      tags,
		rows:      rows,
		relations: relations,
		clock:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.posts = NewPosts(rows, tags, relations, logger)
	f.posts.now = func() time.Time { return f.clock }
	return f
}

func TestPosts_Create(t *testing.T) {
	f := newPostsFixture(t, "go", "db")
	ctx := context.Background()

	post, err := f.posts.Create(ctx, domain.NewPost{
		Title:   "Hello",
		Content: "World",
		Tags:    []string{"go", "db", "go"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, "World", post.Content)
	assert.Equal(t, []string{"db", "go"}, domain.TagNames(post.Tags))
	assert.Equal(t, f.clock, post.CreatedAt)
	assert.Equal(t, post.CreatedAt, post.UpdatedAt)
	assert.Equal(t, 1, f.relations.writes)
	assert.ElementsMatch(t, []string{"tag-go", "tag-db"}, f.relations.tagIDs(post.ID))
}

func TestPosts_Create_MissingTagsWritesNothing(t *testing.T) {
	f := newPostsFixture(t, "go")
	ctx := context.Background()

	_, err := f.posts.Create(ctx, domain.NewPost{Title: "t", Tags: []string{"go", "zig", "nim"}})
	require.ErrorIs(t, err, ErrTagsNotFound)
	assert.Equal(t, []string{"nim", "zig"}, MissingTags(err))

	count, err := f.rows.CountPosts(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, f.relations.writes)
}

func TestPosts_Create_NoTags(t *testing.T) {
	f := newPostsFixture(t)

	post, err := f.posts.Create(context.Background(), domain.NewPost{Title: "bare"})
	require.NoError(t, err)
	assert.Empty(t, post.Tags)
	assert.NotNil(t, post.Tags)
	assert.Zero(t, f.tags.findCalls)
}

func TestPosts_Create_InsertFailure(t *testing.T) {
	f := newPostsFixture(t, "go")
	f.rows.insertErr = ErrPostCreation

	_, err := f.posts.Create(context.Background(), domain.NewPost{Title: "t", Tags: []string{"go"}})
	require.ErrorIs(t, err, ErrPostCreation)
	assert.Zero(t, f.relations.writes)
}

func TestPosts_Create_RelationFailureLeavesPost(t *testing.T) {
	f := newPostsFixture(t, "go")
	f.relations.relateErr = ErrDatabase.WithCause(errors.New("connection reset"))
	ctx := context.Background()

	_, err := f.posts.Create(ctx, domain.NewPost{Title: "orphan", Tags: []string{"go"}})
	require.ErrorIs(t, err, ErrDatabase)

	// The row write is not rolled back.
	list, err := f.posts.FindAll(ctx, DefaultFindAllOptions())
	require.NoError(t, err)
	require.Len(t, list.Posts, 1)
	assert.Equal(t, "orphan", list.Posts[0].Title)
	assert.Empty(t, list.Posts[0].Tags)
}

func TestPosts_FindAll(t *testing.T) {
	f := newPostsFixture(t)
	ctx := context.Background()

	for range 12 {
		_, err := f.posts.Create(ctx, domain.NewPost{Title: "p"})
		require.NoError(t, err)
	}

	page, err := f.posts.FindAll(ctx, DefaultFindAllOptions())
	require.NoError(t, err)
	assert.Len(t, page.Posts, DefaultLimit)
	assert.Equal(t, 12, page.Total)

	page, err = f.posts.FindAll(ctx, FindAllOptions{Limit: -4, Offset: -1})
	require.NoError(t, err)
	assert.Len(t, page.Posts, DefaultLimit)

	page, err = f.posts.FindAll(ctx, FindAllOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.NotNil(t, page.Posts)
	assert.Equal(t, 12, page.Total)

	page, err = f.posts.FindAll(ctx, FindAllOptions{Limit: 10, Offset: 10})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 2)

	page, err = f.posts.FindAll(ctx, FindAllOptions{Limit: 5, Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.NotNil(t, page.Posts)
	assert.Equal(t, 12, page.Total)
}

func TestPosts_Update_ReplacesTags(t *testing.T) {
	f := newPostsFixture(t, "a", "b", "c")
	ctx := context.Background()

	created, err := f.posts.Create(ctx, domain.NewPost{Title: "v1", Tags: []string{"a", "b"}})
	require.NoError(t, err)

	f.clock = f.clock.Add(time.Minute)
	updated, err := f.posts.Update(ctx, created.ID, domain.NewPost{Title: "v2", Content: "new", Tags: []string{"b", "c"}})
	require.NoError(t, err)

	assert.Equal(t, "v2", updated.Title)
	assert.Equal(t, []string{"b", "c"}, domain.TagNames(updated.Tags))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, f.clock, updated.UpdatedAt)

	got, err := f.posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, domain.TagNames(got.Tags))
}

func TestPosts_Update_ClockSkewKeepsOrdering(t *testing.T) {
	f := newPostsFixture(t)
	ctx := context.Background()

	created, err := f.posts.Create(ctx, domain.NewPost{Title: "t"})
	require.NoError(t, err)

	f.clock = f.clock.Add(-time.Hour)
	updated, err := f.posts.Update(ctx, created.ID, domain.NewPost{Title: "t2"})
	require.NoError(t, err)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
}

func TestPosts_Update_RejectsUnknownTags(t *testing.T) {
	f := newPostsFixture(t, "a")
	ctx := context.Background()

	created, err := f.posts.Create(ctx, domain.NewPost{Title: "keep", Tags: []string{"a"}})
	require.NoError(t, err)

	_, err = f.posts.Update(ctx, created.ID, domain.NewPost{Title: "changed", Tags: []string{"a", "ghost"}})
	require.ErrorIs(t, err, ErrTagsNotFound)
	assert.Equal(t, []string{"ghost"}, MissingTags(err))

	got, err := f.posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Title)
	assert.Equal(t, []string{"a"}, domain.TagNames(got.Tags))
}

func TestPosts_Update_NotFound(t *testing.T) {
	f := newPostsFixture(t)

	_, err := f.posts.Update(context.Background(), "post-missing", domain.NewPost{Title: "x"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.relations.writes)
}

func TestPosts_Update_ReplaceFailure(t *testing.T) {
	f := newPostsFixture(t, "a")
	ctx := context.Background()

	created, err := f.posts.Create(ctx, domain.NewPost{Title: "v1", Tags: []string{"a"}})
	require.NoError(t, err)

	f.relations.replaceErr = ErrDatabase
	_, err = f.posts.Update(ctx, created.ID, domain.NewPost{Title: "v2"})
	require.ErrorIs(t, err, ErrDatabase)

	// Title change persisted, relation set unchanged.
	got, err := f.posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
	assert.Equal(t, []string{"a"}, domain.TagNames(got.Tags))
}

func TestPosts_Delete(t *testing.T) {
	f := newPostsFixture(t, "a")
	ctx := context.Background()

	created, err := f.posts.Create(ctx, domain.NewPost{Title: "bye", Tags: []string{"a"}})
	require.NoError(t, err)

	require.NoError(t, f.posts.Delete(ctx, created.ID))

	_, err = f.posts.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.posts.Delete(ctx, created.ID), ErrNotFound)

	// Relations are not swept.
	assert.Equal(t, []string{"tag-a"}, f.relations.tagIDs(created.ID))
}
