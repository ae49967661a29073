package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) createPost(t *testing.T, title string, tags ...string) PostResponse {
	t.Helper()
	body := map[string]any{
		"title":   title,
		"content": "body of " + title,
	}
	if len(tags) > 0 {
		body["tags"] = tags
	}
	resp := ts.api.Post("/api/v1/posts", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[PostResponse](t, resp)
}

func tagNames(tags []TagResponse) []string {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return names
}

func TestCreatePost(t *testing.T) {
	ts := newTestServer(t)
	ts.createTag(t, "rust")
	ts.createTag(t, "go")

	post := ts.createPost(t, "hello", "rust", "go", "rust")
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "hello", post.Title)
	assert.Equal(t, "body of hello", post.Content)
	assert.Equal(t, []string{"go", "rust"}, tagNames(post.Tags))
	assert.False(t, post.CreatedAt.IsZero())
	assert.Equal(t, post.CreatedAt, post.UpdatedAt)
}

func TestCreatePost_WithoutTags(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.api.Post("/api/v1/posts", map[string]any{"title": "bare", "content": ""})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Empty(t, decode[PostResponse](t, resp).Tags)
	assert.Contains(t, resp.Body.String(), `"tags":[]`)
}

func TestCreatePost_UnknownTags(t *testing.T) {
	ts := newTestServer(t)
	ts.createTag(t, "go")

	resp := ts.api.Post("/api/v1/posts", map[string]any{
		"title":   "t",
		"content": "c",
		"tags":    []string{"go", "zig", "nim"},
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	apiErr := decode[APIError](t, resp)
	assert.Equal(t, "VALIDATION", apiErr.Code)
	assert.ElementsMatch(t, []any{"zig", "nim"}, apiErr.Details)

	// Nothing was written.
	list := decode[ListPostsResponse](t, ts.api.Get("/api/v1/posts"))
	assert.Zero(t, list.Total)
}

func TestCreatePost_EmptyTagName(t *testing.T) {
	ts := newTestServer(t)
	ts.createTag(t, "go")

	for _, tags := range [][]string{{""}, {"  "}, {"go", "\t"}} {
		t.Run(fmt.Sprintf("%q", tags), func(t *testing.T) {
			resp := ts.api.Post("/api/v1/posts", map[string]any{
				"title":   "t",
				"content": "c",
				"tags":    tags,
			})
			assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
			assert.Equal(t, "VALIDATION", decode[APIError](t, resp).Code)
		})
	}

	list := decode[ListPostsResponse](t, ts.api.Get("/api/v1/posts"))
	assert.Zero(t, list.Total)
}

func TestCreatePost_TrimsTagNames(t *testing.T) {
	ts := newTestServer(t)
	ts.createTag(t, "go")

	post := ts.createPost(t, "padded", " go ", "go")
	assert.Equal(t, []string{"go"}, tagNames(post.Tags))
}

func TestGetPost(t *testing.T) {
	ts := newTestServer(t)
	ts.createTag(t, "go")
	created := ts.createPost(t, "hello", "go")

	resp := ts.api.Get("/api/v1/posts/" + created.ID)
	require.Equal(t, http.StatusOK, resp.Code)

	got := decode[PostResponse](t, resp)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, []string{"go"}, tagNames(got.Tags))

	assert.Equal(t, http.StatusNotFound, ts.api.Get("/api/v1/posts/post-missing").Code)
}

func TestListPosts(t *testing.T) {
	ts := newTestServer(t)
	ts.createTag(t, "go")

	var ids []string
	for i := range 4 {
		ids = append(ids, ts.createPost(t, fmt.Sprintf("post %d", i), "go").ID)
	}

	resp := ts.api.Get("/api/v1/posts?limit=2&offset=1")
	require.Equal(t, http.StatusOK, resp.Code)

	page := decode[ListPostsResponse](t, resp)
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, ids[1], page.Posts[0].ID)
	assert.Equal(t, ids[2], page.Posts[1].ID)
	assert.Equal(t, []string{"go"}, tagNames(page.Posts[0].Tags))

	beyond := decode[ListPostsResponse](t, ts.api.Get("/api/v1/posts?offset=10"))
	assert.Empty(t, beyond.Posts)
	assert.Equal(t, 4, beyond.Total)

	resp = ts.api.Get("/api/v1/posts?limit=0")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"posts":[],"total":4}`, resp.Body.String())
}

func TestUpdatePost(t *testing.T) {
	ts := newTestServer(t)
	ts.createTag(t, "go")
	ts.createTag(t, "rust")
	created := ts.createPost(t, "hello", "go")

	resp := ts.api.Put("/api/v1/posts/"+created.ID, map[string]any{
		"title":   "hello again",
		"content": "new body",
		"tags":    []string{"rust"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	updated := decode[PostResponse](t, resp)
	assert.Equal(t, "hello again", updated.Title)
	assert.Equal(t, []string{"rust"}, tagNames(updated.Tags))
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	got := decode[PostResponse](t, ts.api.Get("/api/v1/posts/"+created.ID))
	assert.Equal(t, []string{"rust"}, tagNames(got.Tags))
}

func TestUpdatePost_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.createTag(t, "go")
	created := ts.createPost(t, "hello", "go")

	missing := ts.api.Put("/api/v1/posts/post-missing", map[string]any{"title": "x", "content": "y"})
	assert.Equal(t, http.StatusNotFound, missing.Code)

	unknown := ts.api.Put("/api/v1/posts/"+created.ID, map[string]any{
		"title":   "x",
		"content": "y",
		"tags":    []string{"zig"},
	})
	assert.Equal(t, http.StatusBadRequest, unknown.Code)

	blank := ts.api.Put("/api/v1/posts/"+created.ID, map[string]any{
		"title":   "x",
		"content": "y",
		"tags":    []string{"go", "   "},
	})
	assert.Equal(t, http.StatusBadRequest, blank.Code)
	assert.Equal(t, "VALIDATION", decode[APIError](t, blank).Code)

	// The rejected update left the post alone.
	got := decode[PostResponse](t, ts.api.Get("/api/v1/posts/"+created.ID))
	assert.Equal(t, "hello", got.Title)
	assert.Equal(t, []string{"go"}, tagNames(got.Tags))
}

func TestDeletePost(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createPost(t, "hello")

	assert.Equal(t, http.StatusNoContent, ts.api.Delete("/api/v1/posts/"+created.ID).Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Get("/api/v1/posts/"+created.ID).Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Delete("/api/v1/posts/"+created.ID).Code)
}

func TestDeletedTagDisappearsFromPosts(t *testing.T) {
	ts := newTestServer(t)
	ts.createTag(t, "go")
	ts.createTag(t, "rust")
	created := ts.createPost(t, "hello", "go", "rust")

	require.Equal(t, http.StatusNoContent, ts.api.Delete("/api/v1/tags/rust").Code)

	got := decode[PostResponse](t, ts.api.Get("/api/v1/posts/"+created.ID))
	assert.Equal(t, []string{"go"}, tagNames(got.Tags))
}
