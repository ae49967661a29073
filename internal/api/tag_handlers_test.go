package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) createTag(t *testing.T, name string) TagResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/tags", map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[TagResponse](t, resp)
}

func TestCreateTag(t *testing.T) {
	ts := newTestServer(t)

	tag := ts.createTag(t, "  golang ")
	assert.NotEmpty(t, tag.ID)
	assert.Equal(t, "golang", tag.Name)
}

func TestCreateTag_Duplicate(t *testing.T) {
	ts := newTestServer(t)
	ts.createTag(t, "golang")

	resp := ts.api.Post("/api/v1/tags", map[string]any{"name": "golang"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "CONFLICT", decode[APIError](t, resp).Code)
}

func TestCreateTag_Invalid(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"blank name", map[string]any{"name": "   "}, http.StatusBadRequest},
		{"name too long", map[string]any{"name": strings.Repeat("x", 101)}, http.StatusUnprocessableEntity},
		{"missing name", map[string]any{}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/tags", tt.body)
			assert.Equal(t, tt.want, resp.Code, resp.Body.String())
			assert.Equal(t, "VALIDATION", decode[APIError](t, resp).Code)
		})
	}
}

func TestGetTag(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createTag(t, "rust")

	resp := ts.api.Get("/api/v1/tags/rust")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, created, decode[TagResponse](t, resp))

	resp = ts.api.Get("/api/v1/tags/zig")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[APIError](t, resp).Code)
}

func TestListTags_Pagination(t *testing.T) {
	ts := newTestServer(t)
	for _, name := range []string{"e", "c", "a", "d", "b"} {
		ts.createTag(t, name)
	}

	resp := ts.api.Get("/api/v1/tags?limit=2&offset=1")
	require.Equal(t, http.StatusOK, resp.Code)

	page := decode[ListTagsResponse](t, resp)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Tags, 2)
	assert.Equal(t, "b", page.Tags[0].Name)
	assert.Equal(t, "c", page.Tags[1].Name)
}

func TestListTags_Defaults(t *testing.T) {
	ts := newTestServer(t)
	for i := range 12 {
		ts.createTag(t, fmt.Sprintf("tag-%02d", i))
	}

	for _, query := range []string{"", "?limit=-3&offset=-1"} {
		t.Run(query, func(t *testing.T) {
			resp := ts.api.Get("/api/v1/tags" + query)
			require.Equal(t, http.StatusOK, resp.Code)

			page := decode[ListTagsResponse](t, resp)
			assert.Equal(t, 12, page.Total)
			assert.Len(t, page.Tags, 10)
			assert.Equal(t, "tag-00", page.Tags[0].Name)
		})
	}
}

func TestListTags_ZeroLimit(t *testing.T) {
	ts := newTestServer(t)
	for i := range 3 {
		ts.createTag(t, fmt.Sprintf("tag-%d", i))
	}

	for _, query := range []string{"?limit=0", "?limit=0&offset=1"} {
		t.Run(query, func(t *testing.T) {
			resp := ts.api.Get("/api/v1/tags" + query)
			require.Equal(t, http.StatusOK, resp.Code)
			assert.JSONEq(t, `{"tags":[],"total":3}`, resp.Body.String())
		})
	}
}

func TestListTags_Empty(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.api.Get("/api/v1/tags")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"tags":[],"total":0}`, resp.Body.String())
}

func TestUpdateTag(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createTag(t, "golang")
	ts.createTag(t, "taken")

	resp := ts.api.Put("/api/v1/tags/golang", map[string]any{"name": "go"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	renamed := decode[TagResponse](t, resp)
	assert.Equal(t, created.ID, renamed.ID)
	assert.Equal(t, "go", renamed.Name)

	assert.Equal(t, http.StatusNotFound, ts.api.Get("/api/v1/tags/golang").Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Put("/api/v1/tags/golang", map[string]any{"name": "x"}).Code)
	assert.Equal(t, http.StatusConflict, ts.api.Put("/api/v1/tags/go", map[string]any{"name": "taken"}).Code)
}

func TestDeleteTag(t *testing.T) {
	ts := newTestServer(t)
	ts.createTag(t, "golang")

	resp := ts.api.Delete("/api/v1/tags/golang")
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, resp.Body.String())

	assert.Equal(t, http.StatusNotFound, ts.api.Get("/api/v1/tags/golang").Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Delete("/api/v1/tags/golang").Code)
}
