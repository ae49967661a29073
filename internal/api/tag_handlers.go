package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/iemanja/iemanjad/internal/domain"
	"github.com/iemanja/iemanjad/internal/store"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns one page of tags ordered by name, with the total number of tags",
		Tags:        []string{"Tags"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTag",
		Method:        http.MethodPost,
		Path:          "/api/v1/tags",
		Summary:       "Create tag",
		Description:   "Creates a new tag. Names are unique.",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{name}",
		Summary:     "Get tag",
		Description: "Returns a tag by name",
		Tags:        []string{"Tags"},
	}, s.handleGetTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateTag",
		Method:      http.MethodPut,
		Path:        "/api/v1/tags/{name}",
		Summary:     "Rename tag",
		Description: "Renames a tag. Posts keep the tag under its new name.",
		Tags:        []string{"Tags"},
	}, s.handleUpdateTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteTag",
		Method:        http.MethodDelete,
		Path:          "/api/v1/tags/{name}",
		Summary:       "Delete tag",
		Description:   "Deletes a tag. Posts stop listing it.",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteTag)
}

// === DTOs ===

// PageInput holds the pagination query parameters shared by list endpoints.
type PageInput struct {
	Limit  int `query:"limit" default:"10" doc:"Page size. Zero returns an empty page with the total. Negative means the default of 10."`
	Offset int `query:"offset" default:"0" doc:"Items to skip. Negative means 0."`
}

func (p PageInput) options() store.FindAllOptions {
	opts := store.FindAllOptions{Limit: p.Limit, Offset: p.Offset}
	opts.Validate()
	return opts
}

// ListTagsInput contains parameters for listing tags.
type ListTagsInput struct {
	PageInput
}

// TagResponse contains tag data in API responses.
type TagResponse struct {
	ID   string `json:"id" doc:"Tag ID"`
	Name string `json:"name" doc:"Tag name"`
}

// ListTagsResponse contains one page of tags.
type ListTagsResponse struct {
	Tags  []TagResponse `json:"tags" doc:"Tags on this page"`
	Total int           `json:"total" doc:"Total number of tags"`
}

// ListTagsOutput wraps the list tags response for Huma.
type ListTagsOutput struct {
	Body ListTagsResponse
}

// TagRequest is the request body for creating or renaming a tag.
type TagRequest struct {
	Name string `json:"name" maxLength:"100" doc:"Tag name"`
}

// CreateTagInput wraps the create tag request for Huma.
type CreateTagInput struct {
	Body TagRequest
}

// TagOutput wraps the tag response for Huma.
type TagOutput struct {
	Body TagResponse
}

// TagNameInput addresses a single tag.
type TagNameInput struct {
	Name string `path:"name" doc:"Tag name"`
}

// UpdateTagInput wraps the rename tag request for Huma.
type UpdateTagInput struct {
	Name string `path:"name" doc:"Current tag name"`
	Body TagRequest
}

func toTagResponse(t domain.Tag) TagResponse {
	return TagResponse{ID: t.ID, Name: t.Name}
}

func toTagResponses(tags []domain.Tag) []TagResponse {
	resp := make([]TagResponse, len(tags))
	for i, t := range tags {
		resp[i] = toTagResponse(t)
	}
	return resp
}

// === Handlers ===

func (s *Server) handleListTags(ctx context.Context, input *ListTagsInput) (*ListTagsOutput, error) {
	list, err := s.tags.FindAll(ctx, input.options())
	if err != nil {
		return nil, s.fail(ctx, "list tags", err)
	}

	return &ListTagsOutput{
		Body: ListTagsResponse{
			Tags:  toTagResponses(list.Tags),
			Total: list.Total,
		},
	}, nil
}

func (s *Server) handleCreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	tag := domain.NewTag{Name: input.Body.Name}.Normalize()
	if err := s.validator.Validate(tag); err != nil {
		return nil, err
	}

	t, err := s.tags.Create(ctx, tag)
	if err != nil {
		return nil, s.fail(ctx, "create tag", err)
	}

	return &TagOutput{Body: toTagResponse(*t)}, nil
}

func (s *Server) handleGetTag(ctx context.Context, input *TagNameInput) (*TagOutput, error) {
	t, err := s.tags.Get(ctx, input.Name)
	if err != nil {
		return nil, s.fail(ctx, "get tag", err)
	}

	return &TagOutput{Body: toTagResponse(*t)}, nil
}

func (s *Server) handleUpdateTag(ctx context.Context, input *UpdateTagInput) (*TagOutput, error) {
	tag := domain.NewTag{Name: input.Body.Name}.Normalize()
	if err := s.validator.Validate(tag); err != nil {
		return nil, err
	}

	t, err := s.tags.Update(ctx, input.Name, tag)
	if err != nil {
		return nil, s.fail(ctx, "update tag", err)
	}

	return &TagOutput{Body: toTagResponse(*t)}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *TagNameInput) (*struct{}, error) {
	if err := s.tags.Delete(ctx, input.Name); err != nil {
		return nil, s.fail(ctx, "delete tag", err)
	}
	return nil, nil //nolint:nilnil // 204 has no body
}
