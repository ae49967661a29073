package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/iemanja/iemanjad/internal/domain"
	"github.com/iemanja/iemanjad/internal/http/response"
)

func (s *Server) registerPostRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createPost",
		Method:        http.MethodPost,
		Path:          "/api/v1/posts",
		Summary:       "Create post",
		Description:   "Creates a post attached to existing tags. Unknown tag names are rejected.",
		Tags:          []string{"Posts"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreatePost)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPosts",
		Method:      http.MethodGet,
		Path:        "/api/v1/posts",
		Summary:     "List posts",
		Description: "Returns one page of posts, oldest first, with the total number of posts",
		Tags:        []string{"Posts"},
	}, s.handleListPosts)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPost",
		Method:      http.MethodGet,
		Path:        "/api/v1/posts/{id}",
		Summary:     "Get post",
		Description: "Returns a post with its tags",
		Tags:        []string{"Posts"},
	}, s.handleGetPost)

	huma.Register(s.api, huma.Operation{
		OperationID: "updatePost",
		Method:      http.MethodPut,
		Path:        "/api/v1/posts/{id}",
		Summary:     "Replace post",
		Description: "Replaces title, content and the whole tag set of a post",
		Tags:        []string{"Posts"},
	}, s.handleUpdatePost)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deletePost",
		Method:        http.MethodDelete,
		Path:          "/api/v1/posts/{id}",
		Summary:       "Delete post",
		Description:   "Deletes a post",
		Tags:          []string{"Posts"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeletePost)
}

// === DTOs ===

// PostRequest is the request body for creating or replacing a post.
type PostRequest struct {
	Title   string   `json:"title" doc:"Post title"`
	Content string   `json:"content" doc:"Post body"`
	Tags    []string `json:"tags,omitempty" doc:"Names of existing tags. Duplicates are ignored."`
}

func (r PostRequest) toDomain() domain.NewPost {
	return domain.NewPost{Title: r.Title, Content: r.Content, Tags: r.Tags}
}

// PostResponse contains post data in API responses.
type PostResponse struct {
	ID        string        `json:"id" doc:"Post ID"`
	Title     string        `json:"title" doc:"Post title"`
	Content   string        `json:"content" doc:"Post body"`
	Tags      []TagResponse `json:"tags" doc:"Tags ordered by name"`
	CreatedAt time.Time     `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time     `json:"updated_at" doc:"Last update time"`
}

// ListPostsResponse contains one page of posts.
type ListPostsResponse struct {
	Posts []PostResponse `json:"posts" doc:"Posts on this page"`
	Total int            `json:"total" doc:"Total number of posts"`
}

// CreatePostInput wraps the create post request for Huma.
type CreatePostInput struct {
	Body PostRequest
}

// ListPostsInput contains parameters for listing posts.
type ListPostsInput struct {
	PageInput
}

// PostIDInput addresses a single post.
type PostIDInput struct {
	ID string `path:"id" doc:"Post ID"`
}

// UpdatePostInput wraps the replace post request for Huma.
type UpdatePostInput struct {
	ID   string `path:"id" doc:"Post ID"`
	Body PostRequest
}

// PostOutput wraps the post response for Huma.
type PostOutput struct {
	Body PostResponse
}

// ListPostsOutput wraps the list posts response for Huma.
type ListPostsOutput struct {
	Body ListPostsResponse
}

func toPostResponse(p domain.Post) PostResponse {
	return PostResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Tags:      toTagResponses(p.Tags),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// === Handlers ===

func (s *Server) handleCreatePost(ctx context.Context, input *CreatePostInput) (*PostOutput, error) {
	post := input.Body.toDomain().Normalize()
	if err := s.validator.Validate(post); err != nil {
		return nil, err
	}

	p, err := s.posts.Create(ctx, post)
	if err != nil {
		return nil, s.fail(ctx, "create post", err)
	}

	return &PostOutput{Body: toPostResponse(*p)}, nil
}

func (s *Server) handleListPosts(ctx context.Context, input *ListPostsInput) (*ListPostsOutput, error) {
	list, err := s.posts.FindAll(ctx, input.options())
	if err != nil {
		return nil, s.fail(ctx, "list posts", err)
	}

	resp := make([]PostResponse, len(list.Posts))
	for i, p := range list.Posts {
		resp[i] = toPostResponse(p)
	}

	return &ListPostsOutput{
		Body: ListPostsResponse{Posts: resp, Total: list.Total},
	}, nil
}

func (s *Server) handleGetPost(ctx context.Context, input *PostIDInput) (*PostOutput, error) {
	p, err := s.posts.Get(ctx, input.ID)
	if err != nil {
		return nil, s.fail(ctx, "get post", err)
	}

	return &PostOutput{Body: toPostResponse(*p)}, nil
}

func (s *Server) handleUpdatePost(ctx context.Context, input *UpdatePostInput) (*PostOutput, error) {
	post := input.Body.toDomain().Normalize()
	if err := s.validator.Validate(post); err != nil {
		return nil, err
	}

	p, err := s.posts.Update(ctx, input.ID, post)
	if err != nil {
		return nil, s.fail(ctx, "update post", err)
	}

	return &PostOutput{Body: toPostResponse(*p)}, nil
}

func (s *Server) handleDeletePost(ctx context.Context, input *PostIDInput) (*struct{}, error) {
	if err := s.posts.Delete(ctx, input.ID); err != nil {
		return nil, s.fail(ctx, "delete post", err)
	}
	return nil, nil //nolint:nilnil // 204 has no body
}

// fail logs server-side failures and returns err unchanged for the error handler.
func (s *Server) fail(ctx context.Context, op string, err error) error {
	status, _, ok := response.Describe(err)
	if !ok || status >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "Request failed", "op", op, "error", err)
	}
	return err
}
