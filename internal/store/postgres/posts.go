package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iemanja/iemanjad/internal/domain"
	"github.com/iemanja/iemanjad/internal/store"
)

// postColumns must match the scan order in scanPostRow.
const postColumns = `id::text, title, content, created_at, updated_at`

// postsWithTags selects posts from the inner query together with their
// tags. Relation rows whose tag no longer exists yield NULL tag columns.
const postsWithTags = `
	SELECT p.id, p.title, p.content, p.created_at, p.updated_at, t.id::text, t.name
	FROM (%s) AS p
	LEFT JOIN posts_tags pt ON pt.post_id = p.id::uuid
	LEFT JOIN tags t ON t.id = pt.tag_id
	ORDER BY p.created_at, p.id, t.name COLLATE "C"`

// PostRows stores posts in the posts table.
type PostRows struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ store.PostRows = (*PostRows)(nil)

func scanPostRow(scanner interface{ Scan(dest ...any) error }) (*domain.PostRow, error) {
	var row domain.PostRow
	if err := scanner.Scan(&row.ID, &row.Title, &row.Content, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return nil, err
	}
	row.CreatedAt = row.CreatedAt.UTC()
	row.UpdatedAt = row.UpdatedAt.UTC()
	return &row, nil
}

// collectPosts folds joined post/tag rows into posts, keeping query order.
func collectPosts(rows pgx.Rows) ([]domain.Post, error) {
	defer rows.Close()

	var (
		posts []domain.Post
		index = make(map[string]int)
	)
	for rows.Next() {
		var (
			row     domain.PostRow
			tagID   *string
			tagName *string
		)
		if err := rows.Scan(&row.ID, &row.Title, &row.Content, &row.CreatedAt, &row.UpdatedAt, &tagID, &tagName); err != nil {
			return nil, err
		}

		i, seen := index[row.ID]
		if !seen {
			row.CreatedAt = row.CreatedAt.UTC()
			row.UpdatedAt = row.UpdatedAt.UTC()
			i = len(posts)
			index[row.ID] = i
			posts = append(posts, *row.WithTags(nil))
		}

		if tagID != nil && tagName != nil {
			posts[i].Tags = append(posts[i].Tags, domain.Tag{ID: *tagID, Name: *tagName})
		}
	}
	return posts, rows.Err()
}

// InsertPost stores a new post row with a generated ID.
func (r *PostRows) InsertPost(ctx context.Context, in *domain.PostRow) (*domain.PostRow, error) {
	postID, err := newID()
	if err != nil {
		return nil, store.ErrPostCreation.WithCause(err)
	}

	row, err := scanPostRow(r.pool.QueryRow(ctx, `
		INSERT INTO posts (id, title, content, created_at, updated_at)
		VALUES (@id, @title, @content, @created_at, @updated_at)
		RETURNING `+postColumns,
		pgx.NamedArgs{
			"id":         postID,
			"title":      in.Title,
			"content":    in.Content,
			"created_at": in.CreatedAt,
			"updated_at": in.UpdatedAt,
		},
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrPostCreation
	}
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	return row, nil
}

// ListPosts returns one page of posts with their tags in a single query.
func (r *PostRows) ListPosts(ctx context.Context, opts store.FindAllOptions) ([]domain.Post, error) {
	opts.Validate()

	page := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at, id LIMIT @limit OFFSET @offset`
	rows, err := r.pool.Query(ctx, fmt.Sprintf(postsWithTags, page),
		pgx.NamedArgs{"limit": opts.Limit, "offset": opts.Offset},
	)
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}

	posts, err := collectPosts(rows)
	if err != nil {
		return nil, store.ErrPostListing.WithCause(err)
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	return posts, nil
}

// CountPosts returns the number of posts.
func (r *PostRows) CountPosts(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return 0, store.ErrPostCount.WithCause(err)
	}
	return total, nil
}

// GetPost returns a post with its tags.
func (r *PostRows) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	if !validID(postID) {
		return nil, store.ErrNotFound.WithMessage("post not found")
	}

	one := `SELECT ` + postColumns + ` FROM posts WHERE id = @id`
	rows, err := r.pool.Query(ctx, fmt.Sprintf(postsWithTags, one), pgx.NamedArgs{"id": postID})
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}

	posts, err := collectPosts(rows)
	if err != nil {
		return nil, store.ErrPostListing.WithCause(err)
	}
	if len(posts) == 0 {
		return nil, store.ErrNotFound.WithMessage("post not found")
	}
	return &posts[0], nil
}

// UpdatePost overwrites title and content. updated_at never moves before created_at.
func (r *PostRows) UpdatePost(ctx context.Context, in *domain.PostRow) (*domain.PostRow, error) {
	if !validID(in.ID) {
		return nil, store.ErrNotFound.WithMessage("post not found")
	}

	row, err := scanPostRow(r.pool.QueryRow(ctx, `
		UPDATE posts
		SET title = @title, content = @content, updated_at = GREATEST(created_at, @updated_at)
		WHERE id = @id
		RETURNING `+postColumns,
		pgx.NamedArgs{
			"id":         in.ID,
			"title":      in.Title,
			"content":    in.Content,
			"updated_at": in.UpdatedAt,
		},
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("post not found")
	}
	if err != nil {
		return nil, store.ErrPostUpdate.WithCause(err)
	}
	return row, nil
}

// DeletePost removes a post row. Its relation rows are kept.
func (r *PostRows) DeletePost(ctx context.Context, postID string) error {
	if !validID(postID) {
		return store.ErrNotFound.WithMessage("post not found")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = @id`, pgx.NamedArgs{"id": postID})
	if err != nil {
		return store.ErrDatabase.WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound.WithMessage("post not found")
	}
	return nil
}
