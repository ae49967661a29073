package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iemanja/iemanjad/internal/domain"
	"github.com/iemanja/iemanjad/internal/id"
	"github.com/iemanja/iemanjad/internal/store"
)

// postColumns must match the scan order in scanPostRow.
const postColumns = `id, title, content, created_at, updated_at`

// postsWithTags selects posts from the inner query together with their
// tags. Relation rows whose tag no longer exists yield NULL tag columns.
const postsWithTags = `
	SELECT p.id, p.title, p.content, p.created_at, p.updated_at, t.id, t.name
	FROM (%s) AS p
	LEFT JOIN posts_tags pt ON pt.post_id = p.id
	LEFT JOIN tags t ON t.id = pt.tag_id
	ORDER BY p.created_at, p.id, t.name`

// PostRows stores posts in the posts table.
type PostRows struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.PostRows = (*PostRows)(nil)

func scanPostRow(scanner interface{ Scan(dest ...any) error }) (*domain.PostRow, error) {
	var (
		row       domain.PostRow
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&row.ID, &row.Title, &row.Content, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if row.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if row.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &row, nil
}

// collectPosts folds joined post/tag rows into posts, keeping query order.
func collectPosts(rows *sql.Rows) ([]domain.Post, error) {
	var (
		posts []domain.Post
		index = make(map[string]int)
	)

	for rows.Next() {
		var (
			row       domain.PostRow
			createdAt string
			updatedAt string
			tagID     sql.NullString
			tagName   sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.Title, &row.Content, &createdAt, &updatedAt, &tagID, &tagName); err != nil {
			return nil, err
		}

		i, seen := index[row.ID]
		if !seen {
			var err error
			if row.CreatedAt, err = parseTime(createdAt); err != nil {
				return nil, fmt.Errorf("parse created_at: %w", err)
			}
			if row.UpdatedAt, err = parseTime(updatedAt); err != nil {
				return nil, fmt.Errorf("parse updated_at: %w", err)
			}
			i = len(posts)
			index[row.ID] = i
			posts = append(posts, *row.WithTags(nil))
		}

		if tagID.Valid {
			posts[i].Tags = append(posts[i].Tags, domain.Tag{ID: tagID.String, Name: tagName.String})
		}
	}
	return posts, nil
}

// InsertPost stores a new post row with a generated ID.
func (r *PostRows) InsertPost(ctx context.Context, in *domain.PostRow) (*domain.PostRow, error) {
	postID, err := id.Generate("post")
	if err != nil {
		return nil, store.ErrPostCreation.WithCause(err)
	}

	row, err := scanPostRow(r.db.QueryRowContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES (:id, :title, :content, :created_at, :updated_at)
		RETURNING `+postColumns,
		sql.Named("id", postID),
		sql.Named("title", in.Title),
		sql.Named("content", in.Content),
		sql.Named("created_at", formatTime(in.CreatedAt)),
		sql.Named("updated_at", formatTime(in.UpdatedAt)),
	))
	if errors.Is(err, sql.ErrNoRows) {
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

	page := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at, id LIMIT :limit OFFSET :offset`
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(postsWithTags, page),
		sql.Named("limit", opts.Limit),
		sql.Named("offset", opts.Offset),
	)
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	defer rows.Close()

	posts, err := collectPosts(rows)
	if err != nil {
		return nil, store.ErrPostListing.WithCause(err)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	return posts, nil
}

// CountPosts returns the number of posts.
func (r *PostRows) CountPosts(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return 0, store.ErrPostCount.WithCause(err)
	}
	return total, nil
}

// GetPost returns a post with its tags.
func (r *PostRows) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	one := `SELECT ` + postColumns + ` FROM posts WHERE id = :id`
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(postsWithTags, one), sql.Named("id", postID))
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	defer rows.Close()

	posts, err := collectPosts(rows)
	if err != nil {
		return nil, store.ErrPostListing.WithCause(err)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	if len(posts) == 0 {
		return nil, store.ErrNotFound.WithMessage("post not found")
	}
	return &posts[0], nil
}

// UpdatePost overwrites title and content. updated_at never moves before created_at.
func (r *PostRows) UpdatePost(ctx context.Context, in *domain.PostRow) (*domain.PostRow, error) {
	row, err := scanPostRow(r.db.QueryRowContext(ctx, `
		UPDATE posts
		SET title = :title, content = :content, updated_at = MAX(created_at, :updated_at)
		WHERE id = :id
		RETURNING `+postColumns,
		sql.Named("id", in.ID),
		sql.Named("title", in.Title),
		sql.Named("content", in.Content),
		sql.Named("updated_at", formatTime(in.UpdatedAt)),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("post not found")
	}
	if err != nil {
		return nil, store.ErrPostUpdate.WithCause(err)
	}
	return row, nil
}

// DeletePost removes a post row. Its relation rows are kept.
func (r *PostRows) DeletePost(ctx context.Context, postID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = :id`, sql.Named("id", postID))
	if err != nil {
		return store.ErrDatabase.WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.ErrDatabase.WithCause(err)
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("post not found")
	}
	return nil
}
