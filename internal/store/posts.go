package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/iemanja/iemanjad/internal/domain"
)

// Posts implements PostRepository on top of a backend. Tag existence is
// checked through the tag repository before anything is written.
//
// Create and Update write the post row and the relation set as two separate
// steps. If the relation write fails the post row stays as written and the
// relation error is returned.
type Posts struct {
	rows      PostRows
	tags      TagRepository
	relations RelationSynchronizer
	logger    *slog.Logger
	now       func() time.Time
}

var _ PostRepository = (*Posts)(nil)

// NewPosts creates a post repository.
func NewPosts(rows PostRows, tags TagRepository, relations RelationSynchronizer, logger *slog.Logger) *Posts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Posts{
		rows:      rows,
		tags:      tags,
		relations: relations,
		logger:    logger,
		now:       time.Now,
	}
}

// NewPostsFromBackend wires a post repository to all parts of one backend.
func NewPostsFromBackend(b Backend, logger *slog.Logger) *Posts {
	return NewPosts(b.PostRows(), b.Tags(), b.Relations(), logger)
}

// Create validates the tags, inserts the post and relates it to its tags.
func (p *Posts) Create(ctx context.Context, post domain.NewPost) (*domain.Post, error) {
	tags, err := ResolveTags(ctx, p.tags, post.TagSet())
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	row, err := p.rows.InsertPost(ctx, &domain.PostRow{
		Title:     post.Title,
		Content:   post.Content,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if err := p.relations.Relate(ctx, row.ID, TagIDs(tags)); err != nil {
		p.logger.Warn("post created without its tags",
			"post_id", row.ID,
			"tags", domain.TagNames(tags),
			"error", err,
		)
		return nil, err
	}

	p.logger.Debug("post created", "post_id", row.ID, "tag_count", len(tags))
	return row.WithTags(tags), nil
}

// FindAll returns one page of posts and the total number of posts.
// The two are read separately and may disagree under concurrent writes.
func (p *Posts) FindAll(ctx context.Context, opts FindAllOptions) (*PostList, error) {
	opts.Validate()

	posts, err := p.rows.ListPosts(ctx, opts)
	if err != nil {
		return nil, err
	}

	total, err := p.rows.CountPosts(ctx)
	if err != nil {
		return nil, err
	}

	if posts == nil {
		posts = []domain.Post{}
	}
	return &PostList{Posts: posts, Total: total}, nil
}

// Get returns a post with its tags.
func (p *Posts) Get(ctx context.Context, id string) (*domain.Post, error) {
	return p.rows.GetPost(ctx, id)
}

// Update replaces title, content and the whole tag set of a post.
// Unknown tags are rejected the same way Create rejects them.
func (p *Posts) Update(ctx context.Context, id string, post domain.NewPost) (*domain.Post, error) {
	tags, err := ResolveTags(ctx, p.tags, post.TagSet())
	if err != nil {
		return nil, err
	}

	row, err := p.rows.UpdatePost(ctx, &domain.PostRow{
		ID:        id,
		Title:     post.Title,
		Content:   post.Content,
		UpdatedAt: p.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if err := p.relations.Replace(ctx, row.ID, TagIDs(tags)); err != nil {
		p.logger.Warn("post updated but its tags were not replaced",
			"post_id", row.ID,
			"tags", domain.TagNames(tags),
			"error", err,
		)
		return nil, err
	}

	p.logger.Debug("post updated", "post_id", row.ID, "tag_count", len(tags))
	return row.WithTags(tags), nil
}

// Delete removes a post. Its relations are not swept.
func (p *Posts) Delete(ctx context.Context, id string) error {
	if err := p.rows.DeletePost(ctx, id); err != nil {
		return err
	}
	p.logger.Debug("post deleted", "post_id", id)
	return nil
}
