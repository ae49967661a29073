package domain

import (
	"slices"
	"strings"
	"time"
)

// Post is a titled piece of content with a set of tags.
//
// Tags are not stored on the post row. They are materialized from the
// post/tag relation every time a post is read, ordered by name.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []Tag     `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPost is the input for creating or replacing a post.
// Tags holds tag names and is treated as a set.
type NewPost struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags" validate:"dive,required"`
}

// Normalize trims surrounding whitespace from each tag name. Names that
// become empty are kept so validation can reject them.
func (p NewPost) Normalize() NewPost {
	if p.Tags == nil {
		return p
	}
	tags := make([]string, len(p.Tags))
	for i, name := range p.Tags {
		tags[i] = strings.TrimSpace(name)
	}
	p.Tags = tags
	return p
}

// TagSet returns the distinct tag names of the post, trimmed and sorted.
// Empty names are dropped.
func (p NewPost) TagSet() []string {
	set := make([]string, 0, len(p.Tags))
	for _, name := range p.Tags {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		set = append(set, name)
	}
	slices.Sort(set)
	return slices.Compact(set)
}

// PostRow is the persisted shape of a post, without its tags.
type PostRow struct {
	ID        string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithTags composes a Post from the row and its resolved tags.
func (r *PostRow) WithTags(tags []Tag) *Post {
	if tags == nil {
		tags = []Tag{}
	}
	SortTags(tags)
	return &Post{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Tags:      tags,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Touch sets UpdatedAt to now, never earlier than CreatedAt.
func (r *PostRow) Touch(now time.Time) {
	if now.Before(r.CreatedAt) {
		now = r.CreatedAt
	}
	r.UpdatedAt = now
}

// SortTags orders tags by name in place.
func SortTags(tags []Tag) {
	slices.SortFunc(tags, func(a, b Tag) int {
		return strings.Compare(a.Name, b.Name)
	})
}
