package store

import (
	"context"

	"github.com/iemanja/iemanjad/internal/domain"
)

// TagRepository persists tags, addressed by their unique name.
type TagRepository interface {
	// Create inserts a tag. It fails with ErrTagCreation when the store
	// returns no row, including on a duplicate name.
	Create(ctx context.Context, tag domain.NewTag) (*domain.Tag, error)

	// FindAll returns one page of tags ordered by name and the total count.
	// The page and the count are read by separate queries.
	FindAll(ctx context.Context, opts FindAllOptions) (*TagList, error)

	// FindInNames returns the existing tags among names. Names with no tag
	// are omitted. Implementations must only return tags whose name is in
	// names; callers rely on this to compute the missing set.
	FindInNames(ctx context.Context, names []string) ([]domain.Tag, error)

	Get(ctx context.Context, name string) (*domain.Tag, error)

	// Update renames the tag in place.
	Update(ctx context.Context, name string, tag domain.NewTag) (*domain.Tag, error)

	// Delete removes the tag. Relations pointing at it are left alone.
	Delete(ctx context.Context, name string) error
}

// PostRepository persists posts together with their tag relations.
type PostRepository interface {
	Create(ctx context.Context, post domain.NewPost) (*domain.Post, error)
	FindAll(ctx context.Context, opts FindAllOptions) (*PostList, error)
	Get(ctx context.Context, id string) (*domain.Post, error)
	Update(ctx context.Context, id string, post domain.NewPost) (*domain.Post, error)
	Delete(ctx context.Context, id string) error
}

// PostRows is the backend half of the post repository: the post table
// itself plus the joined reads that materialize tags.
type PostRows interface {
	// InsertPost assigns an ID and stores the row. It fails with
	// ErrPostCreation when the store returns no row.
	InsertPost(ctx context.Context, row *domain.PostRow) (*domain.PostRow, error)

	// ListPosts returns one page of posts with their tags in a single read,
	// ordered by creation time then ID. Relations to deleted tags are skipped.
	ListPosts(ctx context.Context, opts FindAllOptions) ([]domain.Post, error)

	CountPosts(ctx context.Context) (int, error)

	GetPost(ctx context.Context, id string) (*domain.Post, error)

	// UpdatePost overwrites title and content and sets updated_at to the
	// later of row.UpdatedAt and the stored created_at.
	UpdatePost(ctx context.Context, row *domain.PostRow) (*domain.PostRow, error)

	// DeletePost removes the row. Relations from it are left alone.
	DeletePost(ctx context.Context, id string) error
}

// RelationSynchronizer writes the post/tag relation.
type RelationSynchronizer interface {
	// Relate adds one relation per tag in a single write.
	Relate(ctx context.Context, postID string, tagIDs []string) error

	// Replace removes every relation of the post and then adds one per tag,
	// as a single write.
	Replace(ctx context.Context, postID string, tagIDs []string) error
}

// Backend is an opened storage engine.
type Backend interface {
	Tags() TagRepository
	PostRows() PostRows
	Relations() RelationSynchronizer
	Ping(ctx context.Context) error
	Close() error
}
