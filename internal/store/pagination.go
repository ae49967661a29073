package store

import "github.com/iemanja/iemanjad/internal/domain"

// Pagination defaults.
const (
	DefaultLimit  = 10
	DefaultOffset = 0
)

// FindAllOptions contains pagination parameters for listing.
type FindAllOptions struct {
	Limit  int // Page size; zero returns no items
	Offset int // Items to skip
}

// DefaultFindAllOptions returns the first page with the default size.
func DefaultFindAllOptions() FindAllOptions {
	return FindAllOptions{
		Limit:  DefaultLimit,
		Offset: DefaultOffset,
	}
}

// Validate replaces negative values with the defaults. A zero limit is kept
// and yields an empty page that still carries the total.
func (o *FindAllOptions) Validate() {
	if o.Limit < 0 {
		o.Limit = DefaultLimit
	}
	if o.Offset < 0 {
		o.Offset = DefaultOffset
	}
}

// TagList is one page of tags plus the size of the whole collection.
type TagList struct {
	Tags  []domain.Tag `json:"tags"`
	Total int          `json:"total"`
}

// PostList is one page of posts plus the size of the whole collection.
type PostList struct {
	Posts []domain.Post `json:"posts"`
	Total int           `json:"total"`
}
