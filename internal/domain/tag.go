package domain

import "strings"

// Tag is a named label that can be attached to any number of posts.
// Name is unique across all tags.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewTag is the input for creating or renaming a tag.
type NewTag struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Normalize trims surrounding whitespace from the name.
func (t NewTag) Normalize() NewTag {
	t.Name = strings.TrimSpace(t.Name)
	return t
}

// TagNames returns the names of the given tags in order.
func TagNames(tags []Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}
