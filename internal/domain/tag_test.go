package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTag_Normalize(t *testing.T) {
	assert.Equal(t, "golang", NewTag{Name: "  golang\t"}.Normalize().Name)
	assert.Equal(t, "two words", NewTag{Name: "two words"}.Normalize().Name)
}

func TestSortTags(t *testing.T) {
	tags := []Tag{{Name: "b"}, {Name: "C"}, {Name: "a"}}
	SortTags(tags)
	// Byte order: uppercase sorts first.
	assert.Equal(t, []string{"C", "a", "b"}, TagNames(tags))
}

func TestTagNames_Empty(t *testing.T) {
	assert.Empty(t, TagNames(nil))
}
