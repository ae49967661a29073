package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/iemanja/iemanjad/internal/domain"
)

// MissingTagNames returns the names present in exactly one of found and
// requested, sorted. When found is a subset of requested this is the set
// of requested names that have no tag.
func MissingTagNames(found []domain.Tag, requested []string) []string {
	foundSet := make(map[string]struct{}, len(found))
	for _, t := range found {
		foundSet[t.Name] = struct{}{}
	}
	requestedSet := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		requestedSet[name] = struct{}{}
	}

	var diff []string
	for name := range requestedSet {
		if _, ok := foundSet[name]; !ok {
			diff = append(diff, name)
		}
	}
	for name := range foundSet {
		if _, ok := requestedSet[name]; !ok {
			diff = append(diff, name)
		}
	}
	slices.Sort(diff)
	return diff
}

// TagIDs returns the IDs of the given tags in order.
func TagIDs(tags []domain.Tag) []string {
	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}

// ResolveTags looks up every name and fails with a TagsNotFound error
// unless all of them exist. names must already be deduplicated.
func ResolveTags(ctx context.Context, tags TagRepository, names []string) ([]domain.Tag, error) {
	if len(names) == 0 {
		return []domain.Tag{}, nil
	}

	found, err := tags.FindInNames(ctx, names)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]struct{}, len(names))
	for _, name := range names {
		requested[name] = struct{}{}
	}
	seen := make(map[string]struct{}, len(found))
	for _, t := range found {
		if _, ok := requested[t.Name]; !ok {
			return nil, ErrTagFind.WithMessage(fmt.Sprintf("tag lookup returned %q which was not requested", t.Name))
		}
		if _, dup := seen[t.Name]; dup {
			return nil, ErrTagFind.WithMessage(fmt.Sprintf("tag lookup returned %q twice", t.Name))
		}
		seen[t.Name] = struct{}{}
	}

	if len(found) != len(names) {
		return nil, TagsNotFound(MissingTagNames(found, names))
	}

	return found, nil
}
