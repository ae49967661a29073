package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/iemanja/iemanjad/internal/domain"
)

// fakeTags is an in-memory TagRepository for orchestration tests.
type fakeTags struct {
	mu           sync.Mutex
	byName       map[string]domain.Tag
	findCalls    int
	findErr      error
	findOverride []domain.Tag
}

func newFakeTags(names ...string) *fakeTags {
	f := &fakeTags{byName: make(map[string]domain.Tag)}
	for _, n := range names {
		f.byName[n] = domain.Tag{ID: "tag-" + n, Name: n}
	}
	return f
}

func (f *fakeTags) Create(_ context.Context, tag domain.NewTag) (*domain.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[tag.Name]; ok {
		return nil, ErrTagCreation.WithCause(ErrAlreadyExists)
	}
	t := domain.Tag{ID: "tag-" + tag.Name, Name: tag.Name}
	f.byName[tag.Name] = t
	return &t, nil
}

func (f *fakeTags) FindAll(_ context.Context, opts FindAllOptions) (*TagList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.Tag
	for _, t := range f.byName {
		all = append(all, t)
	}
	domain.SortTags(all)
	total := len(all)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)
	return &TagList{Tags: all[start:end], Total: total}, nil
}

func (f *fakeTags) FindInNames(_ context.Context, names []string) ([]domain.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.findOverride != nil {
		return f.findOverride, nil
	}
	var out []domain.Tag
	for _, n := range names {
		if t, ok := f.byName[n]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTags) Get(_ context.Context, name string) (*domain.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (f *fakeTags) Update(_ context.Context, name string, tag domain.NewTag) (*domain.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	delete(f.byName, name)
	t.Name = tag.Name
	f.byName[t.Name] = t
	return &t, nil
}

func (f *fakeTags) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[name]; !ok {
		return ErrNotFound
	}
	delete(f.byName, name)
	return nil
}

// fakeRows keeps post rows in memory and reads tags from a fakeRelations.
type fakeRows struct {
	mu        sync.Mutex
	rows      map[string]domain.PostRow
	order     []string
	relations *fakeRelations
	tags      *fakeTags
	insertErr error
	nextID    int
}

func newFakeRows(relations *fakeRelations, tags *fakeTags) *fakeRows {
	return &fakeRows{rows: make(map[string]domain.PostRow), relations: relations, tags: tags}
}

func (f *fakeRows) InsertPost(_ context.Context, row *domain.PostRow) (*domain.PostRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.nextID++
	stored := *row
	stored.ID = fmt.Sprintf("post-%d", f.nextID)
	f.rows[stored.ID] = stored
	f.order = append(f.order, stored.ID)
	return &stored, nil
}

func (f *fakeRows) compose(row domain.PostRow) domain.Post {
	var tags []domain.Tag
	for _, tagID := range f.relations.tagIDs(row.ID) {
		for _, t := range f.tags.byName {
			if t.ID == tagID {
				tags = append(tags, t)
			}
		}
	}
	return *row.WithTags(tags)
}

func (f *fakeRows) ListPosts(_ context.Context, opts FindAllOptions) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Post
	for i, id := range f.order {
		if i < opts.Offset || len(out) >= opts.Limit {
			continue
		}
		out = append(out, f.compose(f.rows[id]))
	}
	return out, nil
}

func (f *fakeRows) CountPosts(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

func (f *fakeRows) GetPost(_ context.Context, id string) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := f.compose(row)
	return &p, nil
}

func (f *fakeRows) UpdatePost(_ context.Context, row *domain.PostRow) (*domain.PostRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rows[row.ID]
	if !ok {
		return nil, ErrNotFound
	}
	stored.Title = row.Title
	stored.Content = row.Content
	stored.Touch(row.UpdatedAt)
	f.rows[row.ID] = stored
	return &stored, nil
}

func (f *fakeRows) DeletePost(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return ErrNotFound
	}
	delete(f.rows, id)
	f.order = slices.DeleteFunc(f.order, func(s string) bool { return s == id })
	return nil
}

// fakeRelations records relation writes.
type fakeRelations struct {
	mu         sync.Mutex
	edges      map[string][]string
	relateErr  error
	replaceErr error
	writes     int
}

func newFakeRelations() *fakeRelations {
	return &fakeRelations{edges: make(map[string][]string)}
}

func (f *fakeRelations) Relate(_ context.Context, postID string, tagIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.relateErr != nil {
		return f.relateErr
	}
	f.writes++
	f.edges[postID] = append(f.edges[postID], tagIDs...)
	return nil
}

func (f *fakeRelations) Replace(_ context.Context, postID string, tagIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.writes++
	f.edges[postID] = slices.Clone(tagIDs)
	return nil
}

func (f *fakeRelations) tagIDs(postID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.edges[postID])
}
