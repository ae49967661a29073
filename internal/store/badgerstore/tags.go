package badgerstore

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/iemanja/iemanjad/internal/domain"
	"github.com/iemanja/iemanjad/internal/id"
	"github.com/iemanja/iemanjad/internal/store"
)

// TagRepository stores tags as tag:{id} records plus a unique name index.
type TagRepository struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ store.TagRepository = (*TagRepository)(nil)

// lookupTagID reads the name index.
func lookupTagID(txn *badger.Txn, name string) (string, error) {
	item, err := txn.Get(tagNameKey(name))
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// Create inserts a new tag.
func (r *TagRepository) Create(ctx context.Context, tag domain.NewTag) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tagID, err := id.Generate("tag")
	if err != nil {
		return nil, store.ErrTagCreation.WithCause(err)
	}
	t := &domain.Tag{ID: tagID, Name: tag.Name}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(tagNameKey(t.Name)); err == nil {
			return store.ErrTagCreation.WithCause(store.ErrAlreadyExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := setJSON(txn, tagKey(t.ID), t); err != nil {
			return err
		}
		return txn.Set(tagNameKey(t.Name), []byte(t.ID))
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent transaction wrote the same name index key.
		return nil, store.ErrTagCreation.WithCause(store.ErrAlreadyExists)
	}
	if err != nil {
		return nil, wrapError(err)
	}

	r.logger.Debug("tag created", "tag_id", t.ID, "name", t.Name)
	return t, nil
}

// FindAll walks the name index, which keeps tags in name order.
func (r *TagRepository) FindAll(ctx context.Context, opts store.FindAllOptions) (*store.TagList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts.Validate()

	tags := []domain.Tag{}
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(tagByNamePrefix)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: max(opts.Limit, 1)})
		defer it.Close()

		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(tags) < opts.Limit; it.Next() {
			if skipped < opts.Offset {
				skipped++
				continue
			}
			item := it.Item()
			tagID, err := item.ValueCopy(nil)
			if err != nil {
				return store.ErrTagListing.WithCause(err)
			}
			tags = append(tags, domain.Tag{
				ID:   string(tagID),
				Name: string(item.Key()[len(prefix):]),
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err)
	}

	var total int
	err = r.db.View(func(txn *badger.Txn) error {
		total = countPrefix(txn, []byte(tagByNamePrefix))
		return nil
	})
	if err != nil {
		return nil, store.ErrTagCount.WithCause(err)
	}

	return &store.TagList{Tags: tags, Total: total}, nil
}

// FindInNames returns the tags whose name is in names.
func (r *TagRepository) FindInNames(ctx context.Context, names []string) ([]domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []domain.Tag{}, nil
	}

	unique := slices.Clone(names)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	tags := make([]domain.Tag, 0, len(unique))
	err := r.db.View(func(txn *badger.Txn) error {
		for _, name := range unique {
			tagID, err := lookupTagID(txn, name)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return store.ErrTagFind.WithCause(err)
			}
			tags = append(tags, domain.Tag{ID: tagID, Name: name})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return tags, nil
}

// Get retrieves a tag by name.
func (r *TagRepository) Get(ctx context.Context, name string) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var t *domain.Tag
	err := r.db.View(func(txn *badger.Txn) error {
		tagID, err := lookupTagID(txn, name)
		if err != nil {
			return err
		}
		t = &domain.Tag{ID: tagID, Name: name}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound.WithMessage("tag not found")
	}
	if err != nil {
		return nil, wrapError(err)
	}
	return t, nil
}

// Update renames a tag, moving its name index entry. The ID is kept.
func (r *TagRepository) Update(ctx context.Context, name string, tag domain.NewTag) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var t *domain.Tag
	err := r.db.Update(func(txn *badger.Txn) error {
		tagID, err := lookupTagID(txn, name)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound.WithMessage("tag not found")
		}
		if err != nil {
			return err
		}

		t = &domain.Tag{ID: tagID, Name: tag.Name}
		if tag.Name == name {
			return nil
		}

		if _, err := txn.Get(tagNameKey(tag.Name)); err == nil {
			return store.ErrAlreadyExists.WithMessage("tag name already in use")
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Delete(tagNameKey(name)); err != nil {
			return err
		}
		if err := txn.Set(tagNameKey(t.Name), []byte(t.ID)); err != nil {
			return err
		}
		return setJSON(txn, tagKey(t.ID), t)
	})
	if err != nil {
		return nil, wrapError(err)
	}

	r.logger.Debug("tag renamed", "tag_id", t.ID, "from", name, "to", t.Name)
	return t, nil
}

// Delete removes a tag and its name index entry. Edges that point at it are kept.
func (r *TagRepository) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		tagID, err := lookupTagID(txn, name)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound.WithMessage("tag not found")
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(tagNameKey(name)); err != nil {
			return err
		}
		return txn.Delete(tagKey(tagID))
	})
	if err != nil {
		return wrapError(err)
	}

	r.logger.Debug("tag deleted", "name", name)
	return nil
}
