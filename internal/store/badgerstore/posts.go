package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/iemanja/iemanjad/internal/domain"
	"github.com/iemanja/iemanjad/internal/id"
	"github.com/iemanja/iemanjad/internal/store"
)

// postRecord is the stored value of a post:{id} key.
type postRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *postRecord) row() *domain.PostRow {
	return &domain.PostRow{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// createdKey orders posts by creation time, then ID.
func createdKey(createdAt time.Time, postID string) []byte {
	return []byte(postByCreatedIdx + createdAt.UTC().Format(createdKeyLayout) + ":" + postID)
}

// PostRows stores post records and the creation time index.
type PostRows struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ store.PostRows = (*PostRows)(nil)

// postTags reads the edges of a post and resolves each tag. Edges to
// deleted tags are skipped.
func postTags(txn *badger.Txn, postID string) ([]domain.Tag, error) {
	prefix := edgePrefix(postID)
	var tags []domain.Tag
	for _, key := range keysWithPrefix(txn, prefix) {
		tagID := string(key[len(prefix):])

		var t domain.Tag
		err := getJSON(txn, tagKey(tagID), &t)
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load tag %s: %w", tagID, err)
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func loadPost(txn *badger.Txn, postID string) (*domain.Post, error) {
	var rec postRecord
	if err := getJSON(txn, postKey(postID), &rec); err != nil {
		return nil, err
	}
	tags, err := postTags(txn, rec.ID)
	if err != nil {
		return nil, err
	}
	return rec.row().WithTags(tags), nil
}

// InsertPost stores a new post record with a generated ID.
func (r *PostRows) InsertPost(ctx context.Context, in *domain.PostRow) (*domain.PostRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	postID, err := id.Generate("post")
	if err != nil {
		return nil, store.ErrPostCreation.WithCause(err)
	}

	rec := &postRecord{
		ID:        postID,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: in.CreatedAt.UTC(),
		UpdatedAt: in.UpdatedAt.UTC(),
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, postKey(rec.ID), rec); err != nil {
			return err
		}
		return txn.Set(createdKey(rec.CreatedAt, rec.ID), []byte(rec.ID))
	})
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	return rec.row(), nil
}

// ListPosts walks the creation index and loads each post with its tags,
// all in one read transaction.
func (r *PostRows) ListPosts(ctx context.Context, opts store.FindAllOptions) ([]domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts.Validate()

	posts := []domain.Post{}
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(postByCreatedIdx)
		var ids []string

		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: max(opts.Limit, 1)})
		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(ids) < opts.Limit; it.Next() {
			if skipped < opts.Offset {
				skipped++
				continue
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				it.Close()
				return err
			}
			ids = append(ids, string(val))
		}
		it.Close()

		for _, postID := range ids {
			p, err := loadPost(txn, postID)
			if err != nil {
				return fmt.Errorf("load post %s: %w", postID, err)
			}
			posts = append(posts, *p)
		}
		return nil
	})
	if err != nil {
		if isDecodeError(err) {
			return nil, store.ErrPostListing.WithCause(err)
		}
		return nil, store.ErrDatabase.WithCause(err)
	}
	return posts, nil
}

// CountPosts counts post keys without reading values.
func (r *PostRows) CountPosts(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var total int
	err := r.db.View(func(txn *badger.Txn) error {
		total = countPrefix(txn, []byte(postPrefix))
		return nil
	})
	if err != nil {
		return 0, store.ErrPostCount.WithCause(err)
	}
	return total, nil
}

// GetPost returns a post with its tags.
func (r *PostRows) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var p *domain.Post
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = loadPost(txn, postID)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, store.ErrNotFound.WithMessage("post not found")
	case isDecodeError(err):
		return nil, store.ErrPostListing.WithCause(err)
	case err != nil:
		return nil, store.ErrDatabase.WithCause(err)
	}
	return p, nil
}

// UpdatePost overwrites title and content. updated_at never moves before created_at.
func (r *PostRows) UpdatePost(ctx context.Context, in *domain.PostRow) (*domain.PostRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec postRecord
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, postKey(in.ID), &rec); err != nil {
			return err
		}
		rec.Title = in.Title
		rec.Content = in.Content
		row := rec.row()
		row.Touch(in.UpdatedAt.UTC())
		rec.UpdatedAt = row.UpdatedAt
		return setJSON(txn, postKey(rec.ID), &rec)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound.WithMessage("post not found")
	}
	if err != nil {
		return nil, store.ErrPostUpdate.WithCause(err)
	}
	return rec.row(), nil
}

// DeletePost removes a post record and its index entry. Its edges are kept.
func (r *PostRows) DeletePost(ctx context.Context, postID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		var rec postRecord
		if err := getJSON(txn, postKey(postID), &rec); err != nil {
			return err
		}
		if err := txn.Delete(createdKey(rec.CreatedAt, rec.ID)); err != nil {
			return err
		}
		return txn.Delete(postKey(rec.ID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.ErrNotFound.WithMessage("post not found")
	}
	if err != nil {
		return store.ErrDatabase.WithCause(err)
	}
	return nil
}
