package badgerstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/iemanja/iemanjad/internal/store"
)

// Relations writes rel:posts_tags edge keys.
type Relations struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ store.RelationSynchronizer = (*Relations)(nil)

// Relate sets one edge per tag in a single transaction.
func (r *Relations) Relate(ctx context.Context, postID string, tagIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		for _, tagID := range tagIDs {
			if err := txn.Set(edgeKey(postID, tagID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return store.ErrDatabase.WithCause(fmt.Errorf("relate post %s: %w", postID, err))
	}
	return nil
}

// Replace drops every edge of the post and sets the new ones in one transaction.
func (r *Relations) Replace(ctx context.Context, postID string, tagIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		// Collect first; deleting while iterating is not allowed.
		for _, key := range keysWithPrefix(txn, edgePrefix(postID)) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for _, tagID := range tagIDs {
			if err := txn.Set(edgeKey(postID, tagID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return store.ErrDatabase.WithCause(fmt.Errorf("replace relations of post %s: %w", postID, err))
	}

	r.logger.Debug("post relations replaced", "post_id", postID, "tag_count", len(tagIDs))
	return nil
}
