package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iemanja/iemanjad/internal/store"
)

// relateStatement inserts one row per element of the tag ID array.
const relateStatement = `
	INSERT INTO posts_tags (post_id, tag_id)
	SELECT @post_id::uuid, unnest(@tag_ids::uuid[])`

// Relations writes rows of the posts_tags table.
type Relations struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ store.RelationSynchronizer = (*Relations)(nil)

// Relate inserts all relations of a post in one statement.
func (r *Relations) Relate(ctx context.Context, postID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx, relateStatement, pgx.NamedArgs{"post_id": postID, "tag_ids": tagIDs})
	if err != nil {
		return store.ErrDatabase.WithCause(fmt.Errorf("relate post %s: %w", postID, err))
	}
	return nil
}

// Replace deletes every relation of the post and inserts the new set in
// one transaction on posts_tags.
func (r *Relations) Replace(ctx context.Context, postID string, tagIDs []string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM posts_tags WHERE post_id = @post_id`, pgx.NamedArgs{"post_id": postID}); err != nil {
			return fmt.Errorf("delete posts_tags: %w", err)
		}
		if len(tagIDs) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, relateStatement, pgx.NamedArgs{"post_id": postID, "tag_ids": tagIDs}); err != nil {
			return fmt.Errorf("insert posts_tags: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.ErrDatabase.WithCause(err)
	}

	r.logger.Debug("post relations replaced", "post_id", postID, "tag_count", len(tagIDs))
	return nil
}
