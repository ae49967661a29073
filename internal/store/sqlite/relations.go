package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/iemanja/iemanjad/internal/store"
)

// Relations writes rows of the posts_tags table.
type Relations struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.RelationSynchronizer = (*Relations)(nil)

// relateStatement builds one multi-row insert for the post's tags.
func relateStatement(postID string, tagIDs []string) (string, []any) {
	values := make([]byte, 0, len(tagIDs)*24)
	args := make([]any, 0, len(tagIDs)+1)
	args = append(args, sql.Named("post_id", postID))
	for i, tagID := range tagIDs {
		if i > 0 {
			values = append(values, ", "...)
		}
		name := fmt.Sprintf("tag%d", i)
		values = append(values, "(:post_id, :"...)
		values = append(values, name...)
		values = append(values, ')')
		args = append(args, sql.Named(name, tagID))
	}
	return `INSERT INTO posts_tags (post_id, tag_id) VALUES ` + string(values), args
}

// Relate inserts all relations of a post in one statement.
func (r *Relations) Relate(ctx context.Context, postID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}

	query, args := relateStatement(postID, tagIDs)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return store.ErrDatabase.WithCause(fmt.Errorf("relate post %s: %w", postID, err))
	}
	return nil
}

// Replace deletes every relation of the post and inserts the new set in
// one transaction on posts_tags.
func (r *Relations) Replace(ctx context.Context, postID string, tagIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return store.ErrDatabase.WithCause(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM posts_tags WHERE post_id = :post_id`, sql.Named("post_id", postID)); err != nil {
		return store.ErrDatabase.WithCause(fmt.Errorf("delete posts_tags: %w", err))
	}

	if len(tagIDs) > 0 {
		query, args := relateStatement(postID, tagIDs)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return store.ErrDatabase.WithCause(fmt.Errorf("insert posts_tags: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return store.ErrDatabase.WithCause(fmt.Errorf("commit: %w", err))
	}

	r.logger.Debug("post relations replaced", "post_id", postID, "tag_count", len(tagIDs))
	return nil
}
