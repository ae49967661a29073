package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/iemanja/iemanjad/internal/domain"
	"github.com/iemanja/iemanjad/internal/id"
	"github.com/iemanja/iemanjad/internal/store"
)

// tagColumns is the ordered list of columns selected in tag queries.
// Must match the scan order in scanTag.
const tagColumns = `id, name`

// TagRepository stores tags in the tags table.
type TagRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.TagRepository = (*TagRepository)(nil)

func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var t domain.Tag
	if err := scanner.Scan(&t.ID, &t.Name); err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create inserts a new tag.
func (r *TagRepository) Create(ctx context.Context, tag domain.NewTag) (*domain.Tag, error) {
	tagID, err := id.Generate("tag")
	if err != nil {
		return nil, store.ErrTagCreation.WithCause(err)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO tags (id, name)
		VALUES (:id, :name)
		RETURNING `+tagColumns,
		sql.Named("id", tagID),
		sql.Named("name", tag.Name),
	)

	t, err := scanTag(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, store.ErrTagCreation
	case isUniqueViolation(err):
		return nil, store.ErrTagCreation.WithCause(store.ErrAlreadyExists)
	case err != nil:
		return nil, store.ErrDatabase.WithCause(err)
	}

	r.logger.Debug("tag created", "tag_id", t.ID, "name", t.Name)
	return t, nil
}

// FindAll returns one page of tags ordered by name, plus the total count.
func (r *TagRepository) FindAll(ctx context.Context, opts store.FindAllOptions) (*store.TagList, error) {
	opts.Validate()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags ORDER BY name LIMIT :limit OFFSET :offset`,
		sql.Named("limit", opts.Limit),
		sql.Named("offset", opts.Offset),
	)
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, store.ErrTagListing.WithCause(err)
		}
		tags = append(tags, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&total); err != nil {
		return nil, store.ErrTagCount.WithCause(err)
	}

	return &store.TagList{Tags: tags, Total: total}, nil
}

// FindInNames returns the tags whose name is in names.
func (r *TagRepository) FindInNames(ctx context.Context, names []string) ([]domain.Tag, error) {
	if len(names) == 0 {
		return []domain.Tag{}, nil
	}

	in, args := inClause("name", names)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE name IN (`+in+`)`, args...)
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	defer rows.Close()

	tags := make([]domain.Tag, 0, len(names))
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, store.ErrTagFind.WithCause(err)
		}
		tags = append(tags, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	return tags, nil
}

// Get retrieves a tag by name.
func (r *TagRepository) Get(ctx context.Context, name string) (*domain.Tag, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE name = :name`, sql.Named("name", name))

	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("tag not found")
	}
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	return t, nil
}

// Update renames a tag. The ID is kept, so existing relations follow the new name.
func (r *TagRepository) Update(ctx context.Context, name string, tag domain.NewTag) (*domain.Tag, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE tags SET name = :new_name
		WHERE name = :name
		RETURNING `+tagColumns,
		sql.Named("new_name", tag.Name),
		sql.Named("name", name),
	)

	t, err := scanTag(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, store.ErrNotFound.WithMessage("tag not found")
	case isUniqueViolation(err):
		return nil, store.ErrAlreadyExists.WithMessage("tag name already in use")
	case err != nil:
		return nil, store.ErrDatabase.WithCause(err)
	}

	r.logger.Debug("tag renamed", "tag_id", t.ID, "from", name, "to", t.Name)
	return t, nil
}

// Delete removes a tag. Rows in posts_tags that point at it are kept.
func (r *TagRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE name = :name`, sql.Named("name", name))
	if err != nil {
		return store.ErrDatabase.WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.ErrDatabase.WithCause(err)
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("tag not found")
	}

	r.logger.Debug("tag deleted", "name", name)
	return nil
}
