package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iemanja/iemanjad/internal/domain"
	"github.com/iemanja/iemanjad/internal/store"
)

// tagColumns must match the scan order in scanTag.
const tagColumns = `id::text, name`

// TagRepository stores tags in the tags table.
type TagRepository struct {
	pool   *pgxpool.Pool
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

// Create inserts a new tag.
func (r *TagRepository) Create(ctx context.Context, tag domain.NewTag) (*domain.Tag, error) {
	tagID, err := newID()
	if err != nil {
		return nil, store.ErrTagCreation.WithCause(err)
	}

	t, err := scanTag(r.pool.QueryRow(ctx, `
		INSERT INTO tags (id, name)
		VALUES (@id, @name)
		RETURNING `+tagColumns,
		pgx.NamedArgs{"id": tagID, "name": tag.Name},
	))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
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

	rows, err := r.pool.Query(ctx,
		`SELECT `+tagColumns+` FROM tags ORDER BY name COLLATE "C" LIMIT @limit OFFSET @offset`,
		pgx.NamedArgs{"limit": opts.Limit, "offset": opts.Offset},
	)
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Tag, error) {
		t, err := scanTag(row)
		if err != nil {
			return domain.Tag{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, store.ErrTagListing.WithCause(err)
	}
	if tags == nil {
		tags = []domain.Tag{}
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tags`).Scan(&total); err != nil {
		return nil, store.ErrTagCount.WithCause(err)
	}

	return &store.TagList{Tags: tags, Total: total}, nil
}

// FindInNames returns the tags whose name is in names.
func (r *TagRepository) FindInNames(ctx context.Context, names []string) ([]domain.Tag, error) {
	if len(names) == 0 {
		return []domain.Tag{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE name = ANY(@names)`,
		pgx.NamedArgs{"names": names},
	)
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Tag, error) {
		t, err := scanTag(row)
		if err != nil {
			return domain.Tag{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, store.ErrTagFind.WithCause(err)
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	return tags, nil
}

// Get retrieves a tag by name.
func (r *TagRepository) Get(ctx context.Context, name string) (*domain.Tag, error) {
	t, err := scanTag(r.pool.QueryRow(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE name = @name`,
		pgx.NamedArgs{"name": name},
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("tag not found")
	}
	if err != nil {
		return nil, store.ErrDatabase.WithCause(err)
	}
	return t, nil
}

// Update renames a tag. The ID is kept, so existing relations follow the new name.
func (r *TagRepository) Update(ctx context.Context, name string, tag domain.NewTag) (*domain.Tag, error) {
	t, err := scanTag(r.pool.QueryRow(ctx, `
		UPDATE tags SET name = @new_name
		WHERE name = @name
		RETURNING `+tagColumns,
		pgx.NamedArgs{"new_name": tag.Name, "name": name},
	))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
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
	tag, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE name = @name`, pgx.NamedArgs{"name": name})
	if err != nil {
		return store.ErrDatabase.WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound.WithMessage("tag not found")
	}

	r.logger.Debug("tag deleted", "name", name)
	return nil
}
