package circles

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-membership"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const TextCodeDuplicateSlug = "duplicate_slug"

var ErrCircleNotFound = goerrors.New("circle not found", goerrors.CategoryNotFound).
	WithTextCode("circle_not_found").
	WithCode(goerrors.CodeNotFound)

type Repository interface {
	ListPublic(ctx context.Context) ([]*Circle, error)
	GetBySlug(ctx context.Context, slug string) (*Circle, error)
	Create(ctx context.Context, record *Circle) (*Circle, error)
}

type repo struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) Repository {
	return &repo{db: db}
}

// ListPublic returns public circles, busiest first
func (r *repo) ListPublic(ctx context.Context) ([]*Circle, error) {
	var out []*Circle
	err := r.db.NewSelect().
		Model(&out).
		Where("?TableAlias.is_public = ?", true).
		OrderExpr("?TableAlias.rides_taken DESC").
		OrderExpr("?TableAlias.rides_offered DESC").
		OrderExpr("?TableAlias.slug_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, membership.WrapStoreError(err, "failed to list circles")
	}
	return out, nil
}

func (r *repo) GetBySlug(ctx context.Context, slug string) (*Circle, error) {
	out := &Circle{}
	err := r.db.NewSelect().
		Model(out).
		Where("?TableAlias.slug_name = ?", slug).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if goerrors.IsNotFound(err) || isNoRows(err) {
			return nil, ErrCircleNotFound
		}
		return nil, membership.WrapStoreError(err, "failed to load circle")
	}
	return out, nil
}

// Create inserts the circle. The slug is unique; a clash is reported as a
// validation error on slug_name.
func (r *repo) Create(ctx context.Context, record *Circle) (*Circle, error) {
	now := time.Now().UTC()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt

	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if field, ok := membership.UniqueViolationField(err); ok && field == "slug_name" {
			return nil, NewDuplicateSlugError()
		}
		return nil, membership.WrapStoreError(err, "failed to create circle")
	}

	return record, nil
}

func NewDuplicateSlugError() *goerrors.Error {
	return membership.NewValidationError("circle slug already exists", TextCodeDuplicateSlug, map[string]string{
		"slug_name": "a circle with this slug name already exists",
	})
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
