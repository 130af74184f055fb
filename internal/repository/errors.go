package repository

import (
	"errors"

	"github.com/lib/pq"

	"biolink/internal/model"
)

// Postgres error codes we translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Constraint names from schema.sql.
const (
	constraintProfilesPkey = "profiles_pkey"
	constraintSlugKey      = "profiles_shareable_slug_key"
)

// translateError maps driver errors onto domain error kinds. Unknown errors pass through.
func translateError(err error, slug string) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case pgUniqueViolation:
		switch pqErr.Constraint {
		case constraintSlugKey:
			return &model.ConflictError{Field: "shareableSlug", Value: slug}
		case constraintProfilesPkey:
			return &model.ConflictError{Field: "ownerId"}
		default:
			return &model.ConflictError{Field: pqErr.Constraint}
		}
	case pgForeignKeyViolation:
		return model.ErrNotFound
	}
	return err
}
