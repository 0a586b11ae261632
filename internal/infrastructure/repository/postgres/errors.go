package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

// classify wraps a driver error with the matching domain kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrNotFound, op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("duplicate value violates %s", pgErr.ConstraintName))
		case pgErr.Code == "23503":
			return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("referenced record does not exist (%s)", pgErr.ConstraintName))
		case pgErr.Code == "23514", pgErr.Code == "23502":
			return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("constraint %s rejected the row", pgErr.ConstraintName))
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "40"), strings.HasPrefix(pgErr.Code, "57P"):
			return domain.WrapError(domain.ErrTemporary, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, sql.ErrConnDone) || pgconn.SafeToRetry(err) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(op, kind, id string) error {
	return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("%s %s", kind, id))
}
