package postgres

import (
	"context"
	"database/sql"

	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

// dbtx is the subset of *sql.DB and *sql.Tx the repositories use.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dbFromContext returns the transaction carried by ctx, or db when there is none.
func dbFromContext(ctx context.Context, db *sql.DB) dbtx {
	if tx, ok := ports.TxFromContext(ctx).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return db
}

// UnitOfWork implements ports.UnitOfWork on database/sql. With transactional set to false fn runs
// in auto-commit mode and every statement commits on its own.
type UnitOfWork struct {
	db            *sql.DB
	transactional bool
}

func NewUnitOfWork(db *sql.DB, transactional bool) *UnitOfWork {
	return &UnitOfWork{db: db, transactional: transactional}
}

func (u *UnitOfWork) Atomic() bool { return u.transactional }

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if !u.transactional {
		return fn(ctx)
	}
	if _, ok := ports.TxFromContext(ctx).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin tx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ports.WithTxContext(ctx, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return &ports.CommitError{Err: classify("commit tx", err)}
	}
	return nil
}

