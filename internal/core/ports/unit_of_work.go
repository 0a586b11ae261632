package ports

import "context"

// Tx is an opaque transaction handle. Infrastructure owns the concrete type.
type Tx interface{}

// UnitOfWork is a transaction boundary. fn returning an error rolls back, nil commits.
// Atomic reports whether writes inside fn commit together; an auto-commit implementation
// runs fn directly.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Atomic() bool
}

type txKey struct{}

// WithTxContext stores a transaction handle in ctx.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads the transaction handle stored by WithTxContext, if any.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}

// CommitError reports a failed commit; the caller can not tell whether the writes landed.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return "commit: " + e.Err.Error() }
func (e *CommitError) Unwrap() error { return e.Err }
