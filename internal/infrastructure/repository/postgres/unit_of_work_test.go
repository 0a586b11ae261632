package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

func TestUnitOfWorkCommitsRepositoryWritesInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	uow := NewUnitOfWork(db, true)
	docs := NewDocumentRepository(db)
	inbox := NewInboxRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE documents").WillReturnRows(sqlmock.NewRows(documentRowColumns))
	mock.ExpectExec("DELETE FROM inbox").WithArgs("INB1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = uow.WithTx(context.Background(), func(ctx context.Context) error {
		if ports.TxFromContext(ctx) == nil {
			t.Fatalf("expected transaction in context")
		}
		if _, err := docs.TransferInboxToClaim(ctx, "INB1", "CLM1", time.Now().UTC()); err != nil {
			return err
		}
		_, err := inbox.Delete(ctx, "INB1")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUnitOfWorkRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewUnitOfWork(db, true).WithTx(context.Background(), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUnitOfWorkRollsBackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = NewUnitOfWork(db, true).WithTx(context.Background(), func(context.Context) error { panic("boom") })
	}()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUnitOfWorkReportsCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err = NewUnitOfWork(db, true).WithTx(context.Background(), func(context.Context) error { return nil })
	var commitErr *ports.CommitError
	if !errors.As(err, &commitErr) {
		t.Fatalf("expected CommitError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUnitOfWorkAutoCommitRunsWithoutTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	uow := NewUnitOfWork(db, false)
	if uow.Atomic() {
		t.Fatalf("expected non-atomic unit of work")
	}
	err = uow.WithTx(context.Background(), func(ctx context.Context) error {
		if ports.TxFromContext(ctx) != nil {
			t.Fatalf("expected no transaction in auto-commit mode")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
