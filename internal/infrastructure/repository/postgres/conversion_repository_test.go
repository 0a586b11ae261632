package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

var conversionRowColumns = []string{
	"inbox_id", "inbox_claim_id", "claim_id", "external_claim_id", "state", "documents_transferred", "started_at", "completed_at",
	"previous_status", "previous_processed_at",
}

func TestConversionFindByExternalInboxID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`WHERE inbox_claim_id = \$1`).
		WithArgs("INB-0000000001").
		WillReturnRows(sqlmock.NewRows(conversionRowColumns).
			AddRow("INB1", "INB-0000000001", "CLM1", "CLM-0000000001", "completed", 2, now, now, "new", nil))

	rec, err := NewConversionRepository(db).Find(context.Background(), domain.ExternalInboxRef("INB-0000000001"))
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if rec.ClaimID != "CLM1" || rec.State != domain.ConversionCompleted || rec.CompletedAt == nil {
		t.Fatalf("unexpected record %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestConversionFindMissingIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM inbox_conversions`).
		WithArgs("INB9").
		WillReturnError(sql.ErrNoRows)

	_, err = NewConversionRepository(db).Find(context.Background(), domain.InternalInboxRef("INB9"))
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestConversionCompleteUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	started := time.Now().UTC()
	done := started.Add(time.Second)
	mock.ExpectExec(`ON CONFLICT \(inbox_id\) DO UPDATE`).
		WithArgs("INB1", "INB-0000000001", "CLM1", "CLM-0000000001", 3, started, done).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewConversionRepository(db).Complete(context.Background(), domain.ConversionRecord{
		InboxID: "INB1", InboxClaimID: "INB-0000000001", ClaimID: "CLM1", ExternalClaimID: "CLM-0000000001",
		DocumentsTransferred: 3, StartedAt: started, CompletedAt: &done,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestConversionListPendingDefaultsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	cutoff := now.Add(-time.Minute)
	mock.ExpectQuery(`WHERE state = 'pending' AND started_at < \$1`).
		WithArgs(cutoff, domain.DefaultPageLimit).
		WillReturnRows(sqlmock.NewRows(conversionRowColumns).
			AddRow("INB1", "INB-0000000001", "CLM1", "CLM-0000000001", "pending", 0, now, nil, "processing", now))

	recs, err := NewConversionRepository(db).ListPending(context.Background(), cutoff, 0)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(recs) != 1 || recs[0].State != domain.ConversionPending || recs[0].CompletedAt != nil {
		t.Fatalf("unexpected records %+v", recs)
	}
	if recs[0].PreviousStatus != domain.InboxProcessing || recs[0].PreviousProcessedAt == nil {
		t.Fatalf("unexpected records %+v", recs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestConversionBeginStoresPreviousStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	started := time.Now().UTC()
	processed := started.Add(-time.Hour)
	mock.ExpectExec(`INSERT INTO inbox_conversions`).
		WithArgs("INB1", "INB-0000000001", "CLM1", "CLM-0000000001", started, "processing", &processed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewConversionRepository(db).Begin(context.Background(), domain.ConversionRecord{
		InboxID: "INB1", InboxClaimID: "INB-0000000001", ClaimID: "CLM1", ExternalClaimID: "CLM-0000000001",
		StartedAt: started, PreviousStatus: domain.InboxProcessing, PreviousProcessedAt: &processed,
	})
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
