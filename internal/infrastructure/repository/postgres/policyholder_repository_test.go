package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

func TestPolicyHolderCreateRejectsDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO policyholders").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "policyholders_email_key"})

	now := time.Now().UTC()
	err = NewPolicyHolderRepository(db).Create(context.Background(), &domain.PolicyHolder{
		ID: "ph_1", FirstName: "Ada", LastName: "Lovelace", DateOfBirth: domain.NewDate(1990, 1, 2),
		Email: "ada@example.com", Phone: "555", LinkedPolicies: []string{}, Status: "active",
		CreatedAt: now, UpdatedAt: now,
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPolicyHolderListDecodesJSONColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM policyholders`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM policyholders`).
		WithArgs(100, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "first_name", "last_name", "date_of_birth", "email", "phone", "address", "linked_policies",
			"status", "created_at", "updated_at",
		}).AddRow(
			"ph_1", "Ada", "Lovelace", time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC), "ada@example.com", "555",
			[]byte(`{"street":"1 Main","city":"Springfield","state":"IL","zip":"62701"}`), []byte(`["POL-1"]`),
			"active", now, now,
		))

	list, total, err := NewPolicyHolderRepository(db).List(context.Background(), domain.PageRequest{Limit: 100})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Fatalf("expected one policyholder, got total=%d rows=%d", total, len(list))
	}
	ph := list[0]
	if ph.Address.City != "Springfield" || len(ph.LinkedPolicies) != 1 || ph.DateOfBirth.String() != "1990-01-02" {
		t.Fatalf("unexpected policyholder %+v", ph)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAutouploadResolveMatchesLowercasedPolicyHolder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`lower\(policy_holder_id\) = \$3`).
		WithArgs("claims", "in.example.com", "ph_abc123").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "policy_holder_id", "alias", "domain", "is_user_generated", "created_at", "updated_at",
		}).AddRow("auto_email_1", "ph_ABC123", "claims", "in.example.com", true, now, now))

	addr, err := domain.ParseAutouploadAddress("Claims Desk <claims-ph_ABC123@In.Example.com>")
	if err != nil {
		t.Fatalf("ParseAutouploadAddress() error = %v", err)
	}
	email, err := NewAutouploadEmailRepository(db).Resolve(context.Background(), addr)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if email.PolicyHolderID != "ph_ABC123" {
		t.Fatalf("unexpected policyholder %s", email.PolicyHolderID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
