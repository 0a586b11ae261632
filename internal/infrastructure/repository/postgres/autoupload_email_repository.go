package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const autouploadColumns = `id, policy_holder_id, alias, domain, is_user_generated, created_at, updated_at`

type AutouploadEmailRepository struct {
	db *sql.DB
}

func NewAutouploadEmailRepository(db *sql.DB) *AutouploadEmailRepository {
	return &AutouploadEmailRepository{db: db}
}

func (r *AutouploadEmailRepository) ListByPolicyHolder(ctx context.Context, policyHolderID, alias string) ([]domain.AutouploadEmail, error) {
	query := `
SELECT ` + autouploadColumns + `
FROM autoupload_emails
WHERE policy_holder_id = $1
`
	args := []any{policyHolderID}
	if alias != "" {
		query += "AND alias = $2\n"
		args = append(args, alias)
	}
	query += "ORDER BY created_at, id"

	rows, err := dbFromContext(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list autoupload emails", err)
	}
	defer rows.Close()

	out := make([]domain.AutouploadEmail, 0)
	for rows.Next() {
		email, err := scanAutouploadEmail(rows)
		if err != nil {
			return nil, classify("scan autoupload email", err)
		}
		out = append(out, email)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate autoupload emails", err)
	}
	return out, nil
}

func (r *AutouploadEmailRepository) GetByAlias(ctx context.Context, policyHolderID, alias string) (*domain.AutouploadEmail, error) {
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
SELECT `+autouploadColumns+`
FROM autoupload_emails
WHERE policy_holder_id = $1 AND alias = $2
`, policyHolderID, alias)
	email, err := scanAutouploadEmail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get autoupload email", "alias", alias)
		}
		return nil, classify("get autoupload email", err)
	}
	return &email, nil
}

// Upsert inserts the alias or updates domain and origin of an existing (alias, policyholder) pair.
func (r *AutouploadEmailRepository) Upsert(ctx context.Context, email *domain.AutouploadEmail) (*domain.AutouploadEmail, error) {
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
INSERT INTO autoupload_emails (`+autouploadColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (alias, policy_holder_id) DO UPDATE
SET domain = EXCLUDED.domain, is_user_generated = EXCLUDED.is_user_generated, updated_at = EXCLUDED.updated_at
RETURNING `+autouploadColumns,
		email.ID, email.PolicyHolderID, email.Alias, email.Domain, email.IsUserGenerated, email.CreatedAt, email.UpdatedAt,
	)
	out, err := scanAutouploadEmail(row)
	if err != nil {
		return nil, classify("upsert autoupload email", err)
	}
	return &out, nil
}

func (r *AutouploadEmailRepository) DeleteByAlias(ctx context.Context, policyHolderID, alias string) (*domain.AutouploadEmail, error) {
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
DELETE FROM autoupload_emails
WHERE policy_holder_id = $1 AND alias = $2
RETURNING `+autouploadColumns, policyHolderID, alias)
	email, err := scanAutouploadEmail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("delete autoupload email", "alias", alias)
		}
		return nil, classify("delete autoupload email", err)
	}
	return &email, nil
}

// Resolve finds the alias row an inbound address was sent to.
func (r *AutouploadEmailRepository) Resolve(ctx context.Context, addr domain.AutouploadAddress) (*domain.AutouploadEmail, error) {
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
SELECT `+autouploadColumns+`
FROM autoupload_emails
WHERE alias = $1 AND domain = $2 AND lower(policy_holder_id) = $3
LIMIT 1
`, addr.Alias, addr.Domain, addr.PolicyHolderID)
	email, err := scanAutouploadEmail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("resolve autoupload address", "address", addr.Alias+"-"+addr.PolicyHolderID+"@"+addr.Domain)
		}
		return nil, classify("resolve autoupload address", err)
	}
	return &email, nil
}

func scanAutouploadEmail(row scanner) (domain.AutouploadEmail, error) {
	var email domain.AutouploadEmail
	err := row.Scan(
		&email.ID,
		&email.PolicyHolderID,
		&email.Alias,
		&email.Domain,
		&email.IsUserGenerated,
		&email.CreatedAt,
		&email.UpdatedAt,
	)
	return email, err
}
