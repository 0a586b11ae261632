package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const policyHolderColumns = `id, first_name, last_name, date_of_birth, email, phone, address, linked_policies, status, created_at, updated_at`

type PolicyHolderRepository struct {
	db *sql.DB
}

func NewPolicyHolderRepository(db *sql.DB) *PolicyHolderRepository {
	return &PolicyHolderRepository{db: db}
}

func (r *PolicyHolderRepository) Create(ctx context.Context, ph *domain.PolicyHolder) error {
	addressJSON, err := marshalJSON(ph.Address)
	if err != nil {
		return err
	}
	policiesJSON, err := marshalJSON(ph.LinkedPolicies)
	if err != nil {
		return err
	}
	_, err = dbFromContext(ctx, r.db).ExecContext(ctx, `
INSERT INTO policyholders (`+policyHolderColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		ph.ID, ph.FirstName, ph.LastName, ph.DateOfBirth.Time, ph.Email, ph.Phone, addressJSON, policiesJSON,
		ph.Status, ph.CreatedAt, ph.UpdatedAt,
	)
	if err != nil {
		return classify("insert policyholder", err)
	}
	return nil
}

func (r *PolicyHolderRepository) GetByID(ctx context.Context, id string) (*domain.PolicyHolder, error) {
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
SELECT `+policyHolderColumns+`
FROM policyholders
WHERE id = $1
`, id)
	ph, err := scanPolicyHolder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get policyholder", "policyholder", id)
		}
		return nil, classify("get policyholder", err)
	}
	return &ph, nil
}

func (r *PolicyHolderRepository) List(ctx context.Context, page domain.PageRequest) ([]domain.PolicyHolder, int, error) {
	db := dbFromContext(ctx, r.db)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policyholders`).Scan(&total); err != nil {
		return nil, 0, classify("count policyholders", err)
	}

	rows, err := db.QueryContext(ctx, `
SELECT `+policyHolderColumns+`
FROM policyholders
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2
`, page.Limit, page.Skip)
	if err != nil {
		return nil, 0, classify("list policyholders", err)
	}
	defer rows.Close()

	out := make([]domain.PolicyHolder, 0)
	for rows.Next() {
		ph, err := scanPolicyHolder(rows)
		if err != nil {
			return nil, 0, classify("scan policyholder", err)
		}
		out = append(out, ph)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("iterate policyholders", err)
	}
	return out, total, nil
}

func (r *PolicyHolderRepository) Update(ctx context.Context, id string, changes domain.Changes) (*domain.PolicyHolder, error) {
	set, args := setClause(changes, 2, time.Now().UTC())
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx,
		`UPDATE policyholders SET `+set+` WHERE id = $1 RETURNING `+policyHolderColumns,
		append([]any{id}, args...)...,
	)
	ph, err := scanPolicyHolder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("update policyholder", "policyholder", id)
		}
		return nil, classify("update policyholder", err)
	}
	return &ph, nil
}

// Delete removes the policyholder. Aliases cascade; claims and inbox items keep their rows with
// the link cleared.
func (r *PolicyHolderRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := dbFromContext(ctx, r.db).ExecContext(ctx, `DELETE FROM policyholders WHERE id = $1`, id)
	if err != nil {
		return false, classify("delete policyholder", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete policyholder rows affected: %w", err)
	}
	return rows > 0, nil
}

func scanPolicyHolder(row scanner) (domain.PolicyHolder, error) {
	var ph domain.PolicyHolder
	var dob time.Time
	var addressRaw, policiesRaw []byte
	err := row.Scan(
		&ph.ID,
		&ph.FirstName,
		&ph.LastName,
		&dob,
		&ph.Email,
		&ph.Phone,
		&addressRaw,
		&policiesRaw,
		&ph.Status,
		&ph.CreatedAt,
		&ph.UpdatedAt,
	)
	if err != nil {
		return domain.PolicyHolder{}, err
	}
	ph.DateOfBirth = domain.DateOf(dob)
	if len(addressRaw) > 0 {
		if err := json.Unmarshal(addressRaw, &ph.Address); err != nil {
			return domain.PolicyHolder{}, fmt.Errorf("unmarshal address: %w", err)
		}
	}
	policies, err := unmarshalList(policiesRaw)
	if err != nil {
		return domain.PolicyHolder{}, err
	}
	ph.LinkedPolicies = policies
	return ph, nil
}
