package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const claimColumns = `id, claim_id, ` + detailColumns + `, created_at, updated_at`

type ClaimRepository struct {
	db *sql.DB
}

func NewClaimRepository(db *sql.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) Create(ctx context.Context, claim *domain.Claim) error {
	details, err := detailArgs(claim.ClaimDetails)
	if err != nil {
		return err
	}
	args := append([]any{claim.ID, claim.ClaimID}, details...)
	args = append(args, claim.CreatedAt, claim.UpdatedAt)

	query := fmt.Sprintf(`INSERT INTO claims (%s) VALUES (%s)`, claimColumns, placeholders(1, len(args)))
	if _, err := dbFromContext(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return classify("insert claim", err)
	}
	return nil
}

// Get resolves id against the external claim_id first, then the internal id.
func (r *ClaimRepository) Get(ctx context.Context, id string) (*domain.Claim, error) {
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
SELECT `+claimColumns+`
FROM claims
WHERE claim_id = $1 OR id = $1
ORDER BY (claim_id = $1) DESC
LIMIT 1
`, id)
	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get claim", "claim", id)
		}
		return nil, classify("get claim", err)
	}
	return &claim, nil
}

func (r *ClaimRepository) Search(ctx context.Context, filter domain.ClaimFilter) ([]domain.Claim, int, error) {
	var where whereBuilder
	where.eq("policyholder_id", filter.PolicyholderID)
	where.eq("policy_id", filter.PolicyID)
	where.eq("claim_status", string(filter.Status))
	where.eq("event_type", string(filter.EventType))
	where.nameSearch(filter.NameSearch)
	where.dateRange("event_date", filter.DateFrom, filter.DateTo)

	db := dbFromContext(ctx, r.db)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims `+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, classify("count claims", err)
	}

	args := append(append([]any{}, where.args...), filter.Page.Limit, filter.Page.Skip)
	query := fmt.Sprintf(`
SELECT %s
FROM claims
%s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d
`, claimColumns, where.sql(), len(args)-1, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("search claims", err)
	}
	defer rows.Close()

	out := make([]domain.Claim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, 0, classify("scan claim", err)
		}
		out = append(out, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("iterate claims", err)
	}
	return out, total, nil
}

func (r *ClaimRepository) Update(ctx context.Context, id string, changes domain.Changes) (*domain.Claim, error) {
	set, args := setClause(changes, 2, time.Now().UTC())
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx,
		`UPDATE claims SET `+set+` WHERE id = $1 RETURNING `+claimColumns,
		append([]any{id}, args...)...,
	)
	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("update claim", "claim", id)
		}
		return nil, classify("update claim", err)
	}
	return &claim, nil
}

// UpdateStatus sets the claim status and merges metadata into the stored map in one statement.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, id string, status domain.ClaimStatus, metadata map[string]any) (*domain.Claim, error) {
	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
UPDATE claims
SET claim_status = $2,
	claim_metadata = CASE WHEN $3::jsonb IS NULL THEN claim_metadata ELSE COALESCE(claim_metadata, '{}'::jsonb) || $3::jsonb END,
	updated_at = $4
WHERE id = $1
RETURNING `+claimColumns, id, string(status), metadataJSON, time.Now().UTC())
	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("update claim status", "claim", id)
		}
		return nil, classify("update claim status", err)
	}
	return &claim, nil
}

func (r *ClaimRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := dbFromContext(ctx, r.db).ExecContext(ctx, `DELETE FROM claims WHERE id = $1`, id)
	if err != nil {
		return false, classify("delete claim", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete claim rows affected: %w", err)
	}
	return rows > 0, nil
}

func scanClaim(row scanner) (domain.Claim, error) {
	var claim domain.Claim
	var details detailRow
	dest := append([]any{&claim.ID, &claim.ClaimID}, details.dest()...)
	dest = append(dest, &claim.CreatedAt, &claim.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return domain.Claim{}, err
	}
	d, err := details.details()
	if err != nil {
		return domain.Claim{}, err
	}
	claim.ClaimDetails = d
	return claim, nil
}
