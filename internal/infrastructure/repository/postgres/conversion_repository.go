package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const (
	conversionColumns = `inbox_id, inbox_claim_id, claim_id, external_claim_id, state, documents_transferred, started_at, completed_at`
	// ledgerColumns adds the inbox status captured when the conversion began.
	ledgerColumns = conversionColumns + `, previous_status, previous_processed_at`
)

// ConversionRepository stores the conversion ledger. Rows survive deletion of the inbox item.
type ConversionRepository struct {
	db *sql.DB
}

func NewConversionRepository(db *sql.DB) *ConversionRepository {
	return &ConversionRepository{db: db}
}

func (r *ConversionRepository) Begin(ctx context.Context, rec domain.ConversionRecord) error {
	_, err := dbFromContext(ctx, r.db).ExecContext(ctx, `
INSERT INTO inbox_conversions (`+ledgerColumns+`)
VALUES ($1, $2, $3, $4, 'pending', 0, $5, NULL, $6, $7)
`, rec.InboxID, rec.InboxClaimID, rec.ClaimID, rec.ExternalClaimID, rec.StartedAt, string(rec.PreviousStatus), rec.PreviousProcessedAt)
	if err != nil {
		return classify("begin conversion", err)
	}
	return nil
}

// Complete records a finished conversion, creating the row when Begin never ran.
func (r *ConversionRepository) Complete(ctx context.Context, rec domain.ConversionRecord) error {
	if rec.CompletedAt == nil {
		return domain.WrapError(domain.ErrInvalidInput, "complete conversion", errors.New("completed_at is required"))
	}
	_, err := dbFromContext(ctx, r.db).ExecContext(ctx, `
INSERT INTO inbox_conversions (`+conversionColumns+`)
VALUES ($1, $2, $3, $4, 'completed', $5, $6, $7)
ON CONFLICT (inbox_id) DO UPDATE SET
	claim_id = EXCLUDED.claim_id,
	external_claim_id = EXCLUDED.external_claim_id,
	state = 'completed',
	documents_transferred = EXCLUDED.documents_transferred,
	completed_at = EXCLUDED.completed_at
`, rec.InboxID, rec.InboxClaimID, rec.ClaimID, rec.ExternalClaimID, rec.DocumentsTransferred, rec.StartedAt, *rec.CompletedAt)
	if err != nil {
		return classify("complete conversion", err)
	}
	return nil
}

// Abandon drops a pending record after its conversion was rolled back.
func (r *ConversionRepository) Abandon(ctx context.Context, inboxID string) error {
	_, err := dbFromContext(ctx, r.db).ExecContext(ctx, `
DELETE FROM inbox_conversions WHERE inbox_id = $1 AND state = 'pending'
`, inboxID)
	if err != nil {
		return classify("abandon conversion", err)
	}
	return nil
}

func (r *ConversionRepository) Find(ctx context.Context, ref domain.InboxRef) (*domain.ConversionRecord, error) {
	var where string
	switch ref.Kind {
	case domain.ByExternalID:
		where = "inbox_claim_id = $1"
	case domain.ByInternalID:
		where = "inbox_id = $1"
	default:
		where = "(inbox_claim_id = $1 OR inbox_id = $1)"
	}
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
SELECT `+ledgerColumns+`
FROM inbox_conversions
WHERE `+where+`
LIMIT 1
`, ref.Value)
	rec, err := scanConversion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("find conversion", "conversion of inbox", ref.Value)
		}
		return nil, classify("find conversion", err)
	}
	return &rec, nil
}

// ListPending returns pending records started before the cutoff, oldest first.
func (r *ConversionRepository) ListPending(ctx context.Context, before time.Time, limit int) ([]domain.ConversionRecord, error) {
	if limit <= 0 {
		limit = domain.DefaultPageLimit
	}
	rows, err := dbFromContext(ctx, r.db).QueryContext(ctx, `
SELECT `+ledgerColumns+`
FROM inbox_conversions
WHERE state = 'pending' AND started_at < $1
ORDER BY started_at ASC
LIMIT $2
`, before, limit)
	if err != nil {
		return nil, classify("list pending conversions", err)
	}
	defer rows.Close()

	out := make([]domain.ConversionRecord, 0)
	for rows.Next() {
		rec, err := scanConversion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate conversions", err)
	}
	return out, nil
}

func scanConversion(row scanner) (domain.ConversionRecord, error) {
	var (
		rec       domain.ConversionRecord
		state     string
		completed sql.NullTime
		previous  string
		processed sql.NullTime
	)
	if err := row.Scan(
		&rec.InboxID, &rec.InboxClaimID, &rec.ClaimID, &rec.ExternalClaimID, &state,
		&rec.DocumentsTransferred, &rec.StartedAt, &completed, &previous, &processed,
	); err != nil {
		return domain.ConversionRecord{}, err
	}
	rec.State = domain.ConversionState(state)
	rec.CompletedAt = timePtr(completed)
	rec.PreviousStatus = domain.InboxStatus(previous)
	rec.PreviousProcessedAt = timePtr(processed)
	return rec, nil
}
