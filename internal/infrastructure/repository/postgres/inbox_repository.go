package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

const inboxColumns = `id, claim_id, ` + detailColumns + `, inbox_status, converted_claim_id, rejection_reason,
	assigned_to, priority, raw_email_content, email_subject, email_sender, created_at, updated_at, processed_at`

const openStatuses = `('new', 'processing')`

type InboxRepository struct {
	db *sql.DB
}

func NewInboxRepository(db *sql.DB) *InboxRepository {
	return &InboxRepository{db: db}
}

// refPredicate matches ref against placeholder $n. Either-id lookups prefer the external id.
func refPredicate(ref domain.InboxRef, n int) (where, order string) {
	switch ref.Kind {
	case domain.ByExternalID:
		return fmt.Sprintf("claim_id = $%d", n), ""
	case domain.ByInternalID:
		return fmt.Sprintf("id = $%d", n), ""
	default:
		return fmt.Sprintf("(claim_id = $%d OR id = $%d)", n, n), fmt.Sprintf("ORDER BY (claim_id = $%d) DESC", n)
	}
}

func (r *InboxRepository) Create(ctx context.Context, item *domain.Inbox) error {
	details, err := detailArgs(item.ClaimDetails)
	if err != nil {
		return err
	}
	args := append([]any{item.ID, item.ClaimID}, details...)
	args = append(args,
		string(item.InboxStatus), nullString(item.ConvertedClaimID), nullString(item.RejectionReason),
		nullString(item.AssignedTo), string(item.Priority), nullString(item.RawEmailContent),
		nullString(item.EmailSubject), nullString(item.EmailSender), item.CreatedAt, item.UpdatedAt, item.ProcessedAt,
	)

	query := fmt.Sprintf(`INSERT INTO inbox (%s) VALUES (%s)`, inboxColumns, placeholders(1, len(args)))
	if _, err := dbFromContext(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return classify("insert inbox item", err)
	}
	return nil
}

func (r *InboxRepository) Get(ctx context.Context, ref domain.InboxRef) (*domain.Inbox, error) {
	where, order := refPredicate(ref, 1)
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+inboxColumns+` FROM inbox WHERE `+where+` `+order+` LIMIT 1`, ref.Value)
	item, err := scanInbox(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get inbox item", "inbox item", ref.Value)
		}
		return nil, classify("get inbox item", err)
	}
	return &item, nil
}

func (r *InboxRepository) Search(ctx context.Context, filter domain.InboxFilter) ([]domain.Inbox, int, error) {
	var where whereBuilder
	where.eq("policyholder_id", filter.PolicyholderID)
	where.eq("policy_id", filter.PolicyID)
	where.eq("inbox_status", string(filter.InboxStatus))
	where.eq("claim_status", string(filter.ClaimStatus))
	where.eq("event_type", string(filter.EventType))
	where.nameSearch(filter.NameSearch)
	where.dateRange("event_date", filter.DateFrom, filter.DateTo)
	where.eq("assigned_to", filter.AssignedTo)
	where.eq("priority", string(filter.Priority))

	db := dbFromContext(ctx, r.db)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inbox `+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, classify("count inbox items", err)
	}

	args := append(append([]any{}, where.args...), filter.Page.Limit, filter.Page.Skip)
	query := fmt.Sprintf(`
SELECT %s
FROM inbox
%s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d
`, inboxColumns, where.sql(), len(args)-1, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("search inbox items", err)
	}
	defer rows.Close()

	out := make([]domain.Inbox, 0)
	for rows.Next() {
		item, err := scanInbox(rows)
		if err != nil {
			return nil, 0, classify("scan inbox item", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("iterate inbox items", err)
	}
	return out, total, nil
}

func (r *InboxRepository) CountByStatus(ctx context.Context) (map[domain.InboxStatus]int, error) {
	rows, err := dbFromContext(ctx, r.db).QueryContext(ctx, `
SELECT inbox_status, COUNT(*)
FROM inbox
GROUP BY inbox_status
`)
	if err != nil {
		return nil, classify("count inbox by status", err)
	}
	defer rows.Close()

	out := make(map[domain.InboxStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, classify("scan inbox status count", err)
		}
		out[domain.InboxStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate inbox status counts", err)
	}
	return out, nil
}

func (r *InboxRepository) Update(ctx context.Context, id string, changes domain.Changes) (*domain.Inbox, error) {
	set, args := setClause(changes, 2, time.Now().UTC())
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx,
		`UPDATE inbox SET `+set+` WHERE id = $1 RETURNING `+inboxColumns,
		append([]any{id}, args...)...,
	)
	item, err := scanInbox(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("update inbox item", "inbox item", id)
		}
		return nil, classify("update inbox item", err)
	}
	return &item, nil
}

func (r *InboxRepository) MergeMetadata(ctx context.Context, id string, metadata map[string]any) error {
	metadataJSON, err := marshalJSON(metadata)
	if err != nil {
		return err
	}
	result, err := dbFromContext(ctx, r.db).ExecContext(ctx, `
UPDATE inbox
SET claim_metadata = COALESCE(claim_metadata, '{}'::jsonb) || $2::jsonb, updated_at = $3
WHERE id = $1
`, id, metadataJSON, time.Now().UTC())
	if err != nil {
		return classify("merge inbox metadata", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("merge inbox metadata rows affected: %w", err)
	}
	if rows == 0 {
		return notFound("merge inbox metadata", "inbox item", id)
	}
	return nil
}

// UpdateStatus applies an open-state transition. Rejection stamps processed_at once and records
// the reason; metadata is merged into the stored map.
func (r *InboxRepository) UpdateStatus(ctx context.Context, id string, update ports.InboxStatusUpdate) (*domain.Inbox, error) {
	metadataJSON, err := marshalMetadata(update.Metadata)
	if err != nil {
		return nil, err
	}
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
UPDATE inbox
SET inbox_status = $2::text,
	rejection_reason = CASE WHEN $2::text = 'rejected' AND $3::text <> '' THEN $3::text ELSE rejection_reason END,
	claim_metadata = CASE WHEN $4::jsonb IS NULL THEN claim_metadata ELSE COALESCE(claim_metadata, '{}'::jsonb) || $4::jsonb END,
	processed_at = CASE WHEN $2::text = 'rejected' THEN COALESCE(processed_at, $5) ELSE processed_at END,
	updated_at = $5
WHERE id = $1 AND (inbox_status IN `+openStatuses+` OR inbox_status = $2::text)
RETURNING `+inboxColumns, id, string(update.Status), update.RejectionReason, metadataJSON, update.At)
	return r.transitioned(ctx, "update inbox status", id, row)
}

// Assign sets the assignee and advances new items to processing.
func (r *InboxRepository) Assign(ctx context.Context, id, assignee string) (*domain.Inbox, error) {
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
UPDATE inbox
SET assigned_to = $2,
	inbox_status = CASE WHEN inbox_status = 'new' THEN 'processing' ELSE inbox_status END,
	updated_at = $3
WHERE id = $1 AND inbox_status IN `+openStatuses+`
RETURNING `+inboxColumns, id, assignee, time.Now().UTC())
	return r.transitioned(ctx, "assign inbox item", id, row)
}

func (r *InboxRepository) SetPriority(ctx context.Context, id string, priority domain.Priority) (*domain.Inbox, error) {
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
UPDATE inbox
SET priority = $2, updated_at = $3
WHERE id = $1 AND inbox_status IN `+openStatuses+`
RETURNING `+inboxColumns, id, string(priority), time.Now().UTC())
	return r.transitioned(ctx, "set inbox priority", id, row)
}

// MarkConverted is the conditional transition that claims an open item for conversion.
func (r *InboxRepository) MarkConverted(ctx context.Context, ref domain.InboxRef, claimID string, at time.Time) (*domain.Inbox, error) {
	where, order := refPredicate(ref, 1)
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
UPDATE inbox
SET inbox_status = 'converted', converted_claim_id = $2, processed_at = $3, updated_at = $3
WHERE id = (SELECT id FROM inbox WHERE `+where+` `+order+` LIMIT 1)
	AND inbox_status IN `+openStatuses+`
RETURNING `+inboxColumns, ref.Value, claimID, at)
	item, err := scanInbox(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrInvalidState, "mark inbox converted", fmt.Errorf("no open inbox item matches %s", ref.Value))
		}
		return nil, classify("mark inbox converted", err)
	}
	return &item, nil
}

func (r *InboxRepository) RestoreStatus(ctx context.Context, id, claimID string, status domain.InboxStatus, processedAt *time.Time) error {
	result, err := dbFromContext(ctx, r.db).ExecContext(ctx, `
UPDATE inbox
SET inbox_status = $3, converted_claim_id = NULL, processed_at = $4, updated_at = $5
WHERE id = $1 AND inbox_status = 'converted' AND converted_claim_id = $2
`, id, claimID, string(status), processedAt, time.Now().UTC())
	if err != nil {
		return classify("restore inbox status", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("restore inbox status rows affected: %w", err)
	}
	if rows == 0 {
		return notFound("restore inbox status", "converted inbox item", id)
	}
	return nil
}

func (r *InboxRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := dbFromContext(ctx, r.db).ExecContext(ctx, `DELETE FROM inbox WHERE id = $1`, id)
	if err != nil {
		return false, classify("delete inbox item", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete inbox item rows affected: %w", err)
	}
	return rows > 0, nil
}

// transitioned scans the row of a guarded update and explains a miss.
func (r *InboxRepository) transitioned(ctx context.Context, op, id string, row *sql.Row) (*domain.Inbox, error) {
	item, err := scanInbox(row)
	if err == nil {
		return &item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, classify(op, err)
	}
	var status string
	err = dbFromContext(ctx, r.db).QueryRowContext(ctx, `SELECT inbox_status FROM inbox WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(op, "inbox item", id)
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return nil, domain.WrapError(domain.ErrInvalidState, op, fmt.Errorf("inbox item %s is %s", id, status))
}

func scanInbox(row scanner) (domain.Inbox, error) {
	var item domain.Inbox
	var details detailRow
	var status, priority string
	var converted, reason, assignee, rawEmail, subject, sender sql.NullString
	var processedAt sql.NullTime

	dest := append([]any{&item.ID, &item.ClaimID}, details.dest()...)
	dest = append(dest,
		&status, &converted, &reason, &assignee, &priority, &rawEmail, &subject, &sender,
		&item.CreatedAt, &item.UpdatedAt, &processedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return domain.Inbox{}, err
	}
	d, err := details.details()
	if err != nil {
		return domain.Inbox{}, err
	}
	item.ClaimDetails = d
	item.InboxStatus = domain.InboxStatus(status)
	item.ConvertedClaimID = converted.String
	item.RejectionReason = reason.String
	item.AssignedTo = assignee.String
	item.Priority = domain.Priority(priority)
	item.RawEmailContent = rawEmail.String
	item.EmailSubject = subject.String
	item.EmailSender = sender.String
	item.ProcessedAt = timePtr(processedAt)
	return item, nil
}
