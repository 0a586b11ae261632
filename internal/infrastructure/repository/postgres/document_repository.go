package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const documentColumns = `id, file_name, file_url, content_type, size_bytes, claim_id, inbox_id, created_at, updated_at`

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	var size sql.NullInt64
	if doc.SizeBytes != nil {
		size = sql.NullInt64{Int64: *doc.SizeBytes, Valid: true}
	}
	_, err := dbFromContext(ctx, r.db).ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.ID, doc.FileName, doc.FileURL, nullString(doc.ContentType), size,
		nullString(doc.ClaimID), nullString(doc.InboxID), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return classify("insert document", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := dbFromContext(ctx, r.db).QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get document", "document", id)
		}
		return nil, classify("get document", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error) {
	var where whereBuilder
	where.eq("claim_id", filter.ClaimID)
	where.eq("inbox_id", filter.InboxID)
	where.eq("content_type", filter.ContentType)

	db := dbFromContext(ctx, r.db)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents `+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, classify("count documents", err)
	}

	args := append(append([]any{}, where.args...), filter.Page.Limit, filter.Page.Skip)
	query := fmt.Sprintf(`
SELECT %s
FROM documents
%s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d
`, documentColumns, where.sql(), len(args)-1, len(args))
	docs, err := r.query(ctx, "list documents", query, args...)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *DocumentRepository) ListByClaim(ctx context.Context, claimID string) ([]domain.Document, error) {
	return r.query(ctx, "list claim documents", `
SELECT `+documentColumns+`
FROM documents
WHERE claim_id = $1
ORDER BY created_at, id
`, claimID)
}

func (r *DocumentRepository) ListByInbox(ctx context.Context, inboxID string) ([]domain.Document, error) {
	return r.query(ctx, "list inbox documents", `
SELECT `+documentColumns+`
FROM documents
WHERE inbox_id = $1
ORDER BY created_at, id
`, inboxID)
}

// TransferInboxToClaim moves ownership of every document of inboxID to claimID and returns the
// moved rows.
func (r *DocumentRepository) TransferInboxToClaim(ctx context.Context, inboxID, claimID string, at time.Time) ([]domain.Document, error) {
	return r.query(ctx, "transfer documents", `
UPDATE documents
SET claim_id = $2, inbox_id = NULL, updated_at = $3
WHERE inbox_id = $1
RETURNING `+documentColumns, inboxID, claimID, at)
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := dbFromContext(ctx, r.db).ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, classify("delete document", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *DocumentRepository) query(ctx context.Context, op, query string, args ...any) ([]domain.Document, error) {
	rows, err := dbFromContext(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func scanDocument(row scanner) (domain.Document, error) {
	var doc domain.Document
	var contentType, claimID, inboxID sql.NullString
	var size sql.NullInt64
	err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.FileURL,
		&contentType,
		&size,
		&claimID,
		&inboxID,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	doc.ContentType = contentType.String
	doc.ClaimID = claimID.String
	doc.InboxID = inboxID.String
	if size.Valid {
		n := size.Int64
		doc.SizeBytes = &n
	}
	return doc, nil
}
