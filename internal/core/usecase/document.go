package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

type DocumentUseCase struct {
	repo   ports.DocumentRepository
	blobs  ports.BlobStore
	claims ports.ClaimRepository
	inbox  ports.InboxRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewDocumentUseCase(
	repo ports.DocumentRepository,
	blobs ports.BlobStore,
	claims ports.ClaimRepository,
	inbox ports.InboxRepository,
	logger *slog.Logger,
) *DocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentUseCase{
		repo:   repo,
		blobs:  blobs,
		claims: claims,
		inbox:  inbox,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the bytes first and then records the document. When the record can not be
// written the stored object is removed again.
func (uc *DocumentUseCase) Upload(ctx context.Context, upload domain.Upload, body io.Reader) (*domain.Document, error) {
	if err := upload.Validate(); err != nil {
		return nil, err
	}
	doc := &domain.Document{
		ID:          domain.NewDocumentID(),
		FileName:    filepath.Base(strings.TrimSpace(upload.FileName)),
		ContentType: upload.ContentType,
	}
	var err error
	if upload.ClaimID != "" {
		doc.ClaimID, err = uc.claimOwner(ctx, upload.ClaimID)
	} else {
		doc.InboxID, err = uc.inboxOwner(ctx, upload.InboxID)
	}
	if err != nil {
		return nil, err
	}

	owner := doc.ClaimID + doc.InboxID
	counter := &countingReader{r: body}
	url, err := uc.blobs.Put(ctx, blobKey(owner, doc.FileName), doc.ContentType, counter)
	if err != nil {
		return nil, fmt.Errorf("store document bytes: %w", err)
	}

	now := uc.now()
	size := counter.n
	doc.FileURL = url
	doc.SizeBytes = &size
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if err := uc.repo.Create(ctx, doc); err != nil {
		if derr := uc.blobs.Delete(context.WithoutCancel(ctx), url); derr != nil {
			uc.logger.WarnContext(ctx, "document_blob_cleanup_failed", "url", url, "error", derr.Error())
		}
		return nil, fmt.Errorf("create document record: %w", err)
	}
	return doc, nil
}

func (uc *DocumentUseCase) claimOwner(ctx context.Context, id string) (string, error) {
	claim, err := uc.claims.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get owning claim: %w", err)
	}
	return claim.ID, nil
}

func (uc *DocumentUseCase) inboxOwner(ctx context.Context, id string) (string, error) {
	ref, err := domain.ParseInboxRef(id)
	if err != nil {
		return "", err
	}
	item, err := uc.inbox.Get(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("get owning inbox item: %w", err)
	}
	return item.ID, nil
}

func (uc *DocumentUseCase) Get(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Open returns the stored bytes of a document.
func (uc *DocumentUseCase) Open(ctx context.Context, id string) (*domain.Document, io.ReadCloser, error) {
	doc, err := uc.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := uc.blobs.Open(ctx, doc.FileURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open document bytes: %w", err)
	}
	return doc, rc, nil
}

func (uc *DocumentUseCase) List(ctx context.Context, filter domain.DocumentFilter) (domain.Page[domain.Document], error) {
	page, err := filter.Page.Normalize()
	if err != nil {
		return domain.Page[domain.Document]{}, err
	}
	filter.Page = page
	docs, total, err := uc.repo.List(ctx, filter)
	if err != nil {
		return domain.Page[domain.Document]{}, fmt.Errorf("list documents: %w", err)
	}
	return domain.NewPage(docs, total, page), nil
}

func (uc *DocumentUseCase) ListByClaim(ctx context.Context, claimID string) ([]domain.Document, error) {
	owner, err := uc.claimOwner(ctx, claimID)
	if err != nil {
		return nil, err
	}
	docs, err := uc.repo.ListByClaim(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list claim documents: %w", err)
	}
	return docs, nil
}

func (uc *DocumentUseCase) ListByInbox(ctx context.Context, inboxID string) ([]domain.Document, error) {
	owner, err := uc.inboxOwner(ctx, inboxID)
	if err != nil {
		return nil, err
	}
	docs, err := uc.repo.ListByInbox(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list inbox documents: %w", err)
	}
	return docs, nil
}

// Delete removes the record, then the stored bytes. A failed blob removal is logged only.
func (uc *DocumentUseCase) Delete(ctx context.Context, id string) (bool, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get document: %w", err)
	}
	existed, err := uc.repo.Delete(ctx, doc.ID)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	if existed && doc.FileURL != "" {
		if err := uc.blobs.Delete(ctx, doc.FileURL); err != nil {
			uc.logger.WarnContext(ctx, "document_blob_delete_failed", "document_id", doc.ID, "url", doc.FileURL, "error", err.Error())
		}
	}
	return existed, nil
}

// blobKey places objects under their owner with a sortable unique name.
func blobKey(owner, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return fmt.Sprintf("%s/%s%s", owner, ulid.Make().String(), sanitizeExt(ext))
}

func sanitizeExt(ext string) string {
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext[min(1, len(ext)):] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
