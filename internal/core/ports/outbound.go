package ports

import (
	"context"
	"io"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

// PolicyHolderRepository persists policyholders.
type PolicyHolderRepository interface {
	Create(ctx context.Context, ph *domain.PolicyHolder) error
	GetByID(ctx context.Context, id string) (*domain.PolicyHolder, error)
	List(ctx context.Context, page domain.PageRequest) ([]domain.PolicyHolder, int, error)
	Update(ctx context.Context, id string, changes domain.Changes) (*domain.PolicyHolder, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// AutouploadEmailRepository persists inbound email aliases.
type AutouploadEmailRepository interface {
	ListByPolicyHolder(ctx context.Context, policyHolderID, alias string) ([]domain.AutouploadEmail, error)
	GetByAlias(ctx context.Context, policyHolderID, alias string) (*domain.AutouploadEmail, error)
	Upsert(ctx context.Context, email *domain.AutouploadEmail) (*domain.AutouploadEmail, error)
	DeleteByAlias(ctx context.Context, policyHolderID, alias string) (*domain.AutouploadEmail, error)
	Resolve(ctx context.Context, addr domain.AutouploadAddress) (*domain.AutouploadEmail, error)
}

// ClaimRepository persists claims. Get accepts the external claim id or the internal id.
type ClaimRepository interface {
	Create(ctx context.Context, claim *domain.Claim) error
	Get(ctx context.Context, id string) (*domain.Claim, error)
	Search(ctx context.Context, filter domain.ClaimFilter) ([]domain.Claim, int, error)
	Update(ctx context.Context, id string, changes domain.Changes) (*domain.Claim, error)
	UpdateStatus(ctx context.Context, id string, status domain.ClaimStatus, metadata map[string]any) (*domain.Claim, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// InboxStatusUpdate is a single status transition with optional side fields.
type InboxStatusUpdate struct {
	Status          domain.InboxStatus
	RejectionReason string
	Metadata        map[string]any
	At              time.Time
}

// InboxRepository persists inbox items. Transition methods only touch open items (new or
// processing) or items already in the requested state, and return domain.ErrInvalidState when the
// item exists in any other state.
type InboxRepository interface {
	Create(ctx context.Context, item *domain.Inbox) error
	Get(ctx context.Context, ref domain.InboxRef) (*domain.Inbox, error)
	Search(ctx context.Context, filter domain.InboxFilter) ([]domain.Inbox, int, error)
	CountByStatus(ctx context.Context) (map[domain.InboxStatus]int, error)
	Update(ctx context.Context, id string, changes domain.Changes) (*domain.Inbox, error)
	MergeMetadata(ctx context.Context, id string, metadata map[string]any) error
	UpdateStatus(ctx context.Context, id string, update InboxStatusUpdate) (*domain.Inbox, error)
	Assign(ctx context.Context, id, assignee string) (*domain.Inbox, error)
	SetPriority(ctx context.Context, id string, priority domain.Priority) (*domain.Inbox, error)
	// MarkConverted atomically moves an open item to converted. It returns domain.ErrInvalidState
	// when no open item matched ref.
	MarkConverted(ctx context.Context, ref domain.InboxRef, claimID string, at time.Time) (*domain.Inbox, error)
	// RestoreStatus undoes MarkConverted for claimID.
	RestoreStatus(ctx context.Context, id, claimID string, status domain.InboxStatus, processedAt *time.Time) error
	Delete(ctx context.Context, id string) (bool, error)
}

// DocumentRepository persists document records.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error)
	ListByClaim(ctx context.Context, claimID string) ([]domain.Document, error)
	ListByInbox(ctx context.Context, inboxID string) ([]domain.Document, error)
	// TransferInboxToClaim reassigns every document of inboxID to claimID in one statement.
	TransferInboxToClaim(ctx context.Context, inboxID, claimID string, at time.Time) ([]domain.Document, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// BlobStore stores document bytes and hands back a URL.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data io.Reader) (string, error)
	Open(ctx context.Context, url string) (io.ReadCloser, error)
	Delete(ctx context.Context, url string) error
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	PublishInboxReceived(ctx context.Context, event domain.InboxReceived) error
	PublishClaimConverted(ctx context.Context, event domain.ClaimConverted) error
}

// EventSubscriber consumes inbox intake events.
type EventSubscriber interface {
	SubscribeInboxReceived(ctx context.Context, handler func(context.Context, domain.InboxReceived) error) error
}

// Generator calls a generative model.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// SchemaCatalog resolves extraction prompts.
type SchemaCatalog interface {
	Lookup(schemaType domain.SchemaType) (domain.AnalysisSchema, error)
}

// TextExtractor pulls readable text out of an attachment.
type TextExtractor interface {
	Extract(ctx context.Context, att domain.Attachment) (string, error)
}

// InboxStatsCache holds the latest inbox statistics.
type InboxStatsCache interface {
	Get() (domain.InboxStats, bool)
	Set(stats domain.InboxStats)
	Invalidate()
}

// InboxExporter renders inbox items as a spreadsheet.
type InboxExporter interface {
	WriteInbox(w io.Writer, items []domain.Inbox) error
}

// ConversionLedger records conversions durably so a converted inbox item can still be
// recognised after it was deleted.
type ConversionLedger interface {
	Begin(ctx context.Context, rec domain.ConversionRecord) error
	Complete(ctx context.Context, rec domain.ConversionRecord) error
	Abandon(ctx context.Context, inboxID string) error
	Find(ctx context.Context, ref domain.InboxRef) (*domain.ConversionRecord, error)
	ListPending(ctx context.Context, before time.Time, limit int) ([]domain.ConversionRecord, error)
}

// ConversionObserver receives the outcome of each conversion attempt.
type ConversionObserver interface {
	ConversionFinished(outcome string, documents int, elapsed time.Duration)
}
