package ports

import (
	"context"
	"io"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

// PolicyHolderService manages policyholders.
type PolicyHolderService interface {
	Create(ctx context.Context, ph domain.PolicyHolder) (*domain.PolicyHolder, error)
	Get(ctx context.Context, id string) (*domain.PolicyHolder, error)
	List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.PolicyHolder], error)
	Update(ctx context.Context, id string, changes domain.Changes) (*domain.PolicyHolder, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// AutouploadEmailService manages inbound aliases of a policyholder.
type AutouploadEmailService interface {
	List(ctx context.Context, policyHolderID, alias string) ([]domain.AutouploadEmail, error)
	Get(ctx context.Context, policyHolderID, alias string) (*domain.AutouploadEmail, error)
	Upsert(ctx context.Context, email domain.AutouploadEmail) (*domain.AutouploadEmail, error)
	Delete(ctx context.Context, policyHolderID, alias string) (*domain.AutouploadEmail, error)
}

// ClaimService manages filed claims.
type ClaimService interface {
	Create(ctx context.Context, details domain.ClaimDetails) (*domain.Claim, error)
	Get(ctx context.Context, id string) (*domain.Claim, error)
	Search(ctx context.Context, filter domain.ClaimFilter) (domain.Page[domain.Claim], error)
	Update(ctx context.Context, id string, changes domain.Changes) (*domain.Claim, error)
	UpdateStatus(ctx context.Context, id string, status domain.ClaimStatus, metadata map[string]any) (*domain.Claim, error)
	AssociatePolicyHolder(ctx context.Context, id, policyHolderID, matchedBy string) (*domain.Claim, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// InboxService manages staged inbox items.
type InboxService interface {
	Create(ctx context.Context, item domain.Inbox) (*domain.Inbox, error)
	Get(ctx context.Context, ref domain.InboxRef) (*domain.Inbox, error)
	Search(ctx context.Context, filter domain.InboxFilter) (domain.Page[domain.Inbox], error)
	Export(ctx context.Context, filter domain.InboxFilter, w io.Writer) error
	Stats(ctx context.Context) (domain.InboxStats, error)
	Update(ctx context.Context, ref domain.InboxRef, changes domain.Changes) (*domain.Inbox, error)
	UpdateStatus(ctx context.Context, ref domain.InboxRef, status domain.InboxStatus, reason string, metadata map[string]any) (*domain.Inbox, error)
	Assign(ctx context.Context, ref domain.InboxRef, assignee string) (*domain.Inbox, error)
	SetPriority(ctx context.Context, ref domain.InboxRef, priority domain.Priority) (*domain.Inbox, error)
	Delete(ctx context.Context, ref domain.InboxRef) (bool, error)
}

// InboxConverter promotes inbox items into claims.
type InboxConverter interface {
	Convert(ctx context.Context, ref domain.InboxRef) (*domain.ConversionResult, error)
	Reconcile(ctx context.Context, ref domain.InboxRef, claimID string) (*domain.ConversionResult, error)
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// DocumentService stores and reads claim documents.
type DocumentService interface {
	Upload(ctx context.Context, upload domain.Upload, body io.Reader) (*domain.Document, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
	Open(ctx context.Context, id string) (*domain.Document, io.ReadCloser, error)
	List(ctx context.Context, filter domain.DocumentFilter) (domain.Page[domain.Document], error)
	ListByClaim(ctx context.Context, claimID string) ([]domain.Document, error)
	ListByInbox(ctx context.Context, inboxID string) ([]domain.Document, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// AnalysisService runs AI-assisted extraction.
type AnalysisService interface {
	AnalyzeDocument(ctx context.Context, schemaType domain.SchemaType, att domain.Attachment, opts domain.GenerationRequest) (domain.AnalysisResult, error)
	AnalyzeStoredDocument(ctx context.Context, documentID string, schemaType domain.SchemaType) (domain.AnalysisResult, error)
	GenerateText(ctx context.Context, req domain.GenerationRequest) (string, error)
	AnalyzeAttachmentName(ctx context.Context, fileName string) domain.AttachmentAnalysis
	ExtractEmailData(ctx context.Context, body string) domain.EmailAnalysis
}

// EmailIntake turns inbound emails into inbox items and enriches them asynchronously.
type EmailIntake interface {
	Receive(ctx context.Context, email domain.InboundEmail) (*domain.IntakeResult, error)
	ProcessInboxReceived(ctx context.Context, event domain.InboxReceived) error
}
