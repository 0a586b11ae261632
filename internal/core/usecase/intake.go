package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

const (
	webhookEventLocation = "unknown"
	webhookDamage        = "Pending review"
	webhookMatchedBy     = "autoupload_email"
)

type IntakeUseCase struct {
	uow       ports.UnitOfWork
	aliases   ports.AutouploadEmailRepository
	holders   ports.PolicyHolderRepository
	inbox     ports.InboxRepository
	docs      ports.DocumentRepository
	analysis  ports.AnalysisService
	publisher ports.EventPublisher
	stats     ports.InboxStatsCache
	logger    *slog.Logger
	now       func() time.Time
}

func NewIntakeUseCase(
	uow ports.UnitOfWork,
	aliases ports.AutouploadEmailRepository,
	holders ports.PolicyHolderRepository,
	inbox ports.InboxRepository,
	docs ports.DocumentRepository,
	analysis ports.AnalysisService,
	publisher ports.EventPublisher,
	stats ports.InboxStatsCache,
	logger *slog.Logger,
) *IntakeUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntakeUseCase{
		uow:       uow,
		aliases:   aliases,
		holders:   holders,
		inbox:     inbox,
		docs:      docs,
		analysis:  analysis,
		publisher: publisher,
		stats:     stats,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Receive stores an inbound email as a new inbox item of the policyholder its recipient alias
// belongs to. Attachments are recorded by URL and owned by the new item.
func (uc *IntakeUseCase) Receive(ctx context.Context, email domain.InboundEmail) (*domain.IntakeResult, error) {
	addr, err := domain.ParseAutouploadAddress(email.Recipient)
	if err != nil {
		return nil, err
	}
	alias, err := uc.aliases.Resolve(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}
	holder, err := uc.holders.GetByID(ctx, alias.PolicyHolderID)
	if err != nil {
		return nil, fmt.Errorf("get policyholder: %w", err)
	}

	now := uc.now()
	item := uc.inboxFromEmail(email, holder, now)
	if err := item.Validate(); err != nil {
		return nil, err
	}

	result := &domain.IntakeResult{
		InboxID:             item.ID,
		InboxClaimID:        item.ClaimID,
		PolicyholderID:      holder.ID,
		AttachmentsRecorded: []string{},
	}
	err = uc.uow.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.inbox.Create(ctx, &item); err != nil {
			return fmt.Errorf("create inbox item: %w", err)
		}
		for _, att := range email.Attachments {
			if strings.TrimSpace(att.Name) == "" || strings.TrimSpace(att.URL) == "" {
				uc.logger.WarnContext(ctx, "intake_attachment_skipped", "inbox_id", item.ID, "name", att.Name)
				continue
			}
			doc := attachmentDocument(att, item.ID, now)
			if err := uc.docs.Create(ctx, &doc); err != nil {
				return fmt.Errorf("record attachment %s: %w", att.Name, err)
			}
			result.AttachmentsRecorded = append(result.AttachmentsRecorded, att.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if uc.stats != nil {
		uc.stats.Invalidate()
	}
	uc.logger.InfoContext(ctx, "inbox_received",
		"inbox_id", item.ID,
		"inbox_claim_id", item.ClaimID,
		"policyholder_id", holder.ID,
		"message_id", email.MessageID,
		"attachments", len(result.AttachmentsRecorded),
	)
	if err := uc.publisher.PublishInboxReceived(ctx, domain.InboxReceived{InboxID: item.ID, ReceivedAt: now}); err != nil {
		uc.logger.WarnContext(ctx, "inbox_received_publish_failed", "inbox_id", item.ID, "error", err.Error())
	}
	return result, nil
}

func (uc *IntakeUseCase) inboxFromEmail(email domain.InboundEmail, holder *domain.PolicyHolder, now time.Time) domain.Inbox {
	sender := strings.TrimSpace(email.Sender)
	contact := holder.Email
	if parsed, err := mail.ParseAddress(sender); err == nil {
		contact = parsed.Address
	}
	received := now
	if email.Timestamp > 0 {
		received = time.Unix(email.Timestamp, 0).UTC()
	}
	damage := strings.TrimSpace(email.Subject)
	if damage == "" {
		damage = webhookDamage
	}

	item := domain.Inbox{
		ID:      domain.NewInboxID(),
		ClaimID: domain.NewExternalInboxID(),
		ClaimDetails: domain.ClaimDetails{
			FirstName:         holder.FirstName,
			LastName:          holder.LastName,
			DateOfBirth:       holder.DateOfBirth,
			EventType:         domain.EventOther,
			EventDate:         domain.DateOf(received),
			EventLocation:     webhookEventLocation,
			DamageDescription: damage,
			ContactEmail:      contact,
			IngestMethod:      domain.IngestEmail,
			PolicyholderID:    holder.ID,
			MatchedBy:         webhookMatchedBy,
			Metadata: map[string]any{
				"message_id":  email.MessageID,
				"recipient":   email.Recipient,
				"received_at": received.Format(time.RFC3339),
				"attachments": len(email.Attachments),
			},
		},
		RawEmailContent: email.BodyPlain,
		EmailSubject:    email.Subject,
		EmailSender:     sender,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	item.ApplyDefaults()
	return item
}

func attachmentDocument(att domain.EmailAttachment, inboxID string, now time.Time) domain.Document {
	doc := domain.Document{
		ID:          domain.NewDocumentID(),
		FileName:    strings.TrimSpace(att.Name),
		FileURL:     strings.TrimSpace(att.URL),
		ContentType: att.ContentType,
		InboxID:     inboxID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if att.Size > 0 {
		size := att.Size
		doc.SizeBytes = &size
	}
	return doc
}

// ProcessInboxReceived enriches a received item with attachment and email analysis. Analysis
// failures fall back to default values, so only storage errors are returned.
func (uc *IntakeUseCase) ProcessInboxReceived(ctx context.Context, event domain.InboxReceived) error {
	item, err := uc.inbox.Get(ctx, domain.InternalInboxRef(event.InboxID))
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			uc.logger.InfoContext(ctx, "inbox_analysis_skipped", "inbox_id", event.InboxID, "reason", "not_found")
			return nil
		}
		return fmt.Errorf("get inbox item: %w", err)
	}
	if !item.InboxStatus.Open() {
		uc.logger.InfoContext(ctx, "inbox_analysis_skipped", "inbox_id", item.ID, "reason", string(item.InboxStatus))
		return nil
	}

	docs, err := uc.docs.ListByInbox(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("list inbox documents: %w", err)
	}
	attachments := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		attachments = append(attachments, map[string]any{
			"document_id": doc.ID,
			"file_name":   doc.FileName,
			"analysis":    uc.analysis.AnalyzeAttachmentName(ctx, doc.FileName),
		})
	}
	metadata := map[string]any{
		"attachment_analysis": attachments,
		"analyzed_at":         uc.now().Format(time.RFC3339),
	}
	var emailAnalysis *domain.EmailAnalysis
	if strings.TrimSpace(item.RawEmailContent) != "" {
		analysis := uc.analysis.ExtractEmailData(ctx, item.RawEmailContent)
		emailAnalysis = &analysis
		metadata["email_analysis"] = analysis
	}

	if err := uc.inbox.MergeMetadata(ctx, item.ID, metadata); err != nil {
		return fmt.Errorf("merge analysis metadata: %w", err)
	}
	if emailAnalysis != nil {
		uc.escalate(ctx, item, emailAnalysis.Urgency)
	}
	uc.logger.InfoContext(ctx, "inbox_analyzed", "inbox_id", item.ID, "attachments", len(attachments))
	return nil
}

// escalate raises a normal priority item when the email reads as high or urgent.
func (uc *IntakeUseCase) escalate(ctx context.Context, item *domain.Inbox, urgency string) {
	priority := domain.Priority(strings.ToLower(strings.TrimSpace(urgency)))
	if item.Priority != domain.PriorityNormal || (priority != domain.PriorityHigh && priority != domain.PriorityUrgent) {
		return
	}
	if _, err := uc.inbox.SetPriority(ctx, item.ID, priority); err != nil {
		uc.logger.WarnContext(ctx, "inbox_escalation_failed", "inbox_id", item.ID, "error", err.Error())
	}
}
