package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

type InboxUseCase struct {
	repo     ports.InboxRepository
	holders  ports.PolicyHolderRepository
	stats    ports.InboxStatsCache
	exporter ports.InboxExporter
	now      func() time.Time
}

func NewInboxUseCase(
	repo ports.InboxRepository,
	holders ports.PolicyHolderRepository,
	stats ports.InboxStatsCache,
	exporter ports.InboxExporter,
) *InboxUseCase {
	return &InboxUseCase{
		repo:     repo,
		holders:  holders,
		stats:    stats,
		exporter: exporter,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *InboxUseCase) Create(ctx context.Context, item domain.Inbox) (*domain.Inbox, error) {
	item.ID = domain.NewInboxID()
	item.ClaimID = domain.NewExternalInboxID()
	item.ConvertedClaimID = ""
	item.ApplyDefaults()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := requirePolicyHolder(ctx, uc.holders, item.PolicyholderID); err != nil {
		return nil, err
	}

	now := uc.now()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.ProcessedAt = nil
	if item.InboxStatus == domain.InboxRejected {
		item.ProcessedAt = &now
	}
	if err := uc.repo.Create(ctx, &item); err != nil {
		return nil, fmt.Errorf("create inbox item: %w", err)
	}
	uc.invalidate()
	return &item, nil
}

func (uc *InboxUseCase) Get(ctx context.Context, ref domain.InboxRef) (*domain.Inbox, error) {
	item, err := uc.repo.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("get inbox item: %w", err)
	}
	return item, nil
}

func (uc *InboxUseCase) Search(ctx context.Context, filter domain.InboxFilter) (domain.Page[domain.Inbox], error) {
	if err := filter.Validate(); err != nil {
		return domain.Page[domain.Inbox]{}, err
	}
	page, err := filter.Page.Normalize()
	if err != nil {
		return domain.Page[domain.Inbox]{}, err
	}
	filter.Page = page

	items, total, err := uc.repo.Search(ctx, filter)
	if err != nil {
		return domain.Page[domain.Inbox]{}, fmt.Errorf("search inbox: %w", err)
	}
	return domain.NewPage(items, total, page), nil
}

// Export writes every item matching filter, ignoring its page window.
func (uc *InboxUseCase) Export(ctx context.Context, filter domain.InboxFilter, w io.Writer) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	var all []domain.Inbox
	filter.Page = domain.PageRequest{Limit: domain.MaxPageLimit}
	for {
		items, total, err := uc.repo.Search(ctx, filter)
		if err != nil {
			return fmt.Errorf("search inbox for export: %w", err)
		}
		all = append(all, items...)
		if len(items) == 0 || len(all) >= total {
			break
		}
		filter.Page.Skip += len(items)
	}
	if err := uc.exporter.WriteInbox(w, all); err != nil {
		return fmt.Errorf("write inbox export: %w", err)
	}
	return nil
}

func (uc *InboxUseCase) Stats(ctx context.Context) (domain.InboxStats, error) {
	if uc.stats != nil {
		if stats, ok := uc.stats.Get(); ok {
			return stats, nil
		}
	}
	counts, err := uc.repo.CountByStatus(ctx)
	if err != nil {
		return domain.InboxStats{}, fmt.Errorf("count inbox items: %w", err)
	}
	stats := domain.NewInboxStats(counts)
	if uc.stats != nil {
		uc.stats.Set(stats)
	}
	return stats, nil
}

func (uc *InboxUseCase) Update(ctx context.Context, ref domain.InboxRef, changes domain.Changes) (*domain.Inbox, error) {
	if changes.Empty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update inbox item", errors.New("no fields to update"))
	}
	if v, ok := changes.Value("policyholder_id"); ok {
		if id, _ := v.(string); id != "" {
			if err := requirePolicyHolder(ctx, uc.holders, id); err != nil {
				return nil, err
			}
		}
	}
	item, err := uc.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	updated, err := uc.repo.Update(ctx, item.ID, changes)
	if err != nil {
		return nil, fmt.Errorf("update inbox item: %w", err)
	}
	return updated, nil
}

// UpdateStatus moves an open item to another status. Conversion has its own workflow, so
// converted is refused here.
func (uc *InboxUseCase) UpdateStatus(
	ctx context.Context,
	ref domain.InboxRef,
	status domain.InboxStatus,
	reason string,
	metadata map[string]any,
) (*domain.Inbox, error) {
	if !status.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update inbox status", fmt.Errorf("inbox_status %q is not supported", status))
	}
	if status == domain.InboxConverted {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update inbox status",
			errors.New("converted is set by convert-to-claim only"))
	}
	item, err := uc.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	updated, err := uc.repo.UpdateStatus(ctx, item.ID, ports.InboxStatusUpdate{
		Status:          status,
		RejectionReason: strings.TrimSpace(reason),
		Metadata:        metadata,
		At:              uc.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("update inbox status: %w", err)
	}
	uc.invalidate()
	return updated, nil
}

func (uc *InboxUseCase) Assign(ctx context.Context, ref domain.InboxRef, assignee string) (*domain.Inbox, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "assign inbox item", errors.New("assigned_to is required"))
	}
	item, err := uc.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	updated, err := uc.repo.Assign(ctx, item.ID, assignee)
	if err != nil {
		return nil, fmt.Errorf("assign inbox item: %w", err)
	}
	uc.invalidate()
	return updated, nil
}

func (uc *InboxUseCase) SetPriority(ctx context.Context, ref domain.InboxRef, priority domain.Priority) (*domain.Inbox, error) {
	if !priority.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "set inbox priority", fmt.Errorf("priority %q is not supported", priority))
	}
	item, err := uc.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	updated, err := uc.repo.SetPriority(ctx, item.ID, priority)
	if err != nil {
		return nil, fmt.Errorf("set inbox priority: %w", err)
	}
	return updated, nil
}

func (uc *InboxUseCase) Delete(ctx context.Context, ref domain.InboxRef) (bool, error) {
	item, err := uc.repo.Get(ctx, ref)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get inbox item: %w", err)
	}
	existed, err := uc.repo.Delete(ctx, item.ID)
	if err != nil {
		return false, fmt.Errorf("delete inbox item: %w", err)
	}
	uc.invalidate()
	return existed, nil
}

func (uc *InboxUseCase) invalidate() {
	if uc.stats != nil {
		uc.stats.Invalidate()
	}
}

// requirePolicyHolder rejects references to policyholders that do not exist.
func requirePolicyHolder(ctx context.Context, holders ports.PolicyHolderRepository, id string) error {
	if id == "" || holders == nil {
		return nil
	}
	if _, err := holders.GetByID(ctx, id); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return domain.WrapError(domain.ErrInvalidInput, "check policyholder", fmt.Errorf("policyholder %s does not exist", id))
		}
		return fmt.Errorf("check policyholder: %w", err)
	}
	return nil
}
