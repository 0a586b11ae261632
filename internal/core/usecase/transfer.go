package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

// DocumentTransfer moves document ownership from an inbox item to a claim.
type DocumentTransfer struct {
	docs ports.DocumentRepository
}

func NewDocumentTransfer(docs ports.DocumentRepository) *DocumentTransfer {
	return &DocumentTransfer{docs: docs}
}

// Transfer reassigns every document of inboxID to claimID, then checks that none are left
// behind. Leftovers are reported as a *domain.TransferError listing their ids.
func (t *DocumentTransfer) Transfer(ctx context.Context, inboxID, claimID string, at time.Time) (domain.TransferResult, error) {
	moved, err := t.docs.TransferInboxToClaim(ctx, inboxID, claimID, at)
	if err != nil {
		return domain.TransferResult{}, fmt.Errorf("transfer documents: %w", err)
	}
	result := domain.TransferResult{InboxID: inboxID, ClaimID: claimID, Documents: moved}

	remaining, err := t.docs.ListByInbox(ctx, inboxID)
	if err != nil {
		return result, fmt.Errorf("verify document transfer: %w", err)
	}
	if len(remaining) > 0 {
		failed := make([]string, 0, len(remaining))
		for _, doc := range remaining {
			failed = append(failed, doc.ID)
		}
		return result, &domain.TransferError{InboxID: inboxID, ClaimID: claimID, Failed: failed}
	}
	return result, nil
}
