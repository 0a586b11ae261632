package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

// Conversion outcomes reported to the ConversionObserver.
const (
	OutcomeConverted        = "converted"
	OutcomeAlreadyConverted = "already_converted"
	OutcomeNotFound         = "not_found"
	OutcomeInvalidState     = "invalid_state"
	OutcomePartial          = "partial"
	OutcomeFailed           = "failed"
)

// ConversionUseCase promotes inbox items into claims.
//
// The first write is a conditional transition of the inbox item to converted, so of two
// concurrent conversions only one proceeds. With an atomic unit of work every write commits
// together. Otherwise each write commits on its own: failures before the claim exists are undone,
// later failures surface as *domain.PartialConversionError and leave a pending ledger record
// for Reconcile.
type ConversionUseCase struct {
	uow       ports.UnitOfWork
	inbox     ports.InboxRepository
	claims    ports.ClaimRepository
	ledger    ports.ConversionLedger
	transfer  *DocumentTransfer
	publisher ports.EventPublisher
	stats     ports.InboxStatsCache
	observer  ports.ConversionObserver
	logger    *slog.Logger
	now       func() time.Time
}

func NewConversionUseCase(
	uow ports.UnitOfWork,
	inbox ports.InboxRepository,
	claims ports.ClaimRepository,
	docs ports.DocumentRepository,
	ledger ports.ConversionLedger,
	publisher ports.EventPublisher,
	stats ports.InboxStatsCache,
	observer ports.ConversionObserver,
	logger *slog.Logger,
) *ConversionUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversionUseCase{
		uow:       uow,
		inbox:     inbox,
		claims:    claims,
		ledger:    ledger,
		transfer:  NewDocumentTransfer(docs),
		publisher: publisher,
		stats:     stats,
		observer:  observer,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ConversionUseCase) Convert(ctx context.Context, ref domain.InboxRef) (*domain.ConversionResult, error) {
	started := time.Now()
	result, err := uc.convert(ctx, ref)
	uc.observe(result, err, time.Since(started))
	if err != nil {
		return nil, err
	}
	uc.announce(ctx, result)
	return result, nil
}

func (uc *ConversionUseCase) convert(ctx context.Context, ref domain.InboxRef) (*domain.ConversionResult, error) {
	item, err := uc.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	rec := domain.ConversionRecord{
		InboxID:         item.ID,
		InboxClaimID:    item.ClaimID,
		ClaimID:         domain.NewClaimID(),
		ExternalClaimID: domain.NewExternalClaimID(),
		State:           domain.ConversionPending,
		StartedAt:       now,

		PreviousStatus:      item.InboxStatus,
		PreviousProcessedAt: item.ProcessedAt,
	}

	var (
		step   domain.ConversionStep
		marked bool
		moved  domain.TransferResult
	)
	err = uc.uow.WithTx(ctx, func(ctx context.Context) error {
		step = domain.StepMarkConverted
		if _, err := uc.inbox.MarkConverted(ctx, domain.InternalInboxRef(item.ID), rec.ClaimID, now); err != nil {
			return err
		}
		marked = true
		if err := uc.ledger.Begin(ctx, rec); err != nil {
			return fmt.Errorf("record conversion intent: %w", err)
		}

		step = domain.StepCreateClaim
		claim := item.ProjectClaim(rec.ClaimID, rec.ExternalClaimID, now)
		if err := uc.claims.Create(ctx, &claim); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}

		step = domain.StepTransferDocuments
		var err error
		moved, err = uc.transfer.Transfer(ctx, item.ID, rec.ClaimID, now)
		if err != nil {
			return err
		}

		step = domain.StepDeleteInbox
		if _, err := uc.inbox.Delete(ctx, item.ID); err != nil {
			return fmt.Errorf("delete inbox item: %w", err)
		}

		step = domain.StepRecordConversion
		return uc.complete(ctx, rec, moved.Count())
	})
	if err != nil {
		return nil, uc.failed(ctx, item, rec, step, marked, err)
	}

	return &domain.ConversionResult{
		ConvertedClaimID:         rec.ClaimID,
		ConvertedExternalClaimID: rec.ExternalClaimID,
		DocumentsTransferred:     moved.Count(),
		OriginalInboxID:          item.ID,
		Inbox:                    item.Snapshot(),
	}, nil
}

// load resolves ref to a convertible inbox item. An item that no longer exists is looked up
// in the ledger so a repeated conversion reports AlreadyConverted instead of NotFound.
func (uc *ConversionUseCase) load(ctx context.Context, ref domain.InboxRef) (*domain.Inbox, error) {
	item, err := uc.inbox.Get(ctx, ref)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, uc.converted(ctx, ref, err)
		}
		return nil, fmt.Errorf("load inbox item: %w", err)
	}
	if err := convertible(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (uc *ConversionUseCase) converted(ctx context.Context, ref domain.InboxRef, missing error) error {
	rec, err := uc.ledger.Find(ctx, ref)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return fmt.Errorf("load inbox item: %w", missing)
		}
		return fmt.Errorf("look up conversion record: %w", err)
	}
	return &domain.AlreadyConvertedError{InboxID: rec.InboxID, ConvertedClaimID: rec.ClaimID}
}

func convertible(item *domain.Inbox) error {
	switch {
	case item.InboxStatus == domain.InboxConverted:
		return &domain.AlreadyConvertedError{InboxID: item.ID, ConvertedClaimID: item.ConvertedClaimID}
	case !item.InboxStatus.Open():
		return domain.WrapError(domain.ErrInvalidState, "convert inbox item",
			fmt.Errorf("inbox item %s is %s", item.ID, item.InboxStatus))
	}
	return nil
}

func (uc *ConversionUseCase) complete(ctx context.Context, rec domain.ConversionRecord, documents int) error {
	completedAt := uc.now()
	rec.State = domain.ConversionCompleted
	rec.DocumentsTransferred = documents
	rec.CompletedAt = &completedAt
	if err := uc.ledger.Complete(ctx, rec); err != nil {
		return fmt.Errorf("record conversion: %w", err)
	}
	return nil
}

func (uc *ConversionUseCase) failed(
	ctx context.Context,
	item *domain.Inbox,
	rec domain.ConversionRecord,
	step domain.ConversionStep,
	marked bool,
	err error,
) error {
	var commitErr *ports.CommitError
	if errors.As(err, &commitErr) {
		return uc.partial(ctx, rec, domain.StepCommit, err)
	}
	if step == domain.StepMarkConverted && !marked && domain.IsKind(err, domain.ErrInvalidState) {
		return uc.lostRace(ctx, item)
	}
	if uc.uow.Atomic() {
		return fmt.Errorf("convert inbox item %s: %w", item.ID, err)
	}
	if !marked {
		return fmt.Errorf("convert inbox item %s: %w", item.ID, err)
	}
	if step == domain.StepMarkConverted || step == domain.StepCreateClaim {
		if cerr := uc.compensate(ctx, item.ID, rec.ClaimID, item.InboxStatus, item.ProcessedAt); cerr != nil {
			return uc.partial(ctx, rec, step, errors.Join(err, cerr))
		}
		return fmt.Errorf("convert inbox item %s: %w", item.ID, err)
	}
	return uc.partial(ctx, rec, step, err)
}

// lostRace explains a conditional transition that matched nothing.
func (uc *ConversionUseCase) lostRace(ctx context.Context, item *domain.Inbox) error {
	ref := domain.InternalInboxRef(item.ID)
	current, err := uc.inbox.Get(ctx, ref)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return uc.converted(ctx, ref, err)
		}
		return fmt.Errorf("reload inbox item: %w", err)
	}
	if err := convertible(current); err != nil {
		return err
	}
	return domain.WrapError(domain.ErrInvalidState, "convert inbox item",
		fmt.Errorf("inbox item %s changed during conversion", item.ID))
}

// compensate undoes the conditional transition after the claim could not be created.
func (uc *ConversionUseCase) compensate(
	ctx context.Context,
	inboxID, claimID string,
	status domain.InboxStatus,
	processedAt *time.Time,
) error {
	ctx = context.WithoutCancel(ctx)
	if err := uc.inbox.RestoreStatus(ctx, inboxID, claimID, status, processedAt); err != nil {
		return fmt.Errorf("restore inbox status: %w", err)
	}
	if err := uc.ledger.Abandon(ctx, inboxID); err != nil {
		return fmt.Errorf("abandon conversion record: %w", err)
	}
	return nil
}

func (uc *ConversionUseCase) partial(ctx context.Context, rec domain.ConversionRecord, step domain.ConversionStep, err error) error {
	uc.logger.ErrorContext(ctx, "conversion_partial_failure",
		"inbox_id", rec.InboxID,
		"inbox_claim_id", rec.InboxClaimID,
		"claim_id", rec.ClaimID,
		"external_claim_id", rec.ExternalClaimID,
		"step", string(step),
		"error", err.Error(),
	)
	return &domain.PartialConversionError{InboxID: rec.InboxID, ClaimID: rec.ClaimID, Step: step, Err: err}
}

// Reconcile finishes a conversion against an existing claim: it moves the remaining documents,
// deletes the inbox item and completes the ledger record. Each step tolerates having already run.
// An empty claimID uses the claim recorded on the item or in the ledger. A converted item whose
// recorded claim does not exist is reopened and the error wraps domain.ErrConversionRolledBack.
func (uc *ConversionUseCase) Reconcile(ctx context.Context, ref domain.InboxRef, claimID string) (*domain.ConversionResult, error) {
	item, err := uc.inbox.Get(ctx, ref)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return uc.reconcileLedger(ctx, ref, claimID, err)
		}
		return nil, fmt.Errorf("load inbox item: %w", err)
	}

	if claimID == "" {
		claimID, err = uc.recordedClaim(ctx, item)
		if err != nil {
			return nil, err
		}
	}
	claim, err := uc.claims.Get(ctx, claimID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) && item.InboxStatus == domain.InboxConverted && item.ConvertedClaimID == claimID {
			return nil, uc.rollBack(ctx, item)
		}
		return nil, fmt.Errorf("load claim: %w", err)
	}

	switch {
	case item.InboxStatus == domain.InboxConverted && item.ConvertedClaimID != claim.ID:
		return nil, &domain.AlreadyConvertedError{InboxID: item.ID, ConvertedClaimID: item.ConvertedClaimID}
	case item.InboxStatus != domain.InboxConverted && !item.InboxStatus.Open():
		return nil, domain.WrapError(domain.ErrInvalidState, "reconcile inbox item",
			fmt.Errorf("inbox item %s is %s", item.ID, item.InboxStatus))
	}

	now := uc.now()
	rec := domain.ConversionRecord{
		InboxID:         item.ID,
		InboxClaimID:    item.ClaimID,
		ClaimID:         claim.ID,
		ExternalClaimID: claim.ClaimID,
		StartedAt:       now,
	}
	var moved domain.TransferResult
	err = uc.uow.WithTx(ctx, func(ctx context.Context) error {
		if item.InboxStatus.Open() {
			if _, err := uc.inbox.MarkConverted(ctx, domain.InternalInboxRef(item.ID), claim.ID, now); err != nil {
				return err
			}
		}
		var err error
		moved, err = uc.transfer.Transfer(ctx, item.ID, claim.ID, now)
		if err != nil {
			return err
		}
		if _, err := uc.inbox.Delete(ctx, item.ID); err != nil {
			return fmt.Errorf("delete inbox item: %w", err)
		}
		return uc.complete(ctx, rec, moved.Count())
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile inbox item %s: %w", item.ID, err)
	}

	result := &domain.ConversionResult{
		ConvertedClaimID:         claim.ID,
		ConvertedExternalClaimID: claim.ClaimID,
		DocumentsTransferred:     moved.Count(),
		OriginalInboxID:          item.ID,
		Inbox:                    item.Snapshot(),
	}
	uc.logger.InfoContext(ctx, "inbox_reconciled",
		"inbox_id", item.ID,
		"claim_id", claim.ID,
		"documents_transferred", moved.Count(),
	)
	uc.announce(ctx, result)
	return result, nil
}

// rollBack reopens a converted item whose claim does not exist, using the status captured in a
// pending ledger record. Without one the item goes back to new.
func (uc *ConversionUseCase) rollBack(ctx context.Context, item *domain.Inbox) error {
	status, processedAt := domain.InboxNew, (*time.Time)(nil)
	rec, err := uc.ledger.Find(ctx, domain.InternalInboxRef(item.ID))
	switch {
	case err == nil:
		if rec.State == domain.ConversionPending && rec.PreviousStatus.Open() {
			status, processedAt = rec.PreviousStatus, rec.PreviousProcessedAt
		}
	case !domain.IsKind(err, domain.ErrNotFound):
		return fmt.Errorf("look up conversion record: %w", err)
	}

	if err := uc.compensate(ctx, item.ID, item.ConvertedClaimID, status, processedAt); err != nil {
		return fmt.Errorf("roll back inbox item %s: %w", item.ID, err)
	}
	if uc.stats != nil {
		uc.stats.Invalidate()
	}
	uc.logger.WarnContext(ctx, "conversion_rolled_back",
		"inbox_id", item.ID,
		"claim_id", item.ConvertedClaimID,
		"restored_status", string(status),
	)
	return domain.WrapError(domain.ErrInvalidState, "reconcile inbox item",
		fmt.Errorf("%w: claim %s does not exist, inbox item %s restored to %s",
			domain.ErrConversionRolledBack, item.ConvertedClaimID, item.ID, status))
}

func (uc *ConversionUseCase) recordedClaim(ctx context.Context, item *domain.Inbox) (string, error) {
	if item.ConvertedClaimID != "" {
		return item.ConvertedClaimID, nil
	}
	rec, err := uc.ledger.Find(ctx, domain.InternalInboxRef(item.ID))
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return "", domain.WrapError(domain.ErrInvalidInput, "reconcile inbox item",
				fmt.Errorf("no claim recorded for inbox item %s; claim id is required", item.ID))
		}
		return "", fmt.Errorf("look up conversion record: %w", err)
	}
	return rec.ClaimID, nil
}

// reconcileLedger closes a pending ledger record whose inbox item is already gone.
func (uc *ConversionUseCase) reconcileLedger(ctx context.Context, ref domain.InboxRef, claimID string, missing error) (*domain.ConversionResult, error) {
	rec, err := uc.ledger.Find(ctx, ref)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load inbox item: %w", missing)
		}
		return nil, fmt.Errorf("look up conversion record: %w", err)
	}
	if rec.State == domain.ConversionCompleted || (claimID != "" && claimID != rec.ClaimID && claimID != rec.ExternalClaimID) {
		return nil, &domain.AlreadyConvertedError{InboxID: rec.InboxID, ConvertedClaimID: rec.ClaimID}
	}
	if _, err := uc.claims.Get(ctx, rec.ClaimID); err != nil {
		return nil, fmt.Errorf("load claim: %w", err)
	}
	if err := uc.complete(ctx, *rec, rec.DocumentsTransferred); err != nil {
		return nil, err
	}
	return &domain.ConversionResult{
		ConvertedClaimID:         rec.ClaimID,
		ConvertedExternalClaimID: rec.ExternalClaimID,
		DocumentsTransferred:     rec.DocumentsTransferred,
		OriginalInboxID:          rec.InboxID,
		Inbox:                    domain.InboxSnapshot{ID: rec.InboxID, ClaimID: rec.InboxClaimID},
	}, nil
}

// ReconcilePending reconciles ledger records left pending for longer than olderThan.
func (uc *ConversionUseCase) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	pending, err := uc.ledger.ListPending(ctx, uc.now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("list pending conversions: %w", err)
	}
	var (
		reconciled int
		errs       []error
	)
	for _, rec := range pending {
		_, err := uc.Reconcile(ctx, domain.InternalInboxRef(rec.InboxID), rec.ClaimID)
		if err != nil && !domain.IsKind(err, domain.ErrConversionRolledBack) {
			uc.logger.WarnContext(ctx, "conversion_reconcile_failed",
				"inbox_id", rec.InboxID,
				"claim_id", rec.ClaimID,
				"error", err.Error(),
			)
			errs = append(errs, err)
			continue
		}
		reconciled++
	}
	return reconciled, errors.Join(errs...)
}

func (uc *ConversionUseCase) announce(ctx context.Context, result *domain.ConversionResult) {
	if uc.stats != nil {
		uc.stats.Invalidate()
	}
	uc.logger.InfoContext(ctx, "inbox_converted",
		"inbox_id", result.OriginalInboxID,
		"claim_id", result.ConvertedClaimID,
		"external_claim_id", result.ConvertedExternalClaimID,
		"documents_transferred", result.DocumentsTransferred,
	)
	if uc.publisher == nil {
		return
	}
	event := domain.ClaimConverted{
		InboxID:              result.OriginalInboxID,
		ClaimID:              result.ConvertedClaimID,
		ExternalClaimID:      result.ConvertedExternalClaimID,
		DocumentsTransferred: result.DocumentsTransferred,
		ConvertedAt:          uc.now(),
	}
	if err := uc.publisher.PublishClaimConverted(ctx, event); err != nil {
		uc.logger.WarnContext(ctx, "claim_converted_publish_failed",
			"inbox_id", result.OriginalInboxID,
			"claim_id", result.ConvertedClaimID,
			"error", err.Error(),
		)
	}
}

func (uc *ConversionUseCase) observe(result *domain.ConversionResult, err error, elapsed time.Duration) {
	if uc.observer == nil {
		return
	}
	documents := 0
	if result != nil {
		documents = result.DocumentsTransferred
	}
	uc.observer.ConversionFinished(ConversionOutcome(err), documents, elapsed)
}

// ConversionOutcome labels a conversion error for metrics.
func ConversionOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeConverted
	case domain.IsKind(err, domain.ErrAlreadyConverted):
		return OutcomeAlreadyConverted
	case domain.IsKind(err, domain.ErrPartialConversion):
		return OutcomePartial
	case domain.IsKind(err, domain.ErrNotFound):
		return OutcomeNotFound
	case domain.IsKind(err, domain.ErrInvalidState):
		return OutcomeInvalidState
	default:
		return OutcomeFailed
	}
}
