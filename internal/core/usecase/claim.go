package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

const defaultMatchedBy = "manual"

type ClaimUseCase struct {
	repo    ports.ClaimRepository
	holders ports.PolicyHolderRepository
	now     func() time.Time
}

func NewClaimUseCase(repo ports.ClaimRepository, holders ports.PolicyHolderRepository) *ClaimUseCase {
	return &ClaimUseCase{
		repo:    repo,
		holders: holders,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ClaimUseCase) Create(ctx context.Context, details domain.ClaimDetails) (*domain.Claim, error) {
	details.ApplyDefaults()
	if err := details.Validate(); err != nil {
		return nil, err
	}
	if err := requirePolicyHolder(ctx, uc.holders, details.PolicyholderID); err != nil {
		return nil, err
	}

	now := uc.now()
	claim := &domain.Claim{
		ID:           domain.NewClaimID(),
		ClaimID:      domain.NewExternalClaimID(),
		ClaimDetails: details,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.repo.Create(ctx, claim); err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	return claim, nil
}

func (uc *ClaimUseCase) Get(ctx context.Context, id string) (*domain.Claim, error) {
	claim, err := uc.repo.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return claim, nil
}

func (uc *ClaimUseCase) Search(ctx context.Context, filter domain.ClaimFilter) (domain.Page[domain.Claim], error) {
	if err := filter.Validate(); err != nil {
		return domain.Page[domain.Claim]{}, err
	}
	page, err := filter.Page.Normalize()
	if err != nil {
		return domain.Page[domain.Claim]{}, err
	}
	filter.Page = page

	claims, total, err := uc.repo.Search(ctx, filter)
	if err != nil {
		return domain.Page[domain.Claim]{}, fmt.Errorf("search claims: %w", err)
	}
	return domain.NewPage(claims, total, page), nil
}

func (uc *ClaimUseCase) Update(ctx context.Context, id string, changes domain.Changes) (*domain.Claim, error) {
	if changes.Empty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update claim", errors.New("no fields to update"))
	}
	if v, ok := changes.Value("policyholder_id"); ok {
		if phID, _ := v.(string); phID != "" {
			if err := requirePolicyHolder(ctx, uc.holders, phID); err != nil {
				return nil, err
			}
		}
	}
	claim, err := uc.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, fmt.Errorf("update claim: %w", err)
	}
	return claim, nil
}

// UpdateStatus sets the claim status and merges metadata into the stored map in one write.
func (uc *ClaimUseCase) UpdateStatus(ctx context.Context, id string, status domain.ClaimStatus, metadata map[string]any) (*domain.Claim, error) {
	if !status.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update claim status", fmt.Errorf("claim_status %q is not supported", status))
	}
	claim, err := uc.repo.UpdateStatus(ctx, id, status, metadata)
	if err != nil {
		return nil, fmt.Errorf("update claim status: %w", err)
	}
	return claim, nil
}

func (uc *ClaimUseCase) AssociatePolicyHolder(ctx context.Context, id, policyHolderID, matchedBy string) (*domain.Claim, error) {
	policyHolderID = strings.TrimSpace(policyHolderID)
	if policyHolderID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "associate policyholder", errors.New("policyholder_id is required"))
	}
	if strings.TrimSpace(matchedBy) == "" {
		matchedBy = defaultMatchedBy
	}
	if err := requirePolicyHolder(ctx, uc.holders, policyHolderID); err != nil {
		return nil, err
	}
	claim, err := uc.repo.Update(ctx, id, domain.Changes{
		{Column: "policyholder_id", Value: policyHolderID},
		{Column: "matched_by", Value: matchedBy},
	})
	if err != nil {
		return nil, fmt.Errorf("associate policyholder: %w", err)
	}
	return claim, nil
}

func (uc *ClaimUseCase) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete claim: %w", err)
	}
	return existed, nil
}
