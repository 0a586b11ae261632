package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

type PolicyHolderUseCase struct {
	repo ports.PolicyHolderRepository
	now  func() time.Time
}

func NewPolicyHolderUseCase(repo ports.PolicyHolderRepository) *PolicyHolderUseCase {
	return &PolicyHolderUseCase{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (uc *PolicyHolderUseCase) Create(ctx context.Context, ph domain.PolicyHolder) (*domain.PolicyHolder, error) {
	ph.ApplyDefaults()
	if err := ph.Validate(); err != nil {
		return nil, err
	}
	now := uc.now()
	ph.ID = domain.NewPolicyHolderID()
	ph.CreatedAt = now
	ph.UpdatedAt = now
	if err := uc.repo.Create(ctx, &ph); err != nil {
		return nil, fmt.Errorf("create policyholder: %w", err)
	}
	return &ph, nil
}

func (uc *PolicyHolderUseCase) Get(ctx context.Context, id string) (*domain.PolicyHolder, error) {
	ph, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get policyholder: %w", err)
	}
	return ph, nil
}

func (uc *PolicyHolderUseCase) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.PolicyHolder], error) {
	page, err := page.Normalize()
	if err != nil {
		return domain.Page[domain.PolicyHolder]{}, err
	}
	items, total, err := uc.repo.List(ctx, page)
	if err != nil {
		return domain.Page[domain.PolicyHolder]{}, fmt.Errorf("list policyholders: %w", err)
	}
	return domain.NewPage(items, total, page), nil
}

func (uc *PolicyHolderUseCase) Update(ctx context.Context, id string, changes domain.Changes) (*domain.PolicyHolder, error) {
	if changes.Empty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update policyholder", errors.New("no fields to update"))
	}
	ph, err := uc.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, fmt.Errorf("update policyholder: %w", err)
	}
	return ph, nil
}

// Delete removes the policyholder together with its autoupload aliases.
func (uc *PolicyHolderUseCase) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete policyholder: %w", err)
	}
	return existed, nil
}
