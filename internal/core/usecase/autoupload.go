package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

type AutouploadEmailUseCase struct {
	repo          ports.AutouploadEmailRepository
	holders       ports.PolicyHolderRepository
	defaultDomain string
	now           func() time.Time
}

func NewAutouploadEmailUseCase(
	repo ports.AutouploadEmailRepository,
	holders ports.PolicyHolderRepository,
	defaultDomain string,
) *AutouploadEmailUseCase {
	return &AutouploadEmailUseCase{
		repo:          repo,
		holders:       holders,
		defaultDomain: defaultDomain,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (uc *AutouploadEmailUseCase) List(ctx context.Context, policyHolderID, alias string) ([]domain.AutouploadEmail, error) {
	if err := uc.ensureHolder(ctx, policyHolderID); err != nil {
		return nil, err
	}
	emails, err := uc.repo.ListByPolicyHolder(ctx, policyHolderID, alias)
	if err != nil {
		return nil, fmt.Errorf("list autoupload emails: %w", err)
	}
	return emails, nil
}

func (uc *AutouploadEmailUseCase) Get(ctx context.Context, policyHolderID, alias string) (*domain.AutouploadEmail, error) {
	email, err := uc.repo.GetByAlias(ctx, policyHolderID, alias)
	if err != nil {
		return nil, fmt.Errorf("get autoupload email: %w", err)
	}
	return email, nil
}

// Upsert creates the alias or refreshes the existing (alias, policyholder) pair.
func (uc *AutouploadEmailUseCase) Upsert(ctx context.Context, email domain.AutouploadEmail) (*domain.AutouploadEmail, error) {
	email.Normalize()
	if email.Domain == "" {
		email.Domain = uc.defaultDomain
	}
	if err := email.Validate(); err != nil {
		return nil, err
	}
	if err := uc.ensureHolder(ctx, email.PolicyHolderID); err != nil {
		return nil, err
	}
	now := uc.now()
	email.ID = domain.NewAutouploadEmailID()
	email.CreatedAt = now
	email.UpdatedAt = now
	saved, err := uc.repo.Upsert(ctx, &email)
	if err != nil {
		return nil, fmt.Errorf("upsert autoupload email: %w", err)
	}
	return saved, nil
}

func (uc *AutouploadEmailUseCase) Delete(ctx context.Context, policyHolderID, alias string) (*domain.AutouploadEmail, error) {
	deleted, err := uc.repo.DeleteByAlias(ctx, policyHolderID, alias)
	if err != nil {
		return nil, fmt.Errorf("delete autoupload email: %w", err)
	}
	return deleted, nil
}

func (uc *AutouploadEmailUseCase) ensureHolder(ctx context.Context, id string) error {
	if _, err := uc.holders.GetByID(ctx, id); err != nil {
		return fmt.Errorf("get policyholder: %w", err)
	}
	return nil
}
