package service

import (
	"context"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/internal/tenant"

	"github.com/google/uuid"
)

// GetAutomationSettings returns the account's toggles with defaults merged in.
// Cache failures degrade to a database read. A miss is filled under the
// generation observed before the read, so an update that lands in between
// leaves the fill unreachable.
func (s *Service) GetAutomationSettings(ctx context.Context, accountID uuid.UUID) (domain.Settings, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return domain.Settings{}, err
	}

	fill := false
	var generation int64
	if s.cache != nil {
		cached, gen, hit, err := s.cache.Get(ctx, accountID)
		switch {
		case err != nil:
			s.log.WithContext(ctx).Warn("automation settings cache read failed", "account_id", accountID, "error", err)
		case hit:
			return cached, nil
		default:
			fill, generation = true, gen
		}
	}

	overrides, err := s.store.GetSettingsOverrides(ctx, accountID)
	if err != nil {
		return domain.Settings{}, err
	}
	settings := domain.Merge(s.defaults, overrides)

	if fill {
		if err := s.cache.Set(ctx, accountID, generation, settings); err != nil {
			s.log.WithContext(ctx).Warn("automation settings cache write failed", "account_id", accountID, "error", err)
		}
	}
	return settings, nil
}

// UpdateAutomationSettings stores the set keys of patch and returns the new
// merged settings. Toggling only gates future scheduling; items already
// scheduled keep running.
func (s *Service) UpdateAutomationSettings(ctx context.Context, accountID uuid.UUID, patch domain.Overrides) (domain.Settings, error) {
	overrides, err := s.store.MergeSettingsOverrides(ctx, accountID, patch)
	if err != nil {
		return domain.Settings{}, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, accountID); err != nil {
			s.log.WithContext(ctx).Warn("automation settings cache invalidate failed", "account_id", accountID, "error", err)
		}
	}
	return domain.Merge(s.defaults, overrides), nil
}
