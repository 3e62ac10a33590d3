package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetSettingsOverrides returns the stored overrides of an account; an account
// that never saved settings has empty overrides.
func (r *Repository) GetSettingsOverrides(ctx context.Context, accountID uuid.UUID) (domain.Overrides, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return domain.Overrides{}, err
	}

	var raw []byte
	err := r.pool.QueryRow(ctx, getSettingsOverridesQuery, accountID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Overrides{}, nil
		}
		return domain.Overrides{}, fmt.Errorf("failed to get automation settings: %w", err)
	}
	return decodeOverrides(raw)
}

// MergeSettingsOverrides merges the set keys of patch into the stored
// overrides atomically and returns the result.
func (r *Repository) MergeSettingsOverrides(ctx context.Context, accountID uuid.UUID, patch domain.Overrides) (domain.Overrides, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return domain.Overrides{}, err
	}

	encoded, err := json.Marshal(patch)
	if err != nil {
		return domain.Overrides{}, fmt.Errorf("failed to encode automation settings: %w", err)
	}

	var raw []byte
	if err := r.pool.QueryRow(ctx, mergeSettingsOverridesQuery, accountID, encoded).Scan(&raw); err != nil {
		return domain.Overrides{}, fmt.Errorf("failed to save automation settings: %w", err)
	}
	return decodeOverrides(raw)
}

func decodeOverrides(raw []byte) (domain.Overrides, error) {
	var overrides domain.Overrides
	if len(raw) == 0 {
		return overrides, nil
	}
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return domain.Overrides{}, fmt.Errorf("failed to decode automation settings: %w", err)
	}
	return overrides, nil
}
