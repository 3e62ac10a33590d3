package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fieldops_backend/internal/automation/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const settingsCachePrefix = "automation:settings:"

// SettingsCache keeps merged automation settings in Redis. Entries are keyed
// by a per-account generation; Invalidate bumps the generation, so a reader
// that loaded settings before an update writes to a key nobody reads again.
type SettingsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSettingsCache creates a cache with the given entry TTL.
func NewSettingsCache(client *redis.Client, ttl time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SettingsCache{client: client, ttl: ttl}
}

func generationKey(accountID uuid.UUID) string {
	return settingsCachePrefix + accountID.String() + ":gen"
}

func settingsKey(accountID uuid.UUID, generation int64) string {
	return fmt.Sprintf("%s%s:%d", settingsCachePrefix, accountID, generation)
}

// Get returns the cached settings, the generation they belong to and whether
// there was a hit. On a miss the generation is still valid for Set.
func (c *SettingsCache) Get(ctx context.Context, accountID uuid.UUID) (domain.Settings, int64, bool, error) {
	generation, err := c.client.Get(ctx, generationKey(accountID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Settings{}, 0, false, fmt.Errorf("settings cache generation: %w", err)
	}

	raw, err := c.client.Get(ctx, settingsKey(accountID, generation)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Settings{}, generation, false, nil
		}
		return domain.Settings{}, 0, false, fmt.Errorf("settings cache get: %w", err)
	}

	var settings domain.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it.
		return domain.Settings{}, generation, false, nil
	}
	return settings, generation, true, nil
}

// Set stores merged settings read under generation.
func (c *SettingsCache) Set(ctx context.Context, accountID uuid.UUID, generation int64, settings domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("settings cache encode: %w", err)
	}
	if err := c.client.Set(ctx, settingsKey(accountID, generation), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("settings cache set: %w", err)
	}
	return nil
}

// Invalidate moves the account to a new generation.
func (c *SettingsCache) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	if err := c.client.Incr(ctx, generationKey(accountID)).Err(); err != nil {
		return fmt.Errorf("settings cache invalidate: %w", err)
	}
	return nil
}
