package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/posledger/internal/domain"
	apperrors "github.com/utafrali/posledger/pkg/errors"
)

const keyPrefix = "pos:ledger:"

// LedgerCache implements repository.LedgerCache using Redis.
type LedgerCache struct {
	client     *redis.Client
	terminalID string
	ttl        time.Duration
}

// NewLedgerCache creates a Redis-backed ledger cache for one terminal. A
// zero ttl keeps the entry until it is replaced.
func NewLedgerCache(client *redis.Client, terminalID string, ttl time.Duration) *LedgerCache {
	return &LedgerCache{
		client:     client,
		terminalID: terminalID,
		ttl:        ttl,
	}
}

func (c *LedgerCache) key() string {
	return keyPrefix + c.terminalID
}

// Save stores the ledger as a single JSON document.
func (c *LedgerCache) Save(ctx context.Context, ledger *domain.Ledger) error {
	if ledger == nil {
		return fmt.Errorf("save ledger: nil ledger")
	}

	data, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if err := c.client.Set(ctx, c.key(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set ledger: %w", err)
	}

	return nil
}

// Load returns the cached ledger.
func (c *LedgerCache) Load(ctx context.Context) (*domain.Ledger, error) {
	data, err := c.client.Get(ctx, c.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("ledger", c.terminalID)
		}
		return nil, fmt.Errorf("redis get ledger: %w", err)
	}

	var ledger domain.Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("unmarshal ledger: %w", err)
	}

	return &ledger, nil
}

// Ping verifies the Redis connection.
func (c *LedgerCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
