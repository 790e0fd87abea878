// Package cache persists the most recent ResultSet per hotel/date key.
//
// The store is injected rather than ambient so the eviction policy is owned by
// whoever wires the service: the in-memory backend bounds growth with a
// capacity plus TTL, the Redis backend leans on native key expiry.
package cache

import (
	"context"

	"github.com/staywatch/room-deals/backend/internal/models"
)

// Store is the result cache seen by the pipeline. Put overwrites whole result
// sets atomically; readers never observe a partial set. Get's second return
// reports presence.
type Store interface {
	Get(ctx context.Context, key string) (models.ResultSet, bool, error)
	Put(ctx context.Context, key string, set models.ResultSet) error
	Ping(ctx context.Context) error
}
