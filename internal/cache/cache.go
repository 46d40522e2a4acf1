// Package cache provides response caching for the AI gateway.
// Supports an in-memory LRU/TTL backend and Redis for multi-instance deployments.
package cache

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"aigate/internal/core"
)

// Store defines the interface for response cache storage.
// Implementations must be safe for concurrent use. A lost or unavailable
// cache never changes correctness, only repeats provider work.
type Store interface {
	// Get retrieves a cached value. The second return is false on a miss.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value under key, subject to the backend's TTL and capacity.
	Set(ctx context.Context, key, value string) error

	// Has reports whether a live entry exists without touching recency.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes an entry.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Key derives a deterministic cache key from the messages and options of a
// chat call. TenantID is deliberately not part of the key: identical prompts
// share cached answers across tenants, trading isolation for provider cost.
func Key(messages []core.Message, opts core.ModelOptions) string {
	payload := struct {
		Messages []core.Message    `json:"messages"`
		Options  core.ModelOptions `json:"options"`
	}{messages, opts}

	// Struct field order makes this serialization stable.
	data, err := json.Marshal(payload)
	if err != nil {
		// Messages and options are plain data; marshal cannot fail in practice.
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
