// Package usage provides per-tenant token usage tracking for the AI gateway.
// It keeps an append-only in-memory ledger for stats and cost estimation, and
// can tee records into a durable sink for billing that survives restarts.
package usage

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"aigate/internal/core"
)

// Record represents a single completed provider call. Records are append-only
// and never mutated after creation.
type Record struct {
	ID               string        `json:"id"`
	TenantID         string        `json:"tenant_id"`
	Vertical         core.Vertical `json:"vertical"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	Timestamp        time.Time     `json:"timestamp"`
}

// Stats aggregates a tenant's usage over a period.
type Stats struct {
	TenantID         string  `json:"tenant_id"`
	PeriodDays       int     `json:"period_days"`
	Requests         int     `json:"requests"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// Tracker is the in-process usage ledger. Appends are O(1); stats scan the
// ledger. Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	records []Record
	pricing Pricing
	sink    Writer

	now func() time.Time
}

// Writer receives every tracked record, typically a buffered durable sink.
type Writer interface {
	Write(rec Record)
}

// NewTracker creates a usage tracker with the given price table.
// sink may be nil when durable usage persistence is disabled.
func NewTracker(pricing Pricing, sink Writer) *Tracker {
	if pricing == nil {
		pricing = DefaultPricing()
	}
	return &Tracker{
		pricing: pricing,
		sink:    sink,
		now:     time.Now,
	}
}

// Track appends a record to the ledger. Missing IDs and timestamps are
// filled in so callers only supply what they know.
func (t *Tracker) Track(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = t.now().UTC()
	}
	if rec.TotalTokens == 0 {
		rec.TotalTokens = rec.PromptTokens + rec.CompletionTokens
	}

	t.mu.Lock()
	t.records = append(t.records, rec)
	t.mu.Unlock()

	if t.sink != nil {
		t.sink.Write(rec)
	}
}

// Stats aggregates the tenant's records over the trailing periodDays
// (default 30) and estimates cost from the price table. Records for models
// missing from the table contribute tokens but no cost.
func (t *Tracker) Stats(tenantID string, periodDays int) Stats {
	if periodDays <= 0 {
		periodDays = 30
	}
	cutoff := t.now().UTC().AddDate(0, 0, -periodDays)

	stats := Stats{TenantID: tenantID, PeriodDays: periodDays}

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, rec := range t.records {
		if rec.TenantID != tenantID || rec.Timestamp.Before(cutoff) {
			continue
		}
		stats.Requests++
		stats.PromptTokens += rec.PromptTokens
		stats.CompletionTokens += rec.CompletionTokens
		stats.TotalTokens += rec.TotalTokens
		if cost, ok := t.pricing.Cost(rec.Model, rec.PromptTokens, rec.CompletionTokens); ok {
			stats.EstimatedCostUSD += cost
		}
	}
	return stats
}

// ClearOldRecords removes records older than olderThanDays and returns the
// count removed.
func (t *Tracker) ClearOldRecords(olderThanDays int) int {
	cutoff := t.now().UTC().AddDate(0, 0, -olderThanDays)

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.records[:0]
	for _, rec := range t.records {
		if !rec.Timestamp.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	removed := len(t.records) - len(kept)
	t.records = kept
	return removed
}

// Len returns the number of records currently held in memory.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
