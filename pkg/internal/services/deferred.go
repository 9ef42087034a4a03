package services

import (
	"context"
	"sync"

	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/plaza-social/plaza/pkg/internal/stores"
	"github.com/rs/zerolog/log"
)

// ViewQueue accrues view counts off the response path and flushes them in
// batches. Losing queued views on shutdown is acceptable; counts are
// best-effort by contract.
type ViewQueue struct {
	mu      sync.Mutex
	pending map[string]int64
}

func NewViewQueue() *ViewQueue {
	return &ViewQueue{pending: make(map[string]int64)}
}

func (q *ViewQueue) AddMany(postIDs []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range postIDs {
		q.pending[id]++
	}
}

// Flush writes accrued counts to the post store. Wired to a cron schedule
// from main; failures are logged and the counts dropped rather than retried.
func (q *ViewQueue) Flush(ctx context.Context, posts stores.PostStore) {
	q.mu.Lock()
	working := q.pending
	q.pending = make(map[string]int64)
	q.mu.Unlock()

	if len(working) == 0 {
		return
	}

	var failed int
	for id, delta := range working {
		if err := posts.IncrementCounter(ctx, id, stores.CounterViews, delta); err != nil {
			failed++
		}
	}
	if failed > 0 {
		log.Warn().Int("failed", failed).Int("total", len(working)).Msg("Some view count updates failed to flush...")
	} else {
		log.Debug().Int("posts", len(working)).Msg("Flushed view counts.")
	}
}

// Dispatch runs deferred tasks detached from the request; the caller invokes
// it after the response is already on the wire.
func Dispatch(tasks []models.DeferredTask) {
	for _, task := range tasks {
		go task(context.Background())
	}
}
