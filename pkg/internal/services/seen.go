package services

import (
	"context"
	"time"

	"github.com/plaza-social/plaza/pkg/internal/stores"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSeenTTL = 30 * time.Minute
	DefaultSeenCap = 1000
)

// SeenTracker answers "already shown in this session" for a viewer. It writes
// through to the shared store and degrades to an in-process fallback when the
// shared store is unreachable. The tracker is deliberately best-effort: the
// cursor is the authoritative pagination mechanism, the seen set only
// suppresses duplicate resurfacing when ranking reorders the same window.
type SeenTracker struct {
	shared   stores.SeenStore
	fallback stores.SeenStore
}

// NewSeenTracker wires the shared store with an in-process fallback. A nil
// shared store is allowed; everything then lands in the fallback.
func NewSeenTracker(shared stores.SeenStore, fallback stores.SeenStore) *SeenTracker {
	return &SeenTracker{shared: shared, fallback: fallback}
}

func (t *SeenTracker) SeenIDs(ctx context.Context, viewerID string) []string {
	if len(viewerID) == 0 {
		return nil
	}

	if t.shared != nil {
		ids, err := t.shared.Members(ctx, viewerID)
		if err == nil {
			return ids
		}
		log.Warn().Err(err).Str("viewer", viewerID).Msg("Seen store unreachable, falling back to in-process set...")
	}

	ids, err := t.fallback.Members(ctx, viewerID)
	if err != nil {
		log.Error().Err(err).Str("viewer", viewerID).Msg("Failed to read fallback seen set...")
		return nil
	}
	return ids
}

// MarkSeen records ids as shown. Failures are logged and never propagated;
// losing this state only risks duplicate resurfacing, never wrong content.
func (t *SeenTracker) MarkSeen(ctx context.Context, viewerID string, ids []string) {
	if len(viewerID) == 0 || len(ids) == 0 {
		return
	}

	if t.shared != nil {
		if err := t.shared.Add(ctx, viewerID, ids); err == nil {
			return
		} else {
			log.Warn().Err(err).Str("viewer", viewerID).Msg("Seen store write failed, falling back to in-process set...")
		}
	}

	if err := t.fallback.Add(ctx, viewerID, ids); err != nil {
		log.Error().Err(err).Str("viewer", viewerID).Msg("Failed to write fallback seen set...")
	}
}

// Clear resets the viewer's seen set in both stores (manual feed refresh).
func (t *SeenTracker) Clear(ctx context.Context, viewerID string) {
	if len(viewerID) == 0 {
		return
	}

	if t.shared != nil {
		if err := t.shared.Clear(ctx, viewerID); err != nil {
			log.Warn().Err(err).Str("viewer", viewerID).Msg("Failed to clear shared seen set...")
		}
	}
	if err := t.fallback.Clear(ctx, viewerID); err != nil {
		log.Warn().Err(err).Str("viewer", viewerID).Msg("Failed to clear fallback seen set...")
	}
}
