package services

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/plaza-social/plaza/pkg/internal/stores"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// relationshipState is the cacheable slice of a viewer context: everything
// that does not depend on the candidate batch.
type relationshipState struct {
	Blocked    []string               `json:"blocked"`
	Restricted []string               `json:"restricted"`
	Following  []string               `json:"following"`
	Followers  []string               `json:"followers"`
	Weights    models.PersonalWeights `json:"weights"`
	Privacy    models.PrivacyToggles  `json:"privacy"`
}

// ViewerContextBuilder assembles the read-only per-request viewer context.
// Relationship lists are cached for a short window; batch membership sets are
// always fetched fresh since the candidate ids differ per request.
type ViewerContextBuilder struct {
	identity    stores.IdentityService
	blocks      stores.BlockStore
	engagement  stores.EngagementStore
	preferences stores.PreferenceStore

	cacheStore store.StoreInterface
	cacheTTL   time.Duration
}

func NewViewerContextBuilder(
	identity stores.IdentityService,
	blocks stores.BlockStore,
	engagement stores.EngagementStore,
	preferences stores.PreferenceStore,
	cacheStore store.StoreInterface,
) *ViewerContextBuilder {
	return &ViewerContextBuilder{
		identity:    identity,
		blocks:      blocks,
		engagement:  engagement,
		preferences: preferences,
		cacheStore:  cacheStore,
		cacheTTL:    5 * time.Minute,
	}
}

// Build fans out the independent relationship lookups and joins them into one
// context. A failed branch degrades to an empty set; it never fails the
// request. Batch membership sets are attached later, once the candidate ids
// are known (AttachBatch).
func (b *ViewerContextBuilder) Build(ctx context.Context, viewerID string) *models.ViewerContext {
	if len(viewerID) == 0 {
		return models.AnonymousViewer()
	}

	viewer := &models.ViewerContext{ViewerID: viewerID}

	state := b.relationships(ctx, viewerID)
	viewer.Blocked = toSet(state.Blocked)
	viewer.Restricted = toSet(state.Restricted)
	viewer.Following = toSet(state.Following)
	viewer.Followers = toSet(state.Followers)
	viewer.AuthorWeights = state.Weights.Authors
	viewer.TopicWeights = state.Weights.Topics
	viewer.TypeWeights = state.Weights.Types
	viewer.Privacy = map[string]models.PrivacyToggles{viewerID: state.Privacy}

	return viewer
}

// AttachBatch fills the like/save/repost membership sets for the current
// candidate batch. Always fetched fresh; the batch differs per request.
func (b *ViewerContextBuilder) AttachBatch(ctx context.Context, viewer *models.ViewerContext, candidateIDs []string) {
	if !viewer.Authenticated() || len(candidateIDs) == 0 {
		return
	}

	viewerID := viewer.ViewerID
	candidateIDs = lo.Uniq(candidateIDs)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		liked, err := b.engagement.LikedIDs(groupCtx, viewerID, candidateIDs)
		if err == nil {
			viewer.Liked = liked
		}
		return nil
	})
	group.Go(func() error {
		saved, err := b.engagement.SavedIDs(groupCtx, viewerID, candidateIDs)
		if err == nil {
			viewer.Saved = saved
		}
		return nil
	})
	group.Go(func() error {
		reposted, err := b.engagement.RepostedIDs(groupCtx, viewerID, candidateIDs)
		if err == nil {
			viewer.Reposted = reposted
		}
		return nil
	})
	_ = group.Wait()
}

func (b *ViewerContextBuilder) relationships(ctx context.Context, viewerID string) relationshipState {
	cacheKey := fmt.Sprintf("viewer-relationships#%s", viewerID)

	var marshal *marshaler.Marshaler
	if b.cacheStore != nil {
		marshal = marshaler.New(cache.New[any](b.cacheStore))
		if cached, err := marshal.Get(ctx, cacheKey, new(relationshipState)); err == nil {
			return *cached.(*relationshipState)
		}
	}

	var state relationshipState
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		ids, err := b.blocks.BlockedIDs(groupCtx, viewerID)
		if err != nil {
			log.Warn().Err(err).Str("viewer", viewerID).Msg("Failed to load block list...")
			return nil
		}
		state.Blocked = ids
		return nil
	})
	group.Go(func() error {
		ids, err := b.blocks.RestrictedIDs(groupCtx, viewerID)
		if err != nil {
			log.Warn().Err(err).Str("viewer", viewerID).Msg("Failed to load restricted list...")
			return nil
		}
		state.Restricted = ids
		return nil
	})
	group.Go(func() error {
		ids, err := b.identity.GetFollowing(groupCtx, viewerID)
		if err != nil {
			log.Warn().Err(err).Str("viewer", viewerID).Msg("Failed to load following list...")
			return nil
		}
		state.Following = ids
		return nil
	})
	group.Go(func() error {
		ids, err := b.identity.GetFollowers(groupCtx, viewerID)
		if err != nil {
			log.Warn().Err(err).Str("viewer", viewerID).Msg("Failed to load follower list...")
			return nil
		}
		state.Followers = ids
		return nil
	})
	if b.preferences != nil {
		group.Go(func() error {
			weights, err := b.preferences.Weights(groupCtx, viewerID)
			if err != nil {
				log.Warn().Err(err).Str("viewer", viewerID).Msg("Failed to load personal weights...")
				return nil
			}
			state.Weights = weights
			return nil
		})
	}
	group.Go(func() error {
		privacy, err := b.identity.GetPrivacy(groupCtx, []string{viewerID})
		if err != nil {
			log.Warn().Err(err).Str("viewer", viewerID).Msg("Failed to load privacy toggles...")
			return nil
		}
		state.Privacy = privacy[viewerID]
		return nil
	})
	_ = group.Wait()

	if marshal != nil {
		_ = marshal.Set(ctx, cacheKey, state,
			store.WithExpiration(b.cacheTTL),
			store.WithTags([]string{"viewer-relationships", fmt.Sprintf("viewer#%s", viewerID)}),
		)
	}
	return state
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
