package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/plaza-social/plaza/pkg/internal/queries"
	"github.com/plaza-social/plaza/pkg/internal/stores"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type FeedConfig struct {
	DefaultLimit int
	MaxLimit     int
	// Overfetch is the candidate multiplier for ranked feeds; ranking needs
	// headroom beyond the page size to reorder meaningfully.
	Overfetch int
}

func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		DefaultLimit: 20,
		MaxLimit:     200,
		Overfetch:    2,
	}
}

// FeedService is the per-feed-type composition layer. It wires the query
// builder, the post store, ranking, assembly, hydration and seen tracking in
// the right order for each feed type.
type FeedService struct {
	posts      stores.PostStore
	engagement stores.EngagementStore
	lists      stores.ListStore
	seen       *SeenTracker
	ranker     *Ranker
	hydrator   *Hydrator
	viewers    *ViewerContextBuilder
	views      *ViewQueue
	cfg        FeedConfig
}

func NewFeedService(
	posts stores.PostStore,
	engagement stores.EngagementStore,
	lists stores.ListStore,
	seen *SeenTracker,
	ranker *Ranker,
	hydrator *Hydrator,
	viewers *ViewerContextBuilder,
	views *ViewQueue,
	cfg FeedConfig,
) *FeedService {
	return &FeedService{
		posts:      posts,
		engagement: engagement,
		lists:      lists,
		seen:       seen,
		ranker:     ranker,
		hydrator:   hydrator,
		viewers:    viewers,
		views:      views,
		cfg:        cfg,
	}
}

// GetFeed serves one page of the requested feed. Validation problems are
// normalized, never failed: out-of-range limits clamp, unknown feed types
// fall back to mixed, malformed cursors read as no cursor.
func (s *FeedService) GetFeed(ctx context.Context, req models.FeedRequest) (models.FeedResult, error) {
	req = s.normalize(req)
	cursor := models.ParseCursor(req.Cursor)

	viewer := s.viewers.Build(ctx, req.ViewerID)

	if models.IsRankedFeed(req.Type) {
		return s.rankedFeed(ctx, req, viewer, cursor)
	}
	return s.chronologicalFeed(ctx, req, viewer, cursor)
}

func (s *FeedService) normalize(req models.FeedRequest) models.FeedRequest {
	if req.Limit <= 0 {
		req.Limit = s.cfg.DefaultLimit
	}
	if req.Limit > s.cfg.MaxLimit {
		req.Limit = s.cfg.MaxLimit
	}
	if !models.KnownFeedType(req.Type) {
		log.Debug().Str("type", req.Type).Msg("Unknown feed type requested, serving mixed...")
		req.Type = models.FeedTypeMixed
	}
	return req
}

func (s *FeedService) chronologicalFeed(ctx context.Context, req models.FeedRequest, viewer *models.ViewerContext, cursor *models.Cursor) (models.FeedResult, error) {
	input, err := s.buildInput(ctx, req, viewer, cursor)
	if err != nil {
		return models.FeedResult{}, err
	}

	predicate, sortKey, err := queries.Build(input)
	if errors.Is(err, queries.ErrEmptyDomain) {
		return models.FeedResult{Page: emptyPage()}, nil
	} else if err != nil {
		return models.FeedResult{}, err
	}

	// One extra row decides hasMore without a count query.
	raw, err := s.posts.List(ctx, stores.PostQuery{
		Predicate: predicate,
		Sort:      sortKey,
		Limit:     req.Limit + 1,
	})
	if err != nil {
		return models.FeedResult{}, fmt.Errorf("failed to fetch feed candidates: %w", err)
	}

	rawCount := len(raw)
	candidates := DedupePosts(raw)
	if len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}

	page := s.finishPage(ctx, req, viewer, candidates, PageParams{
		Limit:      req.Limit,
		RawCount:   rawCount,
		PrevCursor: cursor,
	})
	return models.FeedResult{Page: page, Deferred: s.deferredFor(req, page)}, nil
}

func (s *FeedService) rankedFeed(ctx context.Context, req models.FeedRequest, viewer *models.ViewerContext, cursor *models.Cursor) (models.FeedResult, error) {
	input, err := s.buildInput(ctx, req, viewer, cursor)
	if err != nil {
		return models.FeedResult{}, err
	}

	predicate, sortKey, err := queries.Build(input)
	if errors.Is(err, queries.ErrEmptyDomain) {
		return models.FeedResult{Page: emptyPage()}, nil
	} else if err != nil {
		return models.FeedResult{}, err
	}

	// Ranked pages all score the same overfetch window, so pagination runs
	// dry after roughly Overfetch*Limit items even when more candidates
	// exist. Going deeper would need score keyset pagination pushed into the
	// store; the window is kept larger than any client scrolls in practice.
	raw, err := s.posts.List(ctx, stores.PostQuery{
		Predicate: predicate,
		Sort:      sortKey,
		Limit:     req.Limit*s.cfg.Overfetch + 1,
	})
	if err != nil {
		return models.FeedResult{}, fmt.Errorf("failed to fetch feed candidates: %w", err)
	}

	mode := RankModePersonal
	if req.Type == models.FeedTypeExplore || !viewer.Authenticated() {
		mode = RankModeTrending
	}

	scored := s.ranker.Rank(DedupePosts(raw), viewer, mode)
	scored = s.ranker.AfterCursor(scored, cursor)

	// The post-cursor count drives hasMore; the raw fetch may still contain
	// rows from pages already served.
	rawCount := len(scored)
	if len(scored) > req.Limit {
		scored = scored[:req.Limit]
	}

	scores := make(map[string]float64, len(scored))
	candidates := make([]models.Post, len(scored))
	for i, candidate := range scored {
		scores[candidate.ID] = candidate.Score
		candidates[i] = candidate.Post
	}

	page := s.finishPage(ctx, req, viewer, candidates, PageParams{
		Limit:      req.Limit,
		RawCount:   rawCount,
		PrevCursor: cursor,
		Scores:     scores,
	})
	return models.FeedResult{Page: page, Deferred: s.deferredFor(req, page)}, nil
}

// finishPage attaches viewer state, hydrates, re-dedupes and assembles. A
// whole-batch hydration failure degrades to raw skeletons with an explicit
// marker rather than an empty page.
func (s *FeedService) finishPage(ctx context.Context, req models.FeedRequest, viewer *models.ViewerContext, candidates []models.Post, params PageParams) models.FeedPage {
	candidateIDs := lo.Map(candidates, func(post models.Post, _ int) string {
		return post.ID
	})
	s.viewers.AttachBatch(ctx, viewer, candidateIDs)

	items, err := s.hydrator.Hydrate(ctx, candidates, viewer, 0)
	if err != nil {
		log.Error().Err(err).Str("feed", req.Type).Msg("Hydration failed for the whole batch, serving raw posts...")
		page := AssemblePage(SkeletonSummaries(candidates), params)
		page.HydrationFailed = true
		return page
	}

	return AssemblePage(DedupeHydrated(items), params)
}

func (s *FeedService) buildInput(ctx context.Context, req models.FeedRequest, viewer *models.ViewerContext, cursor *models.Cursor) (queries.BuildInput, error) {
	input := queries.BuildInput{
		FeedType: req.Type,
		Filters:  req.Filters,
		ViewerID: req.ViewerID,
		Cursor:   cursor,
	}

	switch req.Type {
	case models.FeedTypeFollowing:
		input.FollowingIDs = lo.Keys(viewer.Following)
	case models.FeedTypeSaved:
		ids, err := s.engagement.SavedPostIDs(ctx, req.ViewerID)
		if err != nil {
			return input, fmt.Errorf("failed to load bookmark list: %v", err)
		}
		input.SavedIDs = ids
	case models.FeedTypeForYou:
		input.SeenIDs = s.seen.SeenIDs(ctx, req.ViewerID)
	case models.FeedTypeCustom:
		if req.Filters != nil {
			if len(req.Filters.OwnerID) == 0 {
				req.Filters.OwnerID = req.ViewerID
			}
			members := make(map[string][]string, len(req.Filters.ListSources))
			for _, listID := range req.Filters.ListSources {
				ids, err := s.lists.MemberIDs(ctx, listID)
				if err != nil {
					log.Warn().Err(err).Str("list", listID).Msg("Failed to expand list source...")
					continue
				}
				members[listID] = ids
			}
			input.CustomAuthors = queries.ResolveCustomAuthors(req.Filters, members)
		}
	}

	return input, nil
}

// deferredFor emits the best-effort work to run after the response is sent:
// seen-set marking for the ranked personal feed and view-count accrual.
func (s *FeedService) deferredFor(req models.FeedRequest, page models.FeedPage) []models.DeferredTask {
	if len(page.Items) == 0 {
		return nil
	}

	ids := lo.Map(page.Items, func(item models.HydratedPost, _ int) string {
		return item.ID
	})

	var tasks []models.DeferredTask
	if req.Type == models.FeedTypeForYou && len(req.ViewerID) > 0 {
		viewerID := req.ViewerID
		tasks = append(tasks, func(ctx context.Context) {
			s.seen.MarkSeen(ctx, viewerID, ids)
		})
	}
	if s.views != nil {
		tasks = append(tasks, func(ctx context.Context) {
			s.views.AddMany(ids)
		})
	}
	return tasks
}

// GetPostDetail hydrates a single post at depth 1 for detail views.
func (s *FeedService) GetPostDetail(ctx context.Context, postID, viewerID string) (models.HydratedPost, []models.DeferredTask, error) {
	posts, err := s.posts.FindByIDs(ctx, []string{postID})
	if err != nil {
		return models.HydratedPost{}, nil, fmt.Errorf("failed to load post: %w", err)
	}
	if len(posts) == 0 {
		return models.HydratedPost{}, nil, stores.ErrNotFound
	}

	viewer := s.viewers.Build(ctx, viewerID)
	if viewer.HasBlocked(posts[0].AuthorID) {
		return models.HydratedPost{}, nil, stores.ErrNotFound
	}
	s.viewers.AttachBatch(ctx, viewer, []string{postID})

	items, err := s.hydrator.Hydrate(ctx, posts, viewer, 1)
	if err != nil {
		return models.HydratedPost{}, nil, fmt.Errorf("failed to hydrate post: %v", err)
	}
	if len(items) == 0 {
		return models.HydratedPost{}, nil, stores.ErrNotFound
	}

	var deferred []models.DeferredTask
	if s.views != nil {
		deferred = append(deferred, func(ctx context.Context) {
			s.views.AddMany([]string{postID})
		})
	}
	return items[0], deferred, nil
}

// RefreshFeed clears the viewer's seen set (manual refresh).
func (s *FeedService) RefreshFeed(ctx context.Context, viewerID string) {
	s.seen.Clear(ctx, viewerID)
}

func emptyPage() models.FeedPage {
	return models.FeedPage{Items: []models.HydratedPost{}}
}
