package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
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

// MaxHydrationDepth bounds the reference graph expansion. Listings use 0,
// detail views use 1; deeper is never required.
const MaxHydrationDepth = 1

const linkFetchConcurrency = 4

var urlPattern = regexp.MustCompile(`https?://[^\s)>\]]+`)

// Hydrator expands repost/quote references into a depth-bounded graph,
// resolves referenced polls/authors/link-previews in batch, and assembles the
// final per-post view model.
type Hydrator struct {
	posts    stores.PostStore
	polls    stores.PollStore
	identity stores.IdentityService
	links    stores.LinkMetadataService

	linkCache store.StoreInterface
}

func NewHydrator(
	posts stores.PostStore,
	polls stores.PollStore,
	identity stores.IdentityService,
	links stores.LinkMetadataService,
	linkCache store.StoreInterface,
) *Hydrator {
	return &Hydrator{
		posts:     posts,
		polls:     polls,
		identity:  identity,
		links:     links,
		linkCache: linkCache,
	}
}

type hydrationLookups struct {
	profiles map[string]models.ProfileSummary
	privacy  map[string]models.PrivacyToggles
	polls    map[string]models.PollSummary
	links    map[string]models.LinkPreview
}

// Hydrate turns raw candidates into view models. Seeds whose author is
// blocked by the viewer are dropped; any single external lookup failure
// degrades one field to a placeholder and never drops a post.
func (h *Hydrator) Hydrate(ctx context.Context, seeds []models.Post, viewer *models.ViewerContext, depth int) ([]models.HydratedPost, error) {
	if depth < 0 {
		depth = 0
	}
	if depth > MaxHydrationDepth {
		depth = MaxHydrationDepth
	}

	seeds = lo.Filter(seeds, func(post models.Post, _ int) bool {
		return !viewer.HasBlocked(post.AuthorID)
	})
	if len(seeds) == 0 {
		return []models.HydratedPost{}, nil
	}

	visited := make(map[string]models.Post, len(seeds))
	levels := make(map[string]int, len(seeds))
	frontier := make([]models.Post, 0, len(seeds))
	for _, post := range seeds {
		if _, ok := visited[post.ID]; ok {
			continue
		}
		visited[post.ID] = post
		levels[post.ID] = 0
		frontier = append(frontier, post)
	}

	// Breadth-first expansion, one batch fetch per depth level. A post
	// visited once is never re-fetched, which also makes cycles safe.
	maxLevel := 0
	for level := 0; level <= depth; level++ {
		var refIDs []string
		for _, post := range frontier {
			if ref := post.ReferenceID(); ref != nil {
				if _, ok := visited[*ref]; !ok {
					refIDs = append(refIDs, *ref)
				}
			}
		}
		refIDs = lo.Uniq(refIDs)
		if len(refIDs) == 0 {
			break
		}

		fetched, err := h.posts.FindByIDs(ctx, refIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to expand post references: %v", err)
		}
		frontier = frontier[:0]
		for _, post := range fetched {
			if viewer.HasBlocked(post.AuthorID) {
				continue
			}
			visited[post.ID] = post
			levels[post.ID] = level + 1
			frontier = append(frontier, post)
			maxLevel = level + 1
		}
	}

	lookups := h.batchLookups(ctx, visited, viewer)

	summaries := make(map[string]*models.HydratedPost, len(visited))
	for id, post := range visited {
		summary := h.buildSummary(post, viewer, lookups)
		summaries[id] = &summary
	}

	// Attach nested context bottom-up so a depth-1 request leaves the
	// reposted post's own nested summaries populated too.
	for level := maxLevel; level >= 0; level-- {
		for id, post := range visited {
			if levels[id] != level {
				continue
			}
			attachNested(summaries[id], post, summaries)
		}
	}

	out := make([]models.HydratedPost, 0, len(seeds))
	for _, post := range seeds {
		if summary, ok := summaries[post.ID]; ok {
			out = append(out, *summary)
		}
	}
	return out, nil
}

func attachNested(summary *models.HydratedPost, post models.Post, summaries map[string]*models.HydratedPost) {
	if post.RepostOf != nil {
		if ref, ok := summaries[*post.RepostOf]; ok {
			nested := *ref
			summary.OriginalPost = &nested
		}
	}
	if post.QuoteOf != nil {
		if ref, ok := summaries[*post.QuoteOf]; ok {
			nested := *ref
			summary.QuotedPost = &nested
		}
	}
}

// batchLookups resolves everything external over the whole visited set in
// parallel. A failed branch logs and leaves its map empty; per-post assembly
// substitutes placeholders.
func (h *Hydrator) batchLookups(ctx context.Context, visited map[string]models.Post, viewer *models.ViewerContext) hydrationLookups {
	authorIDs := make([]string, 0, len(visited))
	pollIDs := make([]string, 0)
	urls := make([]string, 0)
	for _, post := range visited {
		authorIDs = append(authorIDs, post.AuthorID)
		if post.PollID != nil && *post.PollID != "" {
			pollIDs = append(pollIDs, *post.PollID)
		}
		if url := firstURL(post.Content); url != "" {
			urls = append(urls, url)
		}
	}
	authorIDs = lo.Uniq(authorIDs)
	pollIDs = lo.Uniq(pollIDs)
	urls = lo.Uniq(urls)

	lookups := hydrationLookups{
		profiles: map[string]models.ProfileSummary{},
		privacy:  map[string]models.PrivacyToggles{},
		polls:    map[string]models.PollSummary{},
		links:    map[string]models.LinkPreview{},
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		profiles, err := h.identity.GetProfiles(groupCtx, authorIDs)
		if err != nil {
			log.Warn().Err(err).Int("authors", len(authorIDs)).Msg("Failed to batch load author profiles...")
			return nil
		}
		lookups.profiles = profiles
		return nil
	})
	group.Go(func() error {
		privacy, err := h.identity.GetPrivacy(groupCtx, authorIDs)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to batch load author privacy settings...")
			return nil
		}
		lookups.privacy = privacy
		return nil
	})
	if len(pollIDs) > 0 {
		group.Go(func() error {
			polls, err := h.polls.ListPolls(groupCtx, pollIDs)
			if err != nil {
				log.Warn().Err(err).Int("polls", len(pollIDs)).Msg("Failed to batch load polls...")
				return nil
			}
			lookups.polls = polls
			return nil
		})
	}
	group.Go(func() error {
		lookups.links = h.fetchLinkPreviews(groupCtx, urls)
		return nil
	})
	_ = group.Wait()

	// Privacy toggles already known from the viewer context take precedence.
	for authorID, toggles := range viewer.PrivacyOverrides() {
		lookups.privacy[authorID] = toggles
	}

	return lookups
}

// fetchLinkPreviews resolves previews with capped concurrency and per-URL
// deduplication; multiple posts often share a URL. Failures skip the preview.
func (h *Hydrator) fetchLinkPreviews(ctx context.Context, urls []string) map[string]models.LinkPreview {
	out := make(map[string]models.LinkPreview, len(urls))
	if len(urls) == 0 || h.links == nil {
		return out
	}

	var marshal *marshaler.Marshaler
	if h.linkCache != nil {
		marshal = marshaler.New(cache.New[any](h.linkCache))
	}

	type fetched struct {
		url     string
		preview models.LinkPreview
	}
	results := make(chan fetched, len(urls))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(linkFetchConcurrency)
	for _, url := range urls {
		group.Go(func() error {
			cacheKey := "link-preview#" + url
			if marshal != nil {
				if cached, err := marshal.Get(groupCtx, cacheKey, new(models.LinkPreview)); err == nil {
					results <- fetched{url: url, preview: *cached.(*models.LinkPreview)}
					return nil
				}
			}

			preview, err := h.links.FetchMetadata(groupCtx, url)
			if err != nil {
				log.Debug().Err(err).Str("url", url).Msg("Failed to fetch link metadata...")
				return nil
			}
			if marshal != nil {
				_ = marshal.Set(groupCtx, cacheKey, preview, store.WithExpiration(time.Hour))
			}
			results <- fetched{url: url, preview: preview}
			return nil
		})
	}
	_ = group.Wait()
	close(results)

	for item := range results {
		out[item.url] = item.preview
	}
	return out
}

func (h *Hydrator) buildSummary(post models.Post, viewer *models.ViewerContext, lookups hydrationLookups) models.HydratedPost {
	isOwner := viewer.Authenticated() && viewer.ViewerID == post.AuthorID

	author, ok := lookups.profiles[post.AuthorID]
	if !ok {
		author = models.PlaceholderProfile(post.AuthorID)
	}

	summary := models.HydratedPost{
		ID:         post.ID,
		AuthorID:   post.AuthorID,
		CreatedAt:  post.CreatedAt,
		EditedAt:   post.EditedAt,
		PinnedAt:   post.PinnedAt,
		Type:       post.Type,
		Kind:       post.ResolveKind(),
		Visibility: post.Visibility,
		// Restricted authors' posts stay in the feed but render collapsed,
		// unlike blocked ones which are dropped outright.
		Sensitive: post.Sensitive || viewer.IsRestricted(post.AuthorID),

		Content:  post.Content,
		Media:    post.Media,
		Article:  post.Article,
		Sources:  post.Sources,
		Location: post.Location,

		Author:     author,
		Engagement: engagementSummary(post, lookups.privacy[post.AuthorID], isOwner),
		Viewer: models.ViewerState{
			IsLiked:    viewer.HasLiked(post.ID),
			IsSaved:    viewer.HasSaved(post.ID),
			IsReposted: viewer.HasReposted(post.ID),
			IsOwner:    isOwner,
		},
		Permissions: models.PostPermissions{
			CanReply:  canReply(post, viewer, isOwner),
			CanEdit:   isOwner,
			CanDelete: isOwner,
			CanPin:    isOwner,
		},

		ParentThreadID: post.ThreadID,
		IsThreadParent: post.ThreadID != nil && *post.ThreadID == post.ID,
	}

	if post.PollID != nil {
		if poll, ok := lookups.polls[*post.PollID]; ok {
			summary.Poll = &poll
		}
	}
	if url := firstURL(post.Content); url != "" {
		if preview, ok := lookups.links[url]; ok {
			summary.LinkPreview = &preview
		}
	}

	return summary
}

// engagementSummary nulls out individual counters per the author's privacy
// toggles. Owners always see their own counts.
func engagementSummary(post models.Post, toggles models.PrivacyToggles, isOwner bool) models.EngagementSummary {
	summary := models.EngagementSummary{
		Reposts: lo.ToPtr(post.RepostCount),
		Views:   lo.ToPtr(post.ViewCount),
	}
	if isOwner || !toggles.HideLikeCount {
		summary.Likes = lo.ToPtr(post.LikeCount)
	}
	if isOwner || !toggles.HideReplyCount {
		summary.Comments = lo.ToPtr(post.CommentCount)
	}
	if isOwner || !toggles.HideShareCount {
		summary.Shares = lo.ToPtr(post.ShareCount)
	}
	if isOwner || !toggles.HideSaveCount {
		summary.Saves = lo.ToPtr(post.SaveCount)
	}
	return summary
}

func canReply(post models.Post, viewer *models.ViewerContext, isOwner bool) bool {
	if isOwner {
		return true
	}

	switch post.ReplyPermission {
	case models.ReplyPermissionFollowers:
		return viewer.IsFollowing(post.AuthorID)
	case models.ReplyPermissionFollowing:
		return viewer.IsFollowedBy(post.AuthorID)
	case models.ReplyPermissionMentioned:
		if !viewer.Authenticated() {
			return false
		}
		return strings.Contains(post.Content, "@"+viewer.ViewerID)
	default:
		return true
	}
}

func firstURL(content string) string {
	return urlPattern.FindString(content)
}

// SkeletonSummaries builds minimal view models straight from raw posts. Used
// as the degraded output when whole-batch hydration fails.
func SkeletonSummaries(posts []models.Post) []models.HydratedPost {
	return lo.Map(posts, func(post models.Post, _ int) models.HydratedPost {
		return models.HydratedPost{
			ID:         post.ID,
			AuthorID:   post.AuthorID,
			CreatedAt:  post.CreatedAt,
			Type:       post.Type,
			Kind:       post.ResolveKind(),
			Visibility: post.Visibility,
			Sensitive:  post.Sensitive,
			Content:    post.Content,
			Media:      post.Media,
			Author:     models.PlaceholderProfile(post.AuthorID),
		}
	})
}
