package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/plaza-social/plaza/pkg/internal/stores"
	"github.com/samber/lo"
)

type feedFixture struct {
	posts      *stores.MemoryPostStore
	identity   *stores.MemoryIdentity
	blocks     *stores.MemoryBlocks
	engagement *stores.MemoryEngagement
	lists      *stores.MemoryLists
	polls      *stores.MemoryPolls
	links      *stores.MemoryLinks
	prefs      *stores.MemoryPreferences
	tracker    *SeenTracker
	views      *ViewQueue
	feed       *FeedService
}

func newFeedFixture() *feedFixture {
	f := &feedFixture{
		posts:      stores.NewMemoryPostStore(),
		identity:   stores.NewMemoryIdentity(),
		blocks:     stores.NewMemoryBlocks(),
		engagement: stores.NewMemoryEngagement(),
		lists:      stores.NewMemoryLists(),
		polls:      stores.NewMemoryPolls(),
		links:      stores.NewMemoryLinks(),
		prefs:      stores.NewMemoryPreferences(),
		views:      NewViewQueue(),
	}
	f.tracker = NewSeenTracker(nil, stores.NewMemorySeenStore(DefaultSeenTTL, DefaultSeenCap))
	f.feed = NewFeedService(
		f.posts,
		f.engagement,
		f.lists,
		f.tracker,
		NewRanker(DefaultRankingConfig()),
		NewHydrator(f.posts, f.polls, f.identity, f.links, nil),
		NewViewerContextBuilder(f.identity, f.blocks, f.engagement, f.prefs, nil),
		f.views,
		DefaultFeedConfig(),
	)
	return f
}

func (f *feedFixture) seedPublished(count int, author string) {
	for i := 1; i <= count; i++ {
		f.posts.Seed(models.Post{
			ID:         fmt.Sprintf("p%03d", i),
			AuthorID:   author,
			Status:     models.PostStatusPublished,
			Visibility: models.PostVisibilityPublic,
			Content:    fmt.Sprintf("post %d", i),
		})
	}
}

func itemIDs(page models.FeedPage) []string {
	return lo.Map(page.Items, func(item models.HydratedPost, _ int) string {
		return item.ID
	})
}

func TestGetFeed_ChronologicalPaginationTerminates(t *testing.T) {
	f := newFeedFixture()
	f.seedPublished(45, "alice")
	ctx := context.Background()

	var all []string
	cursor := ""
	pages := 0
	for {
		result, err := f.feed.GetFeed(ctx, models.FeedRequest{
			Type:   models.FeedTypePosts,
			Limit:  20,
			Cursor: cursor,
		})
		require.NoError(t, err)
		pages++
		all = append(all, itemIDs(result.Page)...)

		if !result.Page.HasMore {
			break
		}
		require.NotNil(t, result.Page.NextCursor)
		cursor = *result.Page.NextCursor
		require.Less(t, pages, 10, "pagination must terminate")
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, all, 45)
	assert.Len(t, lo.Uniq(all), 45, "no post may repeat across pages")
	assert.Equal(t, "p045", all[0])
	assert.Equal(t, "p001", all[len(all)-1])
	assert.True(t, lo.EveryBy(lo.Zip2(all[:len(all)-1], all[1:]), func(pair lo.Tuple2[string, string]) bool {
		return pair.A > pair.B
	}), "ids must be strictly descending")
}

func TestGetFeed_LimitClampsAndDefaults(t *testing.T) {
	f := newFeedFixture()
	f.seedPublished(30, "alice")
	ctx := context.Background()

	result, err := f.feed.GetFeed(ctx, models.FeedRequest{Type: models.FeedTypePosts})
	require.NoError(t, err)
	assert.Len(t, result.Page.Items, 20)

	result, err = f.feed.GetFeed(ctx, models.FeedRequest{Type: models.FeedTypePosts, Limit: 100000})
	require.NoError(t, err)
	assert.Len(t, result.Page.Items, 30)
}

func TestGetFeed_UnknownTypeServesMixed(t *testing.T) {
	f := newFeedFixture()
	f.seedPublished(3, "alice")

	result, err := f.feed.GetFeed(context.Background(), models.FeedRequest{Type: "bogus"})
	require.NoError(t, err)
	assert.Len(t, result.Page.Items, 3)
}

func TestGetFeed_MalformedCursorReadsAsFirstPage(t *testing.T) {
	f := newFeedFixture()
	f.seedPublished(5, "alice")

	result, err := f.feed.GetFeed(context.Background(), models.FeedRequest{
		Type:   models.FeedTypePosts,
		Cursor: "!!not-a-cursor!!",
	})
	require.NoError(t, err)
	assert.Len(t, result.Page.Items, 5)
}

func TestGetFeed_FollowingNobodyIsEmpty(t *testing.T) {
	f := newFeedFixture()
	f.seedPublished(5, "alice")

	result, err := f.feed.GetFeed(context.Background(), models.FeedRequest{
		Type:     models.FeedTypeFollowing,
		ViewerID: "viewer",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Page.Items)
	assert.False(t, result.Page.HasMore)
	assert.Nil(t, result.Page.NextCursor)
}

func TestGetFeed_FollowingRestrictsToFollowedAuthors(t *testing.T) {
	f := newFeedFixture()
	f.identity.Following["viewer"] = []string{"alice"}
	f.posts.Seed(
		models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusPublished, Visibility: models.PostVisibilityPublic},
		models.Post{ID: "p2", AuthorID: "alice", Status: models.PostStatusPublished, Visibility: models.PostVisibilityFollowers},
		models.Post{ID: "p3", AuthorID: "bob", Status: models.PostStatusPublished, Visibility: models.PostVisibilityPublic},
	)

	result, err := f.feed.GetFeed(context.Background(), models.FeedRequest{
		Type:     models.FeedTypeFollowing,
		ViewerID: "viewer",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, itemIDs(result.Page))
}

func TestGetFeed_SavedFeedUsesBookmarkAllowlist(t *testing.T) {
	f := newFeedFixture()
	f.seedPublished(5, "alice")
	f.engagement.MarkSaved("viewer", "p002")
	f.engagement.MarkSaved("viewer", "p004")

	result, err := f.feed.GetFeed(context.Background(), models.FeedRequest{
		Type:     models.FeedTypeSaved,
		ViewerID: "viewer",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p004", "p002"}, itemIDs(result.Page))
}

func TestGetFeed_SavedFeedWithoutBookmarksIsEmpty(t *testing.T) {
	f := newFeedFixture()
	f.seedPublished(5, "alice")

	result, err := f.feed.GetFeed(context.Background(), models.FeedRequest{
		Type:     models.FeedTypeSaved,
		ViewerID: "viewer",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Page.Items)
	assert.False(t, result.Page.HasMore)
}

func TestGetFeed_ForYouExcludesSeenPosts(t *testing.T) {
	f := newFeedFixture()
	f.seedPublished(10, "alice")
	ctx := context.Background()
	f.tracker.MarkSeen(ctx, "viewer", []string{"p010", "p008"})

	result, err := f.feed.GetFeed(ctx, models.FeedRequest{
		Type:     models.FeedTypeForYou,
		ViewerID: "viewer",
		Limit:    20,
	})
	require.NoError(t, err)
	ids := itemIDs(result.Page)
	assert.NotContains(t, ids, "p010")
	assert.NotContains(t, ids, "p008")
	assert.Len(t, ids, 8)
}

func TestGetFeed_ForYouDeferredMarksSeen(t *testing.T) {
	f := newFeedFixture()
	f.seedPublished(5, "alice")
	ctx := context.Background()

	result, err := f.feed.GetFeed(ctx, models.FeedRequest{
		Type:     models.FeedTypeForYou,
		ViewerID: "viewer",
		Limit:    20,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Deferred)

	assert.Empty(t, f.tracker.SeenIDs(ctx, "viewer"), "seen marking must not happen inline")
	for _, task := range result.Deferred {
		task(ctx)
	}
	assert.ElementsMatch(t, itemIDs(result.Page), f.tracker.SeenIDs(ctx, "viewer"))
}

func TestGetFeed_AnonymousForYouServesTrending(t *testing.T) {
	f := newFeedFixture()
	f.posts.Seed(
		models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusPublished, Visibility: models.PostVisibilityPublic, LikeCount: 1},
		models.Post{ID: "p2", AuthorID: "bob", Status: models.PostStatusPublished, Visibility: models.PostVisibilityPublic, LikeCount: 90},
	)

	result, err := f.feed.GetFeed(context.Background(), models.FeedRequest{
		Type:  models.FeedTypeForYou,
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, result.Page.Items, 2)
	assert.Equal(t, "p2", result.Page.Items[0].ID)
}

func TestGetFeed_RankedPaginationNeverRepeats(t *testing.T) {
	f := newFeedFixture()
	for i := 1; i <= 6; i++ {
		f.posts.Seed(models.Post{
			ID:         fmt.Sprintf("p%d", i),
			AuthorID:   "alice",
			Status:     models.PostStatusPublished,
			Visibility: models.PostVisibilityPublic,
			LikeCount:  int64(i * 10),
		})
	}
	ctx := context.Background()

	first, err := f.feed.GetFeed(ctx, models.FeedRequest{Type: models.FeedTypeExplore, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Page.Items, 2)
	assert.Equal(t, []string{"p6", "p5"}, itemIDs(first.Page))
	require.True(t, first.Page.HasMore)
	require.NotNil(t, first.Page.NextCursor)

	second, err := f.feed.GetFeed(ctx, models.FeedRequest{
		Type:   models.FeedTypeExplore,
		Limit:  2,
		Cursor: *first.Page.NextCursor,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p4", "p3"}, itemIDs(second.Page))
	assert.Empty(t, lo.Intersect(itemIDs(first.Page), itemIDs(second.Page)))
}

func TestGetFeed_BlockedAuthorsNeverSurface(t *testing.T) {
	f := newFeedFixture()
	f.blocks.Blocked["viewer"] = []string{"troll"}
	f.posts.Seed(
		models.Post{ID: "p1", AuthorID: "troll", Status: models.PostStatusPublished, Visibility: models.PostVisibilityPublic},
		models.Post{ID: "p2", AuthorID: "alice", Status: models.PostStatusPublished, Visibility: models.PostVisibilityPublic},
	)

	result, err := f.feed.GetFeed(context.Background(), models.FeedRequest{
		Type:     models.FeedTypePosts,
		ViewerID: "viewer",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, itemIDs(result.Page))
}

func TestGetFeed_CustomFeedFromListSources(t *testing.T) {
	f := newFeedFixture()
	f.lists.Members["team"] = []string{"alice", "bob"}
	f.posts.Seed(
		models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusPublished, Visibility: models.PostVisibilityPublic},
		models.Post{ID: "p2", AuthorID: "carol", Status: models.PostStatusPublished, Visibility: models.PostVisibilityPublic},
	)

	result, err := f.feed.GetFeed(context.Background(), models.FeedRequest{
		Type:     models.FeedTypeCustom,
		ViewerID: "viewer",
		Filters:  &models.FeedFilters{ListSources: []string{"team"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, itemIDs(result.Page))
}

func TestGetFeed_AttachesViewerEngagementState(t *testing.T) {
	f := newFeedFixture()
	f.seedPublished(2, "alice")
	f.engagement.MarkLiked("viewer", "p002")

	result, err := f.feed.GetFeed(context.Background(), models.FeedRequest{
		Type:     models.FeedTypePosts,
		ViewerID: "viewer",
	})
	require.NoError(t, err)
	require.Len(t, result.Page.Items, 2)
	assert.True(t, result.Page.Items[0].Viewer.IsLiked)
	assert.False(t, result.Page.Items[1].Viewer.IsLiked)
}

func TestRefreshFeed_ClearsSeenSet(t *testing.T) {
	f := newFeedFixture()
	ctx := context.Background()
	f.tracker.MarkSeen(ctx, "viewer", []string{"p1"})

	f.feed.RefreshFeed(ctx, "viewer")
	assert.Empty(t, f.tracker.SeenIDs(ctx, "viewer"))
}

func TestGetPostDetail_HydratesNestedReferences(t *testing.T) {
	f := newFeedFixture()
	f.posts.Seed(
		models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusPublished, Visibility: models.PostVisibilityPublic, RepostOf: lo.ToPtr("p2")},
		models.Post{ID: "p2", AuthorID: "bob", Status: models.PostStatusPublished, Visibility: models.PostVisibilityPublic, Content: "the original"},
	)

	item, deferred, err := f.feed.GetPostDetail(context.Background(), "p1", "viewer")
	require.NoError(t, err)
	require.NotNil(t, item.OriginalPost)
	assert.Equal(t, "the original", item.OriginalPost.Content)
	assert.NotEmpty(t, deferred)
}

func TestGetPostDetail_MissingPost(t *testing.T) {
	f := newFeedFixture()

	_, _, err := f.feed.GetPostDetail(context.Background(), "nope", "viewer")
	assert.ErrorIs(t, err, stores.ErrNotFound)
}

func TestGetPostDetail_BlockedAuthorReadsAsMissing(t *testing.T) {
	f := newFeedFixture()
	f.blocks.Blocked["viewer"] = []string{"troll"}
	f.posts.Seed(models.Post{ID: "p1", AuthorID: "troll", Status: models.PostStatusPublished, Visibility: models.PostVisibilityPublic})

	_, _, err := f.feed.GetPostDetail(context.Background(), "p1", "viewer")
	assert.ErrorIs(t, err, stores.ErrNotFound)
}

func TestViewQueue_FlushAccruesCounters(t *testing.T) {
	f := newFeedFixture()
	f.seedPublished(2, "alice")
	ctx := context.Background()

	f.views.AddMany([]string{"p001", "p001", "p002"})
	f.views.Flush(ctx, f.posts)

	posts, err := f.posts.FindByIDs(ctx, []string{"p001", "p002"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), posts[0].ViewCount)
	assert.Equal(t, int64(1), posts[1].ViewCount)
}
