package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/plaza-social/plaza/pkg/internal/stores"
	"github.com/samber/lo"
)

type hydrateFixture struct {
	posts    *stores.MemoryPostStore
	polls    *stores.MemoryPolls
	identity *stores.MemoryIdentity
	links    *stores.MemoryLinks
	hydrator *Hydrator
}

func newHydrateFixture() *hydrateFixture {
	f := &hydrateFixture{
		posts:    stores.NewMemoryPostStore(),
		polls:    stores.NewMemoryPolls(),
		identity: stores.NewMemoryIdentity(),
		links:    stores.NewMemoryLinks(),
	}
	f.hydrator = NewHydrator(f.posts, f.polls, f.identity, f.links, nil)
	return f
}

func TestHydrate_ResolvesAuthorProfile(t *testing.T) {
	f := newHydrateFixture()
	f.identity.Profiles["alice"] = models.ProfileSummary{ID: "alice", Handle: "alice", DisplayName: "Alice"}
	f.posts.Seed(models.Post{ID: "p1", AuthorID: "alice", Content: "hello"})

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{{ID: "p1", AuthorID: "alice", Content: "hello"}}, models.AnonymousViewer(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Alice", items[0].Author.DisplayName)
}

func TestHydrate_PlaceholderForMissingProfile(t *testing.T) {
	f := newHydrateFixture()
	f.identity.FailProfiles["ghost"] = true

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{{ID: "p1", AuthorID: "ghost"}}, models.AnonymousViewer(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ghost", items[0].Author.ID)
	assert.Equal(t, "unknown", items[0].Author.Handle)
}

func TestHydrate_PreservesSeedOrder(t *testing.T) {
	f := newHydrateFixture()
	seeds := []models.Post{{ID: "p3"}, {ID: "p1"}, {ID: "p2"}}

	items, err := f.hydrator.Hydrate(context.Background(), seeds, models.AnonymousViewer(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1", "p2"}, lo.Map(items, func(item models.HydratedPost, _ int) string {
		return item.ID
	}))
}

func TestHydrate_NestedDepthIsBounded(t *testing.T) {
	f := newHydrateFixture()
	f.posts.Seed(
		models.Post{ID: "p2", AuthorID: "bob", RepostOf: lo.ToPtr("p3")},
		models.Post{ID: "p3", AuthorID: "carol", Content: "the root"},
	)
	seed := models.Post{ID: "p1", AuthorID: "alice", RepostOf: lo.ToPtr("p2")}

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{seed}, models.AnonymousViewer(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].OriginalPost)
	assert.Equal(t, "p2", items[0].OriginalPost.ID)
	assert.Nil(t, items[0].OriginalPost.OriginalPost)

	items, err = f.hydrator.Hydrate(context.Background(), []models.Post{seed}, models.AnonymousViewer(), 1)
	require.NoError(t, err)
	require.NotNil(t, items[0].OriginalPost)
	require.NotNil(t, items[0].OriginalPost.OriginalPost)
	assert.Equal(t, "the root", items[0].OriginalPost.OriginalPost.Content)
}

func TestHydrate_RepostCycleTerminates(t *testing.T) {
	f := newHydrateFixture()
	f.posts.Seed(
		models.Post{ID: "p1", RepostOf: lo.ToPtr("p2")},
		models.Post{ID: "p2", RepostOf: lo.ToPtr("p1")},
	)

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{{ID: "p1", RepostOf: lo.ToPtr("p2")}}, models.AnonymousViewer(), 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].OriginalPost)
	assert.Equal(t, "p2", items[0].OriginalPost.ID)
}

func TestHydrate_DropsBlockedSeedAuthors(t *testing.T) {
	f := newHydrateFixture()
	viewer := &models.ViewerContext{
		ViewerID: "viewer",
		Blocked:  map[string]struct{}{"troll": {}},
	}

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{
		{ID: "p1", AuthorID: "troll"},
		{ID: "p2", AuthorID: "alice"},
	}, viewer, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ID)
}

func TestHydrate_SkipsBlockedReferenceAuthors(t *testing.T) {
	f := newHydrateFixture()
	f.posts.Seed(models.Post{ID: "p2", AuthorID: "troll"})
	viewer := &models.ViewerContext{
		ViewerID: "viewer",
		Blocked:  map[string]struct{}{"troll": {}},
	}

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{
		{ID: "p1", AuthorID: "alice", RepostOf: lo.ToPtr("p2")},
	}, viewer, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].OriginalPost)
}

func TestHydrate_RestrictedAuthorsRenderSensitive(t *testing.T) {
	f := newHydrateFixture()
	viewer := &models.ViewerContext{
		ViewerID:   "viewer",
		Restricted: map[string]struct{}{"muted": {}},
	}

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{
		{ID: "p1", AuthorID: "muted"},
		{ID: "p2", AuthorID: "alice"},
	}, viewer, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Restricted authors stay in the feed, collapsed; nobody else is touched.
	assert.True(t, items[0].Sensitive)
	assert.False(t, items[1].Sensitive)
}

func TestHydrate_PrivacyHidesCountersFromOthers(t *testing.T) {
	f := newHydrateFixture()
	f.identity.Privacy["alice"] = models.PrivacyToggles{HideLikeCount: true, HideSaveCount: true}
	post := models.Post{ID: "p1", AuthorID: "alice", LikeCount: 9, CommentCount: 4, SaveCount: 2, RepostCount: 1}

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{post}, models.AnonymousViewer(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	engagement := items[0].Engagement
	assert.Nil(t, engagement.Likes)
	assert.Nil(t, engagement.Saves)
	require.NotNil(t, engagement.Comments)
	assert.Equal(t, int64(4), *engagement.Comments)
	require.NotNil(t, engagement.Reposts)
	assert.Equal(t, int64(1), *engagement.Reposts)
}

func TestHydrate_OwnerAlwaysSeesOwnCounters(t *testing.T) {
	f := newHydrateFixture()
	f.identity.Privacy["alice"] = models.PrivacyToggles{HideLikeCount: true}
	viewer := &models.ViewerContext{ViewerID: "alice"}
	post := models.Post{ID: "p1", AuthorID: "alice", LikeCount: 9}

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{post}, viewer, 0)
	require.NoError(t, err)
	require.NotNil(t, items[0].Engagement.Likes)
	assert.Equal(t, int64(9), *items[0].Engagement.Likes)
	assert.True(t, items[0].Viewer.IsOwner)
	assert.True(t, items[0].Permissions.CanEdit)
}

func TestHydrate_ViewerStateFlags(t *testing.T) {
	f := newHydrateFixture()
	viewer := &models.ViewerContext{
		ViewerID: "viewer",
		Liked:    map[string]struct{}{"p1": {}},
		Saved:    map[string]struct{}{"p1": {}},
	}

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{{ID: "p1", AuthorID: "alice"}}, viewer, 0)
	require.NoError(t, err)
	assert.True(t, items[0].Viewer.IsLiked)
	assert.True(t, items[0].Viewer.IsSaved)
	assert.False(t, items[0].Viewer.IsReposted)
}

func TestHydrate_ReplyPermissionFollowers(t *testing.T) {
	f := newHydrateFixture()
	post := models.Post{ID: "p1", AuthorID: "alice", ReplyPermission: models.ReplyPermissionFollowers}

	follower := &models.ViewerContext{
		ViewerID:  "viewer",
		Following: map[string]struct{}{"alice": {}},
	}
	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{post}, follower, 0)
	require.NoError(t, err)
	assert.True(t, items[0].Permissions.CanReply)

	items, err = f.hydrator.Hydrate(context.Background(), []models.Post{post}, models.AnonymousViewer(), 0)
	require.NoError(t, err)
	assert.False(t, items[0].Permissions.CanReply)
}

func TestHydrate_AttachesPollSummary(t *testing.T) {
	f := newHydrateFixture()
	f.polls.Put(models.PollSummary{ID: "poll-1", TotalAnswer: 12})

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{
		{ID: "p1", AuthorID: "alice", PollID: lo.ToPtr("poll-1")},
	}, models.AnonymousViewer(), 0)
	require.NoError(t, err)
	require.NotNil(t, items[0].Poll)
	assert.Equal(t, int64(12), items[0].Poll.TotalAnswer)
}

func TestHydrate_LinkPreviewsDedupePerURL(t *testing.T) {
	f := newHydrateFixture()
	f.links.Previews["https://example.com/a"] = models.LinkPreview{
		URL:   "https://example.com/a",
		Title: "Example",
	}

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{
		{ID: "p1", AuthorID: "alice", Content: "look https://example.com/a"},
		{ID: "p2", AuthorID: "bob", Content: "same link https://example.com/a"},
	}, models.AnonymousViewer(), 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, 1, f.links.Calls["https://example.com/a"])
	for _, item := range items {
		require.NotNil(t, item.LinkPreview)
		assert.Equal(t, "Example", item.LinkPreview.Title)
	}
}

func TestHydrate_LinkFailureSkipsPreviewOnly(t *testing.T) {
	f := newHydrateFixture()
	f.links.Failures["https://broken.example"] = assert.AnError

	items, err := f.hydrator.Hydrate(context.Background(), []models.Post{
		{ID: "p1", AuthorID: "alice", Content: "see https://broken.example"},
	}, models.AnonymousViewer(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].LinkPreview)
}
