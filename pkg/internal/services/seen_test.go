package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaza-social/plaza/pkg/internal/stores"
)

type brokenSeenStore struct{}

func (brokenSeenStore) Add(ctx context.Context, viewerID string, ids []string) error {
	return errors.New("connection refused")
}

func (brokenSeenStore) Members(ctx context.Context, viewerID string) ([]string, error) {
	return nil, errors.New("connection refused")
}

func (brokenSeenStore) Clear(ctx context.Context, viewerID string) error {
	return errors.New("connection refused")
}

func TestSeenTracker_RoundTrip(t *testing.T) {
	tracker := NewSeenTracker(nil, stores.NewMemorySeenStore(DefaultSeenTTL, DefaultSeenCap))
	ctx := context.Background()

	tracker.MarkSeen(ctx, "viewer", []string{"p1", "p2"})
	tracker.MarkSeen(ctx, "viewer", []string{"p2", "p3"})

	assert.Equal(t, []string{"p1", "p2", "p3"}, tracker.SeenIDs(ctx, "viewer"))
	assert.Empty(t, tracker.SeenIDs(ctx, "someone-else"))
}

func TestSeenTracker_SharedFailureFallsBack(t *testing.T) {
	tracker := NewSeenTracker(brokenSeenStore{}, stores.NewMemorySeenStore(DefaultSeenTTL, DefaultSeenCap))
	ctx := context.Background()

	tracker.MarkSeen(ctx, "viewer", []string{"p1"})
	assert.Equal(t, []string{"p1"}, tracker.SeenIDs(ctx, "viewer"))
}

func TestSeenTracker_ClearResets(t *testing.T) {
	tracker := NewSeenTracker(nil, stores.NewMemorySeenStore(DefaultSeenTTL, DefaultSeenCap))
	ctx := context.Background()

	tracker.MarkSeen(ctx, "viewer", []string{"p1", "p2"})
	tracker.Clear(ctx, "viewer")

	assert.Empty(t, tracker.SeenIDs(ctx, "viewer"))
}

func TestSeenTracker_AnonymousViewerIsNoop(t *testing.T) {
	fallback := stores.NewMemorySeenStore(DefaultSeenTTL, DefaultSeenCap)
	tracker := NewSeenTracker(nil, fallback)
	ctx := context.Background()

	tracker.MarkSeen(ctx, "", []string{"p1"})
	assert.Nil(t, tracker.SeenIDs(ctx, ""))

	members, err := fallback.Members(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestSeenTracker_CapKeepsNewest(t *testing.T) {
	tracker := NewSeenTracker(nil, stores.NewMemorySeenStore(30*time.Minute, 3))
	ctx := context.Background()

	tracker.MarkSeen(ctx, "viewer", []string{"p1", "p2", "p3"})
	tracker.MarkSeen(ctx, "viewer", []string{"p4", "p5"})

	assert.Equal(t, []string{"p3", "p4", "p5"}, tracker.SeenIDs(ctx, "viewer"))
}
