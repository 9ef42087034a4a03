package stores

import (
	"context"
	"sync"

	"github.com/plaza-social/plaza/pkg/internal/models"
)

// In-memory collaborator implementations. Production deployments plug real
// clients behind the same interfaces; these back tests and local runs.

type MemoryIdentity struct {
	mu        sync.RWMutex
	Profiles  map[string]models.ProfileSummary
	Following map[string][]string
	Followers map[string][]string
	Privacy   map[string]models.PrivacyToggles

	// FailProfiles simulates per-id lookup failures.
	FailProfiles map[string]bool
}

func NewMemoryIdentity() *MemoryIdentity {
	return &MemoryIdentity{
		Profiles:     make(map[string]models.ProfileSummary),
		Following:    make(map[string][]string),
		Followers:    make(map[string][]string),
		Privacy:      make(map[string]models.PrivacyToggles),
		FailProfiles: make(map[string]bool),
	}
}

func (m *MemoryIdentity) GetProfiles(ctx context.Context, ids []string) (map[string]models.ProfileSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.ProfileSummary, len(ids))
	for _, id := range ids {
		if m.FailProfiles[id] {
			continue
		}
		if profile, ok := m.Profiles[id]; ok {
			out[id] = profile
		}
	}
	return out, nil
}

func (m *MemoryIdentity) GetFollowing(ctx context.Context, id string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Following[id], nil
}

func (m *MemoryIdentity) GetFollowers(ctx context.Context, id string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Followers[id], nil
}

func (m *MemoryIdentity) GetPrivacy(ctx context.Context, ids []string) (map[string]models.PrivacyToggles, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.PrivacyToggles, len(ids))
	for _, id := range ids {
		if toggles, ok := m.Privacy[id]; ok {
			out[id] = toggles
		}
	}
	return out, nil
}

type MemoryBlocks struct {
	mu         sync.RWMutex
	Blocked    map[string][]string
	Restricted map[string][]string
}

func NewMemoryBlocks() *MemoryBlocks {
	return &MemoryBlocks{
		Blocked:    make(map[string][]string),
		Restricted: make(map[string][]string),
	}
}

func (m *MemoryBlocks) BlockedIDs(ctx context.Context, viewerID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Blocked[viewerID], nil
}

func (m *MemoryBlocks) RestrictedIDs(ctx context.Context, viewerID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Restricted[viewerID], nil
}

type MemoryEngagement struct {
	mu       sync.RWMutex
	Liked    map[string]map[string]struct{}
	Saved    map[string]map[string]struct{}
	Reposted map[string]map[string]struct{}
	// Bookmarks preserves save order, newest last.
	Bookmarks map[string][]string
}

func NewMemoryEngagement() *MemoryEngagement {
	return &MemoryEngagement{
		Liked:     make(map[string]map[string]struct{}),
		Saved:     make(map[string]map[string]struct{}),
		Reposted:  make(map[string]map[string]struct{}),
		Bookmarks: make(map[string][]string),
	}
}

func markSet(store map[string]map[string]struct{}, viewerID, postID string) {
	if store[viewerID] == nil {
		store[viewerID] = make(map[string]struct{})
	}
	store[viewerID][postID] = struct{}{}
}

func (m *MemoryEngagement) MarkLiked(viewerID, postID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	markSet(m.Liked, viewerID, postID)
}

func (m *MemoryEngagement) MarkSaved(viewerID, postID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	markSet(m.Saved, viewerID, postID)
	m.Bookmarks[viewerID] = append(m.Bookmarks[viewerID], postID)
}

func (m *MemoryEngagement) MarkReposted(viewerID, postID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	markSet(m.Reposted, viewerID, postID)
}

func intersect(store map[string]map[string]struct{}, viewerID string, postIDs []string) map[string]struct{} {
	out := make(map[string]struct{})
	members := store[viewerID]
	for _, id := range postIDs {
		if _, ok := members[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func (m *MemoryEngagement) LikedIDs(ctx context.Context, viewerID string, postIDs []string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return intersect(m.Liked, viewerID, postIDs), nil
}

func (m *MemoryEngagement) SavedIDs(ctx context.Context, viewerID string, postIDs []string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return intersect(m.Saved, viewerID, postIDs), nil
}

func (m *MemoryEngagement) RepostedIDs(ctx context.Context, viewerID string, postIDs []string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return intersect(m.Reposted, viewerID, postIDs), nil
}

func (m *MemoryEngagement) SavedPostIDs(ctx context.Context, viewerID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Bookmarks[viewerID], nil
}

type MemoryPreferences struct {
	mu       sync.RWMutex
	Profiles map[string]models.PersonalWeights
}

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{Profiles: make(map[string]models.PersonalWeights)}
}

func (m *MemoryPreferences) Put(viewerID string, weights models.PersonalWeights) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Profiles[viewerID] = weights
}

func (m *MemoryPreferences) Weights(ctx context.Context, viewerID string) (models.PersonalWeights, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Profiles[viewerID], nil
}

type MemoryLists struct {
	mu      sync.RWMutex
	Members map[string][]string
}

func NewMemoryLists() *MemoryLists {
	return &MemoryLists{Members: make(map[string][]string)}
}

func (m *MemoryLists) MemberIDs(ctx context.Context, listID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Members[listID], nil
}

type MemoryPolls struct {
	mu      sync.RWMutex
	Answers map[string]models.PollSummary
}

func NewMemoryPolls() *MemoryPolls {
	return &MemoryPolls{Answers: make(map[string]models.PollSummary)}
}

func (m *MemoryPolls) Put(summary models.PollSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Answers[summary.ID] = summary
}

func (m *MemoryPolls) ListPolls(ctx context.Context, ids []string) (map[string]models.PollSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.PollSummary, len(ids))
	for _, id := range ids {
		if summary, ok := m.Answers[id]; ok {
			out[id] = summary
		}
	}
	return out, nil
}

type MemoryLinks struct {
	mu       sync.RWMutex
	Previews map[string]models.LinkPreview
	Failures map[string]error
	Calls    map[string]int
}

func NewMemoryLinks() *MemoryLinks {
	return &MemoryLinks{
		Previews: make(map[string]models.LinkPreview),
		Failures: make(map[string]error),
		Calls:    make(map[string]int),
	}
}

func (m *MemoryLinks) FetchMetadata(ctx context.Context, url string) (models.LinkPreview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[url]++
	if err, ok := m.Failures[url]; ok {
		return models.LinkPreview{}, err
	}
	if preview, ok := m.Previews[url]; ok {
		return preview, nil
	}
	return models.LinkPreview{URL: url}, nil
}
