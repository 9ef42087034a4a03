package stores

import (
	"context"
	"sync"
	"time"
)

type seenBucket struct {
	order     []string
	index     map[string]struct{}
	expiresAt time.Time
}

// MemorySeenStore is the in-process fallback for the shared seen store. It
// mirrors the TTL and cap semantics; expired viewers are dropped by a
// periodic Sweep rather than request-time locking.
type MemorySeenStore struct {
	mu      sync.Mutex
	buckets map[string]*seenBucket
	ttl     time.Duration
	cap     int

	now func() time.Time
}

func NewMemorySeenStore(ttl time.Duration, cap int) *MemorySeenStore {
	return &MemorySeenStore{
		buckets: make(map[string]*seenBucket),
		ttl:     ttl,
		cap:     cap,
		now:     time.Now,
	}
}

func (s *MemorySeenStore) Add(ctx context.Context, viewerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	bucket, ok := s.buckets[viewerID]
	if !ok || now.After(bucket.expiresAt) {
		bucket = &seenBucket{index: make(map[string]struct{})}
		s.buckets[viewerID] = bucket
	}

	for _, id := range ids {
		if _, exists := bucket.index[id]; exists {
			continue
		}
		bucket.index[id] = struct{}{}
		bucket.order = append(bucket.order, id)
	}

	// Evict oldest by insertion order when over the cap.
	if overflow := len(bucket.order) - s.cap; overflow > 0 {
		for _, id := range bucket.order[:overflow] {
			delete(bucket.index, id)
		}
		bucket.order = bucket.order[overflow:]
	}

	// Sliding window, refreshed on every write.
	bucket.expiresAt = now.Add(s.ttl)
	return nil
}

func (s *MemorySeenStore) Members(ctx context.Context, viewerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.buckets[viewerID]
	if !ok || s.now().After(bucket.expiresAt) {
		return nil, nil
	}
	out := make([]string, len(bucket.order))
	copy(out, bucket.order)
	return out, nil
}

func (s *MemorySeenStore) Clear(ctx context.Context, viewerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, viewerID)
	return nil
}

// Sweep drops expired viewers. Wired to a cron schedule from main.
func (s *MemorySeenStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for viewerID, bucket := range s.buckets {
		if now.After(bucket.expiresAt) {
			delete(s.buckets, viewerID)
		}
	}
}
