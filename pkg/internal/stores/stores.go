package stores

import (
	"context"
	"errors"
	"time"

	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/plaza-social/plaza/pkg/internal/queries"
)

// MaxQueryResults is the hard cap on a single candidate fetch; exceeding it
// rejects the request instead of ballooning memory.
const MaxQueryResults = 10_000

// DefaultQueryTimeout bounds a single store round trip.
const DefaultQueryTimeout = 5 * time.Second

var (
	ErrResultCapExceeded = errors.New("query result cap exceeded")
	ErrNotFound          = errors.New("record not found")
)

type CounterField string

const (
	CounterLikes    = CounterField("like_count")
	CounterReposts  = CounterField("repost_count")
	CounterComments = CounterField("comment_count")
	CounterViews    = CounterField("view_count")
	CounterShares   = CounterField("share_count")
	CounterSaves    = CounterField("save_count")
)

// PostQuery is a compiled candidate selection against the post store.
type PostQuery struct {
	Predicate queries.Node
	Sort      queries.Sort
	Limit     int
}

// PostStore is the document store holding Post records.
type PostStore interface {
	List(ctx context.Context, q PostQuery) ([]models.Post, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	Save(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
	IncrementCounter(ctx context.Context, id string, field CounterField, delta int64) error
}

// PollStore resolves poll summaries in batch by poll id.
type PollStore interface {
	ListPolls(ctx context.Context, ids []string) (map[string]models.PollSummary, error)
}

// IdentityService is the external identity and social-graph collaborator.
type IdentityService interface {
	GetProfiles(ctx context.Context, ids []string) (map[string]models.ProfileSummary, error)
	GetFollowing(ctx context.Context, id string) ([]string, error)
	GetFollowers(ctx context.Context, id string) ([]string, error)
	GetPrivacy(ctx context.Context, ids []string) (map[string]models.PrivacyToggles, error)
}

// BlockStore exposes the viewer's block and restriction lists, read-only.
type BlockStore interface {
	BlockedIDs(ctx context.Context, viewerID string) ([]string, error)
	RestrictedIDs(ctx context.Context, viewerID string) ([]string, error)
}

// EngagementStore answers batch membership questions for a viewer and serves
// the bookmark allowlist behind the saved feed.
type EngagementStore interface {
	LikedIDs(ctx context.Context, viewerID string, postIDs []string) (map[string]struct{}, error)
	SavedIDs(ctx context.Context, viewerID string, postIDs []string) (map[string]struct{}, error)
	RepostedIDs(ctx context.Context, viewerID string, postIDs []string) (map[string]struct{}, error)
	SavedPostIDs(ctx context.Context, viewerID string) ([]string, error)
}

// PreferenceStore serves the viewer's behavior profile for personal ranking.
type PreferenceStore interface {
	Weights(ctx context.Context, viewerID string) (models.PersonalWeights, error)
}

// ListStore expands a list source into its member author ids.
type ListStore interface {
	MemberIDs(ctx context.Context, listID string) ([]string, error)
}

// LinkMetadataService fetches preview metadata for a single URL.
type LinkMetadataService interface {
	FetchMetadata(ctx context.Context, url string) (models.LinkPreview, error)
}

// SeenStore is a keyed, ordered, TTL-capable set of post ids per viewer.
// Implementations evict oldest-first beyond the cap and expire whole viewers
// on a sliding TTL.
type SeenStore interface {
	Add(ctx context.Context, viewerID string, ids []string) error
	Members(ctx context.Context, viewerID string) ([]string, error)
	Clear(ctx context.Context, viewerID string) error
}
