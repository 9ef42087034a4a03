package models

import (
	"context"
	"encoding/base64"
	"time"

	jsoniter "github.com/json-iterator/go"
)

type FeedType = string

const (
	FeedTypePosts     = FeedType("posts")
	FeedTypeMixed     = FeedType("mixed")
	FeedTypeMedia     = FeedType("media")
	FeedTypeReplies   = FeedType("replies")
	FeedTypeReposts   = FeedType("reposts")
	FeedTypeSaved     = FeedType("saved")
	FeedTypeForYou    = FeedType("for_you")
	FeedTypeFollowing = FeedType("following")
	FeedTypeExplore   = FeedType("explore")
	FeedTypeCustom    = FeedType("custom")
)

// IsRankedFeed reports whether the feed type goes through the scoring engine
// and therefore uses composite score cursors.
func IsRankedFeed(t FeedType) bool {
	return t == FeedTypeForYou || t == FeedTypeExplore
}

// KnownFeedType reports whether t is one of the supported feed types.
func KnownFeedType(t FeedType) bool {
	switch t {
	case FeedTypePosts, FeedTypeMixed, FeedTypeMedia, FeedTypeReplies,
		FeedTypeReposts, FeedTypeSaved, FeedTypeForYou, FeedTypeFollowing,
		FeedTypeExplore, FeedTypeCustom:
		return true
	}
	return false
}

// FeedFilters narrows a feed's candidate selection. All fields optional.
type FeedFilters struct {
	Authors    []string   `json:"authors"`
	Keywords   []string   `json:"keywords"`
	DateFrom   *time.Time `json:"date_from"`
	DateTo     *time.Time `json:"date_to"`
	Language   string     `json:"language"`
	Types      []string   `json:"types"`
	SearchText string     `json:"search_text"`

	// Custom feed composition.
	Members     []string `json:"members"`
	ListSources []string `json:"list_sources"`
	OwnerID     string   `json:"owner_id"`
	IncludeOwner bool    `json:"include_owner"`
}

type FeedRequest struct {
	ViewerID string       `json:"viewer_id"`
	Type     FeedType     `json:"type"`
	Cursor   string       `json:"cursor"`
	Limit    int          `json:"limit" validate:"min=0,max=200"`
	Filters  *FeedFilters `json:"filters"`
}

type FeedPage struct {
	Items      []HydratedPost `json:"items"`
	HasMore    bool           `json:"has_more"`
	NextCursor *string        `json:"next_cursor"`
	TotalCount int            `json:"total_count"`

	// HydrationFailed marks a degraded page assembled from raw posts after a
	// whole-batch hydration failure.
	HydrationFailed bool `json:"hydration_failed,omitempty"`
}

// DeferredTask is best-effort work emitted by the pipeline and dispatched by
// the caller after the response is already on the wire. Outcomes are only
// logged, never awaited.
type DeferredTask func(ctx context.Context)

type FeedResult struct {
	Page     FeedPage
	Deferred []DeferredTask
}

type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	SiteName    string `json:"site_name"`
}

// EngagementSummary exposes post counters with per-field privacy applied.
// A nil field means the author hides that metric from the viewer.
type EngagementSummary struct {
	Likes    *int64 `json:"likes"`
	Reposts  *int64 `json:"reposts"`
	Comments *int64 `json:"comments"`
	Views    *int64 `json:"views"`
	Shares   *int64 `json:"shares"`
	Saves    *int64 `json:"saves"`
}

type ViewerState struct {
	IsLiked    bool `json:"is_liked"`
	IsSaved    bool `json:"is_saved"`
	IsReposted bool `json:"is_reposted"`
	IsOwner    bool `json:"is_owner"`
}

type PostPermissions struct {
	CanReply  bool `json:"can_reply"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanPin    bool `json:"can_pin"`
}

// HydratedPost is the per-request view model returned to clients. It is never
// cached across requests.
type HydratedPost struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"author_id"`
	CreatedAt  time.Time  `json:"created_at"`
	EditedAt   *time.Time `json:"edited_at"`
	PinnedAt   *time.Time `json:"pinned_at"`
	Type       string     `json:"type"`
	Kind       PostKind   `json:"kind"`
	Visibility string     `json:"visibility"`
	Sensitive  bool       `json:"sensitive"`

	Content     string       `json:"content"`
	Media       []MediaItem  `json:"media"`
	Poll        *PollSummary `json:"poll"`
	Article     *string      `json:"article"`
	Sources     []string     `json:"sources"`
	Location    *string      `json:"location"`
	LinkPreview *LinkPreview `json:"link_preview"`

	Author      ProfileSummary    `json:"author"`
	Engagement  EngagementSummary `json:"engagement"`
	Viewer      ViewerState       `json:"viewer"`
	Permissions PostPermissions   `json:"permissions"`

	OriginalPost *HydratedPost `json:"original_post,omitempty"`
	QuotedPost   *HydratedPost `json:"quoted_post,omitempty"`

	ParentThreadID *string `json:"parent_thread_id"`
	IsThreadParent bool    `json:"is_thread_parent"`
}

// Cursor encodes the position of the last returned item. Chronological feeds
// carry the id only; ranked feeds also carry the score so ties can be broken
// without skipping or repeating.
type Cursor struct {
	ID    string   `json:"id"`
	Score *float64 `json:"score,omitempty"`
}

func (c Cursor) Encode() string {
	raw, err := jsoniter.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes an opaque cursor string. Anything malformed maps to nil,
// which callers treat as "no cursor".
func ParseCursor(in string) *Cursor {
	if len(in) == 0 {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(in)
	if err != nil {
		return nil
	}
	var cursor Cursor
	if err := jsoniter.Unmarshal(raw, &cursor); err != nil {
		return nil
	}
	if len(cursor.ID) == 0 {
		return nil
	}
	return &cursor
}
