package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PostTypeText    = "text"
	PostTypeMedia   = "media"
	PostTypePoll    = "poll"
	PostTypeArticle = "article"
)

type PostVisibility = string

const (
	PostVisibilityPublic    = PostVisibility("public")
	PostVisibilityFollowers = PostVisibility("followers")
	PostVisibilityPrivate   = PostVisibility("private")
)

type PostStatus = string

const (
	PostStatusPublished = PostStatus("published")
	PostStatusDraft     = PostStatus("draft")
	PostStatusRemoved   = PostStatus("removed")
)

type ReplyPermission = string

const (
	ReplyPermissionAnyone    = ReplyPermission("anyone")
	ReplyPermissionFollowers = ReplyPermission("followers")
	ReplyPermissionFollowing = ReplyPermission("following")
	ReplyPermissionMentioned = ReplyPermission("mentioned")
)

// PostKind is the resolved shape of a post document. Exactly one of the
// reference fields is meaningful per post; the kind is computed once at load
// time so downstream code can switch on it instead of re-checking pointers.
type PostKind = string

const (
	PostKindOriginal = PostKind("original")
	PostKindReply    = PostKind("reply")
	PostKindRepost   = PostKind("repost")
	PostKindQuote    = PostKind("quote")
)

type MediaItem struct {
	URL       string `json:"url"`
	Type      string `json:"type"`
	Thumbnail string `json:"thumbnail"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type Post struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	AuthorID  string    `json:"author_id" gorm:"index"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	Type       string         `json:"type"`
	Status     PostStatus     `json:"status" gorm:"index"`
	Visibility PostVisibility `json:"visibility"`
	Language   string         `json:"language"`

	ParentPostID *string `json:"parent_post_id" gorm:"index"`
	RepostOf     *string `json:"repost_of" gorm:"index"`
	QuoteOf      *string `json:"quote_of" gorm:"index"`
	ThreadID     *string `json:"thread_id"`

	Content  string                         `json:"content"`
	Media    datatypes.JSONSlice[MediaItem] `json:"media"`
	Hashtags datatypes.JSONSlice[string]    `json:"hashtags"`
	Article  *string                        `json:"article"`
	Sources  datatypes.JSONSlice[string]    `json:"sources"`
	Location *string                        `json:"location"`

	// Legacy media fields kept from earlier document revisions. The media
	// feed predicate must check all of them, not just Media.
	Images      datatypes.JSONSlice[string] `json:"images"`
	Video       *string                     `json:"video"`
	Attachments datatypes.JSONSlice[string] `json:"attachments"`

	LikeCount    int64 `json:"like_count"`
	RepostCount  int64 `json:"repost_count"`
	CommentCount int64 `json:"comment_count"`
	ViewCount    int64 `json:"view_count"`
	ShareCount   int64 `json:"share_count"`
	SaveCount    int64 `json:"save_count"`

	Sensitive      bool                        `json:"sensitive"`
	PinnedAt       *time.Time                  `json:"pinned_at"`
	EditedAt       *time.Time                  `json:"edited_at"`
	SavedBy        datatypes.JSONSlice[string] `json:"saved_by"`
	RequiresReview bool                        `json:"requires_review"`

	ReplyPermission ReplyPermission `json:"reply_permission"`

	PollID *string `json:"poll_id"`

	Kind PostKind `json:"kind" gorm:"-"`
}

func (p *Post) AfterFind(tx *gorm.DB) error {
	p.Kind = p.ResolveKind()
	return nil
}

func (p Post) ResolveKind() PostKind {
	switch {
	case p.RepostOf != nil && *p.RepostOf != "":
		return PostKindRepost
	case p.QuoteOf != nil && *p.QuoteOf != "":
		return PostKindQuote
	case p.ParentPostID != nil && *p.ParentPostID != "":
		return PostKindReply
	default:
		return PostKindOriginal
	}
}

// ReferenceID returns the repost or quote target of the post, if any.
func (p Post) ReferenceID() *string {
	if p.RepostOf != nil && *p.RepostOf != "" {
		return p.RepostOf
	}
	if p.QuoteOf != nil && *p.QuoteOf != "" {
		return p.QuoteOf
	}
	return nil
}

// HasMedia reports whether any of the media-bearing fields, current or
// legacy, is populated.
func (p Post) HasMedia() bool {
	if p.Type == PostTypeMedia {
		return true
	}
	if len(p.Media) > 0 || len(p.Images) > 0 || len(p.Attachments) > 0 {
		return true
	}
	return p.Video != nil && *p.Video != ""
}
