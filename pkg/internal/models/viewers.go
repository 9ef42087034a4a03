package models

// PrivacyToggles are the per-author switches hiding engagement metrics from
// other viewers.
type PrivacyToggles struct {
	HideLikeCount  bool `json:"hide_like_count"`
	HideShareCount bool `json:"hide_share_count"`
	HideReplyCount bool `json:"hide_reply_count"`
	HideSaveCount  bool `json:"hide_save_count"`
}

// ProfileSummary is the resolved author attached to a hydrated post. It comes
// from the identity collaborator; a placeholder is substituted when the lookup
// fails for a single id.
type ProfileSummary struct {
	ID          string   `json:"id"`
	Handle      string   `json:"handle"`
	DisplayName string   `json:"display_name"`
	Avatar      string   `json:"avatar"`
	Verified    bool     `json:"verified"`
	Badges      []string `json:"badges"`
}

// PlaceholderProfile is substituted when an identity lookup fails for one id.
func PlaceholderProfile(id string) ProfileSummary {
	return ProfileSummary{ID: id, Handle: "unknown", DisplayName: "Unknown"}
}

// PersonalWeights is the viewer's behavior profile driving the personal
// ranking blend. All maps optional; an empty profile ranks on engagement only.
type PersonalWeights struct {
	Authors map[string]float64 `json:"authors"`
	Topics  map[string]float64 `json:"topics"`
	Types   map[string]float64 `json:"types"`
}

// ViewerContext carries everything viewer-specific the pipeline needs. It is
// built once per request and read-only afterward.
type ViewerContext struct {
	ViewerID string

	Blocked    map[string]struct{}
	Restricted map[string]struct{}
	Following  map[string]struct{}
	Followers  map[string]struct{}

	// Membership sets scoped to the current candidate batch.
	Liked    map[string]struct{}
	Saved    map[string]struct{}
	Reposted map[string]struct{}

	Privacy map[string]PrivacyToggles

	// Personalization signals, all optional.
	AuthorWeights map[string]float64
	TopicWeights  map[string]float64
	TypeWeights   map[string]float64
}

// AnonymousViewer is the context used for unauthenticated requests.
func AnonymousViewer() *ViewerContext {
	return &ViewerContext{}
}

func (v *ViewerContext) Authenticated() bool {
	return v != nil && v.ViewerID != ""
}

func (v *ViewerContext) HasBlocked(authorID string) bool {
	if v == nil {
		return false
	}
	_, ok := v.Blocked[authorID]
	return ok
}

func (v *ViewerContext) IsRestricted(authorID string) bool {
	if v == nil {
		return false
	}
	_, ok := v.Restricted[authorID]
	return ok
}

func (v *ViewerContext) IsFollowing(authorID string) bool {
	if v == nil {
		return false
	}
	_, ok := v.Following[authorID]
	return ok
}

func (v *ViewerContext) IsFollowedBy(authorID string) bool {
	if v == nil {
		return false
	}
	_, ok := v.Followers[authorID]
	return ok
}

func (v *ViewerContext) HasLiked(postID string) bool {
	if v == nil {
		return false
	}
	_, ok := v.Liked[postID]
	return ok
}

func (v *ViewerContext) HasSaved(postID string) bool {
	if v == nil {
		return false
	}
	_, ok := v.Saved[postID]
	return ok
}

func (v *ViewerContext) HasReposted(postID string) bool {
	if v == nil {
		return false
	}
	_, ok := v.Reposted[postID]
	return ok
}

func (v *ViewerContext) PrivacyOverrides() map[string]PrivacyToggles {
	if v == nil {
		return nil
	}
	return v.Privacy
}

func (v *ViewerContext) PrivacyFor(authorID string) PrivacyToggles {
	if v == nil {
		return PrivacyToggles{}
	}
	return v.Privacy[authorID]
}
