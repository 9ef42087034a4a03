package queries

import (
	"errors"

	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/samber/lo"
)

// ErrEmptyDomain signals that the feed's candidate domain is provably empty
// (no followed authors, no custom sources, no bookmarks). Strategies map it to
// an empty page instead of falling back to "everyone".
var ErrEmptyDomain = errors.New("feed candidate domain is empty")

// BuildInput carries everything the builder needs, already resolved. The
// builder itself does no I/O.
type BuildInput struct {
	FeedType models.FeedType
	Filters  *models.FeedFilters
	ViewerID string
	Cursor   *models.Cursor

	// FollowingIDs is the viewer's following set, used by the following feed.
	FollowingIDs []string
	// SavedIDs is the explicit bookmark allowlist for the saved feed.
	SavedIDs []string
	// SeenIDs are excluded from the for_you feed.
	SeenIDs []string
	// CustomAuthors is the resolved author set for custom feeds, see
	// ResolveCustomAuthors.
	CustomAuthors []string
}

// Build maps a feed request onto a candidate predicate and sort key.
func Build(in BuildInput) (Node, Sort, error) {
	base := []Node{Eq(FieldStatus, models.PostStatusPublished)}

	switch in.FeedType {
	case models.FeedTypePosts:
		base = append(base,
			Eq(FieldVisibility, models.PostVisibilityPublic),
			NotExists(FieldParentPostID),
			NotExists(FieldRepostOf),
		)
	case models.FeedTypeMixed, models.FeedTypeExplore:
		base = append(base,
			Eq(FieldVisibility, models.PostVisibilityPublic),
			NotExists(FieldParentPostID),
		)
	case models.FeedTypeMedia:
		base = append(base,
			Eq(FieldVisibility, models.PostVisibilityPublic),
			NotExists(FieldParentPostID),
			mediaPresence(),
		)
	case models.FeedTypeReplies:
		base = append(base,
			Eq(FieldVisibility, models.PostVisibilityPublic),
			Exists(FieldParentPostID),
		)
	case models.FeedTypeReposts:
		base = append(base,
			Eq(FieldVisibility, models.PostVisibilityPublic),
			Exists(FieldRepostOf),
		)
	case models.FeedTypeSaved:
		if len(in.SavedIDs) == 0 {
			return Node{}, Sort{}, ErrEmptyDomain
		}
		base = append(base, In(FieldID, in.SavedIDs))
	case models.FeedTypeForYou:
		base = append(base,
			Eq(FieldVisibility, models.PostVisibilityPublic),
			NotExists(FieldParentPostID),
		)
		if len(in.SeenIDs) > 0 {
			base = append(base, NotIn(FieldID, in.SeenIDs))
		}
		if in.Cursor != nil {
			// The cursor post itself must never resurface, even when the
			// seen-set store lost it.
			base = append(base, Ne(FieldID, in.Cursor.ID))
		}
	case models.FeedTypeFollowing:
		if len(in.FollowingIDs) == 0 {
			return Node{}, Sort{}, ErrEmptyDomain
		}
		base = append(base,
			In(FieldAuthorID, in.FollowingIDs),
			Or(
				Eq(FieldVisibility, models.PostVisibilityPublic),
				Eq(FieldVisibility, models.PostVisibilityFollowers),
			),
			NotExists(FieldParentPostID),
		)
	case models.FeedTypeCustom:
		keywords := keywordNodes(in.Filters)
		if len(in.CustomAuthors) == 0 && len(keywords) == 0 {
			return Node{}, Sort{}, ErrEmptyDomain
		}
		base = append(base, Eq(FieldVisibility, models.PostVisibilityPublic))
		if len(in.CustomAuthors) > 0 {
			base = append(base, In(FieldAuthorID, in.CustomAuthors))
		}
		if len(keywords) > 0 {
			base = append(base, Or(keywords...))
		}
	default:
		base = append(base,
			Eq(FieldVisibility, models.PostVisibilityPublic),
			NotExists(FieldParentPostID),
		)
	}

	base = append(base, filterNodes(in.FeedType, in.Filters)...)

	// Chronological feeds paginate on the id itself; ranked feeds re-apply the
	// composite score cursor after scoring.
	if in.Cursor != nil && !models.IsRankedFeed(in.FeedType) {
		base = append(base, Lt(FieldID, in.Cursor.ID))
	}

	return And(base...), SortByIDDesc(), nil
}

// mediaPresence is the OR-of-many-fields check kept for schema evolution;
// older documents carry media in images/video/attachments instead of the
// current media list.
func mediaPresence() Node {
	return Or(
		Eq(FieldType, models.PostTypeMedia),
		Exists(FieldMedia),
		Exists(FieldImages),
		Exists(FieldVideo),
		Exists(FieldAttachments),
	)
}

func keywordNodes(filters *models.FeedFilters) []Node {
	if filters == nil {
		return nil
	}
	var nodes []Node
	for _, keyword := range filters.Keywords {
		if len(keyword) == 0 {
			continue
		}
		nodes = append(nodes,
			Search(FieldContent, keyword),
			Contains(FieldHashtags, keyword),
		)
	}
	return nodes
}

func filterNodes(feedType models.FeedType, filters *models.FeedFilters) []Node {
	if filters == nil {
		return nil
	}

	var nodes []Node
	if len(filters.Authors) > 0 && feedType != models.FeedTypeCustom {
		nodes = append(nodes, In(FieldAuthorID, filters.Authors))
	}
	if filters.DateFrom != nil {
		nodes = append(nodes, Gte(FieldCreatedAt, *filters.DateFrom))
	}
	if filters.DateTo != nil {
		nodes = append(nodes, Lte(FieldCreatedAt, *filters.DateTo))
	}
	if len(filters.Language) > 0 {
		nodes = append(nodes, Eq(FieldLanguage, filters.Language))
	}
	if len(filters.Types) > 0 {
		nodes = append(nodes, In(FieldType, filters.Types))
	}
	if len(filters.SearchText) > 0 {
		nodes = append(nodes, Search(FieldContent, filters.SearchText))
	}
	if feedType != models.FeedTypeCustom && len(filters.Keywords) > 0 {
		if kw := keywordNodes(filters); len(kw) > 0 {
			nodes = append(nodes, Or(kw...))
		}
	}
	return nodes
}

// ResolveCustomAuthors merges explicit members with expanded list-source
// members. The feed owner is excluded unless they are an explicit member.
func ResolveCustomAuthors(filters *models.FeedFilters, listMembers map[string][]string) []string {
	if filters == nil {
		return nil
	}

	authors := append([]string{}, filters.Members...)
	for _, listID := range filters.ListSources {
		authors = append(authors, listMembers[listID]...)
	}
	authors = lo.Uniq(lo.Filter(authors, func(id string, _ int) bool {
		return len(id) > 0
	}))

	if len(filters.OwnerID) > 0 && !filters.IncludeOwner && !lo.Contains(filters.Members, filters.OwnerID) {
		authors = lo.Without(authors, filters.OwnerID)
	}
	return authors
}
