package services

import (
	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/samber/lo"
)

// validPostID rejects ids that are blank or the stringified garbage older
// documents carry in place of a missing id.
func validPostID(id string) bool {
	return id != "" && id != "undefined" && id != "null"
}

// DedupePosts removes raw candidates sharing an id, keeping first occurrence.
// Items without a usable id are dropped entirely.
func DedupePosts(posts []models.Post) []models.Post {
	posts = lo.Filter(posts, func(post models.Post, _ int) bool {
		return validPostID(post.ID)
	})
	return lo.UniqBy(posts, func(post models.Post) string {
		return post.ID
	})
}

// DedupeHydrated is the authoritative dedup pass over hydrated output.
func DedupeHydrated(items []models.HydratedPost) []models.HydratedPost {
	items = lo.Filter(items, func(item models.HydratedPost, _ int) bool {
		return validPostID(item.ID)
	})
	return lo.UniqBy(items, func(item models.HydratedPost) string {
		return item.ID
	})
}

// PageParams carries what AssemblePage needs beyond the items themselves.
type PageParams struct {
	Limit int
	// RawCount is the size of the raw fetch before trimming; hasMore derives
	// from it rather than the post-dedup count so dedup losses cannot stall
	// pagination.
	RawCount int
	// PrevCursor is the cursor of the request being served, used for the
	// stall guard.
	PrevCursor *models.Cursor
	// Scores, when ranked, provides per-id final scores for the composite
	// cursor. Nil for chronological feeds.
	Scores map[string]float64
}

// AssemblePage turns a deduplicated, hydrated, trimmed list into the page
// contract. The next cursor derives from the last item of the final list
// (hydration can drop items the ranking step kept); a cursor that fails to
// advance is dropped with hasMore=false rather than risking a loop.
func AssemblePage(items []models.HydratedPost, p PageParams) models.FeedPage {
	page := models.FeedPage{
		Items:      items,
		HasMore:    p.RawCount > p.Limit,
		TotalCount: len(items),
	}
	if len(items) == 0 {
		page.HasMore = false
		return page
	}
	if !page.HasMore {
		return page
	}

	last := items[len(items)-1]
	next := models.Cursor{ID: last.ID}
	if p.Scores != nil {
		if score, ok := p.Scores[last.ID]; ok {
			next.Score = lo.ToPtr(score)
		}
	}

	if p.PrevCursor != nil && p.PrevCursor.ID == next.ID {
		page.HasMore = false
		return page
	}

	page.NextCursor = lo.ToPtr(next.Encode())
	return page
}
