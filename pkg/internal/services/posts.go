package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pemistahl/lingua-go"
	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/plaza-social/plaza/pkg/internal/stores"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// ErrNotAuthor rejects writes against a post the viewer does not own.
var ErrNotAuthor = errors.New("only the author can modify a post")

// PostService owns the write side of the post collection. It exists mostly so
// the feed pipeline has a real producer; the feed itself never writes posts.
type PostService struct {
	posts    stores.PostStore
	detector lingua.LanguageDetector
}

func NewPostService(posts stores.PostStore) *PostService {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllSpokenLanguages().
		Build()
	return &PostService{posts: posts, detector: detector}
}

func (s *PostService) New(ctx context.Context, item models.Post) (models.Post, []models.DeferredTask, error) {
	if len(item.AuthorID) == 0 {
		return item, nil, fmt.Errorf("post must have an author")
	}
	if len(strings.TrimSpace(item.Content)) == 0 && !item.HasMedia() && item.PollID == nil {
		return item, nil, fmt.Errorf("post must carry content, media or a poll")
	}

	refs := 0
	for _, ref := range []*string{item.ParentPostID, item.RepostOf, item.QuoteOf} {
		if ref != nil && len(*ref) > 0 {
			refs++
		}
	}
	if refs > 1 {
		return item, nil, fmt.Errorf("post can reference at most one of reply, repost or quote target")
	}

	// Reference targets have to exist; a dangling repost renders as a hole in
	// every feed that includes it.
	if ref := item.ReferenceID(); ref != nil {
		targets, err := s.posts.FindByIDs(ctx, []string{*ref})
		if err != nil {
			return item, nil, fmt.Errorf("failed to check reference target: %v", err)
		}
		if len(targets) == 0 {
			return item, nil, fmt.Errorf("referenced post %s does not exist", *ref)
		}
	}

	if len(item.ID) == 0 {
		item.ID = uuid.NewString()
	}
	if len(item.Status) == 0 {
		item.Status = models.PostStatusPublished
	}
	if len(item.Visibility) == 0 {
		item.Visibility = models.PostVisibilityPublic
	}
	if len(item.ReplyPermission) == 0 {
		item.ReplyPermission = models.ReplyPermissionAnyone
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if len(item.Language) == 0 {
		item.Language = s.detectLanguage(item.Content)
	}
	item.Kind = item.ResolveKind()

	log.Debug().Str("author", item.AuthorID).Str("kind", item.Kind).Msg("Posting a post...")
	if err := s.posts.Create(ctx, &item); err != nil {
		return item, nil, fmt.Errorf("failed to save post: %v", err)
	}

	// The parent's comment counter accrues off the response path; the caller
	// dispatches this once the reply is already on the wire.
	var deferred []models.DeferredTask
	if item.ParentPostID != nil {
		parentID := *item.ParentPostID
		deferred = append(deferred, func(ctx context.Context) {
			if err := s.posts.IncrementCounter(ctx, parentID, stores.CounterComments, 1); err != nil {
				log.Warn().Err(err).Str("post", parentID).Msg("Failed to bump parent comment count...")
			}
		})
	}

	return item, deferred, nil
}

func (s *PostService) Edit(ctx context.Context, item models.Post) (models.Post, error) {
	existing, err := s.posts.FindByIDs(ctx, []string{item.ID})
	if err != nil {
		return item, fmt.Errorf("failed to load post: %v", err)
	}
	if len(existing) == 0 {
		return item, stores.ErrNotFound
	}
	if existing[0].AuthorID != item.AuthorID {
		return item, ErrNotAuthor
	}

	item.CreatedAt = existing[0].CreatedAt
	item.EditedAt = lo.ToPtr(time.Now())
	if len(item.Language) == 0 {
		item.Language = s.detectLanguage(item.Content)
	}

	if err := s.posts.Save(ctx, &item); err != nil {
		return item, fmt.Errorf("failed to save post: %v", err)
	}
	return item, nil
}

func (s *PostService) Delete(ctx context.Context, id, viewerID string) error {
	existing, err := s.posts.FindByIDs(ctx, []string{id})
	if err != nil {
		return fmt.Errorf("failed to load post: %v", err)
	}
	if len(existing) == 0 {
		return stores.ErrNotFound
	}
	if existing[0].AuthorID != viewerID {
		return ErrNotAuthor
	}
	return s.posts.Delete(ctx, id)
}

// Pin toggles the pin flag and reports the new state.
func (s *PostService) Pin(ctx context.Context, id, viewerID string) (bool, error) {
	existing, err := s.posts.FindByIDs(ctx, []string{id})
	if err != nil {
		return false, fmt.Errorf("failed to load post: %v", err)
	}
	if len(existing) == 0 {
		return false, stores.ErrNotFound
	}
	if existing[0].AuthorID != viewerID {
		return false, ErrNotAuthor
	}

	item := existing[0]
	if item.PinnedAt != nil {
		item.PinnedAt = nil
	} else {
		item.PinnedAt = lo.ToPtr(time.Now())
	}
	if err := s.posts.Save(ctx, &item); err != nil {
		return item.PinnedAt != nil, err
	}
	return item.PinnedAt != nil, nil
}

func (s *PostService) detectLanguage(content string) string {
	if len(strings.TrimSpace(content)) == 0 {
		return ""
	}
	if language, ok := s.detector.DetectLanguageOf(content); ok {
		return strings.ToLower(language.IsoCode639_1().String())
	}
	return ""
}
