package stores

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/plaza-social/plaza/pkg/internal/queries"
	"github.com/samber/lo"
)

// MemoryPostStore keeps posts in-process. It evaluates the same predicate
// trees the gorm store compiles, which makes it the fixture of choice for
// pipeline tests and local development.
type MemoryPostStore struct {
	mu    sync.RWMutex
	posts map[string]models.Post
}

func NewMemoryPostStore() *MemoryPostStore {
	return &MemoryPostStore{posts: make(map[string]models.Post)}
}

func (s *MemoryPostStore) Seed(posts ...models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, post := range posts {
		post.Kind = post.ResolveKind()
		s.posts[post.ID] = post
	}
}

func (s *MemoryPostStore) List(ctx context.Context, q PostQuery) ([]models.Post, error) {
	if q.Limit <= 0 || q.Limit > MaxQueryResults {
		return nil, ErrResultCapExceeded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]models.Post, 0)
	for _, post := range s.posts {
		if evalNode(q.Predicate, post) {
			matched = append(matched, post)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := sortKey(matched[i], q.Sort), sortKey(matched[j], q.Sort)
		if q.Sort.Desc {
			return a > b
		}
		return a < b
	})

	if len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (s *MemoryPostStore) FindByIDs(ctx context.Context, ids []string) ([]models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		if post, ok := s.posts[id]; ok {
			out = append(out, post)
		}
	}
	return out, nil
}

func (s *MemoryPostStore) Create(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post.Kind = post.ResolveKind()
	s.posts[post.ID] = *post
	return nil
}

func (s *MemoryPostStore) Save(ctx context.Context, post *models.Post) error {
	return s.Create(ctx, post)
}

func (s *MemoryPostStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.posts, id)
	return nil
}

func (s *MemoryPostStore) IncrementCounter(ctx context.Context, id string, field CounterField, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return ErrNotFound
	}
	switch field {
	case CounterLikes:
		post.LikeCount += delta
	case CounterReposts:
		post.RepostCount += delta
	case CounterComments:
		post.CommentCount += delta
	case CounterViews:
		post.ViewCount += delta
	case CounterShares:
		post.ShareCount += delta
	case CounterSaves:
		post.SaveCount += delta
	}
	s.posts[id] = post
	return nil
}

func sortKey(post models.Post, s queries.Sort) string {
	switch s.Field {
	case queries.FieldCreatedAt:
		return post.CreatedAt.UTC().Format(time.RFC3339Nano)
	default:
		return post.ID
	}
}

func evalNode(node queries.Node, post models.Post) bool {
	switch {
	case node.Cond != nil:
		return evalCondition(*node.Cond, post)
	case len(node.All) > 0:
		for _, child := range node.All {
			if !evalNode(child, post) {
				return false
			}
		}
		return true
	case len(node.Any) > 0:
		for _, child := range node.Any {
			if evalNode(child, post) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func evalCondition(cond queries.Condition, post models.Post) bool {
	switch cond.Op {
	case queries.OpEq:
		return fieldString(post, cond.Field) == toString(cond.Value)
	case queries.OpNe:
		return fieldString(post, cond.Field) != toString(cond.Value)
	case queries.OpIn:
		values, _ := cond.Value.([]string)
		return lo.Contains(values, fieldString(post, cond.Field))
	case queries.OpNotIn:
		values, _ := cond.Value.([]string)
		return !lo.Contains(values, fieldString(post, cond.Field))
	case queries.OpLt:
		if cond.Field == queries.FieldCreatedAt {
			when, ok := cond.Value.(time.Time)
			return ok && post.CreatedAt.Before(when)
		}
		return fieldString(post, cond.Field) < toString(cond.Value)
	case queries.OpGte:
		if cond.Field == queries.FieldCreatedAt {
			when, ok := cond.Value.(time.Time)
			return ok && !post.CreatedAt.Before(when)
		}
		return fieldString(post, cond.Field) >= toString(cond.Value)
	case queries.OpLte:
		if cond.Field == queries.FieldCreatedAt {
			when, ok := cond.Value.(time.Time)
			return ok && !post.CreatedAt.After(when)
		}
		return fieldString(post, cond.Field) <= toString(cond.Value)
	case queries.OpExists:
		return fieldPresent(post, cond.Field)
	case queries.OpNotExist:
		return !fieldPresent(post, cond.Field)
	case queries.OpContains:
		probe := strings.ToLower(toString(cond.Value))
		for _, tag := range post.Hashtags {
			if strings.ToLower(tag) == probe {
				return true
			}
		}
		return false
	case queries.OpSearch:
		probe := strings.ToLower(toString(cond.Value))
		return strings.Contains(strings.ToLower(post.Content), probe)
	default:
		return false
	}
}

func fieldString(post models.Post, field string) string {
	switch field {
	case queries.FieldID:
		return post.ID
	case queries.FieldAuthorID:
		return post.AuthorID
	case queries.FieldVisibility:
		return post.Visibility
	case queries.FieldStatus:
		return post.Status
	case queries.FieldType:
		return post.Type
	case queries.FieldLanguage:
		return post.Language
	case queries.FieldParentPostID:
		return deref(post.ParentPostID)
	case queries.FieldRepostOf:
		return deref(post.RepostOf)
	case queries.FieldQuoteOf:
		return deref(post.QuoteOf)
	default:
		return ""
	}
}

func fieldPresent(post models.Post, field string) bool {
	switch field {
	case queries.FieldParentPostID:
		return deref(post.ParentPostID) != ""
	case queries.FieldRepostOf:
		return deref(post.RepostOf) != ""
	case queries.FieldQuoteOf:
		return deref(post.QuoteOf) != ""
	case queries.FieldMedia:
		return len(post.Media) > 0
	case queries.FieldImages:
		return len(post.Images) > 0
	case queries.FieldVideo:
		return deref(post.Video) != ""
	case queries.FieldAttachments:
		return len(post.Attachments) > 0
	case queries.FieldHashtags:
		return len(post.Hashtags) > 0
	default:
		return fieldString(post, field) != ""
	}
}

func toString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
