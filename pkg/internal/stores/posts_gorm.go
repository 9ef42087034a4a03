package stores

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/plaza-social/plaza/pkg/internal/queries"
	"gorm.io/gorm"
)

// jsonSliceColumns are stored as jsonb arrays; existence means non-empty.
var jsonSliceColumns = map[string]bool{
	queries.FieldMedia:       true,
	queries.FieldImages:      true,
	queries.FieldAttachments: true,
	queries.FieldHashtags:    true,
}

// GormPostStore is the Postgres-backed post store.
type GormPostStore struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewGormPostStore(db *gorm.DB) *GormPostStore {
	return &GormPostStore{db: db, timeout: DefaultQueryTimeout}
}

func (s *GormPostStore) List(ctx context.Context, q PostQuery) ([]models.Post, error) {
	if q.Limit <= 0 || q.Limit > MaxQueryResults {
		return nil, ErrResultCapExceeded
	}

	clause, args, err := compileNode(q.Predicate)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx := s.db.WithContext(ctx).Model(&models.Post{})
	if len(clause) > 0 {
		tx = tx.Where(clause, args...)
	}

	order := q.Sort.Field
	if q.Sort.Desc {
		order += " DESC"
	}

	var posts []models.Post
	if err := tx.Order(order).Limit(q.Limit).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts: %v", err)
	}
	return posts, nil
}

func (s *GormPostStore) FindByIDs(ctx context.Context, ids []string) ([]models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var posts []models.Post
	if err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to load posts by id: %v", err)
	}
	return posts, nil
}

func (s *GormPostStore) Create(ctx context.Context, post *models.Post) error {
	return s.db.WithContext(ctx).Create(post).Error
}

func (s *GormPostStore) Save(ctx context.Context, post *models.Post) error {
	return s.db.WithContext(ctx).Save(post).Error
}

func (s *GormPostStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Post{}, "id = ?", id).Error
}

func (s *GormPostStore) IncrementCounter(ctx context.Context, id string, field CounterField, delta int64) error {
	column := string(field)
	return s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

// compileNode renders the predicate tree into a SQL fragment with args.
func compileNode(node queries.Node) (string, []any, error) {
	switch {
	case node.Cond != nil:
		return compileCondition(*node.Cond)
	case len(node.All) > 0:
		return compileJunction(node.All, " AND ")
	case len(node.Any) > 0:
		return compileJunction(node.Any, " OR ")
	default:
		return "", nil, nil
	}
}

func compileJunction(nodes []queries.Node, sep string) (string, []any, error) {
	var parts []string
	var args []any
	for _, child := range nodes {
		clause, childArgs, err := compileNode(child)
		if err != nil {
			return "", nil, err
		}
		if len(clause) == 0 {
			continue
		}
		parts = append(parts, clause)
		args = append(args, childArgs...)
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func compileCondition(cond queries.Condition) (string, []any, error) {
	col := cond.Field

	switch cond.Op {
	case queries.OpEq:
		return col + " = ?", []any{cond.Value}, nil
	case queries.OpNe:
		return col + " <> ?", []any{cond.Value}, nil
	case queries.OpIn:
		return col + " IN ?", []any{cond.Value}, nil
	case queries.OpNotIn:
		return col + " NOT IN ?", []any{cond.Value}, nil
	case queries.OpLt:
		return col + " < ?", []any{cond.Value}, nil
	case queries.OpGte:
		return col + " >= ?", []any{cond.Value}, nil
	case queries.OpLte:
		return col + " <= ?", []any{cond.Value}, nil
	case queries.OpExists:
		if jsonSliceColumns[col] {
			return "jsonb_array_length(COALESCE(" + col + ", '[]'::jsonb)) > 0", nil, nil
		}
		return col + " IS NOT NULL AND " + col + " <> ''", nil, nil
	case queries.OpNotExist:
		if jsonSliceColumns[col] {
			return "jsonb_array_length(COALESCE(" + col + ", '[]'::jsonb)) = 0", nil, nil
		}
		return "(" + col + " IS NULL OR " + col + " = '')", nil, nil
	case queries.OpContains:
		raw, err := json.Marshal([]any{cond.Value})
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode containment probe: %v", err)
		}
		return col + " @> ?", []any{string(raw)}, nil
	case queries.OpSearch:
		probe, _ := cond.Value.(string)
		return col + " ILIKE ?", []any{"%" + probe + "%"}, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate op: %s", cond.Op)
	}
}
