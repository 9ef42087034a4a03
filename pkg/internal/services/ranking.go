package services

import (
	"math"
	"sort"
	"time"

	"github.com/plaza-social/plaza/pkg/internal/models"
)

type RankMode int

const (
	RankModePersonal RankMode = iota
	RankModeTrending
)

// RankingConfig holds the scoring weights. The personalization blend is a
// tunable policy; defaults live in DefaultRankingConfig and production values
// come from the ranking.* settings keys.
type RankingConfig struct {
	Epsilon        float64
	TrendingWindow time.Duration

	EngagementWeight float64
	AuthorWeight     float64
	TopicWeight      float64
	TypeWeight       float64
	RecencyWeight    float64
}

func DefaultRankingConfig() RankingConfig {
	return RankingConfig{
		Epsilon:          0.001,
		TrendingWindow:   24 * time.Hour,
		EngagementWeight: 1.0,
		AuthorWeight:     35,
		TopicWeight:      20,
		TypeWeight:       10,
		RecencyWeight:    10,
	}
}

type ScoredPost struct {
	models.Post
	Score float64
}

type Ranker struct {
	cfg RankingConfig
	now func() time.Time
}

func NewRanker(cfg RankingConfig) *Ranker {
	return &Ranker{cfg: cfg, now: time.Now}
}

// Rank scores the candidate batch and sorts it into a strict total order:
// descending score, with scores within epsilon considered equal and broken by
// descending id. Two requests over the same batch always agree on ordering.
func (r *Ranker) Rank(posts []models.Post, viewer *models.ViewerContext, mode RankMode) []ScoredPost {
	now := r.now()

	scored := make([]ScoredPost, len(posts))
	for i, post := range posts {
		scored[i] = ScoredPost{Post: post, Score: r.score(post, viewer, mode, now)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		diff := scored[i].Score - scored[j].Score
		if math.Abs(diff) <= r.cfg.Epsilon {
			return scored[i].ID > scored[j].ID
		}
		return diff > 0
	})
	return scored
}

// AfterCursor drops everything at or before the cursor position in ranking
// order: keep (score < cursorScore) OR (score == cursorScore AND id < id),
// with the epsilon equality rule, so ties never skip or repeat.
func (r *Ranker) AfterCursor(scored []ScoredPost, cursor *models.Cursor) []ScoredPost {
	if cursor == nil || cursor.Score == nil {
		return scored
	}

	out := make([]ScoredPost, 0, len(scored))
	for _, candidate := range scored {
		diff := candidate.Score - *cursor.Score
		switch {
		case diff < -r.cfg.Epsilon:
			out = append(out, candidate)
		case math.Abs(diff) <= r.cfg.Epsilon && candidate.ID < cursor.ID:
			out = append(out, candidate)
		}
	}
	return out
}

func (r *Ranker) score(post models.Post, viewer *models.ViewerContext, mode RankMode, now time.Time) float64 {
	engagement := float64(post.LikeCount) +
		2*float64(post.RepostCount) +
		1.5*float64(post.CommentCount)

	switch mode {
	case RankModeTrending:
		engagement += 2*float64(post.SaveCount) +
			2*float64(post.ShareCount) +
			0.1*float64(post.ViewCount)
		return engagement + r.freshness(post, now)*r.cfg.RecencyWeight
	default:
		score := engagement * r.cfg.EngagementWeight
		if viewer.Authenticated() {
			score += r.authorAffinity(post, viewer) * r.cfg.AuthorWeight
			score += r.topicAffinity(post, viewer) * r.cfg.TopicWeight
			score += viewer.TypeWeights[post.Type] * r.cfg.TypeWeight
		}
		return score
	}
}

// freshness is 1 for a brand new post and decays linearly to 0 over the
// trailing window, so equally-engaged fresher posts rank above older ones.
func (r *Ranker) freshness(post models.Post, now time.Time) float64 {
	age := now.Sub(post.CreatedAt)
	if age < 0 {
		age = 0
	}
	if age >= r.cfg.TrendingWindow {
		return 0
	}
	return 1 - float64(age)/float64(r.cfg.TrendingWindow)
}

// authorAffinity is the relationship strength toward the post's author in
// [0, 1]. An explicit behavior-profile weight wins; plain following counts
// for half.
func (r *Ranker) authorAffinity(post models.Post, viewer *models.ViewerContext) float64 {
	if weight, ok := viewer.AuthorWeights[post.AuthorID]; ok {
		return clampUnit(weight)
	}
	if viewer.IsFollowing(post.AuthorID) {
		return 0.5
	}
	return 0
}

// topicAffinity is the hashtag overlap weight in [0, 1].
func (r *Ranker) topicAffinity(post models.Post, viewer *models.ViewerContext) float64 {
	if len(post.Hashtags) == 0 || len(viewer.TopicWeights) == 0 {
		return 0
	}
	var total float64
	for _, tag := range post.Hashtags {
		total += viewer.TopicWeights[tag]
	}
	return clampUnit(total)
}

func clampUnit(value float64) float64 {
	return math.Max(0, math.Min(1, value))
}
