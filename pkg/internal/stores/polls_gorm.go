package stores

import (
	"context"
	"fmt"

	"github.com/plaza-social/plaza/pkg/internal/models"
	"gorm.io/gorm"
)

type GormPollStore struct {
	db *gorm.DB
}

func NewGormPollStore(db *gorm.DB) *GormPollStore {
	return &GormPollStore{db: db}
}

func (s *GormPollStore) ListPolls(ctx context.Context, ids []string) (map[string]models.PollSummary, error) {
	if len(ids) == 0 {
		return map[string]models.PollSummary{}, nil
	}

	var polls []models.Poll
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&polls).Error; err != nil {
		return nil, fmt.Errorf("failed to load polls: %v", err)
	}

	var tallies []struct {
		PollID string
		Answer string
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.PollAnswer{}).
		Select("poll_id, answer, COUNT(id) as count").
		Where("poll_id IN ?", ids).
		Group("poll_id").Group("answer").
		Scan(&tallies).Error; err != nil {
		return nil, fmt.Errorf("failed to tally poll answers: %v", err)
	}

	counts := make(map[string]map[string]int64)
	totals := make(map[string]int64)
	for _, tally := range tallies {
		if counts[tally.PollID] == nil {
			counts[tally.PollID] = make(map[string]int64)
		}
		counts[tally.PollID][tally.Answer] = tally.Count
		totals[tally.PollID] += tally.Count
	}

	out := make(map[string]models.PollSummary, len(polls))
	for _, poll := range polls {
		summary := models.PollSummary{
			ID:          poll.ID,
			Question:    poll.Question,
			TotalAnswer: totals[poll.ID],
			ExpiredAt:   poll.ExpiredAt,
		}
		for _, option := range poll.Options {
			count := counts[poll.ID][option.ID]
			entry := models.PollOptionSummary{
				ID:    option.ID,
				Name:  option.Name,
				Count: count,
			}
			if summary.TotalAnswer > 0 {
				entry.Percentage = float64(count) / float64(summary.TotalAnswer)
			}
			summary.Options = append(summary.Options, entry)
		}
		out[poll.ID] = summary
	}
	return out, nil
}
