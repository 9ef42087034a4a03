package models

import (
	"time"

	"gorm.io/datatypes"
)

type Poll struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Question  string                          `json:"question"`
	Options   datatypes.JSONSlice[PollOption] `json:"options"`
	AuthorID  string                          `json:"author_id"`
	ExpiredAt *time.Time                      `json:"expired_at"`
}

type PollOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PollAnswer struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	PollID   string `json:"poll_id" gorm:"index"`
	ViewerID string `json:"viewer_id"`
	Answer   string `json:"answer"`
}

type PollSummary struct {
	ID          string                `json:"id"`
	Question    string                `json:"question"`
	Options     []PollOptionSummary   `json:"options"`
	TotalAnswer int64                 `json:"total_answer"`
	ExpiredAt   *time.Time            `json:"expired_at"`
}

type PollOptionSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}
