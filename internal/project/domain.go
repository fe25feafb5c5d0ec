package project

import (
	"errors"
	"time"
)

// Status is the publication state of a project.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ErrInvalidStatus indicates a status outside the closed set.
var ErrInvalidStatus = errors.New("project: invalid status")

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusInactive:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// Project is a fundraising campaign. Amounts are minor currency units.
type Project struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	GoalMinor   int64     `json:"goal_amount"`
	RaisedMinor int64     `json:"raised_amount"`
	ImageURL    string    `json:"image_url,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
