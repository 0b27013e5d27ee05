package models

import "github.com/google/uuid"

// ItemStatus tracks a backlog item's estimation lifecycle.
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusEstimated ItemStatus = "estimated"
	ItemStatusSkipped   ItemStatus = "skipped"
)

// BacklogItem is a unit of work being estimated. Only items with status
// "pending" are eligible for voting in a session.
type BacklogItem struct {
	ID             uuid.UUID        `json:"id"`
	Title          string           `json:"title"`
	Status         ItemStatus       `json:"status"`
	EstimationType EstimationScheme `json:"estimation_type,omitempty"`
	TimeLimitSec   int              `json:"time_limit_sec"`
	Position       int              `json:"position"`
}
