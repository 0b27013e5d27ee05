package models

import (
	"time"

	"github.com/google/uuid"
)

// Vote is one participant's judgment for a backlog item. Points is kept as
// a string so that numeric votes and size labels share one representation.
// At most one vote exists per (session, item, user); a resubmission updates
// the existing row, never duplicates it.
type Vote struct {
	ItemID      uuid.UUID       `json:"item_id"`
	SessionID   uuid.UUID       `json:"session_id"`
	UserID      uuid.UUID       `json:"user_id"`
	UserName    string          `json:"user_name"`
	UserRole    ParticipantRole `json:"user_role"`
	Points      string          `json:"points"`
	SubmittedAt time.Time       `json:"submitted_at"`

	// CanEdit is derived, true iff the vote belongs to the local user.
	// It is never persisted.
	CanEdit bool `json:"can_edit"`
}
