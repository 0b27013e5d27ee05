package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantRole controls mutating authority in a session. The moderator
// is the sole driver of the timer, reveal decisions and item navigation.
type ParticipantRole string

const (
	RoleModerator ParticipantRole = "moderator"
	RoleMember    ParticipantRole = "member"
	RoleObserver  ParticipantRole = "observer"
)

// Participant is a currently connected user in a session, derived from
// presence events rather than from vote data.
type Participant struct {
	UserID   uuid.UUID       `json:"user_id"`
	Name     string          `json:"user_name"`
	Role     ParticipantRole `json:"user_role"`
	JoinedAt time.Time       `json:"joined_at"`
}
