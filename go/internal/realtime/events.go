package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every broadcast on a session's topic.
// Broadcasts are ephemeral, unordered and at-most-once: receivers use them
// as triggers to re-fetch authoritative state, never as the state itself.
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType identifies a broadcast in the session event catalogue.
type EventType string

const (
	EventTimerStart         EventType = "timer-start"
	EventTimerPause         EventType = "timer-pause"
	EventTimerResume        EventType = "timer-resume"
	EventTimerReset         EventType = "timer-reset"
	EventTimerTick          EventType = "timer-tick"
	EventTimerConfigChanged EventType = "timer-config-changed"
	EventVoteSubmitted      EventType = "vote-submitted"
	EventVoteChanged        EventType = "vote-changed"
	EventItemChanged        EventType = "item-changed"
	EventVotesRevealed      EventType = "votes-revealed"
	EventSchemeChanged      EventType = "estimation-type-changed"
)

// TimerStartPayload announces the moderator starting the countdown.
type TimerStartPayload struct {
	TimeLimitSec  int    `json:"time_limit_sec"`
	StartedBy     string `json:"started_by"`
	StartedByName string `json:"started_by_name"`
	ItemID        string `json:"item_id"`
}

// TimerPausePayload announces a paused countdown.
type TimerPausePayload struct {
	PausedBy     string `json:"paused_by"`
	PausedByName string `json:"paused_by_name"`
}

// TimerResumePayload announces a resumed countdown.
type TimerResumePayload struct {
	ResumedBy     string `json:"resumed_by"`
	ResumedByName string `json:"resumed_by_name"`
}

// TimerResetPayload announces the countdown returning to its full limit.
type TimerResetPayload struct {
	TimeLimitSec int    `json:"time_limit_sec"`
	ResetBy      string `json:"reset_by"`
	ResetByName  string `json:"reset_by_name"`
}

// TimerTickPayload mirrors the moderator's countdown to every client once
// per second. Non-moderator clients never run their own countdown.
type TimerTickPayload struct {
	TimeLeftSec  int     `json:"time_left_sec"`
	IsActive     bool    `json:"is_active"`
	TotalTimeSec int     `json:"total_time_sec"`
	Progress     float64 `json:"progress"`
	ItemID       string  `json:"item_id"`
}

// TimerConfigChangedPayload announces a new voting time limit.
type TimerConfigChangedPayload struct {
	NewTimeLimitSec int    `json:"new_time_limit_sec"`
	ChangedBy       string `json:"changed_by"`
	ChangedByName   string `json:"changed_by_name"`
}

// VotePayload is shared by vote-submitted and vote-changed.
type VotePayload struct {
	ItemID    string    `json:"item_id"`
	VoterID   string    `json:"voter_id"`
	VoterName string    `json:"voter_name"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// ItemChangedPayload moves every client to a new backlog item in lockstep.
type ItemChangedPayload struct {
	NewItemIndex int    `json:"new_item_index"`
	ChangedBy    string `json:"changed_by"`
	NewItemTitle string `json:"new_item_title"`
}

// VotesRevealedPayload makes the current item's votes visible everywhere.
type VotesRevealedPayload struct {
	ItemID     string `json:"item_id"`
	RevealedBy string `json:"revealed_by"`
}

// SchemeChangedPayload announces a runtime estimation-scheme switch.
// HadVotes lets receivers show a richer notification when votes were
// discarded by the switch.
type SchemeChangedPayload struct {
	NewEstimationType string `json:"new_estimation_type"`
	ChangedBy         string `json:"changed_by"`
	HadVotes          bool   `json:"had_votes"`
}

// NewEvent wraps a payload in an event envelope.
func NewEvent(sessionID uuid.UUID, eventType EventType, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// ParseEventPayload decodes an event's data into the payload struct for
// its type. Unknown types decode to nil so that new event kinds never
// corrupt older clients.
func ParseEventPayload(event *Event) (any, error) {
	switch event.Type {
	case EventTimerStart:
		var payload TimerStartPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTimerPause:
		var payload TimerPausePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTimerResume:
		var payload TimerResumePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTimerReset:
		var payload TimerResetPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTimerTick:
		var payload TimerTickPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTimerConfigChanged:
		var payload TimerConfigChangedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventVoteSubmitted, EventVoteChanged:
		var payload VotePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventItemChanged:
		var payload ItemChangedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventVotesRevealed:
		var payload VotesRevealedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventSchemeChanged:
		var payload SchemeChangedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil
	}
}
