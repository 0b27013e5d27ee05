package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/go/internal/models"
)

// PresenceKind distinguishes the presence sub-protocol messages.
type PresenceKind string

const (
	PresenceTrack PresenceKind = "track"
	PresenceLeave PresenceKind = "leave"
)

// PresenceState is what each client tracks about itself on the presence
// topic.
type PresenceState struct {
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	UserRole string    `json:"user_role"`
	JoinedAt time.Time `json:"joined_at"`
}

// PresenceMessage is the wire form of a presence event.
type PresenceMessage struct {
	Kind  PresenceKind  `json:"kind"`
	State PresenceState `json:"state"`
}

// Roster is the derived set of currently connected participants, keyed by
// user_id. The last writer per id wins, so duplicate tabs for one user
// collapse to a single entry.
type Roster struct {
	mu      sync.RWMutex
	entries map[string]PresenceState
}

func NewRoster() *Roster {
	return &Roster{entries: make(map[string]PresenceState)}
}

// Apply folds one presence message into the roster and reports whether the
// participant set changed (join or leave, as opposed to a re-track).
func (r *Roster) Apply(msg PresenceMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch msg.Kind {
	case PresenceTrack:
		_, known := r.entries[msg.State.UserID]
		r.entries[msg.State.UserID] = msg.State
		return !known
	case PresenceLeave:
		if _, known := r.entries[msg.State.UserID]; known {
			delete(r.entries, msg.State.UserID)
			return true
		}
	}
	return false
}

// Sync replaces the roster wholesale from a full state snapshot.
func (r *Roster) Sync(states []PresenceState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]PresenceState, len(states))
	for _, state := range states {
		r.entries[state.UserID] = state
	}
}

// Participants returns the roster as participant models ordered by join
// time, earliest first.
func (r *Roster) Participants() []models.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	participants := make([]models.Participant, 0, len(r.entries))
	for _, state := range r.entries {
		id, err := uuid.Parse(state.UserID)
		if err != nil {
			continue
		}
		participants = append(participants, models.Participant{
			UserID:   id,
			Name:     state.UserName,
			Role:     models.ParticipantRole(state.UserRole),
			JoinedAt: state.JoinedAt,
		})
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants
}

// Count returns the number of distinct connected users.
func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Track publishes the local user's presence. Called once the session
// subscription is established, and again on every re-subscribe.
func (c *Channel) Track(ctx context.Context, sessionID uuid.UUID, state PresenceState) error {
	return c.publishPresence(ctx, sessionID, PresenceMessage{Kind: PresenceTrack, State: state})
}

// Leave announces the local user departing the session.
func (c *Channel) Leave(ctx context.Context, sessionID uuid.UUID, state PresenceState) error {
	return c.publishPresence(ctx, sessionID, PresenceMessage{Kind: PresenceLeave, State: state})
}

func (c *Channel) publishPresence(ctx context.Context, sessionID uuid.UUID, msg PresenceMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal presence message: %w", err)
	}
	if err := c.nc.Publish(c.PresenceSubject(sessionID), data); err != nil {
		return fmt.Errorf("publish presence %s: %w", msg.Kind, err)
	}
	return nil
}

// SubscribePresence registers a handler for a session's presence messages.
func (c *Channel) SubscribePresence(sessionID uuid.UUID, handler func(PresenceMessage)) (*Subscription, error) {
	sub, err := c.nc.Subscribe(c.PresenceSubject(sessionID), func(msg *nats.Msg) {
		var pm PresenceMessage
		if err := json.Unmarshal(msg.Data, &pm); err != nil {
			log.Error().
				Err(err).
				Str("subject", msg.Subject).
				Msg("dropping malformed presence message")
			return
		}
		handler(pm)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to session presence: %w", err)
	}
	return &Subscription{subs: []*nats.Subscription{sub}}, nil
}
