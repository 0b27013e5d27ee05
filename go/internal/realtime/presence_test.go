package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackMsg(id uuid.UUID, name string, joinedAt time.Time) PresenceMessage {
	return PresenceMessage{
		Kind: PresenceTrack,
		State: PresenceState{
			UserID:   id.String(),
			UserName: name,
			UserRole: "member",
			JoinedAt: joinedAt,
		},
	}
}

func TestRosterTrackAndLeave(t *testing.T) {
	roster := NewRoster()
	id := uuid.New()

	assert.True(t, roster.Apply(trackMsg(id, "Ana", time.Now())))
	assert.Equal(t, 1, roster.Count())

	assert.True(t, roster.Apply(PresenceMessage{
		Kind:  PresenceLeave,
		State: PresenceState{UserID: id.String()},
	}))
	assert.Equal(t, 0, roster.Count())
}

func TestRosterRetrackIsNotAChange(t *testing.T) {
	roster := NewRoster()
	id := uuid.New()

	assert.True(t, roster.Apply(trackMsg(id, "Ana", time.Now())))

	// A second tab re-tracking the same user updates the entry without
	// changing the participant set.
	assert.False(t, roster.Apply(trackMsg(id, "Ana B", time.Now())))
	assert.Equal(t, 1, roster.Count())

	participants := roster.Participants()
	require.Len(t, participants, 1)
	assert.Equal(t, "Ana B", participants[0].Name)
}

func TestRosterLeaveUnknownUser(t *testing.T) {
	roster := NewRoster()

	assert.False(t, roster.Apply(PresenceMessage{
		Kind:  PresenceLeave,
		State: PresenceState{UserID: uuid.New().String()},
	}))
}

func TestRosterParticipantsOrderedByJoinTime(t *testing.T) {
	roster := NewRoster()
	base := time.Now()

	late := uuid.New()
	early := uuid.New()
	roster.Apply(trackMsg(late, "Late", base.Add(time.Minute)))
	roster.Apply(trackMsg(early, "Early", base))

	participants := roster.Participants()
	require.Len(t, participants, 2)
	assert.Equal(t, "Early", participants[0].Name)
	assert.Equal(t, "Late", participants[1].Name)
}

func TestRosterSyncReplacesEntries(t *testing.T) {
	roster := NewRoster()
	roster.Apply(trackMsg(uuid.New(), "Old", time.Now()))

	fresh := uuid.New()
	roster.Sync([]PresenceState{{
		UserID:   fresh.String(),
		UserName: "Fresh",
		JoinedAt: time.Now(),
	}})

	participants := roster.Participants()
	require.Len(t, participants, 1)
	assert.Equal(t, fresh, participants[0].UserID)
}

func TestRosterSkipsUnparseableIDs(t *testing.T) {
	roster := NewRoster()
	roster.Apply(PresenceMessage{
		Kind:  PresenceTrack,
		State: PresenceState{UserID: "not-a-uuid", UserName: "Ghost"},
	})

	// The entry counts as connected but cannot be surfaced as a
	// participant model.
	assert.Equal(t, 1, roster.Count())
	assert.Empty(t, roster.Participants())
}
