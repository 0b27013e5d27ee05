package voting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointdeck/pointdeck/go/internal/estimation"
	"github.com/pointdeck/pointdeck/go/internal/models"
	"github.com/pointdeck/pointdeck/go/internal/realtime"
)

type fakeStore struct {
	mu         sync.Mutex
	votes      map[string]models.Vote
	submitErr  error
	fetchCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{votes: make(map[string]models.Vote)}
}

func voteKey(sessionID, itemID, userID uuid.UUID) string {
	return fmt.Sprintf("%s|%s|%s", sessionID, itemID, userID)
}

func (s *fakeStore) SubmitEstimation(ctx context.Context, sessionID, itemID, userID uuid.UUID, value string) (*models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitErr != nil {
		return nil, s.submitErr
	}
	vote := models.Vote{
		SessionID:   sessionID,
		ItemID:      itemID,
		UserID:      userID,
		Points:      value,
		SubmittedAt: time.Now(),
	}
	s.votes[voteKey(sessionID, itemID, userID)] = vote
	return &vote, nil
}

func (s *fakeStore) GetEstimationsForItem(ctx context.Context, sessionID, itemID uuid.UUID) ([]models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetchCalls++
	var votes []models.Vote
	for _, v := range s.votes {
		if v.SessionID == sessionID && v.ItemID == itemID {
			votes = append(votes, v)
		}
	}
	return votes, nil
}

func (s *fakeStore) GetUserVote(ctx context.Context, sessionID, itemID, userID uuid.UUID) (*models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.votes[voteKey(sessionID, itemID, userID)]; ok {
		return &v, nil
	}
	return nil, estimation.ErrNoVote
}

func (s *fakeStore) DeleteEstimationsForItem(ctx context.Context, sessionID, itemID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, v := range s.votes {
		if v.SessionID == sessionID && v.ItemID == itemID {
			delete(s.votes, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *fakeStore) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.votes)
}

func (s *fakeStore) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

type fakeChannel struct {
	mu     sync.Mutex
	events []*realtime.Event
}

func (c *fakeChannel) Publish(ctx context.Context, event *realtime.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *fakeChannel) published() []*realtime.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*realtime.Event(nil), c.events...)
}

func (c *fakeChannel) lastType() realtime.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return ""
	}
	return c.events[len(c.events)-1].Type
}

func (c *fakeChannel) hasType(t realtime.EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Type == t {
			return true
		}
	}
	return false
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeRecorder) record(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeRecorder) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

type fixture struct {
	controller *Controller
	store      *fakeStore
	channel    *fakeChannel
	notices    *noticeRecorder
	clock      *clockwork.FakeClock
	sessionID  uuid.UUID
	user       models.Participant
	items      []models.BacklogItem
}

func newFixture(t *testing.T, role models.ParticipantRole) *fixture {
	t.Helper()

	sessionID := uuid.New()
	user := models.Participant{
		UserID:   uuid.New(),
		Name:     "Ana",
		Role:     role,
		JoinedAt: time.Now(),
	}
	items := []models.BacklogItem{
		{ID: uuid.New(), Title: "Login flow", Status: models.ItemStatusPending, Position: 0},
		{ID: uuid.New(), Title: "Search index", Status: models.ItemStatusPending, Position: 1},
	}
	store := newFakeStore()
	channel := &fakeChannel{}
	notices := &noticeRecorder{}
	clock := clockwork.NewFakeClock()

	controller := NewController(Config{
		SessionID:      sessionID,
		User:           user,
		Items:          items,
		EstimationType: models.SchemeFibonacci,
		TimeLimitSec:   60,
		Store:          store,
		Channel:        channel,
		Clock:          clock,
		Notify:         notices.record,
	})
	t.Cleanup(controller.Close)

	return &fixture{
		controller: controller,
		store:      store,
		channel:    channel,
		notices:    notices,
		clock:      clock,
		sessionID:  sessionID,
		user:       user,
		items:      items,
	}
}

func mustEvent(t *testing.T, sessionID uuid.UUID, eventType realtime.EventType, payload any) *realtime.Event {
	t.Helper()
	event, err := realtime.NewEvent(sessionID, eventType, payload)
	require.NoError(t, err)
	return event
}

func TestSubmitVoteFirstTime(t *testing.T) {
	f := newFixture(t, models.RoleMember)
	ctx := context.Background()

	require.NoError(t, f.controller.SubmitVote(ctx, "5"))

	assert.Equal(t, 1, f.store.rowCount())
	assert.Equal(t, realtime.EventVoteSubmitted, f.channel.lastType())

	snap := f.controller.Snapshot()
	vote, ok := snap.Votes[f.user.UserID]
	require.True(t, ok)
	assert.Equal(t, "5", vote.Points)
	assert.True(t, vote.CanEdit)
}

func TestSubmitVoteAgainUpdatesInPlace(t *testing.T) {
	f := newFixture(t, models.RoleMember)
	ctx := context.Background()

	require.NoError(t, f.controller.SubmitVote(ctx, "5"))
	require.NoError(t, f.controller.SubmitVote(ctx, "8"))

	// The second submission updates the same row and announces a change.
	assert.Equal(t, 1, f.store.rowCount())
	assert.Equal(t, realtime.EventVoteChanged, f.channel.lastType())

	snap := f.controller.Snapshot()
	assert.Equal(t, "8", snap.Votes[f.user.UserID].Points)
}

func TestSubmitVoteAfterRevealAnnouncesChange(t *testing.T) {
	f := newFixture(t, models.RoleModerator)
	ctx := context.Background()

	require.NoError(t, f.controller.RevealVotes(ctx))
	require.NoError(t, f.controller.SubmitVote(ctx, "3"))

	assert.Equal(t, realtime.EventVoteChanged, f.channel.lastType())
}

func TestSubmitVoteRejectsValueOutsideScheme(t *testing.T) {
	f := newFixture(t, models.RoleMember)

	err := f.controller.SubmitVote(context.Background(), "XL")
	require.Error(t, err)

	assert.Equal(t, 0, f.store.rowCount())
	assert.Empty(t, f.channel.published())

	notices := f.notices.all()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeError, notices[0].Kind)
}

func TestSubmitVoteStoreFailureNotifiesAndRecovers(t *testing.T) {
	f := newFixture(t, models.RoleMember)
	ctx := context.Background()

	f.store.submitErr = errors.New(`pq: column "value" of relation "estimations" does not exist`)
	require.Error(t, f.controller.SubmitVote(ctx, "5"))

	assert.Empty(t, f.channel.published())
	notices := f.notices.all()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeError, notices[0].Kind)

	// The in-flight guard must clear so the user can retry.
	f.store.submitErr = nil
	require.NoError(t, f.controller.SubmitVote(ctx, "5"))
	assert.Equal(t, 1, f.store.rowCount())
}

func TestRevealVotesRequiresModerator(t *testing.T) {
	f := newFixture(t, models.RoleMember)

	err := f.controller.RevealVotes(context.Background())
	assert.ErrorIs(t, err, ErrNotModerator)
	assert.Empty(t, f.channel.published())
}

func TestRevealVotesBroadcasts(t *testing.T) {
	f := newFixture(t, models.RoleModerator)

	require.NoError(t, f.controller.RevealVotes(context.Background()))

	assert.Equal(t, realtime.EventVotesRevealed, f.channel.lastType())
	snap := f.controller.Snapshot()
	assert.True(t, snap.IsRevealed)
	assert.False(t, snap.TimerActive)
	assert.Equal(t, PhaseRevealed, f.controller.Phase())
}

func TestOwnEchoIsIgnored(t *testing.T) {
	f := newFixture(t, models.RoleMember)
	ctx := context.Background()

	event := mustEvent(t, f.sessionID, realtime.EventVoteSubmitted, realtime.VotePayload{
		ItemID:    f.items[0].ID.String(),
		VoterID:   f.user.UserID.String(),
		VoterName: f.user.Name,
		Value:     "5",
	})
	require.NoError(t, f.controller.ApplyRemoteEvent(ctx, event))

	assert.Equal(t, 0, f.store.fetches())
	assert.Empty(t, f.notices.all())
}

func TestRemoteVoteForOtherItemIsIgnored(t *testing.T) {
	f := newFixture(t, models.RoleMember)
	ctx := context.Background()

	event := mustEvent(t, f.sessionID, realtime.EventVoteSubmitted, realtime.VotePayload{
		ItemID:  f.items[1].ID.String(),
		VoterID: uuid.New().String(),
		Value:   "5",
	})
	require.NoError(t, f.controller.ApplyRemoteEvent(ctx, event))

	assert.Equal(t, 0, f.store.fetches())
	assert.Empty(t, f.controller.Snapshot().Votes)
}

func TestRemoteVoteTriggersRefetch(t *testing.T) {
	f := newFixture(t, models.RoleMember)
	ctx := context.Background()

	require.NoError(t, f.controller.SubmitVote(ctx, "5"))

	// Another participant's vote lands in the store before its broadcast
	// arrives here.
	peer := uuid.New()
	_, err := f.store.SubmitEstimation(ctx, f.sessionID, f.items[0].ID, peer, "8")
	require.NoError(t, err)

	event := mustEvent(t, f.sessionID, realtime.EventVoteSubmitted, realtime.VotePayload{
		ItemID:    f.items[0].ID.String(),
		VoterID:   peer.String(),
		VoterName: "Bo",
		Value:     "8",
	})
	require.NoError(t, f.controller.ApplyRemoteEvent(ctx, event))

	assert.Equal(t, 1, f.store.fetches())
	snap := f.controller.Snapshot()
	require.Len(t, snap.Votes, 2)
	assert.True(t, snap.Votes[f.user.UserID].CanEdit)
	assert.False(t, snap.Votes[peer].CanEdit)

	res := f.controller.Consensus()
	assert.True(t, res.HasConsensus)
	assert.Equal(t, "7", res.Consensus)
}

func TestRemoteRevealFlipsState(t *testing.T) {
	f := newFixture(t, models.RoleMember)

	event := mustEvent(t, f.sessionID, realtime.EventVotesRevealed, realtime.VotesRevealedPayload{
		ItemID:     f.items[0].ID.String(),
		RevealedBy: uuid.New().String(),
	})
	require.NoError(t, f.controller.ApplyRemoteEvent(context.Background(), event))

	snap := f.controller.Snapshot()
	assert.True(t, snap.IsRevealed)
	assert.False(t, snap.TimerActive)
}

func TestRemoteRevealForOtherItemIsIgnored(t *testing.T) {
	f := newFixture(t, models.RoleMember)

	event := mustEvent(t, f.sessionID, realtime.EventVotesRevealed, realtime.VotesRevealedPayload{
		ItemID:     f.items[1].ID.String(),
		RevealedBy: uuid.New().String(),
	})
	require.NoError(t, f.controller.ApplyRemoteEvent(context.Background(), event))

	assert.False(t, f.controller.Snapshot().IsRevealed)
}

func TestNextItemResetsPerItemState(t *testing.T) {
	f := newFixture(t, models.RoleModerator)
	ctx := context.Background()

	require.NoError(t, f.controller.SubmitVote(ctx, "5"))
	require.NoError(t, f.controller.RevealVotes(ctx))
	require.NoError(t, f.controller.NextItem(ctx))

	snap := f.controller.Snapshot()
	assert.Equal(t, 1, snap.CurrentItemIndex)
	assert.Empty(t, snap.Votes)
	assert.False(t, snap.IsRevealed)
	assert.False(t, snap.TimerActive)
	assert.Equal(t, 0, snap.TimeRemainingSec)

	// The scheme survives item navigation.
	assert.Equal(t, models.SchemeFibonacci, snap.EstimationType)
	assert.Equal(t, realtime.EventItemChanged, f.channel.lastType())
}

func TestNextItemPastEndIsNoOp(t *testing.T) {
	f := newFixture(t, models.RoleModerator)
	ctx := context.Background()

	require.NoError(t, f.controller.NextItem(ctx))
	before := len(f.channel.published())

	require.NoError(t, f.controller.NextItem(ctx))

	assert.Equal(t, 1, f.controller.Snapshot().CurrentItemIndex)
	assert.Len(t, f.channel.published(), before)
}

func TestPreviousItemBeforeStartIsNoOp(t *testing.T) {
	f := newFixture(t, models.RoleModerator)

	require.NoError(t, f.controller.PreviousItem(context.Background()))

	assert.Equal(t, 0, f.controller.Snapshot().CurrentItemIndex)
	assert.Empty(t, f.channel.published())
}

func TestMemberItemNavigationDoesNotBroadcast(t *testing.T) {
	f := newFixture(t, models.RoleMember)

	require.NoError(t, f.controller.NextItem(context.Background()))

	assert.Equal(t, 1, f.controller.Snapshot().CurrentItemIndex)
	assert.Empty(t, f.channel.published())
}

func TestRemoteItemChangeMovesInLockstep(t *testing.T) {
	f := newFixture(t, models.RoleMember)
	ctx := context.Background()

	require.NoError(t, f.controller.SubmitVote(ctx, "5"))

	event := mustEvent(t, f.sessionID, realtime.EventItemChanged, realtime.ItemChangedPayload{
		NewItemIndex: 1,
		ChangedBy:    uuid.New().String(),
		NewItemTitle: f.items[1].Title,
	})
	require.NoError(t, f.controller.ApplyRemoteEvent(ctx, event))

	snap := f.controller.Snapshot()
	assert.Equal(t, 1, snap.CurrentItemIndex)
	assert.Empty(t, snap.Votes)
	assert.False(t, snap.IsRevealed)
}

func TestRemoteItemChangeOutOfRangeIsIgnored(t *testing.T) {
	f := newFixture(t, models.RoleMember)

	event := mustEvent(t, f.sessionID, realtime.EventItemChanged, realtime.ItemChangedPayload{
		NewItemIndex: 7,
		ChangedBy:    uuid.New().String(),
	})
	require.NoError(t, f.controller.ApplyRemoteEvent(context.Background(), event))

	assert.Equal(t, 0, f.controller.Snapshot().CurrentItemIndex)
}

func TestChangeEstimationTypeClearsVotes(t *testing.T) {
	f := newFixture(t, models.RoleModerator)
	ctx := context.Background()

	require.NoError(t, f.controller.SubmitVote(ctx, "5"))
	require.NoError(t, f.controller.ChangeEstimationType(ctx, models.SchemeTShirt))

	snap := f.controller.Snapshot()
	assert.Equal(t, models.SchemeTShirt, snap.EstimationType)
	assert.Empty(t, snap.Votes)
	assert.False(t, snap.IsRevealed)

	events := f.channel.published()
	last := events[len(events)-1]
	require.Equal(t, realtime.EventSchemeChanged, last.Type)
	payload, err := realtime.ParseEventPayload(last)
	require.NoError(t, err)
	assert.True(t, payload.(realtime.SchemeChangedPayload).HadVotes)
}

func TestChangeEstimationTypeClearsPersistedVotes(t *testing.T) {
	f := newFixture(t, models.RoleModerator)
	ctx := context.Background()

	require.NoError(t, f.controller.SubmitVote(ctx, "5"))
	require.Equal(t, 1, f.store.rowCount())

	require.NoError(t, f.controller.ChangeEstimationType(ctx, models.SchemeTShirt))

	// Old-scheme votes must not survive in the store, or a later
	// re-fetch would resurrect them.
	assert.Equal(t, 0, f.store.rowCount())
}

func TestRestoreOwnVote(t *testing.T) {
	f := newFixture(t, models.RoleMember)
	ctx := context.Background()

	_, err := f.store.SubmitEstimation(ctx, f.sessionID, f.items[0].ID, f.user.UserID, "8")
	require.NoError(t, err)

	require.NoError(t, f.controller.RestoreOwnVote(ctx))

	snap := f.controller.Snapshot()
	vote, ok := snap.Votes[f.user.UserID]
	require.True(t, ok)
	assert.Equal(t, "8", vote.Points)
	assert.True(t, vote.CanEdit)
}

func TestRestoreOwnVoteWithoutPersistedVote(t *testing.T) {
	f := newFixture(t, models.RoleMember)

	require.NoError(t, f.controller.RestoreOwnVote(context.Background()))
	assert.Empty(t, f.controller.Snapshot().Votes)
}

func TestChangeEstimationTypeRejectsUnknownScheme(t *testing.T) {
	f := newFixture(t, models.RoleModerator)

	err := f.controller.ChangeEstimationType(context.Background(), "planets")
	assert.Error(t, err)
}

func TestRemoteSchemeChangeResetsAndNotifies(t *testing.T) {
	f := newFixture(t, models.RoleMember)
	ctx := context.Background()

	require.NoError(t, f.controller.SubmitVote(ctx, "5"))

	event := mustEvent(t, f.sessionID, realtime.EventSchemeChanged, realtime.SchemeChangedPayload{
		NewEstimationType: string(models.SchemeTShirt),
		ChangedBy:         uuid.New().String(),
		HadVotes:          true,
	})
	require.NoError(t, f.controller.ApplyRemoteEvent(ctx, event))

	snap := f.controller.Snapshot()
	assert.Equal(t, models.SchemeTShirt, snap.EstimationType)
	assert.Empty(t, snap.Votes)

	notices := f.notices.all()
	require.NotEmpty(t, notices)
	assert.Contains(t, notices[len(notices)-1].Message, "cleared")
}

func TestTimerControlsRequireModerator(t *testing.T) {
	f := newFixture(t, models.RoleMember)
	ctx := context.Background()

	assert.ErrorIs(t, f.controller.StartTimer(ctx), ErrNotModerator)
	assert.ErrorIs(t, f.controller.PauseTimer(ctx), ErrNotModerator)
	assert.ErrorIs(t, f.controller.ResumeTimer(ctx), ErrNotModerator)
	assert.ErrorIs(t, f.controller.ResetTimer(ctx), ErrNotModerator)
	assert.ErrorIs(t, f.controller.SetTimeLimit(ctx, 90), ErrNotModerator)
}

func TestStartTimerBroadcastsAndTicks(t *testing.T) {
	f := newFixture(t, models.RoleModerator)

	require.NoError(t, f.controller.StartTimer(context.Background()))
	assert.True(t, f.channel.hasType(realtime.EventTimerStart))

	snap := f.controller.Snapshot()
	assert.True(t, snap.TimerActive)
	assert.Equal(t, 60, snap.TimeRemainingSec)

	f.clock.BlockUntil(1)
	f.clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		return f.channel.hasType(realtime.EventTimerTick)
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return f.controller.Snapshot().TimeRemainingSec == 59
	}, time.Second, 5*time.Millisecond)
}

func TestTimerExpiryAutoReveals(t *testing.T) {
	f := newFixture(t, models.RoleModerator)

	require.NoError(t, f.controller.SetTimeLimit(context.Background(), 1))
	require.NoError(t, f.controller.StartTimer(context.Background()))

	f.clock.BlockUntil(1)
	f.clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		return f.channel.hasType(realtime.EventVotesRevealed)
	}, time.Second, 5*time.Millisecond)

	snap := f.controller.Snapshot()
	assert.True(t, snap.IsRevealed)
	assert.False(t, snap.TimerActive)
	assert.Equal(t, 0, snap.TimeRemainingSec)
}

func TestSetTimeLimitValidatesAndBroadcasts(t *testing.T) {
	f := newFixture(t, models.RoleModerator)
	ctx := context.Background()

	assert.Error(t, f.controller.SetTimeLimit(ctx, 0))
	assert.Error(t, f.controller.SetTimeLimit(ctx, -5))

	require.NoError(t, f.controller.SetTimeLimit(ctx, 120))
	assert.Equal(t, 120, f.controller.Snapshot().TimeLimitSec)
	assert.Equal(t, realtime.EventTimerConfigChanged, f.channel.lastType())
}

func TestRemoteTimerTickMirrorsCountdown(t *testing.T) {
	f := newFixture(t, models.RoleMember)

	event := mustEvent(t, f.sessionID, realtime.EventTimerTick, realtime.TimerTickPayload{
		TimeLeftSec:  42,
		IsActive:     true,
		TotalTimeSec: 60,
	})
	require.NoError(t, f.controller.ApplyRemoteEvent(context.Background(), event))

	snap := f.controller.Snapshot()
	assert.Equal(t, 42, snap.TimeRemainingSec)
	assert.True(t, snap.TimerActive)
}

func TestModeratorIgnoresRemoteTicks(t *testing.T) {
	f := newFixture(t, models.RoleModerator)

	event := mustEvent(t, f.sessionID, realtime.EventTimerTick, realtime.TimerTickPayload{
		TimeLeftSec: 42,
		IsActive:    true,
	})
	require.NoError(t, f.controller.ApplyRemoteEvent(context.Background(), event))

	assert.Equal(t, 0, f.controller.Snapshot().TimeRemainingSec)
}

func TestMalformedRemoteEventIsDropped(t *testing.T) {
	f := newFixture(t, models.RoleMember)

	event := &realtime.Event{
		ID:        uuid.New().String(),
		SessionID: f.sessionID.String(),
		Type:      realtime.EventVoteSubmitted,
		Data:      []byte("{not json"),
	}
	require.NoError(t, f.controller.ApplyRemoteEvent(context.Background(), event))

	assert.Equal(t, 0, f.store.fetches())
}

func TestHandlePresenceRoster(t *testing.T) {
	f := newFixture(t, models.RoleMember)

	peer := uuid.New()
	f.controller.HandlePresence(realtime.PresenceMessage{
		Kind: realtime.PresenceTrack,
		State: realtime.PresenceState{
			UserID:   peer.String(),
			UserName: "Bo",
			UserRole: string(models.RoleMember),
			JoinedAt: time.Now(),
		},
	})

	participants := f.controller.Participants()
	require.Len(t, participants, 1)
	assert.Equal(t, "Bo", participants[0].Name)

	notices := f.notices.all()
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Message, "joined")

	f.controller.HandlePresence(realtime.PresenceMessage{
		Kind:  realtime.PresenceLeave,
		State: realtime.PresenceState{UserID: peer.String(), UserName: "Bo"},
	})
	assert.Empty(t, f.controller.Participants())
}

func TestOwnPresenceIsSilent(t *testing.T) {
	f := newFixture(t, models.RoleMember)

	f.controller.HandlePresence(realtime.PresenceMessage{
		Kind:  realtime.PresenceTrack,
		State: f.controller.PresenceState(),
	})

	assert.Empty(t, f.notices.all())
	assert.Len(t, f.controller.Participants(), 1)
}
