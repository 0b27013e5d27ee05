package voting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/go/internal/estimation"
	"github.com/pointdeck/pointdeck/go/internal/models"
	"github.com/pointdeck/pointdeck/go/internal/realtime"
)

// Store is what the controller needs from persistence.
type Store interface {
	SubmitEstimation(ctx context.Context, sessionID, itemID, userID uuid.UUID, value string) (*models.Vote, error)
	GetEstimationsForItem(ctx context.Context, sessionID, itemID uuid.UUID) ([]models.Vote, error)
	GetUserVote(ctx context.Context, sessionID, itemID, userID uuid.UUID) (*models.Vote, error)
	DeleteEstimationsForItem(ctx context.Context, sessionID, itemID uuid.UUID) (int, error)
}

// Broadcaster is what the controller needs from the realtime channel.
type Broadcaster interface {
	Publish(ctx context.Context, event *realtime.Event) error
}

// Phase is the per-item lifecycle. Revealed does not block further
// voting: a re-vote after reveal is accepted and re-broadcast.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseVoting   Phase = "voting"
	PhaseRevealed Phase = "revealed"
)

// NoticeKind classifies transient user notifications.
type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice is a transient, auto-dismissing user notification.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Notifier receives notices for display. May be nil.
type Notifier func(Notice)

// State is the in-memory voting state of one connected client. It is
// owned exclusively by its Controller; handlers never write fields
// directly. Votes, IsRevealed and the timer mirror reset whenever the
// item index or the estimation scheme changes.
type State struct {
	CurrentItemIndex int
	Votes            map[uuid.UUID]models.Vote
	IsRevealed       bool
	TimeRemainingSec int
	TimerActive      bool
	TimeLimitSec     int
	EstimationType   models.EstimationScheme
}

// Config assembles a controller for one client in one session.
type Config struct {
	SessionID      uuid.UUID
	User           models.Participant
	Items          []models.BacklogItem
	EstimationType models.EstimationScheme
	TimeLimitSec   int

	Store   Store
	Channel Broadcaster
	Clock   clockwork.Clock
	Notify  Notifier
}

// Controller is the reconciliation state machine for one active voting
// session on one connected client. Local actions mutate state
// optimistically, persist through the store, then broadcast; remote
// broadcasts are advisory triggers that re-fetch authoritative state.
// Ordering across clients is last-broadcast-wins; all mutating authority
// sits with the single moderator.
type Controller struct {
	sessionID uuid.UUID
	user      models.Participant
	items     []models.BacklogItem

	store   Store
	channel Broadcaster
	notify  Notifier
	roster  *realtime.Roster
	timer   *countdown
	logger  zerolog.Logger

	mu             sync.Mutex
	state          State
	submitInFlight bool
}

// NewController builds a controller with empty per-item state on the
// first pending item.
func NewController(cfg Config) *Controller {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	scheme := cfg.EstimationType
	if scheme == "" {
		scheme = models.SchemeFibonacci
	}

	c := &Controller{
		sessionID: cfg.SessionID,
		user:      cfg.User,
		items:     cfg.Items,
		store:     cfg.Store,
		channel:   cfg.Channel,
		notify:    cfg.Notify,
		roster:    realtime.NewRoster(),
		timer:     newCountdown(clock),
		logger: log.With().
			Str("session_id", cfg.SessionID.String()).
			Str("user_id", cfg.User.UserID.String()).
			Logger(),
		state: State{
			Votes:            make(map[uuid.UUID]models.Vote),
			EstimationType:   scheme,
			TimeLimitSec:     cfg.TimeLimitSec,
			TimeRemainingSec: 0,
		},
	}

	c.timer.onTick = c.handleTimerTick
	c.timer.onExpire = c.handleTimerExpired
	return c
}

// Snapshot returns a copy of the current state for rendering.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := c.state
	copied.Votes = make(map[uuid.UUID]models.Vote, len(c.state.Votes))
	for id, vote := range c.state.Votes {
		copied.Votes[id] = vote
	}
	return copied
}

// Phase derives the per-item lifecycle phase from state.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state.IsRevealed:
		return PhaseRevealed
	case len(c.state.Votes) > 0:
		return PhaseVoting
	default:
		return PhaseIdle
	}
}

// CurrentItem returns the active backlog item, if any.
func (c *Controller) CurrentItem() (models.BacklogItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentItemLocked()
}

func (c *Controller) currentItemLocked() (models.BacklogItem, bool) {
	if c.state.CurrentItemIndex < 0 || c.state.CurrentItemIndex >= len(c.items) {
		return models.BacklogItem{}, false
	}
	return c.items[c.state.CurrentItemIndex], true
}

// Consensus recomputes the consensus signal from the current vote set.
func (c *Controller) Consensus() estimation.Result {
	c.mu.Lock()
	values := make([]string, 0, len(c.state.Votes))
	for _, vote := range c.state.Votes {
		values = append(values, vote.Points)
	}
	scheme := c.state.EstimationType
	c.mu.Unlock()

	return estimation.Calculate(scheme, values)
}

func (c *Controller) isModerator() bool {
	return c.user.Role == models.RoleModerator
}

// SubmitVote persists the local user's vote, applies it locally and
// broadcasts it. A submission already in flight makes this a no-op; that
// guard is per-client, not a server-side lock.
// The first vote for an item broadcasts vote-submitted; updating an
// existing vote, or voting after reveal, broadcasts vote-changed.
func (c *Controller) SubmitVote(ctx context.Context, value string) error {
	c.mu.Lock()
	if c.submitInFlight {
		c.mu.Unlock()
		return nil
	}
	item, ok := c.currentItemLocked()
	if !ok {
		c.mu.Unlock()
		return ErrNoActiveItem
	}
	if err := estimation.ValidateValue(c.state.EstimationType, value); err != nil {
		c.mu.Unlock()
		c.send(Notice{NoticeError, fmt.Sprintf("%q is not a valid vote for this session", value)})
		return fmt.Errorf("submit vote: %w", err)
	}
	_, hadVote := c.state.Votes[c.user.UserID]
	eventType := realtime.EventVoteSubmitted
	if hadVote || c.state.IsRevealed {
		eventType = realtime.EventVoteChanged
	}
	c.submitInFlight = true
	c.mu.Unlock()

	stored, err := c.store.SubmitEstimation(ctx, c.sessionID, item.ID, c.user.UserID, value)

	c.mu.Lock()
	c.submitInFlight = false
	if err != nil {
		c.mu.Unlock()
		kind := CategorizeStoreError(err)
		c.logger.Error().Err(err).Str("kind", string(kind)).Msg("vote submission failed")
		c.send(Notice{NoticeError, kind.UserMessage()})
		return fmt.Errorf("submit vote: %w", err)
	}
	if current, ok := c.currentItemLocked(); ok && current.ID == item.ID {
		vote := *stored
		vote.UserName = c.user.Name
		vote.UserRole = c.user.Role
		vote.CanEdit = true
		c.state.Votes[c.user.UserID] = vote
	}
	c.mu.Unlock()

	// Persistence and broadcast delivery are not transactionally linked:
	// a failed send leaves peers stale until their next re-fetch.
	c.broadcast(ctx, eventType, realtime.VotePayload{
		ItemID:    item.ID.String(),
		VoterID:   c.user.UserID.String(),
		VoterName: c.user.Name,
		Value:     value,
		Timestamp: stored.SubmittedAt,
	})
	return nil
}

// RevealVotes makes the current item's votes visible everywhere and stops
// the countdown. Moderator only.
func (c *Controller) RevealVotes(ctx context.Context) error {
	if !c.isModerator() {
		return ErrNotModerator
	}

	c.mu.Lock()
	item, ok := c.currentItemLocked()
	if !ok {
		c.mu.Unlock()
		return ErrNoActiveItem
	}
	c.state.IsRevealed = true
	c.state.TimerActive = false
	c.mu.Unlock()

	c.timer.Stop()
	c.broadcast(ctx, realtime.EventVotesRevealed, realtime.VotesRevealedPayload{
		ItemID:     item.ID.String(),
		RevealedBy: c.user.UserID.String(),
	})
	return nil
}

// NextItem advances to the next pending item. Past the last item it is a
// no-op. Per-item state resets; the moderator broadcasts the move so
// every client navigates in lockstep.
func (c *Controller) NextItem(ctx context.Context) error {
	return c.moveItem(ctx, 1)
}

// PreviousItem moves back one item, a no-op before the first.
func (c *Controller) PreviousItem(ctx context.Context) error {
	return c.moveItem(ctx, -1)
}

func (c *Controller) moveItem(ctx context.Context, delta int) error {
	c.mu.Lock()
	index := c.state.CurrentItemIndex + delta
	if index < 0 || index >= len(c.items) {
		c.mu.Unlock()
		return nil
	}
	c.state.CurrentItemIndex = index
	c.resetItemStateLocked()
	title := c.items[index].Title
	moderator := c.isModerator()
	c.mu.Unlock()

	c.timer.Stop()
	if moderator {
		c.broadcast(ctx, realtime.EventItemChanged, realtime.ItemChangedPayload{
			NewItemIndex: index,
			ChangedBy:    c.user.UserID.String(),
			NewItemTitle: title,
		})
	}
	return nil
}

// ChangeEstimationType switches the session's scheme at runtime, clearing
// the working vote set and reveal state. The moderator also deletes the
// item's persisted votes so later re-fetches cannot resurrect values from
// the old scheme, then broadcasts the switch, carrying whether votes were
// discarded.
func (c *Controller) ChangeEstimationType(ctx context.Context, scheme models.EstimationScheme) error {
	if scheme != models.SchemeFibonacci && scheme != models.SchemeTShirt {
		return fmt.Errorf("unknown estimation scheme: %q", scheme)
	}

	c.mu.Lock()
	hadVotes := len(c.state.Votes) > 0
	c.state.EstimationType = scheme
	c.resetItemStateLocked()
	moderator := c.isModerator()
	item, hasItem := c.currentItemLocked()
	c.mu.Unlock()

	c.timer.Stop()
	if moderator && hadVotes && hasItem {
		if _, err := c.store.DeleteEstimationsForItem(ctx, c.sessionID, item.ID); err != nil {
			c.logger.Error().Err(err).Str("item_id", item.ID.String()).Msg("failed to clear votes after scheme change")
		}
	}
	if moderator {
		c.broadcast(ctx, realtime.EventSchemeChanged, realtime.SchemeChangedPayload{
			NewEstimationType: string(scheme),
			ChangedBy:         c.user.UserID.String(),
			HadVotes:          hadVotes,
		})
	}
	return nil
}

// resetItemStateLocked restores the per-item working state to its initial
// empty values. Invariant: runs on every item navigation and every scheme
// change.
func (c *Controller) resetItemStateLocked() {
	c.state.Votes = make(map[uuid.UUID]models.Vote)
	c.state.IsRevealed = false
	c.state.TimerActive = false
	c.state.TimeRemainingSec = 0
}

// StartTimer begins the moderator's countdown for the current item and
// broadcasts timer-start. Moderator only.
func (c *Controller) StartTimer(ctx context.Context) error {
	if !c.isModerator() {
		return ErrNotModerator
	}

	c.mu.Lock()
	item, ok := c.currentItemLocked()
	if !ok {
		c.mu.Unlock()
		return ErrNoActiveItem
	}
	limit := c.state.TimeLimitSec
	if item.TimeLimitSec > 0 {
		limit = item.TimeLimitSec
	}
	c.state.TimeLimitSec = limit
	c.state.TimeRemainingSec = limit
	c.state.TimerActive = true
	c.mu.Unlock()

	c.timer.Start(ctx, limit)
	c.broadcast(ctx, realtime.EventTimerStart, realtime.TimerStartPayload{
		TimeLimitSec:  limit,
		StartedBy:     c.user.UserID.String(),
		StartedByName: c.user.Name,
		ItemID:        item.ID.String(),
	})
	return nil
}

// PauseTimer freezes the countdown. Moderator only.
func (c *Controller) PauseTimer(ctx context.Context) error {
	if !c.isModerator() {
		return ErrNotModerator
	}

	c.mu.Lock()
	c.state.TimerActive = false
	c.mu.Unlock()

	c.timer.Pause()
	c.broadcast(ctx, realtime.EventTimerPause, realtime.TimerPausePayload{
		PausedBy:     c.user.UserID.String(),
		PausedByName: c.user.Name,
	})
	return nil
}

// ResumeTimer continues a paused countdown. Moderator only.
func (c *Controller) ResumeTimer(ctx context.Context) error {
	if !c.isModerator() {
		return ErrNotModerator
	}

	c.mu.Lock()
	c.state.TimerActive = true
	c.mu.Unlock()

	c.timer.Resume()
	c.broadcast(ctx, realtime.EventTimerResume, realtime.TimerResumePayload{
		ResumedBy:     c.user.UserID.String(),
		ResumedByName: c.user.Name,
	})
	return nil
}

// ResetTimer returns the countdown to the full limit, paused. Moderator
// only.
func (c *Controller) ResetTimer(ctx context.Context) error {
	if !c.isModerator() {
		return ErrNotModerator
	}

	c.mu.Lock()
	limit := c.state.TimeLimitSec
	c.state.TimeRemainingSec = limit
	c.state.TimerActive = false
	c.mu.Unlock()

	c.timer.Reset(limit)
	c.broadcast(ctx, realtime.EventTimerReset, realtime.TimerResetPayload{
		TimeLimitSec: limit,
		ResetBy:      c.user.UserID.String(),
		ResetByName:  c.user.Name,
	})
	return nil
}

// SetTimeLimit changes the configured voting time limit. Moderator only.
func (c *Controller) SetTimeLimit(ctx context.Context, limitSec int) error {
	if !c.isModerator() {
		return ErrNotModerator
	}
	if limitSec <= 0 {
		return fmt.Errorf("time limit must be positive, got %d", limitSec)
	}

	c.mu.Lock()
	c.state.TimeLimitSec = limitSec
	c.mu.Unlock()

	c.broadcast(ctx, realtime.EventTimerConfigChanged, realtime.TimerConfigChangedPayload{
		NewTimeLimitSec: limitSec,
		ChangedBy:       c.user.UserID.String(),
		ChangedByName:   c.user.Name,
	})
	return nil
}

func (c *Controller) handleTimerTick(remaining, limit int, active bool) {
	c.mu.Lock()
	c.state.TimeRemainingSec = remaining
	c.state.TimerActive = active
	item, ok := c.currentItemLocked()
	c.mu.Unlock()

	itemID := ""
	if ok {
		itemID = item.ID.String()
	}
	progress := 0.0
	if limit > 0 {
		progress = float64(limit-remaining) / float64(limit)
	}
	c.broadcast(context.Background(), realtime.EventTimerTick, realtime.TimerTickPayload{
		TimeLeftSec:  remaining,
		IsActive:     active,
		TotalTimeSec: limit,
		Progress:     progress,
		ItemID:       itemID,
	})
}

// handleTimerExpired reveals autonomously when the countdown hits zero on
// the moderator's client.
func (c *Controller) handleTimerExpired() {
	c.send(Notice{NoticeInfo, "Time is up, revealing votes"})
	if err := c.RevealVotes(context.Background()); err != nil {
		c.logger.Error().Err(err).Msg("auto-reveal on timer expiry failed")
	}
}

// ApplyRemoteEvent is the single dispatch point for session broadcasts.
// Own echoes and events for other items are ignored; duplicate or
// out-of-order deliveries are harmless because vote events only trigger
// an authoritative re-fetch, never a local patch-merge.
func (c *Controller) ApplyRemoteEvent(ctx context.Context, event *realtime.Event) error {
	payload, err := realtime.ParseEventPayload(event)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("ignoring malformed session event")
		return nil
	}

	switch p := payload.(type) {
	case realtime.VotePayload:
		return c.applyRemoteVote(ctx, event.Type, p)
	case realtime.VotesRevealedPayload:
		c.applyRemoteReveal(p)
	case realtime.ItemChangedPayload:
		c.applyRemoteItemChange(p)
	case realtime.SchemeChangedPayload:
		c.applyRemoteSchemeChange(p)
	case realtime.TimerStartPayload:
		c.applyRemoteTimerStart(p)
	case realtime.TimerPausePayload:
		c.applyRemoteTimerPause(p)
	case realtime.TimerResumePayload:
		c.applyRemoteTimerResume(p)
	case realtime.TimerResetPayload:
		c.applyRemoteTimerReset(p)
	case realtime.TimerTickPayload:
		c.applyRemoteTimerTick(p)
	case realtime.TimerConfigChangedPayload:
		c.applyRemoteTimerConfig(p)
	default:
		c.logger.Debug().
			Str("event_type", string(event.Type)).
			Msg("ignoring unknown session event")
	}
	return nil
}

func (c *Controller) isSelf(userID string) bool {
	return userID == c.user.UserID.String()
}

// applyRemoteVote re-fetches the authoritative vote set for the current
// item. The broadcast is only the trigger; re-reading avoids drift
// between the payload and what was actually persisted.
func (c *Controller) applyRemoteVote(ctx context.Context, eventType realtime.EventType, p realtime.VotePayload) error {
	c.mu.Lock()
	item, ok := c.currentItemLocked()
	if !ok || p.ItemID != item.ID.String() || c.isSelf(p.VoterID) {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	votes, err := c.store.GetEstimationsForItem(ctx, c.sessionID, item.ID)
	if err != nil {
		c.logger.Error().Err(err).Str("item_id", p.ItemID).Msg("vote re-fetch after broadcast failed")
		return fmt.Errorf("re-fetch votes: %w", err)
	}

	c.mu.Lock()
	if current, ok := c.currentItemLocked(); ok && current.ID == item.ID {
		c.replaceVotesLocked(votes)
	}
	c.mu.Unlock()

	voter := p.VoterName
	if voter == "" {
		voter = "Someone"
	}
	if eventType == realtime.EventVoteChanged {
		c.send(Notice{NoticeInfo, voter + " changed their vote"})
	} else {
		c.send(Notice{NoticeInfo, voter + " voted"})
	}
	return nil
}

func (c *Controller) replaceVotesLocked(votes []models.Vote) {
	c.state.Votes = make(map[uuid.UUID]models.Vote, len(votes))
	for _, vote := range votes {
		vote.CanEdit = vote.UserID == c.user.UserID
		c.state.Votes[vote.UserID] = vote
	}
}

func (c *Controller) applyRemoteReveal(p realtime.VotesRevealedPayload) {
	if c.isSelf(p.RevealedBy) {
		return
	}

	c.mu.Lock()
	item, ok := c.currentItemLocked()
	if !ok || p.ItemID != item.ID.String() {
		c.mu.Unlock()
		return
	}
	c.state.IsRevealed = true
	c.state.TimerActive = false
	c.mu.Unlock()

	c.send(Notice{NoticeInfo, "Votes revealed"})
}

func (c *Controller) applyRemoteItemChange(p realtime.ItemChangedPayload) {
	if c.isSelf(p.ChangedBy) {
		return
	}

	c.mu.Lock()
	index := p.NewItemIndex
	if index < 0 || index >= len(c.items) {
		c.mu.Unlock()
		return
	}
	c.state.CurrentItemIndex = index
	c.resetItemStateLocked()
	c.mu.Unlock()

	title := p.NewItemTitle
	if title == "" {
		title = "next item"
	}
	c.send(Notice{NoticeInfo, "Now estimating: " + title})
}

func (c *Controller) applyRemoteSchemeChange(p realtime.SchemeChangedPayload) {
	if c.isSelf(p.ChangedBy) {
		return
	}

	c.mu.Lock()
	c.state.EstimationType = models.EstimationScheme(p.NewEstimationType)
	c.resetItemStateLocked()
	c.mu.Unlock()

	if p.HadVotes {
		c.send(Notice{NoticeInfo, "Estimation scheme changed, existing votes were cleared"})
	} else {
		c.send(Notice{NoticeInfo, "Estimation scheme changed"})
	}
}

func (c *Controller) applyRemoteTimerStart(p realtime.TimerStartPayload) {
	if c.isSelf(p.StartedBy) {
		return
	}

	c.mu.Lock()
	c.state.TimeLimitSec = p.TimeLimitSec
	c.state.TimeRemainingSec = p.TimeLimitSec
	c.state.TimerActive = true
	c.mu.Unlock()

	c.send(Notice{NoticeInfo, p.StartedByName + " started the timer"})
}

func (c *Controller) applyRemoteTimerPause(p realtime.TimerPausePayload) {
	if c.isSelf(p.PausedBy) {
		return
	}

	c.mu.Lock()
	c.state.TimerActive = false
	c.mu.Unlock()

	c.send(Notice{NoticeInfo, p.PausedByName + " paused the timer"})
}

func (c *Controller) applyRemoteTimerResume(p realtime.TimerResumePayload) {
	if c.isSelf(p.ResumedBy) {
		return
	}

	c.mu.Lock()
	c.state.TimerActive = true
	c.mu.Unlock()

	c.send(Notice{NoticeInfo, p.ResumedByName + " resumed the timer"})
}

func (c *Controller) applyRemoteTimerReset(p realtime.TimerResetPayload) {
	if c.isSelf(p.ResetBy) {
		return
	}

	c.mu.Lock()
	c.state.TimeLimitSec = p.TimeLimitSec
	c.state.TimeRemainingSec = p.TimeLimitSec
	c.state.TimerActive = false
	c.mu.Unlock()

	c.send(Notice{NoticeInfo, p.ResetByName + " reset the timer"})
}

// applyRemoteTimerTick mirrors the moderator's countdown. Non-moderator
// clients never run their own authoritative countdown.
func (c *Controller) applyRemoteTimerTick(p realtime.TimerTickPayload) {
	if c.isModerator() {
		return
	}

	c.mu.Lock()
	c.state.TimeRemainingSec = p.TimeLeftSec
	c.state.TimerActive = p.IsActive
	c.mu.Unlock()
}

func (c *Controller) applyRemoteTimerConfig(p realtime.TimerConfigChangedPayload) {
	if c.isSelf(p.ChangedBy) {
		return
	}

	c.mu.Lock()
	c.state.TimeLimitSec = p.NewTimeLimitSec
	c.mu.Unlock()

	c.send(Notice{NoticeInfo, fmt.Sprintf("%s set the voting time to %ds", p.ChangedByName, p.NewTimeLimitSec)})
}

// RestoreOwnVote reloads the local user's persisted vote for the current
// item, seeding state after a reconnect. Missing votes are not an error.
func (c *Controller) RestoreOwnVote(ctx context.Context) error {
	c.mu.Lock()
	item, ok := c.currentItemLocked()
	c.mu.Unlock()
	if !ok {
		return nil
	}

	vote, err := c.store.GetUserVote(ctx, c.sessionID, item.ID, c.user.UserID)
	if errors.Is(err, estimation.ErrNoVote) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore vote: %w", err)
	}

	c.mu.Lock()
	if current, ok := c.currentItemLocked(); ok && current.ID == item.ID {
		restored := *vote
		restored.UserName = c.user.Name
		restored.UserRole = c.user.Role
		restored.CanEdit = true
		c.state.Votes[c.user.UserID] = restored
	}
	c.mu.Unlock()
	return nil
}

// PresenceState is the local user's presence payload. Re-published on
// every fresh subscription so reconnects rejoin the roster.
func (c *Controller) PresenceState() realtime.PresenceState {
	return realtime.PresenceState{
		UserID:   c.user.UserID.String(),
		UserName: c.user.Name,
		UserRole: string(c.user.Role),
		JoinedAt: c.user.JoinedAt,
	}
}

// HandlePresence folds a presence message into the participant roster and
// surfaces join/leave as transient notifications.
func (c *Controller) HandlePresence(msg realtime.PresenceMessage) {
	changed := c.roster.Apply(msg)
	if !changed || c.isSelf(msg.State.UserID) {
		return
	}

	name := msg.State.UserName
	if name == "" {
		name = "A participant"
	}
	switch msg.Kind {
	case realtime.PresenceTrack:
		c.send(Notice{NoticeInfo, name + " joined the session"})
	case realtime.PresenceLeave:
		c.send(Notice{NoticeInfo, name + " left the session"})
	}
}

// Participants returns the connected participant set, join order first.
func (c *Controller) Participants() []models.Participant {
	return c.roster.Participants()
}

// Close stops the countdown driver.
func (c *Controller) Close() {
	c.timer.Stop()
}

func (c *Controller) broadcast(ctx context.Context, eventType realtime.EventType, payload any) {
	event, err := realtime.NewEvent(c.sessionID, eventType, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	if err := c.channel.Publish(ctx, event); err != nil {
		// The persisted state this event announces stays valid; peers are
		// stale until their next re-fetch or reconnect.
		c.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("broadcast failed")
	}
}

func (c *Controller) send(notice Notice) {
	if c.notify != nil {
		c.notify(notice)
	}
}
