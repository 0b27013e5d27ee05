package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Relay bridges the session channel onto browser WebSockets: the first
// connection for a session subscribes the channel topic and every received
// broadcast is fanned out to the session's connection pool.
type Relay struct {
	channel *Channel
	manager *ConnectionManager

	mu   sync.Mutex
	subs map[uuid.UUID]*Subscription
	refs map[uuid.UUID]int
}

func NewRelay(channel *Channel, manager *ConnectionManager) *Relay {
	return &Relay{
		channel: channel,
		manager: manager,
		subs:    make(map[uuid.UUID]*Subscription),
		refs:    make(map[uuid.UUID]int),
	}
}

// Acquire registers interest in a session, subscribing the channel topic
// on the first caller.
func (r *Relay) Acquire(sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refs[sessionID] > 0 {
		r.refs[sessionID]++
		return nil
	}

	sub, err := r.channel.Subscribe(sessionID, func(event *Event) {
		r.manager.BroadcastToSession(sessionID, event)
	})
	if err != nil {
		return err
	}

	r.subs[sessionID] = sub
	r.refs[sessionID] = 1
	log.Info().Str("session_id", sessionID.String()).Msg("relay subscribed to session topic")
	return nil
}

// Release drops one interest; the last caller tears the subscription down.
func (r *Relay) Release(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refs[sessionID] == 0 {
		return
	}
	r.refs[sessionID]--
	if r.refs[sessionID] > 0 {
		return
	}

	delete(r.refs, sessionID)
	if sub, ok := r.subs[sessionID]; ok {
		sub.Unsubscribe()
		delete(r.subs, sessionID)
	}
	log.Info().Str("session_id", sessionID.String()).Msg("relay unsubscribed from session topic")
}
