package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// ChannelConfig holds configuration for the realtime transport.
type ChannelConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
	SubjectPrefix string // e.g. "poker.session"
}

// DefaultChannelConfig returns default transport configuration.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		SubjectPrefix: "poker.session",
	}
}

// Channel is the per-session publish/subscribe medium. One NATS subject
// per session carries the ephemeral event broadcasts; a sibling subject
// carries presence. Delivery is at-most-once per subscriber with no
// ordering guarantee relative to persistence writes on other clients.
type Channel struct {
	nc     *nats.Conn
	config ChannelConfig
}

// Subscription is a live interest in one session's broadcasts.
type Subscription struct {
	subs []*nats.Subscription
}

// Unsubscribe drops the interest. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe from session subject")
		}
	}
	s.subs = nil
}

// NewChannel connects to NATS with reconnect handling.
func NewChannel(config ChannelConfig) (*Channel, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Channel{nc: nc, config: config}, nil
}

// Conn exposes the shared connection handle for sibling features (chat)
// that ride the same transport with orthogonal state.
func (c *Channel) Conn() *nats.Conn {
	return c.nc
}

// OnReconnect registers fn to run after the transport re-establishes its
// server connection. Clients use this to re-publish presence so a
// reconnect rejoins the session roster.
func (c *Channel) OnReconnect(fn func()) {
	c.nc.SetReconnectHandler(func(nc *nats.Conn) {
		log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		fn()
	})
}

// EventsSubject names a session's broadcast topic deterministically from
// the session identifier.
func (c *Channel) EventsSubject(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s.%s.events", c.config.SubjectPrefix, sessionID)
}

// PresenceSubject names a session's presence topic.
func (c *Channel) PresenceSubject(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s.%s.presence", c.config.SubjectPrefix, sessionID)
}

// Publish sends one event to the session's topic. A failed send is the
// caller's to log; the already-persisted state it announces stays valid.
func (c *Channel) Publish(ctx context.Context, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	sessionID, err := uuid.Parse(event.SessionID)
	if err != nil {
		return fmt.Errorf("parse session ID: %w", err)
	}

	if err := c.nc.Publish(c.EventsSubject(sessionID), data); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Subscribe registers a handler for a session's broadcasts. Malformed
// payloads are logged and dropped; they never reach the handler.
func (c *Channel) Subscribe(sessionID uuid.UUID, handler func(*Event)) (*Subscription, error) {
	sub, err := c.nc.Subscribe(c.EventsSubject(sessionID), func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Error().
				Err(err).
				Str("subject", msg.Subject).
				Msg("dropping malformed session event")
			return
		}
		handler(&event)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to session events: %w", err)
	}
	return &Subscription{subs: []*nats.Subscription{sub}}, nil
}

// Close drains the connection.
func (c *Channel) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}
