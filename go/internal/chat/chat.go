package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// MaxMessageLen caps a single chat message body.
const MaxMessageLen = 2000

// Message is one chat line in a session. Chat rides the same transport as
// voting broadcasts but shares no state with them; a vote never appears in
// chat and a chat message never touches voting state.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// Service publishes and receives session chat over a shared NATS
// connection. Delivery matches the voting channel: ephemeral, unordered,
// at-most-once per subscriber.
type Service struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NewService wraps an existing connection. prefix is the session subject
// prefix, e.g. "poker.session".
func NewService(nc *nats.Conn, prefix string) *Service {
	return &Service{nc: nc, subjectPrefix: prefix}
}

func (s *Service) subject(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s.%s.chat", s.subjectPrefix, sessionID)
}

// Send publishes one chat message to the session's chat topic. Blank
// bodies are rejected before hitting the wire.
func (s *Service) Send(ctx context.Context, sessionID, userID uuid.UUID, userName, body string) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("chat message body is empty")
	}
	if len(body) > MaxMessageLen {
		return nil, fmt.Errorf("chat message exceeds %d characters", MaxMessageLen)
	}

	msg := &Message{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		UserID:    userID.String(),
		UserName:  userName,
		Body:      body,
		SentAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal chat message: %w", err)
	}
	if err := s.nc.Publish(s.subject(sessionID), data); err != nil {
		return nil, fmt.Errorf("publish chat message: %w", err)
	}
	return msg, nil
}

// Subscribe registers a handler for a session's chat. Malformed payloads
// are logged and dropped.
func (s *Service) Subscribe(sessionID uuid.UUID, handler func(Message)) (*nats.Subscription, error) {
	sub, err := s.nc.Subscribe(s.subject(sessionID), func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Error().
				Err(err).
				Str("subject", m.Subject).
				Msg("dropping malformed chat message")
			return
		}
		handler(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to session chat: %w", err)
	}
	return sub, nil
}
