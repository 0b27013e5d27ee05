package main

import (
	"database/sql"
	"fmt"

	"github.com/pointdeck/pointdeck/go/internal/chat"
	"github.com/pointdeck/pointdeck/go/internal/estimation"
	"github.com/pointdeck/pointdeck/go/internal/realtime"
	"github.com/pointdeck/pointdeck/go/internal/session"
)

type Services struct {
	Sessions    *session.Repository
	Estimations *estimation.Repository
	Channel     *realtime.Channel
	Chat        *chat.Service
	Connections *realtime.ConnectionManager
	Relay       *realtime.Relay
	WebSocket   *realtime.WebSocketHandler
}

func setupServices(database *sql.DB, config *Config) (*Services, error) {
	// Repository layer over one shared pool, realtime layer over one
	// shared NATS connection.
	sessionRepo := session.NewRepository(database)
	estimationRepo := estimation.NewRepository(database)

	channelConfig := realtime.ChannelConfig{
		URL:           config.Nats.URL,
		MaxReconnects: config.Nats.MaxReconnects,
		ReconnectWait: config.reconnectWait(),
		SubjectPrefix: config.Nats.SubjectPrefix,
	}
	channel, err := realtime.NewChannel(channelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to set up realtime channel: %w", err)
	}

	chatService := chat.NewService(channel.Conn(), config.Nats.SubjectPrefix)

	connections := realtime.NewConnectionManager(realtime.DefaultConnectionConfig())
	relay := realtime.NewRelay(channel, connections)
	wsHandler := realtime.NewWebSocketHandler(connections, relay)

	return &Services{
		Sessions:    sessionRepo,
		Estimations: estimationRepo,
		Channel:     channel,
		Chat:        chatService,
		Connections: connections,
		Relay:       relay,
		WebSocket:   wsHandler,
	}, nil
}

func (s *Services) Close() {
	if s.Channel != nil {
		s.Channel.Close()
	}
}
