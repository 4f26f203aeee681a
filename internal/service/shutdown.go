package service

import (
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

// Stop disconnects every client. The game loop stops with the context given to Start.
func (s *WorldService) Stop() {
	s.DisconnectAllClients()
}

// DisconnectAllClients sends a shutdown event to every client and closes their streams.
func (s *WorldService) DisconnectAllClients() {
	shutdownMsg := &game.ServerMessage{
		WorldEvent: &game.WorldEvent{
			Type:    game.EventServerShutdown,
			Message: "Server is shutting down",
		},
	}

	s.mu.RLock()
	conns := make([]*clientConn, 0, len(s.clientStreams))
	for _, conn := range s.clientStreams {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.send(shutdownMsg, true)
		conn.close()
	}
	s.logger.Infow("disconnected all clients", "count", len(conns))
}
