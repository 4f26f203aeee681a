package service

import (
	"encoding/json"

	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

// visibilityRadius: радиус в блоках, в котором игроки получают события блоков.
const visibilityRadius = 128

// broadcastWorldEvent sends world events to clients; global events go to all,
// block events only to players in the same world within visibilityRadius.
func (s *WorldService) broadcastWorldEvent(event *game.WorldEvent) {
	msg := &game.ServerMessage{WorldEvent: event}
	switch event.Type {
	case game.EventTimeChanged, game.EventServerShutdown:
		s.broadcastToAll(msg)
		return
	}
	if event.Position == nil {
		s.broadcastToAll(msg)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for playerID, conn := range s.clientStreams {
		player, err := s.playerManager.GetPlayer(playerID)
		if err != nil || player.Position.World != event.Position.World {
			continue
		}
		if abs(event.Position.X-player.Position.X) > visibilityRadius ||
			abs(event.Position.Z-player.Position.Z) > visibilityRadius {
			continue
		}
		_ = conn.send(msg, false)
	}
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// broadcastToAll sends a message to all connected clients.
func (s *WorldService) broadcastToAll(msg *game.ServerMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conn := range s.clientStreams {
		_ = conn.send(msg, false)
	}
}

// sendToPlayer queues a message for one player.
func (s *WorldService) sendToPlayer(playerID string, msg *game.ServerMessage) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, exists := s.clientStreams[playerID]
	if !exists {
		return ErrNotConnected
	}
	return conn.send(msg, false)
}

// Notify sends a server chat message to a single player. Implements plugin.Notifier.
func (s *WorldService) Notify(playerID, text string) {
	chatMsg := &game.ChatBroadcast{
		PlayerId:   "server",
		PlayerName: "Server",
		Content:    text,
		IsGlobal:   false,
	}
	if err := s.sendToPlayer(playerID, &game.ServerMessage{ChatBroadcast: chatMsg}); err != nil {
		s.logger.Debugw("notification dropped", "player_id", playerID, "error", err)
	}
}

// SendForm delivers an encoded form to a player. Implements form.Sender.
func (s *WorldService) SendForm(playerID, formID string, f json.RawMessage) error {
	return s.sendToPlayer(playerID, &game.ServerMessage{FormRequest: &game.FormRequest{FormId: formID, Form: f}})
}
