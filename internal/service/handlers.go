package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/annelo/cmdblock-server/internal/playermanager"
	"github.com/annelo/cmdblock-server/internal/plugin"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

const maxNameLength = 32

// RegisterServer registers the WorldService on the given gRPC server.
func (s *WorldService) RegisterServer(grpcServer *grpc.Server) {
	game.RegisterWorldServiceServer(grpcServer, s)
}

// JoinGame handles player join requests.
func (s *WorldService) JoinGame(ctx context.Context, req *game.JoinRequest) (*game.JoinResponse, error) {
	name := strings.TrimSpace(req.PlayerName)
	if name == "" || len(name) > maxNameLength {
		return &game.JoinResponse{Success: false, ErrorMessage: "player name must be 1-32 characters"}, nil
	}

	playerID := uuid.New().String()
	spawn := s.spawnPosition()
	if err := s.playerManager.AddPlayer(playerID, name, spawn); err != nil {
		s.logger.Warnw("failed to add player", "name", name, "error", err)
		return &game.JoinResponse{Success: false, ErrorMessage: "Could not add player: " + err.Error()}, nil
	}

	time.AfterFunc(s.joinTimeout, func() { s.expireJoin(playerID, name) })

	s.logger.Infow("player joined", "name", name, "player_id", playerID, "spawn", spawn)
	return &game.JoinResponse{PlayerId: playerID, SpawnPosition: spawn.ToProto(), Success: true}, nil
}

// GameStream establishes a bidirectional stream for game events.
func (s *WorldService) GameStream(stream game.WorldService_GameStreamServer) error {
	// Receive first message to identify player
	first, err := stream.Recv()
	if err != nil {
		s.logger.Warnw("error receiving first message", "error", err)
		return status.Errorf(codes.Internal, "error receiving first message: %v", err)
	}
	err = s.serve(stream.Context(), first.PlayerId, stream, first)
	switch {
	case errors.Is(err, playermanager.ErrPlayerNotFound):
		return status.Errorf(codes.NotFound, "player not found: %v", err)
	case errors.Is(err, errAlreadyStreaming):
		return status.Errorf(codes.AlreadyExists, "%v", err)
	}
	return nil
}

var errAlreadyStreaming = errors.New("player already has an open stream")

// Serve runs the session of a joined player over stream until the stream
// fails, ctx is done or the server disconnects the player.
func (s *WorldService) Serve(ctx context.Context, playerID string, stream Stream) error {
	return s.serve(ctx, playerID, stream, nil)
}

// expireJoin drops a joined player who never opened a stream, so the name
// becomes free again.
func (s *WorldService) expireJoin(playerID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, streaming := s.clientStreams[playerID]; streaming {
		return
	}
	if err := s.playerManager.RemovePlayer(playerID); err == nil {
		s.logger.Infow("join expired without a stream", "name", name, "player_id", playerID)
	}
}

func (s *WorldService) serve(ctx context.Context, playerID string, stream Stream, first *game.ClientMessage) error {
	conn := newClientConn(stream)
	// lookup and registration share the lock with expireJoin
	s.mu.Lock()
	player, err := s.playerManager.GetPlayer(playerID)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warnw("stream for unknown player", "player_id", playerID)
		return err
	}
	if _, exists := s.clientStreams[playerID]; exists {
		s.mu.Unlock()
		return errAlreadyStreaming
	}
	s.clientStreams[playerID] = conn
	s.mu.Unlock()
	playersConnected.Add(1)

	go func() {
		if err := conn.writeLoop(); err != nil {
			s.logger.Warnw("send to client failed", "player_id", playerID, "error", err)
		}
	}()

	actor := plugin.Actor{ID: playerID, Name: player.Name}
	_ = s.loop.Submit(func() {
		for _, h := range s.registry.Hooks(plugin.HookPlayerJoin) {
			h(actor)
		}
	})

	if first != nil {
		s.handleClientMessage(actor, first)
	}

	incoming := make(chan *game.ClientMessage)
	recvErr := make(chan error, 1)
	go func() {
		for {
			msg, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case incoming <- msg:
			case <-conn.done:
				return
			}
		}
	}()

loop:
	for {
		select {
		case msg := <-incoming:
			s.handleClientMessage(actor, msg)
		case err := <-recvErr:
			s.logger.Infow("connection lost", "player", player.Name, "reason", err)
			break loop
		case <-conn.done:
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	s.disconnect(actor, conn)
	return nil
}

// disconnect unregisters the connection and drops the player.
func (s *WorldService) disconnect(actor plugin.Actor, conn *clientConn) {
	s.mu.Lock()
	if c, ok := s.clientStreams[actor.ID]; ok && c == conn {
		delete(s.clientStreams, actor.ID)
	}
	s.mu.Unlock()
	conn.close()
	<-conn.writerDone
	playersConnected.Add(-1)

	_ = s.playerManager.RemovePlayer(actor.ID)
	err := s.loop.Submit(func() {
		if n := s.forms.Forget(actor.ID); n > 0 {
			s.logger.Debugw("dropped unanswered forms", "player", actor.Name, "count", n)
		}
		for _, h := range s.registry.Hooks(plugin.HookPlayerQuit) {
			h(actor)
		}
	})
	if err != nil {
		s.forms.Forget(actor.ID)
	}
	s.logger.Infow("player disconnected", "player", actor.Name, "player_id", actor.ID)
}

// handleClientMessage routes incoming client messages to appropriate handlers.
func (s *WorldService) handleClientMessage(actor plugin.Actor, msg *game.ClientMessage) {
	switch {
	case msg.BlockAction != nil:
		s.handleBlockAction(actor, msg.BlockAction)
	case msg.FormResponse != nil:
		s.handleFormResponse(actor, msg.FormResponse)
	case msg.Chat != nil:
		s.handleChatMessage(actor, msg.Chat)
	case msg.Ping != nil:
		s.handlePing(actor, msg.Ping)
	}
}

// handleChatMessage broadcasts a chat line to every player.
func (s *WorldService) handleChatMessage(actor plugin.Actor, chat *game.ChatMessage) {
	content := strings.TrimSpace(chat.Content)
	if content == "" {
		return
	}
	s.broadcastToAll(&game.ServerMessage{ChatBroadcast: &game.ChatBroadcast{
		PlayerId:   actor.ID,
		PlayerName: actor.Name,
		Content:    content,
		IsGlobal:   true,
	}})
}

// handlePing processes a ping from a player and responds with a pong.
func (s *WorldService) handlePing(actor plugin.Actor, ping *game.Ping) {
	_ = s.sendToPlayer(actor.ID, &game.ServerMessage{Pong: &game.Pong{
		ClientTime: ping.ClientTime,
		ServerTime: time.Now().UnixMilli(),
	}})
}
