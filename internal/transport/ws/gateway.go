// Package ws exposes the game session over WebSocket. Frames carry the same
// JSON messages as the gRPC stream: the first client frame is a JoinRequest,
// the server answers with a JoinResponse, then ClientMessage and
// ServerMessage frames follow.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/annelo/cmdblock-server/internal/service"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	idleTimeout      = 90 * time.Second
	maxFrameSize     = 64 * 1024
)

// World is the part of the world service the gateway needs.
type World interface {
	JoinGame(ctx context.Context, req *game.JoinRequest) (*game.JoinResponse, error)
	Serve(ctx context.Context, playerID string, stream service.Stream) error
}

// Gateway upgrades HTTP requests to game sessions.
type Gateway struct {
	world    World
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
}

// NewGateway returns a gateway for world. A nil logger disables logging.
func NewGateway(world World, logger *zap.SugaredLogger) *Gateway {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Gateway{
		world: world,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxFrameSize,
			WriteBufferSize: maxFrameSize,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	playerID, err := g.handshake(r.Context(), conn)
	if err != nil {
		g.log.Debugw("websocket handshake failed", "remote", r.RemoteAddr, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), time.Now().Add(time.Second))
		return
	}

	if err := g.world.Serve(r.Context(), playerID, &stream{conn: conn}); err != nil {
		g.log.Warnw("websocket session failed", "player_id", playerID, "error", err)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

func (g *Gateway) handshake(ctx context.Context, conn *websocket.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	var req game.JoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("expected join request: %w", err)
	}
	resp, err := g.world.JoinGame(ctx, &req)
	if err != nil {
		return "", err
	}
	if err := writeJSON(conn, resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", errors.New(resp.ErrorMessage)
	}
	return resp.PlayerId, nil
}

// stream adapts a WebSocket connection to service.Stream. Send is only ever
// called from the session writer goroutine.
type stream struct {
	conn *websocket.Conn
}

func (s *stream) Send(msg *game.ServerMessage) error {
	return writeJSON(s.conn, msg)
}

func (s *stream) Recv() (*game.ClientMessage, error) {
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		// битые и не прошедшие схему кадры пропускаем
		if err := game.Validate(game.SchemaClientMessage, data); err != nil {
			continue
		}
		msg := new(game.ClientMessage)
		if err := json.Unmarshal(data, msg); err != nil {
			continue
		}
		return msg, nil
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
