package ws_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/cmdblock-server/internal/block"
	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/plugin"
	"github.com/annelo/cmdblock-server/internal/service"
	"github.com/annelo/cmdblock-server/internal/transport/ws"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

func startGateway(t *testing.T) (*service.WorldService, string) {
	t.Helper()
	reg := plugin.NewDefaultRegistry()
	world := service.NewWorldService(reg, block.NewManager(block.FlatGenerator{Height: 4}), service.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	world.Start(ctx)

	srv := httptest.NewServer(ws.NewGateway(world, nil))
	t.Cleanup(func() {
		world.Stop()
		srv.Close()
		cancel()
	})
	return world, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readServerMessage(t *testing.T, conn *websocket.Conn, match func(*game.ServerMessage) bool) *game.ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg game.ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(&msg) {
			return &msg
		}
	}
}

func TestGateway_JoinPlaceAndPing(t *testing.T) {
	world, url := startGateway(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(game.JoinRequest{PlayerName: "Steve"}))
	var joined game.JoinResponse
	require.NoError(t, conn.ReadJSON(&joined))
	require.True(t, joined.Success, joined.ErrorMessage)
	assert.Equal(t, int32(5), joined.SpawnPosition.Y)

	require.NoError(t, conn.WriteJSON(game.ClientMessage{Ping: &game.Ping{ClientTime: 42}}))
	pong := readServerMessage(t, conn, func(m *game.ServerMessage) bool { return m.Pong != nil })
	assert.Equal(t, int64(42), pong.Pong.ClientTime)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")), "garbage frames are skipped")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"teleport":{"x":1}}`)), "frames outside the schema are skipped")

	pos := joined.SpawnPosition
	require.NoError(t, conn.WriteJSON(game.ClientMessage{BlockAction: &game.BlockAction{
		Action: game.ActionPlace, Position: pos, BlockType: block.TypeStone,
	}}))
	res := readServerMessage(t, conn, func(m *game.ServerMessage) bool { return m.ActionResult != nil })
	assert.True(t, res.ActionResult.Success, res.ActionResult.Message)
	assert.Eventually(t, func() bool {
		return world.Blocks().BlockAt(cube.FromProto(pos)) == block.TypeStone
	}, time.Second, 10*time.Millisecond)
}

func TestGateway_RejectsBadHandshake(t *testing.T) {
	_, url := startGateway(t)

	conn := dial(t, url)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)

	conn = dial(t, url)
	require.NoError(t, conn.WriteJSON(game.JoinRequest{PlayerName: ""}))
	var resp game.JoinResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.False(t, resp.Success)
}

func TestGateway_DisconnectRemovesPlayer(t *testing.T) {
	world, url := startGateway(t)
	conn := dial(t, url)
	require.NoError(t, conn.WriteJSON(game.JoinRequest{PlayerName: "Steve"}))
	var joined game.JoinResponse
	require.NoError(t, conn.ReadJSON(&joined))
	require.Equal(t, 1, world.Players().Count())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return world.Players().Count() == 0 }, 5*time.Second, 10*time.Millisecond)

	// the name is free again
	conn = dial(t, url)
	require.NoError(t, conn.WriteJSON(game.JoinRequest{PlayerName: "Steve"}))
	raw := json.RawMessage{}
	require.NoError(t, conn.ReadJSON(&raw))
	assert.Contains(t, string(raw), `"success":true`)
}
