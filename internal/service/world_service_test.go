package service_test

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/annelo/cmdblock-server/internal/block"
	"github.com/annelo/cmdblock-server/internal/commandblock"
	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/gameloop"
	"github.com/annelo/cmdblock-server/internal/permission"
	"github.com/annelo/cmdblock-server/internal/plugin"
	"github.com/annelo/cmdblock-server/internal/service"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

const surface = 10

type testServer struct {
	ws     *service.WorldService
	reg    *plugin.DefaultRegistry
	cb     *commandblock.Plugin
	client game.WorldServiceClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, service.Options{})
}

func newTestServerWith(t *testing.T, opts service.Options) *testServer {
	t.Helper()
	reg := plugin.NewDefaultRegistry()
	blocks := block.NewManager(block.FlatGenerator{Height: surface})
	ws := service.NewWorldService(reg, blocks, opts)

	cb := commandblock.New()
	reg.RegisterPlugin(cb)
	reg.MarkCore()
	perms := permission.NewStore(permission.Config{
		Players: map[string][]string{"alice": {commandblock.CapabilityUse, commandblock.CapabilityEdit}},
	})
	pm := plugin.NewPluginManager(t.TempDir(), nil)
	require.NoError(t, pm.EnablePlugins(reg, plugin.API{Permissions: perms, Forms: ws.Forms(), Notifier: ws}))

	ctx, cancel := context.WithCancel(context.Background())
	ws.Start(ctx)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	ws.RegisterServer(srv)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		ws.Stop()
		srv.Stop()
		cancel()
		<-ws.Loop().Done()
	})
	return &testServer{ws: ws, reg: reg, cb: cb, client: game.NewWorldServiceClient(conn)}
}

type session struct {
	t        *testing.T
	id       string
	spawn    cube.Pos
	stream   game.WorldService_GameStreamClient
	messages chan *game.ServerMessage
	// сообщения, пропущенные предыдущими waitFor
	backlog []*game.ServerMessage
}

func (ts *testServer) join(t *testing.T, name string) *session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	resp, err := ts.client.JoinGame(ctx, &game.JoinRequest{PlayerName: name})
	require.NoError(t, err)
	require.True(t, resp.Success, resp.ErrorMessage)

	stream, err := ts.client.GameStream(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Send(&game.ClientMessage{PlayerId: resp.PlayerId, Ping: &game.Ping{ClientTime: 1}}))

	s := &session{t: t, id: resp.PlayerId, spawn: cube.FromProto(resp.SpawnPosition), stream: stream, messages: make(chan *game.ServerMessage, 64)}
	go func() {
		defer close(s.messages)
		for {
			msg, err := stream.Recv()
			if err != nil {
				return
			}
			s.messages <- msg
		}
	}()
	// pong confirms the stream is registered
	s.waitFor(func(m *game.ServerMessage) bool { return m.Pong != nil })
	return s
}

func (s *session) send(msg *game.ClientMessage) {
	s.t.Helper()
	msg.PlayerId = s.id
	require.NoError(s.t, s.stream.Send(msg))
}

func (s *session) action(kind game.ActionType, pos cube.Pos, blockType int32) *game.ActionResult {
	s.t.Helper()
	s.send(&game.ClientMessage{BlockAction: &game.BlockAction{Action: kind, Position: pos.ToProto(), BlockType: blockType}})
	return s.waitFor(func(m *game.ServerMessage) bool { return m.ActionResult != nil }).ActionResult
}

// waitFor returns the oldest unconsumed message that matches.
func (s *session) waitFor(match func(*game.ServerMessage) bool) *game.ServerMessage {
	s.t.Helper()
	for i, msg := range s.backlog {
		if match(msg) {
			s.backlog = append(s.backlog[:i], s.backlog[i+1:]...)
			return msg
		}
	}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-s.messages:
			require.True(s.t, ok, "stream closed")
			if match(msg) {
				return msg
			}
			s.backlog = append(s.backlog, msg)
		case <-timeout:
			s.t.Fatal("timed out waiting for server message")
			return nil
		}
	}
}

func isChat(text string) func(*game.ServerMessage) bool {
	return func(m *game.ServerMessage) bool {
		return m.ChatBroadcast != nil && m.ChatBroadcast.Content == text
	}
}

func TestJoinGame(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	resp, err := ts.client.JoinGame(ctx, &game.JoinRequest{PlayerName: "Alice"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.NotEmpty(t, resp.PlayerId)
	assert.Equal(t, &game.BlockPosition{World: "overworld", X: 0, Y: surface + 1, Z: 0}, resp.SpawnPosition)

	dup, err := ts.client.JoinGame(ctx, &game.JoinRequest{PlayerName: "alice"})
	require.NoError(t, err)
	assert.False(t, dup.Success, "names are unique")

	empty, err := ts.client.JoinGame(ctx, &game.JoinRequest{PlayerName: "  "})
	require.NoError(t, err)
	assert.False(t, empty.Success)
}

func TestGameStream_UnknownPlayer(t *testing.T) {
	ts := newTestServer(t)
	stream, err := ts.client.GameStream(context.Background())
	require.NoError(t, err)
	require.NoError(t, stream.Send(&game.ClientMessage{PlayerId: "nobody"}))
	_, err = stream.Recv()
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestCommandBlockLifecycle(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.join(t, "Alice")
	pos := alice.spawn.Add(2, 0, 0)

	res := alice.action(game.ActionPlace, pos, commandblock.DefaultBlockID)
	require.True(t, res.Success, res.Message)
	placed := alice.waitFor(func(m *game.ServerMessage) bool {
		return m.WorldEvent != nil && m.WorldEvent.Type == game.EventBlockPlaced
	})
	assert.Equal(t, commandblock.DefaultBlockID, placed.WorldEvent.Block.Type)

	rec, ok := ts.cb.Registry().Get(pos)
	require.True(t, ok)
	assert.Equal(t, commandblock.DefaultRecord(), rec)

	// interact opens the settings form
	res = alice.action(game.ActionInteract, pos, 0)
	assert.True(t, res.Success)
	req := alice.waitFor(func(m *game.ServerMessage) bool { return m.FormRequest != nil }).FormRequest
	var decoded struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(req.Form, &decoded))
	assert.Equal(t, "Command Block Settings", decoded.Title)

	alice.send(&game.ClientMessage{FormResponse: &game.FormResponse{
		FormId: req.FormId,
		Data:   json.RawMessage(`["say hi", 1, true, false]`),
	}})
	alice.waitFor(isChat("Command Block updated successfully!"))

	rec, _ = ts.cb.Registry().Get(pos)
	assert.Equal(t, commandblock.Record{Command: "say hi", Mode: commandblock.Chain, Conditional: true, NeedsRedstone: false}, rec)

	// a second answer to the same form is ignored
	alice.send(&game.ClientMessage{FormResponse: &game.FormResponse{FormId: req.FormId, Data: json.RawMessage(`["other"]`)}})

	// cancelling a new form keeps the record
	alice.action(game.ActionInteract, pos, 0)
	req = alice.waitFor(func(m *game.ServerMessage) bool { return m.FormRequest != nil }).FormRequest
	alice.send(&game.ClientMessage{FormResponse: &game.FormResponse{FormId: req.FormId, Cancelled: true}})
	alice.waitFor(isChat("Command editing cancelled."))
	rec, _ = ts.cb.Registry().Get(pos)
	assert.Equal(t, "say hi", rec.Command)

	// breaking removes the record
	res = alice.action(game.ActionDestroy, pos, 0)
	require.True(t, res.Success, res.Message)
	_, ok = ts.cb.Registry().Get(pos)
	assert.False(t, ok)
	assert.Equal(t, int32(block.TypeAir), ts.ws.Blocks().BlockAt(pos))
}

// lockdown vetoes every placement and break while it is on.
type lockdown struct {
	plugin.NopHandler
	on atomic.Bool
}

func (l *lockdown) HandleBlockPlace(ctx *plugin.Context, _ plugin.Actor, _ cube.Pos, _ int32) {
	if l.on.Load() {
		ctx.Cancel()
	}
}

func (l *lockdown) HandleBlockBreak(ctx *plugin.Context, _ plugin.Actor, _ cube.Pos, _ int32) {
	if l.on.Load() {
		ctx.Cancel()
	}
}

func TestOtherHandlerVetoKeepsRecordsInStepWithWorld(t *testing.T) {
	ts := newTestServer(t)
	guard := &lockdown{}
	ts.reg.RegisterHandler(guard)
	alice := ts.join(t, "Alice")
	kept := alice.spawn.Add(2, 0, 0)
	blocked := alice.spawn.Add(-2, 0, 0)

	res := alice.action(game.ActionPlace, kept, commandblock.DefaultBlockID)
	require.True(t, res.Success, res.Message)
	guard.on.Store(true)

	// break vetoed after the command block handler saw it
	res = alice.action(game.ActionDestroy, kept, 0)
	assert.False(t, res.Success)
	assert.Equal(t, service.ErrCancelled.Error(), res.Message)
	assert.Equal(t, commandblock.DefaultBlockID, ts.ws.Blocks().BlockAt(kept))
	_, ok := ts.cb.Get(kept)
	assert.True(t, ok, "the block is still in the world, so is its record")

	// place vetoed after the command block handler allowed it
	res = alice.action(game.ActionPlace, blocked, commandblock.DefaultBlockID)
	assert.False(t, res.Success)
	assert.Equal(t, int32(block.TypeAir), ts.ws.Blocks().BlockAt(blocked))
	_, ok = ts.cb.Get(blocked)
	assert.False(t, ok, "no record without a block")

	guard.on.Store(false)
	res = alice.action(game.ActionDestroy, kept, 0)
	require.True(t, res.Success, res.Message)
	_, ok = ts.cb.Get(kept)
	assert.False(t, ok)
}

func TestJoinWithoutStreamExpires(t *testing.T) {
	ts := newTestServerWith(t, service.Options{JoinTimeout: 100 * time.Millisecond})
	ctx := context.Background()

	resp, err := ts.client.JoinGame(ctx, &game.JoinRequest{PlayerName: "Alice"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	bob := ts.join(t, "Bob")

	assert.Eventually(t, func() bool {
		_, found := ts.ws.Players().FindByName("alice")
		return !found
	}, 2*time.Second, 10*time.Millisecond, "the name is released")

	// the streaming player stays
	time.Sleep(200 * time.Millisecond)
	_, err = ts.ws.Players().GetPlayer(bob.id)
	assert.NoError(t, err)

	// a late stream for the expired join is refused
	stream, err := ts.client.GameStream(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Send(&game.ClientMessage{PlayerId: resp.PlayerId}))
	_, err = stream.Recv()
	assert.Equal(t, codes.NotFound, status.Code(err))

	again, err := ts.client.JoinGame(ctx, &game.JoinRequest{PlayerName: "alice"})
	require.NoError(t, err)
	assert.True(t, again.Success, again.ErrorMessage)
}

func TestPlaceWithoutPermissionIsVetoed(t *testing.T) {
	ts := newTestServer(t)
	bob := ts.join(t, "Bob")
	pos := bob.spawn.Add(1, 0, 1)

	res := bob.action(game.ActionPlace, pos, commandblock.DefaultBlockID)
	assert.False(t, res.Success)
	assert.Equal(t, service.ErrCancelled.Error(), res.Message)
	bob.waitFor(isChat("You do not have permission to place Command Blocks!"))

	assert.Equal(t, int32(block.TypeAir), ts.ws.Blocks().BlockAt(pos), "vetoed placement leaves the world unchanged")
	assert.Equal(t, 0, ts.cb.Registry().Len())

	// ordinary blocks are not affected
	res = bob.action(game.ActionPlace, pos, block.TypeStone)
	assert.True(t, res.Success, res.Message)
}

func TestWorldRulesComeBeforePlugins(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.join(t, "Alice")
	ground := alice.spawn.Add(0, -1, 0)

	res := alice.action(game.ActionPlace, ground, commandblock.DefaultBlockID)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, block.ErrOccupied.Error())
	assert.Equal(t, 0, ts.cb.Registry().Len())

	res = alice.action(game.ActionDestroy, alice.spawn.Add(0, 5, 0), 0)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, block.ErrNothingToBreak.Error())

	res = alice.action(game.ActionPlace, alice.spawn, block.TypeAir)
	assert.False(t, res.Success)
}

func TestChatIsBroadcast(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.join(t, "Alice")
	bob := ts.join(t, "Bob")

	alice.send(&game.ClientMessage{Chat: &game.ChatMessage{Content: "hello"}})
	msg := bob.waitFor(func(m *game.ServerMessage) bool { return m.ChatBroadcast != nil && m.ChatBroadcast.IsGlobal })
	assert.Equal(t, "Alice", msg.ChatBroadcast.PlayerName)
	assert.Equal(t, "hello", msg.ChatBroadcast.Content)
}

func TestDisconnectForgetsPendingForms(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.join(t, "Alice")
	pos := alice.spawn.Add(3, 0, 0)

	alice.action(game.ActionPlace, pos, commandblock.DefaultBlockID)
	alice.action(game.ActionInteract, pos, 0)
	alice.waitFor(func(m *game.ServerMessage) bool { return m.FormRequest != nil })
	require.Equal(t, 1, ts.ws.Forms().Pending(alice.id))

	require.NoError(t, alice.stream.CloseSend())
	assert.Eventually(t, func() bool {
		var pending int
		_ = ts.ws.Loop().Do(context.Background(), func() { pending = ts.ws.Forms().Pending(alice.id) })
		return pending == 0 && ts.ws.Players().Count() == 0
	}, 5*time.Second, 10*time.Millisecond)

	rec, ok := ts.cb.Registry().Get(pos)
	require.True(t, ok, "an unanswered form leaves the record as it was")
	assert.Equal(t, commandblock.DefaultRecord(), rec)
}

func TestHooksSeeAppliedActions(t *testing.T) {
	ts := newTestServer(t)
	placed := make(chan *game.WorldEvent, 1)
	ts.reg.RegisterHook(plugin.HookAfterPlaceBlock, func(args ...interface{}) {
		placed <- args[0].(*game.WorldEvent)
	})
	alice := ts.join(t, "Alice")

	alice.action(game.ActionPlace, alice.spawn, block.TypeStone)
	select {
	case evt := <-placed:
		assert.Equal(t, alice.id, evt.PlayerId)
		assert.Equal(t, int32(block.TypeStone), evt.Block.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("AfterPlaceBlock hook not called")
	}
}

func TestApplyBlockAction_MissingPosition(t *testing.T) {
	ts := newTestServer(t)
	res := ts.ws.ApplyBlockAction(plugin.Actor{ID: "x", Name: "x"}, &game.BlockAction{Action: game.ActionPlace, BlockType: 1})
	assert.False(t, res.Success)
}

func TestNewWorldService_RegistersCoreSystems(t *testing.T) {
	reg := plugin.NewDefaultRegistry()
	ws := service.NewWorldService(reg, block.NewManager(block.FlatGenerator{}), service.Options{})
	assert.NotNil(t, ws)

	systems := reg.GameSystems()
	require.Len(t, systems, 1, "expected the time system")
	assert.IsType(t, gameloop.NewTimeSystem(), systems[0])
}

func TestStopSendsShutdownAndDropsPlayers(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.join(t, "alice")
	require.Equal(t, 1, ts.ws.Players().Count())

	ts.ws.Stop()

	msg := alice.waitFor(func(m *game.ServerMessage) bool {
		return m.WorldEvent != nil && m.WorldEvent.Type == game.EventServerShutdown
	})
	assert.Equal(t, "Server is shutting down", msg.WorldEvent.Message)
	assert.Eventually(t, func() bool { return ts.ws.Players().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
