package service

import (
	"errors"
	"expvar"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/cmdblock-server/internal/block"
	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/form"
	"github.com/annelo/cmdblock-server/internal/gameloop"
	"github.com/annelo/cmdblock-server/internal/playermanager"
	"github.com/annelo/cmdblock-server/internal/plugin"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

var (
	// ErrNotConnected is returned when a message targets a player without an open stream.
	ErrNotConnected = errors.New("player is not connected")
	// ErrQueueFull is returned when the send queue of a client overflows.
	ErrQueueFull = errors.New("client send queue is full")
)

var (
	playersConnected = expvar.NewInt("players_connected")
	actionsRejected  = expvar.NewInt("block_actions_rejected")
	actionsApplied   = expvar.NewInt("block_actions_applied")
)

const (
	// sendQueueSize is the maximum number of messages in send queues per client.
	sendQueueSize = 1024
	// TickDuration is the length of one game tick (20 TPS).
	TickDuration = 50 * time.Millisecond
	// maxSpawnHeight ограничивает поиск поверхности при спавне.
	maxSpawnHeight = 256
	// DefaultJoinTimeout is how long a joined player may take to open a stream.
	DefaultJoinTimeout = 30 * time.Second
)

// WorldService представляет собой реализацию gRPC сервиса игрового мира
type WorldService struct {
	game.UnimplementedWorldServiceServer
	// logger for structured logging
	logger        *zap.SugaredLogger
	playerManager *playermanager.PlayerManager

	// Мьютекс для синхронизации доступа к карте соединений
	mu sync.RWMutex

	// Карта активных клиентских соединений
	clientStreams map[string]*clientConn

	// игровая петля: все изменения мира выполняются в ней
	loop *gameloop.Loop

	// Менеджер блоков
	blockManager *block.Manager

	// Ожидающие ответа формы
	forms *form.Manager

	// Реестр плагинов с обработчиками, хуками и системами
	registry plugin.PluginRegistry

	spawn       cube.Pos
	joinTimeout time.Duration
}

// Options configure a WorldService.
type Options struct {
	Logger *zap.SugaredLogger
	// Spawn is the column players join at; Y is replaced by the surface height.
	Spawn cube.Pos
	// Tick overrides TickDuration.
	Tick time.Duration
	// JoinTimeout overrides DefaultJoinTimeout.
	JoinTimeout time.Duration
}

// NewWorldService создает новый экземпляр сервиса игрового мира
func NewWorldService(reg plugin.PluginRegistry, blocks *block.Manager, opts Options) *WorldService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.Spawn.World == "" {
		opts.Spawn.World = "overworld"
	}
	if opts.Tick <= 0 {
		opts.Tick = TickDuration
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	// Регистрируем core-системы в реестре
	reg.RegisterGameSystem(gameloop.NewTimeSystem())

	ws := &WorldService{
		logger:        logger,
		registry:      reg,
		playerManager: playermanager.NewPlayerManager(),
		clientStreams: make(map[string]*clientConn),
		blockManager:  blocks,
		spawn:         opts.Spawn,
		joinTimeout:   opts.JoinTimeout,
	}
	ws.forms = form.NewManager(ws, logger.Named("forms"))
	ws.loop = gameloop.NewLoop(opts.Tick, gameloop.Dependencies{
		Players:        ws.playerManager,
		Logger:         logger,
		EmitWorldEvent: ws.broadcastWorldEvent,
	})
	return ws
}

// Forms returns the form manager plugins present forms through.
func (s *WorldService) Forms() *form.Manager { return s.forms }

// Loop returns the game loop.
func (s *WorldService) Loop() *gameloop.Loop { return s.loop }

// Players returns the player manager.
func (s *WorldService) Players() *playermanager.PlayerManager { return s.playerManager }

// Blocks returns the block manager.
func (s *WorldService) Blocks() *block.Manager { return s.blockManager }

// spawnPosition возвращает первую свободную клетку над поверхностью в точке спавна.
func (s *WorldService) spawnPosition() cube.Pos {
	pos := s.spawn
	for y := int32(maxSpawnHeight); y > 0; y-- {
		if s.blockManager.BlockAt(cube.Pos{World: pos.World, X: pos.X, Y: y - 1, Z: pos.Z}) != block.TypeAir {
			pos.Y = y
			return pos
		}
	}
	pos.Y = 0
	return pos
}
