package block

import (
	"expvar"
	"fmt"
	"sync"

	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

var droppedEvents = expvar.NewInt("block_events_dropped")

// Manager управляет всеми блоками в мире: хранит изменения поверх
// сгенерированного рельефа и рассылает события об изменениях.
type Manager struct {
	// Изменённые игроками позиции. Сломанный блок рельефа хранится как TypeAir.
	blocks map[cube.Pos]int32
	mu     sync.RWMutex

	gen Generator

	// Канал для событий изменения блоков
	events chan *game.WorldEvent
}

// NewManager создает новый менеджер блоков поверх генератора.
func NewManager(gen Generator) *Manager {
	return &Manager{
		blocks: make(map[cube.Pos]int32),
		gen:    gen,
		events: make(chan *game.WorldEvent, 100),
	}
}

// BlockAt возвращает тип блока в позиции.
func (m *Manager) BlockAt(pos cube.Pos) int32 {
	m.mu.RLock()
	t, ok := m.blocks[pos]
	m.mu.RUnlock()
	if ok {
		return t
	}
	return m.gen.BlockAt(pos.World, pos.X, pos.Y, pos.Z)
}

// Place ставит блок в пустую позицию.
func (m *Manager) Place(pos cube.Pos, blockType int32, playerID string) (*game.WorldEvent, error) {
	if blockType == TypeAir {
		return nil, ErrInvalidBlockType
	}

	m.mu.Lock()
	current, ok := m.blocks[pos]
	if !ok {
		current = m.gen.BlockAt(pos.World, pos.X, pos.Y, pos.Z)
	}
	if current != TypeAir {
		m.mu.Unlock()
		return nil, fmt.Errorf("place %s at %s: %w", Name(blockType), pos, ErrOccupied)
	}
	m.blocks[pos] = blockType
	m.mu.Unlock()

	event := &game.WorldEvent{
		Type:     game.EventBlockPlaced,
		Position: pos.ToProto(),
		PlayerId: playerID,
		Block:    &game.Block{Position: pos.ToProto(), Type: blockType},
		Message:  fmt.Sprintf("Блок %s поставлен", Name(blockType)),
	}
	m.emit(event)
	return event, nil
}

// Break ломает блок и возвращает его тип.
func (m *Manager) Break(pos cube.Pos, playerID string) (int32, *game.WorldEvent, error) {
	m.mu.Lock()
	current, ok := m.blocks[pos]
	if !ok {
		current = m.gen.BlockAt(pos.World, pos.X, pos.Y, pos.Z)
	}
	if current == TypeAir {
		m.mu.Unlock()
		return TypeAir, nil, fmt.Errorf("break at %s: %w", pos, ErrNothingToBreak)
	}
	if m.gen.BlockAt(pos.World, pos.X, pos.Y, pos.Z) == TypeAir {
		// Блок ставил игрок: достаточно забыть позицию
		delete(m.blocks, pos)
	} else {
		m.blocks[pos] = TypeAir
	}
	m.mu.Unlock()

	event := &game.WorldEvent{
		Type:     game.EventBlockRemoved,
		Position: pos.ToProto(),
		PlayerId: playerID,
		Block:    &game.Block{Position: pos.ToProto(), Type: TypeAir},
		Message:  fmt.Sprintf("Блок %s сломан", Name(current)),
	}
	m.emit(event)
	return current, event, nil
}

// ChangedCount возвращает количество позиций, отличающихся от рельефа.
func (m *Manager) ChangedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// Events возвращает канал событий изменения блоков.
func (m *Manager) Events() <-chan *game.WorldEvent {
	return m.events
}

// emit never blocks the caller; a full channel drops the event.
func (m *Manager) emit(event *game.WorldEvent) {
	select {
	case m.events <- event:
	default:
		droppedEvents.Add(1)
	}
}
