package playermanager

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/annelo/cmdblock-server/internal/cube"
)

var (
	ErrPlayerExists   = errors.New("игрок с таким ID уже существует")
	ErrPlayerNotFound = errors.New("игрок не найден")
	ErrNameTaken      = errors.New("имя уже занято")
)

// PlayerData содержит информацию об игроке
type PlayerData struct {
	ID       string
	Name     string
	Position cube.Pos
}

// PlayerManager управляет данными игроков
type PlayerManager struct {
	players map[string]*PlayerData
	mu      sync.RWMutex
}

// NewPlayerManager создает новый экземпляр менеджера игроков
func NewPlayerManager() *PlayerManager {
	return &PlayerManager{
		players: make(map[string]*PlayerData),
	}
}

// AddPlayer добавляет нового игрока в менеджер. Имена уникальны без учёта регистра.
func (pm *PlayerManager) AddPlayer(id, name string, position cube.Pos) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, exists := pm.players[id]; exists {
		return ErrPlayerExists
	}
	for _, p := range pm.players {
		if strings.EqualFold(p.Name, name) {
			return ErrNameTaken
		}
	}

	pm.players[id] = &PlayerData{
		ID:       id,
		Name:     name,
		Position: position,
	}
	return nil
}

// GetPlayer возвращает копию данных игрока по ID
func (pm *PlayerManager) GetPlayer(id string) (PlayerData, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	player, exists := pm.players[id]
	if !exists {
		return PlayerData{}, ErrPlayerNotFound
	}
	return *player, nil
}

// FindByName ищет игрока по имени без учёта регистра
func (pm *PlayerManager) FindByName(name string) (PlayerData, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, p := range pm.players {
		if strings.EqualFold(p.Name, name) {
			return *p, true
		}
	}
	return PlayerData{}, false
}

// UpdatePlayerPosition обновляет позицию игрока
func (pm *PlayerManager) UpdatePlayerPosition(id string, position cube.Pos) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	player, exists := pm.players[id]
	if !exists {
		return ErrPlayerNotFound
	}
	player.Position = position
	return nil
}

// RemovePlayer удаляет игрока из менеджера
func (pm *PlayerManager) RemovePlayer(id string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, exists := pm.players[id]; !exists {
		return ErrPlayerNotFound
	}
	delete(pm.players, id)
	return nil
}

// GetAllPlayers возвращает список всех игроков, отсортированный по имени
func (pm *PlayerManager) GetAllPlayers() []PlayerData {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	players := make([]PlayerData, 0, len(pm.players))
	for _, player := range pm.players {
		players = append(players, *player)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players
}

// Count возвращает число игроков онлайн
func (pm *PlayerManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.players)
}
