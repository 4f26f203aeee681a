package gameloop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

// TimeSystem отвечает за ход игрового времени.
type TimeSystem struct {
	deps  Dependencies
	log   *zap.SugaredLogger
	ticks int64
	day   int32
}

const (
	ticksPerDay    = 1200 // ~60 секунд при 20 TPS
	broadcastEvery = 100  // каждые 5 секунд
)

func NewTimeSystem() *TimeSystem { return &TimeSystem{} }

func (t *TimeSystem) Name() string { return "time" }

func (t *TimeSystem) Init(deps Dependencies) error {
	t.deps = deps
	t.log = zap.NewNop().Sugar()
	if deps.Logger != nil {
		t.log = deps.Logger.Named("time")
	}
	return nil
}

// Now возвращает текущее игровое время.
func (t *TimeSystem) Now() game.TimeInfo {
	return game.TimeInfo{DayTime: t.ticks % ticksPerDay, Day: t.day}
}

func (t *TimeSystem) Tick(ctx context.Context, dt time.Duration) {
	// Один Tick цикла == 1 игровой тик
	t.ticks++
	if t.ticks%ticksPerDay == 0 {
		t.day++
	}

	// Периодически оповещаем клиентов
	if t.ticks%broadcastEvery == 0 && t.deps.EmitWorldEvent != nil {
		ti := t.Now()
		t.log.Debugw("broadcasting time", "tick", t.ticks, "day_time", ti.DayTime, "day", ti.Day)
		t.deps.EmitWorldEvent(&game.WorldEvent{
			Type: game.EventTimeChanged,
			Time: &ti,
		})
	}
}
