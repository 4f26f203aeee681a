package gameloop

import (
	"context"
	"errors"
	"expvar"
	"time"

	"go.uber.org/zap"
)

// ErrStopped возвращается, если цикл уже остановлен.
var ErrStopped = errors.New("game loop stopped")

var (
	actionsRun    = expvar.NewInt("loop_actions")
	actionsPanics = expvar.NewInt("loop_panics")
)

// Action это функция, выполняемая в горутине игрового цикла.
type Action func()

// Loop: главный цикл, вызывающий Tick всех зарегистрированных систем.
// Все действия, изменяющие мир, выполняются в нём последовательно.
type Loop struct {
	systems []System
	deps    Dependencies
	tickDur time.Duration
	log     *zap.SugaredLogger

	inbox chan Action
	done  chan struct{}
}

// NewLoop создаёт цикл с заданной длительностью тика.
func NewLoop(tick time.Duration, deps Dependencies, systems ...System) *Loop {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	l := &Loop{
		deps:    deps,
		tickDur: tick,
		log:     deps.Logger.Named("gameloop"),
		inbox:   make(chan Action, 256),
		done:    make(chan struct{}),
	}
	for _, s := range systems {
		l.AddSystem(s)
	}
	return l
}

// AddSystem инициализирует систему и добавляет её в цикл. Вызывать до Run.
func (l *Loop) AddSystem(s System) {
	if err := s.Init(l.deps); err != nil {
		l.log.Errorw("init system", "system", s.Name(), "error", err)
		return
	}
	l.systems = append(l.systems, s)
}

// Submit ставит действие в очередь цикла и не ждёт его выполнения.
func (l *Loop) Submit(fn Action) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.inbox <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Do выполняет действие в цикле и ждёт его завершения.
func (l *Loop) Do(ctx context.Context, fn Action) error {
	finished := make(chan struct{})
	if err := l.Submit(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// цикл мог выполнить действие перед остановкой
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done закрывается после остановки цикла.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Run запускает бесконечный цикл до отмены ctx.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.tickDur)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case fn := <-l.inbox:
			l.run(fn)
		case t := <-ticker.C:
			dt := t.Sub(last)
			last = t
			for _, s := range l.systems {
				l.tick(ctx, s, dt)
			}
		case <-ctx.Done():
			// выполняем то, что уже в очереди
			for {
				select {
				case fn := <-l.inbox:
					l.run(fn)
				default:
					l.log.Info("stopped")
					return
				}
			}
		}
	}
}

func (l *Loop) run(fn Action) {
	defer func() {
		if r := recover(); r != nil {
			actionsPanics.Add(1)
			l.log.Errorw("panic in action", "panic", r)
		}
	}()
	actionsRun.Add(1)
	fn()
}

func (l *Loop) tick(ctx context.Context, sys System, dt time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			actionsPanics.Add(1)
			l.log.Errorw("panic in system", "system", sys.Name(), "panic", r)
		}
	}()
	sys.Tick(ctx, dt)
}
