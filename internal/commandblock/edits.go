package commandblock

import (
	"sync"

	"github.com/annelo/cmdblock-server/internal/cube"
)

// editSession is one settings form waiting for an answer.
type editSession struct {
	playerID string
	pos      cube.Pos
}

// editSessions tracks the open settings forms. An answer is applied only
// while its session is live; removing the block ends every session for it.
type editSessions struct {
	mu   sync.Mutex
	live map[*editSession]struct{}
}

func (e *editSessions) open(playerID string, pos cube.Pos) *editSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.live == nil {
		e.live = make(map[*editSession]struct{})
	}
	s := &editSession{playerID: playerID, pos: pos}
	e.live[s] = struct{}{}
	return s
}

// close ends s and reports whether it was still live.
func (e *editSessions) close(s *editSession) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.live[s]
	delete(e.live, s)
	return ok
}

func (e *editSessions) dropPos(pos cube.Pos) int {
	return e.drop(func(s *editSession) bool { return s.pos == pos })
}

func (e *editSessions) dropPlayer(playerID string) int {
	return e.drop(func(s *editSession) bool { return s.playerID == playerID })
}

func (e *editSessions) drop(match func(*editSession) bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for s := range e.live {
		if match(s) {
			delete(e.live, s)
			n++
		}
	}
	return n
}

func (e *editSessions) reset() {
	e.mu.Lock()
	e.live = nil
	e.mu.Unlock()
}
