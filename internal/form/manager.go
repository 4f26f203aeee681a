package form

import (
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnknownForm is returned when an answer does not match a pending form of
// the answering player, including a second answer to the same form.
var ErrUnknownForm = errors.New("unknown or already answered form")

var (
	formsSent     = expvar.NewInt("forms_sent")
	formsAnswered = expvar.NewInt("forms_answered")
	formsDropped  = expvar.NewInt("forms_dropped")
)

// ResultFunc receives the answer to a form. resp is nil when the player closed
// the form.
type ResultFunc func(playerID string, resp *Response)

// Presenter shows forms to players.
type Presenter interface {
	Send(playerID string, f Custom, onResult ResultFunc) error
}

// Sender delivers an encoded form to the player's client.
type Sender interface {
	SendForm(playerID, formID string, form json.RawMessage) error
}

type pendingForm struct {
	playerID string
	form     Custom
	onResult ResultFunc
}

// Manager keeps the forms waiting for an answer. Every form is resolved at
// most once: the pending entry is removed before its ResultFunc runs.
type Manager struct {
	sender Sender
	logger *zap.SugaredLogger

	mu      sync.Mutex
	pending map[string]pendingForm
}

// NewManager creates a Manager that delivers forms through sender.
func NewManager(sender Sender, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{
		sender:  sender,
		logger:  logger,
		pending: make(map[string]pendingForm),
	}
}

// Send registers f under a fresh form ID and delivers it to the player.
func (m *Manager) Send(playerID string, f Custom, onResult ResultFunc) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode form %q: %w", f.Title, err)
	}
	id := uuid.NewString()

	m.mu.Lock()
	m.pending[id] = pendingForm{playerID: playerID, form: f, onResult: onResult}
	m.mu.Unlock()

	if err := m.sender.SendForm(playerID, id, data); err != nil {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
		return fmt.Errorf("send form %s to %s: %w", id, playerID, err)
	}
	formsSent.Add(1)
	m.logger.Debugf("form %s (%q) sent to %s", id, f.Title, playerID)
	return nil
}

// Resolve delivers the answer to form formID of playerID. resp nil means the
// form was closed.
func (m *Manager) Resolve(playerID, formID string, resp *Response) error {
	m.mu.Lock()
	p, ok := m.pending[formID]
	if !ok || p.playerID != playerID {
		m.mu.Unlock()
		return fmt.Errorf("form %s from %s: %w", formID, playerID, ErrUnknownForm)
	}
	delete(m.pending, formID)
	m.mu.Unlock()

	if resp != nil {
		resp.form = &p.form
	}
	formsAnswered.Add(1)
	p.onResult(playerID, resp)
	return nil
}

// Forget drops the pending forms of a player without resolving them and
// returns how many were dropped.
func (m *Manager) Forget(playerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, p := range m.pending {
		if p.playerID == playerID {
			delete(m.pending, id)
			n++
		}
	}
	formsDropped.Add(int64(n))
	return n
}

// Pending returns how many forms are waiting for playerID.
func (m *Manager) Pending(playerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.pending {
		if p.playerID == playerID {
			n++
		}
	}
	return n
}
