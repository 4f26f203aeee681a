package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/cmdblock-server/internal/form"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

func settingsRequest(t *testing.T) *game.FormRequest {
	t.Helper()
	data, err := json.Marshal(form.NewCustom("Command Block Settings",
		form.Input{Text: "Command:", Placeholder: "e.g., say Hello, World!", Default: "say hi"},
		form.Dropdown{Text: "Block Type:", Options: []string{"Impulse", "Chain", "Repeat"}},
		form.Toggle{Text: "Conditional?"},
		form.Toggle{Text: "Needs Redstone?", Default: true},
	))
	require.NoError(t, err)
	return &game.FormRequest{FormId: "f-1", Form: data}
}

func TestFormEditor_EditAndSubmit(t *testing.T) {
	ed, err := newFormEditor(settingsRequest(t))
	require.NoError(t, err)

	ed.backspace()
	ed.backspace()
	ed.typeRune('y')
	ed.typeRune('o')

	ed.move(1)
	ed.cycle(-1)
	ed.typeRune('x')

	ed.move(1)
	ed.cycle(1)

	ed.move(2)

	msg := ed.submit()
	require.NotNil(t, msg.FormResponse)
	assert.Equal(t, "f-1", msg.FormResponse.FormId)
	assert.False(t, msg.FormResponse.Cancelled)
	assert.JSONEq(t, `["say yo", 2, true, true]`, string(msg.FormResponse.Data))
	assert.Equal(t, 0, ed.selected, "selection wraps around")
}

func TestFormEditor_CancelAndLines(t *testing.T) {
	ed, err := newFormEditor(settingsRequest(t))
	require.NoError(t, err)

	lines := ed.lines()
	require.Len(t, lines, 6)
	assert.Equal(t, "== Command Block Settings ==", lines[0])
	assert.Equal(t, "> Command: [say hi]", lines[1])
	assert.Equal(t, "  Block Type: <Impulse> Chain Repeat", lines[2])
	assert.Equal(t, "  Conditional? [ ]", lines[3])
	assert.Equal(t, "  Needs Redstone? [x]", lines[4])

	msg := ed.cancel()
	assert.True(t, msg.FormResponse.Cancelled)
	assert.Empty(t, msg.FormResponse.Data)

	_, err = newFormEditor(&game.FormRequest{FormId: "bad", Form: json.RawMessage(`[`)})
	assert.Error(t, err)
}
