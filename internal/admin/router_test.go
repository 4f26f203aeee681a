package admin_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/cmdblock-server/internal/admin"
	"github.com/annelo/cmdblock-server/internal/commandblock"
	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/playermanager"
)

type fakeBlocks struct {
	entries []commandblock.Entry
	listed  int
}

func (f *fakeBlocks) Entries() []commandblock.Entry {
	f.listed++
	return f.entries
}

func (f *fakeBlocks) Get(pos cube.Pos) (commandblock.Record, bool) {
	for _, e := range f.entries {
		if e.Pos == pos {
			return e.Record, true
		}
	}
	return commandblock.Record{}, false
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter(t *testing.T) {
	players := playermanager.NewPlayerManager()
	require.NoError(t, players.AddPlayer("id-1", "Alice", cube.Pos{World: "overworld", Y: 65}))
	blocks := &fakeBlocks{entries: []commandblock.Entry{{
		Pos:    cube.Pos{World: "overworld", X: 1, Y: 2, Z: 3},
		Record: commandblock.Record{Command: "say hi", Mode: commandblock.Chain, NeedsRedstone: true},
	}}}
	h := admin.NewRouter(admin.Deps{
		CommandBlocks: blocks,
		Players:       players,
		WebSocket: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	})

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, h, "/api/commandblocks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"position":{"world":"overworld","x":1,"y":2,"z":3},
		"record":{"command":"say hi","mode":"chain","conditional":false,"needs_redstone":true}}]`, rec.Body.String())

	require.Equal(t, 1, blocks.listed)

	rec = get(t, h, "/api/commandblocks/overworld:1:2:3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"position":{"world":"overworld","x":1,"y":2,"z":3},
		"record":{"command":"say hi","mode":"chain","conditional":false,"needs_redstone":true}}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/commandblocks/overworld:0:0:0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/commandblocks/nope").Code)
	assert.Equal(t, 1, blocks.listed, "single lookups do not list the registry")

	rec = get(t, h, "/api/players")
	require.Equal(t, http.StatusOK, rec.Code)
	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Alice", views[0]["name"])

	rec = get(t, h, "/debug/vars")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "memstats")

	assert.Equal(t, http.StatusTeapot, get(t, h, "/ws").Code)
}

func TestRouter_OptionalRoutes(t *testing.T) {
	h := admin.NewRouter(admin.Deps{})
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/commandblocks").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/players").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}
