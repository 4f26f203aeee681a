// Package admin serves the operator HTTP endpoints.
package admin

import (
	"encoding/json"
	"expvar"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/annelo/cmdblock-server/internal/commandblock"
	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/playermanager"
)

// CommandBlocks lists and looks up command block records.
type CommandBlocks interface {
	Entries() []commandblock.Entry
	Get(pos cube.Pos) (commandblock.Record, bool)
}

// Players lists online players.
type Players interface {
	GetAllPlayers() []playermanager.PlayerData
}

// Deps are the sources the router reads from. Nil fields disable their routes.
type Deps struct {
	CommandBlocks CommandBlocks
	Players       Players
	// WebSocket, when set, is mounted at /ws.
	WebSocket http.Handler
	Logger    *zap.SugaredLogger
}

type playerView struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Position cube.Pos `json:"position"`
}

// NewRouter wires the admin endpoints into a chi router.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, log, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/debug/vars", expvar.Handler())

	if d.CommandBlocks != nil {
		r.Route("/api/commandblocks", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, log, http.StatusOK, d.CommandBlocks.Entries())
			})
			r.Get("/{pos}", func(w http.ResponseWriter, r *http.Request) {
				pos, err := cube.ParsePos(chi.URLParam(r, "pos"))
				if err != nil {
					writeJSON(w, log, http.StatusBadRequest, map[string]string{"error": err.Error()})
					return
				}
				if rec, ok := d.CommandBlocks.Get(pos); ok {
					writeJSON(w, log, http.StatusOK, commandblock.Entry{Pos: pos, Record: rec})
					return
				}
				writeJSON(w, log, http.StatusNotFound, map[string]string{"error": "no command block at " + pos.String()})
			})
		})
	}

	if d.Players != nil {
		r.Get("/api/players", func(w http.ResponseWriter, r *http.Request) {
			players := d.Players.GetAllPlayers()
			out := make([]playerView, 0, len(players))
			for _, p := range players {
				out = append(out, playerView{ID: p.ID, Name: p.Name, Position: p.Position})
			}
			writeJSON(w, log, http.StatusOK, out)
		})
	}

	if d.WebSocket != nil {
		r.Handle("/ws", d.WebSocket)
	}
	return r
}

func writeJSON(w http.ResponseWriter, log *zap.SugaredLogger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnw("write admin response", "error", err)
	}
}
