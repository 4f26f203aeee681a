package commandblock

import (
	"sort"
	"sync"

	"github.com/annelo/cmdblock-server/internal/cube"
)

// Entry is a record together with its position.
type Entry struct {
	Pos    cube.Pos `json:"position"`
	Record Record   `json:"record"`
}

// Registry maps block positions to command block records. Writes happen on
// the game loop; the lock covers readers such as the admin API.
type Registry struct {
	mu      sync.RWMutex
	records map[cube.Pos]Record
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[cube.Pos]Record)}
}

// Init stores a default record at pos, replacing whatever was there.
func (r *Registry) Init(pos cube.Pos) Record {
	rec := DefaultRecord()
	r.Set(pos, rec)
	return rec
}

// Set stores rec at pos, replacing whatever was there.
func (r *Registry) Set(pos cube.Pos, rec Record) {
	r.mu.Lock()
	r.records[pos] = rec
	r.mu.Unlock()
}

// Get returns the record at pos.
func (r *Registry) Get(pos cube.Pos) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[pos]
	return rec, ok
}

// Lookup returns the record at pos, or the default record.
func (r *Registry) Lookup(pos cube.Pos) Record {
	if rec, ok := r.Get(pos); ok {
		return rec
	}
	return DefaultRecord()
}

// Remove deletes the record at pos and reports whether one existed.
func (r *Registry) Remove(pos cube.Pos) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[pos]
	delete(r.records, pos)
	return ok
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Entries returns all records ordered by world, then x, y, z.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.records))
	for pos, rec := range r.records {
		out = append(out, Entry{Pos: pos, Record: rec})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Pos, out[j].Pos
		if a.World != b.World {
			return a.World < b.World
		}
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return out
}
