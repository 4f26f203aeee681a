// Package permission decides which named capabilities a player holds.
//
// Players are identified by the name they joined with. The server does not
// authenticate names, so grants are only as trustworthy as the network in
// front of it.
package permission

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Wildcard granted to a player gives every capability.
const Wildcard = "*"

// Checker answers capability questions for a player, identified by name.
type Checker interface {
	HasCapability(player, capability string) bool
}

// Config is the on-disk permission layout.
type Config struct {
	// Defaults are held by every player unless revoked for them.
	Defaults []string `yaml:"defaults"`
	// Operators hold every capability and cannot be revoked.
	Operators []string `yaml:"operators"`
	// Players maps a player name to extra capabilities.
	Players map[string][]string `yaml:"players"`
}

type set map[string]struct{}

// Store is an in-memory Checker seeded from a Config and changed at runtime by
// Grant and Revoke. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	defaults  set
	operators set
	grants    map[string]set
	revoked   map[string]set
}

// NewStore builds a store from cfg.
func NewStore(cfg Config) *Store {
	s := &Store{
		defaults:  make(set),
		operators: make(set),
		grants:    make(map[string]set),
		revoked:   make(map[string]set),
	}
	for _, c := range cfg.Defaults {
		s.defaults[c] = struct{}{}
	}
	for _, op := range cfg.Operators {
		s.operators[normalize(op)] = struct{}{}
	}
	for name, caps := range cfg.Players {
		for _, c := range caps {
			s.grantLocked(normalize(name), c)
		}
	}
	return s
}

// LoadFile reads a YAML permission file. A missing file yields an empty store.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(Config{}), nil
		}
		return nil, fmt.Errorf("read permissions %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse permissions %s: %w", path, err)
	}
	return NewStore(cfg), nil
}

// HasCapability implements Checker.
func (s *Store) HasCapability(player, capability string) bool {
	name := normalize(player)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.operators[name]; ok {
		return true
	}
	if _, ok := s.revoked[name][capability]; ok {
		return false
	}
	if g := s.grants[name]; g != nil {
		if _, ok := g[capability]; ok {
			return true
		}
		if _, ok := g[Wildcard]; ok {
			return true
		}
	}
	_, ok := s.defaults[capability]
	return ok
}

// Grant gives a capability to a player and lifts a previous revocation.
func (s *Store) Grant(player, capability string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := normalize(player)
	delete(s.revoked[name], capability)
	s.grantLocked(name, capability)
}

// Revoke takes a capability from a player, including one held by default.
func (s *Store) Revoke(player, capability string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := normalize(player)
	delete(s.grants[name], capability)
	if s.revoked[name] == nil {
		s.revoked[name] = make(set)
	}
	s.revoked[name][capability] = struct{}{}
}

// Capabilities lists the explicit grants and non-revoked defaults of a player.
func (s *Store) Capabilities(player string) []string {
	name := normalize(player)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(set)
	for c := range s.defaults {
		if _, ok := s.revoked[name][c]; !ok {
			out[c] = struct{}{}
		}
	}
	for c := range s.grants[name] {
		out[c] = struct{}{}
	}
	caps := make([]string, 0, len(out))
	for c := range out {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return caps
}

// IsOperator reports whether player is an operator.
func (s *Store) IsOperator(player string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.operators[normalize(player)]
	return ok
}

func (s *Store) grantLocked(name, capability string) {
	if s.grants[name] == nil {
		s.grants[name] = make(set)
	}
	s.grants[name][capability] = struct{}{}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
