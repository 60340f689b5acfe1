package game

import "sync"

// Registry is the concurrent-safe store of live games and the single source
// of truth for their state. Each entry carries its own mutex so that
// read-modify-write sequences on one game serialize without blocking
// operations on other games.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	game    Game
	removed bool
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Add inserts or overwrites the entry for g.ID.
func (r *Registry) Add(g Game) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[g.ID]; ok {
		e.mu.Lock()
		e.game = g
		e.mu.Unlock()
		return
	}
	r.entries[g.ID] = &entry{game: g}
}

// Get returns a snapshot of the game with the given id. A miss is not an
// error; the second return reports presence.
func (r *Registry) Get(id string) (Game, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return Game{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Game{}, false
	}
	return e.game, true
}

// Remove deletes the entry with the given id, if present.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return
	}
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	delete(r.entries, id)
}

// All returns a snapshot of every stored game. Order is unspecified.
func (r *Registry) All() []Game {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	games := make([]Game, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			games = append(games, e.game)
		}
		e.mu.Unlock()
	}
	return games
}

// Len returns the number of stored games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Update runs fn against the current value under the entry's lock and writes
// the result back if fn succeeds. The returned snapshot is the post-update
// state. ok is false when the id does not resolve; fn is then never called.
// A concurrent reader never observes the game mid-transition.
func (r *Registry) Update(id string, fn func(*Game) error) (g Game, ok bool, err error) {
	r.mu.RLock()
	e, present := r.entries[id]
	r.mu.RUnlock()
	if !present {
		return Game{}, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Game{}, false, nil
	}

	updated := e.game
	if err := fn(&updated); err != nil {
		return Game{}, true, err
	}
	e.game = updated
	return updated, true, nil
}

// Take is Update followed by removal of the entry, performed atomically:
// if fn succeeds the final state is returned and the entry is gone. Lock
// order is registry then entry, matching Add and Remove.
func (r *Registry) Take(id string, fn func(*Game) error) (g Game, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, present := r.entries[id]
	if !present {
		return Game{}, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Game{}, false, nil
	}

	updated := e.game
	if err := fn(&updated); err != nil {
		return Game{}, true, err
	}
	e.game = updated
	e.removed = true
	delete(r.entries, id)
	return updated, true, nil
}
