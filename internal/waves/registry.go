package waves

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the registered waves for one deployment. It is created by
// the composition root with a DefinitionStore and handed to every component
// that needs wave lookups; all methods are safe for concurrent use.
//
// Register persists through the store before touching the in-memory set, so
// a failed write leaves both the file and the registry unchanged.
type Registry struct {
	mu     sync.RWMutex
	waves  map[int]Wave
	store  DefinitionStore
	logger *slog.Logger
}

// NewRegistry builds a registry from the persisted definitions. When the
// store has nothing persisted yet the standard three-wave layout is seeded
// in memory; it is written out on the first Register call.
func NewRegistry(store DefinitionStore, logger *slog.Logger) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("definition store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		waves:  make(map[int]Wave),
		store:  store,
		logger: logger,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload rebuilds the in-memory set from the store, discarding any
// unpersisted state. Tests use it to restore a known baseline.
func (r *Registry) Reload() error {
	defs, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("load wave definitions: %w", err)
	}
	if len(defs) == 0 {
		defs = DefaultWaves()
		r.logger.Info("no wave definitions persisted, seeding defaults",
			slog.Int("count", len(defs)))
	}

	waves := make(map[int]Wave, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("invalid wave definition: %w", err)
		}
		if prev, exists := waves[def.Number]; exists {
			return fmt.Errorf("duplicate definitions for wave %d (%s and %s)",
				def.Number, prev.Name, def.Name)
		}
		waves[def.Number] = def
	}

	r.mu.Lock()
	r.waves = waves
	r.mu.Unlock()
	return nil
}

// Register adds a wave definition, replacing any previous definition with
// the same number. The full set is persisted first; the in-memory registry
// only changes once the write succeeded.
func (r *Registry) Register(w Wave) error {
	if err := w.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Wave, 0, len(r.waves)+1)
	for number, def := range r.waves {
		if number != w.Number {
			next = append(next, def)
		}
	}
	next = append(next, w)

	if err := r.store.Save(next); err != nil {
		return fmt.Errorf("persist wave definitions: %w", err)
	}

	_, replaced := r.waves[w.Number]
	r.waves[w.Number] = w

	r.logger.Info("wave registered",
		slog.Int("number", w.Number),
		slog.String("name", w.Name),
		slog.String("prefix", w.Prefix),
		slog.Bool("replaced", replaced))
	return nil
}

// Get returns the wave with the given number.
func (r *Registry) Get(number int) (Wave, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, exists := r.waves[number]
	if !exists {
		return Wave{}, &UnknownWaveError{Number: number, Available: r.numbersLocked()}
	}
	return w, nil
}

// Has reports whether a wave with the given number is registered.
func (r *Registry) Has(number int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.waves[number]
	return exists
}

// Numbers returns the registered wave numbers in ascending order.
func (r *Registry) Numbers() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.numbersLocked()
}

// List returns all registered waves ordered by wave number.
func (r *Registry) List() []Wave {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Wave, 0, len(r.waves))
	for _, number := range r.numbersLocked() {
		list = append(list, r.waves[number])
	}
	return list
}

// Count returns the number of registered waves.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.waves)
}

// numbersLocked assumes at least a read lock is held.
func (r *Registry) numbersLocked() []int {
	numbers := make([]int, 0, len(r.waves))
	for number := range r.waves {
		numbers = append(numbers, number)
	}
	sort.Ints(numbers)
	return numbers
}
