package task

import (
	"fmt"

	"github.com/tinythings/alfad/internal/config"
)

// Map is the fixed set of task contexts for one boot. The original builds
// this once via Box::leak so every driver can hold a plain, never-freed
// reference into it; Go's garbage collector makes that unnecessary, but the
// invariant it encodes survives: the map's key set never changes after
// construction, even though a config drift watcher may later warn that the
// on-disk directory no longer matches it.
type Map struct {
	order []string
	byName map[string]*Context
}

// NewMap builds a context map from an ordered, marker-synthesized config
// list (the output of ordering.TopologicalSort). The order is preserved for
// spawn order; lookups are by name.
func NewMap(configs []config.TaskConfig) *Map {
	m := &Map{
		order:  make([]string, 0, len(configs)),
		byName: make(map[string]*Context, len(configs)),
	}
	for _, cfg := range configs {
		m.order = append(m.order, cfg.Name)
		m.byName[cfg.Name] = NewContext(cfg)
	}
	return m
}

// Get looks up a task context by name.
func (m *Map) Get(name string) (*Context, bool) {
	c, ok := m.byName[name]
	return c, ok
}

// MustGet looks up a task context by name, panicking if absent. Only safe
// to use for names known to come from this same Map's own config set (e.g.
// a task's own With/After list was already validated against it).
func (m *Map) MustGet(name string) *Context {
	c, ok := m.byName[name]
	if !ok {
		panic(fmt.Sprintf("task %q not present in context map", name))
	}
	return c
}

// All returns every context in spawn order.
func (m *Map) All() []*Context {
	out := make([]*Context, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.byName[name])
	}
	return out
}

// Names returns the spawn-ordered name list.
func (m *Map) Names() []string {
	return append([]string(nil), m.order...)
}

// Len reports the fixed number of tasks tracked by this map.
func (m *Map) Len() int { return len(m.order) }
