// Package plugin provides a registry of call engines (microphones,
// recognizers, synthesizers and chat relays) selectable by name from
// configuration. Engine packages register themselves from init().
package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Engine kinds.
const (
	KindMic = "mic"
	KindSTT = "stt"
	KindTTS = "tts"
	KindLLM = "llm"
)

// ports names the interface each kind's engines implement.
var ports = map[string]string{
	KindMic: "meter.Device",
	KindSTT: "stt.Engine",
	KindTTS: "tts.Engine",
	KindLLM: "llm.Relay",
}

// Kinds returns the engine kinds in the order a call wires them.
func Kinds() []string {
	return []string{KindMic, KindSTT, KindTTS, KindLLM}
}

// Port returns the interface engines of kind implement, or "" for an
// unknown kind.
func Port(kind string) string {
	return ports[kind]
}

// Factory builds an engine from its config section. The value must
// implement the port of the kind it is registered under.
type Factory func(cfg map[string]any) (any, error)

// Plugin describes one registered engine.
type Plugin struct {
	Kind        string
	Name        string
	Factory     Factory
	Description string
	Version     string
	Config      map[string]any // config keys and their meaning or default
}

// Registry maps kind and name to engines.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]map[string]*Plugin
}

// NewRegistry returns a registry that accepts the four engine kinds.
func NewRegistry() *Registry {
	r := &Registry{engines: make(map[string]map[string]*Plugin, len(ports))}
	for kind := range ports {
		r.engines[kind] = make(map[string]*Plugin)
	}
	return r
}

var engines = NewRegistry()

// Register adds p to the process-wide registry. Registration happens from
// init, so a bad or duplicate engine panics.
func Register(p *Plugin) {
	if err := engines.Register(p); err != nil {
		panic(err)
	}
}

// Lookup returns the named engine of kind from the process-wide registry.
func Lookup(kind, name string) (*Plugin, bool) {
	return engines.Lookup(kind, name)
}

// List returns the engines of kind, or every engine when kind is empty.
func List(kind string) []*Plugin {
	return engines.List(kind)
}

// Register adds p. The kind must be one of Kinds and the name unused.
func (r *Registry) Register(p *Plugin) error {
	switch {
	case p == nil || p.Factory == nil:
		return fmt.Errorf("engine registration needs a factory")
	case p.Name == "":
		return fmt.Errorf("%s engine registered without a name", p.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	byName, ok := r.engines[p.Kind]
	if !ok {
		return fmt.Errorf("engine %q has unknown kind %q (want one of %v)", p.Name, p.Kind, Kinds())
	}
	if prev, dup := byName[p.Name]; dup {
		return fmt.Errorf("%s engine %q registered twice (versions %s and %s)", p.Kind, p.Name, prev.Version, p.Version)
	}
	byName[p.Name] = p
	return nil
}

// Lookup returns the named engine of kind.
func (r *Registry) Lookup(kind, name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.engines[kind][name]
	return p, ok
}

// List returns the engines of kind sorted by name. An empty kind lists
// every engine, grouped in Kinds order.
func (r *Registry) List(kind string) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := Kinds()
	if kind != "" {
		order = []string{kind}
	}
	var out []*Plugin
	for _, k := range order {
		start := len(out)
		for _, p := range r.engines[k] {
			out = append(out, p)
		}
		group := out[start:]
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })
	}
	return out
}

// Names returns the names of the engines of kind.
func (r *Registry) Names(kind string) []string {
	var names []string
	for _, p := range r.List(kind) {
		names = append(names, p.Name)
	}
	return names
}

// create builds the named engine and checks that it implements T, the
// port of kind.
func create[T any](r *Registry, kind, name string, cfg map[string]any) (T, error) {
	var zero T
	p, ok := r.Lookup(kind, name)
	if !ok {
		return zero, fmt.Errorf("no %s engine named %q (available: %v)", kind, name, r.Names(kind))
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	instance, err := p.Factory(cfg)
	if err != nil {
		return zero, fmt.Errorf("create %s/%s: %w", kind, name, err)
	}
	engine, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%s/%s returned %T, which is not a %s", kind, name, instance, ports[kind])
	}
	return engine, nil
}
