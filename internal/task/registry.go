package task

import (
	"fmt"
	"slices"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

// Constructor creates a Tool.
type Constructor func() Tool

// Registry maps tool names to constructors. It is built once at start-up
// and only read afterwards.
type Registry struct {
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a tool. The constructed tool must report the same name.
func (r *Registry) Register(name string, ctor Constructor) error {
	if err := taskutil.ValidateIdentifier("tool", name); err != nil {
		return err
	}
	if ctor == nil {
		return fmt.Errorf("tool %q has no constructor", name)
	}
	if _, exists := r.ctors[name]; exists {
		return fmt.Errorf("duplicate tool name: %s", name)
	}
	if got := ctor().Name(); got != name {
		return fmt.Errorf("tool registered as %q reports name %q", name, got)
	}
	r.ctors[name] = ctor
	return nil
}

// Lookup returns a new instance of the named tool.
func (r *Registry) Lookup(name string) (Tool, error) {
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, Configf("tool "+name, "unknown tool (available: %v)", r.Names())
	}
	return ctor(), nil
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Tools returns one instance of every registered tool, sorted by name.
func (r *Registry) Tools() []Tool {
	names := r.Names()
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.ctors[name]())
	}
	return tools
}
