package workflow

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
	"github.com/goccy/go-yaml"
)

//go:embed defaults
var defaultsFS embed.FS

// Policy decides whether a failed step blocks the rest of the workflow.
type Policy string

const (
	// PolicyHard aborts the remaining steps when the step fails.
	PolicyHard Policy = "hard"
	// PolicyAdvisory records the failure and continues.
	PolicyAdvisory Policy = "advisory"
)

// Step is one position in a workflow.
type Step struct {
	Name   string         `json:"name" yaml:"name"`
	Tool   string         `json:"tool,omitempty" yaml:"tool,omitempty"`
	Policy Policy         `json:"policy,omitempty" yaml:"policy,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// ToolName returns the registry name of the step's tool. It defaults to the step name.
func (s Step) ToolName() string {
	if s.Tool != "" {
		return s.Tool
	}
	return s.Name
}

// EffectivePolicy returns the step policy, hard when unset.
func (s Step) EffectivePolicy() Policy {
	if s.Policy == "" {
		return PolicyHard
	}
	return s.Policy
}

// Definition is a named, fixed sequence of steps.
type Definition struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Params      map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Steps       []Step         `json:"steps" yaml:"steps"`
}

// Validate checks the static shape of the definition. Tool names and
// parameters are checked against a registry by Engine.Prepare.
func (d Definition) Validate() error {
	var errs []error
	if err := taskutil.ValidateIdentifier("workflow", d.Name); err != nil {
		errs = append(errs, err)
	}
	if len(d.Steps) == 0 {
		errs = append(errs, errors.New("workflow has no steps"))
	}
	seen := make(map[string]struct{}, len(d.Steps))
	for i, step := range d.Steps {
		if err := taskutil.ValidateIdentifier("step", step.Name); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
			continue
		}
		if step.Name == ConnectStep {
			errs = append(errs, fmt.Errorf("step name %q is reserved", ConnectStep))
		}
		if _, dup := seen[step.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate step name: %s", step.Name))
		}
		seen[step.Name] = struct{}{}
		switch step.EffectivePolicy() {
		case PolicyHard, PolicyAdvisory:
		default:
			errs = append(errs, fmt.Errorf("step %s: unknown policy %q (want %s or %s)", step.Name, step.Policy, PolicyHard, PolicyAdvisory))
		}
	}
	if len(errs) > 0 {
		return &task.ConfigurationError{Subject: "workflow " + d.Name, Err: errors.Join(errs...)}
	}
	return nil
}

// Catalog holds the workflow definitions available to a run.
type Catalog struct {
	defs map[string]Definition
}

// LoadCatalog merges the embedded default workflows with overrides keyed by
// workflow name. Override params merge into the defaults key by key; override
// steps replace the default steps. Names without a default define a new workflow.
func LoadCatalog(overrides map[string]any) (*Catalog, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	raw := make(map[string]map[string]any, len(defaults)+len(overrides))
	for name, def := range defaults {
		raw[name] = def
	}
	for name, override := range overrides {
		overrideMap, ok := override.(map[string]any)
		if !ok && override != nil {
			return nil, task.Configf("workflow "+name, "expected a mapping, got %T", override)
		}
		if base, exists := raw[name]; exists {
			raw[name] = mergeMaps(base, overrideMap)
			continue
		}
		raw[name] = copyMap(overrideMap)
	}

	c := &Catalog{defs: make(map[string]Definition, len(raw))}
	var errs []error
	for name, values := range raw {
		def, err := task.DecodeConfig[Definition](values)
		if err != nil {
			errs = append(errs, task.Configf("workflow "+name, "%v", err))
			continue
		}
		def.Name = name
		if err := def.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		c.defs[name] = def
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// Lookup returns the named definition.
func (c *Catalog) Lookup(name string) (Definition, error) {
	def, ok := c.defs[name]
	if !ok {
		return Definition{}, task.Configf("workflow "+name, "unknown workflow (available: %s)", strings.Join(c.Names(), ", "))
	}
	return def, nil
}

// Names returns the workflow names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definitions returns every definition sorted by name.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.defs))
	for _, name := range c.Names() {
		out = append(out, c.defs[name])
	}
	return out
}

func loadDefaults() (map[string]map[string]any, error) {
	entries, err := defaultsFS.ReadDir("defaults")
	if err != nil {
		return nil, fmt.Errorf("read default workflows: %w", err)
	}
	out := make(map[string]map[string]any, len(entries))
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".yaml")
		if entry.IsDir() || !ok {
			continue
		}
		data, err := defaultsFS.ReadFile(path.Join("defaults", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read defaults for %s: %w", name, err)
		}
		var values map[string]any
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parse defaults for %s: %w", name, err)
		}
		if values == nil {
			values = map[string]any{}
		}
		out[name] = values
	}
	return out, nil
}

func mergeMaps(base, override map[string]any) map[string]any {
	out := copyMap(base)
	for key, value := range override {
		overrideMap, ok := value.(map[string]any)
		if !ok {
			out[key] = value
			continue
		}

		baseMap, ok := out[key].(map[string]any)
		if !ok {
			out[key] = copyMap(overrideMap)
			continue
		}
		out[key] = mergeMaps(baseMap, overrideMap)
	}
	return out
}

func copyMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}
