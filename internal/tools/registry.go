package tools

import (
	"fmt"

	"github.com/sells-group/lead-engine/pkg/anthropic"
)

// Registry is the read-only tool catalog. It is built once at startup and
// safe for concurrent use without locking.
type Registry struct {
	tools map[ToolName]Tool
	order []ToolName
}

// NewRegistry registers the full catalog backed by deps. It panics if a
// tool is registered twice, a catalog name has no implementation, or an
// implementation reports a name outside the catalog: all are programming
// errors caught at startup.
func NewRegistry(deps Deps) *Registry {
	return newRegistry(
		&placesTool{deps: deps},
		&fanoutTool{deps: deps},
		&perplexityBusinessesTool{deps: deps},
		&emailTool{deps: deps},
		&websiteTool{deps: deps},
		&scoreTool{deps: deps},
		&competitorsTool{deps: deps},
		&verifyTool{deps: deps},
	)
}

func newRegistry(impls ...Tool) *Registry {
	r := &Registry{tools: make(map[ToolName]Tool, len(impls))}
	known := make(map[ToolName]bool, len(AllNames))
	for _, n := range AllNames {
		known[n] = true
	}
	for _, t := range impls {
		name := t.Spec().Name
		if !known[name] {
			panic(fmt.Sprintf("tools: %q is not in the catalog", name))
		}
		if _, dup := r.tools[name]; dup {
			panic(fmt.Sprintf("tools: %q registered twice", name))
		}
		r.tools[name] = t
	}
	for _, n := range AllNames {
		if _, ok := r.tools[n]; !ok {
			panic(fmt.Sprintf("tools: %q has no implementation", n))
		}
		r.order = append(r.order, n)
	}
	return r
}

// Get returns the tool registered under name.
func (r *Registry) Get(name ToolName) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns the catalog entries enabled under opts, in catalog order.
func (r *Registry) Specs(opts Options) []Spec {
	out := make([]Spec, 0, len(r.order))
	for _, n := range r.order {
		if !opts.Enabled(n) {
			continue
		}
		out = append(out, r.tools[n].Spec())
	}
	return out
}

// Definitions renders the enabled catalog as model tool definitions.
func (r *Registry) Definitions(opts Options) []anthropic.ToolDefinition {
	specs := r.Specs(opts)
	out := make([]anthropic.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		props := make(map[string]any, len(s.InputSchema.Properties))
		for k, p := range s.InputSchema.Properties {
			props[k] = p
		}
		out = append(out, anthropic.ToolDefinition{
			Name:        string(s.Name),
			Description: s.Description,
			Properties:  props,
			Required:    s.InputSchema.Required,
		})
	}
	return out
}
