package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
)

// Registry is the static catalog of allowlisted operations. Descriptors are
// validated at registration; dispatch looks them up by name, and unknown names
// are rejected before any side effect.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Descriptor)}
}

// Register validates a descriptor, reflects its parameter schema, and adds it
// to the catalog. Duplicate names and incomplete descriptors are rejected.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || d.Name == "" {
		return fmt.Errorf("tool descriptor requires a name")
	}
	if d.Simulate == nil || d.Execute == nil {
		return fmt.Errorf("tool %q must provide both simulate and execute", d.Name)
	}
	if d.Params == nil {
		return fmt.Errorf("tool %q must declare a parameter prototype", d.Name)
	}
	if d.Category == "" || d.Sensitivity == "" {
		return fmt.Errorf("tool %q must declare category and sensitivity", d.Name)
	}
	if !d.EffectiveRisk().Valid() {
		return fmt.Errorf("tool %q resolves to an unknown risk level", d.Name)
	}

	reflector := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	d.schema = reflector.Reflect(d.Params)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %q is already registered", d.Name)
	}
	r.tools[d.Name] = d
	return nil
}

// Lookup returns the descriptor for a tool name.
func (r *Registry) Lookup(ctx context.Context, name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[name]
	if !ok {
		return nil, guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeValidation,
			fmt.Sprintf("tool %q is not in the allowlist", name), nil, "tool-lookup-001")
	}
	return d, nil
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Describe returns descriptors for the capability listing, sorted by name.
func (r *Registry) Describe() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidateParams checks params against the tool's reflected schema and returns
// every violation with a field path and reason.
func (r *Registry) ValidateParams(ctx context.Context, name string, params map[string]any) ([]ValidationIssue, error) {
	d, err := r.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return validateAgainstSchema(d.schema, params), nil
}

func validateAgainstSchema(schema *jsonschema.Schema, params map[string]any) []ValidationIssue {
	var issues []ValidationIssue

	for _, required := range schema.Required {
		v, ok := params[required]
		if !ok {
			issues = append(issues, ValidationIssue{Field: required, Reason: "required parameter is missing"})
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			issues = append(issues, ValidationIssue{Field: required, Reason: "required parameter is empty"})
		}
	}

	if schema.Properties == nil {
		return issues
	}

	for key, value := range params {
		prop, ok := schema.Properties.Get(key)
		if !ok {
			issues = append(issues, ValidationIssue{Field: key, Reason: "unknown parameter"})
			continue
		}
		if reason := typeMismatch(prop.Type, value); reason != "" {
			issues = append(issues, ValidationIssue{Field: key, Reason: reason})
		}
	}

	sort.Slice(issues, func(i, j int) bool { return issues[i].Field < issues[j].Field })
	return issues
}

func typeMismatch(schemaType string, value any) string {
	if value == nil {
		return ""
	}
	switch schemaType {
	case "string":
		if _, ok := value.(string); !ok {
			return "expected a string"
		}
	case "integer":
		switch v := value.(type) {
		case int, int32, int64:
		case float64:
			if v != float64(int64(v)) {
				return "expected an integer"
			}
		default:
			return "expected an integer"
		}
	case "number":
		switch value.(type) {
		case int, int32, int64, float32, float64:
		default:
			return "expected a number"
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return "expected a boolean"
		}
	}
	return ""
}
