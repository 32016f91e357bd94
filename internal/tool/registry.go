package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/conciergehq/concierge/internal/llm"
)

// Registry maintains the tools offered to the executor model.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register installs a tool. Returns an error if the name already exists or
// collides with the completion sentinel.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool: tool is required")
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return fmt.Errorf("tool: name is required")
	}
	if name == CompletionSentinel {
		return fmt.Errorf("tool: %s is reserved", CompletionSentinel)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool: %s already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns a registered tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// Specs renders the tool schemas offered to the model, with the completion
// sentinel appended so the executor can signal it is done.
func (r *Registry) Specs() []llm.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]llm.ToolSpec, 0, len(r.order)+1)
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	specs = append(specs, llm.ToolSpec{
		Name:        CompletionSentinel,
		Description: "Function should be called when we have completed ALL of the instructions.",
	})
	return specs
}

// Dispatch runs the named tool against raw JSON arguments and serializes the
// result for the tool-response message. Unknown tools and tool failures are
// reported back to the model as error payloads rather than aborting the run.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) string {
	t, ok := r.Lookup(name)
	if !ok {
		return errorPayload(fmt.Sprintf("Function '%s' not implemented.", name))
	}
	result, err := t.Call(ctx, args)
	if err != nil {
		return errorPayload(err.Error())
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(encoded)
}

func errorPayload(message string) string {
	encoded, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, message)
	}
	return string(encoded)
}

// Signatures returns "name(arg, ...)" keys for every registered tool, sorted
// by name. Used as stable identifiers in tool manifests and planner prompts.
func (r *Registry) Signatures() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name, t := range r.tools {
		out = append(out, signature(name, t.Parameters()))
	}
	sort.Strings(out)
	return out
}

func signature(name string, parameters map[string]any) string {
	props, _ := parameters["properties"].(map[string]any)
	if len(props) == 0 {
		return name + "()"
	}
	args := make([]string, 0, len(props))
	for arg := range props {
		args = append(args, arg)
	}
	sort.Strings(args)
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}
