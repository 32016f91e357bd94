package tool

import (
	"context"
	"fmt"

	"github.com/conciergehq/concierge/internal/llm"
)

const describeMaxTokens = 200

const describePrompt = `
You are a helpful assistant responsible for creating concise
descriptions of functions.

You will be given a function signature and a brief description of the
function's purpose. You should return a concise summary of what
the function does (not how it does it) that is understandable
to a general audience.

Function Signature:
{text}
`

// Summaries asks the utility model for an audience-friendly one-line
// description of every registered tool, keyed by signature. These summaries
// feed the planner prompt so it knows what the executor can do.
func (r *Registry) Summaries(ctx context.Context, client llm.Client, model string) (map[string]string, error) {
	r.mu.RLock()
	tools := make(map[string]Tool, len(r.tools))
	for name, t := range r.tools {
		tools[name] = t
	}
	r.mu.RUnlock()

	out := make(map[string]string, len(tools))
	for name, t := range tools {
		key := signature(name, t.Parameters())
		summary, err := llm.SimpleCall(ctx, client, model, describePrompt, t.Description(), describeMaxTokens)
		if err != nil {
			return nil, fmt.Errorf("tool: describe %s: %w", name, err)
		}
		out[key] = summary
	}
	return out, nil
}
