// Package agent implements the planner/executor agent pair. The planner
// turns a task brief plus tool summaries into a step-by-step markdown plan;
// the executor walks that plan through the chat tool-calling loop until the
// model signals completion.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/llm"
	"github.com/conciergehq/concierge/internal/logbook"
)

// Notifier receives typed progress events from an agent. Implementations
// must be safe to call from the agent goroutine.
type Notifier func(eventType string, payload any)

// Planner generates execution plans with a reasoning model.
type Planner struct {
	client llm.Client
	model  string
	log    *logbook.Scoped
	notify Notifier
}

// PlannerOption customizes a Planner.
type PlannerOption func(*Planner)

// PlannerWithLogbook records planner progress in the run log.
func PlannerWithLogbook(log *logbook.Logbook) PlannerOption {
	return func(p *Planner) {
		if log != nil {
			p.log = log.Scoped("planner")
		}
	}
}

// PlannerWithNotifier streams planner events to the provided sink.
func PlannerWithNotifier(notify Notifier) PlannerOption {
	return func(p *Planner) {
		if notify != nil {
			p.notify = notify
		}
	}
}

// NewPlanner wires a planner to a chat client and model.
func NewPlanner(client llm.Client, model string, opts ...PlannerOption) *Planner {
	p := &Planner{
		client: client,
		model:  model,
		notify: func(string, any) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// BuildPlan renders the planning prompt with tool summaries and the task
// text, then asks the planner model for a markdown plan. Reasoning models
// reject system messages, so the prompt goes out as a single user turn.
func (p *Planner) BuildPlan(ctx context.Context, task string, toolSummaries map[string]string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("agent: planner client is required")
	}
	p.notify(events.TypeStatus, map[string]string{"content": "Generating plan..."})
	p.log.Info("building plan with %s (%d tools)", p.model, len(toolSummaries))

	prompt := strings.ReplaceAll(PlannerPrompt, "{functions}", formatToolSummaries(toolSummaries))
	prompt = strings.ReplaceAll(prompt, "{text}", task)
	prompt += "\n\nPlease provide the next steps in your plan."

	resp, err := p.client.Complete(ctx, llm.Request{
		Model:    p.model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		p.log.Error("plan generation failed: %v", err)
		return "", fmt.Errorf("agent: build plan: %w", err)
	}
	plan := resp.Content
	if strings.TrimSpace(plan) == "" {
		return "", fmt.Errorf("agent: planner returned an empty plan")
	}
	p.notify(events.TypePlan, map[string]string{"content": plan})
	p.log.Info("plan generated (%d bytes)", len(plan))
	return plan, nil
}

func formatToolSummaries(summaries map[string]string) string {
	keys := make([]string, 0, len(summaries))
	for key := range summaries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %s", key, summaries[key]))
	}
	return strings.Join(lines, "\n    ")
}
