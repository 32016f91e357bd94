package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/llm"
	"github.com/conciergehq/concierge/internal/logbook"
	"github.com/conciergehq/concierge/internal/tool"
)

// ErrTurnLimit indicates the executor hit its turn cap before the model
// called the completion sentinel.
var ErrTurnLimit = errors.New("agent: executor exceeded turn limit")

const defaultMaxTurns = 50

// Executor drives the tool-calling loop against a plan.
type Executor struct {
	client   llm.Client
	model    string
	tools    *tool.Registry
	log      *logbook.Scoped
	notify   Notifier
	maxTurns int
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// ExecutorWithLogbook records executor progress in the run log.
func ExecutorWithLogbook(log *logbook.Logbook) ExecutorOption {
	return func(e *Executor) {
		if log != nil {
			e.log = log.Scoped("executor")
		}
	}
}

// ExecutorWithNotifier streams executor events to the provided sink.
func ExecutorWithNotifier(notify Notifier) ExecutorOption {
	return func(e *Executor) {
		if notify != nil {
			e.notify = notify
		}
	}
}

// ExecutorWithMaxTurns caps the loop. Values <= 0 keep the default.
func ExecutorWithMaxTurns(limit int) ExecutorOption {
	return func(e *Executor) {
		if limit > 0 {
			e.maxTurns = limit
		}
	}
}

// NewExecutor wires an executor to a chat client, model, and tool registry.
func NewExecutor(client llm.Client, model string, tools *tool.Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:   client,
		model:    model,
		tools:    tools,
		notify:   func(string, any) {},
		maxTurns: defaultMaxTurns,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// ExecutePlan runs the chat loop until the model's first tool call is the
// completion sentinel. Each assistant turn may carry tool calls, which are
// dispatched in order; responses are fed back as tool messages. Turns with
// no tool calls simply continue the conversation. Returns the full message
// history, including the system prompt.
func (e *Executor) ExecutePlan(ctx context.Context, plan string) ([]llm.Message, error) {
	if e.client == nil {
		return nil, fmt.Errorf("agent: executor client is required")
	}
	if e.tools == nil {
		return nil, fmt.Errorf("agent: tool registry is required")
	}
	e.notify(events.TypeStatus, map[string]string{"content": "Executing plan..."})
	e.log.Info("executing plan with %s", e.model)

	specs := e.tools.Specs()
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: strings.ReplaceAll(ExecutorPrompt, "{plan}", plan)},
	}

	for turn := 0; turn < e.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return messages, err
		}
		resp, err := e.client.Complete(ctx, llm.Request{
			Model:          e.model,
			Messages:       messages,
			Tools:          specs,
			SingleToolCall: true,
		})
		if err != nil {
			e.log.Error("completion failed on turn %d: %v", turn, err)
			return messages, fmt.Errorf("agent: execute plan: %w", err)
		}
		messages = append(messages, resp)
		e.notify(events.TypeAssistant, map[string]string{"content": resp.Content})

		if len(resp.ToolCalls) > 0 && resp.ToolCalls[0].Name == tool.CompletionSentinel {
			e.log.Info("instructions complete after %d turn(s)", turn+1)
			e.notify(events.TypeStatus, map[string]string{"content": "Processing complete."})
			return messages, nil
		}
		if len(resp.ToolCalls) == 0 {
			continue
		}

		for _, call := range resp.ToolCalls {
			e.notify(events.TypeToolCall, map[string]string{
				"function":  call.Name,
				"arguments": call.Arguments,
			})
			e.log.Info("tool call %s %s", call.Name, call.Arguments)
			if !llm.ValidArguments(call) {
				// Unparseable arguments are skipped; the model sees the
				// dangling call and retries on the next turn.
				e.log.Warn("discarding %s: malformed arguments", call.Name)
				continue
			}
			args := json.RawMessage(call.Arguments)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			output := e.tools.Dispatch(ctx, call.Name, args)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    output,
			})
			e.notify(events.TypeToolResponse, map[string]string{
				"function": call.Name,
				"response": output,
			})
		}
	}
	e.log.Error("turn limit reached (%d)", e.maxTurns)
	return messages, ErrTurnLimit
}
