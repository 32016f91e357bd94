// Package llm wraps the chat-completion API behind a small interface so the
// agents can be exercised against scripted clients in tests.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a single function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one turn of a chat conversation.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolSpec describes a callable function offered to the model. Parameters is
// a JSON schema object; nil means the function takes no arguments.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a single chat-completion call.
type Request struct {
	Model     string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int
	// SingleToolCall disables parallel tool calling so tool invocations
	// arrive one at a time.
	SingleToolCall bool
}

// Client performs chat completions.
type Client interface {
	Complete(ctx context.Context, req Request) (Message, error)
}

// PromptTextPlaceholder is substituted with the caller's text in simple
// one-shot prompts.
const PromptTextPlaceholder = "{text}"

// SimpleCall sends a single system message built from prompt, substituting
// {text}, and returns the trimmed response content.
func SimpleCall(ctx context.Context, client Client, model, prompt, text string, maxTokens int) (string, error) {
	if client == nil {
		return "", fmt.Errorf("llm: client is required")
	}
	content := strings.ReplaceAll(prompt, PromptTextPlaceholder, text)
	resp, err := client.Complete(ctx, Request{
		Model:     model,
		Messages:  []Message{{Role: RoleSystem, Content: content}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm: simple call: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
