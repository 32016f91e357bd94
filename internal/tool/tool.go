// Package tool defines the callable-function contract exposed to the
// executor agent plus the registry that dispatches model tool calls.
package tool

import (
	"context"
	"encoding/json"
	"strings"
)

// CompletionSentinel is the reserved function name the executor model calls
// once every instruction in the plan has been carried out.
const CompletionSentinel = "instructions_complete"

// Tool is a single callable function offered to the executor model.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema for the arguments object, or nil
	// for a zero-argument tool.
	Parameters() map[string]any
	Call(ctx context.Context, args json.RawMessage) (any, error)
}

// Func adapts a plain function into a Tool.
type Func struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args json.RawMessage) (any, error)
}

// NewFunc builds a Tool from a function and its schema.
func NewFunc(name, description string, parameters map[string]any, fn func(ctx context.Context, args json.RawMessage) (any, error)) *Func {
	return &Func{
		name:        strings.TrimSpace(name),
		description: strings.TrimSpace(description),
		parameters:  parameters,
		fn:          fn,
	}
}

// Name implements Tool.
func (f *Func) Name() string { return f.name }

// Description implements Tool.
func (f *Func) Description() string { return f.description }

// Parameters implements Tool.
func (f *Func) Parameters() map[string]any { return f.parameters }

// Call implements Tool.
func (f *Func) Call(ctx context.Context, args json.RawMessage) (any, error) {
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(ctx, args)
}

// ObjectSchema builds a JSON schema object for tool parameters. Properties
// maps argument names to their schema; required lists mandatory arguments.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringParam describes a string argument.
func StringParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// IntParam describes an integer argument.
func IntParam(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}
