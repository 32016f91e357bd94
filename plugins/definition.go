// Package plugins loads user-defined tools from the workspace tools
// directory. A plugin is either a YAML file describing an HTTP-backed tool
// or a Go file interpreted at startup that returns tool definitions. Loaded
// tools join the built-in registry and become callable by the executor
// agent.
package plugins

import (
	"fmt"
	"strings"

	"github.com/conciergehq/concierge/internal/tool"
)

// ToolDefinition describes a plugin tool loaded from disk.
//
// The struct mirrors the on-disk schema under .concierge/tools/*.yaml and is
// intentionally narrow so definitions can be validated before they are wired
// into the executor's registry.
type ToolDefinition struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Parameters  []ParamDefinition `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Request     RequestDefinition `json:"request" yaml:"request"`
}

// ParamDefinition declares one argument the model may pass to the tool.
type ParamDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// RequestDefinition is the HTTP request template the tool executes.
// {param} placeholders in the URL, header values, and body are replaced with
// the model-supplied argument of the same name.
type RequestDefinition struct {
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
}

var paramTypes = map[string]struct{}{
	"string":  {},
	"integer": {},
	"number":  {},
	"boolean": {},
}

// Normalized returns a trimmed copy of the definition with defaults applied.
func (def ToolDefinition) Normalized() ToolDefinition {
	clone := ToolDefinition{
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Request:     def.Request.normalized(),
	}
	if len(def.Parameters) > 0 {
		clone.Parameters = make([]ParamDefinition, len(def.Parameters))
		for i, param := range def.Parameters {
			clone.Parameters[i] = param.normalized()
		}
	}
	return clone
}

// Validate ensures the definition can be registered and executed.
func (def ToolDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.Name == "" {
		return fmt.Errorf("plugin: tool name is required")
	}
	if normalized.Name == tool.CompletionSentinel {
		return fmt.Errorf("plugin: tool name %s is reserved", tool.CompletionSentinel)
	}
	if normalized.Description == "" {
		return fmt.Errorf("plugin %s: description is required", normalized.Name)
	}
	if normalized.Request.URL == "" {
		return fmt.Errorf("plugin %s: request url is required", normalized.Name)
	}
	seen := make(map[string]struct{}, len(normalized.Parameters))
	for idx, param := range normalized.Parameters {
		if param.Name == "" {
			return fmt.Errorf("plugin %s: parameters[%d]: name is required", normalized.Name, idx)
		}
		if _, ok := paramTypes[param.Type]; !ok {
			return fmt.Errorf("plugin %s: parameters[%d]: unsupported type %q", normalized.Name, idx, param.Type)
		}
		if _, exists := seen[param.Name]; exists {
			return fmt.Errorf("plugin %s: parameters[%d]: duplicate parameter %s", normalized.Name, idx, param.Name)
		}
		seen[param.Name] = struct{}{}
	}
	return nil
}

// Schema renders the tool's JSON parameter schema.
func (def ToolDefinition) Schema() map[string]any {
	if len(def.Parameters) == 0 {
		return nil
	}
	properties := make(map[string]any, len(def.Parameters))
	var required []string
	for _, param := range def.Parameters {
		properties[param.Name] = map[string]any{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}
	return tool.ObjectSchema(properties, required...)
}

func (param ParamDefinition) normalized() ParamDefinition {
	clone := ParamDefinition{
		Name:        strings.TrimSpace(param.Name),
		Type:        strings.ToLower(strings.TrimSpace(param.Type)),
		Description: strings.TrimSpace(param.Description),
		Required:    param.Required,
	}
	if clone.Type == "" {
		clone.Type = "string"
	}
	return clone
}

func (req RequestDefinition) normalized() RequestDefinition {
	clone := RequestDefinition{
		Method: strings.ToUpper(strings.TrimSpace(req.Method)),
		URL:    strings.TrimSpace(req.URL),
		Body:   req.Body,
	}
	if clone.Method == "" {
		clone.Method = "GET"
	}
	if len(req.Headers) > 0 {
		clone.Headers = make(map[string]string, len(req.Headers))
		for key, value := range req.Headers {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				continue
			}
			clone.Headers[trimmed] = strings.TrimSpace(value)
		}
	}
	return clone
}
