package plugins

import (
	"strings"
	"testing"
)

func validDefinition() ToolDefinition {
	return ToolDefinition{
		Name:        "weather_lookup",
		Description: "Returns the current weather for a city.",
		Parameters: []ParamDefinition{
			{Name: "city", Type: "string", Description: "City name", Required: true},
			{Name: "days", Type: "integer", Description: "Forecast days"},
		},
		Request: RequestDefinition{
			Method: "get",
			URL:    "https://api.example.com/weather?q={city}&days={days}",
		},
	}
}

func TestValidateAcceptsWellFormedDefinition(t *testing.T) {
	if err := validDefinition().Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cases := map[string]func(*ToolDefinition){
		"missing name":        func(def *ToolDefinition) { def.Name = "" },
		"missing description": func(def *ToolDefinition) { def.Description = "" },
		"missing url":         func(def *ToolDefinition) { def.Request.URL = "" },
		"reserved name":       func(def *ToolDefinition) { def.Name = "instructions_complete" },
		"bad param type":      func(def *ToolDefinition) { def.Parameters[0].Type = "object" },
		"duplicate param": func(def *ToolDefinition) {
			def.Parameters = append(def.Parameters, ParamDefinition{Name: "city", Type: "string"})
		},
	}
	for name, mutate := range cases {
		def := validDefinition()
		mutate(&def)
		if err := def.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestNormalizedAppliesDefaults(t *testing.T) {
	def := ToolDefinition{
		Name:        "  ping  ",
		Description: "Pings a host.",
		Parameters:  []ParamDefinition{{Name: " host "}},
		Request:     RequestDefinition{URL: " https://example.com/ping "},
	}
	normalized := def.Normalized()
	if normalized.Name != "ping" {
		t.Fatalf("name not trimmed: %q", normalized.Name)
	}
	if normalized.Parameters[0].Type != "string" {
		t.Fatalf("param type default missing: %q", normalized.Parameters[0].Type)
	}
	if normalized.Request.Method != "GET" {
		t.Fatalf("method default missing: %q", normalized.Request.Method)
	}
}

func TestSchemaMarksRequiredParameters(t *testing.T) {
	schema := validDefinition().Normalized().Schema()
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "city" {
		t.Fatalf("unexpected required list: %v", schema["required"])
	}
	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("missing properties: %v", schema)
	}
	if _, ok := properties["days"]; !ok {
		t.Fatalf("missing days property: %v", properties)
	}
}

func TestParseDefinitionYAML(t *testing.T) {
	payload := `
name: recipe_search
description: Searches a recipe index.
parameters:
  - name: query
    type: string
    description: Search terms
    required: true
request:
  method: GET
  url: https://recipes.example.com/search?q={query}
  headers:
    Accept: application/json
`
	def, err := ParseDefinitionYAML([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Name != "recipe_search" {
		t.Fatalf("unexpected name %q", def.Name)
	}
	if def.Request.Headers["Accept"] != "application/json" {
		t.Fatalf("headers not parsed: %v", def.Request.Headers)
	}
}

func TestParseDefinitionYAMLRejectsInvalid(t *testing.T) {
	if _, err := ParseDefinitionYAML([]byte("name: broken\n")); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := ParseDefinitionYAML([]byte("   ")); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty payload error, got %v", err)
	}
}
