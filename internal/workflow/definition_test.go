package workflow

import (
	"strings"
	"testing"
)

func TestParseDefinitionYAMLRejectsEmptyPipeline(t *testing.T) {
	const payload = `
id: empty
modules: []
`
	if _, err := ParseDefinitionYAML([]byte(payload)); err == nil || !strings.Contains(err.Error(), "no modules") {
		t.Fatalf("expected no-modules error, got %v", err)
	}
}

func TestParseDefinitionYAMLRejectsUndeclaredDependency(t *testing.T) {
	const payload = `
id: dangling
modules:
  - id: start
    module: task-intake
    depends_on: [missing]
`
	if _, err := ParseDefinitionYAML([]byte(payload)); err == nil || !strings.Contains(err.Error(), "undeclared module") {
		t.Fatalf("expected undeclared-dependency error, got %v", err)
	}
}

func TestParseDefinitionYAMLClampsNegativeMaxParallel(t *testing.T) {
	const payload = `
id: clamped
runtime:
  max_parallel: -4
modules:
  - module: task-intake
`
	def, err := ParseDefinitionYAML([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Runtime.MaxParallel != 0 {
		t.Fatalf("max_parallel should clamp to 0, got %d", def.Runtime.MaxParallel)
	}
}

func TestNormalizedMergesInlineDependencies(t *testing.T) {
	def := PipelineDefinition{
		ID: "merge",
		Modules: []ModuleRef{
			{ID: "a", ModuleID: "task-intake"},
			{ID: "b", ModuleID: "plan-generation", DependsOn: []string{"a"}},
		},
		Graph: DependencyGraph{"b": {"a"}},
	}
	normalized, err := def.Normalized()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	deps := normalized.Dependencies("b")
	if len(deps) != 1 || deps[0] != "a" {
		t.Fatalf("expected deduplicated deps, got %v", deps)
	}
}

func TestValidateRejectsDuplicateInstanceIDs(t *testing.T) {
	def := PipelineDefinition{
		ID: "dupes",
		Modules: []ModuleRef{
			{ID: "step", ModuleID: "task-intake"},
			{ID: "step", ModuleID: "report"},
		},
	}
	if err := def.Validate(); err == nil || !strings.Contains(err.Error(), "declared twice") {
		t.Fatalf("expected duplicate-instance error, got %v", err)
	}
}
