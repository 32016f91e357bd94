package workflow

import (
	"fmt"
	"sort"
)

// ModuleRef places one module instance inside a pipeline: which module to
// build, what to call this instance, and what it waits for. The same module
// may appear more than once under different instance IDs.
type ModuleRef struct {
	ID          string       `json:"id,omitempty" yaml:"id,omitempty"`
	ModuleID    string       `json:"module" yaml:"module"`
	Name        string       `json:"name,omitempty" yaml:"name,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	DependsOn   []string     `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Config      ModuleConfig `json:"config,omitempty" yaml:"config,omitempty"`
	Optional    bool         `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// InstanceID is the pipeline-local name: the explicit ID when set, the
// module ID otherwise.
func (ref ModuleRef) InstanceID() string {
	if ref.ID != "" {
		return ref.ID
	}
	return ref.ModuleID
}

// Validate checks the reference for a module ID and duplicate dependencies.
func (ref ModuleRef) Validate() error {
	if ref.ModuleID == "" {
		return fmt.Errorf("workflow: module ref without a module id")
	}
	seen := make(map[string]bool, len(ref.DependsOn))
	for _, dep := range ref.DependsOn {
		if seen[dep] {
			return fmt.Errorf("workflow: %s lists %s twice in depends_on", ref.InstanceID(), dep)
		}
		seen[dep] = true
	}
	return nil
}

// Clone deep-copies the reference.
func (ref ModuleRef) Clone() ModuleRef {
	clone := ref
	clone.DependsOn = cloneStringSlice(ref.DependsOn)
	clone.Config = ref.Config.Clone()
	return clone
}

// ModuleConfig carries module-specific settings. The runtime hands it to
// the module factory without interpreting it.
type ModuleConfig map[string]any

func (cfg ModuleConfig) Clone() ModuleConfig {
	if len(cfg) == 0 {
		return nil
	}
	clone := make(ModuleConfig, len(cfg))
	for key, value := range cfg {
		clone[key] = value
	}
	return clone
}

// DependencyGraph maps instance IDs to the instance IDs they wait for.
// Normalized definitions fold each ModuleRef's DependsOn into this graph.
type DependencyGraph map[string][]string

func (g DependencyGraph) Clone() DependencyGraph {
	if len(g) == 0 {
		return nil
	}
	out := make(DependencyGraph, len(g))
	for key, deps := range g {
		out[key] = cloneStringSlice(deps)
	}
	return out
}

// RuntimeConfig holds execution constraints declared by the pipeline.
type RuntimeConfig struct {
	// MaxParallel caps how many scheduler slots run at once. Zero means
	// unlimited.
	MaxParallel int `json:"max_parallel,omitempty" yaml:"max_parallel,omitempty"`
}

// PipelineDefinition is the declarative form of an assistant pipeline.
type PipelineDefinition struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Modules     []ModuleRef     `json:"modules" yaml:"modules"`
	Graph       DependencyGraph `json:"graph,omitempty" yaml:"graph,omitempty"`
	Runtime     RuntimeConfig   `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// Clone deep-copies the definition.
func (def PipelineDefinition) Clone() PipelineDefinition {
	clone := def
	clone.Graph = def.Graph.Clone()
	if len(def.Modules) > 0 {
		clone.Modules = make([]ModuleRef, len(def.Modules))
		for i, ref := range def.Modules {
			clone.Modules[i] = ref.Clone()
		}
	}
	return clone
}

// Validate checks the definition for duplicate instances and dangling graph
// references.
func (def PipelineDefinition) Validate() error {
	if def.ID == "" {
		return fmt.Errorf("workflow: pipeline without an id")
	}
	if len(def.Modules) == 0 {
		return fmt.Errorf("workflow %s: pipeline has no modules", def.ID)
	}
	declared := make(map[string]bool, len(def.Modules))
	for i, ref := range def.Modules {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("workflow %s module[%d]: %w", def.ID, i, err)
		}
		id := ref.InstanceID()
		if declared[id] {
			return fmt.Errorf("workflow %s: instance id %s declared twice", def.ID, id)
		}
		declared[id] = true
	}
	for id, deps := range def.Graph {
		if !declared[id] {
			return fmt.Errorf("workflow %s: graph key %s is not a declared module", def.ID, id)
		}
		for _, dep := range deps {
			if !declared[dep] {
				return fmt.Errorf("workflow %s: %s depends on undeclared module %s", def.ID, id, dep)
			}
		}
	}
	if def.Runtime.MaxParallel < 0 {
		return fmt.Errorf("workflow %s: max_parallel must not be negative", def.ID)
	}
	return nil
}

// Normalized folds inline depends_on lists into the graph, clamps the
// runtime config, and validates the merged result.
func (def PipelineDefinition) Normalized() (PipelineDefinition, error) {
	clone := def.Clone()
	if clone.Graph == nil {
		clone.Graph = DependencyGraph{}
	}
	for _, ref := range clone.Modules {
		id := ref.InstanceID()
		clone.Graph[id] = mergeDependencies(clone.Graph[id], ref.DependsOn)
	}
	if clone.Runtime.MaxParallel < 0 {
		clone.Runtime.MaxParallel = 0
	}
	if err := clone.Validate(); err != nil {
		return PipelineDefinition{}, err
	}
	return clone, nil
}

// ModuleIDs lists instance IDs in declaration order.
func (def PipelineDefinition) ModuleIDs() []string {
	ids := make([]string, 0, len(def.Modules))
	for _, ref := range def.Modules {
		ids = append(ids, ref.InstanceID())
	}
	return ids
}

// Dependencies returns a copy of the graph entry for an instance.
func (def PipelineDefinition) Dependencies(id string) []string {
	return cloneStringSlice(def.Graph[id])
}

func mergeDependencies(existing, adds []string) []string {
	merged := make(map[string]bool, len(existing)+len(adds))
	for _, list := range [][]string{existing, adds} {
		for _, id := range list {
			if id != "" {
				merged[id] = true
			}
		}
	}
	if len(merged) == 0 {
		return nil
	}
	out := make([]string, 0, len(merged))
	for id := range merged {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clone := make([]string, len(values))
	copy(clone, values)
	return clone
}
