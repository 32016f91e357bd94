package workflow

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPipelineDir points to the conventional location for YAML pipeline
// definitions when loading from disk.
const DefaultPipelineDir = "pipelines"

// ParseDefinitionYAML decodes a pipeline definition from YAML/JSON bytes.
func ParseDefinitionYAML(data []byte) (PipelineDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return PipelineDefinition{}, fmt.Errorf("workflow: definition payload is empty")
	}
	var def PipelineDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return PipelineDefinition{}, fmt.Errorf("workflow: decode definition: %w", err)
	}
	return def.Normalized()
}

// LoadDefinitionReader reads pipeline definition data from an io.Reader.
func LoadDefinitionReader(r io.Reader) (PipelineDefinition, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return PipelineDefinition{}, fmt.Errorf("workflow: read definition: %w", err)
	}
	return ParseDefinitionYAML(content)
}

// LoadDefinitionFile loads a pipeline definition from an explicit file path.
func LoadDefinitionFile(path string) (PipelineDefinition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return PipelineDefinition{}, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	def, parseErr := ParseDefinitionYAML(content)
	if parseErr != nil {
		return PipelineDefinition{}, fmt.Errorf("workflow: %s: %w", path, parseErr)
	}
	return def, nil
}

// LoadDefinitionRelative loads a definition from the pipelines directory (or a
// custom baseDir if provided).
func LoadDefinitionRelative(baseDir, name string) (PipelineDefinition, error) {
	if baseDir == "" {
		baseDir = DefaultPipelineDir
	}
	path := filepath.Join(baseDir, name)
	return LoadDefinitionFile(path)
}
