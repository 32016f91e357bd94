package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefinitionFile pairs a parsed tool definition with where it came from,
// so collisions and validation failures can name the offending file.
type DefinitionFile struct {
	Definition ToolDefinition
	Path       string
}

// ParseDefinitionYAML decodes one tool definition and returns its
// normalized form.
func ParseDefinitionYAML(data []byte) (ToolDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return ToolDefinition{}, fmt.Errorf("plugin: empty definition payload")
	}
	var def ToolDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return ToolDefinition{}, fmt.Errorf("plugin: decode definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return ToolDefinition{}, err
	}
	return def.Normalized(), nil
}

// LoadDefinitionFile parses a single YAML tool definition from disk.
func LoadDefinitionFile(path string) (DefinitionFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("plugin: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return DefinitionFile{}, fmt.Errorf("plugin: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	def, err := ParseDefinitionYAML(data)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return DefinitionFile{Definition: def, Path: filepath.Clean(path)}, nil
}

// LoadDefinitionDir parses every .yaml/.yml tool in dir, sorted by path.
// A missing directory means no plugins rather than an error.
func LoadDefinitionDir(dir string) ([]DefinitionFile, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", dir, err)
	}
	var defs []DefinitionFile
	for _, entry := range entries {
		if entry.IsDir() || !hasYAMLExt(entry.Name()) {
			continue
		}
		def, err := LoadDefinitionFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, nil
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Path < defs[j].Path })
	return defs, nil
}

func hasYAMLExt(name string) bool {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
