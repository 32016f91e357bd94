package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

// Go plugin files declare their tools through a ToolDefinitions function
// returning []map[string]any, optionally with an error. The maps use the
// same keys as the YAML definition format.
const goDefinitionFuncName = "ToolDefinitions"

// LoadGoDefinitionDir interprets every .go file in dir with yaegi and
// collects the tool definitions each one declares. A missing directory
// means no plugins.
func LoadGoDefinitionDir(dir string) ([]DefinitionFile, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", dir, err)
	}
	var defs []DefinitionFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".go" {
			continue
		}
		loaded, err := evalGoPluginFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		defs = append(defs, loaded...)
	}
	if len(defs) == 0 {
		return nil, nil
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Path < defs[j].Path })
	return defs, nil
}

func evalGoPluginFile(path string) ([]DefinitionFile, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("plugin: %s is empty", path)
	}
	vm := interp.New(interp.Options{})
	vm.Use(stdlib.Symbols)
	if _, err := vm.EvalPath(path); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}
	fn, err := vm.Eval(goDefinitionFuncName)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s must define %s() ([]map[string]any, error): %w", path, goDefinitionFuncName, err)
	}
	rawDefs, err := callToolDefinitions(fn)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, err)
	}

	// Route the maps through the YAML path so Go plugins get exactly the
	// same validation and defaults as file-based definitions.
	files := make([]DefinitionFile, 0, len(rawDefs))
	for i, raw := range rawDefs {
		payload, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s definition[%d]: %w", path, i, err)
		}
		def, err := ParseDefinitionYAML(payload)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s definition[%d]: %w", path, i, err)
		}
		files = append(files, DefinitionFile{Definition: def, Path: fmt.Sprintf("%s#%d", path, i+1)})
	}
	return files, nil
}

func callToolDefinitions(fn reflect.Value) ([]map[string]any, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goDefinitionFuncName)
	}
	results := fn.Call(nil)
	switch len(results) {
	case 1:
	case 2:
		if !results[1].IsNil() {
			err, ok := results[1].Interface().(error)
			if !ok {
				return nil, fmt.Errorf("%s second return value is not an error", goDefinitionFuncName)
			}
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", goDefinitionFuncName)
	}

	value := results[0]
	if defs, ok := value.Interface().([]map[string]any); ok {
		return defs, nil
	}
	if value.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", goDefinitionFuncName)
	}
	defs := make([]map[string]any, value.Len())
	for i := 0; i < value.Len(); i++ {
		entry, ok := value.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", goDefinitionFuncName, i)
		}
		defs[i] = entry
	}
	return defs, nil
}
