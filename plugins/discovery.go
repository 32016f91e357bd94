package plugins

import (
	"fmt"
	"net/http"

	"github.com/conciergehq/concierge/internal/config"
	"github.com/conciergehq/concierge/internal/tool"
)

// Option customizes plugin registration.
type Option func(*loader)

// WithHTTPClient injects the HTTP client used by plugin tools (used in tests).
func WithHTTPClient(client *http.Client) Option {
	return func(l *loader) {
		if client != nil {
			l.client = client
		}
	}
}

type loader struct {
	client *http.Client
}

// RegisterToolPlugins discovers YAML and Go tool definitions under the
// workspace tools directory and registers them with the executor registry.
func RegisterToolPlugins(reg *tool.Registry, cfg *config.Config, opts ...Option) error {
	if reg == nil || cfg == nil {
		return nil
	}
	l := &loader{}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	defs, err := loadAllDefinitionFiles(cfg.ToolsDir())
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return nil
	}
	seen := make(map[string]string)
	for _, file := range defs {
		def := file.Definition
		if existing, ok := seen[def.Name]; ok {
			return fmt.Errorf("plugin: duplicate tool name %s (%s and %s)", def.Name, existing, file.Path)
		}
		seen[def.Name] = file.Path
		t, err := newHTTPTool(def, l.client)
		if err != nil {
			return fmt.Errorf("plugin: build %s from %s: %w", def.Name, file.Path, err)
		}
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("plugin: register %s from %s: %w", def.Name, file.Path, err)
		}
	}
	return nil
}

func loadAllDefinitionFiles(dir string) ([]DefinitionFile, error) {
	yamlDefs, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	goDefs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	return append(yamlDefs, goDefs...), nil
}
