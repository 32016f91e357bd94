// Package config owns the .concierge workspace layout and the project
// settings file. Every directory the assistant writes into lives under
// .concierge/, and config.yaml in that directory carries the per-project
// model, browser, grocery, and pipeline preferences.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ConciergeDir is the workspace directory created inside each project.
	ConciergeDir = ".concierge"

	defaultPipelineID = "assistant-task"

	// EnvAPIKey names the environment variable holding the OpenAI API key.
	EnvAPIKey = "OPENAI_API_KEY"
)

// Default model assignments. The planner model does the heavy reasoning while
// the executor and utility models handle tool calling and cleanup prompts.
const (
	DefaultPlannerModel  = "o1-mini"
	DefaultExecutorModel = "gpt-4o-mini"
	DefaultUtilityModel  = "gpt-4o-mini"
)

const defaultProjectConfigYAML = `# concierge project configuration
version: 1

models:
  planner: o1-mini
  executor: gpt-4o-mini
  utility: gpt-4o-mini

browser:
  # Set debug: true to run the browser headful with long timeouts.
  debug: false
  timeout_seconds: 10

grocery:
  zip_code: 78209

pipeline:
  default: assistant-task
  max_parallel: 1
`

// ModelConfig selects which chat models back each agent role.
type ModelConfig struct {
	Planner  string `yaml:"planner"`
	Executor string `yaml:"executor"`
	Utility  string `yaml:"utility"`
}

// BrowserConfig tunes the automated browser session.
type BrowserConfig struct {
	Debug          bool   `yaml:"debug"`
	ProfileDir     string `yaml:"profile_dir,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// GroceryConfig carries store-specific settings for the grocery tools.
type GroceryConfig struct {
	ZipCode int `yaml:"zip_code"`
}

// BridgeConfig exposes the local HTTP endpoint that accepts events from
// external helpers. Disabled unless switched on here or via environment.
type BridgeConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// PipelineConfig captures pipeline preferences.
type PipelineConfig struct {
	Default     string `yaml:"default"`
	MaxParallel int    `yaml:"max_parallel,omitempty"`
}

// ProjectConfig models .concierge/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Models   ModelConfig    `yaml:"models"`
	Browser  BrowserConfig  `yaml:"browser"`
	Grocery  GroceryConfig  `yaml:"grocery"`
	Bridge   BridgeConfig   `yaml:"bridge,omitempty"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// Config holds the runtime configuration for the assistant.
type Config struct {
	// ProjectDir is where the user invoked the CLI.
	ProjectDir string

	// ConciergeProjectDir is ProjectDir/.concierge.
	ConciergeProjectDir string

	// APIKey comes from the environment only, never from config.yaml.
	APIKey string

	Project ProjectConfig
}

// workspaceSubdirs are created under .concierge/ on startup:
//
//	task/     task intake document
//	plan/     planner output
//	work/     execution transcript and markers
//	output/   user-facing results
//	state/    engine state persisted between runs
//	browser/  persistent browser profile
//	tools/    plugin tool definitions
//	logs/     run logbook
var workspaceSubdirs = []string{
	"task", "plan", "work", "output", "state", "browser", "tools", "logs",
}

// InitConciergeDir creates the .concierge workspace under projectDir and
// seeds config.yaml if one is not already present.
func InitConciergeDir(projectDir string) error {
	root := filepath.Join(projectDir, ConciergeDir)
	for _, sub := range workspaceSubdirs {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", sub, err)
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig builds the runtime configuration for a project, layering
// config.yaml over the built-in defaults.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:          projectDir,
		ConciergeProjectDir: filepath.Join(projectDir, ConciergeDir),
		APIKey:              strings.TrimSpace(os.Getenv(EnvAPIKey)),
		Project:             defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir is where run logbooks are written.
func (c *Config) LogsDir() string {
	return filepath.Join(c.ConciergeProjectDir, "logs")
}

// LogbookPath is the run log file for this workspace.
func (c *Config) LogbookPath() string {
	return filepath.Join(c.LogsDir(), "run.log")
}

// StateDir is where engine snapshots are persisted.
func (c *Config) StateDir() string {
	return filepath.Join(c.ConciergeProjectDir, "state")
}

// ToolsDir holds plugin tool definitions.
func (c *Config) ToolsDir() string {
	return filepath.Join(c.ConciergeProjectDir, "tools")
}

// BrowserProfileDir returns the persistent browser profile directory,
// honoring an explicit override from config.yaml.
func (c *Config) BrowserProfileDir() string {
	if dir := strings.TrimSpace(c.Project.Browser.ProfileDir); dir != "" {
		return resolvePath(c.ProjectDir, dir)
	}
	return filepath.Join(c.ConciergeProjectDir, "browser")
}

// ProjectConfigPath is the on-disk location of config.yaml.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.ConciergeProjectDir, "config.yaml")
}

// PlannerModel returns the configured planner model identifier.
func (c *Config) PlannerModel() string {
	return c.Project.Models.Planner
}

// ExecutorModel returns the configured executor model identifier.
func (c *Config) ExecutorModel() string {
	return c.Project.Models.Executor
}

// UtilityModel returns the model used for short cleanup/summary calls.
func (c *Config) UtilityModel() string {
	return c.Project.Models.Utility
}

// DefaultPipeline returns the configured default pipeline identifier.
func (c *Config) DefaultPipeline() string {
	return c.Project.Pipeline.Default
}

// SetDefaultPipeline updates the default pipeline identifier and persists
// the value back to config.yaml.
func (c *Config) SetDefaultPipeline(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("config: pipeline id is required")
	}
	c.Project.Pipeline.Default = id
	return c.saveProjectConfig()
}

// Reload re-reads config.yaml from disk, keeping defaults for absent fields.
func (c *Config) Reload() error {
	c.Project = defaultProjectConfig()
	return c.loadProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := parsed.settle(); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Models: ModelConfig{
			Planner:  DefaultPlannerModel,
			Executor: DefaultExecutorModel,
			Utility:  DefaultUtilityModel,
		},
		Browser: BrowserConfig{
			TimeoutSeconds: 10,
		},
		Grocery: GroceryConfig{
			ZipCode: 78209,
		},
		Pipeline: PipelineConfig{
			Default:     defaultPipelineID,
			MaxParallel: 1,
		},
	}
}

// settle trims, fills in defaults, and validates in one pass. Both the
// loader and the saver run it, so a config written by SetDefaultPipeline
// round-trips to the same values it was loaded with.
func (pc *ProjectConfig) settle() error {
	if pc.Version == 0 {
		pc.Version = 1
	}
	fillModel(&pc.Models.Planner, DefaultPlannerModel)
	fillModel(&pc.Models.Executor, DefaultExecutorModel)
	fillModel(&pc.Models.Utility, DefaultUtilityModel)
	pc.Browser.ProfileDir = strings.TrimSpace(pc.Browser.ProfileDir)
	if pc.Browser.TimeoutSeconds == 0 {
		pc.Browser.TimeoutSeconds = 10
	}
	if pc.Grocery.ZipCode == 0 {
		pc.Grocery.ZipCode = 78209
	}
	pc.Pipeline.Default = strings.TrimSpace(pc.Pipeline.Default)
	if pc.Pipeline.Default == "" {
		pc.Pipeline.Default = defaultPipelineID
	}
	if pc.Pipeline.MaxParallel == 0 {
		pc.Pipeline.MaxParallel = 1
	}

	switch {
	case pc.Version < 1:
		return errors.New("version must be at least 1")
	case pc.Browser.TimeoutSeconds < 0:
		return errors.New("browser.timeout_seconds must not be negative")
	case pc.Grocery.ZipCode < 0 || pc.Grocery.ZipCode > 99999:
		return errors.New("grocery.zip_code must be a 5-digit US zip code")
	case pc.Pipeline.MaxParallel < 0:
		return errors.New("pipeline.max_parallel must not be negative")
	}
	return nil
}

func fillModel(field *string, fallback string) {
	*field = strings.TrimSpace(*field)
	if *field == "" {
		*field = fallback
	}
}

func resolvePath(base, candidate string) string {
	candidate = strings.TrimSpace(candidate)
	switch {
	case candidate == "":
		return ""
	case filepath.IsAbs(candidate):
		return filepath.Clean(candidate)
	}
	return filepath.Clean(filepath.Join(base, candidate))
}

func ensureProjectConfig(path string) error {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return errors.New("config: nil receiver")
	}
	if err := c.Project.settle(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.ConciergeProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: create workspace dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode project config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", c.ProjectConfigPath(), err)
	}
	return nil
}
