package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/conciergehq/concierge/internal/artifact"
	"github.com/conciergehq/concierge/internal/browser"
	"github.com/conciergehq/concierge/internal/config"
	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/llm"
	"github.com/conciergehq/concierge/internal/logbook"
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/modules"
	"github.com/conciergehq/concierge/internal/tool"
	"github.com/conciergehq/concierge/internal/tools/grocery"
	"github.com/conciergehq/concierge/internal/tools/webscraper"
	"github.com/conciergehq/concierge/internal/workflow"
	"github.com/conciergehq/concierge/plugins"
)

// envOptions selects which parts of the runtime a command needs. Commands
// that only read state skip the chat client and the browser.
type envOptions struct {
	chat    bool
	browser bool
	headful bool
	zip     string
}

// environment bundles the wired runtime a command operates on.
type environment struct {
	cfg     *config.Config
	wf      *workflow.Workflow
	log     *logbook.Logbook
	store   *artifact.Store
	tools   *tool.Registry
	modules *module.Registry
	router  *events.Router
	chat    llm.Client
	browser *browser.Manager
}

// newEnvironment initializes the .concierge workspace and wires the runtime
// for a command.
func newEnvironment(ctx context.Context, projectDir string, opts envOptions) (*environment, error) {
	if err := config.InitConciergeDir(projectDir); err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	wf := workflow.New(cfg.ConciergeProjectDir)
	if err := wf.Initialize(); err != nil {
		return nil, err
	}
	log, err := logbook.New(cfg.LogbookPath())
	if err != nil {
		return nil, err
	}

	env := &environment{
		cfg:     cfg,
		wf:      wf,
		log:     log,
		store:   artifact.NewStore(wf),
		tools:   tool.NewRegistry(),
		modules: module.NewRegistry(),
		router:  events.NewRouter(events.RouterWithLogger(log.Scoped("events"))),
	}
	modules.RegisterBuiltins(env.modules)

	if opts.chat {
		chat, err := llm.NewOpenAI(cfg.APIKey)
		if err != nil {
			return nil, err
		}
		env.chat = chat
	}

	var page grocery.Page
	if opts.browser {
		mgr := browser.NewManager(cfg.BrowserProfileDir(),
			browser.WithDebug(opts.headful || cfg.Project.Browser.Debug),
			browser.WithTimeout(time.Duration(cfg.Project.Browser.TimeoutSeconds)*time.Second),
		)
		if err := mgr.Start(ctx); err != nil {
			// A missing Chrome install should not block tasks that never
			// touch the storefront.
			log.Scoped("cli").Warn("browser unavailable, grocery tools disabled: %v", err)
		} else {
			env.browser = mgr
			p, err := mgr.NewPage()
			if err != nil {
				env.Close()
				return nil, err
			}
			page = p
		}
	}
	if err := grocery.RegisterTools(env.tools, page, env.zipCode(opts.zip), log); err != nil {
		env.Close()
		return nil, err
	}
	if err := webscraper.RegisterTool(env.tools, webscraper.NewConverter(webscraper.WithLogbook(log))); err != nil {
		env.Close()
		return nil, err
	}
	if err := plugins.RegisterToolPlugins(env.tools, cfg); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// Close tears down the browser session if one was started.
func (e *environment) Close() {
	if e.browser != nil {
		e.browser.Stop()
	}
}

func (e *environment) zipCode(override string) string {
	if override != "" {
		return override
	}
	if e.cfg.Project.Grocery.ZipCode > 0 {
		return strconv.Itoa(e.cfg.Project.Grocery.ZipCode)
	}
	return grocery.DefaultZipCode
}

// moduleContext builds the shared context every pipeline module runs with.
func (e *environment) moduleContext(task string) *module.ModuleContext {
	return &module.ModuleContext{
		Config:    e.cfg,
		Workflow:  e.wf,
		Logbook:   e.log,
		Artifacts: e.store,
		Chat:      e.chat,
		Tools:     e.tools,
		Events:    e.router,
		Task:      task,
	}
}

// pipelineDefinition resolves a pipeline by ID: the built-in assistant
// pipeline, or a YAML definition under .concierge/pipelines/.
func (e *environment) pipelineDefinition(id string) (workflow.PipelineDefinition, error) {
	if id == "" {
		id = e.cfg.DefaultPipeline()
	}
	if id == workflow.AssistantPipelineID {
		return workflow.AssistantPipeline(), nil
	}
	baseDir := filepath.Join(e.cfg.ConciergeProjectDir, workflow.DefaultPipelineDir)
	def, err := workflow.LoadDefinitionRelative(baseDir, id+".yaml")
	if err != nil {
		return workflow.PipelineDefinition{}, fmt.Errorf("cli: load pipeline %s: %w", id, err)
	}
	return def, nil
}
