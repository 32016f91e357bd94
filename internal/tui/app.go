// Package tui renders live pipeline progress while a task runs: a stage
// checklist driven by the workflow markers, the agent event feed, and the
// tail of the run logbook.
package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/logbook"
	"github.com/conciergehq/concierge/internal/workflow"
	"github.com/conciergehq/concierge/internal/workflow/engine"
)

// Stage is one pipeline step shown in the checklist.
type Stage struct {
	ModuleID string
	Title    string
}

// StagesFromDefinition maps a pipeline definition onto display stages.
func StagesFromDefinition(def workflow.PipelineDefinition) []Stage {
	stages := make([]Stage, 0, len(def.Modules))
	for _, ref := range def.Modules {
		title := ref.Name
		if title == "" {
			title = ref.ModuleID
		}
		stages = append(stages, Stage{ModuleID: ref.ModuleID, Title: title})
	}
	return stages
}

// Options wires the app to a running pipeline.
type Options struct {
	Workflow *workflow.Workflow
	Logbook  *logbook.Logbook
	Router   *events.Router
	Stages   []Stage
	Run      func() (engine.State, error)
}

// Run drives the bubbletea program until the pipeline finishes and the user
// quits. The pipeline's error, if any, is returned after the screen closes.
func Run(opts Options) error {
	app := NewApp(opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return app.runErr
}

const (
	feedCapacity  = 12
	logTailLines  = 8
	refreshPeriod = 500 * time.Millisecond
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))

	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	feedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Padding(0, 1)
)

type tickMsg time.Time

type eventMsg events.Event

type runDoneMsg struct {
	state engine.State
	err   error
}

// App is the bubbletea model for a pipeline run.
type App struct {
	opts    Options
	spinner spinner.Model

	eventCh chan events.Event
	subs    []events.Subscription

	feed     []string
	logLines []string
	width    int

	done   bool
	runErr error
	state  engine.State
}

// NewApp subscribes to every stage's event stream and prepares the model.
func NewApp(opts Options) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))

	app := &App{
		opts:    opts,
		spinner: sp,
		eventCh: make(chan events.Event, 64),
	}
	if opts.Router != nil {
		for _, stage := range opts.Stages {
			sub := opts.Router.Subscribe(stage.ModuleID)
			app.subs = append(app.subs, sub)
			go func(ch <-chan events.Event) {
				for ev := range ch {
					app.eventCh <- ev
				}
			}(sub.Events)
		}
	}
	return app
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.startRun(), a.waitEvent(), tick())
}

func (a *App) startRun() tea.Cmd {
	return func() tea.Msg {
		state, err := a.opts.Run()
		return runDoneMsg{state: state, err: err}
	}
}

func (a *App) waitEvent() tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-a.eventCh)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshPeriod, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.closeSubscriptions()
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tickMsg:
		if a.opts.Logbook != nil {
			a.logLines = a.opts.Logbook.Tail(logTailLines)
		}
		return a, tick()

	case eventMsg:
		if line := renderEvent(events.Event(msg)); line != "" {
			a.feed = append(a.feed, line)
			if len(a.feed) > feedCapacity {
				a.feed = a.feed[len(a.feed)-feedCapacity:]
			}
		}
		return a, a.waitEvent()

	case runDoneMsg:
		a.done = true
		a.runErr = msg.err
		a.state = msg.state
	}
	return a, nil
}

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("⬡ CONCIERGE"))
	b.WriteString("\n\n")

	b.WriteString(panelStyle.Render(a.renderStages()))
	b.WriteString("\n")
	if len(a.feed) > 0 {
		b.WriteString(panelStyle.Render(titleStyle.Render("Activity") + "\n" + a.renderFeed()))
		b.WriteString("\n")
	}
	if len(a.logLines) > 0 {
		b.WriteString(panelStyle.Render(titleStyle.Render("Log") + "\n" + dimStyle.Render(strings.Join(a.logLines, "\n"))))
		b.WriteString("\n")
	}

	if a.done {
		if a.runErr != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Run stopped: %v", a.runErr)))
		} else {
			b.WriteString(doneStyle.Render("Task complete. Results are in " + a.opts.Workflow.OutputDir()))
		}
		b.WriteString("\n")
	}
	b.WriteString(footerStyle.Render("q quit"))
	return b.String()
}

func (a *App) renderStages() string {
	lines := make([]string, 0, len(a.opts.Stages))
	spinning := !a.done
	for _, stage := range a.opts.Stages {
		switch {
		case a.stageDone(stage.ModuleID):
			lines = append(lines, doneStyle.Render("✓ ")+stage.Title)
		case spinning:
			lines = append(lines, a.spinner.View()+" "+stage.Title)
			spinning = false
		default:
			lines = append(lines, dimStyle.Render("· "+stage.Title))
		}
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderFeed() string {
	lines := make([]string, 0, len(a.feed))
	for _, line := range a.feed {
		lines = append(lines, feedStyle.Render(line))
	}
	return strings.Join(lines, "\n")
}

// stageDone reads phase completion from the workflow markers so a resumed
// run shows earlier stages as finished before any event arrives.
func (a *App) stageDone(moduleID string) bool {
	wf := a.opts.Workflow
	if wf == nil {
		return false
	}
	switch moduleID {
	case workflow.ModuleTaskIntake:
		return wf.TaskReady()
	case workflow.ModulePlanGeneration:
		return wf.PlanningComplete()
	case workflow.ModulePlanExecution:
		return wf.ExecutionComplete()
	case workflow.ModuleReport:
		return wf.HasMarker(wf.OutputDir(), workflow.MarkerReportDone)
	}
	return false
}

func (a *App) closeSubscriptions() {
	for _, sub := range a.subs {
		sub.Close()
	}
	a.subs = nil
}

// renderEvent folds an agent event into a one-line feed entry.
func renderEvent(ev events.Event) string {
	payload := map[string]string{}
	if len(ev.Payload) > 0 {
		_ = json.Unmarshal(ev.Payload, &payload)
	}
	switch ev.Type {
	case events.TypeStatus, events.TypeTaskEnd:
		return firstLine(payload["content"])
	case events.TypePlan:
		return "Plan: " + firstLine(payload["content"])
	case events.TypeAssistant:
		return firstLine(payload["content"])
	case events.TypeToolCall:
		return fmt.Sprintf("⚙ %s %s", payload["function"], truncate(payload["arguments"], 60))
	case events.TypeToolResponse:
		return fmt.Sprintf("  %s → %s", payload["function"], truncate(payload["response"], 60))
	case events.TypeError:
		return "Error: " + firstLine(payload["content"])
	}
	return ""
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return truncate(text, 100)
}

// truncate counts runes, not bytes, so a multi-byte character at the cut
// point is dropped whole instead of leaving a mangled tail.
func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
