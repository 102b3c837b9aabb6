package pages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/buckleypaul/rollcall/internal/app"
	"github.com/buckleypaul/rollcall/internal/attendance"
	"github.com/buckleypaul/rollcall/internal/batch"
	"github.com/buckleypaul/rollcall/internal/config"
	"github.com/buckleypaul/rollcall/internal/logger"
	"github.com/buckleypaul/rollcall/internal/outcome"
	"github.com/buckleypaul/rollcall/internal/store"
	"github.com/buckleypaul/rollcall/internal/ui"
)

// AutoExecuteDelay is how long a new identifier must stay unchanged
// before an automatic run starts.
const AutoExecuteDelay = 800 * time.Millisecond

const sourceManual = "manual"

// runEventMsg carries one runner event to the UI goroutine.
type runEventMsg struct {
	ev batch.Event
}

// runClosedMsg follows the last event of a run.
type runClosedMsg struct {
	err error
}

// autoRunMsg fires after the debounce for target.
type autoRunMsg struct {
	target string
}

type RunPage struct {
	ctx       context.Context
	runner    *batch.Runner
	store     *store.Store
	log       *outcome.Log
	cfg       *config.Config
	input     textinput.Model
	target    string
	events    chan tea.Msg
	viewport  viewport.Model
	autoDelay time.Duration
	message   string
	zlog      *zap.SugaredLogger

	width, height int
}

func NewRunPage(ctx context.Context, runner *batch.Runner, st *store.Store, log *outcome.Log, cfg *config.Config) *RunPage {
	ti := textinput.New()
	ti.Placeholder = "scan or type an attendance ID"
	ti.Prompt = ""
	ti.CharLimit = 256

	return &RunPage{
		ctx:       ctx,
		runner:    runner,
		store:     st,
		log:       log,
		cfg:       cfg,
		input:     ti,
		viewport:  viewport.New(0, 0),
		autoDelay: AutoExecuteDelay,
		zlog:      logger.ComponentLogger("run"),
	}
}

func (p *RunPage) Init() tea.Cmd {
	p.refreshLog()
	return nil
}

func (p *RunPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.IdentifierMsg:
		p.target = msg.ID
		if !p.input.Focused() {
			p.input.SetValue(msg.ID)
		}
		return p, p.scheduleAutoRun(msg.ID)

	case autoRunMsg:
		if msg.target != p.target || !p.autoRunReady(msg.target) {
			return p, nil
		}
		return p, p.startRun()

	case runEventMsg:
		return p, p.applyEvent(msg.ev)

	case runClosedMsg:
		p.events = nil
		if msg.err != nil {
			p.message = ui.ErrorStyle.Render(msg.err.Error())
		}
		running := p.runner.Running()
		return p, func() tea.Msg { return app.RunStateMsg{Running: running} }

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *RunPage) handleKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	if p.input.Focused() {
		switch msg.String() {
		case "enter":
			p.input.Blur()
			id, ok := attendance.NormalizeIdentifier(p.input.Value())
			if !ok {
				p.input.SetValue(p.target)
				return p, nil
			}
			p.input.SetValue(id)
			return p, func() tea.Msg { return app.IdentifierMsg{ID: id, Source: sourceManual} }
		case "esc":
			p.input.Blur()
			p.input.SetValue(p.target)
			return p, nil
		}
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return p, cmd
	}

	switch msg.String() {
	case "i", "e":
		p.input.SetValue(p.target)
		return p, p.input.Focus()
	case "ctrl+r", "r":
		return p, p.startRun()
	case "a":
		on := !p.runner.AutoExecute()
		p.runner.SetAutoExecute(on)
		p.cfg.AutoExecute = on
		p.message = fmt.Sprintf("Auto-execute %s", onOff(on))
		return p, nil
	case "x":
		if p.runner.Running() {
			return p, nil
		}
		return p, func() tea.Msg { return app.IdentifierMsg{Source: sourceManual} }
	case "c":
		if p.runner.Running() {
			return p, nil
		}
		p.log.Clear()
		p.refreshLog()
		p.message = "Log cleared"
		return p, nil
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// startRun snapshots the store and runs the batch on its own goroutine.
// Events come back through p.events one at a time.
func (p *RunPage) startRun() tea.Cmd {
	if p.runner.Running() || p.events != nil {
		return nil
	}
	target := strings.TrimSpace(p.target)
	if target == "" {
		p.message = ui.WarningStyle.Render("Set an attendance ID first")
		return nil
	}

	records := p.store.Credentials()
	ch := make(chan tea.Msg, 8)
	p.events = ch
	p.message = fmt.Sprintf("Marking %s for %d users...", target, len(records))

	ctx, runner := p.ctx, p.runner
	go func() {
		defer close(ch)
		err := runner.Run(ctx, target, records, func(ev batch.Event) {
			ch <- runEventMsg{ev: ev}
		})
		ch <- runClosedMsg{err: err}
	}()

	return tea.Batch(
		waitForRunEvent(ch),
		func() tea.Msg { return app.RunStateMsg{Running: true, Target: target} },
	)
}

func waitForRunEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (p *RunPage) applyEvent(ev batch.Event) tea.Cmd {
	if err := batch.Apply(ev, p.store, p.log); err != nil {
		p.zlog.Warnw("applying run event failed", logger.FieldError, err)
	}

	var cmds []tea.Cmd
	if p.events != nil {
		cmds = append(cmds, waitForRunEvent(p.events))
	}

	switch ev := ev.(type) {
	case batch.EntryAppended:
		p.refreshLog()
	case batch.RunFinished:
		p.message = fmt.Sprintf("Finished %s: %d succeeded, %d failed in %s",
			ev.Target, ev.Succeeded, ev.Failed, ev.Duration.Round(time.Millisecond))
		completed := app.RunCompletedMsg{Target: ev.Target, Succeeded: ev.Succeeded, Failed: ev.Failed}
		cmds = append(cmds, func() tea.Msg { return completed })
		if ev.ClearTarget {
			cmds = append(cmds, func() tea.Msg { return app.IdentifierMsg{Source: sourceManual} })
		}
	}
	return tea.Batch(cmds...)
}

func (p *RunPage) autoRunReady(id string) bool {
	return p.runner.AutoExecute() &&
		len(id) >= config.AutoExecuteMinLength &&
		p.store.Len() > 0 &&
		!p.runner.Running()
}

func (p *RunPage) scheduleAutoRun(id string) tea.Cmd {
	if !p.autoRunReady(id) {
		return nil
	}
	return tea.Tick(p.autoDelay, func(time.Time) tea.Msg { return autoRunMsg{target: id} })
}

func (p *RunPage) View() string {
	var top strings.Builder

	idView := p.target
	if p.input.Focused() {
		idView = p.input.View()
	} else if idView == "" {
		idView = ui.DimStyle.Render("(none)")
	}
	state := ui.Badge("IDLE", ui.Subtle)
	if p.runner.Running() {
		state = ui.PendingBadge("RUNNING")
	}

	top.WriteString(fmt.Sprintf("%-15s %s\n", "Attendance ID", idView))
	top.WriteString(fmt.Sprintf("%-15s %s\n", "Auto-execute", onOff(p.runner.AutoExecute())))
	top.WriteString(fmt.Sprintf("%-15s %d\n", "Users", p.store.Len()))
	top.WriteString(fmt.Sprintf("%-15s %s\n", "Pace", p.runner.Pace()))
	top.WriteString(fmt.Sprintf("%-15s %s", "State", state))
	if p.message != "" {
		top.WriteString("\n\n" + p.message)
	}

	panel := ui.Panel("Attendance", top.String(), p.width-4, 0, p.input.Focused())

	logTitle := fmt.Sprintf("Log %d/%d", p.log.Len(), p.log.Capacity())
	logHeight := max(p.height-lipgloss.Height(panel)-2, 5)
	p.viewport.Width = max(p.width-8, 10)
	p.viewport.Height = logHeight - 2

	body := p.viewport.View()
	if p.log.Len() == 0 {
		body = ui.DimStyle.Render("Outcomes will appear here...")
	}
	return panel + "\n" + ui.Panel(logTitle, body, p.width-4, logHeight, false)
}

// refreshLog renders log entries newest first, one line each.
func (p *RunPage) refreshLog() {
	width := max(p.width-8, 20)
	var lines []string
	for _, e := range p.log.Entries() {
		line := fmt.Sprintf("%s %s %s  %s",
			ui.DimStyle.Render(e.Timestamp.Local().Format("15:04:05")),
			ui.OutcomeBadge(e.Status),
			ui.BoldStyle.Render(e.Subject),
			e.Message)
		lines = append(lines, ui.Truncate(line, width))
	}
	p.viewport.SetContent(strings.Join(lines, "\n"))
	p.viewport.GotoTop()
}

func (p *RunPage) Name() string { return "Run" }

func (p *RunPage) ShortHelp() []key.Binding {
	if p.input.Focused() {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "set ID")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	}
	if p.runner.Running() {
		return []key.Binding{
			key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "scroll log")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "edit ID")),
		key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "mark all")),
		key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-execute")),
		key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear ID")),
		key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear log")),
	}
}

func (p *RunPage) InputCaptured() bool {
	return p.input.Focused()
}

func (p *RunPage) SetSize(w, h int) {
	p.width = w
	p.height = h
	p.refreshLog()
}

func onOff(on bool) string {
	if on {
		return ui.SuccessStyle.Render("on")
	}
	return ui.DimStyle.Render("off")
}
