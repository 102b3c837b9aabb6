package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/rollcall/internal/app"
	"github.com/buckleypaul/rollcall/internal/store"
	"github.com/buckleypaul/rollcall/internal/ui"
)

type historyLoadedMsg struct {
	runs []store.RunRecord
	err  error
}

type HistoryPage struct {
	store   *store.Store
	runs    []store.RunRecord
	cursor  int
	offset  int
	message string

	width, height int
}

func NewHistoryPage(st *store.Store) *HistoryPage {
	return &HistoryPage{store: st}
}

func (p *HistoryPage) Init() tea.Cmd { return p.load() }

func (p *HistoryPage) load() tea.Cmd {
	st := p.store
	return func() tea.Msg {
		runs, err := st.Runs()
		return historyLoadedMsg{runs: runs, err: err}
	}
}

func (p *HistoryPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.RunCompletedMsg:
		return p, p.load()

	case historyLoadedMsg:
		if msg.err != nil {
			p.message = ui.ErrorStyle.Render(fmt.Sprintf("Error loading history: %v", msg.err))
			return p, nil
		}
		p.message = ""
		// newest first
		p.runs = make([]store.RunRecord, len(msg.runs))
		for i, r := range msg.runs {
			p.runs[len(msg.runs)-1-i] = r
		}
		p.cursor = 0
		p.offset = 0
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "down":
			if p.cursor < len(p.runs)-1 {
				p.cursor++
			}
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "r":
			return p, p.load()
		}
		p.scroll()
	}
	return p, nil
}

func (p *HistoryPage) visibleRows() int {
	return max(p.height-8, 3)
}

func (p *HistoryPage) scroll() {
	rows := p.visibleRows()
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+rows {
		p.offset = p.cursor - rows + 1
	}
}

func (p *HistoryPage) View() string {
	var inner strings.Builder

	if len(p.runs) == 0 {
		inner.WriteString(ui.DimStyle.Render("No runs recorded yet."))
		inner.WriteString("\n")
	} else {
		header := fmt.Sprintf("  %-16s %-20s %5s %5s %5s  %s", "Started", "Attendance ID", "Total", "OK", "Fail", "Took")
		inner.WriteString(ui.BoldStyle.Render(ui.Truncate(header, p.width-8)))
		inner.WriteString("\n")
	}

	end := min(p.offset+p.visibleRows(), len(p.runs))
	for i := p.offset; i < end; i++ {
		r := p.runs[i]
		cursor := "  "
		if i == p.cursor {
			cursor = ui.CursorStyle.Render("> ")
		}
		failed := fmt.Sprintf("%5d", r.Failed)
		if r.Failed > 0 {
			failed = ui.ErrorStyle.Render(failed)
		}
		line := fmt.Sprintf("%s%-16s %-20s %5d %5d %s  %s",
			cursor,
			r.StartedAt.Local().Format("Jan 02 15:04:05"),
			ui.Truncate(r.Target, 20),
			r.Total, r.Succeeded, failed, r.Duration)
		inner.WriteString(ui.Truncate(line, p.width-8))
		inner.WriteString("\n")
	}

	if p.message != "" {
		inner.WriteString("\n" + p.message)
	}
	return ui.Panel(fmt.Sprintf("Run History (%d)", len(p.runs)), inner.String(), p.width-4, 0, false)
}

func (p *HistoryPage) Name() string { return "History" }

func (p *HistoryPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "select")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	}
}

func (p *HistoryPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
