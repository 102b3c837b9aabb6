package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/rollcall/internal/config"
	"github.com/buckleypaul/rollcall/internal/logger"
	"github.com/buckleypaul/rollcall/internal/serial"
	"github.com/buckleypaul/rollcall/internal/store"
	"github.com/buckleypaul/rollcall/internal/ui"
)

type FocusArea int

const (
	FocusSidebar FocusArea = iota
	FocusContent
)

// chromeHeight is the header line plus the status bar.
const chromeHeight = 2

type Model struct {
	pages      map[PageID]Page
	activePage PageID
	focus      FocusArea
	width      int
	height     int
	showHelp   bool
	picker     *Picker
	cfg        *config.Config
	dataDir    string
	store      *store.Store
	header     headerState
}

func New(pages map[PageID]Page, cfg *config.Config, st *store.Store, dataDir string) Model {
	return Model{
		pages:   pages,
		cfg:     cfg,
		store:   st,
		dataDir: dataDir,
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range PageOrder {
		if p, ok := m.pages[id]; ok {
			if cmd := p.Init(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.contentSize()
		for _, p := range m.pages {
			p.SetSize(w, h)
		}
		return m, nil

	case serial.PortsLoadedMsg:
		if m.picker == nil {
			return m, nil
		}
		if msg.Err != nil {
			m.picker.SetError(msg.Err)
			return m, nil
		}
		var items []PickerItem
		for _, p := range msg.Ports {
			desc := ""
			if p.IsUSB {
				desc = p.Product
				if p.VID != "" {
					desc += " " + p.VID + ":" + p.PID
				}
			}
			items = append(items, PickerItem{Label: p.Name, Value: p.Name, Desc: desc})
		}
		m.picker.SetItems(items)
		return m, nil

	case PickerSelectedMsg:
		m.picker = nil
		m.cfg.SerialPort = msg.Value
		if err := config.Save(*m.cfg, m.dataDir, false); err != nil {
			logger.ComponentLogger("app").Warnw("saving selected port failed", logger.FieldError, err)
		}
		port := msg.Value
		return m, func() tea.Msg { return PortSelectedMsg{Port: port} }

	case PickerClosedMsg:
		m.picker = nil
		return m, nil

	case IdentifierMsg:
		m.header.target = msg.ID
	case RunStateMsg:
		m.header.running = msg.Running
	case ScannerStateMsg:
		m.header.port = ""
		if msg.Connected {
			m.header.port = msg.Port
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Non-key messages (command results, etc.): forward to all pages
	// so responses reach the page that initiated the command
	return m, m.broadcast(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker != nil {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}

	// When a page has an active text input, forward all keys
	// directly to the page. Only ctrl+c still quits.
	if m.focus == FocusContent {
		if ic, ok := m.pages[m.activePage].(InputCapturer); ok && ic.InputCaptured() {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, m.updateActive(msg)
		}
	}

	switch {
	case key.Matches(msg, GlobalKeys.Quit):
		return m, tea.Quit
	case key.Matches(msg, GlobalKeys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, GlobalKeys.ToggleFocus):
		if m.focus == FocusSidebar {
			m.focus = FocusContent
			return m, nil
		}
	}

	if m.focus == FocusSidebar {
		if key.Matches(msg, GlobalKeys.PortPicker) {
			m.picker = NewPicker("Scanner Port")
			m.picker.SetSize(m.contentSize())
			return m, serial.LoadPorts()
		}
		switch msg.String() {
		case "up":
			m.prevPage()
		case "down":
			m.nextPage()
		case "enter", "right":
			m.focus = FocusContent
		}
		return m, nil
	}

	if msg.String() == "left" {
		m.focus = FocusSidebar
		return m, nil
	}
	return m, m.updateActive(msg)
}

func (m Model) updateActive(msg tea.Msg) tea.Cmd {
	page := m.pages[m.activePage]
	newPage, cmd := page.Update(msg)
	m.pages[m.activePage] = newPage
	return cmd
}

func (m Model) broadcast(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for id, page := range m.pages {
		newPage, cmd := page.Update(msg)
		m.pages[id] = newPage
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (m Model) contentSize() (int, int) {
	return m.width - sidebarWidth, m.height - chromeHeight
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	contentWidth, contentHeight := m.contentSize()
	page := m.pages[m.activePage]

	h := m.header
	if m.store != nil {
		h.credentials = m.store.Len()
	}
	header := renderHeader(h, m.width, m.focus == FocusSidebar)
	sidebar := renderSidebar(PageOrder, m.activePage, m.pages, contentHeight, m.focus == FocusSidebar)

	body := page.View()
	if m.showHelp {
		body = renderHelp(page.Name(), page.ShortHelp(), contentWidth-4)
	}
	content := ui.ContentStyle.
		Width(contentWidth).
		Height(contentHeight).
		Render(body)

	if m.picker != nil {
		m.picker.SetSize(contentWidth, contentHeight)
		content = lipgloss.Place(
			contentWidth, contentHeight,
			lipgloss.Center, lipgloss.Center,
			m.picker.View(),
		)
	}

	statusBar := renderStatusBar(page.ShortHelp(), m.width, m.focus)

	return renderLayout(header, sidebar, content, statusBar)
}

func (m *Model) nextPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i+1)%len(PageOrder)]
			return
		}
	}
}

func (m *Model) prevPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i-1+len(PageOrder))%len(PageOrder)]
			return
		}
	}
}
