package pages

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/rollcall/internal/app"
	"github.com/buckleypaul/rollcall/internal/config"
	"github.com/buckleypaul/rollcall/internal/serial"
	"github.com/buckleypaul/rollcall/internal/ui"
)

const (
	sourceScanner  = "scanner"
	maxRecentScans = 10
)

// CodeSource is the scanner as seen by the page. *serial.Scanner
// implements it.
type CodeSource interface {
	Connect(port string, baudRate int) error
	Disconnect()
	Codes() <-chan string
	Connected() bool
	PortName() string
}

type scannerConnectedMsg struct {
	port string
	err  error
}

type recentScan struct {
	code string
	at   time.Time
}

type ScannerPage struct {
	scanner   CodeSource
	cfg       *config.Config
	listening bool
	recent    []recentScan
	message   string

	width, height int
}

func NewScannerPage(scanner CodeSource, cfg *config.Config) *ScannerPage {
	return &ScannerPage{
		scanner: scanner,
		cfg:     cfg,
	}
}

func (p *ScannerPage) Init() tea.Cmd {
	if p.cfg.SerialPort == "" {
		return nil
	}
	return p.connect(p.cfg.SerialPort)
}

func (p *ScannerPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.PortSelectedMsg:
		return p, p.connect(msg.Port)

	case scannerConnectedMsg:
		state := func() tea.Msg {
			return app.ScannerStateMsg{Port: msg.port, Connected: msg.err == nil}
		}
		if msg.err != nil {
			p.message = ui.ErrorStyle.Render(fmt.Sprintf("Connect failed: %v", msg.err))
			return p, state
		}
		p.message = fmt.Sprintf("Listening on %s", msg.port)
		cmds := []tea.Cmd{state}
		if !p.listening {
			p.listening = true
			cmds = append(cmds, waitForCode(p.scanner))
		}
		return p, tea.Batch(cmds...)

	case serial.CodeScannedMsg:
		p.recent = append([]recentScan{{code: msg.Code, at: time.Now()}}, p.recent...)
		if len(p.recent) > maxRecentScans {
			p.recent = p.recent[:maxRecentScans]
		}
		code := msg.Code
		return p, tea.Batch(
			waitForCode(p.scanner),
			func() tea.Msg { return app.IdentifierMsg{ID: code, Source: sourceScanner} },
		)

	case tea.KeyMsg:
		switch msg.String() {
		case "c":
			if p.cfg.SerialPort == "" {
				p.message = ui.WarningStyle.Render("No port set. Press p in the sidebar to pick one")
				return p, nil
			}
			return p, p.connect(p.cfg.SerialPort)
		case "d":
			if !p.scanner.Connected() {
				return p, nil
			}
			port := p.scanner.PortName()
			p.scanner.Disconnect()
			p.message = fmt.Sprintf("Disconnected from %s", port)
			return p, func() tea.Msg { return app.ScannerStateMsg{Port: port} }
		case "x":
			p.recent = nil
		}
	}
	return p, nil
}

func (p *ScannerPage) connect(port string) tea.Cmd {
	p.message = fmt.Sprintf("Connecting to %s...", port)
	scanner, baud := p.scanner, p.cfg.SerialBaudRate
	return func() tea.Msg {
		return scannerConnectedMsg{port: port, err: scanner.Connect(port, baud)}
	}
}

// waitForCode blocks until the scanner delivers a code. The code channel
// outlives reconnects, so one waiter is kept alive for the page lifetime.
func waitForCode(scanner CodeSource) tea.Cmd {
	return func() tea.Msg {
		code := <-scanner.Codes()
		return serial.CodeScannedMsg{Code: code, Port: scanner.PortName()}
	}
}

func (p *ScannerPage) View() string {
	var inner strings.Builder

	port := p.cfg.SerialPort
	if port == "" {
		port = ui.DimStyle.Render("(not set)")
	}
	status := ui.Badge("DISCONNECTED", ui.Subtle)
	if p.scanner.Connected() {
		status = ui.SuccessBadge("CONNECTED")
	}
	inner.WriteString(fmt.Sprintf("%-10s %s\n", "Port", port))
	inner.WriteString(fmt.Sprintf("%-10s %d\n", "Baud", p.cfg.SerialBaudRate))
	inner.WriteString(fmt.Sprintf("%-10s %s\n", "Status", status))

	inner.WriteString("\n" + ui.BoldStyle.Render("Recent scans") + "\n")
	if len(p.recent) == 0 {
		inner.WriteString(ui.DimStyle.Render("  Nothing scanned yet"))
		inner.WriteString("\n")
	}
	for _, r := range p.recent {
		line := fmt.Sprintf("  %s  %s", ui.DimStyle.Render(r.at.Format("15:04:05")), r.code)
		inner.WriteString(ui.Truncate(line, p.width-8))
		inner.WriteString("\n")
	}

	if p.message != "" {
		inner.WriteString("\n" + p.message)
	}
	return ui.Panel("Scanner", inner.String(), p.width-4, 0, false)
}

func (p *ScannerPage) Name() string { return "Scanner" }

func (p *ScannerPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
		key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear recent")),
	}
}

func (p *ScannerPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
