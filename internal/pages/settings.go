package pages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/rollcall/internal/app"
	"github.com/buckleypaul/rollcall/internal/batch"
	"github.com/buckleypaul/rollcall/internal/config"
	"github.com/buckleypaul/rollcall/internal/ui"
)

type settingField struct {
	label string
	key   string
	// restart marks values read only at startup.
	restart bool
}

var settingFields = []settingField{
	{"Pace (ms)", "pace_ms", false},
	{"Auto-execute", "auto_execute", false},
	{"Serial Port", "serial_port", false},
	{"Serial Baud Rate", "serial_baud_rate", false},
	{"Endpoint", "endpoint", true},
	{"Origin", "origin", true},
	{"Referer", "referer", true},
	{"User Agent", "user_agent", true},
	{"Log Capacity", "log_capacity", true},
}

type SettingsPage struct {
	cfg     *config.Config
	dataDir string
	runner  *batch.Runner
	cursor  int
	editing bool
	input   textinput.Model
	message string

	width, height int
}

func NewSettingsPage(cfg *config.Config, dataDir string, runner *batch.Runner) *SettingsPage {
	ti := textinput.New()
	ti.CharLimit = 256
	return &SettingsPage{
		cfg:     cfg,
		dataDir: dataDir,
		runner:  runner,
		input:   ti,
	}
}

func (p *SettingsPage) Init() tea.Cmd { return nil }

func (p *SettingsPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.PortSelectedMsg:
		p.cfg.SerialPort = msg.Port
		return p, nil

	case tea.KeyMsg:
		if p.editing {
			switch msg.String() {
			case "enter":
				p.applyValue(p.input.Value())
				p.editing = false
				p.input.Blur()
				return p, nil
			case "esc":
				p.editing = false
				p.input.Blur()
				return p, nil
			}
			var cmd tea.Cmd
			p.input, cmd = p.input.Update(msg)
			return p, cmd
		}

		switch msg.String() {
		case "down":
			if p.cursor < len(settingFields)-1 {
				p.cursor++
			}
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "enter", "e":
			p.editing = true
			p.input.SetValue(p.getValue(p.cursor))
			return p, p.input.Focus()
		case "s":
			if err := config.Save(*p.cfg, p.dataDir, false); err != nil {
				p.message = fmt.Sprintf("Error saving: %v", err)
			} else {
				p.message = "Settings saved"
			}
		case "S":
			if err := config.Save(*p.cfg, "", true); err != nil {
				p.message = fmt.Sprintf("Error saving: %v", err)
			} else {
				p.message = "Settings saved globally"
			}
		}
	}
	return p, nil
}

func (p *SettingsPage) View() string {
	var inner strings.Builder

	for i, f := range settingFields {
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}

		val := p.getValue(i)
		if val == "" {
			val = ui.DimStyle.Render("(not set)")
		}
		if f.restart {
			val += ui.DimStyle.Render("  *")
		}

		line := fmt.Sprintf("%s%-18s %s", cursor, f.label, val)
		inner.WriteString(ui.Truncate(line, p.width-8))
		inner.WriteString("\n")
	}
	inner.WriteString("\n" + ui.DimStyle.Render("* applies on next start"))
	inner.WriteString("\n")

	if p.editing {
		inner.WriteString("\n")
		inner.WriteString(fmt.Sprintf("  Edit %s:\n", settingFields[p.cursor].label))
		inner.WriteString("  " + p.input.View())
		inner.WriteString("\n")
	}

	if p.message != "" {
		inner.WriteString("\n  " + p.message)
	}

	return ui.Panel("Settings", inner.String(), p.width-4, 0, p.editing)
}

func (p *SettingsPage) Name() string { return "Settings" }

func (p *SettingsPage) ShortHelp() []key.Binding {
	if p.editing {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit")),
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "save global")),
	}
}

func (p *SettingsPage) InputCaptured() bool {
	return p.editing
}

func (p *SettingsPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}

func (p *SettingsPage) getValue(idx int) string {
	switch settingFields[idx].key {
	case "pace_ms":
		return strconv.Itoa(p.cfg.PaceMS)
	case "auto_execute":
		if p.runner.AutoExecute() {
			return "on"
		}
		return "off"
	case "serial_port":
		return p.cfg.SerialPort
	case "serial_baud_rate":
		return strconv.Itoa(p.cfg.SerialBaudRate)
	case "endpoint":
		return p.cfg.Endpoint
	case "origin":
		return p.cfg.Origin
	case "referer":
		return p.cfg.Referer
	case "user_agent":
		return p.cfg.UserAgent
	case "log_capacity":
		return strconv.Itoa(p.cfg.LogCapacity)
	}
	return ""
}

func (p *SettingsPage) applyValue(val string) {
	val = strings.TrimSpace(val)
	field := settingFields[p.cursor]
	switch field.key {
	case "pace_ms":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			p.message = fmt.Sprintf("%s must be a positive number", field.label)
			return
		}
		p.cfg.PaceMS = n
		p.runner.SetPace(p.cfg.Pace())
	case "auto_execute":
		on, err := parseToggle(val)
		if err != nil {
			p.message = fmt.Sprintf("%s must be on or off", field.label)
			return
		}
		p.cfg.AutoExecute = on
		p.runner.SetAutoExecute(on)
	case "serial_port":
		p.cfg.SerialPort = val
	case "serial_baud_rate":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			p.message = fmt.Sprintf("%s must be a positive number", field.label)
			return
		}
		p.cfg.SerialBaudRate = n
	case "endpoint":
		p.cfg.Endpoint = val
	case "origin":
		p.cfg.Origin = val
	case "referer":
		p.cfg.Referer = val
	case "user_agent":
		p.cfg.UserAgent = val
	case "log_capacity":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			p.message = fmt.Sprintf("%s must be a positive number", field.label)
			return
		}
		p.cfg.LogCapacity = n
	}
	p.message = fmt.Sprintf("%s updated", field.label)
}

func parseToggle(val string) (bool, error) {
	switch strings.ToLower(val) {
	case "on", "yes", "y":
		return true, nil
	case "off", "no", "n":
		return false, nil
	}
	return strconv.ParseBool(val)
}
