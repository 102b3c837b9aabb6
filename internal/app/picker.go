package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/rollcall/internal/ui"
)

// PickerItem represents a selectable item in the picker.
type PickerItem struct {
	Label string // Display text (port name)
	Value string // Selection value
	Desc  string // Optional secondary text (product, USB ids)
}

// PickerSelectedMsg is sent when the user selects an item.
type PickerSelectedMsg struct {
	Value string
}

// PickerClosedMsg is sent when the user closes the picker without selecting.
type PickerClosedMsg struct{}

// Picker is a filtered-list overlay component. Pressing enter with no
// match selects the typed text, so ports the enumerator misses can still
// be used.
type Picker struct {
	title    string
	items    []PickerItem
	filtered []PickerItem
	input    textinput.Model
	cursor   int
	width    int
	height   int
	loading  bool
	err      error
}

const maxPickerItems = 12

// NewPicker creates a new picker overlay in the loading state.
func NewPicker(title string) *Picker {
	ti := textinput.New()
	ti.Placeholder = "type to filter or enter a path..."
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 128

	return &Picker{
		title:   title,
		input:   ti,
		loading: true,
	}
}

// SetItems populates the picker with items.
func (p *Picker) SetItems(items []PickerItem) {
	p.loading = false
	p.items = items
	p.filter()
}

// SetError records a failed item load.
func (p *Picker) SetError(err error) {
	p.loading = false
	p.err = err
}

// SetSize sets the available dimensions.
func (p *Picker) SetSize(w, h int) {
	p.width = w
	p.height = h
}

// Update handles input for the picker.
func (p *Picker) Update(msg tea.Msg) (*Picker, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return p, func() tea.Msg { return PickerClosedMsg{} }
		case "enter":
			value := ""
			if len(p.filtered) > 0 && p.cursor < len(p.filtered) {
				value = p.filtered[p.cursor].Value
			} else {
				value = strings.TrimSpace(p.input.Value())
			}
			if value == "" {
				return p, nil
			}
			return p, func() tea.Msg { return PickerSelectedMsg{Value: value} }
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil
		case "down":
			if p.cursor < len(p.filtered)-1 {
				p.cursor++
			}
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.filter()
	return p, cmd
}

// View renders the picker overlay.
func (p *Picker) View() string {
	boxWidth := min(max(p.width-4, 30), 60)
	innerWidth := boxWidth - 4 // border + padding

	var b strings.Builder

	p.input.Width = innerWidth - 3 // prompt "> "
	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	switch {
	case p.loading:
		b.WriteString(ui.DimStyle.Render("  Scanning ports..."))
		b.WriteString("\n")
	case p.err != nil:
		b.WriteString(ui.ErrorStyle.Render(ui.Truncate("  "+p.err.Error(), innerWidth)))
		b.WriteString("\n")
	case len(p.filtered) == 0:
		if p.input.Value() != "" {
			b.WriteString(ui.DimStyle.Render("  enter: use typed path"))
		} else {
			b.WriteString(ui.DimStyle.Render("  No ports found"))
		}
		b.WriteString("\n")
	default:
		p.renderItems(&b, innerWidth)
	}

	b.WriteString("\n")
	footer := fmt.Sprintf("(%d/%d ports)  esc:close", len(p.filtered), len(p.items))
	b.WriteString(ui.DimStyle.Render(footer))

	box := lipgloss.NewStyle().
		Width(boxWidth).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ui.Primary).
		Padding(1, 1).
		Render(b.String())

	return p.titleBorder(box)
}

func (p *Picker) renderItems(b *strings.Builder, innerWidth int) {
	visible := min(maxPickerItems, len(p.filtered))

	// Scroll window around cursor
	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	end := min(start+visible, len(p.filtered))

	selectedStyle := lipgloss.NewStyle().Foreground(ui.Primary).Bold(true)

	for i := start; i < end; i++ {
		item := p.filtered[i]
		label := item.Label
		if item.Desc != "" {
			label += "  " + ui.DimStyle.Render(item.Desc)
		}
		label = ui.Truncate(label, innerWidth-2)

		if i == p.cursor {
			b.WriteString(selectedStyle.Render("> ") + label)
		} else {
			b.WriteString("  " + label)
		}
		b.WriteString("\n")
	}
}

// titleBorder writes the title into the top border segment.
func (p *Picker) titleBorder(box string) string {
	titleStr := lipgloss.NewStyle().
		Foreground(ui.Primary).
		Bold(true).
		Render(" " + p.title + " ")

	lines := strings.Split(box, "\n")
	if len(lines) == 0 {
		return box
	}
	runes := []rune(lines[0])
	titleRunes := []rune(titleStr)
	const insertPos = 3
	if insertPos+len(titleRunes) < len(runes) {
		result := make([]rune, 0, len(runes))
		result = append(result, runes[:insertPos]...)
		result = append(result, titleRunes...)
		result = append(result, runes[insertPos+len(titleRunes):]...)
		lines[0] = string(result)
	}
	return strings.Join(lines, "\n")
}

func (p *Picker) filter() {
	query := strings.ToLower(p.input.Value())
	if query == "" {
		p.filtered = p.items
	} else {
		p.filtered = nil
		for _, item := range p.items {
			if fuzzyMatch(strings.ToLower(item.Label), query) {
				p.filtered = append(p.filtered, item)
			}
		}
	}
	p.cursor = max(min(p.cursor, len(p.filtered)-1), 0)
}

// fuzzyMatch checks if all characters in query appear in s in order.
func fuzzyMatch(s, query string) bool {
	qi := 0
	for i := 0; i < len(s) && qi < len(query); i++ {
		if s[i] == query[qi] {
			qi++
		}
	}
	return qi == len(query)
}
