package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/rollcall/internal/ui"
)

const sidebarWidth = 22 // 20 content + 2 border/padding

// headerState is what the top bar summarizes.
type headerState struct {
	target      string
	credentials int
	running     bool
	port        string
}

func renderHeader(h headerState, width int, sidebarFocused bool) string {
	target := h.target
	if target == "" {
		target = "(none)"
	}
	port := h.port
	if port == "" {
		port = "(none)"
	}
	state := "idle"
	if h.running {
		state = ui.WarningStyle.Render("running")
	}
	content := fmt.Sprintf("Attendance ID: %s  Users: %d  Run: %s  Scanner: %s",
		target, h.credentials, state, port)
	hint := ""
	if sidebarFocused {
		hint = ui.DimStyle.Render("  [p] port")
	}
	return ui.StatusBarStyle.Width(width).Render(content + hint)
}

func renderSidebar(pages []PageID, active PageID, pageMap map[PageID]Page, height int, focused bool) string {
	var b strings.Builder
	if focused {
		b.WriteString(ui.BoldStyle.Render("rollcall [FOCUSED]"))
	} else {
		b.WriteString(ui.TitleStyle.Render("rollcall"))
	}
	b.WriteString("\n\n")

	for _, id := range pages {
		p := pageMap[id]
		if id == active {
			b.WriteString(ui.SidebarActiveStyle.Render("▸ " + p.Name()))
		} else {
			b.WriteString(ui.SidebarItemStyle.Render("  " + p.Name()))
		}
		b.WriteString("\n")
	}

	style := ui.SidebarStyle.Height(height)
	if focused {
		style = style.BorderForeground(ui.Primary)
	}
	return style.Render(b.String())
}

func renderStatusBar(pageHelp []key.Binding, width int, focus FocusArea) string {
	var parts []string

	if focus == FocusSidebar {
		parts = append(parts,
			ui.StatusKey("↑/↓", "navigate"),
			ui.StatusKey("enter", "select"),
			ui.StatusKey("p", "port"),
		)
	} else {
		for _, kb := range pageHelp {
			if kb.Enabled() {
				parts = append(parts, ui.StatusKey(kb.Help().Key, kb.Help().Desc))
			}
		}
	}

	parts = append(parts,
		ui.StatusKey("tab", "focus"),
		ui.StatusKey("?", "help"),
		ui.StatusKey("q", "quit"),
	)

	return ui.StatusBarStyle.Width(width).Render(strings.Join(parts, "  "))
}

func renderHelp(pageName string, pageHelp []key.Binding, width int) string {
	var b strings.Builder
	b.WriteString(ui.Title("Keys: " + pageName))
	b.WriteString("\n")
	for _, kb := range pageHelp {
		if kb.Enabled() {
			b.WriteString(fmt.Sprintf("  %-10s %s\n", kb.Help().Key, kb.Help().Desc))
		}
	}
	b.WriteString("\n")
	for _, kb := range []key.Binding{GlobalKeys.ToggleFocus, GlobalKeys.PortPicker, GlobalKeys.Help, GlobalKeys.Quit} {
		b.WriteString(fmt.Sprintf("  %-10s %s\n", kb.Help().Key, kb.Help().Desc))
	}
	return ui.Panel("Help", b.String(), width, 0, true)
}

func renderLayout(header, sidebar, content, statusBar string) string {
	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	return lipgloss.JoinVertical(lipgloss.Left, header, main, statusBar)
}
