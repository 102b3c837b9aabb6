package pages

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/rollcall/internal/app"
	"github.com/buckleypaul/rollcall/internal/attendance"
	"github.com/buckleypaul/rollcall/internal/errors"
	"github.com/buckleypaul/rollcall/internal/store"
	"github.com/buckleypaul/rollcall/internal/ui"
)

type credentialsMode int

const (
	credentialsBrowse credentialsMode = iota
	credentialsAdd
	credentialsImport
	credentialsConfirmDelete
)

const (
	addFieldToken = iota
	addFieldStudent
	addFieldName
	addFieldCount
)

type CredentialsPage struct {
	store      *store.Store
	mode       credentialsMode
	cursor     int
	inputs     [addFieldCount]textinput.Model
	focused    int
	importArea textarea.Model
	message    string

	width, height int
}

func NewCredentialsPage(st *store.Store) *CredentialsPage {
	var inputs [addFieldCount]textinput.Model
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 1024
		inputs[i] = ti
	}
	inputs[addFieldToken].Placeholder = "connect.sid value (required)"
	inputs[addFieldStudent].Placeholder = "student id (optional)"
	inputs[addFieldName].Placeholder = "display name (optional)"

	ta := textarea.New()
	ta.Placeholder = `[{"connectSid": "s%3A...", "stuId": "..."}]  or a path to a JSON file`
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	return &CredentialsPage{
		store:      st,
		inputs:     inputs,
		importArea: ta,
	}
}

func (p *CredentialsPage) Init() tea.Cmd { return nil }

func (p *CredentialsPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.RunCompletedMsg:
		// lastUsed stamps changed; the list re-reads the store on View.
		return p, nil
	case tea.KeyMsg:
		switch p.mode {
		case credentialsAdd:
			return p.handleAddKey(msg)
		case credentialsImport:
			return p.handleImportKey(msg)
		case credentialsConfirmDelete:
			return p.handleDeleteKey(msg)
		}
		return p.handleBrowseKey(msg)
	}

	if p.mode == credentialsImport {
		var cmd tea.Cmd
		p.importArea, cmd = p.importArea.Update(msg)
		return p, cmd
	}
	return p, nil
}

func (p *CredentialsPage) handleBrowseKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	n := p.store.Len()
	switch msg.String() {
	case "down":
		if p.cursor < n-1 {
			p.cursor++
		}
	case "up":
		if p.cursor > 0 {
			p.cursor--
		}
	case "a":
		p.mode = credentialsAdd
		p.message = ""
		for i := range p.inputs {
			p.inputs[i].SetValue("")
			p.inputs[i].Blur()
		}
		p.focused = addFieldToken
		return p, p.inputs[addFieldToken].Focus()
	case "I":
		p.mode = credentialsImport
		p.message = ""
		p.importArea.Reset()
		return p, p.importArea.Focus()
	case "d", "delete":
		if n > 0 {
			p.mode = credentialsConfirmDelete
		}
	}
	return p, nil
}

func (p *CredentialsPage) handleAddKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	switch msg.String() {
	case "esc":
		p.mode = credentialsBrowse
		p.inputs[p.focused].Blur()
		return p, nil
	case "tab", "down":
		return p, p.focusField((p.focused + 1) % addFieldCount)
	case "shift+tab", "up":
		return p, p.focusField((p.focused + addFieldCount - 1) % addFieldCount)
	case "enter":
		if p.focused < addFieldCount-1 {
			return p, p.focusField(p.focused + 1)
		}
		p.submitAdd()
		return p, nil
	case "ctrl+s":
		p.submitAdd()
		return p, nil
	}
	var cmd tea.Cmd
	p.inputs[p.focused], cmd = p.inputs[p.focused].Update(msg)
	return p, cmd
}

func (p *CredentialsPage) focusField(i int) tea.Cmd {
	p.inputs[p.focused].Blur()
	p.focused = i
	return p.inputs[i].Focus()
}

func (p *CredentialsPage) submitAdd() {
	added, ok, err := p.store.Add(store.Credential{
		SessionToken: p.inputs[addFieldToken].Value(),
		StudentID:    p.inputs[addFieldStudent].Value(),
		Name:         p.inputs[addFieldName].Value(),
	})
	switch {
	case err != nil:
		p.message = ui.ErrorStyle.Render(fmt.Sprintf("Error saving: %v", err))
		return
	case !ok:
		p.message = ui.WarningStyle.Render("Session token is required")
		return
	}
	p.inputs[p.focused].Blur()
	p.mode = credentialsBrowse
	p.cursor = p.store.Len() - 1
	p.message = fmt.Sprintf("Added %s", added.Name)
}

func (p *CredentialsPage) handleImportKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	switch msg.String() {
	case "esc":
		p.mode = credentialsBrowse
		p.importArea.Blur()
		return p, nil
	case "ctrl+s":
		p.submitImport()
		return p, nil
	}
	var cmd tea.Cmd
	p.importArea, cmd = p.importArea.Update(msg)
	return p, cmd
}

// submitImport accepts pasted JSON, or a single line naming a JSON file.
func (p *CredentialsPage) submitImport() {
	raw := strings.TrimSpace(p.importArea.Value())
	if raw != "" && !strings.ContainsAny(raw, "[{\n") {
		data, err := os.ReadFile(raw)
		if err != nil {
			p.message = ui.ErrorStyle.Render(fmt.Sprintf("Error reading %s: %v", raw, err))
			return
		}
		raw = string(data)
	}

	n, err := p.store.BulkImport([]byte(raw))
	if err != nil {
		if errors.Is(err, store.ErrMalformedInput) {
			p.message = ui.ErrorStyle.Render("Invalid JSON format or missing connect.sid")
		} else {
			p.message = ui.ErrorStyle.Render(fmt.Sprintf("Error saving: %v", err))
		}
		return
	}
	p.importArea.Blur()
	p.mode = credentialsBrowse
	p.message = fmt.Sprintf("Imported %d users", n)
}

func (p *CredentialsPage) handleDeleteKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	p.mode = credentialsBrowse
	if msg.String() != "y" {
		p.message = ""
		return p, nil
	}
	creds := p.store.Credentials()
	if p.cursor >= len(creds) {
		return p, nil
	}
	target := creds[p.cursor]
	if err := p.store.Remove(target.ID); err != nil {
		p.message = ui.ErrorStyle.Render(fmt.Sprintf("Error saving: %v", err))
		return p, nil
	}
	p.message = fmt.Sprintf("Removed %s", target.Name)
	if p.cursor > 0 && p.cursor >= p.store.Len() {
		p.cursor--
	}
	return p, nil
}

func (p *CredentialsPage) View() string {
	switch p.mode {
	case credentialsAdd:
		return p.viewAdd()
	case credentialsImport:
		return p.viewImport()
	}

	creds := p.store.Credentials()
	var inner strings.Builder
	if len(creds) == 0 {
		inner.WriteString(ui.DimStyle.Render("No users yet. Press a to add one or I to import."))
		inner.WriteString("\n")
	}
	for i, c := range creds {
		cursor := "  "
		if i == p.cursor {
			cursor = ui.CursorStyle.Render("> ")
		}
		student := c.StudentID
		if student == "" {
			student = "-"
		}
		used := ui.DimStyle.Render("never")
		if c.LastUsedAt != nil {
			used = c.LastUsedAt.Local().Format("Jan 02 15:04")
		}
		line := fmt.Sprintf("%s%-12s %-14s %-14s %s",
			cursor, c.Name, student, attendance.TokenPreview(c.SessionToken), used)
		inner.WriteString(ui.Truncate(line, p.width-8))
		inner.WriteString("\n")
	}

	if p.mode == credentialsConfirmDelete && p.cursor < len(creds) {
		inner.WriteString("\n")
		inner.WriteString(ui.WarningStyle.Render(fmt.Sprintf("Remove %s? (y/n)", creds[p.cursor].Name)))
	}
	if p.message != "" {
		inner.WriteString("\n" + p.message)
	}

	title := fmt.Sprintf("Users (%d)", len(creds))
	return ui.Panel(title, inner.String(), p.width-4, 0, p.mode == credentialsConfirmDelete)
}

func (p *CredentialsPage) viewAdd() string {
	labels := [addFieldCount]string{"Session token", "Student ID", "Name"}
	var inner strings.Builder
	for i, in := range p.inputs {
		marker := "  "
		if i == p.focused {
			marker = ui.CursorStyle.Render("> ")
		}
		inner.WriteString(fmt.Sprintf("%s%-14s %s\n", marker, labels[i], in.View()))
	}
	if p.message != "" {
		inner.WriteString("\n" + p.message)
	}
	return ui.Panel("Add User", inner.String(), p.width-4, 0, true)
}

func (p *CredentialsPage) viewImport() string {
	p.importArea.SetWidth(max(p.width-10, 20))
	p.importArea.SetHeight(max(p.height-8, 4))
	body := p.importArea.View()
	if p.message != "" {
		body += "\n" + p.message
	}
	return ui.Panel("Import Users", body, p.width-4, 0, true)
}

func (p *CredentialsPage) Name() string { return "Users" }

func (p *CredentialsPage) ShortHelp() []key.Binding {
	switch p.mode {
	case credentialsAdd:
		return []key.Binding{
			key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
			key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	case credentialsImport:
		return []key.Binding{
			key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "import")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	case credentialsConfirmDelete:
		return []key.Binding{
			key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
			key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "cancel")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		key.NewBinding(key.WithKeys("I"), key.WithHelp("I", "import")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove")),
	}
}

func (p *CredentialsPage) InputCaptured() bool {
	return p.mode == credentialsAdd || p.mode == credentialsImport
}

func (p *CredentialsPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
