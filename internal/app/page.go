package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// PageID identifies each page in the application.
type PageID int

const (
	RunPage PageID = iota
	CredentialsPage
	ScannerPage
	HistoryPage
	SettingsPage
)

var PageOrder = []PageID{
	RunPage,
	CredentialsPage,
	ScannerPage,
	HistoryPage,
	SettingsPage,
}

// Page is the interface every page in the application implements.
type Page interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Page, tea.Cmd)
	View() string
	Name() string
	ShortHelp() []key.Binding
	SetSize(width, height int)
}

// InputCapturer is an optional interface for pages with text inputs.
// When InputCaptured returns true, the app forwards all keys directly
// to the page instead of processing shortcuts like q, ?, left, etc.
type InputCapturer interface {
	InputCaptured() bool
}

// IdentifierMsg is broadcast when a new attendance identifier arrives,
// either typed on the run page or read by the scanner.
type IdentifierMsg struct {
	ID     string
	Source string
}

// PortSelectedMsg is broadcast when a scanner port is picked.
type PortSelectedMsg struct {
	Port string
}

// RunStateMsg is broadcast when a batch run starts or stops.
type RunStateMsg struct {
	Running bool
	Target  string
}

// RunCompletedMsg is broadcast after a batch run has been applied.
type RunCompletedMsg struct {
	Target    string
	Succeeded int
	Failed    int
}

// ScannerStateMsg is broadcast when the scanner connects or disconnects.
type ScannerStateMsg struct {
	Port      string
	Connected bool
}
