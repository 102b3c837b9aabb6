package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/rollcall/internal/config"
	"github.com/buckleypaul/rollcall/internal/serial"
	"github.com/buckleypaul/rollcall/internal/store"
)

type stubPage struct {
	name     string
	capture  bool
	received []tea.Msg
	w, h     int
}

func (s *stubPage) Init() tea.Cmd { return nil }
func (s *stubPage) Update(msg tea.Msg) (Page, tea.Cmd) {
	s.received = append(s.received, msg)
	return s, nil
}
func (s *stubPage) View() string             { return s.name + " view" }
func (s *stubPage) Name() string             { return s.name }
func (s *stubPage) ShortHelp() []key.Binding { return nil }
func (s *stubPage) SetSize(w, h int)         { s.w, s.h = w, h }
func (s *stubPage) InputCaptured() bool      { return s.capture }

func newTestModel(t *testing.T) (Model, map[PageID]*stubPage, *config.Config, string) {
	t.Helper()
	stubs := map[PageID]*stubPage{}
	pages := map[PageID]Page{}
	for _, id := range PageOrder {
		s := &stubPage{name: "page" + string(rune('A'+int(id)))}
		stubs[id] = s
		pages[id] = s
	}
	cfg := config.Defaults()
	dataDir := t.TempDir()
	st := store.New(dataDir)
	m := New(pages, &cfg, st, dataDir)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), stubs, &cfg, dataDir
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestWindowSizePropagates(t *testing.T) {
	_, stubs, _, _ := newTestModel(t)
	assert.Equal(t, 120-sidebarWidth, stubs[RunPage].w)
	assert.Equal(t, 40-chromeHeight, stubs[RunPage].h)
}

func TestSidebarNavigation(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, CredentialsPage, m.activePage)

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyUp})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, SettingsPage, m.activePage, "wraps around")

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, FocusContent, m.focus)

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, FocusSidebar, m.focus)
}

func TestKeysReachActivePageOnlyWhenFocused(t *testing.T) {
	m, stubs, _, _ := newTestModel(t)

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Empty(t, stubs[RunPage].received)

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.Len(t, stubs[RunPage].received, 1)
	assert.Empty(t, stubs[CredentialsPage].received)
}

func TestInputCaptureSwallowsShortcuts(t *testing.T) {
	m, stubs, _, _ := newTestModel(t)
	stubs[RunPage].capture = true
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})

	_, cmd := update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd, "q is typed, not quit")
	require.Len(t, stubs[RunPage].received, 1)
}

func TestIdentifierUpdatesHeaderAndBroadcasts(t *testing.T) {
	m, stubs, _, _ := newTestModel(t)

	m, _ = update(m, IdentifierMsg{ID: "ATT-77", Source: "scanner"})

	assert.Equal(t, "ATT-77", m.header.target)
	for _, id := range PageOrder {
		require.Len(t, stubs[id].received, 1)
		assert.Equal(t, IdentifierMsg{ID: "ATT-77", Source: "scanner"}, stubs[id].received[0])
	}
	assert.Contains(t, m.View(), "Attendance ID: ATT-77")
}

func TestRunAndScannerStateInHeader(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	m, _ = update(m, RunStateMsg{Running: true, Target: "ATT-1"})
	assert.True(t, m.header.running)
	m, _ = update(m, ScannerStateMsg{Port: "/dev/ttyACM0", Connected: true})
	assert.Equal(t, "/dev/ttyACM0", m.header.port)
	m, _ = update(m, ScannerStateMsg{Port: "/dev/ttyACM0"})
	assert.Equal(t, "", m.header.port)
}

func TestPortPickerFlow(t *testing.T) {
	m, _, cfg, dataDir := newTestModel(t)

	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	require.NotNil(t, m.picker)
	require.NotNil(t, cmd)

	m, _ = update(m, serial.PortsLoadedMsg{Ports: []serial.PortInfo{
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "05e0", PID: "1200", Product: "Scanner"},
		{Name: "/dev/ttyS0"},
	}})
	require.Len(t, m.picker.items, 2)
	assert.Equal(t, "Scanner 05e0:1200", m.picker.items[0].Desc)

	m, cmd = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	selected, ok := cmd().(PickerSelectedMsg)
	require.True(t, ok)

	m, cmd = update(m, selected)
	assert.Nil(t, m.picker)
	assert.Equal(t, "/dev/ttyACM0", cfg.SerialPort)
	assert.Equal(t, PortSelectedMsg{Port: "/dev/ttyACM0"}, cmd())

	_, err := os.Stat(filepath.Join(dataDir, "config.json"))
	assert.NoError(t, err, "selected port is persisted")
}

func TestPortPickerError(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})

	m, _ = update(m, serial.PortsLoadedMsg{Err: errors.New("enumeration failed")})
	assert.Contains(t, m.picker.View(), "enumeration failed")

	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEsc})
	m, _ = update(m, cmd())
	assert.Nil(t, m.picker)
}

func TestHelpToggle(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Keys: pageA")
}
