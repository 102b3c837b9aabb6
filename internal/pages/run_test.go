package pages

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/rollcall/internal/app"
	"github.com/buckleypaul/rollcall/internal/outcome"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRunPageRequiresIdentifier(t *testing.T) {
	f := newRunFixture(t, "tok-a")

	_, cmd := f.page.Update(tea.KeyMsg{Type: tea.KeyCtrlR})

	assert.Nil(t, cmd)
	assert.Contains(t, f.page.message, "Set an attendance ID first")
	assert.Equal(t, 0, f.sub.callCount())
	assert.Equal(t, 0, f.log.Len())
}

func TestRunPageIgnoresSecondStartWhileRunning(t *testing.T) {
	f := newRunFixture(t, "tok-a", "tok-b")

	f.page.Update(app.IdentifierMsg{ID: "ATT-2024", Source: sourceManual})
	_, first := f.page.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, first)
	_, second := f.page.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Nil(t, second)

	f.pump(t, first)

	assert.Equal(t, 2, f.sub.callCount())
	assert.Equal(t, 4, f.log.Len())
	runs, err := f.store.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunPageMarksEveryUser(t *testing.T) {
	f := newRunFixture(t, "tok-a", "tok-b", "tok-c")
	f.sub.failOn["tok-b"] = 401

	f.page.Update(app.IdentifierMsg{ID: "ATT-2024", Source: sourceScanner})
	_, cmd := f.page.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	broadcast := f.pump(t, cmd)

	assert.Equal(t, 3, f.sub.callCount())
	require.Equal(t, 6, f.log.Len())

	entries := f.log.Entries()
	assert.Equal(t, outcome.StatusSuccess, entries[0].Status, "newest first")
	assert.Equal(t, "User 3", entries[0].Subject)
	assert.Equal(t, outcome.StatusPending, entries[5].Status)
	assert.Equal(t, "User 1", entries[5].Subject)

	var failed int
	for _, e := range entries {
		if e.Status == outcome.StatusFailed {
			failed++
			assert.Contains(t, e.Message, "HTTP 401")
		}
	}
	assert.Equal(t, 1, failed)

	for _, c := range f.store.Credentials() {
		if c.SessionToken == "tok-b" {
			assert.Nil(t, c.LastUsedAt)
		} else {
			assert.NotNil(t, c.LastUsedAt)
		}
	}

	runs, err := f.store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ATT-2024", runs[0].Target)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.Equal(t, 1, runs[0].Failed)

	var completed *app.RunCompletedMsg
	for _, m := range broadcast {
		if c, ok := m.(app.RunCompletedMsg); ok {
			completed = &c
		}
	}
	require.NotNil(t, completed)
	assert.Equal(t, 2, completed.Succeeded)

	assert.False(t, f.runner.Running())
	assert.Nil(t, f.page.events)
	assert.Equal(t, "ATT-2024", f.page.target, "target kept when auto-execute is off")
	assert.Contains(t, f.page.message, "2 succeeded, 1 failed")
}

func TestRunPageEmptyStore(t *testing.T) {
	f := newRunFixture(t)

	f.page.Update(app.IdentifierMsg{ID: "ATT-1"})
	_, cmd := f.page.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	f.pump(t, cmd)

	assert.Equal(t, 0, f.sub.callCount())
	assert.Equal(t, 0, f.log.Len())
	runs, err := f.store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].Total)
}

func TestRunPageAutoExecute(t *testing.T) {
	f := newRunFixture(t, "tok-a", "tok-b")
	f.runner.SetAutoExecute(true)

	_, cmd := f.page.Update(app.IdentifierMsg{ID: "ATT-777", Source: sourceScanner})
	require.NotNil(t, cmd, "a long enough identifier schedules a run")
	broadcast := f.pump(t, cmd)

	assert.Equal(t, 2, f.sub.callCount())
	assert.Equal(t, "", f.page.target, "identifier cleared after an auto run")

	var cleared bool
	for _, m := range broadcast {
		if id, ok := m.(app.IdentifierMsg); ok && id.ID == "" {
			cleared = true
		}
	}
	assert.True(t, cleared, "clear is broadcast so the header follows")
}

func TestRunPageAutoExecuteSkipsShortIdentifier(t *testing.T) {
	f := newRunFixture(t, "tok-a")
	f.runner.SetAutoExecute(true)

	_, cmd := f.page.Update(app.IdentifierMsg{ID: "12345"})
	assert.Nil(t, cmd)
}

func TestRunPageAutoExecuteSkipsEmptyStore(t *testing.T) {
	f := newRunFixture(t)
	f.runner.SetAutoExecute(true)

	_, cmd := f.page.Update(app.IdentifierMsg{ID: "ATT-123456"})
	assert.Nil(t, cmd)
}

func TestRunPageAutoExecuteDebounce(t *testing.T) {
	f := newRunFixture(t, "tok-a")
	f.runner.SetAutoExecute(true)

	f.page.Update(app.IdentifierMsg{ID: "ATT-000001"})
	f.page.Update(app.IdentifierMsg{ID: "ATT-000002"})

	_, cmd := f.page.Update(autoRunMsg{target: "ATT-000001"})
	assert.Nil(t, cmd, "stale timer is ignored")
	assert.Equal(t, 0, f.sub.callCount())
}

func TestRunPageToggleAutoExecute(t *testing.T) {
	f := newRunFixture(t)

	f.page.Update(keyRunes("a"))
	assert.True(t, f.runner.AutoExecute())
	assert.True(t, f.cfg.AutoExecute)

	f.page.Update(keyRunes("a"))
	assert.False(t, f.runner.AutoExecute())
}

func TestRunPageEditIdentifier(t *testing.T) {
	f := newRunFixture(t)

	f.page.Update(keyRunes("i"))
	require.True(t, f.page.InputCaptured())

	f.page.input.SetValue("  ATT-55 ")
	_, cmd := f.page.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.False(t, f.page.InputCaptured())

	msg, ok := cmd().(app.IdentifierMsg)
	require.True(t, ok)
	assert.Equal(t, "ATT-55", msg.ID)
}

func TestRunPageEditBlankRestoresTarget(t *testing.T) {
	f := newRunFixture(t)
	f.page.Update(app.IdentifierMsg{ID: "ATT-9"})

	f.page.Update(keyRunes("i"))
	f.page.input.SetValue("   ")
	_, cmd := f.page.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Equal(t, "ATT-9", f.page.input.Value())
}

func TestRunPageClearLog(t *testing.T) {
	f := newRunFixture(t)
	f.log.Append(outcome.Entry{Subject: "User 1", Status: outcome.StatusSuccess})

	f.page.Update(keyRunes("c"))
	assert.Equal(t, 0, f.log.Len())
}

func TestRunPageView(t *testing.T) {
	f := newRunFixture(t, "tok-a")
	f.page.Update(app.IdentifierMsg{ID: "ATT-31"})

	view := f.page.View()
	assert.Contains(t, view, "ATT-31")
	assert.Contains(t, view, "IDLE")
	assert.Contains(t, view, "Log 0/100")
}
