package pages

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/rollcall/internal/store"
)

func newCredentialsPage(t *testing.T) (*CredentialsPage, *store.Store) {
	t.Helper()
	st := store.New(t.TempDir())
	p := NewCredentialsPage(st)
	p.SetSize(100, 30)
	return p, st
}

func TestCredentialsQuickAdd(t *testing.T) {
	p, st := newCredentialsPage(t)

	p.Update(keyRunes("a"))
	require.True(t, p.InputCaptured())

	p.inputs[addFieldToken].SetValue("s%3Atoken-one")
	p.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, addFieldStudent, p.focused)
	p.inputs[addFieldStudent].SetValue("2021CS001")
	p.Update(tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.False(t, p.InputCaptured())
	creds := st.Credentials()
	require.Len(t, creds, 1)
	assert.Equal(t, "s%3Atoken-one", creds[0].SessionToken)
	assert.Equal(t, "2021CS001", creds[0].StudentID)
	assert.Equal(t, "User 1", creds[0].Name)
	assert.Contains(t, p.message, "Added User 1")
}

func TestCredentialsQuickAddRequiresToken(t *testing.T) {
	p, st := newCredentialsPage(t)

	p.Update(keyRunes("a"))
	p.inputs[addFieldStudent].SetValue("2021CS001")
	p.Update(tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.True(t, p.InputCaptured(), "form stays open")
	assert.Equal(t, 0, st.Len())
	assert.Contains(t, p.message, "Session token is required")
}

func TestCredentialsEnterWalksFields(t *testing.T) {
	p, st := newCredentialsPage(t)

	p.Update(keyRunes("a"))
	p.inputs[addFieldToken].SetValue("tok")
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, addFieldName, p.focused)
	assert.Equal(t, 0, st.Len())

	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 1, st.Len())
}

func TestCredentialsBulkImport(t *testing.T) {
	p, st := newCredentialsPage(t)

	p.Update(keyRunes("I"))
	require.True(t, p.InputCaptured())
	p.importArea.SetValue(`[{"connectSid":"a","stuId":"S1"},{"connect_sid":"b"},{"stuId":"orphan"}]`)
	p.Update(tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.False(t, p.InputCaptured())
	assert.Equal(t, 2, st.Len())
	assert.Contains(t, p.message, "Imported 2 users")
}

func TestCredentialsBulkImportMalformed(t *testing.T) {
	p, st := newCredentialsPage(t)
	_, _, err := st.Add(store.Credential{SessionToken: "keep"})
	require.NoError(t, err)

	p.Update(keyRunes("I"))
	p.importArea.SetValue(`{"connectSid":"not-an-array"}`)
	p.Update(tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.True(t, p.InputCaptured())
	assert.Equal(t, 1, st.Len(), "store untouched")
	assert.Contains(t, p.message, "Invalid JSON format or missing connect.sid")
}

func TestCredentialsImportFromFile(t *testing.T) {
	p, st := newCredentialsPage(t)
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"connectSid":"from-file"}]`), 0o600))

	p.Update(keyRunes("I"))
	p.importArea.SetValue(path)
	p.Update(tea.KeyMsg{Type: tea.KeyCtrlS})

	require.Equal(t, 1, st.Len())
	assert.Equal(t, "from-file", st.Credentials()[0].SessionToken)
}

func TestCredentialsDeleteConfirm(t *testing.T) {
	p, st := newCredentialsPage(t)
	for _, tok := range []string{"a", "b"} {
		_, _, err := st.Add(store.Credential{SessionToken: tok})
		require.NoError(t, err)
	}

	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	p.Update(keyRunes("d"))
	assert.Contains(t, p.View(), "Remove User 2?")

	p.Update(keyRunes("n"))
	assert.Equal(t, 2, st.Len(), "declined")

	p.Update(keyRunes("d"))
	p.Update(keyRunes("y"))
	require.Equal(t, 1, st.Len())
	assert.Equal(t, "a", st.Credentials()[0].SessionToken)
	assert.Equal(t, 0, p.cursor)
}

func TestCredentialsViewMasksTokens(t *testing.T) {
	p, st := newCredentialsPage(t)
	_, _, err := st.Add(store.Credential{SessionToken: "s%3Averysecretsessiontoken", StudentID: "S-9"})
	require.NoError(t, err)

	view := p.View()
	assert.Contains(t, view, "S-9")
	assert.Contains(t, view, "s%3Avery...")
	assert.NotContains(t, view, "verysecretsessiontoken")
	assert.Contains(t, view, "never")
}
