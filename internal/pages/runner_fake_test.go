package pages

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/rollcall/internal/app"
	"github.com/buckleypaul/rollcall/internal/attendance"
	"github.com/buckleypaul/rollcall/internal/batch"
	"github.com/buckleypaul/rollcall/internal/config"
	"github.com/buckleypaul/rollcall/internal/outcome"
	"github.com/buckleypaul/rollcall/internal/store"
)

type submitCall struct {
	target string
	token  string
}

type fakeSubmitter struct {
	mu     sync.Mutex
	calls  []submitCall
	failOn map[string]int
}

func (f *fakeSubmitter) Submit(ctx context.Context, target, token string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, submitCall{target: target, token: token})
	if status, ok := f.failOn[token]; ok {
		return nil, &attendance.RemoteRejectionError{StatusCode: status}
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

type fakeCodeSource struct {
	codes      chan string
	connected  bool
	port       string
	baud       int
	connectErr error
}

func newFakeCodeSource() *fakeCodeSource {
	return &fakeCodeSource{codes: make(chan string, 4)}
}

func (f *fakeCodeSource) Connect(port string, baud int) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	f.port = port
	f.baud = baud
	return nil
}

func (f *fakeCodeSource) Disconnect()          { f.connected = false }
func (f *fakeCodeSource) Codes() <-chan string { return f.codes }
func (f *fakeCodeSource) Connected() bool      { return f.connected }
func (f *fakeCodeSource) PortName() string     { return f.port }

// runFixture wires a RunPage to a store seeded with tokens.
type runFixture struct {
	page   *RunPage
	store  *store.Store
	log    *outcome.Log
	sub    *fakeSubmitter
	runner *batch.Runner
	cfg    *config.Config
}

func newRunFixture(t *testing.T, tokens ...string) *runFixture {
	t.Helper()
	st := store.New(t.TempDir())
	for _, tok := range tokens {
		if _, _, err := st.Add(store.Credential{SessionToken: tok}); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}
	sub := &fakeSubmitter{failOn: map[string]int{}}
	runner := batch.NewRunner(sub, batch.Options{Sleep: noSleep})
	cfg := config.Defaults()
	log := outcome.NewLog(outcome.DefaultCapacity)
	page := NewRunPage(context.Background(), runner, st, log, &cfg)
	page.autoDelay = time.Millisecond
	page.SetSize(100, 40)
	return &runFixture{page: page, store: st, log: log, sub: sub, runner: runner, cfg: &cfg}
}

// pump executes cmd and feeds the run page every message it cares
// about until the command tree is exhausted. It returns the app-level
// messages that would have been broadcast.
func (f *runFixture) pump(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	var broadcast []tea.Msg
	queue := []tea.Cmd{cmd}
	deadline := time.Now().Add(5 * time.Second)
	for len(queue) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("pump did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		switch msg := msg.(type) {
		case nil:
			continue
		case tea.BatchMsg:
			queue = append(queue, msg...)
			continue
		case runEventMsg, runClosedMsg, autoRunMsg:
		case app.IdentifierMsg:
			broadcast = append(broadcast, msg)
		default:
			broadcast = append(broadcast, msg)
			continue
		}
		_, c := f.page.Update(msg)
		queue = append(queue, c)
	}
	return broadcast
}
