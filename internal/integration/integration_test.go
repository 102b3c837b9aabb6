package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/rollcall/internal/attendance"
	"github.com/buckleypaul/rollcall/internal/batch"
	"github.com/buckleypaul/rollcall/internal/outcome"
	"github.com/buckleypaul/rollcall/internal/serial"
	"github.com/buckleypaul/rollcall/internal/store"
)

// erp records what a fake attendance endpoint received.
type erp struct {
	mu       sync.Mutex
	cookies  []string
	ids      []string
	arrivals []time.Time
	inFlight int
	overlap  bool
	reject   map[string]int
}

func (e *erp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	e.inFlight++
	if e.inFlight > 1 {
		e.overlap = true
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}()

	var body struct {
		AttendanceID string `json:"attendanceId"`
	}
	raw, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(raw, &body)

	cookie, _ := r.Cookie(attendance.SessionCookie)
	token := ""
	if cookie != nil {
		token = cookie.Value
	}

	e.mu.Lock()
	e.cookies = append(e.cookies, token)
	e.ids = append(e.ids, body.AttendanceID)
	e.arrivals = append(e.arrivals, time.Now())
	status, rejected := e.reject[token]
	e.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	if rejected {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"Session expired"}`))
		return
	}
	_, _ = w.Write([]byte(`{"output":{"data":{"code":"SUCCESS"}}}`))
}

func newPipeline(t *testing.T, fake *erp, pace time.Duration, tokens ...string) (*store.Store, *batch.Runner) {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	st := store.New(dir)
	require.NoError(t, st.Load())
	for _, tok := range tokens {
		_, ok, err := st.Add(store.Credential{SessionToken: tok})
		require.NoError(t, err)
		require.True(t, ok)
	}

	client := attendance.NewClient(attendance.Options{
		Endpoint:   server.URL + "/api/Attendance/record-online-attendance",
		HTTPClient: server.Client(),
	})
	return st, batch.NewRunner(client, batch.Options{Pace: pace})
}

// TestIntegrationSequentialRun drives a full run through the real client
// against a local endpoint and checks ordering, pacing, and persistence.
func TestIntegrationSequentialRun(t *testing.T) {
	fake := &erp{reject: map[string]int{"tok-2": http.StatusUnauthorized}}
	pace := 40 * time.Millisecond
	st, runner := newPipeline(t, fake, pace, "tok-1", "tok-2", "tok-3")

	log := outcome.NewLog(outcome.DefaultCapacity)
	var applyErr error
	started := time.Now()
	err := runner.Run(context.Background(), "  ATT-INT-1 ", st.Credentials(), func(ev batch.Event) {
		if err := batch.Apply(ev, st, log); err != nil && applyErr == nil {
			applyErr = err
		}
	})
	require.NoError(t, err)
	require.NoError(t, applyErr)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	assert.Equal(t, []string{"tok-1", "tok-2", "tok-3"}, fake.cookies, "one request per user in insertion order")
	assert.Equal(t, []string{"ATT-INT-1", "ATT-INT-1", "ATT-INT-1"}, fake.ids, "target is trimmed")
	assert.False(t, fake.overlap, "requests never overlap")
	assert.GreaterOrEqual(t, fake.arrivals[0].Sub(started), pace)
	for i := 1; i < len(fake.arrivals); i++ {
		assert.GreaterOrEqual(t, fake.arrivals[i].Sub(fake.arrivals[i-1]), pace)
	}

	assert.Equal(t, 6, log.Len())
	reloaded := store.New(st.Root())
	require.NoError(t, reloaded.Load())
	creds := reloaded.Credentials()
	require.Len(t, creds, 3)
	assert.NotNil(t, creds[0].LastUsedAt)
	assert.Nil(t, creds[1].LastUsedAt, "rejected session keeps its stamp")
	assert.NotNil(t, creds[2].LastUsedAt)

	runs, err := reloaded.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Total)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.Equal(t, 1, runs[0].Failed)
}

// TestIntegrationScannerToRun reads one code from a real scanner and marks
// it against a local endpoint. Set ROLLCALL_SCANNER_PORT to run it.
func TestIntegrationScannerToRun(t *testing.T) {
	port := os.Getenv("ROLLCALL_SCANNER_PORT")
	if port == "" {
		t.Skip("ROLLCALL_SCANNER_PORT not set; skipping scanner integration test")
	}

	scanner := serial.NewScanner()
	require.NoError(t, scanner.Connect(port, 0))
	t.Cleanup(scanner.Disconnect)

	t.Logf("scan a code on %s within 30s", port)
	var code string
	select {
	case code = <-scanner.Codes():
	case <-time.After(30 * time.Second):
		t.Fatal("no code scanned")
	}

	fake := &erp{}
	st, runner := newPipeline(t, fake, time.Millisecond, "tok-1")
	events, err := runner.Collect(context.Background(), code, st.Credentials())
	require.NoError(t, err)

	finished, ok := events[len(events)-1].(batch.RunFinished)
	require.True(t, ok)
	assert.Equal(t, code, finished.Target)
	assert.Equal(t, 1, finished.Succeeded)
}
