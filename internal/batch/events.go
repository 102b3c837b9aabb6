package batch

import (
	"time"

	"github.com/buckleypaul/rollcall/internal/outcome"
	"github.com/buckleypaul/rollcall/internal/store"
)

// Event is something a run produced that the owning shell must apply.
type Event interface {
	event()
}

// EntryAppended asks the shell to append an entry to the outcome log.
type EntryAppended struct {
	Entry outcome.Entry
}

// RecordUsed asks the shell to stamp a credential's last-used time.
type RecordUsed struct {
	ID string
	At time.Time
}

// RunFinished is always the last event of a run.
type RunFinished struct {
	Target    string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Succeeded int
	Failed    int
	// ClearTarget is set when auto-execute is on; the shell should drop
	// the current identifier so the next scan can trigger a new run.
	ClearTarget bool
}

func (EntryAppended) event() {}
func (RecordUsed) event()    {}
func (RunFinished) event()   {}

// Apply folds one event into the state the shell owns.
func Apply(ev Event, st *store.Store, log *outcome.Log) error {
	switch ev := ev.(type) {
	case EntryAppended:
		log.Append(ev.Entry)
	case RecordUsed:
		return st.MarkUsed(ev.ID, ev.At)
	case RunFinished:
		return st.AddRun(store.RunRecord{
			Target:    ev.Target,
			StartedAt: ev.StartedAt,
			Duration:  ev.Duration.Round(time.Millisecond).String(),
			Total:     ev.Total,
			Succeeded: ev.Succeeded,
			Failed:    ev.Failed,
		})
	}
	return nil
}
