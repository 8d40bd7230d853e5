// internal/recorder/recorder.go
package recorder

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// Recorder is a read-only observer of a run's event stream. It builds the
// append-only replayable trace: only successful step outcomes are recorded.
// Failed and retried attempts stay in the attempt history carried by the
// terminal error; a replay represents the path that worked.
type Recorder struct {
	logger *zap.Logger

	mu     sync.Mutex
	record schemas.ExecutionRecord
	starts map[string]time.Time
}

// New builds a recorder for one workflow run.
func New(workflowName string, logger *zap.Logger) *Recorder {
	return &Recorder{
		logger: logger.Named("recorder"),
		record: schemas.ExecutionRecord{WorkflowName: workflowName},
		starts: make(map[string]time.Time),
	}
}

// Consume drains the event stream until it closes. It never writes back;
// observers cannot affect control flow.
func (r *Recorder) Consume(events <-chan schemas.Event) {
	for ev := range events {
		r.observe(ev)
	}
}

func (r *Recorder) observe(ev schemas.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.record.RunID == "" {
		r.record.RunID = ev.RunID
		r.record.StartedAt = ev.Timestamp
	}

	switch ev.Type {
	case schemas.EventStepStart:
		r.starts[ev.StepPath] = ev.Timestamp
	case schemas.EventStepEnd:
		if ev.Outcome == nil || ev.Outcome.Status != schemas.StepSucceeded || ev.Action == nil {
			return
		}
		started := r.starts[ev.StepPath]
		if started.IsZero() {
			started = ev.Timestamp
		}
		r.record.Entries = append(r.record.Entries, schemas.RecordEntry{
			StepPath:   ev.StepPath,
			Action:     *ev.Action,
			Outcome:    *ev.Outcome,
			StartedAt:  started,
			FinishedAt: ev.Timestamp,
		})
	}
}

// Record returns a copy of the trace accumulated so far.
func (r *Recorder) Record() schemas.ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.record
	out.Entries = make([]schemas.RecordEntry, len(r.record.Entries))
	copy(out.Entries, r.record.Entries)
	return out
}
