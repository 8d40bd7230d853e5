// internal/recorder/recorder_test.go
package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

func clickEvent(typ schemas.EventType, path string, outcome *schemas.Outcome, at time.Time) schemas.Event {
	return schemas.Event{
		Type:      typ,
		RunID:     "run-1",
		StepPath:  path,
		StepID:    "step-" + path,
		Action:    &schemas.Action{Kind: schemas.ActionClick, Target: "the button"},
		Outcome:   outcome,
		Timestamp: at,
	}
}

func TestRecorderKeepsOnlySuccessfulOutcomes(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	events := make(chan schemas.Event, 16)

	events <- clickEvent(schemas.EventStepStart, "0", nil, base)
	events <- clickEvent(schemas.EventStepEnd, "0", &schemas.Outcome{Status: schemas.StepSucceeded}, base.Add(time.Second))
	events <- clickEvent(schemas.EventStepStart, "1", nil, base.Add(2*time.Second))
	events <- clickEvent(schemas.EventStepEnd, "1", &schemas.Outcome{Status: schemas.StepFailed, Error: "boom"}, base.Add(3*time.Second))
	events <- clickEvent(schemas.EventStepEnd, "2", &schemas.Outcome{Status: schemas.StepSkipped}, base.Add(4*time.Second))
	events <- schemas.Event{Type: schemas.EventAttempt, RunID: "run-1", StepPath: "1", Attempt: &schemas.AttemptInfo{Number: 1}, Timestamp: base}
	close(events)

	rec := New("checkout", zap.NewNop())
	rec.Consume(events)

	record := rec.Record()
	assert.Equal(t, "run-1", record.RunID)
	assert.Equal(t, "checkout", record.WorkflowName)
	assert.Equal(t, base, record.StartedAt)

	require.Len(t, record.Entries, 1)
	entry := record.Entries[0]
	assert.Equal(t, "0", entry.StepPath)
	assert.Equal(t, schemas.StepSucceeded, entry.Outcome.Status)
	assert.Equal(t, base, entry.StartedAt)
	assert.Equal(t, base.Add(time.Second), entry.FinishedAt)
}

func TestRecorderIgnoresStepEndWithoutAction(t *testing.T) {
	events := make(chan schemas.Event, 4)
	events <- schemas.Event{
		Type:      schemas.EventStepEnd,
		RunID:     "run-1",
		StepPath:  "0",
		Outcome:   &schemas.Outcome{Status: schemas.StepSucceeded},
		Timestamp: time.Now(),
	}
	close(events)

	rec := New("checkout", zap.NewNop())
	rec.Consume(events)
	assert.Empty(t, rec.Record().Entries)
}

func TestRecordReturnsIsolatedCopy(t *testing.T) {
	events := make(chan schemas.Event, 4)
	now := time.Now()
	events <- clickEvent(schemas.EventStepEnd, "0", &schemas.Outcome{Status: schemas.StepSucceeded}, now)
	close(events)

	rec := New("checkout", zap.NewNop())
	rec.Consume(events)

	first := rec.Record()
	first.Entries[0].StepPath = "mutated"
	assert.Equal(t, "0", rec.Record().Entries[0].StepPath)
}
