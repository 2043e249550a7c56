package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ldi/focal/internal/db"
	"github.com/ldi/focal/pkg/models"
)

// Replay folds a task's event stream into the state it implies. The events
// must belong to one task and be in log order. It returns ErrDataIntegrity
// when the stream starts with anything but CREATED or contains an event that
// has no edge from the state reached so far.
func Replay(events []*models.TaskEvent) (models.TaskState, error) {
	if len(events) == 0 {
		return "", fmt.Errorf("%w: empty event stream", db.ErrDataIntegrity)
	}
	if events[0].EventType != models.EventCreated {
		return "", fmt.Errorf("%w: event stream does not begin with %s", db.ErrDataIntegrity, models.EventCreated)
	}

	state := models.TaskStateActive
	for _, e := range events[1:] {
		next, ok := applyEvent(state, e.EventType)
		if !ok {
			return "", fmt.Errorf("%w: event %s cannot apply to state %s", db.ErrDataIntegrity, e.EventType, state)
		}
		state = next
	}
	return state, nil
}

func applyEvent(state models.TaskState, ev models.EventType) (models.TaskState, bool) {
	switch ev {
	case models.EventCompleted:
		if state == models.TaskStateActive {
			return models.TaskStateCompleted, true
		}
	case models.EventCancelled:
		if state == models.TaskStateActive || state == models.TaskStateDeferred {
			return models.TaskStateCancelled, true
		}
	case models.EventDeferred:
		if state == models.TaskStateActive {
			return models.TaskStateDeferred, true
		}
	case models.EventResumed:
		if state == models.TaskStateDeferred {
			return models.TaskStateActive, true
		}
	}
	return "", false
}

// Mismatch describes a task whose stored state disagrees with the state its
// event stream replays to.
type Mismatch struct {
	TaskID   string
	Stored   models.TaskState
	Replayed models.TaskState
	Detail   string
}

func (m Mismatch) String() string {
	if m.Detail != "" {
		return fmt.Sprintf("task %s: %s", m.TaskID, m.Detail)
	}
	return fmt.Sprintf("task %s: stored state %s, event log replays to %s", m.TaskID, m.Stored, m.Replayed)
}

// Verify replays every task's event stream and compares the result against
// the stored projection, both the state and the timestamp that state is
// supposed to carry. It reports mismatches rather than failing on the
// first, so a doctor run can show the full damage at once.
func (e *Engine) Verify(ctx context.Context) ([]Mismatch, error) {
	tasks, err := e.db.ListTasks(ctx, nil)
	if err != nil {
		return nil, err
	}

	var mismatches []Mismatch
	for _, t := range tasks {
		events, err := e.db.ListEvents(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		replayed, err := Replay(events)
		if err != nil {
			mismatches = append(mismatches, Mismatch{TaskID: t.ID, Stored: t.State, Detail: err.Error()})
			continue
		}
		if replayed != t.State {
			mismatches = append(mismatches, Mismatch{TaskID: t.ID, Stored: t.State, Replayed: replayed})
			continue
		}
		if detail := timestampMismatch(t, events[len(events)-1]); detail != "" {
			mismatches = append(mismatches, Mismatch{TaskID: t.ID, Stored: t.State, Detail: detail})
		}
	}

	// Orphaned events reference a task that was never projected.
	all, err := e.db.ListEvents(ctx, "")
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	seen := make(map[string]bool)
	for _, ev := range all {
		if !known[ev.TaskID] && !seen[ev.TaskID] {
			seen[ev.TaskID] = true
			mismatches = append(mismatches, Mismatch{
				TaskID: ev.TaskID,
				Detail: "events exist for a task with no row",
			})
		}
	}
	return mismatches, nil
}

// timestampMismatch checks the row's timestamps against the event that
// produced its state. Every transition stamps the row and its event from the
// same clock read, so updated_at must equal the last event's timestamp and
// the state-specific column must carry that same instant.
func timestampMismatch(t *models.Task, last *models.TaskEvent) string {
	if !t.UpdatedAt.Equal(last.Timestamp) {
		return fmt.Sprintf("updated_at does not match the last event (%s)", last.EventType)
	}
	switch t.State {
	case models.TaskStateCompleted:
		if t.CompletedAt == nil {
			return "completed_at is null for a completed task"
		}
		if !t.CompletedAt.Equal(last.Timestamp) {
			return "completed_at does not match the COMPLETED event timestamp"
		}
	case models.TaskStateCancelled:
		if t.CancelledAt == nil {
			return "cancelled_at is null for a cancelled task"
		}
		if !t.CancelledAt.Equal(last.Timestamp) {
			return "cancelled_at does not match the CANCELLED event timestamp"
		}
	case models.TaskStateDeferred:
		if t.DeferredAt == nil {
			return "deferred_at is null for a deferred task"
		}
		if !t.DeferredAt.Equal(last.Timestamp) {
			return "deferred_at does not match the DEFERRED event timestamp"
		}
	}
	return ""
}

// DecodeMeta parses an event's metadata payload. A nil payload decodes to the
// zero value.
func DecodeMeta(e *models.TaskEvent) (EventMeta, error) {
	var meta EventMeta
	if e.Metadata == nil {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(*e.Metadata), &meta); err != nil {
		return meta, fmt.Errorf("%w: malformed event metadata: %v", db.ErrDataIntegrity, err)
	}
	return meta, nil
}

// UntilTime parses the Until field of decoded metadata, nil when absent.
func (m EventMeta) UntilTime() (*time.Time, error) {
	if m.Until == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, m.Until)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed until %q: %v", db.ErrDataIntegrity, m.Until, err)
	}
	return &t, nil
}
