package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ldi/focal/internal/db"
	"github.com/ldi/focal/pkg/models"
)

func newTestEngine(t *testing.T) (*Engine, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "focal.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database), database
}

func TestCreateActivatesTask(t *testing.T) {
	eng, database := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.Create(ctx, "write the report")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.State != models.TaskStateActive {
		t.Errorf("state = %s, want %s", task.State, models.TaskStateActive)
	}
	if task.ID == "" {
		t.Error("task ID is empty")
	}

	active, err := database.GetActiveTask(ctx)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active == nil || active.ID != task.ID {
		t.Errorf("active task = %+v, want %s", active, task.ID)
	}

	events, err := database.ListEvents(ctx, task.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != models.EventCreated {
		t.Errorf("events = %+v, want one CREATED", events)
	}
}

func TestCreateRejectsEmptyDescription(t *testing.T) {
	eng, _ := newTestEngine(t)

	for _, desc := range []string{"", "   ", "\t\n"} {
		if _, err := eng.Create(context.Background(), desc); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Create(%q) = %v, want ErrInvalidArgument", desc, err)
		}
	}
}

func TestCreateConflictsWithActiveTask(t *testing.T) {
	eng, database := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.Create(ctx, "first")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := eng.Create(ctx, "second"); !errors.Is(err, ErrActiveTaskConflict) {
		t.Fatalf("create second = %v, want ErrActiveTaskConflict", err)
	}

	// The losing create leaves nothing behind.
	tasks, err := database.ListTasks(ctx, nil)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != first.ID {
		t.Errorf("tasks = %+v, want only %s", tasks, first.ID)
	}
	events, err := database.ListEvents(ctx, "")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestCompleteActiveTask(t *testing.T) {
	eng, database := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.Create(ctx, "task")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	done, err := eng.Complete(ctx, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.State != models.TaskStateCompleted {
		t.Errorf("state = %s, want completed", done.State)
	}
	if done.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	active, err := database.GetActiveTask(ctx)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active != nil {
		t.Errorf("active task = %+v, want none", active)
	}

	events, err := database.ListEvents(ctx, task.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[1].EventType != models.EventCompleted {
		t.Errorf("events = %+v, want CREATED then COMPLETED", events)
	}
}

func TestCompleteStampsRowAndEventTogether(t *testing.T) {
	eng, database := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.Create(ctx, "task")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := eng.Complete(ctx, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := database.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
	if !got.UpdatedAt.Equal(*got.CompletedAt) {
		t.Errorf("UpdatedAt = %v, CompletedAt = %v, want equal", got.UpdatedAt, *got.CompletedAt)
	}

	events, err := database.ListEvents(ctx, task.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	last := events[len(events)-1]
	if last.EventType != models.EventCompleted {
		t.Fatalf("last event = %s, want COMPLETED", last.EventType)
	}
	if !last.Timestamp.Equal(*got.CompletedAt) {
		t.Errorf("event timestamp = %v, CompletedAt = %v, want equal", last.Timestamp, *got.CompletedAt)
	}
}

func TestConcurrentCompleteAcrossHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "focal.db")

	first, err := db.Open(path)
	if err != nil {
		t.Fatalf("open first handle: %v", err)
	}
	defer first.Close()
	second, err := db.Open(path)
	if err != nil {
		t.Fatalf("open second handle: %v", err)
	}
	defer second.Close()

	engA := New(first)
	engB := New(second)

	task, err := engA.Create(ctx, "contended")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Two processes race to complete the same active task. Immediate
	// transactions serialize them, so one wins and the other finds the
	// task already terminal.
	start := make(chan struct{})
	errs := make(chan error, 2)
	for _, eng := range []*Engine{engA, engB} {
		go func() {
			<-start
			_, err := eng.Complete(ctx, task.ID)
			errs <- err
		}()
	}
	close(start)

	var succeeded, terminal int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrTerminalState):
			terminal++
		default:
			t.Fatalf("complete: %v", err)
		}
	}
	if succeeded != 1 || terminal != 1 {
		t.Errorf("got %d successes and %d terminal-state errors, want exactly one of each", succeeded, terminal)
	}

	events, err := first.ListEvents(ctx, task.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[1].EventType != models.EventCompleted {
		t.Errorf("events = %+v, want CREATED then COMPLETED", events)
	}
}

func TestCompleteWithNoActiveTask(t *testing.T) {
	eng, _ := newTestEngine(t)

	if _, err := eng.Complete(context.Background(), ""); !errors.Is(err, db.ErrTaskNotFound) {
		t.Errorf("complete = %v, want ErrTaskNotFound", err)
	}
}

func TestCompleteCompletedTaskIsTerminal(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.Create(ctx, "task")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := eng.Complete(ctx, task.ID); err != nil {
		t.Fatalf("first complete: %v", err)
	}

	// A second complete addressed by ID finds the task already terminal.
	if _, err := eng.Complete(ctx, task.ID); !errors.Is(err, ErrTerminalState) {
		t.Errorf("second complete = %v, want ErrTerminalState", err)
	}
}

func TestCompleteDeferredTaskIsInvalid(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.Create(ctx, "task")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := eng.Defer(ctx, "", nil, ""); err != nil {
		t.Fatalf("defer: %v", err)
	}
	if _, err := eng.Complete(ctx, task.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("complete deferred = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelRecordsReason(t *testing.T) {
	eng, database := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.Create(ctx, "task")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cancelled, err := eng.Cancel(ctx, "", "no longer needed")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.State != models.TaskStateCancelled {
		t.Errorf("state = %s, want cancelled", cancelled.State)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "no longer needed" {
		t.Errorf("reason = %v, want %q", cancelled.CancelReason, "no longer needed")
	}

	events, err := database.ListEvents(ctx, task.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	last := events[len(events)-1]
	if last.EventType != models.EventCancelled {
		t.Fatalf("last event = %s, want CANCELLED", last.EventType)
	}
	meta, err := DecodeMeta(last)
	if err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if meta.Reason != "no longer needed" {
		t.Errorf("meta reason = %q, want %q", meta.Reason, "no longer needed")
	}
}

func TestCancelDeferredTask(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.Create(ctx, "task")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := eng.Defer(ctx, "", nil, "later"); err != nil {
		t.Fatalf("defer: %v", err)
	}
	cancelled, err := eng.Cancel(ctx, task.ID, "")
	if err != nil {
		t.Fatalf("cancel deferred: %v", err)
	}
	if cancelled.State != models.TaskStateCancelled {
		t.Errorf("state = %s, want cancelled", cancelled.State)
	}
	if cancelled.DeferredAt != nil || cancelled.DeferReason != nil {
		t.Errorf("deferral fields not cleared: %+v", cancelled)
	}
}

func TestDeferWithUntilAndReason(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Create(ctx, "task"); err != nil {
		t.Fatalf("create: %v", err)
	}
	until := time.Now().UTC().Add(2 * time.Hour)
	deferred, err := eng.Defer(ctx, "", &until, "waiting on review")
	if err != nil {
		t.Fatalf("defer: %v", err)
	}
	if deferred.State != models.TaskStateDeferred {
		t.Errorf("state = %s, want deferred", deferred.State)
	}
	if deferred.DeferredAt == nil {
		t.Error("DeferredAt not set")
	}
	if deferred.DeferredUntil == nil || !deferred.DeferredUntil.Equal(until) {
		t.Errorf("DeferredUntil = %v, want %v", deferred.DeferredUntil, until)
	}
	if deferred.DeferReason == nil || *deferred.DeferReason != "waiting on review" {
		t.Errorf("DeferReason = %v, want %q", deferred.DeferReason, "waiting on review")
	}
}

func TestDeferRejectsPastUntil(t *testing.T) {
	eng, database := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.Create(ctx, "task")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	if _, err := eng.Defer(ctx, "", &past, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("defer past = %v, want ErrInvalidArgument", err)
	}

	// Rejected before any write: the task stays active.
	got, err := database.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.State != models.TaskStateActive {
		t.Errorf("state = %s, want active", got.State)
	}
}

func TestResumeDeferredTask(t *testing.T) {
	eng, database := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.Create(ctx, "task")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := eng.Defer(ctx, "", nil, "later"); err != nil {
		t.Fatalf("defer: %v", err)
	}
	resumed, err := eng.Resume(ctx, task.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.State != models.TaskStateActive {
		t.Errorf("state = %s, want active", resumed.State)
	}
	if resumed.DeferredAt != nil || resumed.DeferReason != nil || resumed.DeferredUntil != nil {
		t.Errorf("deferral fields not cleared: %+v", resumed)
	}

	events, err := database.ListEvents(ctx, task.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	last := events[len(events)-1]
	if last.EventType != models.EventResumed {
		t.Errorf("last event = %s, want RESUMED", last.EventType)
	}
}

func TestResumeFailsClosedOnConflict(t *testing.T) {
	eng, database := newTestEngine(t)
	ctx := context.Background()

	parked, err := eng.Create(ctx, "parked")
	if err != nil {
		t.Fatalf("create parked: %v", err)
	}
	if _, err := eng.Defer(ctx, "", nil, ""); err != nil {
		t.Fatalf("defer: %v", err)
	}
	current, err := eng.Create(ctx, "current")
	if err != nil {
		t.Fatalf("create current: %v", err)
	}

	if _, err := eng.Resume(ctx, parked.ID); !errors.Is(err, ErrActiveTaskConflict) {
		t.Fatalf("resume = %v, want ErrActiveTaskConflict", err)
	}

	// The incumbent is untouched and the parked task stays deferred.
	active, err := database.GetActiveTask(ctx)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active == nil || active.ID != current.ID {
		t.Errorf("active = %+v, want %s", active, current.ID)
	}
	got, err := database.GetTask(ctx, parked.ID)
	if err != nil {
		t.Fatalf("get parked: %v", err)
	}
	if got.State != models.TaskStateDeferred {
		t.Errorf("parked state = %s, want deferred", got.State)
	}
}

func TestResumeNonDeferredTask(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.Create(ctx, "task")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := eng.Resume(ctx, task.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resume active = %v, want ErrInvalidTransition", err)
	}

	if _, err := eng.Complete(ctx, task.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := eng.Resume(ctx, task.ID); !errors.Is(err, ErrTerminalState) {
		t.Errorf("resume completed = %v, want ErrTerminalState", err)
	}
}

func TestResumeUnknownTask(t *testing.T) {
	eng, _ := newTestEngine(t)

	if _, err := eng.Resume(context.Background(), "no-such-id"); !errors.Is(err, db.ErrTaskNotFound) {
		t.Errorf("resume = %v, want ErrTaskNotFound", err)
	}
}

func TestFullLifecycleSequence(t *testing.T) {
	eng, database := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.Create(ctx, "long haul")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := eng.Defer(ctx, "", nil, "blocked"); err != nil {
		t.Fatalf("defer: %v", err)
	}
	if _, err := eng.Resume(ctx, task.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := eng.Complete(ctx, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}

	events, err := database.ListEvents(ctx, task.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	want := []models.EventType{
		models.EventCreated,
		models.EventDeferred,
		models.EventResumed,
		models.EventCompleted,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.EventType != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, e.EventType, want[i])
		}
	}
}

func TestChangeHookFiresOnTransitions(t *testing.T) {
	eng, database := newTestEngine(t)
	ctx := context.Background()

	var fired int
	database.SetOnChange(func(context.Context) { fired++ })

	if _, err := eng.Create(ctx, "task"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := eng.Complete(ctx, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if fired != 2 {
		t.Errorf("hook fired %d times, want 2", fired)
	}

	// Failed transitions do not notify.
	if _, err := eng.Complete(ctx, ""); err == nil {
		t.Fatal("expected error completing with no active task")
	}
	if fired != 2 {
		t.Errorf("hook fired %d times after failed transition, want 2", fired)
	}
}
