// Package monitor is the live dashboard: a full-screen view of the active
// task, the deferral queue, and recent history. It holds no state of its
// own; every frame is rendered from a fresh database snapshot, triggered by
// bridge signals with a poll interval as the safety net.
package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldi/focal/internal/bridge"
	"github.com/ldi/focal/internal/db"
	"github.com/ldi/focal/pkg/models"
)

// snapshot is one consistent read of everything the dashboard shows.
type snapshot struct {
	Active   *models.Task
	Deferred []*models.Task
	Events   []*models.TaskEvent
	TakenAt  time.Time
}

type snapshotMsg struct {
	snap snapshot
	err  error
}

// signalMsg wakes the model when the bridge fires or the poll interval
// elapses; either way the response is a reload.
type signalMsg struct{}

// tickMsg drives the elapsed-time readout while a task is active.
type tickMsg time.Time

type Model struct {
	db           *db.DB
	watcher      bridge.Watcher
	ctx          context.Context
	pollInterval time.Duration
	eventLimit   int

	snap    snapshot
	loaded  bool
	err     error
	history viewport.Model
	width   int
	height  int
	ready   bool
	now     time.Time
}

func NewModel(ctx context.Context, database *db.DB, watcher bridge.Watcher, pollInterval time.Duration, eventLimit int) *Model {
	return &Model{
		db:           database,
		watcher:      watcher,
		ctx:          ctx,
		pollInterval: pollInterval,
		eventLimit:   eventLimit,
		history:      viewport.New(0, 0),
		now:          time.Now(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadSnapshot(), m.waitForSignal(), tick())
}

func (m *Model) loadSnapshot() tea.Cmd {
	return func() tea.Msg {
		var snap snapshot
		snap.TakenAt = time.Now()

		active, err := m.db.GetActiveTask(m.ctx)
		if err != nil {
			return snapshotMsg{err: err}
		}
		snap.Active = active

		deferred, err := m.db.ListDeferredTasks(m.ctx)
		if err != nil {
			return snapshotMsg{err: err}
		}
		snap.Deferred = deferred

		events, err := m.db.ListRecentEvents(m.ctx, m.eventLimit)
		if err != nil {
			return snapshotMsg{err: err}
		}
		snap.Events = events

		return snapshotMsg{snap: snap}
	}
}

func (m *Model) waitForSignal() tea.Cmd {
	return func() tea.Msg {
		// A timeout and a signal are handled identically: reload. The
		// distinction only matters for latency, not correctness.
		_, err := m.watcher.Wait(m.ctx, m.pollInterval)
		if err != nil {
			return tea.Quit()
		}
		return signalMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeHistory()
		if m.loaded {
			m.history.SetContent(m.renderEvents())
			m.history.GotoBottom()
		}

	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.snap = msg.snap
		m.loaded = true
		m.err = nil
		m.history.SetContent(m.renderEvents())
		m.history.GotoBottom()

	case signalMsg:
		return m, tea.Batch(m.loadSnapshot(), m.waitForSignal())

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()
	}

	return m, nil
}

// Err reports the failure that ended the session, if any.
func (m *Model) Err() error {
	return m.err
}

// Run drives the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, database *db.DB, watcher bridge.Watcher, pollInterval time.Duration, eventLimit int) error {
	m := NewModel(ctx, database, watcher, pollInterval, eventLimit)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(*Model); ok && fm.err != nil {
		return fm.err
	}
	return nil
}
