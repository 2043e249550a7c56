package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/focal/pkg/models"
)

var (
	orbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	headerTextStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Padding(1, 2)

	activeTaskStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42")).
			Padding(0, 2)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true).
			Padding(0, 2)

	elapsedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 2)

	sectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(0, 2)

	deferredItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214")).
				Padding(0, 4)

	eventTimeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

var eventVerbs = map[models.EventType]string{
	models.EventCreated:   "started",
	models.EventCompleted: "completed",
	models.EventCancelled: "cancelled",
	models.EventDeferred:  "deferred",
	models.EventResumed:   "resumed",
}

func (m *Model) View() string {
	if !m.ready || !m.loaded {
		return "Loading..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}

	header := m.renderHeader()
	focus := m.renderFocus()
	deferred := m.renderDeferred()
	help := helpStyle.Render("Press 'q' to quit • 'j'/'k' to scroll history")

	history := sectionTitleStyle.Render("Recent activity") + "\n" + m.history.View()

	parts := []string{header, focus}
	if deferred != "" {
		parts = append(parts, deferred)
	}
	parts = append(parts, history, help)
	return strings.Join(parts, "\n\n")
}

func (m *Model) renderHeader() string {
	text := fmt.Sprintf("Focal Monitor | %d deferred | updated %s",
		len(m.snap.Deferred),
		m.snap.TakenAt.Format("15:04:05"),
	)
	orb := orbStyle.Render("⬤")
	header := lipgloss.JoinHorizontal(lipgloss.Center, orb, "  ", headerTextStyle.Render(text))
	return headerStyle.Width(max(m.width-4, 0)).Render(header)
}

func (m *Model) renderFocus() string {
	if m.snap.Active == nil {
		return idleStyle.Render("No active task. Pick one thing.")
	}

	t := m.snap.Active
	lines := []string{
		activeTaskStyle.Render("▶ " + t.Description),
		elapsedStyle.Render("active for " + formatElapsed(m.now.Sub(t.UpdatedAt))),
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderDeferred() string {
	if len(m.snap.Deferred) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(sectionTitleStyle.Render("Deferred"))
	for i, t := range m.snap.Deferred {
		b.WriteString("\n")
		line := fmt.Sprintf("%d. %s", i+1, t.Description)
		if t.DeferredUntil != nil {
			line += fmt.Sprintf(" (until %s)", t.DeferredUntil.Local().Format("Jan 2 15:04"))
		}
		b.WriteString(deferredItemStyle.Render(line))
	}
	return b.String()
}

func (m *Model) renderEvents() string {
	if len(m.snap.Events) == 0 {
		return idleStyle.Render("No activity yet.")
	}

	descs := make(map[string]string, len(m.snap.Deferred)+1)
	if m.snap.Active != nil {
		descs[m.snap.Active.ID] = m.snap.Active.Description
	}
	for _, t := range m.snap.Deferred {
		descs[t.ID] = t.Description
	}

	var b strings.Builder
	for i, e := range m.snap.Events {
		if i > 0 {
			b.WriteString("\n")
		}
		verb := eventVerbs[e.EventType]
		if verb == "" {
			verb = strings.ToLower(string(e.EventType))
		}
		label := descs[e.TaskID]
		if label == "" {
			label = shortID(e.TaskID)
		}
		b.WriteString(fmt.Sprintf("  %s  %s %s",
			eventTimeStyle.Render(e.Timestamp.Local().Format("15:04:05")),
			verb, label))
	}
	return b.String()
}

func (m *Model) resizeHistory() {
	m.history.Width = max(m.width-4, 0)
	// Header, focus, deferred and help each take a few rows; the history
	// pane gets the remainder.
	h := m.height - 12 - len(m.snap.Deferred)
	if h < 3 {
		h = 3
	}
	m.history.Height = h
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
