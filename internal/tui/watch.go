// Package tui implements the live watch dashboard. It renders the worker
// table and a scrolling event log from the engine's event stream.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/seralin/drover/internal/events"
	"github.com/seralin/drover/pkg/models"
)

// maxLogLines is how many event lines the dashboard keeps.
const maxLogLines = 100

// visibleLogLines is how many event lines render at once.
const visibleLogLines = 12

// refreshInterval is how often the worker table re-snapshots the registry.
const refreshInterval = time.Second

// WorkerLister provides worker snapshots for the table.
// *registry.Registry satisfies this.
type WorkerLister interface {
	List() []*models.Worker
}

// eventMsg wraps an engine event for the update loop.
type eventMsg events.Event

// eventsClosedMsg signals the event channel was closed.
type eventsClosedMsg struct{}

// tickMsg triggers a periodic worker table refresh.
type tickMsg time.Time

// logLine is one rendered entry in the event log.
type logLine struct {
	when    time.Time
	text    string
	errored bool
}

// WatchModel is the bubbletea model for the watch dashboard.
type WatchModel struct {
	workers WorkerLister
	events  <-chan events.Event
	dropped func() uint64

	rows     []*models.Worker
	log      []logLine
	spinner  spinner.Model
	styles   watchStyles
	width    int
	height   int
	quitting bool
}

// NewWatch creates a watch dashboard over the given registry and event stream.
func NewWatch(workers WorkerLister, emitter *events.Emitter) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	styles := newWatchStyles()
	s.Style = styles.busy

	m := WatchModel{
		workers: workers,
		spinner: s,
		styles:  styles,
	}
	if emitter != nil {
		m.events = emitter.Events()
		m.dropped = emitter.DroppedCount
	}
	if workers != nil {
		m.rows = workers.List()
	}
	return m
}

// Init starts the spinner, the event reader, and the refresh ticker.
func (m WatchModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tickCmd()}
	if m.events != nil {
		cmds = append(cmds, waitForEvent(m.events))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		m.appendLog(events.Event(msg))
		m.refresh()
		if m.events == nil {
			return m, nil
		}
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.appendLog(events.Event{
			Type:      events.EventType("stream_closed"),
			Message:   "event stream closed",
			Timestamp: time.Now(),
		})
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.styles.title.Render("Drover"))
	b.WriteString(" ")
	b.WriteString(m.spinner.View())
	b.WriteString(m.styles.dim.Render("watching"))
	if m.dropped != nil {
		if n := m.dropped(); n > 0 {
			b.WriteString(m.styles.errored.Render(fmt.Sprintf("  (%d events dropped)", n)))
		}
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderWorkers())
	b.WriteString("\n")
	b.WriteString(m.renderLog())
	b.WriteString("\n")
	b.WriteString(m.styles.footer.Render("q: quit"))
	b.WriteString("\n")

	return b.String()
}

// renderWorkers renders the worker table.
func (m WatchModel) renderWorkers() string {
	var b strings.Builder

	nameWidth := 10
	for _, w := range m.rows {
		if len(w.Name) > nameWidth {
			nameWidth = len(w.Name)
		}
	}

	header := fmt.Sprintf("    %-*s  %-10s  %-6s  %s", nameWidth, "WORKER", "STATUS", "LOAD", "CAPABILITIES")
	b.WriteString(m.styles.header.Render(header))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(m.styles.dim.Render("    no workers registered"))
		b.WriteString("\n")
		return b.String()
	}

	for _, w := range m.rows {
		status := string(w.Status)
		style := m.styles.statusStyle(status)
		icon := style.Render(statusIcon(status))
		load := fmt.Sprintf("%d/%d", w.CurrentLoad, w.MaxLoad)
		caps := strings.Join(w.Capabilities, ", ")
		if caps == "" {
			caps = "-"
		}

		line := fmt.Sprintf("%s %-*s  %s  %s  %s",
			icon,
			nameWidth, w.Name,
			style.Render(fmt.Sprintf("%-10s", status)),
			m.styles.loadStyle(w.LoadRatio()).Render(fmt.Sprintf("%-6s", load)),
			m.styles.dim.Render(caps),
		)
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

// renderLog renders the most recent event lines, newest last.
func (m WatchModel) renderLog() string {
	var b strings.Builder

	b.WriteString(m.styles.header.Render("EVENTS"))
	b.WriteString("\n")

	if len(m.log) == 0 {
		b.WriteString(m.styles.dim.Render("    waiting for events..."))
		b.WriteString("\n")
		return b.String()
	}

	lines := m.log
	if len(lines) > visibleLogLines {
		lines = lines[len(lines)-visibleLogLines:]
	}
	for _, l := range lines {
		style := m.styles.event
		if l.errored {
			style = m.styles.eventErr
		}
		b.WriteString(m.styles.dim.Render(l.when.Format("15:04:05")))
		b.WriteString("  ")
		b.WriteString(style.Render(l.text))
		b.WriteString("\n")
	}

	return b.String()
}

// refresh re-snapshots the worker table.
func (m *WatchModel) refresh() {
	if m.workers == nil {
		return
	}
	m.rows = m.workers.List()
}

// appendLog adds an event to the log, trimming old lines past the cap.
func (m *WatchModel) appendLog(ev events.Event) {
	when := ev.Timestamp
	if when.IsZero() {
		when = time.Now()
	}
	m.log = append(m.log, logLine{
		when:    when,
		text:    eventText(ev),
		errored: ev.Type == events.EventStepFailed || ev.Error != nil,
	})
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

// eventText formats an event as a single log line.
func eventText(ev events.Event) string {
	switch ev.Type {
	case events.EventWorkerRegistered:
		return fmt.Sprintf("worker %s registered", ev.Worker)
	case events.EventWorkerStatusChanged:
		return fmt.Sprintf("worker %s is now %s", ev.Worker, ev.Status)
	case events.EventWorkerLoadChanged:
		return fmt.Sprintf("worker %s load %d/%d", ev.Worker, ev.Load, ev.MaxLoad)
	case events.EventTaskDelegated:
		return fmt.Sprintf("task %s delegated to %s", ev.TaskID, ev.Worker)
	case events.EventTaskRouted:
		return fmt.Sprintf("task %s routed to %s", ev.TaskID, ev.Worker)
	case events.EventWorkflowStarted:
		return fmt.Sprintf("workflow %s started (run %s)", ev.WorkflowID, ev.ExecutionID)
	case events.EventStepStarted:
		return fmt.Sprintf("step %s started on %s", ev.StepID, ev.Worker)
	case events.EventStepCompleted:
		return fmt.Sprintf("step %s completed", ev.StepID)
	case events.EventStepFailed:
		if ev.Error != nil {
			return fmt.Sprintf("step %s failed: %v", ev.StepID, ev.Error)
		}
		return fmt.Sprintf("step %s failed", ev.StepID)
	case events.EventWorkflowCompleted:
		return fmt.Sprintf("workflow %s completed", ev.WorkflowID)
	case events.EventWorkflowCancelled:
		return fmt.Sprintf("workflow %s cancelled", ev.WorkflowID)
	default:
		if ev.Message != "" {
			return ev.Message
		}
		return string(ev.Type)
	}
}

// waitForEvent reads the next event off the stream as a tea command.
// Update re-issues it after every delivery.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// tickCmd schedules the next periodic table refresh.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunWatch runs the watch dashboard until the user quits.
func RunWatch(workers WorkerLister, emitter *events.Emitter) error {
	p := tea.NewProgram(NewWatch(workers, emitter), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch dashboard: %w", err)
	}
	return nil
}
