package tui

import (
	"fmt"
	"strings"

	"github.com/fieldrover/wayfarer/internal/graph"
	"github.com/fieldrover/wayfarer/internal/models"
	"github.com/fieldrover/wayfarer/internal/pose"
)

func (m model) View() string {
	if m.width > 0 && m.height > 0 && (m.width < minWidth || m.height < minHeight) {
		return strings.Join([]string{
			m.styles.Warning.Render(fmt.Sprintf("Terminal too small (%dx%d).", m.width, m.height)),
			m.styles.Muted.Render(fmt.Sprintf("Resize to at least %dx%d.", minWidth, minHeight)),
		}, "\n") + "\n"
	}

	lines := []string{m.styles.Title.Render("Wayfarer Watch"), ""}
	lines = append(lines, m.statusLines()...)
	lines = append(lines, "", m.styles.Text.Render("Recent events"))
	lines = append(lines, m.eventLines()...)
	lines = append(lines, "", m.styles.Muted.Render("Press q to quit, r to refresh."))
	return strings.Join(lines, "\n") + "\n"
}

func (m model) statusLines() []string {
	if m.fetchErr != nil && !m.ready {
		return []string{m.styles.Error.Render(fmt.Sprintf("Cannot reach daemon: %v", m.fetchErr))}
	}
	if !m.ready {
		return []string{m.styles.Muted.Render("Connecting...")}
	}

	s := m.status
	lines := []string{
		m.row("Plan", m.styles.Accent.Render(s.Plan)+m.styles.Muted.Render("  run "+shortID(s.RunID))),
		m.row("State", m.renderState()),
		m.row("Waypoint", m.renderWaypoint()),
		m.row("Feed", m.renderFeed()),
		m.row("Pose", m.renderPose()),
		m.row("Stream", m.styles.Text.Render(fmt.Sprintf("%d subscriber(s)", s.Subscribers))),
		m.row("Uptime", m.styles.Text.Render(s.Uptime)),
	}
	if m.fetchErr != nil {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("Last refresh failed: %v", m.fetchErr)))
	}
	return lines
}

func (m model) row(label, value string) string {
	return m.styles.Label.Render(label) + value
}

func (m model) renderState() string {
	s := m.status
	switch s.Terminal {
	case graph.Success:
		return m.styles.Success.Render("finished: " + s.Terminal)
	case graph.Failure:
		return m.styles.Error.Render("finished: " + s.Terminal)
	}
	if s.State == "" {
		return m.styles.Muted.Render("idle")
	}
	return m.styles.Text.Render(s.State)
}

func (m model) renderWaypoint() string {
	s := m.status
	if s.Waypoint == "" {
		return m.styles.Muted.Render("--")
	}
	return m.styles.Text.Render(fmt.Sprintf("%s  (%d/%d)", s.Waypoint, s.Cursor+1, s.Waypoints))
}

func (m model) renderFeed() string {
	feed := m.status.Feed
	label := fmt.Sprintf("%s  %d update(s)", feed.State, feed.Updates)
	switch feed.State {
	case pose.FeedLive:
		return m.styles.Success.Render(label)
	case pose.FeedStale:
		return m.styles.Warning.Render(label)
	case pose.FeedLost:
		return m.styles.Error.Render(label)
	default:
		return m.styles.Muted.Render(label)
	}
}

func (m model) renderPose() string {
	p := m.status.Pose
	if !p.Valid {
		return m.styles.Muted.Render("--")
	}
	return m.styles.Text.Render(fmt.Sprintf("x %.2f  y %.2f  yaw %.2f", p.X, p.Y, p.Yaw))
}

func (m model) eventLines() []string {
	if len(m.events) == 0 {
		return []string{m.styles.Muted.Render("  none yet")}
	}

	recent := m.events
	if len(recent) > maxEvents {
		recent = recent[len(recent)-maxEvents:]
	}

	lines := make([]string, 0, len(recent))
	for _, event := range recent {
		lines = append(lines, fmt.Sprintf("  %s  %s  %s",
			m.styles.Muted.Render(event.Timestamp.Local().Format("15:04:05")),
			m.renderEventType(event.Type),
			m.styles.Text.Render(event.EntityID),
		))
	}
	return lines
}

func (m model) renderEventType(et models.EventType) string {
	label := fmt.Sprintf("%-18s", string(et))
	switch et {
	case models.EventTypeWaypointReached, models.EventTypeMissionCompleted:
		return m.styles.Success.Render(label)
	case models.EventTypeWaypointSkipped, models.EventTypeWaypointReplaced, models.EventTypeWarning:
		return m.styles.Warning.Render(label)
	case models.EventTypeMissionAborted, models.EventTypeError:
		return m.styles.Error.Render(label)
	default:
		return m.styles.Accent.Render(label)
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
