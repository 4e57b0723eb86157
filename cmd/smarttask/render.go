package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/TWRT/smarttask/internal/models"
)

const summaryWidth = 60

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	doneTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Strikethrough(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	badgeStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2).
			Width(summaryWidth)
)

var priorityColors = map[models.Priority]lipgloss.Color{
	models.PriorityUrgent: lipgloss.Color("196"),
	models.PriorityHigh:   lipgloss.Color("208"),
	models.PriorityMedium: lipgloss.Color("33"),
	models.PriorityLow:    lipgloss.Color("245"),
}

var statusColors = map[models.Status]lipgloss.Color{
	models.StatusDone:       lipgloss.Color("34"),
	models.StatusInProgress: lipgloss.Color("63"),
	models.StatusBlocked:    lipgloss.Color("178"),
	models.StatusNotStarted: lipgloss.Color("240"),
}

func renderBadge(text string, color lipgloss.Color) string {
	return badgeStyle.Foreground(lipgloss.Color("231")).Background(color).Render(strings.ToUpper(text))
}

func renderCard(t models.Task) string {
	var b strings.Builder

	b.WriteString(renderBadge(t.Priority.Label(), priorityColors[t.Priority]))
	b.WriteString(" ")
	b.WriteString(renderBadge(t.Status.Label(), statusColors[t.Status]))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(shortID(t.ID)))
	b.WriteString("\n")

	if t.Status == models.StatusDone {
		b.WriteString(doneTitleStyle.Render(t.Title))
	} else {
		b.WriteString(titleStyle.Render(t.Title))
	}
	b.WriteString("\n")

	description := t.Description
	if description == "" {
		description = "No description."
	}
	b.WriteString(dimStyle.Render(description))
	b.WriteString("\n")

	for _, sub := range t.SubTasks {
		b.WriteString("  • " + sub + "\n")
	}

	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Start:"), displayTime(t.StartTime, time.Local))
	fmt.Fprintf(&b, "%s %s", labelStyle.Render("End:  "), displayTime(t.EndTime, time.Local))
	if t.ImageURL != "" {
		fmt.Fprintf(&b, "\n%s %s", labelStyle.Render("Image:"), t.ImageURL)
	}

	return cardStyle.Render(b.String())
}

// renderStats is the one-line header shown above task lists.
func renderStats(s models.Stats) string {
	parts := []string{fmt.Sprintf("%s %d", labelStyle.Render("Total"), s.Total)}
	for _, status := range models.Statuses {
		parts = append(parts, fmt.Sprintf("%s %d", labelStyle.Render(status.Label()), s.ByStatus[status]))
	}
	return strings.Join(parts, dimStyle.Render("  ·  "))
}

// shareText is the plain-text task summary users paste elsewhere.
func shareText(t models.Task, loc *time.Location) string {
	description := t.Description
	if description == "" {
		description = "None"
	}
	return fmt.Sprintf("TASK: %s\nStatus: %s\nPriority: %s\nDue: %s\nDescription: %s\n\nManaged with SmartTask.",
		t.Title, t.Status.Label(), t.Priority.Label(), displayTime(t.EndTime, loc), description)
}

func displayTime(iso string, loc *time.Location) string {
	if iso == "" {
		return "-"
	}
	ts, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return iso
	}
	return ts.In(loc).Format("2006-01-02 15:04")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
