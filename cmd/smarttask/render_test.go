package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TWRT/smarttask/internal/models"
)

func TestShareText(t *testing.T) {
	task := models.Task{
		Title:    "Write report",
		Status:   models.StatusInProgress,
		Priority: models.PriorityHigh,
		EndTime:  "2026-05-01T10:30:00.000Z",
	}

	got := shareText(task, time.UTC)
	assert.Equal(t, "TASK: Write report\nStatus: In progress\nPriority: High\nDue: 2026-05-01 10:30\nDescription: None\n\nManaged with SmartTask.", got)
}

func TestDisplayTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "-"},
		{"2026-05-01T10:30:00.000Z", "2026-05-01 10:30"},
		{"2026-05-01T10:30:00+02:00", "2026-05-01 08:30"},
		{"not a time", "not a time"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, displayTime(tt.in, time.UTC), tt.in)
	}
}

func TestRenderCard(t *testing.T) {
	card := renderCard(models.Task{
		ID:       "0123456789abcdef",
		Title:    "Write report",
		Status:   models.StatusDone,
		Priority: models.PriorityUrgent,
		SubTasks: []string{"Gather data"},
		ImageURL: "https://files.example.com/a.png",
	})

	assert.Contains(t, card, "Write report")
	assert.Contains(t, card, "01234567")
	assert.NotContains(t, card, "89abcdef")
	assert.Contains(t, card, "Gather data")
	assert.Contains(t, card, "No description.")
	assert.Contains(t, card, "https://files.example.com/a.png")
}

func TestRenderStats(t *testing.T) {
	out := renderStats(models.Stats{
		Total:    3,
		ByStatus: map[models.Status]int{models.StatusDone: 2, models.StatusBlocked: 1},
	})
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "Blocked")
	assert.Contains(t, out, "3")
}
