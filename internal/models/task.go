package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Layouts used for task time windows. Form input is local wall-clock at minute
// precision; timestamps generated by the shell are UTC with milliseconds.
const (
	InputTimeLayout = "2006-01-02T15:04"
	ISOTimeLayout   = "2006-01-02T15:04:05.000Z"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusDone, StatusBlocked}

var statusLabels = map[Status]string{
	StatusNotStarted: "Not started",
	StatusInProgress: "In progress",
	StatusDone:       "Done",
	StatusBlocked:    "Blocked",
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseStatus accepts either the wire value or the display label, ignoring case.
func ParseStatus(v string) (Status, error) {
	needle := normalizeEnum(v)
	for _, s := range Statuses {
		if needle == string(s) || needle == normalizeEnum(statusLabels[s]) {
			return s, nil
		}
	}
	return "", fmt.Errorf("invalid status %q", v)
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

var priorityLabels = map[Priority]string{
	PriorityLow:    "Low",
	PriorityMedium: "Medium",
	PriorityHigh:   "High",
	PriorityUrgent: "Urgent",
}

func (p Priority) Valid() bool {
	_, ok := priorityLabels[p]
	return ok
}

func (p Priority) Label() string {
	if l, ok := priorityLabels[p]; ok {
		return l
	}
	return string(p)
}

func ParsePriority(v string) (Priority, error) {
	needle := normalizeEnum(v)
	for _, p := range Priorities {
		if needle == string(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid priority %q", v)
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode priority: %w", err)
	}
	parsed, err := ParsePriority(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func normalizeEnum(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(v)
}

// Task is the single persisted record. Every save sends the complete record.
type Task struct {
	ID          string   `json:"id"`
	Owner       string   `json:"user_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	CreatedAt   int64    `json:"createdAt"`
	SubTasks    []string `json:"subTasks"`
	ImageURL    string   `json:"image_url,omitempty"`
}

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	if t.SubTasks != nil {
		t.SubTasks = append([]string(nil), t.SubTasks...)
	}
	return t
}

// TaskPatch carries the fields present in a partial update. Nil means unset.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	StartTime   *string
	EndTime     *string
	SubTasks    *[]string
	ImageURL    *string
}

// Apply shallow-merges the patch into t; provided fields overwrite.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.StartTime != nil {
		t.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t.EndTime = *p.EndTime
	}
	if p.SubTasks != nil {
		t.SubTasks = append([]string{}, (*p.SubTasks)...)
	}
	if p.ImageURL != nil {
		t.ImageURL = *p.ImageURL
	}
}

// FormatISO renders ts the way generated task timestamps are stored.
func FormatISO(ts time.Time) string {
	return ts.UTC().Format(ISOTimeLayout)
}

// Stats are counts derived from a task list; never stored.
type Stats struct {
	Total    int
	ByStatus map[Status]int
}

func (s Stats) Done() int {
	return s.ByStatus[StatusDone]
}

func (s Stats) Todo() int {
	return s.ByStatus[StatusNotStarted]
}
