package viewmodel

import (
	"testing"
	"time"

	"github.com/tgienger/tasktrack/internal/models"
)

func TestFormatDate(t *testing.T) {
	plus8 := time.FixedZone("UTC+8", 8*3600)
	tests := []struct {
		name string
		ts   models.Timestamp
		want string
	}{
		{"null", models.Timestamp{}, "Not set"},
		{"invalid", models.ParseTimestamp("next tuesday"), "Invalid date"},
		{"utc converted", models.ParseTimestamp("2024-03-01T16:30:00Z"), "2024-03-02 00:30"},
		{"naive treated as utc", models.ParseTimestamp("2024-03-01 01:00:00"), "2024-03-01 09:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDate(tt.ts, plus8); got != tt.want {
				t.Errorf("FormatDate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName(nil); got != "Unassigned" {
		t.Errorf("nil user = %q", got)
	}
	if got := DisplayName(&models.UserRef{Username: "jdoe"}); got != "jdoe" {
		t.Errorf("username fallback = %q", got)
	}
	if got := DisplayName(&models.UserRef{Username: "jdoe", FullName: "Jane Doe"}); got != "Jane Doe" {
		t.Errorf("full name = %q", got)
	}
}

func TestRowsMarkSelection(t *testing.T) {
	tasks := []models.Task{
		{ID: 1, Title: "a", Status: models.StatusTodo, Priority: models.PriorityHigh},
		{ID: 2, Title: "b", Status: models.StatusDone, Priority: models.PriorityLow, DueDate: models.ParseTimestamp("2000-01-01")},
	}
	rows := Rows(tasks, Selection{ID: 2, DetailVisible: true}, time.UTC, time.Now())
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Selected || !rows[1].Selected {
		t.Errorf("selection flags = %v %v", rows[0].Selected, rows[1].Selected)
	}
	if rows[0].Due != "Not set" || rows[0].Assignee != "Unassigned" || rows[0].Project != "No project" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Overdue {
		t.Error("done task reported overdue")
	}
	if rows[0].StatusLabel != "To Do" || rows[1].PriorityLabel != "Low" {
		t.Errorf("labels = %q %q", rows[0].StatusLabel, rows[1].PriorityLabel)
	}
}

func TestBuildDetailComments(t *testing.T) {
	task := models.Task{ID: 7, Title: "t", DueDate: models.ParseTimestamp("garbage")}
	comments := []models.Comment{{
		ID:          3,
		Content:     "hi",
		Author:      &models.UserRef{Username: "bob"},
		Attachments: []models.Attachment{{ID: 9}},
	}}
	d := BuildDetail(task, comments, time.UTC)
	var due string
	for _, f := range d.Fields {
		if f.Label == "Due" {
			due = f.Value
		}
	}
	if due != "Invalid date" {
		t.Errorf("due = %q", due)
	}
	if len(d.Comments) != 1 || d.Comments[0].Author != "bob" || d.Comments[0].Created != "Not set" {
		t.Fatalf("comments = %+v", d.Comments)
	}
	if d.Comments[0].Attachments[0].Filename != "attachment-9" {
		t.Errorf("attachment name = %q", d.Comments[0].Attachments[0].Filename)
	}
}
