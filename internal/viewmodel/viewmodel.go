// Package viewmodel turns controller state into display values. Everything
// here is a pure function of its arguments.
package viewmodel

import (
	"strconv"
	"time"

	"github.com/tgienger/tasktrack/internal/models"
)

const (
	NotSet      = "Not set"
	InvalidDate = "Invalid date"
	Unassigned  = "Unassigned"
	NoProject   = "No project"

	dateLayout = "2006-01-02 15:04"
)

// FormatDate renders ts in loc. Null dates are "Not set" and malformed ones
// "Invalid date".
func FormatDate(ts models.Timestamp, loc *time.Location) string {
	if !ts.Set {
		return NotSet
	}
	if !ts.Valid {
		return InvalidDate
	}
	if loc == nil {
		loc = time.UTC
	}
	return ts.Time.In(loc).Format(dateLayout)
}

// DisplayName is the user's full name, else username, else "Unassigned"
func DisplayName(u *models.UserRef) string {
	if n := u.DisplayName(); n != "" {
		return n
	}
	return Unassigned
}

// ProjectName is the project name, or "No project"
func ProjectName(t models.Task) string {
	if n := t.ProjectName(); n != "" {
		return n
	}
	return NoProject
}

// Selection is the part of the controller state rows depend on
type Selection struct {
	ID            int64
	DetailVisible bool
}

// Row is one table line
type Row struct {
	ID       int64
	Title    string
	Project  string
	Assignee string
	Status   models.Status
	Priority models.Priority
	// StatusLabel and PriorityLabel are the human forms of Status and Priority
	StatusLabel   string
	PriorityLabel string
	Due           string
	Overdue       bool
	Selected      bool
}

// Rows builds table rows in the given order
func Rows(tasks []models.Task, sel Selection, loc *time.Location, now time.Time) []Row {
	rows := make([]Row, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, Row{
			ID:            t.ID,
			Title:         t.Title,
			Project:       ProjectName(t),
			Assignee:      DisplayName(t.Assignee),
			Status:        t.Status,
			Priority:      t.Priority,
			StatusLabel:   t.Status.Label(),
			PriorityLabel: t.Priority.Label(),
			Due:           FormatDate(t.DueDate, loc),
			Overdue:       Overdue(t, now),
			Selected:      sel.ID != 0 && t.ID == sel.ID,
		})
	}
	return rows
}

// Overdue reports an open task whose due date has passed
func Overdue(t models.Task, now time.Time) bool {
	if !t.DueDate.Set || !t.DueDate.Valid || t.Status == models.StatusDone {
		return false
	}
	return t.DueDate.Time.Before(now)
}

// Field is a labeled detail value
type Field struct {
	Label string
	Value string
}

// Attachment is a downloadable file line
type Attachment struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
}

// Comment is a rendered comment
type Comment struct {
	ID          int64
	Author      string
	Created     string
	Content     string
	Attachments []Attachment
}

// Detail is the detail panel of one task
type Detail struct {
	ID          int64
	Title       string
	Description string
	Fields      []Field
	Comments    []Comment
}

// BuildDetail assembles the detail panel for t and its comments
func BuildDetail(t models.Task, comments []models.Comment, loc *time.Location) Detail {
	typ := t.Type
	if typ == "" {
		typ = "-"
	}
	d := Detail{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Fields: []Field{
			{"ID", "#" + strconv.FormatInt(t.ID, 10)},
			{"Project", ProjectName(t)},
			{"Assignee", DisplayName(t.Assignee)},
			{"Type", typ},
			{"Status", t.Status.Label()},
			{"Priority", t.Priority.Label()},
			{"Severity", t.Severity.Label()},
			{"Start", FormatDate(t.StartDate, loc)},
			{"Due", FormatDate(t.DueDate, loc)},
			{"Created", FormatDate(t.CreatedAt, loc)},
			{"Updated", FormatDate(t.UpdatedAt, loc)},
		},
		Comments: Comments(comments, loc),
	}
	return d
}

// Comments renders a comment list in server order
func Comments(comments []models.Comment, loc *time.Location) []Comment {
	out := make([]Comment, 0, len(comments))
	for _, c := range comments {
		vc := Comment{
			ID:      c.ID,
			Author:  DisplayName(c.Author),
			Created: FormatDate(c.CreatedAt, loc),
			Content: c.Content,
		}
		for _, a := range c.Attachments {
			name := a.Filename
			if name == "" {
				name = "attachment-" + strconv.FormatInt(a.ID, 10)
			}
			vc.Attachments = append(vc.Attachments, Attachment{ID: a.ID, Filename: name})
		}
		out = append(out, vc)
	}
	return out
}
