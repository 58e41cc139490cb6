package models

import "strings"

// Status is a task's workflow state
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Statuses in workflow order
var Statuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone}

// Rank orders statuses todo < in_progress < review < done.
// Unknown values sort after every known status.
func (s Status) Rank() int {
	return rankOf(Statuses, s)
}

// Label is the human readable form of the status
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusReview:
		return "Review"
	case StatusDone:
		return "Done"
	}
	return labelOf(string(s))
}

// Valid reports whether s is one of Statuses
func (s Status) Valid() bool { return s.Rank() < len(Statuses) }

// Priority is a task's urgency
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities from most to least urgent
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

// Rank orders priorities urgent < high < medium < low.
// Unknown values sort after every known priority.
func (p Priority) Rank() int {
	return rankOf(Priorities, p)
}

// Label is the human readable form of the priority
func (p Priority) Label() string { return labelOf(string(p)) }

// Valid reports whether p is one of Priorities
func (p Priority) Valid() bool { return p.Rank() < len(Priorities) }

// Severity classifies impact, independent of priority
type Severity string

const (
	SeverityTrivial  Severity = "trivial"
	SeverityMinor    Severity = "minor"
	SeverityNormal   Severity = "normal"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Severities from least to most severe
var Severities = []Severity{SeverityTrivial, SeverityMinor, SeverityNormal, SeverityMajor, SeverityCritical}

// Label is the human readable form of the severity
func (s Severity) Label() string { return labelOf(string(s)) }

// Valid reports whether s is one of Severities
func (s Severity) Valid() bool { return rankOf(Severities, s) < len(Severities) }

// Defaults the backend applies to a new task
const (
	DefaultStatus   = StatusTodo
	DefaultPriority = PriorityMedium
	DefaultSeverity = SeverityNormal
)

// TaskTypes are the common task types offered in forms. The backend accepts any value.
var TaskTypes = []string{"feature", "bug", "improvement", "task", "support"}

func rankOf[T ~string](order []T, v T) int {
	for i, o := range order {
		if o == v {
			return i
		}
	}
	return len(order)
}

func labelOf(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}
