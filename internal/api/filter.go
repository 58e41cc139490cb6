package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/tgienger/tasktrack/internal/models"
)

// All is the sentinel filter value meaning "no constraint"
const All = "all"

// TaskFilter holds the server-side task query constraints. Empty or All skips a field.
// Assignee is always the user's numeric database id.
type TaskFilter struct {
	Status   string
	Assignee string
	Project  string
	Priority string
	Search   string
}

// filterParams lists query parameters in the order the backend documents them
func (f TaskFilter) filterParams() [][2]string {
	return [][2]string{
		{"status", f.Status},
		{"assignee", f.Assignee},
		{"project", f.Project},
		{"priority", f.Priority},
		{"search_text", f.Search},
	}
}

func isSet(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != All
}

// Query builds the query string, omitting every parameter whose value is All or empty
func (f TaskFilter) Query() string {
	var parts []string
	for _, p := range f.filterParams() {
		if !isSet(p[1]) {
			continue
		}
		parts = append(parts, url.QueryEscape(p[0])+"="+url.QueryEscape(strings.TrimSpace(p[1])))
	}
	return strings.Join(parts, "&")
}

// Active counts the constraints in effect
func (f TaskFilter) Active() int {
	n := 0
	for _, p := range f.filterParams() {
		if isSet(p[1]) {
			n++
		}
	}
	return n
}

// Validate enforces the identifier spaces: assignee and project are numeric ids,
// status and priority must be known values.
func (f TaskFilter) Validate() error {
	if isSet(f.Assignee) {
		if _, err := strconv.ParseInt(strings.TrimSpace(f.Assignee), 10, 64); err != nil {
			return &FilterError{Field: "assignee", Value: f.Assignee}
		}
	}
	if isSet(f.Project) {
		if _, err := strconv.ParseInt(strings.TrimSpace(f.Project), 10, 64); err != nil {
			return &FilterError{Field: "project", Value: f.Project}
		}
	}
	if isSet(f.Status) && !models.Status(f.Status).Valid() {
		return &FilterError{Field: "status", Value: f.Status}
	}
	if isSet(f.Priority) && !models.Priority(f.Priority).Valid() {
		return &FilterError{Field: "priority", Value: f.Priority}
	}
	return nil
}
