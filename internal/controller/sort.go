package controller

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/tgienger/tasktrack/internal/models"
)

// SortField is a sortable task column
type SortField string

const (
	SortNone     SortField = ""
	SortTitle    SortField = "title"
	SortProject  SortField = "project"
	SortAssignee SortField = "assignee"
	SortPriority SortField = "priority"
	SortStatus   SortField = "status"
	SortDueDate  SortField = "due_date"
)

// SortFields lists the sortable columns in table order
var SortFields = []SortField{SortTitle, SortProject, SortAssignee, SortPriority, SortStatus, SortDueDate}

// ParseSortField validates a column name
func ParseSortField(s string) (SortField, error) {
	f := SortField(strings.ToLower(strings.TrimSpace(s)))
	if f == SortNone || slices.Contains(SortFields, f) {
		return f, nil
	}
	return SortNone, fmt.Errorf("unknown sort field %q", s)
}

// Direction is ascending or descending
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Sort is the current sort state. The zero value keeps server order.
type Sort struct {
	Field     SortField
	Direction Direction
}

// SortTasks stably sorts tasks in place by field. Priority and status use their
// rank tables, due dates treat missing values as the epoch, strings compare
// case-insensitively. Descending reverses the comparison, so ties keep their
// input order in both directions.
func SortTasks(tasks []models.Task, s Sort) {
	if s.Field == SortNone {
		return
	}
	slices.SortStableFunc(tasks, func(a, b models.Task) int {
		r := compareTasks(&a, &b, s.Field)
		if s.Direction == Descending {
			return -r
		}
		return r
	})
}

func compareTasks(a, b *models.Task, field SortField) int {
	switch field {
	case SortTitle:
		return compareFold(a.Title, b.Title)
	case SortProject:
		return compareFold(a.ProjectName(), b.ProjectName())
	case SortAssignee:
		return compareFold(a.AssigneeName(), b.AssigneeName())
	case SortPriority:
		return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
	case SortStatus:
		return cmp.Compare(a.Status.Rank(), b.Status.Rank())
	case SortDueDate:
		return a.DueDate.SortKey().Compare(b.DueDate.SortKey())
	}
	return 0
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// Sort returns the current sort state
func (c *Controller) Sort() Sort { return c.sort }

// SortBy sorts the loaded tasks. It needs no server round trip.
func (c *Controller) SortBy(field SortField, dir Direction) {
	c.sort = Sort{Field: field, Direction: dir}
	c.resort()
}

// ToggleSort sorts by field ascending, or flips the direction if field is
// already the sort column.
func (c *Controller) ToggleSort(field SortField) {
	if c.sort.Field == field {
		dir := Ascending
		if c.sort.Direction == Ascending {
			dir = Descending
		}
		c.SortBy(field, dir)
		return
	}
	c.SortBy(field, Ascending)
}

// resort rebuilds the display order from the server order
func (c *Controller) resort() {
	c.tasks = slices.Clone(c.source)
	SortTasks(c.tasks, c.sort)
}
