package controller

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tgienger/tasktrack/internal/api"
	"github.com/tgienger/tasktrack/internal/models"
)

type referenceLoaded struct {
	users       []models.User
	usersErr    error
	projects    []models.Project
	projectsErr error
}

func (e referenceLoaded) apply(c *Controller) Outcome {
	out := Outcome{Action: ActionReferenceLoaded}
	if e.usersErr != nil {
		c.users = nil
		out.Notices = append(out.Notices, c.failure("load users", e.usersErr))
		out.Err = e.usersErr
	} else {
		c.users = e.users
	}
	if e.projectsErr != nil {
		c.projects = nil
		out.Notices = append(out.Notices, c.failure("load projects", e.projectsErr))
		if out.Err == nil {
			out.Err = e.projectsErr
		}
	} else {
		c.projects = e.projects
	}
	c.source = c.hydrate(c.source)
	c.resort()
	return out
}

// LoadReferenceData fetches users and projects concurrently. A failure of
// either leaves that list empty and raises a notice; it is never fatal.
func (c *Controller) LoadReferenceData() Op {
	b := c.backend
	return func(ctx context.Context) Event {
		var (
			ev referenceLoaded
			g  errgroup.Group
		)
		g.Go(func() error {
			ev.users, ev.usersErr = b.ListUsers(ctx)
			return nil
		})
		g.Go(func() error {
			ev.projects, ev.projectsErr = b.ListProjects(ctx)
			return nil
		})
		_ = g.Wait()
		return ev
	}
}

// Users returns every loaded user
func (c *Controller) Users() []models.User { return c.users }

// Assignees returns the users that may be assigned a task
func (c *Controller) Assignees() []models.User {
	var out []models.User
	for _, u := range c.users {
		if u.Assignable() {
			out = append(out, u)
		}
	}
	return out
}

// Projects returns the loaded projects
func (c *Controller) Projects() []models.Project { return c.projects }

// Project looks up a loaded project by id
func (c *Controller) Project(id int64) (models.Project, bool) {
	for _, p := range c.projects {
		if p.ID == id {
			return p, true
		}
	}
	return models.Project{}, false
}

type tasksLoaded struct {
	seq   uint64
	tasks []models.Task
	err   error
}

func (e tasksLoaded) apply(c *Controller) Outcome {
	if e.seq != c.seq.tasks {
		c.log.Debug("discarding stale task list", "seq", e.seq, "latest", c.seq.tasks)
		return Outcome{Action: ActionStale}
	}
	c.loadingTasks = false
	if e.err != nil {
		c.source, c.tasks = nil, nil
		c.tasksErr = api.Message(e.err)
		c.reconcileSelection()
		return Outcome{Action: ActionTasksLoaded, Err: e.err, Notices: []models.Notification{c.failure("load tasks", e.err)}}
	}
	c.tasksErr = ""
	c.source = c.hydrate(e.tasks)
	c.resort()
	c.reconcileSelection()
	return Outcome{Action: ActionTasksLoaded}
}

// LoadTasks replaces the filters and fetches the matching tasks. Only the
// response to the most recent call is applied.
func (c *Controller) LoadTasks(f api.TaskFilter) Op {
	c.filters = f
	c.seq.tasks++
	c.loadingTasks = true
	seq := c.seq.tasks
	b := c.backend
	return func(ctx context.Context) Event {
		tasks, err := b.ListTasks(ctx, f)
		return tasksLoaded{seq: seq, tasks: tasks, err: err}
	}
}

// Refresh reloads tasks with the current filters
func (c *Controller) Refresh() Op { return c.LoadTasks(c.filters) }

// Tasks returns the loaded tasks in display order. Callers must not modify it.
func (c *Controller) Tasks() []models.Task { return c.tasks }

// TasksError is the message of the last failed load, "" after a success
func (c *Controller) TasksError() string { return c.tasksErr }

// Loading reports whether a task load is in flight
func (c *Controller) Loading() bool { return c.loadingTasks }

// Task looks up a loaded task by id
func (c *Controller) Task(id int64) (models.Task, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return models.Task{}, false
	}
	return c.tasks[i], true
}

func (c *Controller) indexOf(id int64) int {
	return slices.IndexFunc(c.tasks, func(t models.Task) bool { return t.ID == id })
}

// FilterField names one of the server-side filters
type FilterField string

const (
	FilterStatus   FilterField = "status"
	FilterAssignee FilterField = "assignee"
	FilterProject  FilterField = "project"
	FilterPriority FilterField = "priority"
	FilterSearch   FilterField = "search"
)

// Filters returns the filters of the most recent load
func (c *Controller) Filters() api.TaskFilter { return c.filters }

// SetFilter changes one filter and reloads. Invalid values are rejected without a request.
func (c *Controller) SetFilter(field FilterField, value string) (Op, error) {
	f := c.filters
	switch field {
	case FilterStatus:
		f.Status = value
	case FilterAssignee:
		f.Assignee = value
	case FilterProject:
		f.Project = value
	case FilterPriority:
		f.Priority = value
	case FilterSearch:
		f.Search = value
		c.pendingSearch = value
	default:
		return nil, &ValidationError{Field: string(field), Message: "unknown filter " + strconv.Quote(string(field))}
	}
	if err := f.Validate(); err != nil {
		c.report(c.notice(models.LevelWarn, "filter tasks", api.Message(err)))
		return nil, err
	}
	return c.LoadTasks(f), nil
}

// ClearFilters drops every filter and reloads
func (c *Controller) ClearFilters() Op { return c.ResetFilters(api.TaskFilter{}) }

// ResetFilters replaces every filter with base and reloads. A pending
// search is dropped.
func (c *Controller) ResetFilters(base api.TaskFilter) Op {
	c.pendingSearch = ""
	return c.LoadTasks(base)
}

// SearchInput records a keystroke in the search box. The caller schedules
// SearchSettled with the returned generation after the returned delay.
func (c *Controller) SearchInput(text string) (uint64, time.Duration) {
	c.searchGen++
	c.pendingSearch = text
	return c.searchGen, c.searchDelay
}

// SearchSettled issues the search load if no keystroke arrived since gen.
// It returns nil for superseded generations or an unchanged search.
func (c *Controller) SearchSettled(gen uint64) Op {
	if gen != c.searchGen {
		return nil
	}
	if strings.TrimSpace(c.pendingSearch) == strings.TrimSpace(c.filters.Search) {
		return nil
	}
	f := c.filters
	f.Search = c.pendingSearch
	return c.LoadTasks(f)
}

// hydrate fills missing assignee and project summaries from reference data
func (c *Controller) hydrate(tasks []models.Task) []models.Task {
	if len(tasks) == 0 {
		return tasks
	}
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = c.hydrateOne(t)
	}
	return out
}

func (c *Controller) hydrateOne(t models.Task) models.Task {
	if (t.Assignee == nil || t.Assignee.DisplayName() == "") && t.AssigneeID != nil {
		for _, u := range c.users {
			if u.ID == *t.AssigneeID {
				t.Assignee = u.Ref()
				break
			}
		}
	}
	if t.Project == nil || t.Project.Name == "" {
		if p, ok := c.Project(t.ProjectID); ok {
			t.Project = &models.ProjectRef{ID: p.ID, Name: p.Name, Category: p.Category}
		}
	}
	return t
}
