package controller

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tgienger/tasktrack/internal/api"
	"github.com/tgienger/tasktrack/internal/models"
)

// ValidationError is a client-side rejection. No request was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// FormMode distinguishes creating from editing
type FormMode int

const (
	FormCreate FormMode = iota
	FormEdit
)

func (m FormMode) String() string {
	if m == FormEdit {
		return "edit"
	}
	return "create"
}

// TaskForm holds the raw text of the create/edit form. Ids are kept as the
// strings the user picked so an unset selection stays distinguishable from 0.
type TaskForm struct {
	Mode        FormMode
	TaskID      int64
	Title       string
	Description string
	Type        string
	Status      string
	Priority    string
	Severity    string
	ProjectID   string
	AssigneeID  string
	StartDate   string
	DueDate     string

	// Loading is set while the edited task is being fetched
	Loading    bool
	Submitting bool
}

// NewTaskForm is a blank create form with the backend defaults preselected
func NewTaskForm() *TaskForm {
	return &TaskForm{
		Mode:     FormCreate,
		Type:     models.TaskTypes[0],
		Status:   string(models.DefaultStatus),
		Priority: string(models.DefaultPriority),
		Severity: string(models.DefaultSeverity),
	}
}

// FormFromTask populates an edit form, rendering dates in loc
func FormFromTask(t models.Task, loc *time.Location) *TaskForm {
	f := &TaskForm{
		Mode:        FormEdit,
		TaskID:      t.ID,
		Title:       t.Title,
		Description: t.Description,
		Type:        t.Type,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Severity:    string(t.Severity),
		StartDate:   models.InputDate(t.StartDate, loc),
		DueDate:     models.InputDate(t.DueDate, loc),
	}
	if t.ProjectID != 0 {
		f.ProjectID = strconv.FormatInt(t.ProjectID, 10)
	}
	if t.AssigneeID != nil {
		f.AssigneeID = strconv.FormatInt(*t.AssigneeID, 10)
	}
	return f
}

// Normalize validates the form and builds the request body. Ids are coerced
// to numbers and dates entered in loc are sent as UTC RFC 3339.
func (f *TaskForm) Normalize(loc *time.Location) (api.TaskInput, error) {
	if loc == nil {
		loc = time.UTC
	}
	in := api.TaskInput{
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		Type:        strings.TrimSpace(f.Type),
		Status:      models.Status(orDefault(f.Status, string(models.DefaultStatus))),
		Priority:    models.Priority(orDefault(f.Priority, string(models.DefaultPriority))),
		Severity:    models.Severity(orDefault(f.Severity, string(models.DefaultSeverity))),
	}
	if in.Title == "" {
		return in, &ValidationError{Field: "title", Message: "Title is required"}
	}
	project := strings.TrimSpace(f.ProjectID)
	if project == "" || project == api.All {
		return in, &ValidationError{Field: "project_id", Message: "Please select a project"}
	}
	pid, err := strconv.ParseInt(project, 10, 64)
	if err != nil || pid <= 0 {
		return in, &ValidationError{Field: "project_id", Message: "Invalid project " + strconv.Quote(project)}
	}
	in.ProjectID = pid

	if a := strings.TrimSpace(f.AssigneeID); a != "" {
		aid, err := strconv.ParseInt(a, 10, 64)
		if err != nil || aid <= 0 {
			return in, &ValidationError{Field: "assignee_id", Message: "Invalid assignee " + strconv.Quote(a)}
		}
		in.AssigneeID = &aid
	}
	if !in.Status.Valid() {
		return in, &ValidationError{Field: "status", Message: "Unknown status " + strconv.Quote(string(in.Status))}
	}
	if !in.Priority.Valid() {
		return in, &ValidationError{Field: "priority", Message: "Unknown priority " + strconv.Quote(string(in.Priority))}
	}
	if !in.Severity.Valid() {
		return in, &ValidationError{Field: "severity", Message: "Unknown severity " + strconv.Quote(string(in.Severity))}
	}

	start, err := formDate("start_date", f.StartDate, loc)
	if err != nil {
		return in, err
	}
	due, err := formDate("due_date", f.DueDate, loc)
	if err != nil {
		return in, err
	}
	if start != nil && due != nil && due.Before(*start) {
		return in, &ValidationError{Field: "due_date", Message: "Due date cannot be before start date"}
	}
	in.StartDate = wireDate(start)
	in.DueDate = wireDate(due)
	return in, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func formDate(field, s string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := models.ParseInputDate(s, loc)
	if err != nil {
		return nil, &ValidationError{Field: field, Message: err.Error()}
	}
	return &t, nil
}

func wireDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// Form returns the open form, nil when closed
func (c *Controller) Form() *TaskForm { return c.form }

// OpenCreate opens a blank create form
func (c *Controller) OpenCreate() *TaskForm {
	c.seq.form++
	c.form = NewTaskForm()
	return c.form
}

type formLoaded struct {
	seq  uint64
	task *models.Task
	err  error
}

func (e formLoaded) apply(c *Controller) Outcome {
	if c.form == nil || e.seq != c.seq.form {
		return Outcome{Action: ActionStale}
	}
	if e.err != nil {
		c.form = nil
		return Outcome{Action: ActionFormLoaded, Err: e.err, Notices: []models.Notification{c.failure("load task", e.err)}}
	}
	c.form = FormFromTask(c.hydrateOne(*e.task), c.loc)
	return Outcome{Action: ActionFormLoaded}
}

// OpenEdit opens the edit form for id and fetches the current record
func (c *Controller) OpenEdit(id int64) Op {
	c.seq.form++
	seq := c.seq.form
	c.form = &TaskForm{Mode: FormEdit, TaskID: id, Loading: true}
	b := c.backend
	return func(ctx context.Context) Event {
		t, err := b.GetTask(ctx, id)
		return formLoaded{seq: seq, task: t, err: err}
	}
}

// CloseForm discards the form. A pending load or submit result is ignored.
func (c *Controller) CloseForm() {
	c.seq.form++
	c.form = nil
}

type taskSaved struct {
	seq    uint64
	mode   FormMode
	taskID int64
	task   *models.Task
	err    error
}

func (e taskSaved) apply(c *Controller) Outcome {
	op := "create task"
	if e.mode == FormEdit {
		op = "update task"
	}
	current := c.form != nil && e.seq == c.seq.form
	if e.err != nil {
		if current {
			c.form.Submitting = false
		}
		return Outcome{Action: ActionTaskSaved, Err: e.err, Notices: []models.Notification{c.failure(op, e.err)}}
	}
	if current {
		c.form = nil
	}
	msg := "Task created"
	id := e.taskID
	if e.mode == FormEdit {
		msg = "Task updated"
	} else if e.task != nil {
		id = e.task.ID
	}
	out := Outcome{
		Action:  ActionTaskSaved,
		Notices: []models.Notification{c.notice(models.LevelInfo, op, msg)},
		Next:    []Op{c.Refresh()},
	}
	if id != 0 && id == c.selectedID {
		out.Next = append(out.Next, c.fetchDetail(id))
	}
	return out
}

// SubmitForm validates f and sends a create or update. Validation failures
// raise a warning and no Op is returned.
func (c *Controller) SubmitForm(f *TaskForm) (Op, error) {
	if f == nil {
		f = c.form
	}
	if f == nil {
		return nil, &ValidationError{Field: "form", Message: "No form is open"}
	}
	in, err := f.Normalize(c.loc)
	if err != nil {
		c.report(c.notice(models.LevelWarn, "save task", err.Error()))
		return nil, err
	}
	if c.form != f {
		c.seq.form++
		c.form = f
	}
	f.Submitting = true
	seq := c.seq.form
	mode, id := f.Mode, f.TaskID
	b := c.backend
	return func(ctx context.Context) Event {
		if mode == FormEdit {
			return taskSaved{seq: seq, mode: mode, taskID: id, err: b.UpdateTask(ctx, id, in)}
		}
		t, err := b.CreateTask(ctx, in)
		return taskSaved{seq: seq, mode: mode, task: t, err: err}
	}, nil
}
