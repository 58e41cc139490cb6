package views

import (
	"strconv"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/tasktrack/internal/controller"
	"github.com/tgienger/tasktrack/internal/models"
	"github.com/tgienger/tasktrack/internal/ui/styles"
	"github.com/tgienger/tasktrack/internal/viewmodel"
)

// form field order
const (
	fieldTitle = iota
	fieldDesc
	fieldType
	fieldStatus
	fieldPriority
	fieldSeverity
	fieldProject
	fieldAssignee
	fieldStart
	fieldDue
	fieldSave
	fieldCount
)

type option struct {
	label string
	value string
}

// choice is a select box cycled with left/right
type choice struct {
	options []option
	idx     int
}

func (c *choice) set(value string) {
	for i, o := range c.options {
		if o.value == value {
			c.idx = i
			return
		}
	}
	if value != "" {
		c.options = append(c.options, option{label: value, value: value})
		c.idx = len(c.options) - 1
		return
	}
	c.idx = 0
}

func (c *choice) move(d int) {
	if len(c.options) == 0 {
		return
	}
	c.idx = (c.idx + d + len(c.options)) % len(c.options)
}

func (c *choice) value() string {
	if c.idx < 0 || c.idx >= len(c.options) {
		return ""
	}
	return c.options[c.idx].value
}

func (c *choice) label() string {
	if c.idx < 0 || c.idx >= len(c.options) {
		return ""
	}
	return c.options[c.idx].label
}

// formState is the editable copy of the controller's task form
type formState struct {
	mode    controller.FormMode
	taskID  int64
	focus   int
	loading bool
	err     string

	title    textinput.Model
	desc     textarea.Model
	start    textinput.Model
	due      textinput.Model
	typ      choice
	status   choice
	priority choice
	severity choice
	project  choice
	assignee choice
}

func newFormState(ctrl *controller.Controller, f *controller.TaskForm) *formState {
	title := textinput.New()
	title.Placeholder = "Task title"
	title.CharLimit = 200

	desc := textarea.New()
	desc.Placeholder = "Description (markdown)"
	desc.CharLimit = 5000
	desc.SetWidth(50)
	desc.SetHeight(4)
	desc.ShowLineNumbers = false

	start := textinput.New()
	start.Placeholder = "YYYY-MM-DD [HH:MM]"
	start.CharLimit = 25
	due := textinput.New()
	due.Placeholder = "YYYY-MM-DD [HH:MM]"
	due.CharLimit = 25

	fs := &formState{title: title, desc: desc, start: start, due: due}
	for _, t := range models.TaskTypes {
		fs.typ.options = append(fs.typ.options, option{label: t, value: t})
	}
	for _, s := range models.Statuses {
		fs.status.options = append(fs.status.options, option{label: s.Label(), value: string(s)})
	}
	for _, p := range models.Priorities {
		fs.priority.options = append(fs.priority.options, option{label: p.Label(), value: string(p)})
	}
	for _, s := range models.Severities {
		fs.severity.options = append(fs.severity.options, option{label: s.Label(), value: string(s)})
	}
	fs.project.options = []option{{label: "Select a project", value: ""}}
	for _, p := range ctrl.Projects() {
		fs.project.options = append(fs.project.options, option{label: p.Name, value: strconv.FormatInt(p.ID, 10)})
	}
	fs.assignee.options = []option{{label: viewmodel.Unassigned, value: ""}}
	for _, u := range ctrl.Assignees() {
		fs.assignee.options = append(fs.assignee.options, option{label: viewmodel.DisplayName(u.Ref()), value: strconv.FormatInt(u.ID, 10)})
	}
	fs.load(f)
	return fs
}

// load copies a controller form into the inputs
func (fs *formState) load(f *controller.TaskForm) {
	fs.mode = f.Mode
	fs.taskID = f.TaskID
	fs.loading = f.Loading
	fs.title.SetValue(f.Title)
	fs.desc.SetValue(f.Description)
	fs.start.SetValue(f.StartDate)
	fs.due.SetValue(f.DueDate)
	fs.typ.set(f.Type)
	fs.status.set(f.Status)
	fs.priority.set(f.Priority)
	fs.severity.set(f.Severity)
	fs.project.set(f.ProjectID)
	fs.assignee.set(f.AssigneeID)
	fs.focus = fieldTitle
	fs.updateFocus()
}

// taskForm builds the controller form from the inputs
func (fs *formState) taskForm() *controller.TaskForm {
	return &controller.TaskForm{
		Mode:        fs.mode,
		TaskID:      fs.taskID,
		Title:       fs.title.Value(),
		Description: fs.desc.Value(),
		Type:        fs.typ.value(),
		Status:      fs.status.value(),
		Priority:    fs.priority.value(),
		Severity:    fs.severity.value(),
		ProjectID:   fs.project.value(),
		AssigneeID:  fs.assignee.value(),
		StartDate:   fs.start.Value(),
		DueDate:     fs.due.Value(),
	}
}

func (fs *formState) choiceAt(i int) *choice {
	switch i {
	case fieldType:
		return &fs.typ
	case fieldStatus:
		return &fs.status
	case fieldPriority:
		return &fs.priority
	case fieldSeverity:
		return &fs.severity
	case fieldProject:
		return &fs.project
	case fieldAssignee:
		return &fs.assignee
	}
	return nil
}

func (fs *formState) cycle(d int) {
	fs.focus = (fs.focus + d + fieldCount) % fieldCount
	fs.updateFocus()
}

func (fs *formState) updateFocus() {
	fs.title.Blur()
	fs.desc.Blur()
	fs.start.Blur()
	fs.due.Blur()
	switch fs.focus {
	case fieldTitle:
		fs.title.Focus()
	case fieldDesc:
		fs.desc.Focus()
	case fieldStart:
		fs.start.Focus()
	case fieldDue:
		fs.due.Focus()
	}
}

// updateInput forwards a key to the focused text input
func (fs *formState) updateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch fs.focus {
	case fieldTitle:
		fs.title, cmd = fs.title.Update(msg)
	case fieldDesc:
		fs.desc, cmd = fs.desc.Update(msg)
	case fieldStart:
		fs.start, cmd = fs.start.Update(msg)
	case fieldDue:
		fs.due, cmd = fs.due.Update(msg)
	}
	return cmd
}

func (fs *formState) setWidth(w int) {
	fs.title.Width = w - 4
	fs.start.Width = w - 4
	fs.due.Width = w - 4
	fs.desc.SetWidth(w - 2)
}

func (fs *formState) render(s *styles.Styles, width int) string {
	inputWidth := clamp(width-8, 24, 60)
	fs.setWidth(inputWidth)

	heading := "New Task"
	if fs.mode == controller.FormEdit {
		heading = "Edit Task #" + strconv.FormatInt(fs.taskID, 10)
	}
	if fs.loading {
		return s.Modal.Render(lipgloss.JoinVertical(lipgloss.Left,
			s.Title.Render(heading), "", s.TitleMuted.Render("Loading task..."),
		))
	}

	input := func(i int, view string) string {
		st := s.Input
		if fs.focus == i {
			st = s.InputFocused
		}
		return st.Width(inputWidth).Render(view)
	}
	selectBox := func(i int, label string) string {
		c := fs.choiceAt(i)
		text := "‹ " + c.label() + " ›"
		st := s.TitleMuted
		if fs.focus == i {
			st = s.ListSelected
		}
		return s.Label.Width(10).Render(label) + " " + st.Render(text)
	}

	btn := s.Button
	if fs.focus == fieldSave {
		btn = s.ButtonFocused
	}

	lines := []string{
		s.Title.Render(heading),
		"",
		"Title:",
		input(fieldTitle, fs.title.View()),
		"Description:",
		input(fieldDesc, fs.desc.View()),
		selectBox(fieldType, "Type"),
		selectBox(fieldStatus, "Status"),
		selectBox(fieldPriority, "Priority"),
		selectBox(fieldSeverity, "Severity"),
		selectBox(fieldProject, "Project"),
		selectBox(fieldAssignee, "Assignee"),
		"Start date:",
		input(fieldStart, fs.start.View()),
		"Due date:",
		input(fieldDue, fs.due.View()),
		"",
		btn.Render(" Save "),
	}
	if fs.err != "" {
		lines = append(lines, s.FieldError.Render(fs.err))
	}
	lines = append(lines, "", s.TitleMuted.Render("Tab: next • ←→: change • Ctrl+S: save • Esc: cancel"))
	return s.Modal.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
