package views

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/tasktrack/internal/api"
	"github.com/tgienger/tasktrack/internal/controller"
	"github.com/tgienger/tasktrack/internal/models"
	"github.com/tgienger/tasktrack/internal/ui/keys"
	"github.com/tgienger/tasktrack/internal/ui/styles"
	"github.com/tgienger/tasktrack/internal/viewmodel"
)

// FocusArea represents which part of the UI has focus
type FocusArea int

const (
	FocusTaskList FocusArea = iota
	FocusSearchInput
	FocusFilterBar
	FocusDetail
)

// noticeTTL is how long the last notification stays in the status line
const noticeTTL = 8 * time.Second

var filterFields = []controller.FilterField{
	controller.FilterStatus,
	controller.FilterPriority,
	controller.FilterAssignee,
	controller.FilterProject,
}

// BackToProjects signals to go back to project list
type BackToProjects struct{}

type searchSettledMsg struct{ gen uint64 }

type noticeExpiredMsg struct{}

// Options configure a task list view
type Options struct {
	// DownloadDir receives downloaded attachments
	DownloadDir string
	Now         func() time.Time
}

// detailItem is a focusable line of the detail panel
type detailItem struct {
	commentID    int64
	attachmentID int64
}

// TaskListView shows the filtered task table, the detail panel of the
// selected task and its comments
type TaskListView struct {
	ctx    context.Context
	ctrl   *controller.Controller
	styles *styles.Styles
	keys   keys.KeyMap
	opts   Options

	// scope is the project the view was opened for, "" for all
	scope     string
	scopeName string

	width  int
	height int

	// UI state
	focus       FocusArea
	cursor      int
	scrollY     int
	searchInput textinput.Model
	searchGen   uint64

	// Filter bar state
	filterIdx      int
	dropdownOpen   bool
	dropdownCursor int

	// Detail panel state
	detailCursor  int
	detailItems   []detailItem
	detailScroll  int
	commentInput  textarea.Model
	attachInput   textinput.Model
	commentFocus  bool
	attachFocused bool

	form *formState

	// Help popup (shown with ?)
	showHelpPopup bool
}

// NewTaskListView creates a task list scoped to projectID (0 for every project)
func NewTaskListView(ctx context.Context, ctrl *controller.Controller, projectID int64, projectName string, opts Options) *TaskListView {
	s := styles.NewStyles()
	if opts.Now == nil {
		opts.Now = time.Now
	}

	search := textinput.New()
	search.Placeholder = "Search title or description..."
	search.CharLimit = 100

	commentInput := textarea.New()
	commentInput.Placeholder = "Add a comment..."
	commentInput.CharLimit = 5000
	commentInput.SetWidth(50)
	commentInput.SetHeight(3)
	commentInput.ShowLineNumbers = false

	attach := textinput.New()
	attach.Placeholder = "Files to attach, comma separated"
	attach.CharLimit = 1000

	v := &TaskListView{
		ctx:          ctx,
		ctrl:         ctrl,
		styles:       s,
		keys:         keys.DefaultKeyMap(),
		opts:         opts,
		scopeName:    projectName,
		focus:        FocusTaskList,
		searchInput:  search,
		commentInput: commentInput,
		attachInput:  attach,
	}
	if projectID != 0 {
		v.scope = strconv.FormatInt(projectID, 10)
	}
	return v
}

// Init loads the tasks of the view's scope
func (v *TaskListView) Init() tea.Cmd {
	return Run(v.ctx, v.ctrl.LoadTasks(api.TaskFilter{Project: v.scope}))
}

// Focus returns the focused area
func (v *TaskListView) Focus() FocusArea { return v.focus }

// Update handles messages
func (v *TaskListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.commentInput.SetWidth(clamp(v.detailWidth()-6, 20, 80))
		v.searchInput.Width = clamp(styles.ContentWidth(v.width)/3, 10, 40)
		v.ensureVisible()
		return v, nil

	case AppliedMsg:
		return v, v.applied(msg.Outcome)

	case searchSettledMsg:
		return v, Run(v.ctx, v.ctrl.SearchSettled(msg.gen))

	case noticeExpiredMsg:
		return v, nil

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.ctrl.Pending() != nil {
			return v.updateConfirm(msg)
		}
		if v.form != nil {
			return v.updateForm(msg)
		}
		if v.dropdownOpen {
			return v.updateDropdown(msg)
		}
		if v.commentFocus {
			return v.updateComment(msg)
		}
		switch v.focus {
		case FocusSearchInput:
			return v.updateSearch(msg)
		case FocusFilterBar:
			return v.updateFilterBar(msg)
		case FocusDetail:
			return v.updateDetail(msg)
		}
		return v.updateNormal(msg)
	}

	if v.form != nil {
		return v, v.form.updateInput(msg)
	}
	return v, nil
}

// applied reacts to an event the app folded into the controller
func (v *TaskListView) applied(out controller.Outcome) tea.Cmd {
	switch out.Action {
	case controller.ActionTasksLoaded, controller.ActionTaskDeleted:
		v.clampCursor()
	case controller.ActionFormLoaded:
		if f := v.ctrl.Form(); f == nil {
			v.form = nil
		} else if v.form != nil {
			v.form.load(f)
		}
	case controller.ActionTaskSaved:
		if v.ctrl.Form() == nil {
			v.form = nil
		} else if v.form != nil && out.Err != nil {
			v.form.err = api.Message(out.Err)
		}
	case controller.ActionCommentAdded:
		if out.Err == nil {
			v.commentInput.Reset()
			v.attachInput.Reset()
			v.commentFocus = false
			v.attachFocused = false
			v.commentInput.Blur()
			v.attachInput.Blur()
		}
	}
	if v.form != nil && v.ctrl.Form() == nil {
		v.form = nil
	}
	if id, visible := v.ctrl.Selection(); id == 0 || !visible {
		if v.focus == FocusDetail {
			v.focus = FocusTaskList
		}
		v.commentFocus = false
	}
	if len(out.Notices) > 0 {
		return tea.Tick(noticeTTL, func(time.Time) tea.Msg { return noticeExpiredMsg{} })
	}
	return nil
}

func (v *TaskListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tasks := v.ctrl.Tasks()

	for i, b := range v.keys.Sort {
		if key.Matches(msg, b) {
			v.sortBy(controller.SortFields[i])
			return v, nil
		}
	}

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		if id, visible := v.ctrl.Selection(); id != 0 && visible {
			v.ctrl.ClearSelection()
			return v, nil
		}
		return v, func() tea.Msg { return BackToProjects{} }

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil

	case key.Matches(msg, v.keys.Tab):
		v.focus = FocusFilterBar
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(tasks)-1 {
			v.cursor++
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if t, ok := v.cursorTask(); ok {
			v.detailCursor, v.detailScroll = 0, 0
			return v, Run(v.ctx, v.ctrl.SelectTask(t.ID)...)
		}
		return v, nil

	case key.Matches(msg, v.keys.Detail):
		if id, visible := v.ctrl.Selection(); id != 0 && visible {
			v.focus = FocusDetail
		}
		return v, nil

	case key.Matches(msg, v.keys.Edit):
		if t, ok := v.cursorTask(); ok {
			return v, v.openEdit(t.ID)
		}
		return v, nil

	case key.Matches(msg, v.keys.New):
		return v, v.openCreate()

	case key.Matches(msg, v.keys.Delete):
		if t, ok := v.cursorTask(); ok {
			v.ctrl.RequestDeleteTask(t.ID)
		}
		return v, nil

	case key.Matches(msg, v.keys.Search):
		v.focus = FocusSearchInput
		return v, v.searchInput.Focus()

	case key.Matches(msg, v.keys.Filter):
		v.focus = FocusFilterBar
		v.openDropdown()
		return v, nil

	case key.Matches(msg, v.keys.ClearFilters):
		v.searchInput.Reset()
		// a list opened for one project stays on that project
		return v, Run(v.ctx, v.ctrl.ResetFilters(api.TaskFilter{Project: v.scope}))

	case key.Matches(msg, v.keys.Refresh):
		ops := append([]controller.Op{v.ctrl.Refresh()}, v.ctrl.RefreshDetail()...)
		return v, Run(v.ctx, ops...)

	case key.Matches(msg, v.keys.Comment):
		return v, v.focusComment()
	}

	return v, nil
}

func (v *TaskListView) sortBy(field controller.SortField) {
	var keep int64
	if t, ok := v.cursorTask(); ok {
		keep = t.ID
	}
	v.ctrl.ToggleSort(field)
	for i, t := range v.ctrl.Tasks() {
		if t.ID == keep {
			v.cursor = i
			break
		}
	}
	v.ensureVisible()
}

func (v *TaskListView) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.searchInput.Blur()
		v.focus = FocusTaskList
		return v, nil
	case key.Matches(msg, v.keys.Enter):
		v.searchInput.Blur()
		v.focus = FocusTaskList
		if v.searchGen == 0 {
			return v, nil
		}
		return v, Run(v.ctx, v.ctrl.SearchSettled(v.searchGen))
	}

	before := v.searchInput.Value()
	var cmd tea.Cmd
	v.searchInput, cmd = v.searchInput.Update(msg)
	if v.searchInput.Value() == before {
		return v, cmd
	}
	gen, delay := v.ctrl.SearchInput(v.searchInput.Value())
	v.searchGen = gen
	return v, tea.Batch(cmd, tea.Tick(delay, func(time.Time) tea.Msg {
		return searchSettledMsg{gen: gen}
	}))
}

func (v *TaskListView) updateFilterBar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Tab):
		v.focus = FocusTaskList
	case key.Matches(msg, v.keys.Left):
		v.filterIdx = (v.filterIdx + len(filterFields) - 1) % len(filterFields)
	case key.Matches(msg, v.keys.Right):
		v.filterIdx = (v.filterIdx + 1) % len(filterFields)
	case key.Matches(msg, v.keys.Enter), key.Matches(msg, v.keys.Down):
		v.openDropdown()
	case key.Matches(msg, v.keys.Search):
		v.focus = FocusSearchInput
		return v, v.searchInput.Focus()
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	}
	return v, nil
}

func (v *TaskListView) openDropdown() {
	v.dropdownOpen = true
	v.dropdownCursor = 0
	current := v.filterValue(filterFields[v.filterIdx])
	for i, o := range v.filterOptions(filterFields[v.filterIdx]) {
		if o.value == current {
			v.dropdownCursor = i
		}
	}
}

func (v *TaskListView) updateDropdown(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	field := filterFields[v.filterIdx]
	opts := v.filterOptions(field)
	switch {
	case key.Matches(msg, v.keys.Back):
		v.dropdownOpen = false
	case key.Matches(msg, v.keys.Up):
		if v.dropdownCursor > 0 {
			v.dropdownCursor--
		}
	case key.Matches(msg, v.keys.Down):
		if v.dropdownCursor < len(opts)-1 {
			v.dropdownCursor++
		}
	case key.Matches(msg, v.keys.Enter):
		v.dropdownOpen = false
		v.focus = FocusTaskList
		if v.dropdownCursor >= len(opts) {
			return v, nil
		}
		op, err := v.ctrl.SetFilter(field, opts[v.dropdownCursor].value)
		if err != nil {
			return v, nil
		}
		v.cursor, v.scrollY = 0, 0
		return v, Run(v.ctx, op)
	}
	return v, nil
}

// filterOptions lists the choices of a filter dropdown, "All" first
func (v *TaskListView) filterOptions(field controller.FilterField) []option {
	opts := []option{{label: "All", value: ""}}
	switch field {
	case controller.FilterStatus:
		for _, s := range models.Statuses {
			opts = append(opts, option{label: s.Label(), value: string(s)})
		}
	case controller.FilterPriority:
		for _, p := range models.Priorities {
			opts = append(opts, option{label: p.Label(), value: string(p)})
		}
	case controller.FilterAssignee:
		for _, u := range v.ctrl.Assignees() {
			opts = append(opts, option{label: viewmodel.DisplayName(u.Ref()), value: strconv.FormatInt(u.ID, 10)})
		}
	case controller.FilterProject:
		for _, p := range v.ctrl.Projects() {
			opts = append(opts, option{label: p.Name, value: strconv.FormatInt(p.ID, 10)})
		}
	}
	return opts
}

func (v *TaskListView) filterValue(field controller.FilterField) string {
	f := v.ctrl.Filters()
	var val string
	switch field {
	case controller.FilterStatus:
		val = f.Status
	case controller.FilterPriority:
		val = f.Priority
	case controller.FilterAssignee:
		val = f.Assignee
	case controller.FilterProject:
		val = f.Project
	}
	if val == api.All {
		return ""
	}
	return val
}

func (v *TaskListView) filterLabel(field controller.FilterField) string {
	val := v.filterValue(field)
	for _, o := range v.filterOptions(field) {
		if o.value == val {
			return o.label
		}
	}
	return val
}

func (v *TaskListView) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Yes):
		return v, Run(v.ctx, v.ctrl.Confirm())
	case key.Matches(msg, v.keys.No):
		v.ctrl.Cancel()
	}
	return v, nil
}

func (v *TaskListView) openCreate() tea.Cmd {
	f := v.ctrl.OpenCreate()
	if p := v.filterValue(controller.FilterProject); p != "" {
		f.ProjectID = p
	}
	v.form = newFormState(v.ctrl, f)
	v.form.setWidth(clamp(styles.ContentWidth(v.width)-8, 24, 60))
	return textinput.Blink
}

func (v *TaskListView) openEdit(id int64) tea.Cmd {
	op := v.ctrl.OpenEdit(id)
	v.form = newFormState(v.ctrl, v.ctrl.Form())
	return tea.Batch(Run(v.ctx, op), textinput.Blink)
}

func (v *TaskListView) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fs := v.form
	if key.Matches(msg, v.keys.Back) {
		v.ctrl.CloseForm()
		v.form = nil
		return v, nil
	}
	if fs.loading {
		return v, nil
	}

	switch {
	case key.Matches(msg, v.keys.Save):
		return v, v.submitForm()
	case key.Matches(msg, v.keys.Tab), msg.String() == "down" && fs.focus != fieldDesc:
		fs.cycle(1)
		return v, nil
	case msg.String() == "shift+tab", msg.String() == "up" && fs.focus != fieldDesc:
		fs.cycle(-1)
		return v, nil
	case msg.String() == "enter":
		switch fs.focus {
		case fieldSave:
			return v, v.submitForm()
		case fieldDesc:
		default:
			fs.cycle(1)
			return v, nil
		}
	}

	if c := fs.choiceAt(fs.focus); c != nil {
		switch msg.String() {
		case "left", "h":
			c.move(-1)
		case "right", "l", " ":
			c.move(1)
		}
		return v, nil
	}
	return v, fs.updateInput(msg)
}

func (v *TaskListView) submitForm() tea.Cmd {
	op, err := v.ctrl.SubmitForm(v.form.taskForm())
	if err != nil {
		v.form.err = err.Error()
		return nil
	}
	v.form.err = ""
	return Run(v.ctx, op)
}

func (v *TaskListView) focusComment() tea.Cmd {
	id, visible := v.ctrl.Selection()
	if id == 0 || !visible {
		return nil
	}
	text, files := v.ctrl.CommentDraft()
	if v.commentInput.Value() == "" && text != "" {
		v.commentInput.SetValue(text)
		v.attachInput.SetValue(strings.Join(files, ", "))
	}
	v.commentFocus = true
	v.attachFocused = false
	return v.commentInput.Focus()
}

func (v *TaskListView) attachPaths() []string {
	var paths []string
	for _, p := range strings.Split(v.attachInput.Value(), ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func (v *TaskListView) updateComment(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.ctrl.SetCommentDraft(v.commentInput.Value(), v.attachPaths())
		v.commentFocus = false
		v.attachFocused = false
		v.commentInput.Blur()
		v.attachInput.Blur()
		return v, nil
	case key.Matches(msg, v.keys.Save):
		id, _ := v.ctrl.Selection()
		op, err := v.ctrl.AddComment(id, v.commentInput.Value(), v.attachPaths())
		if err != nil {
			return v, nil
		}
		return v, Run(v.ctx, op)
	case key.Matches(msg, v.keys.Attach):
		v.attachFocused = !v.attachFocused
		if v.attachFocused {
			v.commentInput.Blur()
			return v, v.attachInput.Focus()
		}
		v.attachInput.Blur()
		return v, v.commentInput.Focus()
	}

	var cmd tea.Cmd
	if v.attachFocused {
		v.attachInput, cmd = v.attachInput.Update(msg)
	} else {
		v.commentInput, cmd = v.commentInput.Update(msg)
	}
	return v, cmd
}

func (v *TaskListView) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Tab):
		v.focus = FocusTaskList
	case key.Matches(msg, v.keys.Up):
		if v.detailCursor > 0 {
			v.detailCursor--
		}
	case key.Matches(msg, v.keys.Down):
		if v.detailCursor < len(v.detailItems)-1 {
			v.detailCursor++
		}
	case key.Matches(msg, v.keys.Download), key.Matches(msg, v.keys.Enter):
		if it, ok := v.detailItem(); ok && it.attachmentID != 0 {
			return v, Run(v.ctx, v.ctrl.DownloadAttachment(it.attachmentID, v.opts.DownloadDir))
		}
	case key.Matches(msg, v.keys.Delete):
		if it, ok := v.detailItem(); ok && it.attachmentID == 0 {
			v.ctrl.RequestDeleteComment(it.commentID)
		}
	case key.Matches(msg, v.keys.Comment):
		return v, v.focusComment()
	case key.Matches(msg, v.keys.Edit):
		if id, _ := v.ctrl.Selection(); id != 0 {
			return v, v.openEdit(id)
		}
	case key.Matches(msg, v.keys.Refresh):
		return v, Run(v.ctx, v.ctrl.RefreshDetail()...)
	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	}
	return v, nil
}

func (v *TaskListView) detailItem() (detailItem, bool) {
	if v.detailCursor < 0 || v.detailCursor >= len(v.detailItems) {
		return detailItem{}, false
	}
	return v.detailItems[v.detailCursor], true
}

func (v *TaskListView) cursorTask() (models.Task, bool) {
	tasks := v.ctrl.Tasks()
	if v.cursor < 0 || v.cursor >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[v.cursor], true
}

func (v *TaskListView) clampCursor() {
	if n := len(v.ctrl.Tasks()); v.cursor >= n {
		v.cursor = max(0, n-1)
	}
	v.ensureVisible()
}

// visibleRows is the number of table rows that fit
func (v *TaskListView) visibleRows() int {
	return max(v.height-10, 1)
}

func (v *TaskListView) ensureVisible() {
	rows := v.visibleRows()
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	} else if v.cursor >= v.scrollY+rows {
		v.scrollY = v.cursor - rows + 1
	}
	v.scrollY = max(v.scrollY, 0)
}

// split reports whether the detail panel sits beside the table
func (v *TaskListView) split() bool {
	return styles.ContentWidth(v.width) >= styles.SplitMinWidth
}

func (v *TaskListView) detailWidth() int {
	w := styles.ContentWidth(v.width)
	if v.split() {
		return w * 2 / 5
	}
	return w
}

// View renders the view
func (v *TaskListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if p := v.ctrl.Pending(); p != nil {
		return v.renderConfirm(p)
	}
	if v.form != nil {
		return v.renderModal(v.form.render(v.styles, styles.ContentWidth(v.width)))
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n")

	width := styles.ContentWidth(v.width)
	id, visible := v.ctrl.Selection()
	showDetail := id != 0 && visible
	bodyHeight := max(v.height-7, 3)
	switch {
	case showDetail && v.split():
		tableWidth := width - v.detailWidth() - 1
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			v.renderTable(tableWidth),
			" ",
			v.renderDetail(v.detailWidth(), bodyHeight),
		))
	case showDetail:
		b.WriteString(v.renderDetail(width, bodyHeight))
	default:
		b.WriteString(v.renderTable(width))
	}

	b.WriteString("\n")
	b.WriteString(v.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(v.renderHelp())
	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TaskListView) title() string {
	if p := v.filterValue(controller.FilterProject); p != "" {
		id, _ := strconv.ParseInt(p, 10, 64)
		if proj, ok := v.ctrl.Project(id); ok {
			return proj.Name
		}
		if p == v.scope && v.scopeName != "" {
			return v.scopeName
		}
		return "Project #" + p
	}
	return AllProjectsLabel
}

func (v *TaskListView) renderHeader() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	count := fmt.Sprintf("%d tasks", len(v.ctrl.Tasks()))
	if n := v.ctrl.Filters().Active(); n > 0 {
		count += fmt.Sprintf(" • %d filters", n)
	}
	if v.ctrl.Loading() {
		count += " • loading…"
	}
	title := s.Title.Render(v.title()) + "  " + s.TitleMuted.Render(count)

	searchStyle := s.Input
	if v.focus == FocusSearchInput {
		searchStyle = s.InputFocused
	}
	searchBox := searchStyle.Render(v.searchInput.View())

	var buttons []string
	for i, field := range filterFields {
		st := s.Button
		if v.focus == FocusFilterBar && v.filterIdx == i {
			st = s.ButtonFocused
		}
		label := v.filterLabel(field)
		if contentWidth >= 100 {
			label = strings.ToUpper(string(field[:1])) + string(field[1:]) + ": " + label
		}
		buttons = append(buttons, st.Render(label+" ▼"))
	}

	bar := lipgloss.JoinHorizontal(lipgloss.Center, append([]string{searchBox, " "}, buttons...)...)
	if lipgloss.Width(bar) > contentWidth {
		bar = lipgloss.JoinVertical(lipgloss.Left, searchBox, lipgloss.JoinHorizontal(lipgloss.Center, buttons...))
	}

	header := lipgloss.JoinVertical(lipgloss.Left, title, bar)
	if v.dropdownOpen {
		header = lipgloss.JoinVertical(lipgloss.Left, header, v.renderDropdown())
	}
	return header
}

func (v *TaskListView) renderDropdown() string {
	s := v.styles
	var items []string
	for i, o := range v.filterOptions(filterFields[v.filterIdx]) {
		st := s.ListItem
		if i == v.dropdownCursor {
			st = s.ListSelected
		}
		items = append(items, st.Render(o.label))
	}
	return s.FilterBar.Render(lipgloss.JoinVertical(lipgloss.Left, items...))
}

type tableColumn struct {
	title string
	field controller.SortField
	width int
}

func (v *TaskListView) columns(width int) []tableColumn {
	cols := []tableColumn{
		{title: "#", width: 5},
		{title: "Title", field: controller.SortTitle},
		{title: "Project", field: controller.SortProject, width: 16},
		{title: "Assignee", field: controller.SortAssignee, width: 14},
		{title: "Priority", field: controller.SortPriority, width: 9},
		{title: "Status", field: controller.SortStatus, width: 12},
		{title: "Due", field: controller.SortDueDate, width: 16},
	}
	// narrow tables drop project and assignee
	if width < 90 {
		cols = append(cols[:2], cols[4:]...)
	}
	fixed := 0
	for _, c := range cols {
		fixed += c.width + 1
	}
	cols[1].width = max(width-fixed, 12)
	return cols
}

func (v *TaskListView) renderTable(width int) string {
	s := v.styles
	tasks := v.ctrl.Tasks()

	if len(tasks) == 0 {
		switch {
		case v.ctrl.TasksError() != "":
			return s.FieldError.Render("Could not load tasks: "+v.ctrl.TasksError()) + "\n" +
				s.TitleMuted.Render("Press 'r' to retry.")
		case v.ctrl.Loading():
			return s.TitleMuted.Render("Loading tasks...")
		}
		return s.TitleMuted.Render("No tasks match the current filters. Press 'n' to create one.")
	}

	cols := v.columns(width)
	sort := v.ctrl.Sort()
	var header []string
	for _, c := range cols {
		label := c.title
		if c.field != controller.SortNone && c.field == sort.Field {
			if sort.Direction == controller.Descending {
				label += " ▼"
			} else {
				label += " ▲"
			}
		}
		header = append(header, s.TableHeader.Render(fit(label, c.width)))
	}
	lines := []string{strings.Join(header, " ")}

	id, _ := v.ctrl.Selection()
	rows := viewmodel.Rows(tasks, viewmodel.Selection{ID: id}, v.ctrl.Location(), v.opts.Now())
	end := min(v.scrollY+v.visibleRows(), len(rows))
	for i := v.scrollY; i < end; i++ {
		lines = append(lines, v.renderRow(rows[i], cols, i == v.cursor && v.focus == FocusTaskList))
	}
	if len(rows) > end || v.scrollY > 0 {
		lines = append(lines, s.TitleMuted.Render(fmt.Sprintf("%d–%d of %d", v.scrollY+1, end, len(rows))))
	}
	return strings.Join(lines, "\n")
}

func (v *TaskListView) renderRow(r viewmodel.Row, cols []tableColumn, cursor bool) string {
	s := v.styles
	base := s.TableRow
	if r.Selected {
		base = s.TableSelected
	}
	var cells []string
	for _, c := range cols {
		st := base
		var text string
		switch c.title {
		case "#":
			text = strconv.FormatInt(r.ID, 10)
			if r.Selected {
				text = "▸" + text
			}
		case "Title":
			text = r.Title
		case "Project":
			text = r.Project
		case "Assignee":
			text = r.Assignee
		case "Priority":
			text = r.PriorityLabel
			st = st.Foreground(styles.PriorityColor(r.Priority))
		case "Status":
			text = r.StatusLabel
			st = st.Foreground(styles.StatusColor(r.Status))
		case "Due":
			text = r.Due
			if r.Overdue {
				st = s.Overdue
			}
		}
		if cursor {
			st = st.Inherit(s.TableCursor)
		}
		cells = append(cells, st.Render(fit(text, c.width)))
	}
	sep := " "
	if cursor {
		sep = s.TableCursor.Render(" ")
	}
	return strings.Join(cells, sep)
}

func (v *TaskListView) renderDetail(width, height int) string {
	s := v.styles
	task, ok := v.ctrl.SelectedTask()
	if !ok {
		return ""
	}
	d := viewmodel.BuildDetail(task, v.ctrl.Comments(), v.ctrl.Location())
	inner := max(width-4, 10)

	var lines []string
	lines = append(lines, s.Title.Width(inner).Render(d.Title))
	for _, f := range d.Fields {
		value := f.Value
		switch f.Label {
		case "Status":
			value = lipgloss.NewStyle().Foreground(styles.StatusColor(task.Status)).Render(value)
		case "Priority":
			value = lipgloss.NewStyle().Foreground(styles.PriorityColor(task.Priority)).Render(value)
		case "Due":
			if viewmodel.Overdue(task, v.opts.Now()) {
				value = s.Overdue.Render(value + " (overdue)")
			}
		}
		lines = append(lines, s.Label.Render(f.Label)+" "+value)
	}
	lines = append(lines, "", s.TitleMuted.Render("Description"))
	if desc := renderMarkdown(d.Description, inner); desc != "" {
		lines = append(lines, desc)
	} else {
		lines = append(lines, s.TitleMuted.Render("No description"))
	}

	lines = append(lines, "", s.TitleMuted.Render(fmt.Sprintf("Comments (%d)", len(d.Comments))))
	v.detailItems = v.detailItems[:0]
	cursorLine := -1
	mark := func() bool {
		idx := len(v.detailItems) - 1
		if v.focus == FocusDetail && idx == v.detailCursor {
			cursorLine = len(lines)
			return true
		}
		return false
	}
	if msg := v.ctrl.CommentsError(); msg != "" {
		lines = append(lines, s.FieldError.Render("Could not load comments: "+msg))
	} else if len(d.Comments) == 0 {
		lines = append(lines, s.TitleMuted.Render("No comments yet"))
	}
	for _, c := range d.Comments {
		v.detailItems = append(v.detailItems, detailItem{commentID: c.ID})
		head := s.HelpKey.Render(c.Author) + " " + s.TitleMuted.Render(c.Created)
		if mark() {
			head = s.ListSelected.Render("›") + " " + head
		}
		lines = append(lines, head, lipgloss.NewStyle().Width(inner).Render(c.Content))
		for _, a := range c.Attachments {
			v.detailItems = append(v.detailItems, detailItem{commentID: c.ID, attachmentID: a.ID})
			line := "  ↓ " + s.Attachment.Render(a.Filename)
			if mark() {
				line = s.ListSelected.Render("›") + line[1:]
			}
			lines = append(lines, line)
		}
	}
	if v.detailCursor >= len(v.detailItems) {
		v.detailCursor = max(0, len(v.detailItems)-1)
	}

	if v.commentFocus {
		inputStyle := s.InputFocused
		attachStyle := s.Input
		if v.attachFocused {
			inputStyle, attachStyle = s.Input, s.InputFocused
		}
		lines = append(lines, "",
			inputStyle.Render(v.commentInput.View()),
			attachStyle.Width(inner-2).Render(v.attachInput.View()),
			s.TitleMuted.Render("ctrl+s send • ctrl+a attachments • esc close"),
		)
		cursorLine = len(lines) - 1
	}

	content := strings.Join(lines, "\n")
	total := strings.Count(content, "\n") + 1
	avail := max(height-2, 1)
	if cursorLine >= 0 {
		if cursorLine < v.detailScroll {
			v.detailScroll = cursorLine
		} else if cursorLine >= v.detailScroll+avail {
			v.detailScroll = cursorLine - avail + 1
		}
	}
	v.detailScroll = clamp(v.detailScroll, 0, max(total-avail, 0))
	content = clipLines(content, v.detailScroll, avail)

	panel := s.Panel
	if v.focus == FocusDetail || v.commentFocus {
		panel = s.PanelFocused
	}
	return panel.Width(width - 2).Render(content)
}

func (v *TaskListView) renderStatusLine() string {
	n, ok := v.ctrl.LastNotice()
	if !ok || v.opts.Now().Sub(n.CreatedAt) > noticeTTL {
		return ""
	}
	st := lipgloss.NewStyle().Foreground(styles.LevelColor(n.Level))
	return v.styles.StatusBar.Render(st.Render(n.Message))
}

func (v *TaskListView) renderHelp() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 60 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}
	return s.Help.Render(
		fmt.Sprintf("%s open • %s edit • %s new • %s del • %s search • %s filter • %s sort • %s comment • %s back • %s help",
			s.HelpKey.Render("↵"),
			s.HelpKey.Render("e"),
			s.HelpKey.Render("n"),
			s.HelpKey.Render("d"),
			s.HelpKey.Render("/"),
			s.HelpKey.Render("f"),
			s.HelpKey.Render("1-6"),
			s.HelpKey.Render("c"),
			s.HelpKey.Render("esc"),
			s.HelpKey.Render("?"),
		),
	)
}

func (v *TaskListView) renderHelpPopup() string {
	s := v.styles
	helpItems := []string{
		s.HelpKey.Render("↵") + "      open task details",
		s.HelpKey.Render("e") + "      edit task",
		s.HelpKey.Render("n") + "      new task",
		s.HelpKey.Render("d") + "      delete task or comment",
		s.HelpKey.Render("/") + "      search",
		s.HelpKey.Render("f") + "      filter (←→ pick, ↵ open)",
		s.HelpKey.Render("x") + "      clear filters",
		s.HelpKey.Render("1-6") + "    sort by title, project, assignee, priority, status, due",
		s.HelpKey.Render("v") + "      focus details",
		s.HelpKey.Render("c") + "      comment",
		s.HelpKey.Render("o") + "      download attachment",
		s.HelpKey.Render("r") + "      refresh",
		s.HelpKey.Render("esc") + "    close details / back",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)
	return v.renderModal(s.FilterBar.Render(content))
}

func (v *TaskListView) renderConfirm(p *controller.Confirmation) string {
	s := v.styles
	heading := "Delete Task?"
	if p.Kind == controller.ConfirmDeleteComment {
		heading = "Delete Comment?"
	}
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render(heading),
		"",
		s.TitleMuted.Render(p.Prompt),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)
	return v.renderModal(content)
}

func (v *TaskListView) renderModal(content string) string {
	contentWidth := styles.ContentWidth(v.width)
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}
