package views

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/tasktrack/internal/controller"
	"github.com/tgienger/tasktrack/internal/models"
	"github.com/tgienger/tasktrack/internal/ui/keys"
	"github.com/tgienger/tasktrack/internal/ui/styles"
)

// AllProjectsLabel names the entry that lists tasks of every project
const AllProjectsLabel = "All projects"

type projectItem struct {
	id       int64
	name     string
	category string
	status   string
}

func (i projectItem) Title() string { return i.name }

func (i projectItem) Description() string {
	if i.id == 0 {
		return "Tasks across every project"
	}
	var parts []string
	if i.category != "" {
		parts = append(parts, i.category)
	}
	if i.status != "" {
		parts = append(parts, strings.ReplaceAll(i.status, "_", " "))
	}
	if len(parts) == 0 {
		return "No category"
	}
	return strings.Join(parts, " · ")
}

func (i projectItem) FilterValue() string { return i.name + " " + i.category }

type projectDelegate struct {
	styles *styles.Styles
	width  int
}

func (d projectDelegate) Height() int                               { return 2 }
func (d projectDelegate) Spacing() int                              { return 1 }
func (d projectDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d projectDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	p, ok := item.(projectItem)
	if !ok {
		return
	}

	selected := index == m.Index()
	width := max(d.width-4, 20)

	var titleStyle, descStyle lipgloss.Style
	if selected {
		titleStyle = d.styles.ListSelected.Width(width)
		descStyle = d.styles.ListSelected.Foreground(styles.Current.ForegroundDim).Width(width)
	} else {
		titleStyle = d.styles.ListItem.Width(width)
		descStyle = d.styles.ListItem.Foreground(styles.Current.ForegroundDim).Width(width)
	}

	fmt.Fprintf(w, "%s\n%s", titleStyle.Render(p.Title()), descStyle.Render(p.Description()))
}

// ProjectListView is the read-only project browser shown before a task list
type ProjectListView struct {
	ctrl     *controller.Controller
	list     list.Model
	delegate *projectDelegate
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int
	loaded   bool

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

// NewProjectListView creates the browser over the controller's reference data
func NewProjectListView(ctrl *controller.Controller) *ProjectListView {
	s := styles.NewStyles()
	delegate := &projectDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Projects"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	v := &ProjectListView{
		ctrl:     ctrl,
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
	}
	if len(ctrl.Projects()) > 0 {
		v.setProjects(ctrl.Projects())
	}
	return v
}

// SelectedProject opens the task list scoped to a project. ID 0 means every project.
type SelectedProject struct {
	ID   int64
	Name string
}

// Init does nothing; the app loads reference data
func (v *ProjectListView) Init() tea.Cmd { return nil }

func (v *ProjectListView) setProjects(projects []models.Project) {
	items := make([]list.Item, 0, len(projects)+1)
	items = append(items, projectItem{name: AllProjectsLabel})
	for _, p := range projects {
		item := projectItem{id: p.ID, name: p.Name, status: p.Status}
		if p.Category != nil {
			item.category = p.Category.Name
		}
		items = append(items, item)
	}
	v.list.SetItems(items)
	v.loaded = true
}

func (v *ProjectListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := min(styles.ContentWidth(msg.Width), 80)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-6)
		return v, nil

	case AppliedMsg:
		if msg.Outcome.Action == controller.ActionReferenceLoaded {
			v.setProjects(v.ctrl.Projects())
		}
		return v, nil

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		// typed characters belong to the list filter
		if v.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Help):
			v.showHelpPopup = true
			return v, nil
		case key.Matches(msg, v.keys.Refresh):
			return v, func() tea.Msg { return ReloadReference{} }
		case key.Matches(msg, v.keys.AllProjects):
			return v, func() tea.Msg { return SelectedProject{Name: AllProjectsLabel} }
		case key.Matches(msg, v.keys.Enter):
			if item, ok := v.list.SelectedItem().(projectItem); ok {
				return v, func() tea.Msg {
					return SelectedProject{ID: item.id, Name: item.name}
				}
			}
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

// View renders the view
func (v *ProjectListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading projects...")
	}

	content := v.list.View() + "\n" + v.renderHelp()
	if len(v.list.Items()) == 1 {
		content += "\n" + v.styles.TitleMuted.Render("No projects were returned by the server.")
	}
	return styles.CenterView(content, v.width, v.height)
}

func (v *ProjectListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return v.styles.Help.Render(
		fmt.Sprintf("%s open • %s all • %s filter • %s refresh • %s quit",
			v.styles.HelpKey.Render("↵"),
			v.styles.HelpKey.Render("a"),
			v.styles.HelpKey.Render("/"),
			v.styles.HelpKey.Render("r"),
			v.styles.HelpKey.Render("q"),
		),
	)
}

func (v *ProjectListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	helpItems := []string{
		s.HelpKey.Render("↵") + "      open project tasks",
		s.HelpKey.Render("a") + "      tasks of all projects",
		s.HelpKey.Render("/") + "      filter projects",
		s.HelpKey.Render("r") + "      reload projects",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}
