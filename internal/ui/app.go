package ui

import (
	"context"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/tasktrack/internal/controller"
	"github.com/tgienger/tasktrack/internal/db"
	"github.com/tgienger/tasktrack/internal/logger"
	"github.com/tgienger/tasktrack/internal/ui/views"
)

// Currently active view
type View int

const (
	ViewProjects View = iota
	ViewTasks
)

// lastProjectKey remembers the last opened task list. "all" is the
// unscoped list.
const lastProjectKey = "last_project_id"

// ConfigReloaded carries settings changed on disk while the app runs
type ConfigReloaded struct {
	Location    *time.Location
	SearchDelay time.Duration
}

// Options configure the app
type Options struct {
	DownloadDir string
	Now         func() time.Time
}

type App struct {
	ctx         context.Context
	ctrl        *controller.Controller
	db          *db.DB
	opts        Options
	currentView View
	projectList *views.ProjectListView
	taskList    *views.TaskListView
	width       int
	height      int
}

// NewApp creates the application. database may be nil, then the last
// opened list is not remembered.
func NewApp(ctx context.Context, ctrl *controller.Controller, database *db.DB, opts Options) *App {
	return &App{
		ctx:         ctx,
		ctrl:        ctrl,
		db:          database,
		opts:        opts,
		currentView: ViewProjects,
		projectList: views.NewProjectListView(ctrl),
	}
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{views.Run(a.ctx, a.ctrl.LoadReferenceData()), a.projectList.Init()}

	// Check for last opened project
	switch last := a.setting(); last {
	case "":
	case "all":
		cmds = append(cmds, a.openProject(0, views.AllProjectsLabel))
	default:
		if id, err := strconv.ParseInt(last, 10, 64); err == nil {
			cmds = append(cmds, a.openProject(id, ""))
		}
	}
	return tea.Batch(cmds...)
}

func (a *App) setting() string {
	if a.db == nil {
		return ""
	}
	v, err := a.db.GetSetting(lastProjectKey)
	if err != nil {
		logger.Warn("read setting", "key", lastProjectKey, "error", err)
		return ""
	}
	return v
}

func (a *App) saveSetting(value string) {
	if a.db == nil {
		return
	}
	if err := a.db.SetSetting(lastProjectKey, value); err != nil {
		logger.Warn("save setting", "key", lastProjectKey, "error", err)
	}
}

func (a *App) openProject(id int64, name string) tea.Cmd {
	a.currentView = ViewTasks
	a.taskList = views.NewTaskListView(a.ctx, a.ctrl, id, name, views.Options{
		DownloadDir: a.opts.DownloadDir,
		Now:         a.opts.Now,
	})

	// Save as last opened list
	if id == 0 {
		a.saveSetting("all")
	} else {
		a.saveSetting(strconv.FormatInt(id, 10))
	}

	// Initialize task list with window size
	return tea.Batch(
		a.taskList.Init(),
		func() tea.Msg {
			return tea.WindowSizeMsg{Width: a.width, Height: a.height}
		},
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Always update project list size since it persists
		a.projectList.Update(msg)

	case views.EventMsg:
		out := a.ctrl.Apply(msg.Event)
		applied := views.AppliedMsg{Outcome: out}
		cmds := []tea.Cmd{views.Run(a.ctx, out.Next...)}
		_, cmd := a.projectList.Update(applied)
		cmds = append(cmds, cmd)
		if a.taskList != nil {
			_, cmd = a.taskList.Update(applied)
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case views.ReloadReference:
		return a, views.Run(a.ctx, a.ctrl.LoadReferenceData())

	case ConfigReloaded:
		if msg.Location != nil {
			a.ctrl.SetLocation(msg.Location)
		}
		if msg.SearchDelay > 0 {
			a.ctrl.SetSearchDelay(msg.SearchDelay)
		}
		logger.Info("config reloaded")
		return a, nil

	case views.SelectedProject:
		return a, a.openProject(msg.ID, msg.Name)

	case views.BackToProjects:
		a.currentView = ViewProjects
		a.ctrl.ClearSelection()
		a.saveSetting("")
		return a, tea.Batch(
			a.projectList.Init(),
			func() tea.Msg {
				return tea.WindowSizeMsg{Width: a.width, Height: a.height}
			},
		)
	}

	var cmd tea.Cmd
	switch a.currentView {
	case ViewProjects:
		_, cmd = a.projectList.Update(msg)
	case ViewTasks:
		_, cmd = a.taskList.Update(msg)
	}

	return a, cmd
}

func (a *App) View() string {
	switch a.currentView {
	case ViewTasks:
		if a.taskList != nil {
			return a.taskList.View()
		}
	}
	return a.projectList.View()
}
