package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/tgienger/tasktrack/internal/api"
	"github.com/tgienger/tasktrack/internal/controller"
	"github.com/tgienger/tasktrack/internal/export"
	"github.com/tgienger/tasktrack/internal/logger"
	"github.com/tgienger/tasktrack/internal/models"
	"github.com/tgienger/tasktrack/internal/viewmodel"
)

// filterFlags are the server-side task filters shared by list and export
type filterFlags struct {
	status   string
	assignee string
	project  string
	priority string
	search   string
	sort     string
	desc     bool
}

func (f *filterFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.status, "status", "", "filter by status (todo, in_progress, review, done)")
	fs.StringVar(&f.assignee, "assignee", "", "filter by assignee id or username")
	fs.StringVar(&f.project, "project", "", "filter by project id or name")
	fs.StringVar(&f.priority, "priority", "", "filter by priority (urgent, high, medium, low)")
	fs.StringVarP(&f.search, "search", "s", "", "search title and description")
	fs.StringVar(&f.sort, "sort", "", "sort by title, project, assignee, priority, status or due_date")
	fs.BoolVar(&f.desc, "desc", false, "sort descending")
}

// load fetches reference data and the filtered, sorted task list
func (f *filterFlags) load(cmd *cobra.Command, ctrl *controller.Controller) error {
	field, err := controller.ParseSortField(f.sort)
	if err != nil {
		return newError(InvalidInput, err.Error())
	}
	ctx := cmd.Context()
	// users and projects only resolve names; a failure is not fatal
	if _, err := ctrl.Run(ctx, ctrl.LoadReferenceData()); err != nil {
		logger.Warn("reference data unavailable", "error", err)
	}

	filter := api.TaskFilter{
		Status:   strings.ToLower(f.status),
		Priority: strings.ToLower(f.priority),
		Search:   f.search,
	}
	if filter.Assignee, err = resolveUser(ctrl, f.assignee); err != nil {
		return err
	}
	if filter.Project, err = resolveProject(ctrl, f.project); err != nil {
		return err
	}
	if err := filter.Validate(); err != nil {
		return err
	}
	if _, err := ctrl.Run(ctx, ctrl.LoadTasks(filter)); err != nil {
		return err
	}
	dir := controller.Ascending
	if f.desc {
		dir = controller.Descending
	}
	ctrl.SortBy(field, dir)
	return nil
}

// resolveUser accepts a numeric id, a login id or a username
func resolveUser(ctrl *controller.Controller, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == api.All {
		return s, nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return s, nil
	}
	for _, u := range ctrl.Users() {
		if strings.EqualFold(u.Username, s) || strings.EqualFold(u.UserID, s) {
			return strconv.FormatInt(u.ID, 10), nil
		}
	}
	return "", errorf(InvalidInput, "unknown user %q", s)
}

// resolveProject accepts a numeric id or a project name
func resolveProject(ctrl *controller.Controller, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == api.All {
		return s, nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return s, nil
	}
	for _, p := range ctrl.Projects() {
		if strings.EqualFold(p.Name, s) {
			return strconv.FormatInt(p.ID, 10), nil
		}
	}
	return "", errorf(InvalidInput, "unknown project %q", s)
}

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "Task commands",
	}
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksShowCmd(app))
	cmd.AddCommand(newTasksCreateCmd(app))
	cmd.AddCommand(newTasksUpdateCmd(app))
	cmd.AddCommand(newTasksDeleteCmd(app))
	return cmd
}

func newTasksListCmd(app *App) *cobra.Command {
	var (
		filters filterFlags
		limit   int
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := app.controller()
			if err != nil {
				return err
			}
			if err := filters.load(cmd, ctrl); err != nil {
				return err
			}
			tasks := ctrl.Tasks()
			if limit > 0 && len(tasks) > limit {
				tasks = tasks[:limit]
			}
			if app.JSON {
				return writeJSON(cmd.OutOrStdout(), export.Records(tasks, ctrl.Location(), app.now()))
			}
			taskTable(cmd.OutOrStdout(), viewmodel.Rows(tasks, viewmodel.Selection{}, ctrl.Location(), app.now()))
			return nil
		},
	}
	filters.bind(cmd.Flags())
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "limit number of results")
	return cmd
}

type commentJSON struct {
	ID          int64                  `json:"id"`
	Author      string                 `json:"author"`
	Created     string                 `json:"created"`
	Content     string                 `json:"content"`
	Attachments []viewmodel.Attachment `json:"attachments"`
}

type taskJSON struct {
	Task     export.Record `json:"task"`
	Comments []commentJSON `json:"comments"`
}

func commentsJSON(comments []viewmodel.Comment) []commentJSON {
	out := make([]commentJSON, 0, len(comments))
	for _, c := range comments {
		out = append(out, commentJSON{ID: c.ID, Author: c.Author, Created: c.Created, Content: c.Content, Attachments: c.Attachments})
	}
	return out
}

func newTasksShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a task with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			ctrl, err := app.controller()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := ctrl.Run(ctx, ctrl.LoadReferenceData()); err != nil {
				logger.Warn("reference data unavailable", "error", err)
			}
			// selection only accepts listed tasks
			if _, err := ctrl.Run(ctx, ctrl.LoadTasks(api.TaskFilter{})); err != nil {
				return err
			}
			ops := ctrl.SelectTask(id)
			if ops == nil {
				return errorf(NotFound, "task %d not found", id)
			}
			if _, err := ctrl.Run(ctx, ops...); err != nil {
				return err
			}
			task, _ := ctrl.SelectedTask()
			d := viewmodel.BuildDetail(task, ctrl.Comments(), ctrl.Location())
			if app.JSON {
				recs := export.Records([]models.Task{task}, ctrl.Location(), app.now())
				return writeJSON(cmd.OutOrStdout(), taskJSON{Task: recs[0], Comments: commentsJSON(d.Comments)})
			}
			taskDetail(cmd.OutOrStdout(), d, min(terminalWidth(cmd.OutOrStdout()), 100))
			return nil
		},
	}
}

// formFlags are the editable task fields
type formFlags struct {
	title       string
	description string
	typ         string
	status      string
	priority    string
	severity    string
	project     string
	assignee    string
	start       string
	due         string
}

func (f *formFlags) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&f.title, "title", "t", "", "task title")
	fs.StringVarP(&f.description, "description", "d", "", "task description (markdown)")
	fs.StringVar(&f.typ, "type", "", "task type ("+strings.Join(models.TaskTypes, ", ")+")")
	fs.StringVar(&f.status, "status", "", "status (todo, in_progress, review, done)")
	fs.StringVar(&f.priority, "priority", "", "priority (urgent, high, medium, low)")
	fs.StringVar(&f.severity, "severity", "", "severity (critical, major, normal, minor, trivial)")
	fs.StringVar(&f.project, "project", "", "project id or name")
	fs.StringVar(&f.assignee, "assignee", "", "assignee id or username, empty to unassign")
	fs.StringVar(&f.start, "start", "", "start date, YYYY-MM-DD [HH:MM]")
	fs.StringVar(&f.due, "due", "", "due date, YYYY-MM-DD [HH:MM]")
}

var formFlagNames = []string{"title", "description", "type", "status", "priority", "severity", "project", "assignee", "start", "due"}

// changed reports whether any field flag was given
func (f *formFlags) changed(fs *pflag.FlagSet) bool {
	for _, name := range formFlagNames {
		if fs.Changed(name) {
			return true
		}
	}
	return false
}

// apply copies the flags the user set onto form
func (f *formFlags) apply(fs *pflag.FlagSet, ctrl *controller.Controller, form *controller.TaskForm) error {
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("title", &form.Title, f.title)
	set("description", &form.Description, f.description)
	set("type", &form.Type, f.typ)
	set("status", &form.Status, strings.ToLower(f.status))
	set("priority", &form.Priority, strings.ToLower(f.priority))
	set("severity", &form.Severity, strings.ToLower(f.severity))
	set("start", &form.StartDate, f.start)
	set("due", &form.DueDate, f.due)
	if fs.Changed("project") {
		p, err := resolveProject(ctrl, f.project)
		if err != nil {
			return err
		}
		form.ProjectID = p
	}
	if fs.Changed("assignee") {
		a, err := resolveUser(ctrl, f.assignee)
		if err != nil {
			return err
		}
		form.AssigneeID = a
	}
	return nil
}

func newTasksCreateCmd(app *App) *cobra.Command {
	var fields formFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := app.controller()
			if err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := ctrl.Run(ctx, ctrl.LoadReferenceData()); err != nil {
				logger.Warn("reference data unavailable", "error", err)
			}
			form := controller.NewTaskForm()
			if err := fields.apply(cmd.Flags(), ctrl, form); err != nil {
				return err
			}
			in, err := form.Normalize(ctrl.Location())
			if err != nil {
				return err
			}
			task, err := client.CreateTask(ctx, in)
			if err != nil {
				app.note(models.LevelError, "create task", "Failed to create task: "+api.Message(err))
				return err
			}
			app.note(models.LevelInfo, "create task", "Task created")
			if app.JSON {
				return writeJSON(cmd.OutOrStdout(), export.Records([]models.Task{*task}, ctrl.Location(), app.now())[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task #%d: %s\n", task.ID, task.Title)
			return nil
		},
	}
	fields.bind(cmd.Flags())
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newTasksUpdateCmd(app *App) *cobra.Command {
	var fields formFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a task",
		Long:  `Updates the fields given as flags. Pass an empty value to clear --assignee, --start or --due.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			if !fields.changed(cmd.Flags()) {
				return newError(InvalidInput, "nothing to update; pass at least one field flag")
			}
			ctrl, err := app.controller()
			if err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := ctrl.Run(ctx, ctrl.LoadReferenceData()); err != nil {
				logger.Warn("reference data unavailable", "error", err)
			}
			current, err := client.GetTask(ctx, id)
			if err != nil {
				return err
			}
			form := controller.FormFromTask(*current, ctrl.Location())
			if err := fields.apply(cmd.Flags(), ctrl, form); err != nil {
				return err
			}
			in, err := form.Normalize(ctrl.Location())
			if err != nil {
				return err
			}
			if err := client.UpdateTask(ctx, id, in); err != nil {
				app.note(models.LevelError, "update task", "Failed to update task: "+api.Message(err))
				return err
			}
			app.note(models.LevelInfo, "update task", "Task updated")
			if app.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "updated", "id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated task #%d\n", id)
			return nil
		},
	}
	fields.bind(cmd.Flags())
	return cmd
}

// confirm asks on stdin unless yes is set. Without a terminal it refuses.
func confirm(cmd *cobra.Command, prompt string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return false, newError(ConfirmationReq, "cannot prompt for confirmation (not a terminal); use --yes")
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt+" [y/N] ")
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "y" && answer != "yes" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Canceled.")
		return false, nil
	}
	return true, nil
}

func newTasksDeleteCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a task and its comments",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			ctrl, err := app.controller()
			if err != nil {
				return err
			}
			p := ctrl.RequestDeleteTask(id)
			ok, err := confirm(cmd, p.Prompt, yes)
			if err != nil || !ok {
				ctrl.Cancel()
				return err
			}
			if _, err := ctrl.Run(cmd.Context(), ctrl.Confirm()); err != nil {
				return err
			}
			if app.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "deleted", "id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task #%d\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}
