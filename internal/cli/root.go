// Package cli implements the tasktrack command line: the interactive UI and
// scriptable subcommands over the same controller.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tgienger/tasktrack/internal/api"
	"github.com/tgienger/tasktrack/internal/config"
	"github.com/tgienger/tasktrack/internal/controller"
	"github.com/tgienger/tasktrack/internal/db"
	"github.com/tgienger/tasktrack/internal/logger"
	"github.com/tgienger/tasktrack/internal/metrics"
	"github.com/tgienger/tasktrack/internal/models"
	"github.com/tgienger/tasktrack/internal/ui/styles"
	"github.com/tgienger/tasktrack/internal/ui/views"
)

// Version information set via ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// App holds global flags and the lazily opened resources shared by commands
type App struct {
	ConfigPath  string
	BaseURL     string
	JSON        bool
	NoColor     bool
	Verbose     bool
	DownloadDir string

	cfg     *config.Config
	now     func() time.Time
	journal *db.DB
	// journalErr is remembered so a broken journal is reported once
	journalErr error
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{now: time.Now})
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasktrack",
		Short: "Terminal client for the team task tracker",
		Long: `tasktrack browses, filters and edits tasks on the team's task tracker backend.
Run it without arguments for the interactive UI, or use the subcommands from scripts.`,
		Example: strings.TrimSpace(`
  # Start the interactive UI
  tasktrack

  # Urgent tasks of project 3, most urgent first
  tasktrack tasks list --project 3 --priority urgent --sort due_date

  # Export everything in review as a PDF report
  tasktrack export --status review --out review.pdf
`),
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, app)
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations["config"] == "skip" {
			return nil
		}
		return app.setup(cmd)
	}
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return app.close()
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &Error{Code: InvalidInput, Message: err.Error(), Err: err}
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&app.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/tasktrack/config.yaml)")
	flags.StringVar(&app.BaseURL, "base-url", "", "backend URL, overrides base_url")
	flags.BoolVar(&app.JSON, "json", false, "output as JSON")
	flags.BoolVar(&app.NoColor, "no-color", false, "disable color output")
	flags.BoolVarP(&app.Verbose, "verbose", "v", false, "log to stderr")
	cmd.Flags().StringVar(&app.DownloadDir, "download-dir", "", "where attachments are saved (default ~/Downloads)")

	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newCommentsCmd(app))
	cmd.AddCommand(newAttachmentsCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newNotificationsCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDevServerCmd(app))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{now: time.Now}
	cmd := newRootCmd(app)
	err := cmd.ExecuteContext(ctx)
	if app.JSON {
		return report(os.Stdout, err, true)
	}
	return report(os.Stderr, err, false)
}

// setup loads the config and prepares logging and colors for a subcommand
func (a *App) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return err
	}
	if a.BaseURL != "" {
		cfg.BaseURL = a.BaseURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	var w io.Writer = io.Discard
	if a.Verbose {
		w = cmd.ErrOrStderr()
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON, w)

	noColor := a.NoColor || !isTerminal(cmd.OutOrStdout())
	styles.ApplyColorProfile(noColor)
	if noColor {
		views.MarkdownStyle = "notty"
	}
	return nil
}

func (a *App) close() error {
	if a.journal == nil {
		return nil
	}
	err := a.journal.Close()
	a.journal = nil
	return err
}

// client builds the REST client with the configured timeout and cookie
func (a *App) client() (*api.Client, error) {
	return api.New(a.cfg.BaseURL,
		api.WithTimeout(a.cfg.Timeout()),
		api.WithSessionCookie(a.cfg.SessionCookie),
		api.WithTransport(metrics.Transport(nil)),
		api.WithLogger(logger.Get()),
	)
}

// openJournal opens the notification journal. A journal that cannot be
// opened is logged and nil is returned; commands work without it.
func (a *App) openJournal() *db.DB {
	if a.journal != nil || a.journalErr != nil {
		return a.journal
	}
	d, err := db.New(a.cfg.JournalPath)
	if err != nil {
		logger.Warn("journal unavailable", "path", a.cfg.JournalPath, "error", err)
		a.journalErr = err
		return nil
	}
	a.journal = d
	return d
}

// controller builds a controller whose notifications are counted and journaled
func (a *App) controller() (*controller.Controller, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	notifier := metrics.CountingNotifier{}
	if j := a.openJournal(); j != nil {
		notifier.Next = j
	}
	return controller.New(client, controller.Options{
		Logger:      logger.Get(),
		Notifier:    notifier,
		Location:    a.cfg.Location(),
		SearchDelay: a.cfg.Debounce(),
		Now:         a.now,
	}), nil
}

// note journals a notification for work done outside the controller
func (a *App) note(level models.Level, op, msg string) {
	n := models.Notification{Level: level, Op: op, Message: msg, CreatedAt: a.now()}
	notifier := metrics.CountingNotifier{}
	if j := a.openJournal(); j != nil {
		notifier.Next = j
	}
	if err := notifier.Record(n); err != nil {
		logger.Warn("journal write failed", "error", err)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"config": "skip"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(),
				"tasktrack "+Version+" (commit: "+Commit+", built: "+Date+")\n")
			return err
		},
	}
}
