package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tgienger/tasktrack/internal/db"
	"github.com/tgienger/tasktrack/internal/export"
	"github.com/tgienger/tasktrack/internal/models"
)

func newExportCmd(app *App) *cobra.Command {
	var (
		filters filterFlags
		format  string
		out     string
		title   string
		font    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the filtered task list as JSON or PDF",
		Long:  `Writes the tasks matching the filters to --out. The format follows --format, or the file extension when --format is not given.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := export.FormatFromPath(out)
			if format != "" {
				var err error
				if f, err = export.ParseFormat(format); err != nil {
					return newError(InvalidInput, err.Error())
				}
			}
			ctrl, err := app.controller()
			if err != nil {
				return err
			}
			if err := filters.load(cmd, ctrl); err != nil {
				return err
			}
			tasks := ctrl.Tasks()
			err = export.WriteFile(out, f, tasks, export.Options{
				Title:    title,
				Location: ctrl.Location(),
				Now:      app.now(),
				FontPath: font,
			})
			if err != nil {
				app.note(models.LevelError, "export tasks", "Failed to export tasks: "+err.Error())
				return err
			}
			msg := fmt.Sprintf("Exported %d tasks to %s", len(tasks), out)
			app.note(models.LevelInfo, "export tasks", msg)
			if app.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "exported", "path": out, "format": f, "count": len(tasks)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	filters.bind(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", "", "json or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	cmd.Flags().StringVar(&title, "title", "", "report title (default \"Tasks\")")
	cmd.Flags().StringVar(&font, "font", "", "TTF font for the PDF, for non-Latin text")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newNotificationsCmd(app *App) *cobra.Command {
	var (
		limit int
		level string
		prune time.Duration
	)
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"log"},
		Short:   "Show the notification journal",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch models.Level(level) {
			case "", models.LevelInfo, models.LevelWarn, models.LevelError:
			default:
				return errorf(InvalidInput, "invalid --level %q (want info, warn or error)", level)
			}
			journal := app.openJournal()
			if journal == nil {
				return fmt.Errorf("open journal: %w", app.journalErr)
			}
			if prune > 0 {
				n, err := journal.Prune(app.now().Add(-prune))
				if err != nil {
					return fmt.Errorf("prune journal: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Pruned %d notifications\n", n)
			}
			notes, err := journal.ListNotifications(limit, models.Level(level))
			if err != nil {
				return fmt.Errorf("read journal: %w", err)
			}
			if app.JSON {
				if notes == nil {
					notes = []models.Notification{}
				}
				return writeJSON(cmd.OutOrStdout(), notes)
			}
			notificationTable(cmd.OutOrStdout(), notes, app.cfg.Location())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", db.DefaultListLimit, "number of entries")
	cmd.Flags().StringVar(&level, "level", "", "only this level (info, warn, error)")
	cmd.Flags().DurationVar(&prune, "prune", 0, "first delete entries older than this, e.g. 720h")
	return cmd
}
