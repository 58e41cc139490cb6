package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/tgienger/tasktrack/internal/config"
)

const redacted = "<redacted>"

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	cmd.AddCommand(newConfigShowCmd(app))
	cmd.AddCommand(newConfigInitCmd(app))
	return cmd
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config after files and environment are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			shown := *app.cfg
			if shown.SessionCookie != "" {
				shown.SessionCookie = redacted
			}
			if app.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"path":             app.cfg.Path(),
					"base_url":         shown.BaseURL,
					"session_cookie":   shown.SessionCookie,
					"request_timeout":  shown.RequestTimeout,
					"search_debounce":  shown.SearchDebounce,
					"display_timezone": shown.DisplayTimezone,
					"log_level":        shown.LogLevel,
					"log_json":         shown.LogJSON,
					"log_file":         shown.LogFile,
					"journal_path":     shown.JournalPath,
					"metrics_addr":     shown.MetricsAddr,
				})
			}
			data, err := yaml.Marshal(&shown)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}
			if p := app.cfg.Path(); p != "" {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("# "+p))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("# no config file, defaults and environment only"))
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigInitCmd(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a config file with the default settings",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"config": "skip"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := app.ConfigPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return fmt.Errorf("resolving config path: %w", err)
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errorf(InvalidInput, "%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("checking %s: %w", path, err)
			}
			cfg := config.NewDefault()
			if app.BaseURL != "" {
				cfg.BaseURL = app.BaseURL
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			if app.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "created", "path": path})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
