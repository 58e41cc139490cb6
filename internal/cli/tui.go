package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tgienger/tasktrack/internal/config"
	"github.com/tgienger/tasktrack/internal/logger"
	"github.com/tgienger/tasktrack/internal/metrics"
	"github.com/tgienger/tasktrack/internal/ui"
	"github.com/tgienger/tasktrack/internal/watcher"
)

// journalRetention is how long journal entries survive a TUI start
const journalRetention = 30 * 24 * time.Hour

func runTUI(cmd *cobra.Command, app *App) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return newError(InvalidInput, "the interactive UI needs a terminal; use a subcommand such as \"tasktrack tasks list\"")
	}

	// The alternate screen owns the terminal, so logs go to a file.
	logFile, err := logger.OpenFile(app.cfg.LogFile)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	logger.Init(app.cfg.LogLevel, app.cfg.LogJSON, logFile)
	logger.Info("starting", "version", Version, "base_url", app.cfg.BaseURL)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ctrl, err := app.controller()
	if err != nil {
		return err
	}
	journal := app.openJournal()
	if journal != nil {
		if n, err := journal.Prune(app.now().Add(-journalRetention)); err != nil {
			logger.Warn("journal prune failed", "error", err)
		} else if n > 0 {
			logger.Debug("journal pruned", "removed", n)
		}
	}

	if addr := app.cfg.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
	}

	model := ui.NewApp(ctx, ctrl, journal, ui.Options{
		DownloadDir: downloadDir(app.DownloadDir),
		Now:         app.now,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if path := app.cfg.Path(); path != "" {
		w, err := watcher.New([]string{path}, func() {
			cfg, err := config.Load(path)
			if err != nil {
				logger.Warn("config reload failed", "path", path, "error", err)
				return
			}
			logger.Info("config reloaded", "path", path)
			p.Send(ui.ConfigReloaded{Location: cfg.Location(), SearchDelay: cfg.Debounce()})
		})
		if err != nil {
			logger.Warn("config watch unavailable", "path", path, "error", err)
		} else {
			defer w.Close()
			go w.Run(ctx, func(err error) {
				logger.Warn("config watch error", "error", err)
			})
		}
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// downloadDir picks where attachments go: the flag, ~/Downloads when it
// exists, else the working directory.
func downloadDir(flag string) string {
	if flag != "" {
		return flag
	}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, "Downloads")
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
