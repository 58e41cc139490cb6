package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/tgienger/tasktrack/internal/apitest"
	"github.com/tgienger/tasktrack/internal/logger"
)

func newDevServerCmd(app *App) *cobra.Command {
	var (
		addr  string
		empty bool
	)
	cmd := &cobra.Command{
		Use:    "dev-server",
		Short:  "Run an in-memory backend with sample data",
		Long:   `Serves the task tracker REST API from memory so the client can be tried without a real backend. Data is lost on exit.`,
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger.Init(app.cfg.LogLevel, app.cfg.LogJSON, cmd.ErrOrStderr())
			gin.SetMode(gin.ReleaseMode)

			var opts []apitest.Option
			if empty {
				opts = append(opts, apitest.WithoutSeed())
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			srv := &http.Server{
				Handler:           apitest.New(opts...).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (Ctrl+C to stop)\n", ln.Addr())
			logger.Info("dev server listening", "addr", ln.Addr().String(), "seeded", !empty)
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "listen address")
	cmd.Flags().BoolVar(&empty, "empty", false, "start without sample data")
	return cmd
}
