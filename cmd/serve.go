package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"

	"kvconsole/kvapi"
	"kvconsole/stats"
	"kvconsole/web"
)

const sessionSweepInterval = 5 * time.Minute

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web console",
	Long: `kvconsole serve command.

Serves the browser console on --listen and forwards every action to the
configured backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newTransport()
		if err != nil {
			return err
		}

		stats.Register(metrics.DefaultRegistry, stats.NewSampler())

		srv, err := web.New(kvapi.New(t), metrics.DefaultRegistry)
		if err != nil {
			return err
		}

		idle, err := cfg.SessionIdle()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go srv.SweepSessions(ctx, sessionSweepInterval, idle)

		log.Noticef("Starting console at %s against %s (timeout %v)", cfg.Console.Listen, t.BaseURL(), t.Timeout())
		return listenAndServe(cfg.Console.Listen, srv.Handler())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagCfg.Console.Listen, "listen", "l", "", "Address to serve the console on (default 127.0.0.1:3000)")
}

// listenAndServe runs until the server fails or the process is interrupted,
// then shuts down gracefully.
func listenAndServe(addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Notice("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
