package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/localrivet/editormcp/events"
	"github.com/localrivet/editormcp/handlers"
	"github.com/localrivet/editormcp/scene"
	"github.com/localrivet/editormcp/server"
)

var (
	serveLevel   string
	serveClasses []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the command server",
	Long: `Start a command server backed by an in-memory scene.

The server answers JSON-RPC (initialize, tools/list, tools/call) and legacy
commands until interrupted. When events_broker_url is configured, lifecycle
events are forwarded to that MQTT broker.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveLevel, "level", scene.DefaultLevelName, "Level name reported by get_scene_info")
	serveCmd.Flags().StringSliceVar(&serveClasses, "class", nil, "Additional spawnable class (repeatable)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := loaded
	logger := newLogger(cfg)

	bus := events.NewBus(logger)
	defer bus.Close()

	srv, err := server.NewServer(cfg,
		server.WithLogger(logger),
		server.WithEvents(bus),
		server.WithToolDescriber(handlers.Describer{}),
	)
	if err != nil {
		return err
	}

	sc := scene.NewMemory(scene.WithLevelName(serveLevel), scene.WithClasses(serveClasses...))
	logger.Info("registered built-in commands", "count", handlers.Register(srv, sc))

	if cfg.EventsBrokerURL != "" {
		fwd := events.NewMQTTForwarder(cfg.EventsBrokerURL, cfg.EventsTopicPrefix, logger)
		if err := fwd.Start(bus); err != nil {
			return err
		}
		defer fwd.Stop()
	}

	if cfg.VerboseLogging {
		if _, err := events.Subscribe(bus, events.TopicRequestFailed, logFailure(logger)); err != nil {
			logger.Warn("failed to subscribe to request failures", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		srv.Stop()
		return nil
	})
	g.Go(func() error {
		reportStatus(gctx, srv, logger)
		return nil
	})
	return g.Wait()
}

const statusInterval = 30 * time.Second

func reportStatus(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Debug("server status",
				"running", srv.IsRunning(),
				"clients", srv.ConnectionCount(),
				"commands", len(srv.Handlers()))
		}
	}
}

func logFailure(logger *slog.Logger) func(context.Context, events.RequestFailedEvent) error {
	return func(_ context.Context, evt events.RequestFailedEvent) error {
		logger.Debug("request failed", "method", evt.Method, "code", evt.Code, "error", evt.Error)
		return nil
	}
}
