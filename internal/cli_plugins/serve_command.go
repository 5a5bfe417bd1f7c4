package cliplugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"usd/internal/announcer"
	"usd/internal/metrics"
	"usd/internal/publisher"
	"usd/internal/service"
	"usd/internal/util/logger/sl"
	"usd/internal/watcher"
)

type ServeCommand struct {
	cmd  *cobra.Command
	deps *Deps
}

func NewServeCommand(deps *Deps) *ServeCommand {
	return &ServeCommand{deps: deps}
}

func (s *ServeCommand) Meta() *cobra.Command {
	if s.cmd != nil {
		return s.cmd
	}
	s.cmd = &cobra.Command{
		Use:   "serve",
		Short: "Announce the catalog and discover services",
		Long: "Joins the multicast group, announces every service of the catalog, follows catalog " +
			"changes and logs services appearing on the group until interrupted.",
		Args: cobra.NoArgs,
	}
	s.cmd.Flags().Duration("check-interval", time.Second, "how often the receiver is checked and restarted")
	return s.cmd
}

func (s *ServeCommand) Execute(ctx context.Context, cmd *cobra.Command, args []string) error {
	op := "cliplugins.Serve"

	interval, err := cmd.Flags().GetDuration("check-interval")
	if err != nil || interval <= 0 {
		return fmt.Errorf("flag --check-interval must be positive")
	}

	cfg, log, err := s.deps.load()
	if err != nil {
		return err
	}
	log = log.With(slog.String("op", op))

	m := metrics.New()
	a := s.deps.newAnnouncer(ctx, cfg, log, m)
	defer a.Stop()

	a.AddServiceListener(&service.ListenerFuncs{
		Added: func(info service.Info) {
			log.Info("service up", slog.String("id", info.ID), slog.String("name", info.Name), slog.String("endpoint", info.Endpoint))
		},
		Removed: func(info service.Info) {
			log.Info("service down", slog.String("id", info.ID), slog.String("name", info.Name))
		},
	})

	pub := publisher.New(a, cfg.Catalog, log, m)
	if err := pub.Reload(""); err != nil {
		log.Warn("catalog not fully published", sl.Err(err))
	}

	if err := a.Start(nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	fw, err := watcher.NewFileWatcher(pub, watcher.Config{
		DebounceDuration: cfg.Catalog.Debounce,
		Logger:           log,
		Metrics:          m,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer fw.Close()
	if err := fw.Watch(cfg.Catalog.Path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case err, ok := <-fw.Errors():
				if !ok {
					return nil
				}
				log.Warn("catalog watcher", sl.Err(err))
			}
		}
	})
	g.Go(func() error {
		return supervise(gctx, a, interval, log)
	})
	if cfg.Metrics.Address != "" {
		g.Go(func() error {
			return m.Serve(gctx, cfg.Metrics.Address, cfg.Metrics.Path, log)
		})
	}

	log.Info("serving", slog.String("catalog", cfg.Catalog.Path), slog.Int("published", len(pub.Published())))
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutting down")
	return nil
}

// supervise starts the receiver again whenever it died, until ctx is done
func supervise(ctx context.Context, a *announcer.Announcer, interval time.Duration, log *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if a.Running() {
			continue
		}
		err := a.Start(nil)
		switch {
		case err == nil:
			log.Info("receiver restarted")
		case errors.Is(err, announcer.ErrStopped):
			return nil
		default:
			log.Error("failed to restart receiver", sl.Err(err))
		}
	}
}
