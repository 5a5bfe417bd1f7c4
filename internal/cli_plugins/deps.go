package cliplugins

import (
	"context"
	"log/slog"
	"sync"

	"usd/internal/announcer"
	"usd/internal/catalog"
	"usd/internal/config"
	"usd/internal/metrics"
	"usd/internal/transport"
	"usd/internal/util/logger/handlers/slogdiscard"
	"usd/pkg/cli"
)

// Deps is shared by the commands. The config is read on first use, once cobra
// has parsed --config.
type Deps struct {
	ConfigPath string
	// NewLogger builds the logger for the configured env, nil discards logs
	NewLogger func(env string) *slog.Logger
	// Transport replaces the multicast sockets
	Transport transport.Transport

	once sync.Once
	cfg  *config.Config
	log  *slog.Logger
	err  error
}

// Register adds every command to c
func Register(c *cli.CLI, d *Deps) {
	c.RegisterPlugin(NewServeCommand(d))
	c.RegisterPlugin(NewBrowseCommand(d))
	c.RegisterPlugin(NewAddCommand(d))
	c.RegisterPlugin(NewRemoveCommand(d))
	c.RegisterPlugin(NewListCommand(d))
	c.RegisterPlugin(NewImportCommand(d))
}

func (d *Deps) load() (*config.Config, *slog.Logger, error) {
	d.once.Do(func() {
		d.cfg, d.err = config.Load(config.FetchConfigPath(d.ConfigPath))
		if d.err != nil {
			return
		}
		if d.NewLogger != nil {
			d.log = d.NewLogger(d.cfg.Env)
		} else {
			d.log = slogdiscard.NewDiscardLogger()
		}
	})
	return d.cfg, d.log, d.err
}

func (d *Deps) newAnnouncer(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) *announcer.Announcer {
	opts := []announcer.Option{announcer.WithMetrics(m)}
	if d.Transport != nil {
		opts = append(opts, announcer.WithTransport(d.Transport))
	}
	return announcer.New(ctx, cfg.Announcer, log, opts...)
}

func (d *Deps) openCatalog() (*catalog.Catalog, error) {
	cfg, _, err := d.load()
	if err != nil {
		return nil, err
	}
	return catalog.Open(cfg.Catalog)
}
