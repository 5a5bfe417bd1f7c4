// Package publisher keeps the local services of an announcer in line with the catalog.
package publisher

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"usd/internal/catalog"
	"usd/internal/metrics"
	"usd/internal/service"
	"usd/internal/util/logger/sl"
)

// Engine is the part of the announcer the publisher drives
type Engine interface {
	AddService(info service.Info) error
	RemoveService(info service.Info)
}

type Publisher struct {
	engine  Engine
	cfg     catalog.Config
	log     *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	published map[string]service.Info
}

func New(engine Engine, cfg catalog.Config, log *slog.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{
		engine:    engine,
		cfg:       cfg,
		log:       log.With(slog.String("component", "publisher")),
		metrics:   m,
		published: make(map[string]service.Info),
	}
}

// Reload reads the catalog file and applies it. It implements watcher.Reloader.
func (p *Publisher) Reload(path string) error {
	op := "publisher.Reload"
	log := p.log.With(slog.String("op", op))

	cfg := p.cfg
	if path != "" {
		cfg.Path = path
	}

	recs, err := catalog.Load(cfg)
	if err != nil {
		p.metrics.CatalogReloaded("error")
		log.Error("failed to load catalog", slog.String("path", cfg.Path), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.Apply(recs); err != nil {
		p.metrics.CatalogReloaded("error")
		return err
	}
	p.metrics.CatalogReloaded("ok")
	return nil
}

// Apply withdraws published services that left the catalog or changed, then adds the new
// and changed ones. A record the engine rejects is skipped, the others are still applied.
func (p *Publisher) Apply(recs []catalog.Record) error {
	op := "publisher.Apply"
	log := p.log.With(slog.String("op", op))

	p.mu.Lock()
	defer p.mu.Unlock()

	desired := make(map[string]service.Info, len(recs))
	for _, rec := range recs {
		desired[rec.ID] = rec.Service()
	}

	removed := 0
	for id, current := range p.published {
		if want, ok := desired[id]; ok && want.Equal(current) {
			continue
		}
		p.engine.RemoveService(current)
		delete(p.published, id)
		removed++
	}

	var errs []error
	added := 0
	for _, rec := range recs {
		info := desired[rec.ID]
		if _, ok := p.published[info.ID]; ok {
			continue
		}
		if err := p.engine.AddService(info); err != nil {
			log.Warn("skipping service", slog.String("id", info.ID), slog.String("name", info.Name), sl.Err(err))
			errs = append(errs, fmt.Errorf("service %q: %w", info.ID, err))
			continue
		}
		p.published[info.ID] = info
		added++
	}

	log.Info("catalog applied",
		slog.Int("services", len(p.published)),
		slog.Int("added", added),
		slog.Int("removed", removed),
	)
	return errors.Join(errs...)
}

// Published returns the services currently announced from the catalog
func (p *Publisher) Published() []service.Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos := make([]service.Info, 0, len(p.published))
	for _, info := range p.published {
		infos = append(infos, info)
	}
	return infos
}
