// Package announcer keeps the registry of known services, announces local services to a
// multicast group and learns remote services from it.
package announcer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"usd/internal/codec"
	"usd/internal/message"
	"usd/internal/metrics"
	"usd/internal/service"
	"usd/internal/transport"
	"usd/internal/transport/multicast"
	"usd/internal/util/logger/sl"
)

type Announcer struct {
	cfg       Config
	log       *slog.Logger
	transport transport.Transport
	metrics   *metrics.Metrics

	registry  *registry
	listeners *listenerSet
	queue     *workQueue

	// mu makes a registry change and the enqueue of its announcement and notification atomic
	// with respect to listener registration and Start, so each listener sees each change once.
	mu    sync.Mutex
	group *net.UDPAddr

	// lifecycle guards Start and Stop
	lifecycle sync.Mutex
	stopped   bool
	conn      transport.Receiver
	running   atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an announcer and starts its worker. The receiver runs only after Start.
func New(ctx context.Context, cfg Config, log *slog.Logger, opts ...Option) *Announcer {
	ctx, cancel := context.WithCancel(ctx)

	a := &Announcer{
		cfg:       cfg.withDefaults(),
		log:       log.With(slog.String("component", "announcer")),
		registry:  &registry{},
		listeners: &listenerSet{},
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.transport == nil {
		a.transport = multicast.New(multicast.Options{
			Interface:  a.cfg.Interface,
			TTL:        a.cfg.TTL,
			Loopback:   !a.cfg.DisableLoopback,
			ReadBuffer: a.cfg.ReadBuffer,
		}, log)
	}
	a.queue = newWorkQueue(a.metrics.QueueDepth)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.queue.run(ctx)
	}()

	return a
}

// AddService registers a local service and announces it. Adding a service that is already
// known under the same id and name does nothing. An id bound to another name is a conflict.
func (a *Announcer) AddService(info service.Info) error {
	op := "announcer.AddService"
	log := a.log.With(slog.String("op", op), slog.String("id", info.ID))

	if a.ctx.Err() != nil {
		return ErrStopped
	}
	if err := info.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidService, err)
	}
	info = service.New(info.ID, info.Name, info.Endpoint, info.Properties)
	if err := a.fits(info); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidService, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	stored, inserted := a.registry.insert(info, Local)
	if !inserted {
		if stored.info.Same(info) {
			log.Debug("service already registered", slog.String("locality", stored.locality.String()))
			return nil
		}
		a.metrics.Conflict(Local.String())
		return fmt.Errorf("%w: id %q is bound to %q", ErrConflict, info.ID, stored.info.Name)
	}

	a.metrics.ServiceAdded(Local.String())
	log.Info("service added", slog.String("name", info.Name), slog.String("endpoint", info.Endpoint))

	a.send(a.group, message.NewAdded(info))
	a.notify(message.Added, info)
	return nil
}

// RemoveService withdraws a local service. Only an entry created by AddService with an
// equal descriptor is removed, anything else is ignored.
func (a *Announcer) RemoveService(info service.Info) {
	op := "announcer.RemoveService"
	log := a.log.With(slog.String("op", op), slog.String("id", info.ID))

	if a.ctx.Err() != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.registry.remove(info, Local) {
		log.Debug("no matching local service")
		return
	}

	a.metrics.ServiceRemoved(Local.String())
	log.Info("service removed", slog.String("name", info.Name))

	a.send(a.group, message.NewRemoved(info))
	a.notify(message.Removed, info)
}

// AddServiceListener registers l and replays ServiceAdded for every service known now,
// in registration order. The replay runs on the worker after AddServiceListener returns.
func (a *Announcer) AddServiceListener(l service.Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()

	reg, added := a.listeners.add(l)
	if !added {
		return
	}

	entries := a.registry.snapshot()
	a.queue.push(func(ctx context.Context) {
		for _, e := range entries {
			if ctx.Err() != nil || reg.removed.Load() {
				return
			}
			a.call(reg, message.Added, e.clone())
		}
	})
}

// RemoveServiceListener deregisters l. Notifications queued but not yet delivered are skipped.
func (a *Announcer) RemoveServiceListener(l service.Listener) {
	a.listeners.remove(l)
}

// KnownServices returns a snapshot of local and remote services in registration order
func (a *Announcer) KnownServices() []service.Info {
	return a.registry.services(nil)
}

// LocalServices returns a snapshot of the services added through AddService
func (a *Announcer) LocalServices() []service.Info {
	return a.registry.locals()
}

// Start joins group, nil means the configured group, and launches the receiver. It asks
// peers for their services and announces the local services registered so far.
// Start may be called again after the receiver failed, never after Stop.
func (a *Announcer) Start(group *net.UDPAddr) error {
	op := "announcer.Start"
	log := a.log.With(slog.String("op", op))

	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if a.stopped || a.ctx.Err() != nil {
		return ErrStopped
	}
	if a.running.Load() {
		return ErrAlreadyRunning
	}

	if group == nil {
		var err error
		if group, err = a.cfg.GroupAddr(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	conn, err := a.transport.Listen(group)
	if err != nil {
		return fmt.Errorf("%s: listen %s: %w", op, group, err)
	}
	a.conn = conn
	a.running.Store(true)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.receive(a.ctx, conn)
	}()

	a.mu.Lock()
	a.group = group
	locals := a.registry.locals()
	batch := make([]message.Message, 0, len(locals)+1)
	batch = append(batch, message.NewStateRequest())
	for _, info := range locals {
		batch = append(batch, message.NewAdded(info))
	}
	a.send(group, batch...)
	a.mu.Unlock()

	log.Info("announcer started", slog.String("group", group.String()), slog.Int("local_services", len(locals)))
	return nil
}

// Running reports whether the receiver is alive
func (a *Announcer) Running() bool {
	return a.running.Load()
}

// Stop cancels the receiver and the queued work and waits for them up to the shutdown timeout.
// Work still running after that is abandoned. A stopped announcer cannot be started again.
func (a *Announcer) Stop() error {
	op := "announcer.Stop"
	log := a.log.With(slog.String("op", op))

	a.lifecycle.Lock()
	if a.stopped {
		a.lifecycle.Unlock()
		return nil
	}
	a.stopped = true
	conn := a.conn
	a.lifecycle.Unlock()

	a.cancel()
	a.queue.close()
	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Debug("close receiver", sl.Err(err))
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(a.cfg.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("announcer stopped")
	case <-timer.C:
		log.Warn("shutdown timeout exceeded, abandoning pending work", slog.Duration("timeout", a.cfg.ShutdownTimeout))
	}
	return nil
}

// addRemote upserts a service learned from the network. Conflicts are dropped.
func (a *Announcer) addRemote(info service.Info) {
	op := "announcer.addRemote"
	log := a.log.With(slog.String("op", op), slog.String("id", info.ID))

	if err := info.Validate(); err != nil {
		log.Debug("dropping invalid service", sl.Err(err))
		return
	}
	if err := a.fits(info); err != nil {
		log.Debug("dropping oversized service", sl.Err(err))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	stored, inserted := a.registry.insert(info, Remote)
	if !inserted {
		if !stored.info.Same(info) {
			a.metrics.Conflict(Remote.String())
			log.Debug("dropping conflicting service",
				slog.String("name", info.Name),
				slog.String("known_name", stored.info.Name),
			)
		}
		return
	}

	a.metrics.ServiceAdded(Remote.String())
	log.Debug("remote service added", slog.String("name", info.Name), slog.String("endpoint", info.Endpoint))
	a.notify(message.Added, info)
}

// removeRemote deletes a service learned from the network if the descriptor matches exactly
func (a *Announcer) removeRemote(info service.Info) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.registry.remove(info, Remote) {
		return
	}

	a.metrics.ServiceRemoved(Remote.String())
	a.log.Debug("remote service removed", slog.String("id", info.ID), slog.String("name", info.Name))
	a.notify(message.Removed, info)
}

// rebroadcast answers a state request with one batch holding every local service
func (a *Announcer) rebroadcast() {
	a.mu.Lock()
	defer a.mu.Unlock()

	locals := a.registry.locals()
	if len(locals) == 0 {
		return
	}
	batch := make([]message.Message, 0, len(locals))
	for _, info := range locals {
		batch = append(batch, message.NewAdded(info))
	}
	a.send(a.group, batch...)
}

// fits checks that the announcement of info encodes and that every peer can read it in one
// datagram. A larger one is cut by the receivers, or fails to send and takes the rest of its
// batch down with it.
func (a *Announcer) fits(info service.Info) error {
	b, err := codec.Marshal(message.NewAdded(info))
	if err != nil {
		return err
	}
	if limit := a.cfg.maxPacket(); len(b) > limit {
		return fmt.Errorf("announcement is %d bytes, limit is %d", len(b), limit)
	}
	return nil
}

// notify queues a callback for the listeners registered now. Callers hold a.mu.
func (a *Announcer) notify(kind message.Code, info service.Info) {
	regs := a.listeners.snapshot()
	if len(regs) == 0 {
		return
	}
	a.queue.push(func(ctx context.Context) {
		for _, reg := range regs {
			if ctx.Err() != nil {
				return
			}
			if reg.removed.Load() {
				continue
			}
			a.call(reg, kind, service.New(info.ID, info.Name, info.Endpoint, info.Properties))
		}
	})
}

// call runs one listener callback. A panicking listener must not take the worker down.
func (a *Announcer) call(reg *registration, kind message.Code, info service.Info) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("listener panicked", slog.String("id", info.ID), slog.Any("panic", r))
		}
	}()

	if kind == message.Added {
		a.metrics.Notified("added")
		reg.listener.ServiceAdded(info)
		return
	}
	a.metrics.Notified("removed")
	reg.listener.ServiceRemoved(info)
}
