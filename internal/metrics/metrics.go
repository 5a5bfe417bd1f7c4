// Package metrics exposes the announcer counters to Prometheus.
// Every method is safe on a nil *Metrics, so components can run without metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"usd/internal/util/logger/sl"
)

const namespace = "usd"

type Metrics struct {
	registry *prometheus.Registry

	packetsReceived  prometheus.Counter
	bytesReceived    prometheus.Counter
	packetsMalformed prometheus.Counter
	packetsSent      prometheus.Counter
	sendFailures     prometheus.Counter
	conflicts        *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	services         *prometheus.GaugeVec
	queueDepth       prometheus.Gauge
	catalogReloads   *prometheus.CounterVec
	catalogEvents    *prometheus.CounterVec
	watchErrors      prometheus.Counter
	watchedFiles     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Datagrams read from the multicast group.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_bytes_total",
			Help:      "Bytes read from the multicast group.",
		}),
		packetsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_malformed_total",
			Help:      "Datagrams dropped because they could not be decoded.",
		}),
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Announcements written to the multicast group.",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Announcement batches abandoned after a transport error.",
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Services rejected because their id is bound to another service.",
		}, []string{"origin"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Listener callbacks invoked.",
		}, []string{"kind"}),
		services: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "services",
			Help:      "Services currently known.",
		}, []string{"locality"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Sends and notifications waiting for the worker.",
		}),
		catalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Catalog reloads by result.",
		}, []string{"result"}),
		catalogEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_events_total",
			Help:      "File events seen for the watched catalog, by operation.",
		}, []string{"op"}),
		watchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_watch_errors_total",
			Help:      "Watcher and reload errors reported by the catalog watcher.",
		}),
		watchedFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watched_files",
			Help:      "Files followed by the catalog watcher.",
		}),
	}

	m.registry.MustRegister(
		m.packetsReceived,
		m.bytesReceived,
		m.packetsMalformed,
		m.packetsSent,
		m.sendFailures,
		m.conflicts,
		m.notifications,
		m.services,
		m.queueDepth,
		m.catalogReloads,
		m.catalogEvents,
		m.watchErrors,
		m.watchedFiles,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PacketReceived(size int) {
	if m == nil {
		return
	}
	m.packetsReceived.Inc()
	m.bytesReceived.Add(float64(size))
}

func (m *Metrics) PacketMalformed() {
	if m == nil {
		return
	}
	m.packetsMalformed.Inc()
}

func (m *Metrics) PacketSent() {
	if m == nil {
		return
	}
	m.packetsSent.Inc()
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

// Conflict counts a rejected service, origin is "local" or "remote"
func (m *Metrics) Conflict(origin string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(origin).Inc()
}

func (m *Metrics) Notified(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

func (m *Metrics) ServiceAdded(locality string) {
	if m == nil {
		return
	}
	m.services.WithLabelValues(locality).Inc()
}

func (m *Metrics) ServiceRemoved(locality string) {
	if m == nil {
		return
	}
	m.services.WithLabelValues(locality).Dec()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// CatalogReloaded counts a reload, result is "ok" or "error"
func (m *Metrics) CatalogReloaded(result string) {
	if m == nil {
		return
	}
	m.catalogReloads.WithLabelValues(result).Inc()
}

// CatalogEvent counts a file event of the watched catalog, op is the fsnotify operation
func (m *Metrics) CatalogEvent(op string) {
	if m == nil {
		return
	}
	m.catalogEvents.WithLabelValues(op).Inc()
}

func (m *Metrics) WatchError() {
	if m == nil {
		return
	}
	m.watchErrors.Inc()
}

func (m *Metrics) WatchedFiles(n int) {
	if m == nil {
		return
	}
	m.watchedFiles.Set(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes the registry on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr, path string, log *slog.Logger) error {
	op := "metrics.Serve"
	log = log.With(slog.String("op", op))

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown metrics server", sl.Err(err))
		}
	}()

	log.Info("metrics server started", slog.String("addr", addr), slog.String("path", path))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
