package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.PacketReceived(10)
	m.PacketReceived(22)
	m.PacketMalformed()
	m.PacketSent()
	m.SendFailed()
	m.Conflict("local")
	m.Conflict("remote")
	m.Conflict("remote")
	m.Notified("added")
	m.ServiceAdded("local")
	m.ServiceAdded("remote")
	m.ServiceRemoved("remote")
	m.QueueDepth(3)
	m.CatalogReloaded("ok")
	m.CatalogEvent("WRITE")
	m.CatalogEvent("WRITE")
	m.CatalogEvent("CREATE")
	m.WatchError()
	m.WatchedFiles(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.packetsReceived))
	assert.Equal(t, 32.0, testutil.ToFloat64(m.bytesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.packetsMalformed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.packetsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sendFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.conflicts.WithLabelValues("remote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.services.WithLabelValues("local")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.services.WithLabelValues("remote")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogReloads.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.catalogEvents.WithLabelValues("WRITE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogEvents.WithLabelValues("CREATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.watchErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.watchedFiles))
}

func TestNilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.PacketReceived(1)
		m.PacketMalformed()
		m.PacketSent()
		m.SendFailed()
		m.Conflict("local")
		m.Notified("added")
		m.ServiceAdded("local")
		m.ServiceRemoved("local")
		m.QueueDepth(1)
		m.CatalogReloaded("error")
		m.CatalogEvent("WRITE")
		m.WatchError()
		m.WatchedFiles(1)
	})
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.PacketSent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "usd_packets_sent_total 1"))
}
