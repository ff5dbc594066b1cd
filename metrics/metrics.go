// Package metrics provides Prometheus metrics for gossh clients and
// servers: transport handshakes, channel lifecycle, data transfer, and
// SFTP/SCP transfer activity.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gossh"

// Registry bundles every Prometheus metric gossh records, mirroring the
// single-struct-of-metrics shape used throughout this stack.
type Registry struct {
	// Transport/handshake metrics
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	HandshakeLatency  prometheus.Histogram
	HandshakeErrors   *prometheus.CounterVec
	RekeysTotal       prometheus.Counter
	DisconnectsTotal  *prometheus.CounterVec

	// Channel metrics
	ChannelsActive     prometheus.Gauge
	ChannelsOpened     prometheus.Counter
	ChannelsClosed     prometheus.Counter
	ChannelOpenLatency prometheus.Histogram
	ChannelErrors      *prometheus.CounterVec

	// Data transfer metrics
	BytesSent     *prometheus.CounterVec
	BytesReceived *prometheus.CounterVec
	PacketsSent   *prometheus.CounterVec
	PacketsRecv   *prometheus.CounterVec

	// SFTP/SCP transfer metrics
	TransfersActive      prometheus.Gauge
	TransfersTotal       prometheus.Counter
	TransferErrors       *prometheus.CounterVec
	TransferBytesTotal   *prometheus.CounterVec
	TransferLatency      prometheus.Histogram
	SFTPRequestsInFlight prometheus.Gauge
	SFTPRequestLatency   *prometheus.HistogramVec

	// Keepalive metrics
	KeepalivesSent prometheus.Counter
	KeepalivesRecv prometheus.Counter
	KeepaliveRTT   prometheus.Histogram
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the default, process-wide Registry, registered against
// prometheus.DefaultRegisterer.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a Registry registered against the default Prometheus
// registerer.
func NewRegistry() *Registry {
	return NewRegistryWithRegisterer(prometheus.DefaultRegisterer)
}

// NewRegistryWithRegisterer creates a Registry against a custom registerer,
// letting callers isolate metrics per-test or per-instance.
func NewRegistryWithRegisterer(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently established SSH connections",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of SSH connections established",
		}),
		HandshakeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_latency_seconds",
			Help:      "Histogram of full transport handshake (banner+kex+auth) latency",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		HandshakeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_errors_total",
			Help:      "Total handshake errors by stage",
		}, []string{"stage"}),
		RekeysTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rekeys_total",
			Help:      "Total number of key re-exchanges performed",
		}),
		DisconnectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total disconnections by reason",
		}, []string{"reason"}),

		ChannelsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_active",
			Help:      "Number of currently open SSH channels",
		}),
		ChannelsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_opened_total",
			Help:      "Total number of channels opened",
		}),
		ChannelsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_closed_total",
			Help:      "Total number of channels closed",
		}),
		ChannelOpenLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_open_latency_seconds",
			Help:      "Histogram of channel-open round-trip latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		ChannelErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_errors_total",
			Help:      "Total channel errors by type",
		}, []string{"error_type"}),

		BytesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total bytes sent by channel type",
		}, []string{"channel_type"}),
		BytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total bytes received by channel type",
		}, []string{"channel_type"}),
		PacketsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Total transport packets sent by message type",
		}, []string{"msg_type"}),
		PacketsRecv: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total transport packets received by message type",
		}, []string{"msg_type"}),

		TransfersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transfers_active",
			Help:      "Number of currently active SFTP/SCP file transfers",
		}),
		TransfersTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Total number of file transfers started",
		}),
		TransferErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_errors_total",
			Help:      "Total file transfer errors by protocol",
		}, []string{"protocol"}),
		TransferBytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_bytes_total",
			Help:      "Total bytes transferred by direction",
		}, []string{"direction"}),
		TransferLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_latency_seconds",
			Help:      "Histogram of whole-file transfer duration",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
		}),
		SFTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sftp_requests_in_flight",
			Help:      "Number of SFTP requests awaiting a response",
		}),
		SFTPRequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sftp_request_latency_seconds",
			Help:      "Histogram of SFTP request/response latency by request type",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"request_type"}),

		KeepalivesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keepalives_sent_total",
			Help:      "Total keepalive messages sent",
		}),
		KeepalivesRecv: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keepalives_received_total",
			Help:      "Total keepalive responses received",
		}),
		KeepaliveRTT: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "keepalive_rtt_seconds",
			Help:      "Histogram of keepalive round-trip time",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}

// RecordConnect records a newly established connection.
func (r *Registry) RecordConnect() {
	r.ConnectionsActive.Inc()
	r.ConnectionsTotal.Inc()
}

// RecordDisconnect records a connection teardown.
func (r *Registry) RecordDisconnect(reason string) {
	r.ConnectionsActive.Dec()
	r.DisconnectsTotal.WithLabelValues(reason).Inc()
}

// RecordHandshake records a completed handshake's latency.
func (r *Registry) RecordHandshake(latencySeconds float64) {
	r.HandshakeLatency.Observe(latencySeconds)
}

// RecordHandshakeError records a handshake failure at a given stage
// ("banner", "kex", "hostkey", "auth").
func (r *Registry) RecordHandshakeError(stage string) {
	r.HandshakeErrors.WithLabelValues(stage).Inc()
}

// RecordChannelOpen records a channel open and its round-trip latency.
func (r *Registry) RecordChannelOpen(latencySeconds float64) {
	r.ChannelsActive.Inc()
	r.ChannelsOpened.Inc()
	r.ChannelOpenLatency.Observe(latencySeconds)
}

// RecordChannelClose records a channel closing.
func (r *Registry) RecordChannelClose() {
	r.ChannelsActive.Dec()
	r.ChannelsClosed.Inc()
}

// RecordChannelError records a channel-level error by type.
func (r *Registry) RecordChannelError(errorType string) {
	r.ChannelErrors.WithLabelValues(errorType).Inc()
}

// RecordBytesSent records bytes written to a channel of the given type
// ("session", "direct-tcpip", "forwarded-tcpip", "sftp", ...).
func (r *Registry) RecordBytesSent(channelType string, n int) {
	r.BytesSent.WithLabelValues(channelType).Add(float64(n))
}

// RecordBytesReceived records bytes read from a channel of the given type.
func (r *Registry) RecordBytesReceived(channelType string, n int) {
	r.BytesReceived.WithLabelValues(channelType).Add(float64(n))
}

// RecordPacketSent records one transport packet sent, keyed by its
// SSH message type name (see MsgName in the ssh package).
func (r *Registry) RecordPacketSent(msgType string) {
	r.PacketsSent.WithLabelValues(msgType).Inc()
}

// RecordPacketReceived records one transport packet received.
func (r *Registry) RecordPacketReceived(msgType string) {
	r.PacketsRecv.WithLabelValues(msgType).Inc()
}

// RecordTransferStart records a new SFTP/SCP transfer beginning.
func (r *Registry) RecordTransferStart() {
	r.TransfersActive.Inc()
	r.TransfersTotal.Inc()
}

// RecordTransferEnd records a transfer finishing, successfully or not.
func (r *Registry) RecordTransferEnd(protocol string, durationSeconds float64, err error) {
	r.TransfersActive.Dec()
	r.TransferLatency.Observe(durationSeconds)
	if err != nil {
		r.TransferErrors.WithLabelValues(protocol).Inc()
	}
}

// RecordTransferBytes records bytes moved during a transfer ("upload" or
// "download").
func (r *Registry) RecordTransferBytes(direction string, n int64) {
	r.TransferBytesTotal.WithLabelValues(direction).Add(float64(n))
}

// RecordSFTPRequest records one SFTP request/response round trip.
func (r *Registry) RecordSFTPRequest(requestType string, latencySeconds float64) {
	r.SFTPRequestLatency.WithLabelValues(requestType).Observe(latencySeconds)
}

// RecordKeepaliveSent records a keepalive sent.
func (r *Registry) RecordKeepaliveSent() { r.KeepalivesSent.Inc() }

// RecordKeepaliveRecv records a keepalive response and its round-trip time.
func (r *Registry) RecordKeepaliveRecv(rttSeconds float64) {
	r.KeepalivesRecv.Inc()
	r.KeepaliveRTT.Observe(rttSeconds)
}
