// Package metrics exposes Prometheus instrumentation for the OSC
// send and receive paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Receive path
	DatagramsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oscbridge_datagrams_received_total",
		Help: "Total number of UDP datagrams received",
	})
	MessagesParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oscbridge_messages_parsed_total",
		Help: "Total number of complete OSC messages parsed, by type tag",
	}, []string{"tag"})
	StreamResyncBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oscbridge_stream_resync_bytes_total",
		Help: "Total bytes dropped while resynchronizing the inbound stream",
	})
	OverflowBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oscbridge_overflow_bytes",
		Help: "Bytes currently carried between receive cycles",
	})
	ParameterChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oscbridge_parameter_changes_total",
		Help: "Total number of parameter change events fired",
	})
	AvatarChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oscbridge_avatar_changes_total",
		Help: "Total number of avatar change events fired",
	})

	// Send path
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oscbridge_messages_sent_total",
		Help: "Total number of OSC messages sent",
	})
	SendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oscbridge_send_errors_total",
		Help: "Total number of failed socket sends",
	})
	BatchSends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oscbridge_batch_sends_total",
		Help: "Total number of batched multi-parameter sends",
	})
)
